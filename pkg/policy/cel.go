package policy

import (
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

const (
	celCredentialVar = "credential"
	celClaimsVar     = "claims"
)

// verifyCEL evaluates a boolean CEL expression. The vc or vp object is bound to "credential" and the full
// payload to "claims". Args are the expression or {"expression": ...}.
func verifyCEL(target *Target, args any, _ *Context) (any, error) {
	var expression string
	switch a := args.(type) {
	case string:
		expression = a
	case map[string]any:
		expression, _ = a["expression"].(string)
	}
	if expression == "" {
		return nil, &ArgumentError{Policy: CELPolicy, Reason: "expected an expression"}
	}

	env, err := cel.NewEnv(
		cel.Variable(celCredentialVar, cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable(celClaimsVar, cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "creating CEL environment")
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, &ArgumentError{Policy: CELPolicy, Reason: issues.Err().Error()}
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "building CEL program")
	}
	out, _, err := program.Eval(map[string]any{
		celCredentialVar: target.Data,
		celClaimsVar:     target.Claims,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "evaluating %q", expression)
	}
	passed, ok := out.Value().(bool)
	if !ok {
		return nil, errors.Errorf("expression %q returned %T, not a bool", expression, out.Value())
	}
	if !passed {
		return nil, errors.Errorf("expression %q evaluated to false", expression)
	}
	return expression, nil
}
