package policy

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

// verifySchema accepts the schema as a JSON string, a decoded object, {"schema": ...} or {"id": ...}. Without
// arguments the schema named by the credential's credentialSchema is resolved.
func verifySchema(target *Target, args any, vctx *Context) (any, error) {
	var loader gojsonschema.JSONLoader
	switch a := args.(type) {
	case string:
		loader = gojsonschema.NewStringLoader(a)
	case map[string]any:
		if nested, ok := a["schema"]; ok {
			return verifySchema(target, nested, vctx)
		}
		if id, ok := a["id"].(string); ok && len(a) == 1 {
			resolved, err := resolveSchema(id, vctx)
			if err != nil {
				return nil, err
			}
			loader = resolved
			break
		}
		loader = gojsonschema.NewGoLoader(a)
	case nil:
		id := credentialSchemaID(target.Data)
		if id == "" {
			return nil, &ArgumentError{Policy: SchemaPolicy, Reason: "no schema given and the credential references none"}
		}
		resolved, err := resolveSchema(id, vctx)
		if err != nil {
			return nil, err
		}
		loader = resolved
	default:
		return nil, &ArgumentError{Policy: SchemaPolicy, Reason: "expected a JSON schema"}
	}

	result, err := gojsonschema.Validate(loader, gojsonschema.NewGoLoader(target.Data))
	if err != nil {
		return nil, errors.Wrap(err, "running schema validation")
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}
	return "valid", nil
}

func resolveSchema(id string, vctx *Context) (gojsonschema.JSONLoader, error) {
	if vctx == nil || vctx.Schemas == nil {
		return nil, errors.Errorf("no schema resolution configured for schema<%s>", id)
	}
	js, err := vctx.Schemas.Resolve(id)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving schema<%s>", id)
	}
	return gojsonschema.NewGoLoader(map[string]any(js)), nil
}

// credentialSchemaID reads credentialSchema, which may be a single object or a list of them
func credentialSchemaID(data map[string]any) string {
	switch cs := data["credentialSchema"].(type) {
	case map[string]any:
		id, _ := cs["id"].(string)
		return id
	case []any:
		if len(cs) > 0 {
			if first, ok := cs[0].(map[string]any); ok {
				id, _ := first["id"].(string)
				return id
			}
		}
	}
	return ""
}
