package policy

import (
	"strings"

	"github.com/oliveagle/jsonpath"
	"github.com/pkg/errors"
)

// verifyRequiredFields checks that each JSONPath expression, e.g. $.credentialSubject.name, resolves to a
// value in the credential
func verifyRequiredFields(target *Target, args any, _ *Context) (any, error) {
	paths, err := stringArgs(RequiredFieldsPolicy, args)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, &ArgumentError{Policy: RequiredFieldsPolicy, Reason: "no paths given"}
	}

	found := make(map[string]any, len(paths))
	var missing []string
	for _, path := range paths {
		value, err := jsonpath.JsonPathLookup(target.Data, path)
		if err != nil || value == nil {
			missing = append(missing, path)
			continue
		}
		found[path] = value
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	return found, nil
}
