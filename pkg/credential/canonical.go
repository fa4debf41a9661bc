package credential

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// Canonicalize serializes v as JSON with object keys sorted at every depth, arrays kept in order and no
// insignificant whitespace. Numbers are carried through unchanged so the output is stable across calls.
func Canonicalize(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling value for canonicalization")
	}
	generic, err := DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	// maps are always marshaled in key order
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling canonical form")
	}
	return out, nil
}

// DecodeJSON decodes into generic values, keeping numbers as json.Number
func DecodeJSON(raw []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var generic any
	if err := decoder.Decode(&generic); err != nil {
		return nil, errors.Wrap(err, "decoding JSON")
	}
	return generic, nil
}

// DecodeJSONObject decodes a JSON object, failing for any other JSON value
func DecodeJSONObject(raw []byte) (map[string]any, error) {
	generic, err := DecodeJSON(raw)
	if err != nil {
		return nil, err
	}
	object, ok := generic.(map[string]any)
	if !ok {
		return nil, errors.Errorf("expected a JSON object, got %T", generic)
	}
	return object, nil
}

// DeepCopyMap copies nested maps and slices so the result shares no mutable state with the input
func DeepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = DeepCopy(v)
	}
	return out
}

func DeepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return DeepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = DeepCopy(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}
