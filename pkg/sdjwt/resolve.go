package sdjwt

import (
	"encoding/base64"

	"github.com/pkg/errors"

	"github.com/tbd54566975/vc-engine/pkg/credential"
)

// ParseDisclosure decodes a disclosure from its wire form and recomputes its digest
func ParseDisclosure(encoded string) (*Disclosure, error) {
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &InvalidDisclosureError{Disclosure: encoded, Reason: "not base64url"}
	}
	generic, err := credential.DecodeJSON(raw)
	if err != nil {
		return nil, &InvalidDisclosureError{Disclosure: encoded, Reason: "not JSON"}
	}
	triple, ok := generic.([]any)
	if !ok || len(triple) != 3 {
		return nil, &InvalidDisclosureError{Disclosure: encoded, Reason: "expected a [salt, name, value] array"}
	}
	salt, saltOK := triple[0].(string)
	name, nameOK := triple[1].(string)
	if !saltOK || !nameOK || salt == "" || name == "" {
		return nil, &InvalidDisclosureError{Disclosure: encoded, Reason: "salt and name must be non-empty strings"}
	}
	return &Disclosure{
		Salt:    salt,
		Name:    name,
		Value:   triple[2],
		Encoded: encoded,
		Digest:  Digest(encoded),
	}, nil
}

// Resolve restores the disclosed attributes into a copy of payload. Every disclosure must be referenced by a
// digest in the payload; digests without a matching disclosure stay hidden. The _sd and _sd_alg members are
// removed from the result.
func Resolve(payload map[string]any, encoded []string) (map[string]any, []Disclosure, error) {
	if alg, ok := payload[SDAlgKey]; ok && alg != SHA256 {
		return nil, nil, errors.Errorf("unsupported %s: %v", SDAlgKey, alg)
	}

	byDigest := make(map[string]*Disclosure, len(encoded))
	disclosures := make([]Disclosure, 0, len(encoded))
	for _, e := range encoded {
		d, err := ParseDisclosure(e)
		if err != nil {
			return nil, nil, err
		}
		if _, dup := byDigest[d.Digest]; dup {
			return nil, nil, &InvalidDisclosureError{Disclosure: e, Reason: "presented more than once"}
		}
		byDigest[d.Digest] = d
		disclosures = append(disclosures, *d)
	}

	used := make(map[string]bool, len(byDigest))
	resolved, err := resolveValue(credential.DeepCopyMap(payload), byDigest, used)
	if err != nil {
		return nil, nil, err
	}
	for digest, d := range byDigest {
		if !used[digest] {
			return nil, nil, &InvalidDisclosureError{Disclosure: d.Encoded, Reason: "digest not found in payload"}
		}
	}

	out := resolved.(map[string]any)
	delete(out, SDAlgKey)
	return out, disclosures, nil
}

func resolveValue(v any, byDigest map[string]*Disclosure, used map[string]bool) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		digests, _ := t[SDKey].([]any)
		delete(t, SDKey)
		for _, raw := range digests {
			digest, ok := raw.(string)
			if !ok {
				return nil, errors.Errorf("non-string digest in %s: %v", SDKey, raw)
			}
			d, ok := byDigest[digest]
			if !ok {
				continue
			}
			if used[digest] {
				return nil, &InvalidDisclosureError{Disclosure: d.Encoded, Reason: "digest referenced more than once"}
			}
			used[digest] = true
			if _, exists := t[d.Name]; exists {
				return nil, &InvalidDisclosureError{Disclosure: d.Encoded, Reason: "attribute already present: " + d.Name}
			}
			t[d.Name] = credential.DeepCopy(d.Value)
		}
		for k, child := range t {
			resolvedChild, err := resolveValue(child, byDigest, used)
			if err != nil {
				return nil, err
			}
			t[k] = resolvedChild
		}
		return t, nil
	case []any:
		for i, child := range t {
			resolvedChild, err := resolveValue(child, byDigest, used)
			if err != nil {
				return nil, err
			}
			t[i] = resolvedChild
		}
		return t, nil
	}
	return v, nil
}

// SelectDisclosures keeps the encoded disclosures whose attribute name is one of names, preserving order.
// Holders use it to reveal a subset of what the issuer disclosed.
func SelectDisclosures(encoded []string, names ...string) ([]string, error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	selected := make([]string, 0, len(encoded))
	for _, e := range encoded {
		d, err := ParseDisclosure(e)
		if err != nil {
			return nil, err
		}
		if wanted[d.Name] {
			selected = append(selected, e)
		}
	}
	return selected, nil
}
