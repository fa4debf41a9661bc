package sdjwt

import (
	"crypto/sha256"
	"encoding/base64"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/vc-engine/internal/util"
	"github.com/tbd54566975/vc-engine/pkg/credential"
)

// SaltGenerator returns a fresh encoded salt
type SaltGenerator func() (string, error)

// RandomSalt returns SaltSize random bytes, base64url encoded
func RandomSalt() (string, error) {
	salt, err := util.GenerateSalt(SaltSize)
	if err != nil {
		return "", errors.Wrap(err, "generating disclosure salt")
	}
	return base64.RawURLEncoding.EncodeToString(salt), nil
}

type Option func(*Encoder)

// WithSaltGenerator replaces the random salt source, e.g. to get reproducible digests in tests
func WithSaltGenerator(gen SaltGenerator) Option {
	return func(e *Encoder) {
		e.salt = gen
	}
}

// Encoder splits a document into a redacted core and its disclosures
type Encoder struct {
	salt SaltGenerator
}

func NewEncoder(opts ...Option) *Encoder {
	e := &Encoder{salt: RandomSalt}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the output of an encoding pass
type Result struct {
	// Redacted is the input document with disclosable attributes replaced by digests
	Redacted map[string]any
	// Disclosures are ordered depth first, nested attributes before their parent, siblings by name
	Disclosures []Disclosure
	Decoys      []string
}

// EncodedDisclosures returns the disclosures in their wire form
func (r *Result) EncodedDisclosures() []string {
	out := make([]string, 0, len(r.Disclosures))
	for _, d := range r.Disclosures {
		out = append(out, d.Encoded)
	}
	return out
}

// Encode redacts the attributes of doc selected by sdMap. doc is not modified.
func (e *Encoder) Encode(doc map[string]any, sdMap SDMap) (*Result, error) {
	result := new(Result)
	redacted, err := e.encodeObject(credential.DeepCopyMap(doc), sdMap, "", result)
	if err != nil {
		return nil, err
	}
	result.Redacted = redacted
	logrus.Debugf("sd encoding produced %d disclosures and %d decoys", len(result.Disclosures), len(result.Decoys))
	return result, nil
}

// EncodeDocument applies sdMap to the credential subject of doc and returns the full credential with the
// subject redacted
func (e *Encoder) EncodeDocument(doc *credential.Document, sdMap SDMap) (map[string]any, *Result, error) {
	result, err := e.Encode(doc.CredentialSubject(), sdMap)
	if err != nil {
		return nil, nil, err
	}
	vc := doc.ToMap()
	vc["credentialSubject"] = result.Redacted
	return vc, result, nil
}

func (e *Encoder) encodeObject(obj map[string]any, sdMap SDMap, path string, result *Result) (map[string]any, error) {
	if sdMap.Decoys < 0 {
		return nil, errors.Errorf("decoy count must not be negative, got %d", sdMap.Decoys)
	}
	for _, name := range sdMap.sortedNames() {
		if _, ok := obj[name]; !ok {
			return nil, &PathNotFoundError{Path: path + name}
		}
	}

	var digests []string
	if existing, ok := obj[SDKey].([]any); ok {
		for _, d := range existing {
			if s, ok := d.(string); ok {
				digests = append(digests, s)
			}
		}
	}

	for _, name := range sdMap.sortedNames() {
		field := sdMap.Fields[name]
		value := obj[name]

		if field.Children != nil {
			child, ok := value.(map[string]any)
			if !ok {
				return nil, errors.Errorf("nested disclosure map for %s%s requires an object, got %T", path, name, value)
			}
			encoded, err := e.encodeObject(child, *field.Children, path+name+".", result)
			if err != nil {
				return nil, err
			}
			value = encoded
		}

		if !field.SD {
			obj[name] = value
			continue
		}
		salt, err := e.salt()
		if err != nil {
			return nil, err
		}
		disclosure, err := NewDisclosure(salt, name, value)
		if err != nil {
			return nil, errors.Wrapf(err, "creating disclosure for %s%s", path, name)
		}
		delete(obj, name)
		digests = append(digests, disclosure.Digest)
		result.Disclosures = append(result.Disclosures, *disclosure)
	}

	if sdMap.DecoyMode == DecoyRandom {
		for i := 0; i < sdMap.Decoys; i++ {
			decoy, err := decoyDigest()
			if err != nil {
				return nil, err
			}
			digests = append(digests, decoy)
			result.Decoys = append(result.Decoys, decoy)
		}
	}

	if len(digests) > 0 {
		sort.Strings(digests)
		sd := make([]any, 0, len(digests))
		for _, d := range digests {
			sd = append(sd, d)
		}
		obj[SDKey] = sd
	}
	return obj, nil
}

// NewDisclosure builds the disclosure for the salted attribute. Encoding and digest are pure functions of
// the triple.
func NewDisclosure(salt, name string, value any) (*Disclosure, error) {
	if salt == "" {
		return nil, errors.New("salt cannot be empty")
	}
	if name == SDKey || name == SDAlgKey {
		return nil, errors.Errorf("reserved attribute name: %s", name)
	}
	raw, err := credential.Canonicalize([]any{salt, name, value})
	if err != nil {
		return nil, errors.Wrap(err, "serializing disclosure")
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return &Disclosure{
		Salt:    salt,
		Name:    name,
		Value:   value,
		Encoded: encoded,
		Digest:  Digest(encoded),
	}, nil
}

// Digest is the base64url SHA-256 of the ASCII disclosure
func Digest(encodedDisclosure string) string {
	sum := sha256.Sum256([]byte(encodedDisclosure))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// decoys hash random bytes so they share the length and alphabet of real digests
func decoyDigest() (string, error) {
	random, err := util.GenerateSalt(sha256.Size)
	if err != nil {
		return "", errors.Wrap(err, "generating decoy")
	}
	sum := sha256.Sum256(random)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}
