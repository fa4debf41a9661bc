package sdjwt

import (
	"fmt"
	"sort"
	"strings"
)

const (
	// SDKey holds the digests of the redacted fields of an object
	SDKey = "_sd"
	// SDAlgKey advertises the digest algorithm in the top level payload
	SDAlgKey = "_sd_alg"
	// SHA256 is the only supported digest algorithm
	SHA256 = "sha-256"

	// Separator joins the issuer signed part and the disclosures of a combined SD-JWT
	Separator = "~"

	// SaltSize is the number of random bytes in every salt
	SaltSize = 16
)

// DecoyMode controls generation of decoy digests
type DecoyMode int

const (
	DecoyNone DecoyMode = iota
	// DecoyRandom adds the configured number of random digests at every level with a disclosure map
	DecoyRandom
)

func (m DecoyMode) String() string {
	switch m {
	case DecoyNone:
		return "NONE"
	case DecoyRandom:
		return "RANDOM"
	}
	return fmt.Sprintf("DecoyMode(%d)", int(m))
}

// ParseDecoyMode is the inverse of DecoyMode.String, case insensitive
func ParseDecoyMode(s string) (DecoyMode, error) {
	switch strings.ToUpper(s) {
	case "", "NONE":
		return DecoyNone, nil
	case "RANDOM":
		return DecoyRandom, nil
	}
	return DecoyNone, fmt.Errorf("unknown decoy mode: %s", s)
}

// SDField is the disclosure directive for one attribute. SD marks the attribute itself as selectively
// disclosable; Children applies a nested map to an object valued attribute.
type SDField struct {
	SD       bool
	Children *SDMap
}

// SDMap maps attribute names to their disclosure directives
type SDMap struct {
	Fields    map[string]SDField
	DecoyMode DecoyMode
	Decoys    int
}

// NewSDMap marks each of the named top level attributes as selectively disclosable
func NewSDMap(names ...string) SDMap {
	fields := make(map[string]SDField, len(names))
	for _, name := range names {
		fields[name] = SDField{SD: true}
	}
	return SDMap{Fields: fields}
}

func (m SDMap) WithDecoys(mode DecoyMode, count int) SDMap {
	m.DecoyMode = mode
	m.Decoys = count
	return m
}

func (m SDMap) sortedNames() []string {
	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Disclosure is one redacted attribute
type Disclosure struct {
	Salt  string
	Name  string
	Value any
	// Encoded is the base64url form carried after the envelope
	Encoded string
	// Digest is what replaces the attribute in the redacted document
	Digest string
}

// PathNotFoundError is returned when a disclosure map names an attribute missing from the document
type PathNotFoundError struct {
	Path string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("disclosure path not found in document: %s", e.Path)
}

// InvalidDisclosureError is returned by the verifier side when a disclosure cannot be matched
// against the payload it was presented with
type InvalidDisclosureError struct {
	Disclosure string
	Reason     string
}

func (e *InvalidDisclosureError) Error() string {
	return fmt.Sprintf("invalid disclosure<%s>: %s", e.Disclosure, e.Reason)
}
