package credential

import (
	"fmt"
	"strconv"
	"time"
)

const (
	W3CV11Context = "https://www.w3.org/2018/credentials/v1"
	W3CV2Context  = "https://www.w3.org/ns/credentials/v2"

	VerifiableCredentialType   = "VerifiableCredential"
	VerifiablePresentationType = "VerifiablePresentation"

	StatusList2021EntryType = "StatusList2021Entry"
	JSONSchemaType          = "JsonSchema"
	StatusPurposeRevocation = "revocation"

	// IDProperty is the attribute of the credential subject naming the subject
	IDProperty = "id"
)

// StatusReference points at an entry in a status list credential
type StatusReference struct {
	URI   string
	Index int
}

func (s StatusReference) toMap() map[string]any {
	return map[string]any{
		"id":                   fmt.Sprintf("%s#%d", s.URI, s.Index),
		"type":                 StatusList2021EntryType,
		"statusPurpose":        StatusPurposeRevocation,
		"statusListIndex":      strconv.Itoa(s.Index),
		"statusListCredential": s.URI,
	}
}

// Document is a built credential. It cannot be modified once built; every accessor returns a copy.
type Document struct {
	builderType BuilderType
	id          string
	contexts    []string
	types       []string
	issuer      string
	subject     string
	validFrom   time.Time
	validUntil  *time.Time
	status      *StatusReference
	schemaID    string
	data        map[string]any
}

func (d *Document) ID() string {
	return d.id
}

func (d *Document) Contexts() []string {
	return append([]string(nil), d.contexts...)
}

func (d *Document) Types() []string {
	return append([]string(nil), d.types...)
}

func (d *Document) Issuer() string {
	return d.issuer
}

func (d *Document) Subject() string {
	return d.subject
}

func (d *Document) ValidFrom() time.Time {
	return d.validFrom
}

// ValidUntil returns the end of the validity window, if one was set
func (d *Document) ValidUntil() (time.Time, bool) {
	if d.validUntil == nil {
		return time.Time{}, false
	}
	return *d.validUntil, true
}

func (d *Document) Status() (StatusReference, bool) {
	if d.status == nil {
		return StatusReference{}, false
	}
	return *d.status, true
}

// SchemaID returns the id of the JSON schema the credential claims to follow, if any
func (d *Document) SchemaID() string {
	return d.schemaID
}

// CredentialSubject returns the attribute tree including the subject's id
func (d *Document) CredentialSubject() map[string]any {
	subject := DeepCopyMap(d.data)
	subject[IDProperty] = d.subject
	return subject
}

// ToMap renders the document in the JSON data model selected by its builder type
func (d *Document) ToMap() map[string]any {
	validFromKey, validUntilKey := "validFrom", "validUntil"
	if d.builderType == W3CV11 {
		validFromKey, validUntilKey = "issuanceDate", "expirationDate"
	}

	out := map[string]any{
		"@context":          toAnySlice(d.contexts),
		"type":              toAnySlice(d.types),
		"id":                d.id,
		"issuer":            d.issuer,
		validFromKey:        d.validFrom.UTC().Format(time.RFC3339),
		"credentialSubject": d.CredentialSubject(),
	}
	if d.validUntil != nil {
		out[validUntilKey] = d.validUntil.UTC().Format(time.RFC3339)
	}
	if d.status != nil {
		out["credentialStatus"] = d.status.toMap()
	}
	if d.schemaID != "" {
		out["credentialSchema"] = map[string]any{"id": d.schemaID, "type": JSONSchemaType}
	}
	return out
}

// Canonical returns the canonical serialization of the document
func (d *Document) Canonical() ([]byte, error) {
	return Canonicalize(d.ToMap())
}

func toAnySlice(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
