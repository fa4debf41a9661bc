package wallet

import (
	"fmt"

	"github.com/tbd54566975/vc-engine/pkg/policy"
)

// Format is the envelope form of a stored credential
type Format string

const (
	JWTFormat   Format = "jwt_vc"
	SDJWTFormat Format = "vc+sd-jwt"
)

// StoredCredential is a verified credential together with the metadata extracted on import
type StoredCredential struct {
	ID         string   `json:"id"`
	Alias      string   `json:"alias,omitempty"`
	Format     Format   `json:"format"`
	Issuer     string   `json:"issuer"`
	Subject    string   `json:"subject,omitempty"`
	Types      []string `json:"types,omitempty"`
	ImportedAt string   `json:"importedAt"`
	// Artifact is the credential exactly as received, including all disclosures
	Artifact string `json:"artifact"`
}

// NotFoundError is returned when a key or credential is not in the wallet
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s<%s> not found", e.Kind, e.ID)
}

// ImportRejectedError carries the failed verification report of a credential that was not imported
type ImportRejectedError struct {
	Report *policy.Report
}

func (e *ImportRejectedError) Error() string {
	failed := e.Report.Failed()
	names := make([]string, 0, len(failed))
	for _, f := range failed {
		names = append(names, f.Policy)
	}
	return fmt.Sprintf("credential rejected by policies: %v", names)
}

// PresentRequest selects the stored credentials to present and what to reveal from each
type PresentRequest struct {
	// HolderKeyID is the stored key that signs the presentation
	HolderKeyID   string
	CredentialIDs []string
	// Disclose lists, per selective disclosure credential ID, the claim names to reveal. Credentials without an
	// entry are presented with every disclosure.
	Disclose map[string][]string
	Nonce    string
	Audience []string
}
