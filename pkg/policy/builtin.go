package policy

const (
	SignaturePolicy      = "signature"
	SDDisclosuresPolicy  = "sd-disclosures"
	ExpiredPolicy        = "expired"
	NotBeforePolicy      = "not-before"
	AllowedIssuerPolicy  = "allowed-issuer"
	SchemaPolicy         = "schema"
	CELPolicy            = "cel"
	RequiredFieldsPolicy = "required-fields"
	HolderBindingPolicy  = "holder-binding"
	NoncePolicy          = "nonce"
	AudiencePolicy       = "audience"
)

// Context value keys read by the built-in policies when no arguments are given
const (
	NonceValue    = "nonce"
	AudienceValue = "audience"
)

// Builtins returns a fresh instance of every built-in policy
func Builtins() []Policy {
	return []Policy{
		New(SignaturePolicy, "Checks the envelope signature against the issuer's resolved key", verifySignature),
		New(SDDisclosuresPolicy, "Checks that every presented disclosure matches a digest in the payload", verifyDisclosures),
		New(ExpiredPolicy, "Fails once the expiration time has passed", verifyNotExpired),
		New(NotBeforePolicy, "Fails before the validity period has started", verifyNotBefore),
		New(AllowedIssuerPolicy, "Checks the issuer against an allow list", verifyAllowedIssuer),
		New(SchemaPolicy, "Validates the credential against a JSON schema", verifySchema),
		New(CELPolicy, "Evaluates a CEL expression over the credential", verifyCEL),
		New(RequiredFieldsPolicy, "Checks that JSONPath expressions resolve in the credential", verifyRequiredFields),
		New(HolderBindingPolicy, "Checks that the presenter is the subject of every presented credential", verifyHolderBinding),
		New(NoncePolicy, "Checks the nonce claim against the expected challenge", verifyNonce),
		New(AudiencePolicy, "Checks that the expected audience is among the aud claim values", verifyAudience),
	}
}

// stringArgs accepts a single string or a list of strings
func stringArgs(policy string, args any) ([]string, error) {
	switch a := args.(type) {
	case string:
		return []string{a}, nil
	case []string:
		return a, nil
	case []any:
		out := make([]string, 0, len(a))
		for _, v := range a {
			s, ok := v.(string)
			if !ok {
				return nil, &ArgumentError{Policy: policy, Reason: "expected a list of strings"}
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	}
	return nil, &ArgumentError{Policy: policy, Reason: "expected a string or a list of strings"}
}
