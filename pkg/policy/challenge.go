package policy

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/tbd54566975/vc-engine/pkg/envelope"
)

// verifyNonce compares the nonce claim with the args, or the "nonce" context value when no args are given
func verifyNonce(target *Target, args any, vctx *Context) (any, error) {
	expected, _ := args.(string)
	if expected == "" {
		expected = vctx.StringValue(NonceValue)
	}
	if expected == "" {
		return nil, &ArgumentError{Policy: NoncePolicy, Reason: "no expected nonce"}
	}
	actual := target.Envelope.StringClaim(envelope.NonceClaim)
	if actual != expected {
		return nil, errors.Errorf("nonce<%s> does not match the expected challenge", actual)
	}
	return actual, nil
}

// verifyAudience checks that the expected audience, from args or the "audience" context value, is in aud
func verifyAudience(target *Target, args any, vctx *Context) (any, error) {
	expected, _ := args.(string)
	if expected == "" {
		expected = vctx.StringValue(AudienceValue)
	}
	if expected == "" {
		return nil, &ArgumentError{Policy: AudiencePolicy, Reason: "no expected audience"}
	}
	audience := target.Envelope.Audience()
	if !lo.Contains(audience, expected) {
		return nil, errors.Errorf("audience %v does not include %s", audience, expected)
	}
	return expected, nil
}
