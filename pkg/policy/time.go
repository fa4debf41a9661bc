package policy

import (
	"time"

	"github.com/pkg/errors"

	"github.com/tbd54566975/vc-engine/pkg/envelope"
)

// timeFromTarget reads a JWT numeric date claim, falling back to an RFC 3339 property of the data
func timeFromTarget(target *Target, claim string, properties ...string) (time.Time, bool, error) {
	if t, ok, err := target.Envelope.TimeClaim(claim); ok || err != nil {
		return t, ok, err
	}
	for _, prop := range properties {
		raw, ok := target.Data[prop].(string)
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, true, errors.Wrapf(err, "parsing %s", prop)
		}
		return t, true, nil
	}
	return time.Time{}, false, nil
}

func verifyNotExpired(target *Target, _ any, vctx *Context) (any, error) {
	exp, ok, err := timeFromTarget(target, envelope.ExpirationClaim, "validUntil", "expirationDate")
	if err != nil {
		return nil, err
	}
	if !ok {
		return "no expiration", nil
	}
	now := vctx.Clock.Now()
	if now.After(exp) {
		return nil, errors.Errorf("expired at %s, %s ago", exp.Format(time.RFC3339), now.Sub(exp).Round(time.Second))
	}
	return map[string]any{"expiresAt": exp.Format(time.RFC3339)}, nil
}

func verifyNotBefore(target *Target, _ any, vctx *Context) (any, error) {
	nbf, ok, err := timeFromTarget(target, envelope.NotBeforeClaim, "validFrom", "issuanceDate")
	if err != nil {
		return nil, err
	}
	if !ok {
		return "no validity start", nil
	}
	now := vctx.Clock.Now()
	if now.Before(nbf) {
		return nil, errors.Errorf("not valid before %s, %s from now", nbf.Format(time.RFC3339), nbf.Sub(now).Round(time.Second))
	}
	return map[string]any{"validFrom": nbf.Format(time.RFC3339)}, nil
}
