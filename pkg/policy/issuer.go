package policy

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

func verifyAllowedIssuer(target *Target, args any, _ *Context) (any, error) {
	allowed, err := stringArgs(AllowedIssuerPolicy, args)
	if err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		return nil, &ArgumentError{Policy: AllowedIssuerPolicy, Reason: "no issuers allowed"}
	}
	issuer := target.Envelope.Issuer()
	if issuer == "" {
		issuer = credentialIssuer(target.Data)
	}
	if !lo.Contains(allowed, issuer) {
		return nil, errors.Errorf("issuer<%s> is not allowed", issuer)
	}
	return issuer, nil
}
