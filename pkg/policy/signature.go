package policy

import (
	"github.com/pkg/errors"

	"github.com/tbd54566975/vc-engine/internal/util"
)

func verifySignature(target *Target, _ any, vctx *Context) (any, error) {
	if vctx.Resolver == nil {
		return nil, errors.New("no DID resolver configured")
	}
	env := target.Envelope
	signer, err := expectedSigner(target)
	if err != nil {
		return nil, err
	}
	kid := env.KeyID()
	if kidDID := util.StripFragment(kid); kidDID != "" && kidDID != signer {
		return nil, errors.Errorf("kid<%s> does not belong to signer<%s>", util.SanitizeLog(kid), util.SanitizeLog(signer))
	}

	key, err := vctx.Resolver.ResolveKey(signer, kid)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving key for signer<%s>", util.SanitizeLog(signer))
	}
	valid, err := env.VerifySignature(vctx.Verifier, *key)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, errors.Errorf("signature does not verify with key<%s>", key.ID)
	}
	return map[string]any{"kid": key.ID, "alg": env.Algorithm()}, nil
}

// expectedSigner is the DID whose key must have produced the signature: the iss claim, or the issuer of a
// credential or holder of a presentation when iss is absent. Both must agree when both are present.
func expectedSigner(target *Target) (string, error) {
	iss := target.Envelope.Issuer()
	named := namedSigner(target)
	switch {
	case iss != "" && named != "" && iss != named:
		field := "issuer"
		if target.Kind == PresentationKind {
			field = "holder"
		}
		return "", errors.Errorf("iss<%s> does not match %s<%s>", util.SanitizeLog(iss), field, util.SanitizeLog(named))
	case iss != "":
		return iss, nil
	case named != "":
		return named, nil
	}
	return "", errors.New("envelope names no signer: missing iss claim and issuer")
}

func namedSigner(target *Target) string {
	if target.Kind == PresentationKind {
		holder, _ := target.Data["holder"].(string)
		return holder
	}
	return credentialIssuer(target.Data)
}

// credentialIssuer reads the vc issuer, which may be a string or an object with an id
func credentialIssuer(data map[string]any) string {
	switch i := data["issuer"].(type) {
	case string:
		return i
	case map[string]any:
		id, _ := i["id"].(string)
		return id
	}
	return ""
}

func verifyDisclosures(target *Target, _ any, _ *Context) (any, error) {
	if target.DisclosureErr != nil {
		return nil, target.DisclosureErr
	}
	return map[string]any{"disclosed": len(target.Envelope.Disclosures)}, nil
}
