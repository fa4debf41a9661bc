package policy

import (
	"fmt"

	"github.com/tbd54566975/vc-engine/internal/util"
	"github.com/tbd54566975/vc-engine/pkg/envelope"
)

// verifyHolderBinding checks that whoever presents a presentation is the subject of every credential in
// it. The presenter is the iss claim, or the DID of the header kid when iss is absent. Credential subjects
// are compared without their fragment.
func verifyHolderBinding(target *Target, _ any, _ *Context) (any, error) {
	presenter := presenterOf(target.Envelope)
	if presenter == "" {
		return nil, &MalformedPresentationError{Reason: "no presenter: missing iss claim and kid header"}
	}

	vp, ok := target.Envelope.Payload[envelope.VPClaim].(map[string]any)
	if !ok {
		return nil, &MalformedPresentationError{Reason: `no "vp" field in presentation`}
	}
	credentials, ok := vp["verifiableCredential"].([]any)
	if !ok {
		return nil, &MalformedPresentationError{Reason: `no "verifiableCredential" array in presentation`}
	}

	var mismatched []string
	for i, entry := range credentials {
		compact, ok := entry.(string)
		if !ok {
			return nil, &MalformedPresentationError{Reason: fmt.Sprintf("credential at position %d is not a compact string", i)}
		}
		nested, err := envelope.Decode(compact)
		if err != nil {
			return nil, &MalformedPresentationError{Reason: fmt.Sprintf("credential at position %d: %s", i, err)}
		}
		sub, ok := nested.Payload[envelope.SubjectClaim].(string)
		if !ok || sub == "" {
			return nil, &MalformedPresentationError{Reason: fmt.Sprintf("credential at position %d has no sub claim", i)}
		}
		if subject := util.StripFragment(sub); subject != presenter {
			mismatched = append(mismatched, subject)
		}
	}
	if len(mismatched) > 0 {
		return nil, &HolderBindingMismatchError{Presenter: presenter, Mismatched: mismatched}
	}
	return presenter, nil
}

func presenterOf(env *envelope.Envelope) string {
	if iss := env.Issuer(); iss != "" {
		return iss
	}
	return util.StripFragment(env.KeyID())
}
