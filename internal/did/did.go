package did

import (
	"strings"

	"github.com/TBD54566975/ssi-sdk/crypto"
	didsdk "github.com/TBD54566975/ssi-sdk/did"
	"github.com/TBD54566975/ssi-sdk/did/key"
	"github.com/pkg/errors"

	"github.com/tbd54566975/vc-engine/internal/keyaccess"
)

// Resolver maps a DID and an optional key id to a public key handle usable for verification
type Resolver interface {
	ResolveKey(did, kid string) (*keyaccess.KeyHandle, error)
}

// Identity is a freshly generated DID together with its signing key. The key's ID is the DID URL of its
// verification method.
type Identity struct {
	DID string
	Key *keyaccess.KeyHandle
}

// CreateDIDKey generates a new did:key identity of the given key type
func CreateDIDKey(kt crypto.KeyType) (*Identity, error) {
	privKey, didKey, err := key.GenerateDIDKey(kt)
	if err != nil {
		return nil, errors.Wrap(err, "could not create did:key")
	}
	expanded, err := didKey.Expand()
	if err != nil {
		return nil, errors.Wrap(err, "error generating did:key document")
	}
	if len(expanded.VerificationMethod) == 0 {
		return nil, errors.Errorf("did:key<%s> expanded without verification methods", didKey.String())
	}
	handle, err := keyaccess.NewKeyHandle(expanded.VerificationMethod[0].ID, privKey)
	if err != nil {
		return nil, errors.Wrap(err, "wrapping did:key private key")
	}
	return &Identity{DID: didKey.String(), Key: handle}, nil
}

// selectVerificationMethod picks the method matching kid, which may be a full DID URL or just the fragment.
// An empty kid selects the first method.
func selectVerificationMethod(doc didsdk.Document, kid string) (string, error) {
	methods := doc.VerificationMethod
	if len(methods) == 0 {
		return "", errors.Errorf("did doc: %s has no verification methods", doc.ID)
	}
	if kid == "" {
		return methods[0].ID, nil
	}
	_, fragment, hasFragment := strings.Cut(kid, "#")
	for _, method := range methods {
		if method.ID == kid {
			return method.ID, nil
		}
		if hasFragment && strings.HasSuffix(method.ID, "#"+fragment) {
			return method.ID, nil
		}
	}
	if len(methods) == 1 && kid == doc.ID {
		return methods[0].ID, nil
	}
	return "", errors.Errorf("did doc: %s has no verification method with id: %s", doc.ID, kid)
}
