package did

import (
	"fmt"
	"sync"

	didsdk "github.com/TBD54566975/ssi-sdk/did"
	"github.com/TBD54566975/ssi-sdk/did/key"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/vc-engine/internal/keyaccess"
	"github.com/tbd54566975/vc-engine/internal/util"
)

// KeyResolver resolves did:key identifiers locally by expanding them
type KeyResolver struct{}

func (KeyResolver) ResolveKey(did, kid string) (*keyaccess.KeyHandle, error) {
	if did == "" {
		did = util.StripFragment(kid)
	}
	expanded, err := key.DIDKey(did).Expand()
	if err != nil {
		return nil, errors.Wrapf(err, "expanding did:key: %s", did)
	}
	methodID, err := selectVerificationMethod(*expanded, kid)
	if err != nil {
		return nil, err
	}
	pubKey, err := didsdk.GetKeyFromVerificationMethod(*expanded, methodID)
	if err != nil {
		return nil, errors.Wrapf(err, "getting key for verification method: %s", methodID)
	}
	return keyaccess.NewPublicKeyHandle(methodID, pubKey)
}

// StaticResolver answers from a fixed set of registered keys. It is useful for trust anchors whose DID
// method cannot be resolved locally.
type StaticResolver struct {
	mu   sync.RWMutex
	keys map[string]keyaccess.KeyHandle
}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{keys: make(map[string]keyaccess.KeyHandle)}
}

// Add registers the public half of the key for the DID
func (s *StaticResolver) Add(did string, handle keyaccess.KeyHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[did] = handle.Public()
}

func (s *StaticResolver) ResolveKey(did, kid string) (*keyaccess.KeyHandle, error) {
	if did == "" {
		did = util.StripFragment(kid)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	handle, ok := s.keys[did]
	if !ok {
		return nil, errors.Errorf("no key registered for did: %s", did)
	}
	return &handle, nil
}

// MultiMethodResolver dispatches to a resolver per DID method
type MultiMethodResolver struct {
	resolvers map[didsdk.Method]Resolver
}

// BuildMultiMethodResolver builds a multi method DID resolver from a list of methods to support resolution for
func BuildMultiMethodResolver(methods []string) (*MultiMethodResolver, error) {
	if len(methods) == 0 {
		return nil, errors.New("no methods provided")
	}
	resolvers := make(map[didsdk.Method]Resolver, len(methods))
	for _, method := range methods {
		resolver, err := getKnownResolver(method)
		if err != nil {
			// not all methods are supported locally, so we skip the ones we can't build
			logrus.WithError(err).Errorf("failed to create resolver for method %s", method)
			continue
		}
		resolvers[didsdk.Method(method)] = resolver
	}
	if len(resolvers) == 0 {
		return nil, errors.New("no resolvers created")
	}
	return &MultiMethodResolver{resolvers: resolvers}, nil
}

// With adds or replaces the resolver for a method
func (m *MultiMethodResolver) With(method string, resolver Resolver) *MultiMethodResolver {
	m.resolvers[didsdk.Method(method)] = resolver
	return m
}

func (m *MultiMethodResolver) ResolveKey(did, kid string) (*keyaccess.KeyHandle, error) {
	target := did
	if target == "" {
		target = util.StripFragment(kid)
	}
	method, err := util.GetMethodForDID(target)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", util.SanitizeLog(target))
	}
	resolver, ok := m.resolvers[method]
	if !ok {
		return nil, fmt.Errorf("unsupported method: %s", method)
	}
	return resolver.ResolveKey(did, kid)
}

func getKnownResolver(method string) (Resolver, error) {
	switch didsdk.Method(method) {
	case didsdk.KeyMethod:
		return KeyResolver{}, nil
	}
	return nil, fmt.Errorf("unsupported method: %s", method)
}
