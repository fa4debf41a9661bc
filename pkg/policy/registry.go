package policy

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Registry maps policy names to policies. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
	order    []string
	sealed   bool
}

func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

// Register adds policies in order, failing on the first duplicate name
func (r *Registry) Register(policies ...Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrRegistrySealed
	}
	for _, p := range policies {
		if p == nil {
			return errors.New("policy cannot be nil")
		}
		name := p.Name()
		if name == "" {
			return errors.New("policy name cannot be empty")
		}
		if _, exists := r.policies[name]; exists {
			return &DuplicatePolicyError{Name: name}
		}
		r.policies[name] = p
		r.order = append(r.order, name)
	}
	return nil
}

func (r *Registry) Lookup(name string) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	return p, ok
}

// Names returns the registered names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Seal makes the registry read only
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Clone returns an unsealed registry with the same policies, for callers who want to add their own
// policies on top of another registry
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := NewRegistry()
	for _, name := range r.order {
		clone.policies[name] = r.policies[name]
		clone.order = append(clone.order, name)
	}
	return clone
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry holds the built-in policies. It is populated on first use and sealed afterwards.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		if err := defaultRegistry.Register(Builtins()...); err != nil {
			logrus.WithError(err).Fatal("registering built-in policies")
		}
		defaultRegistry.Seal()
	})
	return defaultRegistry
}
