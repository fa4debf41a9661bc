package schema

import (
	"sync"

	"github.com/TBD54566975/ssi-sdk/credential/schema"
	"github.com/pkg/errors"
)

const idProperty = "$id"

// ErrSchemaNotFound is returned for an identifier no schema is known for
var ErrSchemaNotFound = errors.New("schema not found")

// Resolution is an interface that defines a generic method of resolving a schema
type Resolution interface {
	Resolve(id string) (schema.JSONSchema, error)
}

// StaticResolution resolves schemas registered ahead of time. It is safe for concurrent use.
type StaticResolution struct {
	mu      sync.RWMutex
	schemas map[string]schema.JSONSchema
}

// NewStaticResolution registers each schema under its $id
func NewStaticResolution(schemas ...schema.JSONSchema) (*StaticResolution, error) {
	s := &StaticResolution{schemas: make(map[string]schema.JSONSchema, len(schemas))}
	for _, js := range schemas {
		id, ok := js[idProperty].(string)
		if !ok || id == "" {
			return nil, errors.Errorf("schema has no %s", idProperty)
		}
		s.schemas[id] = js
	}
	return s, nil
}

// Add registers a schema under an explicit identifier, replacing any previous one
func (s *StaticResolution) Add(id string, js schema.JSONSchema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schemas[id] = js
}

func (s *StaticResolution) Resolve(id string) (schema.JSONSchema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	js, ok := s.schemas[id]
	if !ok {
		return nil, errors.Wrapf(ErrSchemaNotFound, "%s", id)
	}
	return js, nil
}
