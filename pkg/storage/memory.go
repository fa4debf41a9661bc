package storage

import (
	"context"
	"fmt"
	"sync"
)

func init() {
	if err := RegisterStorage(Memory, func() ServiceStorage { return new(MemoryDB) }); err != nil {
		panic(err)
	}
}

// MemoryDB is an in memory implementation of ServiceStorage that is safe for concurrent use
type MemoryDB struct {
	maps sync.Map
}

func (m *MemoryDB) Init(...Option) error {
	return nil
}

func (m *MemoryDB) Type() Type {
	return Memory
}

func (m *MemoryDB) URI() string {
	return "memory"
}

func (m *MemoryDB) IsOpen() bool {
	return true
}

func (m *MemoryDB) Close() error {
	return nil
}

func (m *MemoryDB) namespace(namespace string, create bool) (*sync.Map, bool) {
	if create {
		ns, _ := m.maps.LoadOrStore(namespace, new(sync.Map))
		return ns.(*sync.Map), true
	}
	ns, ok := m.maps.Load(namespace)
	if !ok {
		return nil, false
	}
	return ns.(*sync.Map), true
}

func (m *MemoryDB) Write(_ context.Context, namespace, key string, value []byte) error {
	ns, _ := m.namespace(namespace, true)
	ns.Store(key, append([]byte(nil), value...))
	return nil
}

func (m *MemoryDB) Read(_ context.Context, namespace, key string) ([]byte, error) {
	ns, ok := m.namespace(namespace, false)
	if !ok {
		return nil, nil
	}
	v, ok := ns.Load(key)
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v.([]byte)...), nil
}

func (m *MemoryDB) Exists(ctx context.Context, namespace, key string) (bool, error) {
	v, err := m.Read(ctx, namespace, key)
	return v != nil, err
}

func (m *MemoryDB) ReadAll(_ context.Context, namespace string) (map[string][]byte, error) {
	result := make(map[string][]byte)
	ns, ok := m.namespace(namespace, false)
	if !ok {
		return result, nil
	}
	ns.Range(func(key, value any) bool {
		result[key.(string)] = append([]byte(nil), value.([]byte)...)
		return true
	})
	return result, nil
}

func (m *MemoryDB) ReadAllKeys(_ context.Context, namespace string) ([]string, error) {
	var keys []string
	ns, ok := m.namespace(namespace, false)
	if !ok {
		return keys, nil
	}
	ns.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	return keys, nil
}

func (m *MemoryDB) Delete(_ context.Context, namespace, key string) error {
	ns, ok := m.namespace(namespace, false)
	if !ok {
		return fmt.Errorf("namespace<%s> does not exist", namespace)
	}
	ns.Delete(key)
	return nil
}

func (m *MemoryDB) DeleteNamespace(_ context.Context, namespace string) error {
	if _, loaded := m.maps.LoadAndDelete(namespace); !loaded {
		return fmt.Errorf("could not delete namespace<%s>", namespace)
	}
	return nil
}
