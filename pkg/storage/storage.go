package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Type string

const (
	Bolt   Type = "bolt"
	Redis  Type = "redis"
	Memory Type = "memory"
)

type OptionKey string

const (
	BoltDBFilePathOption OptionKey = "boltdb-filepath-option"
	RedisAddressOption   OptionKey = "redis-address-option"
	PasswordOption       OptionKey = "storage-password-option"
	RedisFlushOption     OptionKey = "redis-flush-option"
)

type Option struct {
	ID     OptionKey `json:"id,omitempty"`
	Option any       `json:"option,omitempty"`
}

func getOption(opts []Option, key OptionKey) (any, bool) {
	for _, opt := range opts {
		if opt.ID == key {
			return opt.Option, true
		}
	}
	return nil, false
}

// ServiceStorage describes the api for storage independent of DB providers
type ServiceStorage interface {
	Init(opts ...Option) error
	Type() Type
	URI() string
	IsOpen() bool
	Close() error
	Write(ctx context.Context, namespace, key string, value []byte) error
	// Read returns nil without an error when the key does not exist
	Read(ctx context.Context, namespace, key string) ([]byte, error)
	Exists(ctx context.Context, namespace, key string) (bool, error)
	ReadAll(ctx context.Context, namespace string) (map[string][]byte, error)
	ReadAllKeys(ctx context.Context, namespace string) ([]string, error)
	Delete(ctx context.Context, namespace, key string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

var availableStorages = make(map[Type]func() ServiceStorage)

// RegisterStorage makes a storage provider available to NewStorage
func RegisterStorage(t Type, factory func() ServiceStorage) error {
	if _, ok := availableStorages[t]; ok {
		return fmt.Errorf("storage already registered: %s", t)
	}
	availableStorages[t] = factory
	return nil
}

// AvailableStorage returns the registered providers
func AvailableStorage() []Type {
	types := make([]Type, 0, len(availableStorages))
	for t := range availableStorages {
		types = append(types, t)
	}
	return types
}

// NewStorage creates and initializes a storage instance of the given provider
func NewStorage(storageProvider Type, opts ...Option) (ServiceStorage, error) {
	factory, ok := availableStorages[storageProvider]
	if !ok {
		return nil, fmt.Errorf("unsupported storage type: %s", storageProvider)
	}
	s := factory()
	if err := s.Init(opts...); err != nil {
		return nil, errors.Wrapf(err, "initializing %s storage", storageProvider)
	}
	logrus.Infof("storage<%s> initialized at: %s", storageProvider, s.URI())
	return s, nil
}

// MakeNamespace takes a set of possible namespace values and combines them as a convention
func MakeNamespace(ns ...string) string {
	return strings.Join(ns, "-")
}
