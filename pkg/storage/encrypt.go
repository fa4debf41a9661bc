package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/tbd54566975/vc-engine/internal/util"
)

// EncryptedWrapper seals every value with XChaCha20-Poly1305 before handing it to the wrapped storage.
// Keys and namespaces are stored in the clear.
type EncryptedWrapper struct {
	s   ServiceStorage
	key []byte
}

// NewEncryptedWrapper wraps s with a 32 byte symmetric key
func NewEncryptedWrapper(s ServiceStorage, key []byte) (*EncryptedWrapper, error) {
	if s == nil {
		return nil, errors.New("storage cannot be nil")
	}
	if len(key) != util.EncryptionKeySize {
		return nil, errors.Errorf("encryption key must be %d bytes, got %d", util.EncryptionKeySize, len(key))
	}
	return &EncryptedWrapper{s: s, key: key}, nil
}

func (e EncryptedWrapper) Init(opts ...Option) error {
	return e.s.Init(opts...)
}

func (e EncryptedWrapper) Type() Type {
	return e.s.Type()
}

func (e EncryptedWrapper) URI() string {
	return e.s.URI()
}

func (e EncryptedWrapper) IsOpen() bool {
	return e.s.IsOpen()
}

func (e EncryptedWrapper) Close() error {
	return e.s.Close()
}

func (e EncryptedWrapper) Write(ctx context.Context, namespace, key string, value []byte) error {
	encryptedData, err := util.XChaCha20Poly1305Encrypt(e.key, value)
	if err != nil {
		return errors.Wrap(err, "encrypting data")
	}
	return e.s.Write(ctx, namespace, key, encryptedData)
}

func (e EncryptedWrapper) Read(ctx context.Context, namespace, key string) ([]byte, error) {
	storedBytes, err := e.s.Read(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	if storedBytes == nil {
		return nil, nil
	}
	decryptedData, err := util.XChaCha20Poly1305Decrypt(e.key, storedBytes)
	if err != nil {
		return nil, errors.Wrap(err, "decrypting data")
	}
	return decryptedData, nil
}

func (e EncryptedWrapper) Exists(ctx context.Context, namespace, key string) (bool, error) {
	return e.s.Exists(ctx, namespace, key)
}

func (e EncryptedWrapper) ReadAll(ctx context.Context, namespace string) (map[string][]byte, error) {
	stored, err := e.s.ReadAll(ctx, namespace)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]byte, len(stored))
	for k, v := range stored {
		decryptedData, err := util.XChaCha20Poly1305Decrypt(e.key, v)
		if err != nil {
			return nil, errors.Wrapf(err, "decrypting value for key<%s>", k)
		}
		result[k] = decryptedData
	}
	return result, nil
}

func (e EncryptedWrapper) ReadAllKeys(ctx context.Context, namespace string) ([]string, error) {
	return e.s.ReadAllKeys(ctx, namespace)
}

func (e EncryptedWrapper) Delete(ctx context.Context, namespace, key string) error {
	return e.s.Delete(ctx, namespace, key)
}

func (e EncryptedWrapper) DeleteNamespace(ctx context.Context, namespace string) error {
	return e.s.DeleteNamespace(ctx, namespace)
}

var _ ServiceStorage = (*EncryptedWrapper)(nil)
