package keyaccess

import (
	gocrypto "crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"

	"github.com/TBD54566975/ssi-sdk/crypto"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/pkg/errors"
)

var (
	ErrUnsupportedKeyType = errors.New("unsupported key type")
	ErrNoPrivateKey       = errors.New("key handle has no private key")
)

// KeyHandle is an opaque reference to a key: its identifier (the kid placed in envelope headers), its type,
// and the key material. A handle without a private key can only be used for verification.
type KeyHandle struct {
	ID         string
	Type       crypto.KeyType
	PrivateKey gocrypto.PrivateKey
	PublicKey  gocrypto.PublicKey
}

// GenerateKey creates a fresh key of the given type
func GenerateKey(kt crypto.KeyType, kid string) (*KeyHandle, error) {
	_, privKey, err := crypto.GenerateKeyByKeyType(kt)
	if err != nil {
		return nil, errors.Wrapf(err, "generating %s key", kt)
	}
	return NewKeyHandle(kid, privKey)
}

// NewKeyHandle wraps a private key, inferring its type and public half
func NewKeyHandle(kid string, key gocrypto.PrivateKey) (*KeyHandle, error) {
	if key == nil {
		return nil, errors.New("key cannot be nil")
	}
	kt, privKey, pubKey, err := normalizePrivateKey(key)
	if err != nil {
		return nil, err
	}
	return &KeyHandle{ID: kid, Type: kt, PrivateKey: privKey, PublicKey: pubKey}, nil
}

// NewPublicKeyHandle wraps a public key for verification
func NewPublicKeyHandle(kid string, key gocrypto.PublicKey) (*KeyHandle, error) {
	if key == nil {
		return nil, errors.New("key cannot be nil")
	}
	kt, pubKey, err := normalizePublicKey(key)
	if err != nil {
		return nil, err
	}
	return &KeyHandle{ID: kid, Type: kt, PublicKey: pubKey}, nil
}

// Public returns a copy of the handle with the private key removed
func (k KeyHandle) Public() KeyHandle {
	return KeyHandle{ID: k.ID, Type: k.Type, PublicKey: k.PublicKey}
}

func (k KeyHandle) CanSign() bool {
	return k.PrivateKey != nil
}

// Algorithm maps the key type to the JWS algorithm used to sign with it
func (k KeyHandle) Algorithm() (jwa.SignatureAlgorithm, error) {
	return AlgorithmForKeyType(k.Type)
}

func AlgorithmForKeyType(kt crypto.KeyType) (jwa.SignatureAlgorithm, error) {
	switch kt {
	case crypto.Ed25519:
		return jwa.EdDSA, nil
	case crypto.P256:
		return jwa.ES256, nil
	case crypto.P384:
		return jwa.ES384, nil
	case crypto.P521:
		return jwa.ES512, nil
	case crypto.SECP256k1:
		return jwa.ES256K, nil
	case crypto.RSA:
		return jwa.RS256, nil
	}
	return "", errors.Wrapf(ErrUnsupportedKeyType, "%q", kt)
}

func normalizePrivateKey(key gocrypto.PrivateKey) (crypto.KeyType, gocrypto.PrivateKey, gocrypto.PublicKey, error) {
	switch k := key.(type) {
	case ed25519.PrivateKey:
		return crypto.Ed25519, k, k.Public(), nil
	case *ed25519.PrivateKey:
		return normalizePrivateKey(*k)
	case ecdsa.PrivateKey:
		return normalizePrivateKey(&k)
	case *ecdsa.PrivateKey:
		kt, err := curveKeyType(k.Curve.Params().Name)
		if err != nil {
			return "", nil, nil, err
		}
		return kt, k, &k.PublicKey, nil
	case rsa.PrivateKey:
		return normalizePrivateKey(&k)
	case *rsa.PrivateKey:
		return crypto.RSA, k, &k.PublicKey, nil
	case secp256k1.PrivateKey:
		return normalizePrivateKey(&k)
	case *secp256k1.PrivateKey:
		return crypto.SECP256k1, k, k.PubKey(), nil
	}
	return "", nil, nil, errors.Wrapf(ErrUnsupportedKeyType, "private key of type %T", key)
}

func normalizePublicKey(key gocrypto.PublicKey) (crypto.KeyType, gocrypto.PublicKey, error) {
	switch k := key.(type) {
	case ed25519.PublicKey:
		return crypto.Ed25519, k, nil
	case *ed25519.PublicKey:
		return crypto.Ed25519, *k, nil
	case ecdsa.PublicKey:
		return normalizePublicKey(&k)
	case *ecdsa.PublicKey:
		kt, err := curveKeyType(k.Curve.Params().Name)
		if err != nil {
			return "", nil, err
		}
		return kt, k, nil
	case rsa.PublicKey:
		return crypto.RSA, &k, nil
	case *rsa.PublicKey:
		return crypto.RSA, k, nil
	case secp256k1.PublicKey:
		return crypto.SECP256k1, &k, nil
	case *secp256k1.PublicKey:
		return crypto.SECP256k1, k, nil
	}
	return "", nil, errors.Wrapf(ErrUnsupportedKeyType, "public key of type %T", key)
}

func curveKeyType(name string) (crypto.KeyType, error) {
	switch name {
	case "P-256":
		return crypto.P256, nil
	case "P-384":
		return crypto.P384, nil
	case "P-521":
		return crypto.P521, nil
	}
	return "", errors.Wrapf(ErrUnsupportedKeyType, "curve %s", name)
}
