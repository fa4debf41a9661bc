package keyaccess

import (
	"crypto/sha256"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/pkg/errors"
)

// Signer produces raw signatures over arbitrary bytes
type Signer interface {
	Sign(key KeyHandle, data []byte) ([]byte, error)
	SignAsync(key KeyHandle, data []byte) *Future[[]byte]
}

// Verifier checks raw signatures. A false result with a nil error means the signature did not match; an error
// means the key could not be used at all.
type Verifier interface {
	Verify(key KeyHandle, signature, data []byte) (bool, error)
	VerifyAsync(key KeyHandle, signature, data []byte) *Future[bool]
}

// KeyAccess signs and verifies with key material held in process
type KeyAccess interface {
	Signer
	Verifier
}

// LocalKeyAccess uses the JWS algorithm implementations from jwx, with secp256k1 handled directly so that
// no build tags are required.
type LocalKeyAccess struct{}

var _ KeyAccess = (*LocalKeyAccess)(nil)

func NewLocalKeyAccess() *LocalKeyAccess {
	return &LocalKeyAccess{}
}

func (LocalKeyAccess) Sign(key KeyHandle, data []byte) ([]byte, error) {
	if !key.CanSign() {
		return nil, errors.Wrapf(ErrNoPrivateKey, "kid: %s", key.ID)
	}
	alg, err := key.Algorithm()
	if err != nil {
		return nil, err
	}
	if alg == jwa.ES256K {
		privKey, ok := key.PrivateKey.(*secp256k1.PrivateKey)
		if !ok {
			return nil, errors.Wrapf(ErrUnsupportedKeyType, "expected secp256k1 private key, got %T", key.PrivateKey)
		}
		return signSECP256k1(privKey, data), nil
	}
	signer, err := jws.NewSigner(alg)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "creating signer for alg %s", alg)
	}
	signature, err := signer.Sign(data, key.PrivateKey)
	if err != nil {
		return nil, errors.Wrapf(err, "signing with kid: %s", key.ID)
	}
	return signature, nil
}

func (a LocalKeyAccess) SignAsync(key KeyHandle, data []byte) *Future[[]byte] {
	return Async(func() ([]byte, error) { return a.Sign(key, data) })
}

func (LocalKeyAccess) Verify(key KeyHandle, signature, data []byte) (bool, error) {
	if key.PublicKey == nil {
		return false, errors.Errorf("key handle<%s> has no public key", key.ID)
	}
	alg, err := key.Algorithm()
	if err != nil {
		return false, err
	}
	if alg == jwa.ES256K {
		pubKey, ok := key.PublicKey.(*secp256k1.PublicKey)
		if !ok {
			return false, errors.Wrapf(ErrUnsupportedKeyType, "expected secp256k1 public key, got %T", key.PublicKey)
		}
		return verifySECP256k1(pubKey, signature, data), nil
	}
	verifier, err := jws.NewVerifier(alg)
	if err != nil {
		return false, sdkutil.LoggingErrorMsgf(err, "creating verifier for alg %s", alg)
	}
	return verifier.Verify(data, signature, key.PublicKey) == nil, nil
}

func (a LocalKeyAccess) VerifyAsync(key KeyHandle, signature, data []byte) *Future[bool] {
	return Async(func() (bool, error) { return a.Verify(key, signature, data) })
}

// ES256K signatures are the 64 byte R || S concatenation over the SHA-256 digest of the input
func signSECP256k1(privKey *secp256k1.PrivateKey, data []byte) []byte {
	digest := sha256.Sum256(data)
	compact := secpecdsa.SignCompact(privKey, digest[:], false)
	// drop the leading recovery code
	return compact[1:]
}

func verifySECP256k1(pubKey *secp256k1.PublicKey, signature, data []byte) bool {
	if len(signature) != 64 {
		return false
	}
	var r, s secp256k1.ModNScalar
	if overflow := r.SetByteSlice(signature[:32]); overflow {
		return false
	}
	if overflow := s.SetByteSlice(signature[32:]); overflow {
		return false
	}
	digest := sha256.Sum256(data)
	return secpecdsa.NewSignature(&r, &s).Verify(digest[:], pubKey)
}
