package keyaccess

import (
	"testing"

	"github.com/TBD54566975/ssi-sdk/crypto"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalKeyAccessForEachKeyType(t *testing.T) {
	tests := []struct {
		kt  crypto.KeyType
		alg jwa.SignatureAlgorithm
	}{
		{kt: crypto.Ed25519, alg: jwa.EdDSA},
		{kt: crypto.SECP256k1, alg: jwa.ES256K},
		{kt: crypto.P256, alg: jwa.ES256},
		{kt: crypto.P384, alg: jwa.ES384},
		{kt: crypto.P521, alg: jwa.ES512},
		{kt: crypto.RSA, alg: jwa.RS256},
	}
	ka := NewLocalKeyAccess()
	data := []byte("header.payload")

	for _, test := range tests {
		t.Run(string(test.kt), func(t *testing.T) {
			key, err := GenerateKey(test.kt, "test-kid")
			require.NoError(t, err)
			assert.Equal(t, test.kt, key.Type)

			alg, err := key.Algorithm()
			assert.NoError(t, err)
			assert.Equal(t, test.alg, alg)

			signature, err := ka.Sign(*key, data)
			require.NoError(t, err)
			assert.NotEmpty(t, signature)

			valid, err := ka.Verify(key.Public(), signature, data)
			assert.NoError(t, err)
			assert.True(t, valid)

			valid, err = ka.Verify(key.Public(), signature, []byte("header.tampered"))
			assert.NoError(t, err)
			assert.False(t, valid)

			sigFuture := ka.SignAsync(*key, data)
			asyncSig, err := sigFuture.Await()
			require.NoError(t, err)

			verifyFuture := ka.VerifyAsync(key.Public(), asyncSig, data)
			valid, err = verifyFuture.Await()
			assert.NoError(t, err)
			assert.True(t, valid)
		})
	}
}

func TestKeyHandleFromSDKKeys(t *testing.T) {
	for _, kt := range []crypto.KeyType{crypto.Ed25519, crypto.SECP256k1, crypto.P256, crypto.RSA} {
		t.Run(string(kt), func(t *testing.T) {
			pubKey, privKey, err := crypto.GenerateKeyByKeyType(kt)
			require.NoError(t, err)

			priv, err := NewKeyHandle("kid", privKey)
			require.NoError(t, err)
			assert.Equal(t, kt, priv.Type)
			assert.True(t, priv.CanSign())

			pub, err := NewPublicKeyHandle("kid", pubKey)
			require.NoError(t, err)
			assert.Equal(t, kt, pub.Type)
			assert.False(t, pub.CanSign())

			signature, err := NewLocalKeyAccess().Sign(*priv, []byte("data"))
			require.NoError(t, err)
			valid, err := NewLocalKeyAccess().Verify(*pub, signature, []byte("data"))
			assert.NoError(t, err)
			assert.True(t, valid)
		})
	}
}

func TestKeyHandleErrors(t *testing.T) {
	t.Run("nil keys", func(t *testing.T) {
		_, err := NewKeyHandle("kid", nil)
		assert.ErrorContains(t, err, "key cannot be nil")

		_, err = NewPublicKeyHandle("kid", nil)
		assert.ErrorContains(t, err, "key cannot be nil")
	})

	t.Run("unsupported key", func(t *testing.T) {
		_, err := NewKeyHandle("kid", "not a key")
		assert.ErrorIs(t, err, ErrUnsupportedKeyType)

		_, err = AlgorithmForKeyType(crypto.KeyType("unknown"))
		assert.ErrorIs(t, err, ErrUnsupportedKeyType)
	})

	t.Run("sign with public handle", func(t *testing.T) {
		key, err := GenerateKey(crypto.Ed25519, "kid")
		require.NoError(t, err)

		_, err = NewLocalKeyAccess().Sign(key.Public(), []byte("data"))
		assert.ErrorIs(t, err, ErrNoPrivateKey)

		_, err = NewLocalKeyAccess().SignAsync(key.Public(), []byte("data")).Await()
		assert.ErrorIs(t, err, ErrNoPrivateKey)
	})

	t.Run("wrong key verifies false", func(t *testing.T) {
		key, err := GenerateKey(crypto.Ed25519, "kid")
		require.NoError(t, err)
		other, err := GenerateKey(crypto.Ed25519, "other")
		require.NoError(t, err)

		signature, err := NewLocalKeyAccess().Sign(*key, []byte("data"))
		require.NoError(t, err)
		valid, err := NewLocalKeyAccess().Verify(other.Public(), signature, []byte("data"))
		assert.NoError(t, err)
		assert.False(t, valid)
	})
}

func TestFutureCompletesOnce(t *testing.T) {
	f := NewFuture[int]()
	assert.True(t, f.Complete(1, nil))
	assert.False(t, f.Complete(2, nil))

	<-f.Done()
	v, err := f.Await()
	assert.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestAsyncRecoversPanic(t *testing.T) {
	f := Async(func() (string, error) {
		panic("boom")
	})
	_, err := f.Await()
	assert.ErrorContains(t, err, "panic: boom")
}
