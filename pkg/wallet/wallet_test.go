package wallet

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/TBD54566975/ssi-sdk/crypto"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/vc-engine/internal/did"
	"github.com/tbd54566975/vc-engine/pkg/credential"
	"github.com/tbd54566975/vc-engine/pkg/envelope"
	"github.com/tbd54566975/vc-engine/pkg/policy"
	"github.com/tbd54566975/vc-engine/pkg/sdjwt"
	"github.com/tbd54566975/vc-engine/pkg/storage"
	"github.com/tbd54566975/vc-engine/pkg/testutil"
)

const testPassword = "correct horse battery staple"

func newTestWallet(t *testing.T) (*Wallet, storage.ServiceStorage, *clock.Mock) {
	db, err := storage.NewStorage(storage.Memory)
	require.NoError(t, err)
	return newTestWalletWithDB(t, db)
}

func newTestWalletWithDB(t *testing.T, db storage.ServiceStorage) (*Wallet, storage.ServiceStorage, *clock.Mock) {
	mockClock := testutil.MockClock()
	w, err := NewWallet(context.Background(), db, testPassword, WithClock(mockClock))
	require.NoError(t, err)
	return w, db, mockClock
}

func testDocument(t *testing.T, c clock.Clock, issuer, subject string) *credential.Document {
	doc, err := credential.NewBuilder(credential.W3CV11, credential.WithClock(c)).
		AddType("UniversityDegreeCredential").
		SetID("urn:uuid:degree-1").
		SetIssuer(issuer).
		SetSubject(subject).
		ValidFromNow().
		ValidFor(24*time.Hour).
		UseData("name", "Alice").
		UseData("degree", "BSc").
		Build()
	require.NoError(t, err)
	return doc
}

func TestKeyStore(t *testing.T) {
	ctx := context.Background()

	t.Run("store and get every key type", func(t *testing.T) {
		w, _, _ := newTestWallet(t)
		for _, kt := range []crypto.KeyType{crypto.Ed25519, crypto.P256, crypto.SECP256k1} {
			identity, err := w.Keys.CreateIdentity(ctx, kt)
			require.NoError(t, err)

			key, controller, err := w.Keys.GetKey(ctx, identity.Key.ID)
			require.NoError(t, err)
			assert.Equal(t, identity.DID, controller)
			assert.Equal(t, kt, key.Type)
			assert.True(t, key.CanSign())
		}
		keys, err := w.Keys.ListKeys(ctx)
		require.NoError(t, err)
		assert.Len(t, keys, 3)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, db, _ := newTestWallet(t)
		_, err := NewKeyStore(ctx, db, "not the password", nil)
		assert.ErrorIs(t, err, ErrWrongPassword)

		_, err = NewKeyStore(ctx, db, testPassword, nil)
		assert.NoError(t, err)
	})

	t.Run("keys are encrypted at rest", func(t *testing.T) {
		w, db, _ := newTestWallet(t)
		identity, err := w.Keys.CreateIdentity(ctx, crypto.Ed25519)
		require.NoError(t, err)
		raw, err := db.Read(ctx, keyNamespace, identity.Key.ID)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), identity.DID)
	})

	t.Run("missing key", func(t *testing.T) {
		w, _, _ := newTestWallet(t)
		_, _, err := w.Keys.GetKey(ctx, "did:key:nope#nope")
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
		assert.Error(t, w.Keys.DeleteKey(ctx, "did:key:nope#nope"))
	})

	t.Run("export and import", func(t *testing.T) {
		source, _, _ := newTestWallet(t)
		identity, err := source.Keys.CreateIdentity(ctx, crypto.P256)
		require.NoError(t, err)
		sealed, err := source.Keys.ExportKey(ctx, identity.Key.ID, "transport")
		require.NoError(t, err)

		target, _, _ := newTestWallet(t)
		_, err = target.Keys.ImportKey(ctx, sealed, "wrong")
		assert.Error(t, err)

		details, err := target.Keys.ImportKey(ctx, sealed, "transport")
		require.NoError(t, err)
		assert.Equal(t, identity.DID, details.Controller)

		key, _, err := target.Keys.GetKey(ctx, identity.Key.ID)
		require.NoError(t, err)
		pub, ok := key.PublicKey.(*ecdsa.PublicKey)
		require.True(t, ok)
		assert.True(t, pub.Equal(identity.Key.PublicKey))

		require.NoError(t, target.Keys.DeleteKey(ctx, identity.Key.ID))
		_, err = target.Keys.GetKeyDetails(ctx, identity.Key.ID)
		assert.Error(t, err)
	})
}

func TestIssueImportPresent(t *testing.T) {
	for _, test := range testutil.TestDatabases {
		t.Run(test.Name, func(t *testing.T) {
			w, _, mockClock := newTestWalletWithDB(t, test.ServiceStorage(t))
			testIssueImportPresent(t, w, mockClock)
		})
	}
}

func testIssueImportPresent(t *testing.T, w *Wallet, mockClock *clock.Mock) {
	ctx := context.Background()

	issuer, err := w.Keys.CreateIdentity(ctx, crypto.Ed25519)
	require.NoError(t, err)
	holder, err := w.Keys.CreateIdentity(ctx, crypto.P256)
	require.NoError(t, err)

	t.Run("issuer must control the key", func(t *testing.T) {
		_, err := w.Issue(ctx, holder.Key.ID, testDocument(t, mockClock, issuer.DID, holder.DID), envelope.Options{})
		assert.ErrorContains(t, err, "not the issuer")
	})

	jwtVC, err := w.Issue(ctx, issuer.Key.ID, testDocument(t, mockClock, issuer.DID, holder.DID), envelope.Options{})
	require.NoError(t, err)
	sdVC, err := w.IssueSD(ctx, issuer.Key.ID, testDocument(t, mockClock, issuer.DID, holder.DID),
		sdjwt.NewSDMap("name", "degree"), envelope.Options{JWTID: "urn:uuid:sd-1"})
	require.NoError(t, err)

	stored, report, err := w.Credentials.Import(ctx, jwtVC, "degree")
	require.NoError(t, err)
	assert.True(t, report.OverallSuccess())
	assert.Equal(t, "urn:uuid:degree-1", stored.ID)
	assert.Equal(t, JWTFormat, stored.Format)
	assert.Equal(t, issuer.DID, stored.Issuer)
	assert.Equal(t, holder.DID, stored.Subject)
	assert.Contains(t, stored.Types, "UniversityDegreeCredential")

	storedSD, _, err := w.Credentials.Import(ctx, sdVC, "")
	require.NoError(t, err)
	assert.Equal(t, SDJWTFormat, storedSD.Format)
	assert.Equal(t, "urn:uuid:sd-1", storedSD.ID)

	all, err := w.Credentials.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	vp, err := w.Present(ctx, PresentRequest{
		HolderKeyID:   holder.Key.ID,
		CredentialIDs: []string{stored.ID, storedSD.ID},
		Disclose:      map[string][]string{storedSD.ID: {"name"}},
		Nonce:         "n-1",
	})
	require.NoError(t, err)

	env, err := envelope.Decode(vp)
	require.NoError(t, err)
	assert.Equal(t, holder.DID, env.Issuer())
	nested := env.Payload[envelope.VPClaim].(map[string]any)["verifiableCredential"].([]any)
	require.Len(t, nested, 2)
	presentedSD, err := envelope.Decode(nested[1].(string))
	require.NoError(t, err)
	assert.Len(t, presentedSD.Disclosures, 1)

	resolver, err := did.BuildMultiMethodResolver([]string{"key"})
	require.NoError(t, err)
	verifier := policy.NewVerifier(policy.WithResolver(resolver), policy.WithClock(mockClock))
	presentationReport, err := verifier.VerifyPresentation(vp,
		[]policy.Request{policy.Req(policy.SignaturePolicy), policy.Req(policy.HolderBindingPolicy), policy.Req(policy.NoncePolicy, "n-1")},
		[]policy.Request{policy.Req(policy.SignaturePolicy), policy.Req(policy.SDDisclosuresPolicy)},
		nil, nil)
	require.NoError(t, err)
	assert.True(t, presentationReport.OverallSuccess())

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, w.Credentials.Delete(ctx, stored.ID))
		_, err := w.Credentials.Get(ctx, stored.ID)
		var notFound *NotFoundError
		assert.ErrorAs(t, err, &notFound)
		assert.Error(t, w.Credentials.Delete(ctx, stored.ID))
	})

	t.Run("empty presentation", func(t *testing.T) {
		_, err := w.Present(ctx, PresentRequest{HolderKeyID: holder.Key.ID})
		assert.Error(t, err)
	})
}

func TestImportRejected(t *testing.T) {
	ctx := context.Background()
	w, _, mockClock := newTestWallet(t)

	issuer, err := w.Keys.CreateIdentity(ctx, crypto.Ed25519)
	require.NoError(t, err)

	compact, err := w.Issue(ctx, issuer.Key.ID, testDocument(t, mockClock, issuer.DID, "did:example:bob"), envelope.Options{})
	require.NoError(t, err)

	mockClock.Add(48 * time.Hour)
	_, report, err := w.Credentials.Import(ctx, compact, "")
	var rejected *ImportRejectedError
	require.ErrorAs(t, err, &rejected)
	require.NotNil(t, report)
	assert.False(t, report.OverallSuccess())
	result, ok := report.Result(policy.ExpiredPolicy)
	require.True(t, ok)
	assert.False(t, result.Success)

	all, err := w.Credentials.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, _, err = w.Credentials.Import(ctx, "not-a-credential", "")
	assert.ErrorIs(t, err, envelope.ErrMalformedEnvelope)
}
