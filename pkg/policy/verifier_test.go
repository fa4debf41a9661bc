package policy

import (
	"encoding/base64"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TBD54566975/ssi-sdk/crypto"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/vc-engine/internal/did"
	"github.com/tbd54566975/vc-engine/internal/keyaccess"
	"github.com/tbd54566975/vc-engine/pkg/envelope"
)

func TestVerifyCredentialAllPass(t *testing.T) {
	f := newFixture(t)
	compact := f.credential(t, f.holder.DID)

	report, err := f.verifier.VerifyCredential(compact, []Request{
		Req(SignaturePolicy),
		Req(ExpiredPolicy),
		Req(NotBeforePolicy),
		Req(AllowedIssuerPolicy, f.issuer.DID),
	}, nil)
	require.NoError(t, err)
	assert.True(t, report.OverallSuccess())
	require.Len(t, report.Results, 4)
	assert.Equal(t, []string{SignaturePolicy, ExpiredPolicy, NotBeforePolicy, AllowedIssuerPolicy},
		[]string{report.Results[0].Policy, report.Results[1].Policy, report.Results[2].Policy, report.Results[3].Policy})
	assert.Empty(t, report.Failed())

	sig, ok := report.Result(SignaturePolicy)
	require.True(t, ok)
	assert.Equal(t, f.issuer.Key.ID, sig.Value.(map[string]any)["kid"])
}

func TestVerifyNeverShortCircuits(t *testing.T) {
	f := newFixture(t)
	compact := f.credential(t, f.holder.DID)

	// move past expiry so the second policy fails
	f.clock.Add(48 * time.Hour)

	report, err := f.verifier.VerifyCredential(compact, []Request{
		Req(SignaturePolicy),
		Req(ExpiredPolicy),
		Req(AllowedIssuerPolicy, "did:example:someone-else"),
		Req(NotBeforePolicy),
	}, nil)
	require.NoError(t, err)
	require.Len(t, report.Results, 4)
	assert.False(t, report.OverallSuccess())

	assert.True(t, report.Results[0].Success)
	assert.False(t, report.Results[1].Success)
	assert.ErrorContains(t, report.Results[1].Err, "expired at")
	assert.False(t, report.Results[2].Success)
	assert.True(t, report.Results[3].Success)
	assert.Len(t, report.Failed(), 2)
}

func TestVerifyTamperedSignature(t *testing.T) {
	f := newFixture(t)
	compact := f.credential(t, f.holder.DID)

	t.Run("flipped signature byte", func(t *testing.T) {
		parts := strings.Split(compact, ".")
		signature, err := base64.RawURLEncoding.DecodeString(parts[2])
		require.NoError(t, err)
		signature[0] ^= 0x01
		tampered := parts[0] + "." + parts[1] + "." + base64.RawURLEncoding.EncodeToString(signature)

		report, err := f.verifier.VerifyCredential(tampered, []Request{Req(SignaturePolicy)}, nil)
		require.NoError(t, err)
		assert.False(t, report.OverallSuccess())
		require.Len(t, report.Failed(), 1)
		assert.Equal(t, SignaturePolicy, report.Failed()[0].Policy)
	})

	t.Run("grafted payload", func(t *testing.T) {
		other := f.credential(t, "did:example:mallory")
		parts := strings.Split(compact, ".")
		otherParts := strings.Split(other, ".")
		tampered := parts[0] + "." + otherParts[1] + "." + parts[2]

		report, err := f.verifier.VerifyCredential(tampered, []Request{Req(SignaturePolicy), Req(ExpiredPolicy)}, nil)
		require.NoError(t, err)
		assert.False(t, report.OverallSuccess())
		assert.ErrorContains(t, report.Results[0].Err, "signature does not verify")
		assert.True(t, report.Results[1].Success)
	})
}

func TestVerifySignerMustBeIssuer(t *testing.T) {
	f := newFixture(t)
	attacker, err := did.CreateDIDKey(crypto.Ed25519)
	require.NoError(t, err)
	vc := f.document(t, f.holder.DID).ToMap()
	requests := []Request{Req(SignaturePolicy), Req(AllowedIssuerPolicy, f.issuer.DID)}

	t.Run("foreign key without iss", func(t *testing.T) {
		forged, err := f.producer.Sign(*attacker.Key, map[string]any{envelope.VCClaim: vc}, envelope.Options{})
		require.NoError(t, err)

		report, err := f.verifier.VerifyCredential(forged, requests, nil)
		require.NoError(t, err)
		assert.False(t, report.OverallSuccess())
		assert.False(t, report.Results[0].Success)
		assert.ErrorContains(t, report.Results[0].Err, "does not belong to signer<"+f.issuer.DID+">")
	})

	t.Run("foreign key under the issuer kid", func(t *testing.T) {
		impostor, err := keyaccess.NewKeyHandle(f.issuer.Key.ID, attacker.Key.PrivateKey)
		require.NoError(t, err)
		forged, err := f.producer.Sign(*impostor, map[string]any{envelope.VCClaim: vc}, envelope.Options{})
		require.NoError(t, err)

		report, err := f.verifier.VerifyCredential(forged, requests, nil)
		require.NoError(t, err)
		assert.False(t, report.OverallSuccess())
		assert.ErrorContains(t, report.Results[0].Err, "signature does not verify")
	})

	t.Run("iss disagrees with vc issuer", func(t *testing.T) {
		forged, err := f.producer.Sign(*attacker.Key, map[string]any{envelope.VCClaim: vc}, envelope.Options{Issuer: attacker.DID})
		require.NoError(t, err)

		report, err := f.verifier.VerifyCredential(forged, []Request{Req(SignaturePolicy)}, nil)
		require.NoError(t, err)
		assert.False(t, report.OverallSuccess())
		assert.ErrorContains(t, report.Results[0].Err, "does not match issuer<"+f.issuer.DID+">")
	})

	t.Run("no signer named", func(t *testing.T) {
		forged, err := f.producer.Sign(*attacker.Key, map[string]any{envelope.VCClaim: map[string]any{}}, envelope.Options{})
		require.NoError(t, err)

		report, err := f.verifier.VerifyCredential(forged, []Request{Req(SignaturePolicy)}, nil)
		require.NoError(t, err)
		assert.ErrorContains(t, report.Results[0].Err, "names no signer")
	})

	t.Run("issuer signs without iss", func(t *testing.T) {
		compact, err := f.producer.Sign(*f.issuer.Key, map[string]any{envelope.VCClaim: vc}, envelope.Options{})
		require.NoError(t, err)

		report, err := f.verifier.VerifyCredential(compact, requests, nil)
		require.NoError(t, err)
		assert.True(t, report.OverallSuccess(), "%v", report.Failed())
	})
}

func TestVerifyErrors(t *testing.T) {
	f := newFixture(t)
	compact := f.credential(t, f.holder.DID)

	_, err := f.verifier.VerifyCredential(compact, nil, nil)
	assert.ErrorIs(t, err, ErrEmptyPolicyList)

	_, err = f.verifier.VerifyCredential("not-a-credential", []Request{Req(SignaturePolicy)}, nil)
	assert.ErrorIs(t, err, envelope.ErrMalformedEnvelope)

	report, err := f.verifier.VerifyCredential(compact, []Request{Req("does-not-exist"), Req(ExpiredPolicy)}, nil)
	require.NoError(t, err)
	var unknown *UnknownPolicyError
	assert.True(t, errors.As(report.Results[0].Err, &unknown))
	assert.True(t, report.Results[1].Success)
	assert.False(t, report.OverallSuccess())

	noResolver := NewVerifier(WithResolver(nil), WithClock(f.clock))
	report, err = noResolver.VerifyCredential(compact, []Request{Req(SignaturePolicy)}, nil)
	require.NoError(t, err)
	assert.ErrorContains(t, report.Results[0].Err, "no DID resolver configured")
}

func TestDefaultVerifierResolvesDIDKey(t *testing.T) {
	f := newFixture(t)
	report, err := NewVerifier(WithClock(f.clock)).VerifyCredential(f.credential(t, f.holder.DID), []Request{Req(SignaturePolicy)}, nil)
	require.NoError(t, err)
	assert.True(t, report.OverallSuccess(), "%v", report.Failed())
}

func TestPoliciesRecoverFromPanics(t *testing.T) {
	f := newFixture(t)
	registry := DefaultRegistry().Clone()
	require.NoError(t, registry.Register(New("boom", "panics", func(*Target, any, *Context) (any, error) {
		panic("kaboom")
	})))
	verifier := NewVerifier(WithRegistry(registry), WithClock(f.clock))

	report, err := verifier.VerifyCredential(f.credential(t, f.holder.DID), []Request{Req("boom"), Req(ExpiredPolicy)}, nil)
	require.NoError(t, err)
	var panicErr *PanicError
	assert.True(t, errors.As(report.Results[0].Err, &panicErr))
	assert.Equal(t, "kaboom", panicErr.Recovered)
	assert.True(t, report.Results[1].Success)
}

func TestPolicyContextIsFreshPerPolicy(t *testing.T) {
	f := newFixture(t)
	var calls int32
	registry := NewRegistry()
	require.NoError(t, registry.Register(New("mutate", "writes into its context", func(_ *Target, _ any, vctx *Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		if _, seen := vctx.Value("written"); seen {
			return nil, errors.New("saw a value written by another policy")
		}
		vctx.Values["written"] = true
		return nil, nil
	})))
	verifier := NewVerifier(WithRegistry(registry), WithClock(f.clock))

	values := map[string]any{"caller": "value"}
	report, err := verifier.VerifyCredential(f.credential(t, f.holder.DID), []Request{Req("mutate"), Req("mutate")}, values)
	require.NoError(t, err)
	assert.True(t, report.OverallSuccess())
	assert.EqualValues(t, 2, calls)
	assert.NotContains(t, values, "written")
}

func TestReportJSON(t *testing.T) {
	report := &Report{Results: []Result{
		{Policy: "a", Success: true, Value: "ok"},
		{Policy: "b", Err: errors.New("bad")},
	}}
	out, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"results":[{"policy":"a","success":true,"result":"ok"},{"policy":"b","success":false,"error":"bad"}]}`, string(out))

	assert.False(t, (&Report{}).OverallSuccess())
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	p := New("custom", "a custom policy", func(*Target, any, *Context) (any, error) { return nil, nil })
	require.NoError(t, registry.Register(p))

	err := registry.Register(New("custom", "again", nil))
	var dup *DuplicatePolicyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "custom", dup.Name)

	assert.ErrorContains(t, registry.Register(New("", "", nil)), "name cannot be empty")

	got, ok := registry.Lookup("custom")
	assert.True(t, ok)
	assert.Equal(t, "a custom policy", got.Description())

	registry.Seal()
	assert.ErrorIs(t, registry.Register(New("other", "", nil)), ErrRegistrySealed)

	defaults := DefaultRegistry()
	assert.Same(t, defaults, DefaultRegistry())
	assert.Len(t, defaults.Names(), len(Builtins()))
	assert.ErrorIs(t, defaults.Register(New("late", "", nil)), ErrRegistrySealed)

	clone := defaults.Clone()
	assert.NoError(t, clone.Register(New("late", "", nil)))
	_, ok = defaults.Lookup("late")
	assert.False(t, ok)
}

func TestReqArgs(t *testing.T) {
	assert.Nil(t, Req("a").Args)
	assert.Equal(t, "x", Req("a", "x").Args)
	assert.Equal(t, []any{"x", "y"}, Req("a", "x", "y").Args)
}
