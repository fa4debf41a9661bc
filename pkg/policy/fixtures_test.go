package policy

import (
	"testing"
	"time"

	"github.com/TBD54566975/ssi-sdk/crypto"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/tbd54566975/vc-engine/internal/did"
	"github.com/tbd54566975/vc-engine/internal/keyaccess"
	"github.com/tbd54566975/vc-engine/pkg/credential"
	"github.com/tbd54566975/vc-engine/pkg/envelope"
	"github.com/tbd54566975/vc-engine/pkg/sdjwt"
)

type fixture struct {
	clock    *clock.Mock
	issuer   *did.Identity
	holder   *did.Identity
	resolver did.Resolver
	producer *envelope.Producer
	verifier *Verifier
}

func newFixture(t *testing.T) *fixture {
	mockClock := clock.NewMock()
	mockClock.Set(time.Date(2023, 8, 1, 12, 0, 0, 0, time.UTC))

	issuer, err := did.CreateDIDKey(crypto.Ed25519)
	require.NoError(t, err)
	holder, err := did.CreateDIDKey(crypto.P256)
	require.NoError(t, err)

	resolver, err := did.BuildMultiMethodResolver([]string{"key"})
	require.NoError(t, err)

	return &fixture{
		clock:    mockClock,
		issuer:   issuer,
		holder:   holder,
		resolver: resolver,
		producer: envelope.NewProducer(keyaccess.NewLocalKeyAccess(), envelope.WithClock(mockClock)),
		verifier: NewVerifier(WithResolver(resolver), WithClock(mockClock)),
	}
}

func (f *fixture) document(t *testing.T, subject string, types ...string) *credential.Document {
	doc, err := credential.NewBuilder(credential.W3CV11, credential.WithClock(f.clock)).
		AddType(types...).
		SetIssuer(f.issuer.DID).
		SetSubject(subject).
		ValidFromNow().
		ValidFor(24*time.Hour).
		UseData("name", "Alice").
		UseData("degree", map[string]any{"type": "BachelorDegree", "name": "Computer Science"}).
		Build()
	require.NoError(t, err)
	return doc
}

func (f *fixture) credential(t *testing.T, subject string, types ...string) string {
	compact, err := f.producer.SignCredential(*f.issuer.Key, f.document(t, subject, types...), envelope.Options{})
	require.NoError(t, err)
	return compact
}

func (f *fixture) sdCredential(t *testing.T, subject string) (string, *sdjwt.Result) {
	compact, result, err := f.producer.SignSDCredential(*f.issuer.Key, f.document(t, subject),
		sdjwt.NewSDMap("name").WithDecoys(sdjwt.DecoyRandom, 2), envelope.Options{})
	require.NoError(t, err)
	return compact, result
}

func (f *fixture) presentation(t *testing.T, opts envelope.Options, credentials ...string) string {
	vp, err := credential.NewPresentationBuilder().
		SetHolder(f.holder.DID).
		AddCredential(credentials...).
		Build()
	require.NoError(t, err)
	compact, err := f.producer.SignPresentation(*f.holder.Key, vp, opts)
	require.NoError(t, err)
	return compact
}
