package wallet

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/vc-engine/internal/keyaccess"
	"github.com/tbd54566975/vc-engine/pkg/credential"
	"github.com/tbd54566975/vc-engine/pkg/envelope"
	"github.com/tbd54566975/vc-engine/pkg/policy"
	"github.com/tbd54566975/vc-engine/pkg/sdjwt"
	"github.com/tbd54566975/vc-engine/pkg/storage"
)

type Option func(*options)

type options struct {
	clock    clock.Clock
	verifier *policy.Verifier
	producer *envelope.Producer
	policies []policy.Request
}

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithVerifier sets the verifier used on import
func WithVerifier(v *policy.Verifier) Option {
	return func(o *options) {
		o.verifier = v
	}
}

func WithProducer(p *envelope.Producer) Option {
	return func(o *options) {
		o.producer = p
	}
}

// WithImportPolicies replaces DefaultImportPolicies
func WithImportPolicies(requests ...policy.Request) Option {
	return func(o *options) {
		o.policies = requests
	}
}

// Wallet issues credentials with stored keys, holds received credentials and presents them
type Wallet struct {
	Keys        *KeyStore
	Credentials *CredentialStore
	producer    *envelope.Producer
}

func NewWallet(ctx context.Context, db storage.ServiceStorage, password string, opts ...Option) (*Wallet, error) {
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.verifier == nil {
		o.verifier = policy.NewVerifier(policy.WithClock(o.clock))
	}
	if o.producer == nil {
		o.producer = envelope.NewProducer(keyaccess.NewLocalKeyAccess(), envelope.WithClock(o.clock))
	}

	keys, err := NewKeyStore(ctx, db, password, o.clock)
	if err != nil {
		return nil, errors.Wrap(err, "opening key store")
	}
	creds, err := NewCredentialStore(db, o.verifier, o.policies, o.clock)
	if err != nil {
		return nil, errors.Wrap(err, "opening credential store")
	}
	return &Wallet{Keys: keys, Credentials: creds, producer: o.producer}, nil
}

// Issue signs the document as a JWT VC with a stored key. The issuer must be the key's controller.
func (w *Wallet) Issue(ctx context.Context, keyID string, doc *credential.Document, opts envelope.Options) (string, error) {
	key, err := w.issuerKey(ctx, keyID, doc)
	if err != nil {
		return "", err
	}
	return w.producer.SignCredential(*key, doc, opts)
}

// IssueSD signs the document as an SD-JWT VC with a stored key, returning the combined envelope
func (w *Wallet) IssueSD(ctx context.Context, keyID string, doc *credential.Document, sdMap sdjwt.SDMap, opts envelope.Options) (string, error) {
	key, err := w.issuerKey(ctx, keyID, doc)
	if err != nil {
		return "", err
	}
	compact, _, err := w.producer.SignSDCredential(*key, doc, sdMap, opts)
	return compact, err
}

func (w *Wallet) issuerKey(ctx context.Context, keyID string, doc *credential.Document) (*keyaccess.KeyHandle, error) {
	key, controller, err := w.Keys.GetKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	if controller != doc.Issuer() {
		return nil, errors.Errorf("key<%s> is controlled by<%s>, not the issuer<%s>", keyID, controller, doc.Issuer())
	}
	return key, nil
}

// Present builds a presentation from stored credentials, revealing only the requested disclosures of
// selective disclosure credentials, and signs it with the holder key
func (w *Wallet) Present(ctx context.Context, request PresentRequest) (string, error) {
	if len(request.CredentialIDs) == 0 {
		return "", errors.New("at least one credential must be presented")
	}
	key, holder, err := w.Keys.GetKey(ctx, request.HolderKeyID)
	if err != nil {
		return "", err
	}

	builder := credential.NewPresentationBuilder().SetHolder(holder)
	for _, id := range request.CredentialIDs {
		stored, err := w.Credentials.Get(ctx, id)
		if err != nil {
			return "", err
		}
		artifact, err := selectArtifact(stored, request.Disclose)
		if err != nil {
			return "", errors.Wrapf(err, "selecting disclosures of credential<%s>", id)
		}
		builder.AddCredential(artifact)
	}
	vp, err := builder.Build()
	if err != nil {
		return "", errors.Wrap(err, "building presentation")
	}

	logrus.Debugf("presenting %d credentials as holder<%s>", len(request.CredentialIDs), holder)
	return w.producer.SignPresentation(*key, vp, envelope.Options{
		Nonce:    request.Nonce,
		Audience: request.Audience,
	})
}

func selectArtifact(stored *StoredCredential, disclose map[string][]string) (string, error) {
	names, ok := disclose[stored.ID]
	if stored.Format != SDJWTFormat || !ok {
		return stored.Artifact, nil
	}
	env, err := envelope.Decode(stored.Artifact)
	if err != nil {
		return "", err
	}
	selected, err := sdjwt.SelectDisclosures(env.Disclosures, names...)
	if err != nil {
		return "", err
	}
	return envelope.Combine(env.JWT, selected), nil
}
