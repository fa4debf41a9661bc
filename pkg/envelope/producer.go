package envelope

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/TBD54566975/ssi-sdk/crypto/jwx"
	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/vc-engine/internal/keyaccess"
	"github.com/tbd54566975/vc-engine/pkg/credential"
	"github.com/tbd54566975/vc-engine/pkg/sdjwt"
)

// Options carries the registered claims and header additions for one envelope. Zero values are omitted.
type Options struct {
	Issuer     string
	Subject    string
	Audience   []string
	Nonce      string
	JWTID      string
	NotBefore  time.Time
	Expiration time.Time
	// ExpiresIn sets exp relative to the issuance time when Expiration is unset
	ExpiresIn time.Duration
	// Type overrides the typ header
	Type string
	// HolderKey is bound to the envelope through a cnf header
	HolderKey *keyaccess.KeyHandle

	ExtraHeaders map[string]any
	ExtraClaims  map[string]any
}

type ProducerOption func(*Producer)

func WithClock(c clock.Clock) ProducerOption {
	return func(p *Producer) {
		p.clock = c
	}
}

// WithEncoder sets the selective disclosure encoder, e.g. one with fixed salts
func WithEncoder(e *sdjwt.Encoder) ProducerOption {
	return func(p *Producer) {
		p.encoder = e
	}
}

// Producer assembles and signs compact envelopes
type Producer struct {
	signer  keyaccess.Signer
	clock   clock.Clock
	encoder *sdjwt.Encoder
}

func NewProducer(signer keyaccess.Signer, opts ...ProducerOption) *Producer {
	p := &Producer{
		signer:  signer,
		clock:   clock.New(),
		encoder: sdjwt.NewEncoder(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sign produces header_b64.payload_b64.signature_b64 over the given claims
func (p *Producer) Sign(key keyaccess.KeyHandle, claims map[string]any, opts Options) (string, error) {
	typ := opts.Type
	if typ == "" {
		typ = JWTType
	}
	header, err := p.buildHeader(key, typ, opts)
	if err != nil {
		return "", err
	}
	payload := p.buildPayload(claims, opts)
	return p.sign(key, header, payload)
}

// SignCredential embeds the document as the vc claim, defaulting the registered claims from it
func (p *Producer) SignCredential(key keyaccess.KeyHandle, doc *credential.Document, opts Options) (string, error) {
	opts = credentialDefaults(doc, opts)
	return p.Sign(key, map[string]any{VCClaim: doc.ToMap()}, opts)
}

// SignSDCredential redacts the credential subject according to sdMap and appends the disclosures to the
// signed envelope: jwt~d1~d2~
func (p *Producer) SignSDCredential(key keyaccess.KeyHandle, doc *credential.Document, sdMap sdjwt.SDMap, opts Options) (string, *sdjwt.Result, error) {
	vc, result, err := p.encoder.EncodeDocument(doc, sdMap)
	if err != nil {
		return "", nil, errors.Wrap(err, "encoding selective disclosures")
	}
	opts = credentialDefaults(doc, opts)
	if opts.Type == "" {
		opts.Type = SDJWTType
	}
	claims := map[string]any{
		VCClaim:        vc,
		sdjwt.SDAlgKey: sdjwt.SHA256,
	}
	signed, err := p.Sign(key, claims, opts)
	if err != nil {
		return "", nil, err
	}
	return Combine(signed, result.EncodedDisclosures()), result, nil
}

// SignPresentation embeds the presentation as the vp claim. The presenter is the holder unless Issuer is set.
func (p *Producer) SignPresentation(key keyaccess.KeyHandle, vp *credential.Presentation, opts Options) (string, error) {
	if opts.Issuer == "" {
		opts.Issuer = vp.Holder()
	}
	if opts.JWTID == "" {
		opts.JWTID = vp.ID()
	}
	return p.Sign(key, map[string]any{VPClaim: vp.ToMap()}, opts)
}

// Combine appends disclosures to a signed envelope in the selective disclosure form: jwt~d1~d2~. With no
// disclosures the signed envelope is returned unchanged.
func Combine(signed string, disclosures []string) string {
	if len(disclosures) == 0 {
		return signed
	}
	var sb strings.Builder
	sb.WriteString(signed)
	sb.WriteString(sdjwt.Separator)
	for _, d := range disclosures {
		sb.WriteString(d)
		sb.WriteString(sdjwt.Separator)
	}
	return sb.String()
}

func credentialDefaults(doc *credential.Document, opts Options) Options {
	if opts.Issuer == "" {
		opts.Issuer = doc.Issuer()
	}
	if opts.Subject == "" {
		opts.Subject = doc.Subject()
	}
	if opts.JWTID == "" {
		opts.JWTID = doc.ID()
	}
	if opts.NotBefore.IsZero() {
		opts.NotBefore = doc.ValidFrom()
	}
	if until, ok := doc.ValidUntil(); ok && opts.Expiration.IsZero() {
		opts.Expiration = until
	}
	return opts
}

func (p *Producer) buildHeader(key keyaccess.KeyHandle, typ string, opts Options) (map[string]any, error) {
	alg, err := key.Algorithm()
	if err != nil {
		return nil, &SigningError{KeyID: key.ID, Err: err}
	}
	header := make(map[string]any, len(opts.ExtraHeaders)+4)
	for k, v := range opts.ExtraHeaders {
		header[k] = v
	}
	header[AlgorithmHeader] = alg.String()
	header[TypeHeader] = typ
	if key.ID != "" {
		header[KeyIDHeader] = key.ID
	}
	if opts.HolderKey != nil {
		holderJWK, err := jwx.PublicKeyToPublicKeyJWK(opts.HolderKey.ID, opts.HolderKey.PublicKey)
		if err != nil {
			return nil, sdkutil.LoggingErrorMsgf(err, "converting holder key<%s> to JWK", opts.HolderKey.ID)
		}
		header[ConfirmationKey] = map[string]any{JWKKey: holderJWK}
	}
	return header, nil
}

func (p *Producer) buildPayload(claims map[string]any, opts Options) map[string]any {
	payload := make(map[string]any, len(claims)+len(opts.ExtraClaims)+8)
	for k, v := range opts.ExtraClaims {
		payload[k] = v
	}
	for k, v := range claims {
		payload[k] = v
	}

	now := p.clock.Now()
	payload[IssuedAtClaim] = now.Unix()
	setIfNotEmpty(payload, IssuerClaim, opts.Issuer)
	setIfNotEmpty(payload, SubjectClaim, opts.Subject)
	setIfNotEmpty(payload, NonceClaim, opts.Nonce)
	setIfNotEmpty(payload, JWTIDClaim, opts.JWTID)
	switch len(opts.Audience) {
	case 0:
	case 1:
		payload[AudienceClaim] = opts.Audience[0]
	default:
		payload[AudienceClaim] = append([]string(nil), opts.Audience...)
	}
	if !opts.NotBefore.IsZero() {
		payload[NotBeforeClaim] = opts.NotBefore.Unix()
	}
	switch {
	case !opts.Expiration.IsZero():
		payload[ExpirationClaim] = opts.Expiration.Unix()
	case opts.ExpiresIn > 0:
		payload[ExpirationClaim] = now.Add(opts.ExpiresIn).Unix()
	}
	return payload
}

func (p *Producer) sign(key keyaccess.KeyHandle, header, payload map[string]any) (string, error) {
	headerJSON, err := credential.Canonicalize(header)
	if err != nil {
		return "", errors.Wrap(err, "serializing header")
	}
	payloadJSON, err := credential.Canonicalize(payload)
	if err != nil {
		return "", errors.Wrap(err, "serializing payload")
	}
	signingInput := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)

	signature, err := p.signer.Sign(key, []byte(signingInput))
	if err != nil {
		logrus.WithError(err).Errorf("signer failed for key<%s>", key.ID)
		return "", &SigningError{KeyID: key.ID, Err: err}
	}
	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}

func setIfNotEmpty(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}
