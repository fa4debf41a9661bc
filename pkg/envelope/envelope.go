package envelope

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/TBD54566975/ssi-sdk/crypto/jwx"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/tbd54566975/vc-engine/internal/keyaccess"
	"github.com/tbd54566975/vc-engine/pkg/credential"
	"github.com/tbd54566975/vc-engine/pkg/sdjwt"
)

const (
	AlgorithmHeader = "alg"
	KeyIDHeader     = "kid"
	TypeHeader      = "typ"
	ConfirmationKey = "cnf"
	JWKKey          = "jwk"

	JWTType   = "JWT"
	SDJWTType = "vc+sd-jwt"

	IssuerClaim     = "iss"
	SubjectClaim    = "sub"
	AudienceClaim   = "aud"
	NonceClaim      = "nonce"
	IssuedAtClaim   = "iat"
	NotBeforeClaim  = "nbf"
	ExpirationClaim = "exp"
	JWTIDClaim      = "jti"
	VCClaim         = "vc"
	VPClaim         = "vp"
)

// ErrMalformedEnvelope is returned for input that cannot be split and decoded into header, payload and
// signature. It is a hard error rather than a failed verification result.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// SigningError wraps a failure of the signing primitive
type SigningError struct {
	KeyID string
	Err   error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing with key<%s> failed: %v", e.KeyID, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// Envelope is a decoded compact JWS, optionally carrying selective disclosures
type Envelope struct {
	// Raw is the complete input including any disclosures
	Raw string
	// JWT is the signed part only
	JWT          string
	Header       map[string]any
	Payload      map[string]any
	Signature    []byte
	SigningInput string
	Disclosures  []string
	// KeyBinding is the optional trailing key binding JWT of a combined SD-JWT presentation
	KeyBinding string
}

// Decode splits a compact envelope. Anything that cannot be split or decoded is ErrMalformedEnvelope.
func Decode(compact string) (*Envelope, error) {
	compact = strings.TrimSpace(compact)
	if compact == "" {
		return nil, errors.Wrap(ErrMalformedEnvelope, "empty input")
	}

	env := &Envelope{Raw: compact}
	signed := compact
	if strings.Contains(compact, sdjwt.Separator) {
		parts := strings.Split(compact, sdjwt.Separator)
		signed = parts[0]
		last := len(parts) - 1
		for i, part := range parts[1:] {
			if part == "" {
				continue
			}
			if i+1 == last && strings.Contains(part, ".") {
				env.KeyBinding = part
				continue
			}
			env.Disclosures = append(env.Disclosures, part)
		}
	}

	segments := strings.Split(signed, ".")
	if len(segments) != 3 {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "expected 3 segments, got %d", len(segments))
	}
	header, err := decodeSegment(segments[0])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "header: %s", err)
	}
	payload, err := decodeSegment(segments[1])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "payload: %s", err)
	}
	signature, err := base64.RawURLEncoding.DecodeString(segments[2])
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "signature: %s", err)
	}

	env.JWT = signed
	env.Header = header
	env.Payload = payload
	env.Signature = signature
	env.SigningInput = segments[0] + "." + segments[1]
	return env, nil
}

func decodeSegment(segment string) (map[string]any, error) {
	raw, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, err
	}
	return credential.DecodeJSONObject(raw)
}

func (e *Envelope) headerString(name string) string {
	s, _ := e.Header[name].(string)
	return s
}

func (e *Envelope) Algorithm() string {
	return e.headerString(AlgorithmHeader)
}

func (e *Envelope) KeyID() string {
	return e.headerString(KeyIDHeader)
}

func (e *Envelope) Type() string {
	return e.headerString(TypeHeader)
}

// StringClaim returns a payload claim if it is a string
func (e *Envelope) StringClaim(name string) string {
	s, _ := e.Payload[name].(string)
	return s
}

func (e *Envelope) Issuer() string {
	return e.StringClaim(IssuerClaim)
}

func (e *Envelope) Subject() string {
	return e.StringClaim(SubjectClaim)
}

// Audience returns the aud claim, which may be a single string or an array
func (e *Envelope) Audience() []string {
	switch aud := e.Payload[AudienceClaim].(type) {
	case string:
		return []string{aud}
	case []any:
		out := make([]string, 0, len(aud))
		for _, a := range aud {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// IsSD reports whether the envelope uses the selective disclosure form
func (e *Envelope) IsSD() bool {
	_, hasAlg := e.Payload[sdjwt.SDAlgKey]
	return hasAlg || len(e.Disclosures) > 0 || strings.Contains(e.Raw, sdjwt.Separator)
}

// VerifySignature checks the signature with the given key. The header algorithm must match the key type.
func (e *Envelope) VerifySignature(verifier keyaccess.Verifier, key keyaccess.KeyHandle) (bool, error) {
	alg, err := key.Algorithm()
	if err != nil {
		return false, err
	}
	if alg.String() != e.Algorithm() {
		return false, errors.Errorf("header alg<%s> does not match key<%s> alg<%s>", e.Algorithm(), key.ID, alg)
	}
	return verifier.Verify(key, e.Signature, []byte(e.SigningInput))
}

// HolderKey returns the confirmation key carried in the header, if any
func (e *Envelope) HolderKey() (*keyaccess.KeyHandle, error) {
	cnf, ok := e.Header[ConfirmationKey].(map[string]any)
	if !ok {
		return nil, nil
	}
	rawJWK, ok := cnf[JWKKey]
	if !ok {
		return nil, errors.New("cnf header has no jwk")
	}
	jwkBytes, err := json.Marshal(rawJWK)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling cnf jwk")
	}
	var publicJWK jwx.PublicKeyJWK
	if err = json.Unmarshal(jwkBytes, &publicJWK); err != nil {
		return nil, errors.Wrap(err, "unmarshaling cnf jwk")
	}
	pubKey, err := publicJWK.ToPublicKey()
	if err != nil {
		return nil, errors.Wrap(err, "converting cnf jwk to public key")
	}
	return keyaccess.NewPublicKeyHandle(publicJWK.KID, pubKey)
}
