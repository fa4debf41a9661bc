package wallet

import (
	"context"
	"sort"
	"time"

	sdkutil "github.com/TBD54566975/ssi-sdk/util"
	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/vc-engine/pkg/envelope"
	"github.com/tbd54566975/vc-engine/pkg/policy"
	"github.com/tbd54566975/vc-engine/pkg/storage"
)

const credentialNamespace = "credentials"

// DefaultImportPolicies are run against every credential on import unless configured otherwise
func DefaultImportPolicies() []policy.Request {
	return []policy.Request{
		policy.Req(policy.SignaturePolicy),
		policy.Req(policy.SDDisclosuresPolicy),
		policy.Req(policy.ExpiredPolicy),
		policy.Req(policy.NotBeforePolicy),
	}
}

// CredentialStore holds credentials that passed the import policies
type CredentialStore struct {
	db       storage.ServiceStorage
	verifier *policy.Verifier
	policies []policy.Request
	clock    clock.Clock
}

func NewCredentialStore(db storage.ServiceStorage, verifier *policy.Verifier, policies []policy.Request, c clock.Clock) (*CredentialStore, error) {
	if db == nil {
		return nil, errors.New("storage cannot be nil")
	}
	if verifier == nil {
		return nil, errors.New("verifier cannot be nil")
	}
	if len(policies) == 0 {
		policies = DefaultImportPolicies()
	}
	if c == nil {
		c = clock.New()
	}
	return &CredentialStore{db: db, verifier: verifier, policies: policies, clock: c}, nil
}

// Import verifies the artifact and stores it. A credential failing any import policy is not stored and an
// ImportRejectedError carrying the report is returned.
func (cs *CredentialStore) Import(ctx context.Context, artifact, alias string) (*StoredCredential, *policy.Report, error) {
	env, err := envelope.Decode(artifact)
	if err != nil {
		return nil, nil, err
	}
	report, err := cs.verifier.VerifyCredential(artifact, cs.policies, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "verifying credential")
	}
	if !report.OverallSuccess() {
		rejected := &ImportRejectedError{Report: report}
		logrus.WithError(rejected).Warn("credential import rejected")
		return nil, report, rejected
	}

	stored := cs.describe(env, artifact, alias)
	storedBytes, err := json.Marshal(stored)
	if err != nil {
		return nil, report, sdkutil.LoggingErrorMsgf(err, "marshaling credential: %s", stored.ID)
	}
	if err = cs.db.Write(ctx, credentialNamespace, stored.ID, storedBytes); err != nil {
		return nil, report, sdkutil.LoggingErrorMsgf(err, "storing credential: %s", stored.ID)
	}
	logrus.Infof("imported credential<%s> from issuer<%s>", stored.ID, stored.Issuer)
	return stored, report, nil
}

func (cs *CredentialStore) describe(env *envelope.Envelope, artifact, alias string) *StoredCredential {
	vc, _ := env.Payload[envelope.VCClaim].(map[string]any)
	id := env.StringClaim(envelope.JWTIDClaim)
	if id == "" {
		id, _ = vc["id"].(string)
	}
	if id == "" {
		id = uuid.NewString()
	}
	format := JWTFormat
	if env.IsSD() {
		format = SDJWTFormat
	}
	var types []string
	switch t := vc["type"].(type) {
	case string:
		types = []string{t}
	case []any:
		types = lo.FilterMap(t, func(v any, _ int) (string, bool) {
			s, ok := v.(string)
			return s, ok
		})
	}
	return &StoredCredential{
		ID:         id,
		Alias:      alias,
		Format:     format,
		Issuer:     env.Issuer(),
		Subject:    env.Subject(),
		Types:      types,
		ImportedAt: cs.clock.Now().UTC().Format(time.RFC3339),
		Artifact:   artifact,
	}
}

func (cs *CredentialStore) Get(ctx context.Context, id string) (*StoredCredential, error) {
	storedBytes, err := cs.db.Read(ctx, credentialNamespace, id)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not get credential: %s", id)
	}
	if len(storedBytes) == 0 {
		return nil, &NotFoundError{Kind: "credential", ID: id}
	}
	var stored StoredCredential
	if err = json.Unmarshal(storedBytes, &stored); err != nil {
		return nil, sdkutil.LoggingErrorMsgf(err, "could not unmarshal credential: %s", id)
	}
	return &stored, nil
}

// List returns every stored credential ordered by ID
func (cs *CredentialStore) List(ctx context.Context) ([]StoredCredential, error) {
	all, err := cs.db.ReadAll(ctx, credentialNamespace)
	if err != nil {
		return nil, sdkutil.LoggingErrorMsg(err, "could not list credentials")
	}
	creds := make([]StoredCredential, 0, len(all))
	for id, storedBytes := range all {
		var stored StoredCredential
		if err = json.Unmarshal(storedBytes, &stored); err != nil {
			return nil, sdkutil.LoggingErrorMsgf(err, "could not unmarshal credential: %s", id)
		}
		creds = append(creds, stored)
	}
	sort.Slice(creds, func(i, j int) bool { return creds[i].ID < creds[j].ID })
	return creds, nil
}

func (cs *CredentialStore) Delete(ctx context.Context, id string) error {
	exists, err := cs.db.Exists(ctx, credentialNamespace, id)
	if err != nil {
		return sdkutil.LoggingErrorMsgf(err, "could not delete credential: %s", id)
	}
	if !exists {
		return &NotFoundError{Kind: "credential", ID: id}
	}
	return cs.db.Delete(ctx, credentialNamespace, id)
}
