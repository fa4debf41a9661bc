package policy

import (
	didsdk "github.com/TBD54566975/ssi-sdk/did"
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/vc-engine/internal/did"
	"github.com/tbd54566975/vc-engine/internal/keyaccess"
	"github.com/tbd54566975/vc-engine/internal/schema"
	"github.com/tbd54566975/vc-engine/pkg/credential"
	"github.com/tbd54566975/vc-engine/pkg/envelope"
	"github.com/tbd54566975/vc-engine/pkg/sdjwt"
)

type Option func(*Verifier)

func WithRegistry(r *Registry) Option {
	return func(v *Verifier) {
		v.registry = r
	}
}

func WithResolver(r did.Resolver) Option {
	return func(v *Verifier) {
		v.resolver = r
	}
}

// WithSchemaResolution resolves schemas referenced by id for the schema policy
func WithSchemaResolution(r schema.Resolution) Option {
	return func(v *Verifier) {
		v.schemas = r
	}
}

func WithKeyVerifier(kv keyaccess.Verifier) Option {
	return func(v *Verifier) {
		v.keys = kv
	}
}

func WithClock(c clock.Clock) Option {
	return func(v *Verifier) {
		v.clock = c
	}
}

// Verifier runs requested policies against credentials and presentations. It holds no per call state and
// may be shared between goroutines.
type Verifier struct {
	registry *Registry
	resolver did.Resolver
	schemas  schema.Resolution
	keys     keyaccess.Verifier
	clock    clock.Clock
}

// NewVerifier builds a verifier over the default registry. Without WithResolver only did:key issuers resolve.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		registry: DefaultRegistry(),
		keys:     keyaccess.NewLocalKeyAccess(),
		clock:    clock.New(),
	}
	resolver, err := did.BuildMultiMethodResolver([]string{string(didsdk.KeyMethod)})
	if err != nil {
		logrus.WithError(err).Error("building default did:key resolver")
	} else {
		v.resolver = resolver
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyCredential decodes the artifact and runs every requested policy in order. Failing policies never
// stop later ones. Malformed input and an empty request list are errors rather than reports.
func (v *Verifier) VerifyCredential(artifact string, requests []Request, values map[string]any) (*Report, error) {
	if len(requests) == 0 {
		return nil, ErrEmptyPolicyList
	}
	target, err := newTarget(artifact, CredentialKind)
	if err != nil {
		return nil, err
	}
	return v.run(target, requests, values), nil
}

// VerifyPresentation runs vpRequests against the presentation, then globalVCRequests plus the
// specificVCRequests registered for each of their types against every nested credential
func (v *Verifier) VerifyPresentation(artifact string, vpRequests, globalVCRequests []Request, specificVCRequests map[string][]Request, values map[string]any) (*PresentationReport, error) {
	specificCount := lo.SumBy(lo.Values(specificVCRequests), func(reqs []Request) int { return len(reqs) })
	if len(vpRequests) == 0 && len(globalVCRequests) == 0 && specificCount == 0 {
		return nil, ErrEmptyPolicyList
	}
	target, err := newTarget(artifact, PresentationKind)
	if err != nil {
		return nil, err
	}

	report := new(PresentationReport)
	if len(vpRequests) > 0 {
		report.Presentation = v.run(target, vpRequests, values)
	}
	if len(globalVCRequests) == 0 && specificCount == 0 {
		return report, nil
	}

	nested, _ := target.Data["verifiableCredential"].([]any)
	for i, entry := range nested {
		compact, ok := entry.(string)
		if !ok {
			report.Credentials = append(report.Credentials, CredentialReport{
				Index:  i,
				Report: failedReport("decode", errors.Errorf("credential at position %d is not a compact string", i)),
			})
			continue
		}
		credTarget, err := newTarget(compact, CredentialKind)
		if err != nil {
			report.Credentials = append(report.Credentials, CredentialReport{Index: i, Report: failedReport("decode", err)})
			continue
		}
		types := credTarget.Types()
		requests := append([]Request(nil), globalVCRequests...)
		for _, t := range types {
			requests = append(requests, specificVCRequests[t]...)
		}
		if len(requests) == 0 {
			continue
		}
		id, _ := credTarget.Data["id"].(string)
		report.Credentials = append(report.Credentials, CredentialReport{
			Index:  i,
			ID:     id,
			Types:  types,
			Report: v.run(credTarget, requests, values),
		})
	}
	return report, nil
}

type runState int

const (
	idle runState = iota
	running
	completed
)

func (s runState) String() string {
	return [...]string{"idle", "running", "completed"}[s]
}

// run is a single verification pass. It moves from idle to running to completed exactly once.
type run struct {
	state    runState
	verifier *Verifier
	target   *Target
	values   map[string]any
}

func (v *Verifier) run(target *Target, requests []Request, values map[string]any) *Report {
	r := &run{state: idle, verifier: v, target: target, values: values}
	return r.execute(requests)
}

func (r *run) transition(to runState) {
	logrus.Debugf("verification run %s -> %s", r.state, to)
	r.state = to
}

func (r *run) execute(requests []Request) *Report {
	r.transition(running)
	report := &Report{Results: make([]Result, 0, len(requests))}
	for _, req := range requests {
		report.Results = append(report.Results, r.invoke(req))
	}
	r.transition(completed)
	return report
}

func (r *run) invoke(req Request) (result Result) {
	result.Policy = req.Name
	p, ok := r.verifier.registry.Lookup(req.Name)
	if !ok {
		result.Err = &UnknownPolicyError{Name: req.Name}
		return result
	}

	vctx := &Context{
		Resolver: r.verifier.resolver,
		Schemas:  r.verifier.schemas,
		Verifier: r.verifier.keys,
		Clock:    r.verifier.clock,
		Values:   credential.DeepCopyMap(r.values),
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			logrus.Errorf("policy<%s> panicked: %v", req.Name, recovered)
			result.Success = false
			result.Value = nil
			result.Err = &PanicError{Policy: req.Name, Recovered: recovered}
		}
	}()

	value, err := p.Verify(r.target, req.Args, vctx)
	if err != nil {
		logrus.WithError(err).Debugf("policy<%s> failed", req.Name)
		result.Err = err
		return result
	}
	result.Success = true
	result.Value = value
	return result
}

func failedReport(policy string, err error) *Report {
	return &Report{Results: []Result{{Policy: policy, Err: err}}}
}

// newTarget decodes the artifact and resolves any presented disclosures. Disclosure problems are left for
// the sd-disclosures policy to report.
func newTarget(artifact string, kind Kind) (*Target, error) {
	env, err := envelope.Decode(artifact)
	if err != nil {
		return nil, err
	}
	target := &Target{Kind: kind, Raw: artifact, Envelope: env}

	claims := env.Payload
	if env.IsSD() {
		resolved, _, err := sdjwt.Resolve(env.Payload, env.Disclosures)
		if err != nil {
			target.DisclosureErr = err
		} else {
			claims = resolved
		}
	}
	target.Claims = plainJSON(claims).(map[string]any)

	dataKey := envelope.VCClaim
	if kind == PresentationKind {
		dataKey = envelope.VPClaim
	}
	if data, ok := target.Claims[dataKey].(map[string]any); ok {
		target.Data = data
	} else {
		target.Data = target.Claims
	}
	return target, nil
}

// plainJSON copies decoded JSON replacing json.Number with int64 or float64 so values can be handed to
// libraries that only know the basic Go types
func plainJSON(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = plainJSON(child)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, child := range t {
			out[i] = plainJSON(child)
		}
		return out
	case interface {
		Int64() (int64, error)
		Float64() (float64, error)
	}:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
	}
	return v
}
