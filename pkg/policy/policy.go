package policy

import (
	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/tbd54566975/vc-engine/internal/did"
	"github.com/tbd54566975/vc-engine/internal/keyaccess"
	"github.com/tbd54566975/vc-engine/internal/schema"
	"github.com/tbd54566975/vc-engine/pkg/envelope"
)

// Policy is one named verification check. Verify returns a policy specific value on success; any error,
// including a panic, is recorded as the policy's failure.
type Policy interface {
	Name() string
	Description() string
	Verify(target *Target, args any, vctx *Context) (any, error)
}

// VerifyFunc is the signature of a policy's check
type VerifyFunc func(target *Target, args any, vctx *Context) (any, error)

type funcPolicy struct {
	name        string
	description string
	verify      VerifyFunc
}

// New creates a policy from a function
func New(name, description string, verify VerifyFunc) Policy {
	return &funcPolicy{name: name, description: description, verify: verify}
}

func (p *funcPolicy) Name() string {
	return p.name
}

func (p *funcPolicy) Description() string {
	return p.description
}

func (p *funcPolicy) Verify(target *Target, args any, vctx *Context) (any, error) {
	return p.verify(target, args, vctx)
}

// Kind tells credentials and presentations apart
type Kind string

const (
	CredentialKind   Kind = "credential"
	PresentationKind Kind = "presentation"
)

// Target is the decoded artifact a policy inspects
type Target struct {
	Kind     Kind
	Raw      string
	Envelope *envelope.Envelope
	// Claims is the payload with any presented disclosures resolved
	Claims map[string]any
	// Data is the vc or vp object from Claims, or Claims itself when neither is present
	Data map[string]any
	// DisclosureErr is set when the presented disclosures could not be resolved against the payload
	DisclosureErr error
}

// Types returns the type values of Data
func (t *Target) Types() []string {
	switch types := t.Data["type"].(type) {
	case string:
		return []string{types}
	case []any:
		return lo.FilterMap(types, func(v any, _ int) (string, bool) {
			s, ok := v.(string)
			return s, ok
		})
	}
	return nil
}

// Context is handed to every policy invocation. Each invocation gets its own copy of Values.
type Context struct {
	Resolver did.Resolver
	Schemas  schema.Resolution
	Verifier keyaccess.Verifier
	Clock    clock.Clock
	Values   map[string]any
}

// Value returns a caller supplied value
func (c *Context) Value(key string) (any, bool) {
	v, ok := c.Values[key]
	return v, ok
}

// StringValue returns a caller supplied string value
func (c *Context) StringValue(key string) string {
	s, _ := c.Values[key].(string)
	return s
}

// Request names a policy and its arguments
type Request struct {
	Name string `json:"policy"`
	Args any    `json:"args,omitempty"`
}

// Req is shorthand for building a request
func Req(name string, args ...any) Request {
	r := Request{Name: name}
	if len(args) == 1 {
		r.Args = args[0]
	} else if len(args) > 1 {
		r.Args = args
	}
	return r
}

// Result is the outcome of one policy
type Result struct {
	Policy  string
	Success bool
	Value   any
	Err     error
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"policy":  r.Policy,
		"success": r.Success,
	}
	if r.Err != nil {
		out["error"] = r.Err.Error()
	} else if r.Value != nil {
		out["result"] = r.Value
	}
	return json.Marshal(out)
}

// Report holds the results of one verification run, in request order
type Report struct {
	Results []Result `json:"results"`
}

// OverallSuccess is true iff at least one policy ran and every policy succeeded
func (r *Report) OverallSuccess() bool {
	return len(r.Results) > 0 && lo.EveryBy(r.Results, func(res Result) bool { return res.Success })
}

// Failed returns the failed results in order
func (r *Report) Failed() []Result {
	return lo.Filter(r.Results, func(res Result, _ int) bool { return !res.Success })
}

// Result returns the result of the named policy
func (r *Report) Result(name string) (Result, bool) {
	return lo.Find(r.Results, func(res Result) bool { return res.Policy == name })
}

func (r *Report) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"success": r.OverallSuccess(),
		"results": r.Results,
	})
}

// CredentialReport is the report for one credential nested in a presentation
type CredentialReport struct {
	Index  int      `json:"index"`
	ID     string   `json:"id,omitempty"`
	Types  []string `json:"types,omitempty"`
	Report *Report  `json:"report"`
}

// PresentationReport combines the report on the presentation with a report per nested credential
type PresentationReport struct {
	Presentation *Report           `json:"presentation,omitempty"`
	Credentials  []CredentialReport `json:"credentials,omitempty"`
}

// OverallSuccess is true iff at least one policy ran anywhere and every policy succeeded
func (r *PresentationReport) OverallSuccess() bool {
	reports := lo.Map(r.Credentials, func(c CredentialReport, _ int) *Report { return c.Report })
	if r.Presentation != nil {
		reports = append(reports, r.Presentation)
	}
	ran := lo.SumBy(reports, func(rep *Report) int { return len(rep.Results) })
	return ran > 0 && lo.EveryBy(reports, func(rep *Report) bool {
		return len(rep.Results) == 0 || rep.OverallSuccess()
	})
}

func (r *PresentationReport) MarshalJSON() ([]byte, error) {
	type alias PresentationReport
	return json.Marshal(struct {
		Success bool `json:"success"`
		*alias
	}{Success: r.OverallSuccess(), alias: (*alias)(r)})
}
