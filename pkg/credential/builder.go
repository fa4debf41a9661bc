package credential

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BuilderType selects the data model defaults a Builder starts from
type BuilderType string

const (
	W3CV11  BuilderType = "W3CV11"
	W3CV2   BuilderType = "W3CV2"
	Minimal BuilderType = "Minimal"
)

type BuilderOption func(*Builder)

// WithClock sets the clock used for the default validity start
func WithClock(c clock.Clock) BuilderOption {
	return func(b *Builder) {
		b.clock = c
	}
}

// Builder accumulates credential fields. Mutations never fail; all checking happens in Build.
type Builder struct {
	builderType BuilderType
	clock       clock.Clock

	id         string
	contexts   []string
	types      []string
	issuer     string
	subject    string
	validFrom  *time.Time
	validUntil *time.Time
	validFor   *time.Duration
	status     *StatusReference
	schemaID   string
	data       map[string]any
}

// NewBuilder creates a builder seeded with the defaults of the given type
func NewBuilder(builderType BuilderType, opts ...BuilderOption) *Builder {
	b := &Builder{
		builderType: builderType,
		clock:       clock.New(),
		data:        make(map[string]any),
	}
	for _, opt := range opts {
		opt(b)
	}
	switch builderType {
	case W3CV11:
		b.AddContext(W3CV11Context).AddType(VerifiableCredentialType)
	case W3CV2:
		b.AddContext(W3CV2Context).AddType(VerifiableCredentialType)
	case Minimal:
	default:
		logrus.Warnf("unknown builder type<%s>, starting without defaults", builderType)
	}
	return b
}

// AddContext appends contexts, ignoring any that are already present
func (b *Builder) AddContext(contexts ...string) *Builder {
	b.contexts = appendUnique(b.contexts, contexts...)
	return b
}

// AddType appends types, ignoring any that are already present
func (b *Builder) AddType(types ...string) *Builder {
	b.types = appendUnique(b.types, types...)
	return b
}

func (b *Builder) SetID(id string) *Builder {
	b.id = id
	return b
}

func (b *Builder) SetIssuer(did string) *Builder {
	b.issuer = did
	return b
}

func (b *Builder) SetSubject(did string) *Builder {
	b.subject = did
	return b
}

func (b *Builder) ValidFrom(t time.Time) *Builder {
	b.validFrom = &t
	return b
}

func (b *Builder) ValidFromNow() *Builder {
	return b.ValidFrom(b.clock.Now())
}

func (b *Builder) ValidUntil(t time.Time) *Builder {
	b.validUntil = &t
	b.validFor = nil
	return b
}

// ValidFor sets the end of the validity window relative to its start, resolved at Build time
func (b *Builder) ValidFor(d time.Duration) *Builder {
	b.validFor = &d
	b.validUntil = nil
	return b
}

// UseStatusList2021Revocation attaches a revocation status list entry
func (b *Builder) UseStatusList2021Revocation(uri string, index int) *Builder {
	b.status = &StatusReference{URI: uri, Index: index}
	return b
}

// SetSchema references the JSON schema the credential follows
func (b *Builder) SetSchema(id string) *Builder {
	b.schemaID = id
	return b
}

// UseCredentialSubject replaces the attribute tree. An "id" attribute sets the subject when none is set yet.
func (b *Builder) UseCredentialSubject(subject map[string]any) *Builder {
	b.data = DeepCopyMap(subject)
	if id, ok := b.data[IDProperty].(string); ok {
		if b.subject == "" {
			b.subject = id
		}
		delete(b.data, IDProperty)
	}
	return b
}

// UseData sets a single top level attribute of the credential subject
func (b *Builder) UseData(name string, value any) *Builder {
	if name == IDProperty {
		if id, ok := value.(string); ok {
			return b.SetSubject(id)
		}
	}
	b.data[name] = DeepCopy(value)
	return b
}

// Build validates the accumulated fields and produces an immutable Document
func (b *Builder) Build() (*Document, error) {
	validFrom := b.clock.Now()
	if b.validFrom != nil {
		validFrom = *b.validFrom
	}
	var validUntil *time.Time
	switch {
	case b.validUntil != nil:
		until := *b.validUntil
		validUntil = &until
	case b.validFor != nil:
		until := validFrom.Add(*b.validFor)
		validUntil = &until
	}

	if err := validateFields(b, validFrom, validUntil); err != nil {
		return nil, err
	}

	id := b.id
	if id == "" {
		id = "urn:uuid:" + uuid.NewString()
	}
	var status *StatusReference
	if b.status != nil {
		s := *b.status
		status = &s
	}
	return &Document{
		builderType: b.builderType,
		id:          id,
		contexts:    append([]string(nil), b.contexts...),
		types:       append([]string(nil), b.types...),
		issuer:      b.issuer,
		subject:     b.subject,
		validFrom:   validFrom,
		validUntil:  validUntil,
		status:      status,
		schemaID:    b.schemaID,
		data:        DeepCopyMap(b.data),
	}, nil
}

func appendUnique(existing []string, values ...string) []string {
	for _, v := range values {
		duplicate := false
		for _, e := range existing {
			if e == v {
				duplicate = true
				break
			}
		}
		if !duplicate {
			existing = append(existing, v)
		}
	}
	return existing
}
