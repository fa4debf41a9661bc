package credential

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Presentation wraps compact credentials for a holder. Like Document it is immutable once built.
type Presentation struct {
	id          string
	contexts    []string
	types       []string
	holder      string
	credentials []string
}

func (p *Presentation) ID() string {
	return p.id
}

func (p *Presentation) Holder() string {
	return p.holder
}

// Credentials returns the nested compact credentials in presentation order
func (p *Presentation) Credentials() []string {
	return append([]string(nil), p.credentials...)
}

func (p *Presentation) ToMap() map[string]any {
	return map[string]any{
		"@context":             toAnySlice(p.contexts),
		"type":                 toAnySlice(p.types),
		"id":                   p.id,
		"holder":               p.holder,
		"verifiableCredential": toAnySlice(p.credentials),
	}
}

type PresentationBuilder struct {
	id          string
	contexts    []string
	types       []string
	holder      string
	credentials []string
}

func NewPresentationBuilder() *PresentationBuilder {
	return &PresentationBuilder{
		contexts: []string{W3CV11Context},
		types:    []string{VerifiablePresentationType},
	}
}

func (b *PresentationBuilder) SetID(id string) *PresentationBuilder {
	b.id = id
	return b
}

func (b *PresentationBuilder) SetHolder(did string) *PresentationBuilder {
	b.holder = did
	return b
}

func (b *PresentationBuilder) AddContext(contexts ...string) *PresentationBuilder {
	b.contexts = appendUnique(b.contexts, contexts...)
	return b
}

func (b *PresentationBuilder) AddType(types ...string) *PresentationBuilder {
	b.types = appendUnique(b.types, types...)
	return b
}

// AddCredential appends compact credentials, keeping their order
func (b *PresentationBuilder) AddCredential(compact ...string) *PresentationBuilder {
	b.credentials = append(b.credentials, compact...)
	return b
}

func (b *PresentationBuilder) Build() (*Presentation, error) {
	if b.holder == "" {
		return nil, &ValidationError{Fields: []FieldError{{Field: "holder", Error: "holder is a required field"}}}
	}
	for i, c := range b.credentials {
		if c == "" {
			return nil, errors.Errorf("credential at position %d is empty", i)
		}
	}
	id := b.id
	if id == "" {
		id = "urn:uuid:" + uuid.NewString()
	}
	return &Presentation{
		id:          id,
		contexts:    append([]string(nil), b.contexts...),
		types:       append([]string(nil), b.types...),
		holder:      b.holder,
		credentials: append([]string(nil), b.credentials...),
	}, nil
}
