package credential

import (
	"reflect"
	"strings"
	"time"

	en "github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/pkg/errors"
	validator "gopkg.in/go-playground/validator.v9"
	en_translations "gopkg.in/go-playground/validator.v9/translations/en"
)

// validate holds the settings and caches for validating credential fields
var validate *validator.Validate

// translator is a cache of locale and translation information
var translator *ut.UniversalTranslator

func init() {
	validate = validator.New()

	enLocale := en.New()
	translator = ut.New(enLocale, enLocale)
	lang, _ := translator.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, lang)

	// report JSON names rather than Go field names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldError is a single failed field check
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError lists every field that prevented a credential from being built
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error)
	}
	return "credential validation failed: " + strings.Join(msgs, "; ")
}

// HasField reports whether the named field failed validation
func (e *ValidationError) HasField(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

type requiredFields struct {
	Contexts  []string  `json:"@context" validate:"required,min=1,dive,required"`
	Types     []string  `json:"type" validate:"required,min=1,dive,required"`
	Issuer    string    `json:"issuer" validate:"required"`
	Subject   string    `json:"subject" validate:"required"`
	ValidFrom time.Time `json:"validFrom" validate:"required"`
	SchemaID  string    `json:"credentialSchema" validate:"omitempty,uri"`
}

func validateFields(b *Builder, validFrom time.Time, validUntil *time.Time) error {
	var fieldErrors []FieldError

	fields := requiredFields{
		Contexts:  b.contexts,
		Types:     b.types,
		Issuer:    b.issuer,
		Subject:   b.subject,
		ValidFrom: validFrom,
		SchemaID:  b.schemaID,
	}
	if err := validate.Struct(fields); err != nil {
		var verrors validator.ValidationErrors
		if !errors.As(err, &verrors) {
			return errors.Wrap(err, "validating credential fields")
		}
		lang, _ := translator.GetTranslator("en")
		for _, verror := range verrors {
			fieldErrors = append(fieldErrors, FieldError{
				Field: fieldName(verror.Namespace()),
				Error: verror.Translate(lang),
			})
		}
	}

	if validUntil != nil && validFrom.After(*validUntil) {
		fieldErrors = append(fieldErrors, FieldError{
			Field: "validUntil",
			Error: "validUntil must not be before validFrom",
		})
	}
	if b.status != nil {
		if b.status.URI == "" {
			fieldErrors = append(fieldErrors, FieldError{Field: "credentialStatus", Error: "status list uri is required"})
		}
		if b.status.Index < 0 {
			fieldErrors = append(fieldErrors, FieldError{Field: "credentialStatus", Error: "status list index must not be negative"})
		}
	}

	if len(fieldErrors) > 0 {
		return &ValidationError{Fields: fieldErrors}
	}
	return nil
}

// fieldName strips the struct name and any element index, e.g. requiredFields.type[0] -> type
func fieldName(namespace string) string {
	_, name, found := strings.Cut(namespace, ".")
	if !found {
		name = namespace
	}
	if i := strings.Index(name, "["); i >= 0 {
		name = name[:i]
	}
	return name
}
