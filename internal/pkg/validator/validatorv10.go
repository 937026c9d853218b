package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/samber/lo"
)

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("translator not found")

// Validator validates a struct and returns a ValidationError describing every
// failing field.
type Validator interface {
	Validate(data any) error
}

// V10Validator implements Validator using go-playground/validator v10.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// ValidationError is a field-to-message map returned when validation fails.
//
// Keys are field names in snake_case to match the JSON request bodies.
type ValidationError map[string]string

// Error implements the error interface.
func (vs ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	b, err := json.Marshal(vs)
	if err != nil {
		return fmt.Sprintf("validation error (failed to marshal: %v)", err)
	}
	return string(b)
}

// KeyValues flattens the map into field, message pairs ordered by field.
func (vs ValidationError) KeyValues() []string {
	keys := lo.Keys(map[string]string(vs))
	sort.Strings(keys)
	return lo.FlatMap(keys, func(k string, _ int) []string { return []string{k, vs[k]} })
}

// NewV10Validator constructs a V10Validator with English translations and custom rules.
func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLang := en.New()
	enTrans, ok := ut.New(enLang, enLang).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(validate, enTrans); err != nil {
		return nil, err
	}

	if err := registerCustom(validate, enTrans); err != nil {
		return nil, err
	}

	return &V10Validator{validate: validate, translator: enTrans}, nil
}

// Validate validates a struct and returns a ValidationError on failure.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var validateErrs validator.ValidationErrors
	if !errors.As(err, &validateErrs) {
		return err
	}

	return ValidationError(lo.SliceToMap([]validator.FieldError(validateErrs), func(fe validator.FieldError) (string, string) {
		return lo.SnakeCase(fe.Field()), fe.Translate(v.translator)
	}))
}

// registerCustom adds the "ms_duration" rule: a non-zero millisecond count
// that fits in a time.Duration.
func registerCustom(validate *validator.Validate, enTrans ut.Translator) error {
	const maxMillis = int64(1<<63-1) / int64(time.Millisecond)

	if err := validate.RegisterValidation("ms_duration", func(fl validator.FieldLevel) bool {
		ms := fl.Field().Int()
		return ms != 0 && ms <= maxMillis && ms >= -maxMillis
	}); err != nil {
		return err
	}

	return validate.RegisterTranslation("ms_duration", enTrans,
		func(t ut.Translator) error {
			return t.Add("ms_duration", "{0} must be a non-zero duration in milliseconds", false)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}
