package core

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/shopspring/decimal"
)

var (
	requiredTag  = "required"
	requiredText = "{0} is required"

	percentTag  = "percent"
	percentText = "{0} must be between 0 and 100"

	validatorOnce sync.Once
	validate      *validator.Validate
	translator    ut.Translator
)

// Validator returns the shared validator with English translations.
func Validator() (*validator.Validate, ut.Translator) {
	validatorOnce.Do(func() {
		enLocale := en.New()
		translator, _ = ut.New(enLocale, enLocale).GetTranslator("en")
		validate = validator.New(validator.WithRequiredStructEnabled())
		InitValidators(validate, translator)
	})
	return validate, translator
}

// InitValidators registers translations, JSON field names and the ledger types.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Money compares as cents, rates as floats, dates as their text form.
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if m, ok := v.Interface().(Money); ok {
			return m.Cents
		}
		return nil
	}, Money{})
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	validate.RegisterCustomTypeFunc(func(v reflect.Value) interface{} {
		if d, ok := v.Interface().(Date); ok {
			return d.String()
		}
		return nil
	}, Date{})

	_ = validate.RegisterValidation(percentTag, percentValidation)
	RegisterCustomTranslation(validate, translator, percentTag, percentText)
	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

func percentValidation(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return f >= 0 && f <= 100
}

// ValidateStruct runs the struct tags of s and converts failures into a
// ValidationError with one translated message per field.
func ValidateStruct(s interface{}) error {
	v, tr := Validator()
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewValidationError(err)
	}
	flds := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		flds = append(flds, FieldError{Field: fe.Field(), Error: fe.Translate(tr)})
	}
	return NewValidationError(err, flds...)
}
