package core

import (
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
)

var (
	// custom validation tags & texts
	requiredTag  = "required"
	requiredText = "this field is required"

	emailTag  = "email"
	emailText = "enter a valid email address"

	oneOfTag  = "oneof"
	oneOfText = "must be one of: {0}"
)

// NewTranslator returns the English translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) error {
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		return errors.Wrap(err, "registering default translations")
	}

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// override default translations
	if err := RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true); err != nil {
		return err
	}
	if err := RegisterCustomTranslation(validate, translator, emailTag, emailText, true); err != nil {
		return err
	}
	err := validate.RegisterTranslation(
		oneOfTag, translator,
		func(t ut.Translator) error { return t.Add(oneOfTag, oneOfText, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(oneOfTag, strings.Join(strings.Fields(fe.Param()), ", "))
			return s
		},
	)
	return errors.Wrapf(err, "registering %q translation", oneOfTag)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) error {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	err := validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
	return errors.Wrapf(err, "registering %q translation", tag)
}
