// Package validator checks tagged structs and reports failures as a
// field-to-message map keyed by snake_case field names.
package validator

import (
	"encoding/json"
	"errors"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"

	"github.com/bloodsync/bloodsync/internal/pkg/strcase"
)

var (
	// EmailPattern is the address shape accepted everywhere in the product:
	// something@domain with at least one dot after the @.
	EmailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	rePassword = regexp.MustCompile(`^.{8,72}$`)
	reDigits   = regexp.MustCompile(`^[0-9]+$`)
	reAlphaSp  = regexp.MustCompile(`^[\p{L} ]+$`)
)

var ErrTranslatorNotFound = errors.New("validator: translator not found")

// Validator validates a struct.
type Validator interface {
	Validate(data any) error
}

// V10ValidationError maps snake_case field names to messages.
type V10ValidationError map[string]string

func (e V10ValidationError) Error() string {
	b, err := json.Marshal(map[string]string(e))
	if err != nil || len(e) == 0 {
		return "validation error"
	}

	return string(b)
}

// Values returns the field messages.
func (e V10ValidationError) Values() map[string]string {
	return e
}

// V10Validator implements Validator with go-playground/validator.
type V10Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func NewV10Validator() (*V10Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	english := en.New()
	trans, ok := ut.New(english, english).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}

	if err := enTranslations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, err
	}

	for _, r := range customRules {
		if err := r.register(v, trans); err != nil {
			return nil, err
		}
	}

	return &V10Validator{validate: v, trans: trans}, nil
}

func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(V10ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[strcase.ToLowerSnake(fe.Field())] = fe.Translate(v.trans)
	}

	return out
}

type rule struct {
	tag     string
	pattern *regexp.Regexp
	message string
}

var customRules = []rule{
	{tag: "password", pattern: rePassword, message: "{0} must be 8-72 characters"},
	{tag: "digits", pattern: reDigits, message: "{0} must contain only digits"},
	{tag: "alphaspace", pattern: reAlphaSp, message: "{0} can contain only letters and spaces"},
	{tag: "mailbox", pattern: EmailPattern, message: "{0} must be a valid email address"},
}

func (r rule) register(v *validator.Validate, trans ut.Translator) error {
	err := v.RegisterValidation(r.tag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && r.pattern.MatchString(s)
	})
	if err != nil {
		return err
	}

	// The en translations already ship some of these tags; ours replace them.
	return v.RegisterTranslation(r.tag, trans,
		func(t ut.Translator) error { return t.Add(r.tag, r.message, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(fe.Tag(), fe.Field())
			if err != nil {
				return fe.Error()
			}
			return msg
		},
	)
}
