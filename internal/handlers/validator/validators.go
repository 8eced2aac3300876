package validator

import (
	"github.com/go-playground/validator/v10"
)

type ValidationRule struct {
	Rule func(v *validator.Validate)
}

// Validator is a wrapper around the actual validator
// It sets up the validator and extract the rule error message from the underlying error
type Validator struct {
	validator *validator.Validate
	rules     []ValidationRule
}

func NewValidator() *Validator {
	v := validator.New()
	return &Validator{validator: v}
}

func (v *Validator) Register(rules ...ValidationRule) {
	for _, validationRule := range rules {
		validationRule.Rule(v.validator)
	}
	v.rules = rules
}

func (v *Validator) Struct(s any) error {
	return v.validator.Struct(s)
}

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

// NewInspectionValidationRules returns the custom rules used by the
// inspection endpoints.
func NewInspectionValidationRules() []ValidationRule {
	return []ValidationRule{
		{
			Rule: registerFn("point_id", pointIdValidator),
		},
	}
}

// pointIdValidator accepts the identifiers of the fixed external form:
// non-empty, at most 64 characters.
func pointIdValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value != "" && len(value) <= 64
}
