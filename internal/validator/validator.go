package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/classcode-io/activity-service/internal/models"
)

// ValidationError is one field-level failure, safe to surface to clients.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Validator wraps go-playground/validator with the service's business rules.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	validate := validator.New()
	v := &Validator{validate: validate}
	v.registerBusinessRules()
	return v
}

// Validate runs struct validation and converts failures into ValidationErrors.
// Returns nil when the value is valid.
func (v *Validator) Validate(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		if ve := ToValidationErrors(err); len(ve) > 0 {
			return ve
		}
		return err
	}
	return nil
}

func (v *Validator) registerBusinessRules() {
	v.validate.RegisterValidation("final_score_policy", func(fl validator.FieldLevel) bool {
		switch models.FinalScorePolicy(fl.Field().String()) {
		case models.PolicyLastAttempt, models.PolicyHighestScore:
			return true
		}
		return false
	})

	v.validate.RegisterValidation("deduction_pct", func(fl validator.FieldLevel) bool {
		pct := fl.Field().Float()
		return pct >= 0 && pct <= 100
	})

	v.validate.RegisterValidation("owner_kind", func(fl validator.FieldLevel) bool {
		switch models.OwnerKind(fl.Field().String()) {
		case models.OwnerStudent, models.OwnerTeacher:
			return true
		}
		return false
	})
}

// ToValidationErrors converts validator.ValidationErrors into the service's
// client-facing shape.
func ToValidationErrors(err error) ValidationErrors {
	var out ValidationErrors
	if fieldErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range fieldErrs {
			out = append(out, ValidationError{
				Field:   fe.Field(),
				Message: messageForTag(fe),
				Value:   fe.Value(),
				Rule:    fe.Tag(),
			})
		}
	}
	return out
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "final_score_policy":
		return "must be last_attempt or highest_score"
	case "deduction_pct":
		return "must be a percentage between 0 and 100"
	case "owner_kind":
		return "must be student or teacher"
	case "dive":
		return "contains an invalid element"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
