package form

import (
	"errors"
	"strings"

	"github.com/utafrali/RentMarket/pkg/validator"
	"github.com/utafrali/RentMarket/services/storefront/internal/domain"
)

// FieldError is a validation failure pointing at one input.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

var messages = map[string]string{
	FieldScore:         "Please select a rating between 1 and 5 stars.",
	FieldCommunication: "Please rate communication between 1 and 5 stars.",
	FieldReliability:   "Please rate reliability between 1 and 5 stars.",
	FieldItemCondition: "Please rate the item's condition between 1 and 5 stars.",
	FieldComment:       "Please write a comment about your experience.",
}

const scoreRule = "required,min=1,max=5"

type scoreCheck struct {
	field string
	value int
}

// Validate checks fields in a fixed order and reports only the first problem.
func Validate(kind domain.EntityKind, f Fields) error {
	checks := []scoreCheck{{FieldScore, f.Score}}
	if kind == domain.KindOwner {
		checks = append(checks,
			scoreCheck{FieldCommunication, f.Communication},
			scoreCheck{FieldReliability, f.Reliability},
			scoreCheck{FieldItemCondition, f.ItemCondition},
		)
	}

	for _, c := range checks {
		if err := validator.Var(c.field, c.value, scoreRule); err != nil {
			return fieldError(c.field, err)
		}
	}

	comment := strings.TrimSpace(f.Comment)
	if err := validator.Var(FieldComment, comment, "required"); err != nil {
		return fieldError(FieldComment, err)
	}
	if err := validator.Var(FieldComment, comment, "max=2000"); err != nil {
		return &FieldError{Field: FieldComment, Message: "Please keep your comment under 2000 characters."}
	}
	return nil
}

func fieldError(field string, err error) *FieldError {
	var fe *validator.FieldError
	if errors.As(err, &fe) {
		return &FieldError{Field: fe.Field, Message: messages[fe.Field]}
	}
	return &FieldError{Field: field, Message: messages[field]}
}
