package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var fieldLabels = map[string]string{
	"Category":    "category",
	"Region":      "region",
	"Country":     "country",
	"TargetCount": "target count",
}

// Validate checks the parameters before they are sent to the backend.
func (p JobParameters) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate job parameters: %w", err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		label := fieldLabels[fe.StructField()]
		if label == "" {
			label = strings.ToLower(fe.StructField())
		}
		switch fe.Tag() {
		case "required":
			problems = append(problems, label+" is required")
		case "gt":
			problems = append(problems, fmt.Sprintf("%s must be greater than %s", label, fe.Param()))
		default:
			problems = append(problems, label+" is invalid")
		}
	}
	return fmt.Errorf("invalid job parameters: %s", strings.Join(problems, ", "))
}
