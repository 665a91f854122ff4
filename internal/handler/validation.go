package handler

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// formatValidationErrors converts validator errors into field→message
// details for 400 responses.
func formatValidationErrors(err error) map[string]string {
	out := make(map[string]string)
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		out["error"] = err.Error()
		return out
	}
	for _, fe := range validationErrors {
		out[fe.Field()] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
	return out
}
