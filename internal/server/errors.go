// Package server exposes scoring and ranking over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/spigell/cv-ranker/internal/scoring"
)

// HTTPStatus returns the status code for an error produced while handling a request.
func HTTPStatus(err error) int {
	var validationErrs validator.ValidationErrors
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, scoring.ErrValidation), errors.As(err, &validationErrs):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func extractValidationErrors(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		ve := validationErrs[0]
		return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
	}
	return "validation error: " + err.Error()
}
