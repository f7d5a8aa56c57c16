package httpx

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// StatusCarrier lets a domain error choose its HTTP status code.
type StatusCarrier interface {
	HTTPStatus() int
}

// ExtrasCarrier lets a domain error attach structured problem extras.
type ExtrasCarrier interface {
	ProblemExtras() map[string]any
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var sc StatusCarrier
	if errors.As(err, &sc) {
		status := sc.HTTPStatus()
		extras := map[string]any(nil)
		var ec ExtrasCarrier
		if errors.As(err, &ec) {
			extras = ec.ProblemExtras()
		}
		ProblemExtras(w, status, http.StatusText(status), err.Error(), extras)
		return
	}

	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation), errors.As(err, &verrs):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrConcurrencyConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
