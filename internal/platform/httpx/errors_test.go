package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

type carrierErr struct{}

func (carrierErr) Error() string { return "out of stock" }

func (carrierErr) HTTPStatus() int { return http.StatusConflict }

func (carrierErr) ProblemExtras() map[string]any {
	return map[string]any{"material_id": int64(7)}
}

func respond(t *testing.T, err error) (int, ProblemDetail) {
	t.Helper()
	rec := httptest.NewRecorder()
	RespondError(rec, err)

	var body ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return rec.Code, body
}

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", fmt.Errorf("%w: recipe", shared.ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("%w: qty", shared.ErrValidation), http.StatusBadRequest},
		{"concurrency", shared.ErrConcurrencyConflict, http.StatusConflict},
		{"idempotency", shared.ErrIdempotencyConflict, http.StatusConflict},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := respond(t, tc.err)
			require.Equal(t, tc.status, status)
			require.Equal(t, tc.status, body.Status)
		})
	}
}

func TestRespondErrorUsesStatusCarrier(t *testing.T) {
	status, body := respond(t, fmt.Errorf("sale rejected: %w", carrierErr{}))
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "sale rejected: out of stock", body.Detail)
	require.EqualValues(t, 7, body.Extras["material_id"])
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	_, body := respond(t, errors.New("pq: connection refused"))
	require.Empty(t, body.Detail)
}
