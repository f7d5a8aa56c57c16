package production

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/httpx"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// IdempotencyHeader carries the client supplied request key. Resubmitting
// the same key returns a conflict instead of running the production twice.
const IdempotencyHeader = "Idempotency-Key"

// Handler exposes production run endpoints.
type Handler struct {
	svc      *Service
	idem     *shared.IdempotencyStore
	validate *validator.Validate
}

// NewHandler builds Handler. idem may be nil to disable request keys.
func NewHandler(svc *Service, idem *shared.IdempotencyStore) *Handler {
	return &Handler{svc: svc, idem: idem, validate: validator.New()}
}

// claimKey reserves the request's idempotency key, if one was sent.
func (h *Handler) claimKey(r *http.Request) (string, error) {
	key := r.Header.Get(IdempotencyHeader)
	if key == "" || h.idem == nil {
		return "", nil
	}
	if err := h.idem.CheckAndInsert(r.Context(), key, "production"); err != nil {
		return "", err
	}
	return key, nil
}

// releaseKey frees a claimed key after a failed request so the client can
// retry with the same key.
func (h *Handler) releaseKey(r *http.Request, key string) {
	if key != "" && h.idem != nil {
		_ = h.idem.Delete(r.Context(), key)
	}
}

// MountRoutes registers production routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/productions", func(r chi.Router) {
		r.Get("/", h.listRuns)
		r.Post("/", h.process)
		r.Get("/{id}", h.getRun)
		r.Post("/batch", h.processBatch)
		r.Post("/batch/retry", h.retryFailed)
	})
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key, err := h.claimKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	run, err := h.svc.Process(r.Context(), processInput(req, shared.ActorFromContext(r.Context())))
	if err != nil {
		h.releaseKey(r, key)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, run)
}

func (h *Handler) processBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key, err := h.claimKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	results, err := h.svc.ProcessBatch(r.Context(), batchInput(req, shared.ActorFromContext(r.Context())))
	if err != nil {
		h.releaseKey(r, key)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, results)
}

func (h *Handler) retryFailed(w http.ResponseWriter, r *http.Request) {
	var req RetryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	results, err := h.svc.RetryFailed(r.Context(), batchInput(req.BatchRequest, shared.ActorFromContext(r.Context())), req.PriorResults)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, results)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid run id", shared.ErrValidation))
		return
	}
	run, err := h.svc.GetRun(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	filter := RunFilter{}
	query := r.URL.Query()
	if raw := query.Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.RespondError(w, fmt.Errorf("%w: invalid product_id", shared.ErrValidation))
			return
		}
		filter.ProductID = id
	}
	if raw := query.Get("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid from timestamp", shared.ErrValidation))
			return
		}
		filter.From = t
	}
	if raw := query.Get("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: invalid to timestamp", shared.ErrValidation))
			return
		}
		filter.To = t
	}
	if raw := query.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			filter.Limit = limit
		}
	}
	runs, err := h.svc.ListRuns(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, runs)
}

func processInput(req ProcessRequest, authorID int64) ProcessInput {
	extras := make([]ExtraIngredient, 0, len(req.ExtraIngredients))
	for _, e := range req.ExtraIngredients {
		extras = append(extras, ExtraIngredient{MaterialID: e.MaterialID, Quantity: e.Quantity})
	}
	return ProcessInput{
		ProductID:             req.ProductID,
		OutputQuantity:        req.OutputQuantity,
		BakerID:               req.BakerID,
		PrimaryActualOverride: req.PrimaryActual,
		ExtraIngredients:      extras,
		AuthorID:              authorID,
	}
}

func batchInput(req BatchRequest, authorID int64) BatchInput {
	lines := make([]BatchLine, 0, len(req.Lines))
	for _, line := range req.Lines {
		extras := make([]ExtraIngredient, 0, len(line.ExtraIngredients))
		for _, e := range line.ExtraIngredients {
			extras = append(extras, ExtraIngredient{MaterialID: e.MaterialID, Quantity: e.Quantity})
		}
		lines = append(lines, BatchLine{
			ProductID:             line.ProductID,
			OutputQuantity:        line.OutputQuantity,
			BakerID:               line.BakerID,
			PrimaryActualOverride: line.PrimaryActual,
			ExtraIngredients:      extras,
		})
	}
	return BatchInput{
		Lines:          lines,
		DefaultBakerID: req.DefaultBakerID,
		StopOnError:    req.StopOnError,
		AuthorID:       authorID,
	}
}
