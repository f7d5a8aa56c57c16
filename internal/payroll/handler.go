package payroll

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/httpx"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// Handler exposes staff and settlement endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

// MountRoutes registers payroll routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/bakers", func(r chi.Router) {
		r.Get("/", h.listBakers)
		r.Post("/", h.createBaker)
		r.Get("/{id}", h.getBaker)
		r.Get("/{id}/payments", h.bakerPayments)
		r.Post("/{id}/settlements", h.settleBaker)
	})
	r.Route("/salespersons", func(r chi.Router) {
		r.Get("/", h.listSalespersons)
		r.Post("/", h.createSalesperson)
		r.Get("/{id}", h.getSalesperson)
		r.Get("/{id}/payments", h.salespersonPayments)
		r.Post("/{id}/settlements", h.settleSalesperson)
	})
}

func (h *Handler) listBakers(w http.ResponseWriter, r *http.Request) {
	bakers, err := h.svc.ListBakers(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bakers)
}

func (h *Handler) createBaker(w http.ResponseWriter, r *http.Request) {
	var req CreateBakerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	baker, err := h.svc.CreateBaker(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, baker)
}

func (h *Handler) getBaker(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	baker, err := h.svc.GetBaker(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, baker)
}

func (h *Handler) bakerPayments(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payments, err := h.svc.Payments(r.Context(), TargetBaker, id, paymentLimit(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) settleBaker(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.settle(w, r, BakerTarget{ID: id})
}

func (h *Handler) listSalespersons(w http.ResponseWriter, r *http.Request) {
	people, err := h.svc.ListSalespersons(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, people)
}

func (h *Handler) createSalesperson(w http.ResponseWriter, r *http.Request) {
	var req CreateSalespersonRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	person, err := h.svc.CreateSalesperson(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, person)
}

func (h *Handler) getSalesperson(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	person, err := h.svc.GetSalesperson(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, person)
}

func (h *Handler) salespersonPayments(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payments, err := h.svc.Payments(r.Context(), TargetSalesperson, id, paymentLimit(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) settleSalesperson(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.settle(w, r, SalespersonTarget{ID: id})
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request, target PaymentTarget) {
	var req SettleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID := shared.ActorFromContext(r.Context())

	kind := PaymentKindSalary
	if !req.IsFixedSalary {
		switch target.(type) {
		case BakerTarget:
			kind = PaymentKindProduction
		case SalespersonTarget:
			kind = PaymentKindCommission
		}
	}

	payment, err := h.svc.Settle(r.Context(), SettleInput{
		Target:            target,
		Amount:            req.Amount,
		KilosOrCommission: req.KilosOrCommission,
		PaymentKind:       kind,
		IsFixedSalary:     req.IsFixedSalary,
		Notes:             req.Notes,
		AuthorID:          actorID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id", shared.ErrValidation)
	}
	return id, nil
}

func paymentLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
