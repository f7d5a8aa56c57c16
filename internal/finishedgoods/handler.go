package finishedgoods

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/httpx"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// Handler exposes finished good stock, sale and lot endpoints.
type Handler struct {
	svc      *Service
	idem     *shared.IdempotencyStore
	validate *validator.Validate
}

// NewHandler builds Handler. idem may be nil to disable sale request keys.
func NewHandler(svc *Service, idem *shared.IdempotencyStore) *Handler {
	return &Handler{svc: svc, idem: idem, validate: validator.New()}
}

// MountRoutes registers finished good routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/stock", func(r chi.Router) {
		r.Get("/", h.listStock)
		r.Get("/{productID}", h.currentStock)
		r.Get("/{productID}/movements", h.movements)
		r.Get("/{productID}/lots", h.listLots)
		r.Post("/{productID}/sales", h.commitSale)
		r.Post("/{productID}/waste", h.registerWaste)
		r.Post("/{productID}/samples", h.registerSample)
		r.Post("/{productID}/adjustments", h.adjust)
		r.Put("/{productID}/minimum", h.setMinimum)
	})
	r.Post("/lots/{lotCode}/withdraw", h.withdrawLot)
}

func (h *Handler) listStock(w http.ResponseWriter, r *http.Request) {
	stock, err := h.svc.ListStock(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stock)
}

func (h *Handler) currentStock(w http.ResponseWriter, r *http.Request) {
	productID, err := parseProductID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.svc.CurrentStock(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) movements(w http.ResponseWriter, r *http.Request) {
	productID, err := parseProductID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}
	movements, err := h.svc.Movements(r.Context(), productID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) listLots(w http.ResponseWriter, r *http.Request) {
	productID, err := parseProductID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := LotStatus(r.URL.Query().Get("status"))
	lots, err := h.svc.Lots(r.Context(), productID, status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lots)
}

func (h *Handler) commitSale(w http.ResponseWriter, r *http.Request) {
	productID, err := parseProductID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idem != nil {
		if err := h.idem.CheckAndInsert(r.Context(), key, "sale"); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	actorID := shared.ActorFromContext(r.Context())
	movement, err := h.svc.CommitSale(r.Context(), SaleInput{
		ProductID:     productID,
		Quantity:      req.Quantity,
		OrderID:       req.OrderID,
		SalespersonID: req.SalespersonID,
		Subtotal:      req.Subtotal,
		ActorID:       &actorID,
	})
	if err != nil {
		if key != "" && h.idem != nil {
			_ = h.idem.Delete(r.Context(), key)
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) registerWaste(w http.ResponseWriter, r *http.Request) {
	h.applyOut(w, r, h.svc.RegisterWaste)
}

func (h *Handler) registerSample(w http.ResponseWriter, r *http.Request) {
	h.applyOut(w, r, h.svc.RegisterSample)
}

func (h *Handler) applyOut(w http.ResponseWriter, r *http.Request, apply func(context.Context, OutInput) (Movement, error)) {
	productID, err := parseProductID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req OutRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	movement, err := apply(r.Context(), OutInput{
		ProductID: productID,
		Quantity:  req.Quantity,
		Notes:     req.Notes,
		ActorID:   &actorID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	productID, err := parseProductID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req AdjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	movement, err := h.svc.Adjust(r.Context(), productID, req.NewStock, req.Notes, &actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if movement.ID == 0 {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "unchanged"})
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) setMinimum(w http.ResponseWriter, r *http.Request) {
	productID, err := parseProductID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req SetMinimumRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	inv, err := h.svc.SetMinimum(r.Context(), productID, req.StockMinimum, &actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) withdrawLot(w http.ResponseWriter, r *http.Request) {
	lotCode := chi.URLParam(r, "lotCode")
	if lotCode == "" {
		httpx.RespondError(w, fmt.Errorf("%w: lot code required", shared.ErrValidation))
		return
	}
	var req WithdrawLotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	lot, err := h.svc.WithdrawLot(r.Context(), lotCode, req.Notes, &actorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lot)
}

func parseProductID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	return id, nil
}
