package masterdata

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/httpx"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// Handler exposes read-only product master data.
type Handler struct {
	repo *Repository
}

// NewHandler builds Handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// MountRoutes registers product routes on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{productID}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid product id", shared.ErrValidation))
		return
	}
	product, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}
