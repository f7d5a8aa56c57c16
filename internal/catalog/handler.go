package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/httpx"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// Handler wires HTTP endpoints for the recipe catalog.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/recipes", h.create)
	r.Get("/products/{productID}/recipe", h.getActive)
	r.Get("/products/{productID}/recipe/versions", h.listVersions)
	r.Put("/products/{productID}/recipe/ingredients", h.updateIngredients)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRecipeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	recipe, err := h.service.Create(r.Context(), req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create recipe", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, recipe)
}

func (h *Handler) getActive(w http.ResponseWriter, r *http.Request) {
	productID, err := parseID(r, "productID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	recipe, err := h.service.GetActiveRecipe(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recipe)
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	productID, err := parseID(r, "productID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	versions, err := h.service.ListVersions(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, versions)
}

func (h *Handler) updateIngredients(w http.ResponseWriter, r *http.Request) {
	productID, err := parseID(r, "productID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	var req UpdateIngredientsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid json body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	recipe, err := h.service.UpdateIngredients(r.Context(), productID, req, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("update recipe ingredients", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, recipe)
}

func parseID(r *http.Request, param string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, param), 10, 64)
}
