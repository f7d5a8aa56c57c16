package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bakehouse-erp/bakehouse-erp/internal/catalog"
	"github.com/bakehouse-erp/bakehouse-erp/internal/finishedgoods"
	"github.com/bakehouse-erp/bakehouse-erp/internal/masterdata"
	"github.com/bakehouse-erp/bakehouse-erp/internal/materials"
	"github.com/bakehouse-erp/bakehouse-erp/internal/observability"
	"github.com/bakehouse-erp/bakehouse-erp/internal/payroll"
	"github.com/bakehouse-erp/bakehouse-erp/internal/production"
	"github.com/bakehouse-erp/bakehouse-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Metrics           *observability.Metrics
	MasterDataHandler *masterdata.Handler
	CatalogHandler    *catalog.Handler
	MaterialsHandler  *materials.Handler
	GoodsHandler      *finishedgoods.Handler
	ProductionHandler *production.Handler
	PayrollHandler    *payroll.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Bakehouse defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.MasterDataHandler != nil {
			params.MasterDataHandler.MountRoutes(r)
		}
		if params.CatalogHandler != nil {
			params.CatalogHandler.MountRoutes(r)
		}
		if params.MaterialsHandler != nil {
			r.Route("/materials", func(r chi.Router) {
				params.MaterialsHandler.MountRoutes(r)
			})
		}
		if params.GoodsHandler != nil {
			params.GoodsHandler.MountRoutes(r)
		}
		if params.ProductionHandler != nil {
			params.ProductionHandler.MountRoutes(r)
		}
		if params.PayrollHandler != nil {
			params.PayrollHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	}

	return r
}
