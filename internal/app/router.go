package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/cashiercounter/internal/cashier"
	"github.com/odyssey-erp/cashiercounter/internal/discount"
	"github.com/odyssey-erp/cashiercounter/internal/incentive"
	"github.com/odyssey-erp/cashiercounter/internal/observability"
	"github.com/odyssey-erp/cashiercounter/internal/purchase"
	"github.com/odyssey-erp/cashiercounter/internal/rbac"
	"github.com/odyssey-erp/cashiercounter/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	RBACMiddleware     rbac.Middleware
	PurchaseHandler    *purchase.Handler
	DiscountHandler    *discount.Handler
	CashierHandler     *cashier.Handler
	IncentiveHandler   *incentive.Handler
	PermissionsHandler *rbac.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		RBAC:    params.RBACMiddleware,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		if params.PurchaseHandler != nil {
			r.Route("/purchase", params.PurchaseHandler.MountRoutes)
		}
		if params.DiscountHandler != nil {
			r.Route("/discounts", params.DiscountHandler.MountRoutes)
		}
		if params.CashierHandler != nil {
			r.Route("/cashier", params.CashierHandler.MountRoutes)
		}
		if params.IncentiveHandler != nil {
			r.Route("/incentives", params.IncentiveHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
