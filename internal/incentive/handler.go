package incentive

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/cashiercounter/internal/platform/httpx"
	"github.com/odyssey-erp/cashiercounter/internal/rbac"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// Run names a schedulable incentive run.
type Run string

const (
	RunDaily   Run = "daily"
	RunWeekly  Run = "weekly"
	RunCleanup Run = "cleanup"
)

// Trigger enqueues a run for the worker.
type Trigger interface {
	TriggerRun(ctx context.Context, run Run) (string, error)
}

// Handler exposes snapshot reports and manual triggers.
type Handler struct {
	logger  *slog.Logger
	reports *Reports
	trigger Trigger
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, reports *Reports, trigger Trigger, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, reports: reports, trigger: trigger, rbac: rbac}
}

// MountRoutes registers incentive routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermIncentivesView, shared.PermIncentivesRun))
		r.Get("/snapshots/{supplier}", h.latestSnapshot)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermIncentivesRun))
		r.Use(httprate.Limit(6, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		r.Post("/run/{run}", h.triggerRun)
	})
}

func (h *Handler) latestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.reports.LatestSnapshot(r.Context(), chi.URLParam(r, "supplier"))
	if err != nil {
		h.fail(w, "latest incentive snapshot", err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) triggerRun(w http.ResponseWriter, r *http.Request) {
	run := Run(chi.URLParam(r, "run"))
	switch run {
	case RunDaily, RunWeekly:
	default:
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown run "+string(run))
		return
	}
	taskID, err := h.trigger.TriggerRun(r.Context(), run)
	if err != nil {
		h.fail(w, "trigger incentive run", err)
		return
	}
	if h.logger != nil {
		h.logger.Info("incentive run triggered", slog.String("run", string(run)), slog.String("task_id", taskID))
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"run": string(run), "task_id": taskID})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
