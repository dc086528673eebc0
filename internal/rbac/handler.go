package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/cashiercounter/internal/platform/httpx"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// Handler exposes the acting user's permissions.
type Handler struct {
	logger *slog.Logger
	source PermissionSource
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, source PermissionSource) *Handler {
	return &Handler{logger: logger, source: source}
}

// MountRoutes registers permission routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.myPermissions)
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthenticated)
		return
	}
	perms, err := h.source.EffectivePermissions(r.Context(), actor.ID)
	if err != nil {
		h.logger.Error("list actor permissions", slog.Int64("actor", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if perms == nil {
		perms = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"actor_id": actor.ID, "permissions": perms})
}
