package discount

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/cashiercounter/internal/platform/httpx"
	"github.com/odyssey-erp/cashiercounter/internal/rbac"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// Handler exposes discount queries and record maintenance.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers discount routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermDiscountsView, shared.PermDiscountsManage))
		r.Get("/promotions/active", h.activePromotions)
		r.Get("/suppliers/{supplier}", h.supplierDiscounts)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermDiscountsManage))
		r.Post("/agreements", h.saveAgreement)
		r.Put("/agreements/{id}", h.saveAgreement)
		r.Post("/promotions", h.savePromotion)
		r.Put("/promotions/{id}", h.savePromotion)
		r.Delete("/promotions/{id}", h.deletePromotion)
		r.Post("/tiers", h.saveTier)
		r.Put("/tiers/{id}", h.saveTier)
	})
}

func (h *Handler) activePromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := h.service.GetActivePromotions(r.Context())
	if err != nil {
		h.fail(w, "active promotions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"promotions": emptyIfNil(promos)})
}

func (h *Handler) supplierDiscounts(w http.ResponseWriter, r *http.Request) {
	supplier := chi.URLParam(r, "supplier")
	agreements, err := h.service.GetSupplierDiscounts(r.Context(), supplier)
	if err != nil {
		h.fail(w, "supplier discounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"supplier": supplier, "agreements": emptyIfNil(agreements)})
}

func (h *Handler) saveAgreement(w http.ResponseWriter, r *http.Request) {
	var in Agreement
	if !decode(w, r, &in) {
		return
	}
	if !bindID(w, r, &in.ID) {
		return
	}
	saved, err := h.service.SaveAgreement(r.Context(), in)
	if err != nil {
		h.fail(w, "save agreement", err)
		return
	}
	httpx.JSON(w, statusFor(r), saved)
}

func (h *Handler) savePromotion(w http.ResponseWriter, r *http.Request) {
	var in Promotion
	if !decode(w, r, &in) {
		return
	}
	if !bindID(w, r, &in.ID) {
		return
	}
	saved, err := h.service.SavePromotion(r.Context(), in)
	if err != nil {
		h.fail(w, "save promotion", err)
		return
	}
	httpx.JSON(w, statusFor(r), saved)
}

func (h *Handler) deletePromotion(w http.ResponseWriter, r *http.Request) {
	var id int64
	if !bindID(w, r, &id) {
		return
	}
	if err := h.service.DeletePromotion(r.Context(), id); err != nil {
		h.fail(w, "delete promotion", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) saveTier(w http.ResponseWriter, r *http.Request) {
	var in Tier
	if !decode(w, r, &in) {
		return
	}
	if !bindID(w, r, &in.ID) {
		return
	}
	saved, err := h.service.SaveTier(r.Context(), in)
	if err != nil {
		h.fail(w, "save tier", err)
		return
	}
	httpx.JSON(w, statusFor(r), saved)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return false
	}
	return true
}

// bindID copies the {id} path parameter into dest when present.
func bindID(w http.ResponseWriter, r *http.Request, dest *int64) bool {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		*dest = 0
		return true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return false
	}
	*dest = id
	return true
}

func statusFor(r *http.Request) int {
	if r.Method == http.MethodPost {
		return http.StatusCreated
	}
	return http.StatusOK
}

func emptyIfNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
