package cashier

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashiercounter/internal/platform/httpx"
	"github.com/odyssey-erp/cashiercounter/internal/rbac"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

const dateLayout = "2006-01-02"

// Handler exposes cashier collection endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers cashier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermCashierView, shared.PermCashierCollect))
		r.Get("/collections/{id}", h.getCollection)
		r.Get("/summary", h.summary)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermCashierCollect))
		r.Post("/collections", h.saveCollection)
		r.Post("/collections/{id}/submit", h.submitCollection)
	})
}

type collectionRequest struct {
	ID          int64           `json:"id"`
	Customer    string          `json:"customer"`
	PostingDate string          `json:"posting_date"`
	PaymentMode string          `json:"payment_mode"`
	PaidFrom    string          `json:"paid_from"`
	PaidTo      string          `json:"paid_to"`
	Discount    decimal.Decimal `json:"discount"`
	Rows        []Row           `json:"rows"`
}

func (h *Handler) saveCollection(w http.ResponseWriter, r *http.Request) {
	var req collectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	c := Collection{
		ID:          req.ID,
		Customer:    req.Customer,
		PaymentMode: req.PaymentMode,
		PaidFrom:    req.PaidFrom,
		PaidTo:      req.PaidTo,
		Discount:    req.Discount,
		Rows:        req.Rows,
	}
	if req.PostingDate != "" {
		posting, err := time.Parse(dateLayout, req.PostingDate)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("posting_date", req.PostingDate, "must be YYYY-MM-DD"))
			return
		}
		c.PostingDate = posting
	}
	saved, err := h.service.Save(r.Context(), c)
	if err != nil {
		h.fail(w, "save cashier collection", err)
		return
	}
	status := http.StatusOK
	if req.ID == 0 {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, saved)
}

func (h *Handler) getCollection(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get cashier collection", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) submitCollection(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Submit(r.Context(), id)
	if err != nil {
		h.fail(w, "submit cashier collection", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter SummaryFilter
	for _, p := range []struct {
		key  string
		dest *time.Time
	}{{"from_date", &filter.From}, {"to_date", &filter.To}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			httpx.RespondError(w, shared.Invalid(p.key, raw, "must be YYYY-MM-DD"))
			return
		}
		*p.dest = parsed
	}
	if raw := q.Get("cashier"); raw != "" {
		cashier, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, shared.Invalid("cashier", raw, "must be a user id"))
			return
		}
		filter.Cashier = &cashier
	}
	summary, err := h.service.Summary(r.Context(), filter)
	if err != nil {
		h.fail(w, "cashier collection summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
