package purchase

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashiercounter/internal/discount"
	"github.com/odyssey-erp/cashiercounter/internal/platform/httpx"
	"github.com/odyssey-erp/cashiercounter/internal/rbac"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

const dateLayout = "2006-01-02"

// Handler manages purchase document endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermPurchaseView, shared.PermPurchaseEdit))
		r.Get("/documents/{id}", h.getDocument)
		r.Get("/reports/discount-analysis", h.discountAnalysis)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(shared.PermPurchaseEdit))
		r.Post("/documents", h.saveDocument)
		r.Post("/documents/preview", h.previewDocument)
		r.Post("/documents/{id}/submit", h.submitDocument)
		r.Post("/documents/{id}/convert", h.convertEstimate)
	})
}

type lineRequest struct {
	ItemCode string          `json:"item_code"`
	Qty      decimal.Decimal `json:"qty"`
	Rate     decimal.Decimal `json:"rate"`
}

type documentRequest struct {
	ID            int64                 `json:"id"`
	Kind          discount.DocumentKind `json:"kind"`
	Supplier      string                `json:"supplier"`
	DiscountType  discount.DiscountType `json:"discount_type"`
	ApplyDiscount bool                  `json:"apply_discount"`
	PostingDate   string                `json:"posting_date"`
	Items         []lineRequest         `json:"items"`
}

func (req documentRequest) toDocument() (Document, error) {
	doc := Document{
		PurchaseDocument: discount.PurchaseDocument{
			ID:            req.ID,
			Kind:          req.Kind,
			Supplier:      req.Supplier,
			DiscountType:  req.DiscountType,
			ApplyDiscount: req.ApplyDiscount,
		},
	}
	if req.PostingDate != "" {
		posting, err := time.Parse(dateLayout, req.PostingDate)
		if err != nil {
			return Document{}, shared.Invalid("posting_date", req.PostingDate, "must be YYYY-MM-DD")
		}
		doc.PostingDate = posting
	}
	for _, line := range req.Items {
		doc.Items = append(doc.Items, discount.LineItem{
			ItemCode: line.ItemCode,
			Qty:      line.Qty,
			Rate:     line.Rate,
			BaseRate: line.Rate,
		})
	}
	return doc, nil
}

func (h *Handler) decodeDocument(w http.ResponseWriter, r *http.Request) (Document, bool) {
	var req documentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return Document{}, false
	}
	doc, err := req.toDocument()
	if err != nil {
		httpx.RespondError(w, err)
		return Document{}, false
	}
	return doc, true
}

func (h *Handler) saveDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.decodeDocument(w, r)
	if !ok {
		return
	}
	saved, err := h.service.Save(r.Context(), doc)
	if err != nil {
		h.fail(w, "save purchase document", err)
		return
	}
	status := http.StatusOK
	if doc.ID == 0 {
		status = http.StatusCreated
	}
	httpx.JSON(w, status, saved)
}

func (h *Handler) previewDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.decodeDocument(w, r)
	if !ok {
		return
	}
	priced, err := h.service.Preview(r.Context(), doc)
	if err != nil {
		h.fail(w, "preview purchase document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, priced)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get purchase document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) submitDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	doc, err := h.service.Submit(r.Context(), id)
	if err != nil {
		h.fail(w, "submit purchase document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, doc)
}

func (h *Handler) convertEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	invoice, err := h.service.ConvertEstimateToInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, "convert purchase estimate", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func (h *Handler) discountAnalysis(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAnalysisFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.DiscountAnalysis(r.Context(), filter)
	if err != nil {
		h.fail(w, "purchase discount analysis", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func parseAnalysisFilter(r *http.Request) (AnalysisFilter, error) {
	q := r.URL.Query()
	filter := AnalysisFilter{
		Supplier:     q.Get("supplier"),
		DiscountType: discount.DiscountType(q.Get("discount_type")),
	}
	for _, p := range []struct {
		key  string
		dest **time.Time
	}{{"from_date", &filter.From}, {"to_date", &filter.To}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(dateLayout, raw)
		if err != nil {
			return AnalysisFilter{}, shared.Invalid(p.key, raw, "must be YYYY-MM-DD")
		}
		*p.dest = &parsed
	}
	if raw := q.Get("min_discount_amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return AnalysisFilter{}, shared.Invalid("min_discount_amount", raw, "must be a number")
		}
		filter.MinDiscountAmount = amount
	}
	return filter, nil
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
