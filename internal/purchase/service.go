package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashiercounter/internal/discount"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// DefaultApprovalThreshold is the estimate total above which manager
// approval is required.
var DefaultApprovalThreshold = decimal.NewFromInt(100000)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Document, error)
	Save(ctx context.Context, doc Document) (Document, error)
	Convert(ctx context.Context, estimateID int64, invoice Document) (Document, error)
	DiscountAnalysis(ctx context.Context, filter AnalysisFilter) ([]AnalysisRow, error)
}

// Pricer applies discounts to a purchase document in place.
type Pricer interface {
	ApplyAllDiscounts(ctx context.Context, doc *discount.PurchaseDocument) error
}

// PermissionChecker answers whether a user holds a permission.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID int64, perm string) (bool, error)
}

// ServiceConfig tunes validation rules.
type ServiceConfig struct {
	ApprovalThreshold decimal.Decimal
}

// Service orchestrates purchase document validation and workflow.
type Service struct {
	repo   RepositoryPort
	pricer Pricer
	perms  PermissionChecker
	cfg    ServiceConfig
	logger *slog.Logger
	clock  func() time.Time
}

// NewService constructs the purchase service.
func NewService(repo RepositoryPort, pricer Pricer, perms PermissionChecker, cfg ServiceConfig, logger *slog.Logger) *Service {
	if !cfg.ApprovalThreshold.IsPositive() {
		cfg.ApprovalThreshold = DefaultApprovalThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, pricer: pricer, perms: perms, cfg: cfg, logger: logger, clock: time.Now}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// CalculateTotals derives line amounts and header totals from quantities
// and base rates.
func CalculateTotals(doc *Document) {
	totalQty := decimal.Zero
	total := decimal.Zero
	for i := range doc.Items {
		item := &doc.Items[i]
		if item.BaseRate.IsZero() {
			item.BaseRate = item.Rate
		}
		item.Amount = item.Qty.Mul(item.BaseRate)
		totalQty = totalQty.Add(item.Qty)
		total = total.Add(item.Amount)
	}
	doc.TotalQty = totalQty
	doc.Total = total
	doc.GrandTotal = total.Sub(doc.TotalDiscountAmount)
}

// Preview runs the validation pass without persisting.
func (s *Service) Preview(ctx context.Context, doc Document) (Document, error) {
	if err := s.validate(ctx, &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Save validates and stores a draft document.
func (s *Service) Save(ctx context.Context, doc Document) (Document, error) {
	if doc.ID != 0 {
		current, err := s.repo.Get(ctx, doc.ID)
		if err != nil {
			return Document{}, err
		}
		if !current.Editable() {
			return Document{}, ErrNotDraft
		}
		doc.Number = current.Number
		doc.CreatedBy = current.CreatedBy
		doc.SourceEstimateID = current.SourceEstimateID
	} else {
		doc.Number = ""
		doc.SourceEstimateID = nil
	}
	doc.Status = StatusDraft
	doc.ApprovalRef = ""
	doc.ConvertedInvoice = nil
	if doc.CreatedBy == 0 {
		if actor, ok := shared.ActorFromContext(ctx); ok {
			doc.CreatedBy = actor.ID
		}
	}
	if err := s.validate(ctx, &doc); err != nil {
		return Document{}, err
	}
	if doc.Number == "" {
		doc.Number = s.generateNumber(doc.Kind)
	}
	saved, err := s.repo.Save(ctx, doc)
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("purchase document saved",
		slog.Int64("id", saved.ID),
		slog.String("kind", saved.Kind.String()),
		slog.String("supplier", saved.Supplier),
		slog.String("grand_total", saved.GrandTotal.String()),
	)
	return saved, nil
}

// Get loads a document.
func (s *Service) Get(ctx context.Context, id int64) (Document, error) {
	return s.repo.Get(ctx, id)
}

// Submit validates a draft again and posts it.
func (s *Service) Submit(ctx context.Context, id int64) (Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Document{}, err
	}
	if !doc.Editable() {
		return Document{}, ErrNotDraft
	}
	if err := s.validate(ctx, &doc); err != nil {
		return Document{}, err
	}
	doc.Status = StatusPosted
	if doc.PostingDate.IsZero() {
		doc.PostingDate = discount.DateOf(s.clock())
	}
	saved, err := s.repo.Save(ctx, doc)
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("purchase document posted", slog.Int64("id", saved.ID), slog.String("number", saved.Number))
	return saved, nil
}

// ConvertEstimateToInvoice creates a draft invoice from a posted estimate
// and marks the estimate converted.
func (s *Service) ConvertEstimateToInvoice(ctx context.Context, estimateID int64) (Document, error) {
	estimate, err := s.repo.Get(ctx, estimateID)
	if err != nil {
		return Document{}, err
	}
	if estimate.Kind != discount.KindPurchaseEstimate {
		return Document{}, shared.Invalid("id", estimateID, "document is not a purchase estimate")
	}
	if estimate.Status == StatusConverted || estimate.ConvertedInvoice != nil {
		return Document{}, ErrAlreadyConverted
	}
	if estimate.Status != StatusPosted {
		return Document{}, fmt.Errorf("%w: submit the estimate before converting", shared.ErrInvalidState)
	}

	invoice := Document{
		PurchaseDocument: discount.PurchaseDocument{
			Kind:                discount.KindPurchaseInvoice,
			Supplier:            estimate.Supplier,
			DiscountType:        estimate.DiscountType,
			ApplyDiscount:       estimate.ApplyDiscount,
			TotalDiscountAmount: estimate.TotalDiscountAmount,
			Items:               estimate.Clone().Items,
		},
		Status:           StatusDraft,
		PostingDate:      discount.DateOf(s.clock()),
		SourceEstimateID: &estimate.ID,
	}
	if actor, ok := shared.ActorFromContext(ctx); ok {
		invoice.CreatedBy = actor.ID
	}
	if err := s.validate(ctx, &invoice); err != nil {
		return Document{}, err
	}
	invoice.Number = s.generateNumber(invoice.Kind)

	created, err := s.repo.Convert(ctx, estimate.ID, invoice)
	if err != nil {
		return Document{}, err
	}
	s.logger.Info("purchase estimate converted",
		slog.Int64("estimate_id", estimate.ID),
		slog.Int64("invoice_id", created.ID),
	)
	return created, nil
}

// DiscountAnalysis reports discounts on posted invoices.
func (s *Service) DiscountAnalysis(ctx context.Context, filter AnalysisFilter) (AnalysisReport, error) {
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return AnalysisReport{}, shared.Invalid("to_date", filter.To.Format("2006-01-02"), "cannot be earlier than from_date")
	}
	if !filter.DiscountType.Valid() {
		return AnalysisReport{}, shared.Invalid("discount_type", string(filter.DiscountType), "unknown discount type")
	}
	rows, err := s.repo.DiscountAnalysis(ctx, filter)
	if err != nil {
		return AnalysisReport{}, err
	}
	report := AnalysisReport{Rows: rows, TotalAmount: decimal.Zero, TotalSavings: decimal.Zero, AverageSaving: decimal.Zero}
	if report.Rows == nil {
		report.Rows = []AnalysisRow{}
	}
	for _, row := range rows {
		report.TotalAmount = report.TotalAmount.Add(row.Total)
		report.TotalSavings = report.TotalSavings.Add(row.Savings())
	}
	report.InvoiceCount = len(rows)
	if report.InvoiceCount > 0 {
		report.AverageSaving = report.TotalSavings.Div(decimal.NewFromInt(int64(report.InvoiceCount))).Round(2)
	}
	return report, nil
}

// validate is the single validation pass: totals, approval gate, discounts.
// Discounts are computed on a clone so a failed pass leaves doc untouched.
func (s *Service) validate(ctx context.Context, doc *Document) error {
	if !doc.Kind.Supported() {
		return shared.Invalid("kind", doc.Kind.String(), "unsupported document kind")
	}
	if !doc.DiscountType.Valid() {
		return shared.Invalid("discount_type", string(doc.DiscountType), "unknown discount type")
	}
	if err := shared.ValidateStruct(doc.PurchaseDocument); err != nil {
		return err
	}

	priced := doc.Clone()
	CalculateTotals(&priced)
	if err := s.checkApproval(ctx, &priced); err != nil {
		return err
	}
	if err := s.pricer.ApplyAllDiscounts(ctx, &priced.PurchaseDocument); err != nil {
		s.logger.Warn("apply discounts",
			slog.String("supplier", priced.Supplier),
			slog.String("kind", priced.Kind.String()),
			slog.Any("error", err),
		)
		return err
	}
	*doc = priced
	return nil
}

func (s *Service) checkApproval(ctx context.Context, doc *Document) error {
	if doc.Kind != discount.KindPurchaseEstimate || !doc.Total.GreaterThan(s.cfg.ApprovalThreshold) {
		return nil
	}
	actor, ok := shared.ActorFromContext(ctx)
	if !ok || s.perms == nil {
		return ErrApprovalRequired
	}
	allowed, err := s.perms.HasPermission(ctx, actor.ID, shared.PermPurchaseEstimateApprove)
	if err != nil {
		return fmt.Errorf("check approval permission: %w", err)
	}
	if !allowed {
		return ErrApprovalRequired
	}
	if doc.ApprovalRef == "" {
		doc.ApprovalRef = uuid.NewString()
	}
	return nil
}

func (s *Service) generateNumber(kind discount.DocumentKind) string {
	prefix := "PI"
	if kind == discount.KindPurchaseEstimate {
		prefix = "PE"
	}
	suffix := strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
	return fmt.Sprintf("%s-%s-%s", prefix, s.clock().Format("20060102"), suffix)
}
