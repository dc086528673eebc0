package cashier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

const idempotencyModule = "cashier_collection_submit"

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Collection, error)
	Save(ctx context.Context, c Collection) (Collection, error)
	PostPayments(ctx context.Context, c Collection, entries []PaymentEntry) error
	Summary(ctx context.Context, filter SummaryFilter) (Summary, error)
}

// Claimer guards submit against running twice for the same collection.
type Claimer interface {
	Claim(ctx context.Context, module, key string) error
	Release(ctx context.Context, module, key string) error
}

// Service implements cashier collection workflows.
type Service struct {
	repo   RepositoryPort
	claims Claimer
	logger *slog.Logger
	clock  func() time.Time
}

// NewService constructs the cashier service.
func NewService(repo RepositoryPort, claims Claimer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, claims: claims, logger: logger, clock: time.Now}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// CalculateTotals sums received amounts and derives the payable amount.
func CalculateTotals(c *Collection) error {
	total := decimal.Zero
	for _, row := range c.Rows {
		total = total.Add(row.Received)
	}
	if c.Discount.GreaterThan(total) {
		return shared.Invalid("discount", c.Discount.String(), "cannot exceed total amount")
	}
	c.Amount = total
	c.PayableAmount = total.Sub(c.Discount)
	return nil
}

// Validate checks c and fills in its totals.
func Validate(c *Collection) error {
	if err := shared.ValidateStruct(*c); err != nil {
		return err
	}
	if err := CalculateTotals(c); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(c.Rows))
	for i, row := range c.Rows {
		if _, dup := seen[row.Invoice]; dup {
			return shared.Invalid(fmt.Sprintf("rows[%d].invoice", i), row.Invoice, "duplicate sales invoice")
		}
		seen[row.Invoice] = struct{}{}
	}
	if strings.TrimSpace(c.PaidFrom) == "" || strings.TrimSpace(c.PaidTo) == "" {
		return shared.Invalid("paid_from", nil, "select both paid from and paid to accounts")
	}
	return nil
}

// Save validates and stores a draft collection.
func (s *Service) Save(ctx context.Context, c Collection) (Collection, error) {
	if c.ID != 0 {
		current, err := s.repo.Get(ctx, c.ID)
		if err != nil {
			return Collection{}, err
		}
		if !current.Editable() {
			return Collection{}, ErrNotDraft
		}
		c.Number = current.Number
		c.Cashier = current.Cashier
	}
	if c.Cashier == 0 {
		if actor, ok := shared.ActorFromContext(ctx); ok {
			c.Cashier = actor.ID
		}
	}
	if c.PostingDate.IsZero() {
		c.PostingDate = s.clock()
	}
	y, m, d := c.PostingDate.Date()
	c.PostingDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	c.Status = StatusDraft
	if err := Validate(&c); err != nil {
		return Collection{}, err
	}
	if c.Number == "" {
		suffix := strings.ToUpper(strings.SplitN(uuid.NewString(), "-", 2)[0])
		c.Number = fmt.Sprintf("CC-%s-%s", s.clock().Format("20060102"), suffix)
	}
	saved, err := s.repo.Save(ctx, c)
	if err != nil {
		return Collection{}, err
	}
	s.logger.Info("cashier collection saved",
		slog.Int64("id", saved.ID),
		slog.String("customer", saved.Customer),
		slog.String("payable_amount", saved.PayableAmount.String()),
	)
	return saved, nil
}

// Get loads a collection.
func (s *Service) Get(ctx context.Context, id int64) (Collection, error) {
	return s.repo.Get(ctx, id)
}

// Submit posts one payment entry per row with a positive received amount.
// A collection is posted at most once.
func (s *Service) Submit(ctx context.Context, id int64) (SubmitResult, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return SubmitResult{}, err
	}
	if !c.Editable() {
		return SubmitResult{}, ErrAlreadySubmitted
	}
	if err := Validate(&c); err != nil {
		return SubmitResult{}, err
	}

	key := strconv.FormatInt(c.ID, 10)
	if err := s.claims.Claim(ctx, idempotencyModule, key); err != nil {
		if errors.Is(err, shared.ErrAlreadyProcessed) {
			return SubmitResult{}, ErrAlreadySubmitted
		}
		return SubmitResult{}, fmt.Errorf("claim collection submit: %w", err)
	}

	entries := PaymentEntries(c)
	c.Status = StatusSubmitted
	if err := s.repo.PostPayments(ctx, c, entries); err != nil {
		if relErr := s.claims.Release(ctx, idempotencyModule, key); relErr != nil {
			s.logger.Warn("release collection claim", slog.Int64("id", c.ID), slog.Any("error", relErr))
		}
		return SubmitResult{}, err
	}
	s.logger.Info("cashier collection submitted",
		slog.Int64("id", c.ID),
		slog.String("number", c.Number),
		slog.Int("payment_entries", len(entries)),
	)
	return SubmitResult{Collection: c, Entries: entries}, nil
}

// PaymentEntries builds the receipts posted for c.
func PaymentEntries(c Collection) []PaymentEntry {
	entries := make([]PaymentEntry, 0, len(c.Rows))
	for _, row := range c.Rows {
		if !row.Received.IsPositive() {
			continue
		}
		entries = append(entries, PaymentEntry{
			CollectionID: c.ID,
			Invoice:      row.Invoice,
			Customer:     c.Customer,
			PostingDate:  c.PostingDate,
			PaymentMode:  c.PaymentMode,
			PaidFrom:     c.PaidFrom,
			PaidTo:       c.PaidTo,
			Amount:       row.Received,
		})
	}
	return entries
}

// Summary aggregates collections posted within the filter's date range.
func (s *Service) Summary(ctx context.Context, filter SummaryFilter) (Summary, error) {
	if filter.From.IsZero() {
		return Summary{}, shared.Invalid("from_date", nil, "is required")
	}
	if filter.To.IsZero() {
		return Summary{}, shared.Invalid("to_date", nil, "is required")
	}
	if filter.From.After(filter.To) {
		return Summary{}, shared.Invalid("to_date", filter.To.Format("2006-01-02"), "cannot be earlier than from_date")
	}
	return s.repo.Summary(ctx, filter)
}
