package incentive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/cashiercounter/internal/discount"
	"github.com/odyssey-erp/cashiercounter/internal/platform/cache"
)

const (
	// DefaultReminderInterval is how far a reminder date moves after a run.
	DefaultReminderInterval = 72 * time.Hour
	// DefaultRetentionDays bounds how long expired records are kept.
	DefaultRetentionDays = 730
	// DefaultManagerRole receives credit note reminders.
	DefaultManagerRole = "Purchase Manager"
	// DefaultWorkers bounds the weekly supplier pool.
	DefaultWorkers = 4
)

// PromotionMaintainer keeps stored promotion flags in sync with the calendar.
type PromotionMaintainer interface {
	RefreshPromotionFlags(ctx context.Context, on time.Time) (activated, deactivated int64, err error)
	PurgeExpiredPromotions(ctx context.Context, cutoff time.Time) (int64, error)
}

// TierSource lists the active incentive tiers.
type TierSource interface {
	ActiveTiers(ctx context.Context) ([]discount.Tier, error)
}

// SnapshotStore persists turnover snapshots.
type SnapshotStore interface {
	UpsertSnapshot(ctx context.Context, snap Snapshot) error
	LatestSnapshot(ctx context.Context, supplier string) (Snapshot, error)
	ArchiveSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CreditNoteStore tracks credit note reminders.
type CreditNoteStore interface {
	DueReminders(ctx context.Context, on time.Time) ([]CreditNote, error)
	AdvanceReminder(ctx context.Context, id int64, next time.Time) error
}

// RecipientDirectory resolves reminder recipients.
type RecipientDirectory interface {
	UserEmailsWithRole(ctx context.Context, role string) ([]string, error)
}

// Notifier delivers reminders.
type Notifier interface {
	Notify(ctx context.Context, reminder Reminder) error
}

// Config tunes scheduler behaviour.
type Config struct {
	Workers          int
	ReminderInterval time.Duration
	ManagerRole      string
	RetentionDays    int
	Currency         string
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.ReminderInterval <= 0 {
		c.ReminderInterval = DefaultReminderInterval
	}
	if c.ManagerRole == "" {
		c.ManagerRole = DefaultManagerRole
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = DefaultRetentionDays
	}
	if c.Currency == "" {
		c.Currency = DefaultCurrency
	}
	return c
}

// Deps groups the collaborators of the scheduler.
type Deps struct {
	Promotions PromotionMaintainer
	Suppliers  discount.SupplierRegistry
	Turnover   discount.TurnoverSource
	Tiers      TierSource
	Snapshots  SnapshotStore
	CreditNote CreditNoteStore
	Recipients RecipientDirectory
	Notifier   Notifier
	Cache      *cache.Store
}

// Scheduler runs the periodic incentive maintenance.
type Scheduler struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
	clock  func() time.Time
}

// NewScheduler constructs a scheduler.
func NewScheduler(deps Deps, cfg Config, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{deps: deps, cfg: cfg.withDefaults(), logger: logger, clock: time.Now}
}

// WithClock overrides the scheduler clock.
func (s *Scheduler) WithClock(clock func() time.Time) *Scheduler {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *Scheduler) today() time.Time {
	return discount.DateOf(s.clock())
}

// RunDaily refreshes promotion flags and sends due credit note reminders.
// Both stages run even when the other fails.
func (s *Scheduler) RunDaily(ctx context.Context) (DailyResult, error) {
	var result DailyResult
	today := s.today()

	refreshErr := s.refreshPromotions(ctx, today, &result)
	remindErr := s.sendReminders(ctx, today, &result)
	return result, errors.Join(refreshErr, remindErr)
}

func (s *Scheduler) refreshPromotions(ctx context.Context, today time.Time, result *DailyResult) error {
	activated, deactivated, err := s.deps.Promotions.RefreshPromotionFlags(ctx, today)
	if err != nil {
		s.logger.Error("refresh promotion status", slog.Any("error", err))
		return fmt.Errorf("refresh promotions: %w", err)
	}
	result.Activated, result.Deactivated = activated, deactivated
	if err := s.deps.Cache.Invalidate(ctx, discount.CacheKeyActivePromotions); err != nil {
		s.logger.Warn("invalidate active promotions", slog.Any("error", err))
	}
	if activated > 0 || deactivated > 0 {
		s.logger.Info("promotion status updated",
			slog.Int64("activated", activated),
			slog.Int64("deactivated", deactivated),
		)
	}
	return nil
}

func (s *Scheduler) sendReminders(ctx context.Context, today time.Time, result *DailyResult) error {
	notes, err := s.deps.CreditNote.DueReminders(ctx, today)
	if err != nil {
		s.logger.Error("load due credit note reminders", slog.Any("error", err))
		return fmt.Errorf("due reminders: %w", err)
	}
	if len(notes) == 0 {
		return nil
	}

	recipients, err := s.deps.Recipients.UserEmailsWithRole(ctx, s.cfg.ManagerRole)
	if err != nil {
		s.logger.Warn("resolve reminder recipients", slog.String("role", s.cfg.ManagerRole), slog.Any("error", err))
		recipients = nil
	}
	next := today.Add(s.cfg.ReminderInterval)

	for _, note := range notes {
		if err := s.notify(ctx, note, recipients, today); err != nil {
			result.ReminderFailure++
			s.logger.Error("send credit note reminder",
				slog.String("credit_note", note.Number),
				slog.String("supplier", note.Supplier),
				slog.Any("error", err),
			)
		} else if len(recipients) > 0 {
			result.RemindersSent++
		}
		if err := s.deps.CreditNote.AdvanceReminder(ctx, note.ID, next); err != nil {
			s.logger.Error("advance credit note reminder",
				slog.String("credit_note", note.Number),
				slog.Any("error", err),
			)
		}
	}
	s.logger.Info("credit note reminders processed",
		slog.Int("due", len(notes)),
		slog.Int("sent", result.RemindersSent),
		slog.Int("failed", result.ReminderFailure),
	)
	return nil
}

func (s *Scheduler) notify(ctx context.Context, note CreditNote, recipients []string, today time.Time) error {
	if len(recipients) == 0 {
		return nil
	}
	reminder, err := RenderReminder(note, recipients, s.cfg.Currency, today)
	if err != nil {
		return &NotificationError{CreditNote: note.Number, Err: err}
	}
	if err := s.deps.Notifier.Notify(ctx, reminder); err != nil {
		return &NotificationError{CreditNote: note.Number, Err: err}
	}
	return nil
}

// RunWeekly recomputes turnover snapshots for every active supplier. A
// failing supplier is logged and never aborts the batch.
func (s *Scheduler) RunWeekly(ctx context.Context) (WeeklyResult, error) {
	today := s.today()
	suppliers, err := s.deps.Suppliers.ActiveSuppliers(ctx)
	if err != nil {
		return WeeklyResult{}, fmt.Errorf("list suppliers: %w", err)
	}
	tiers, err := s.deps.Tiers.ActiveTiers(ctx)
	if err != nil {
		return WeeklyResult{}, fmt.Errorf("list incentive tiers: %w", err)
	}

	result := WeeklyResult{Suppliers: len(suppliers)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for _, supplier := range suppliers {
		supplier := supplier
		g.Go(func() error {
			written, err := s.snapshotSupplier(ctx, supplier, tiers, today)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				item := BatchItemError{Supplier: supplier, Err: err}
				result.Failed = append(result.Failed, item)
				s.logger.Error("supplier incentive", slog.String("supplier", supplier), slog.Any("error", item))
			case written:
				result.Written++
			default:
				result.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("turnover incentives calculated",
		slog.Int("suppliers", result.Suppliers),
		slog.Int("written", result.Written),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *Scheduler) snapshotSupplier(ctx context.Context, supplier string, tiers []discount.Tier, today time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	turnover, err := s.deps.Turnover.TrailingTurnover(ctx, supplier, today)
	if err != nil {
		return false, fmt.Errorf("trailing turnover: %w", err)
	}
	if !turnover.IsPositive() {
		return false, nil
	}
	tier, ok := discount.SelectTier(tiers, turnover, today)
	if !ok {
		return false, nil
	}
	snap := Snapshot{
		Supplier:        supplier,
		CalculationDate: today,
		YearlyTurnover:  turnover,
		IncentiveAmount: tier.IncentiveFor(turnover),
		IncentiveScheme: tier.Name,
		Status:          SnapshotActive,
	}
	if err := s.deps.Snapshots.UpsertSnapshot(ctx, snap); err != nil {
		return false, fmt.Errorf("upsert snapshot: %w", err)
	}
	if err := s.deps.Cache.Invalidate(ctx, SnapshotKey(supplier)); err != nil {
		s.logger.Warn("invalidate incentive snapshot", slog.String("supplier", supplier), slog.Any("error", err))
	}
	return true, nil
}

// RunCleanup deletes long expired promotions and archives old snapshots.
func (s *Scheduler) RunCleanup(ctx context.Context) (CleanupResult, error) {
	cutoff := s.today().AddDate(0, 0, -s.cfg.RetentionDays)
	var result CleanupResult

	deleted, err := s.deps.Promotions.PurgeExpiredPromotions(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("purge promotions: %w", err)
	}
	result.PromotionsDeleted = deleted
	if deleted > 0 {
		if err := s.deps.Cache.Invalidate(ctx, discount.CacheKeyActivePromotions); err != nil {
			s.logger.Warn("invalidate active promotions", slog.Any("error", err))
		}
	}

	archived, err := s.deps.Snapshots.ArchiveSnapshotsBefore(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("archive snapshots: %w", err)
	}
	result.SnapshotsArchived = archived

	s.logger.Info("cleaned up old promotional and incentive records",
		slog.Time("cutoff", cutoff),
		slog.Int64("promotions_deleted", deleted),
		slog.Int64("snapshots_archived", archived),
	)
	return result, nil
}
