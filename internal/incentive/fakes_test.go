package incentive

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashiercounter/internal/discount"
	"github.com/odyssey-erp/cashiercounter/internal/platform/cache"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

var testNow = time.Date(2026, 3, 9, 2, 0, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type memoryPromotions struct {
	refreshedOn []time.Time
	purgedOn    []time.Time
	refreshErr  error
	activated   int64
	deactivated int64
}

func (m *memoryPromotions) RefreshPromotionFlags(_ context.Context, on time.Time) (int64, int64, error) {
	m.refreshedOn = append(m.refreshedOn, on)
	if m.refreshErr != nil {
		return 0, 0, m.refreshErr
	}
	return m.activated, m.deactivated, nil
}

func (m *memoryPromotions) PurgeExpiredPromotions(_ context.Context, cutoff time.Time) (int64, error) {
	m.purgedOn = append(m.purgedOn, cutoff)
	return 2, nil
}

type stubSuppliers struct {
	names []string
	err   error
}

func (s stubSuppliers) DefaultDiscount(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (s stubSuppliers) ActiveSuppliers(context.Context) ([]string, error) {
	return s.names, s.err
}

type stubTurnover struct {
	mu       sync.Mutex
	values   map[string]decimal.Decimal
	errs     map[string]error
	delay    time.Duration
	inflight int
	peak     int
}

func (s *stubTurnover) set(supplier, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[supplier] = dec(value)
}

func (s *stubTurnover) TrailingTurnover(_ context.Context, supplier string, _ time.Time) (decimal.Decimal, error) {
	s.mu.Lock()
	s.inflight++
	if s.inflight > s.peak {
		s.peak = s.inflight
	}
	value, err := s.values[supplier], s.errs[supplier]
	s.mu.Unlock()

	time.Sleep(s.delay)

	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
	return value, err
}

type stubTiers []discount.Tier

func (s stubTiers) ActiveTiers(context.Context) ([]discount.Tier, error) {
	return s, nil
}

type memorySnapshots struct {
	mu       sync.Mutex
	rows     map[string]Snapshot
	upserts  int
	reads    int
	archived []time.Time
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{rows: make(map[string]Snapshot)}
}

func snapshotRowKey(supplier string, on time.Time) string {
	return supplier + "|" + on.Format("2006-01-02")
}

func (m *memorySnapshots) UpsertSnapshot(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	m.rows[snapshotRowKey(snap.Supplier, snap.CalculationDate)] = snap
	return nil
}

func (m *memorySnapshots) LatestSnapshot(_ context.Context, supplier string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	var (
		latest Snapshot
		found  bool
	)
	for _, snap := range m.rows {
		if snap.Supplier == supplier && (!found || snap.CalculationDate.After(latest.CalculationDate)) {
			latest, found = snap, true
		}
	}
	if !found {
		return Snapshot{}, shared.ErrNotFound
	}
	return latest, nil
}

func (m *memorySnapshots) ArchiveSnapshotsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.archived = append(m.archived, cutoff)
	return 1, nil
}

type memoryCreditNotes struct {
	notes    []CreditNote
	advanced map[int64]time.Time
	err      error
}

func (m *memoryCreditNotes) DueReminders(_ context.Context, on time.Time) ([]CreditNote, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []CreditNote
	for _, note := range m.notes {
		if note.Status == CreditNotePending && !note.ReminderDate.After(on) {
			out = append(out, note)
		}
	}
	return out, nil
}

func (m *memoryCreditNotes) AdvanceReminder(_ context.Context, id int64, next time.Time) error {
	if m.advanced == nil {
		m.advanced = make(map[int64]time.Time)
	}
	m.advanced[id] = next
	for i := range m.notes {
		if m.notes[i].ID == id {
			m.notes[i].ReminderDate = next
		}
	}
	return nil
}

type stubRecipients []string

func (s stubRecipients) UserEmailsWithRole(context.Context, string) ([]string, error) {
	return s, nil
}

type recordingNotifier struct {
	sent   []Reminder
	failOn map[string]error
}

func (n *recordingNotifier) Notify(_ context.Context, reminder Reminder) error {
	for number, err := range n.failOn {
		if reminderMentions(reminder, number) {
			return err
		}
	}
	n.sent = append(n.sent, reminder)
	return nil
}

type fixture struct {
	promotions *memoryPromotions
	turnover   *stubTurnover
	snapshots  *memorySnapshots
	notes      *memoryCreditNotes
	notifier   *recordingNotifier
	store      *cache.Store
	redis      *miniredis.Miniredis
	deps       Deps
}

func newFixture(t *testing.T, suppliers ...string) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		promotions: &memoryPromotions{},
		turnover:   &stubTurnover{values: map[string]decimal.Decimal{}, errs: map[string]error{}},
		snapshots:  newMemorySnapshots(),
		notes:      &memoryCreditNotes{},
		notifier:   &recordingNotifier{},
		store:      cache.NewStore(client, "cc", time.Hour),
		redis:      mr,
	}
	f.deps = Deps{
		Promotions: f.promotions,
		Suppliers:  stubSuppliers{names: suppliers},
		Turnover:   f.turnover,
		Tiers: stubTiers{
			{Name: "Silver", MinTurnover: dec("100000"), IncentivePercentage: dec("2"), IsActive: true},
			{Name: "Gold", MinTurnover: dec("500000"), IncentivePercentage: dec("5"), MaxIncentiveAmount: dec("20000"), IsActive: true},
		},
		Snapshots:  f.snapshots,
		CreditNote: f.notes,
		Recipients: stubRecipients{"pm@example.com"},
		Notifier:   f.notifier,
		Cache:      f.store,
	}
	return f
}

func (f *fixture) scheduler(cfg Config) *Scheduler {
	return NewScheduler(f.deps, cfg, nil).WithClock(func() time.Time { return testNow })
}
