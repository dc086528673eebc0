package cashier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

var testNow = time.Date(2026, 4, 2, 15, 30, 0, 0, time.UTC)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

type memoryRepo struct {
	collections map[int64]Collection
	posted      map[int64][]PaymentEntry
	nextID      int64
	postErr     error
	summary     Summary
	lastFilter  SummaryFilter
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{collections: map[int64]Collection{}, posted: map[int64][]PaymentEntry{}}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Collection, error) {
	c, ok := m.collections[id]
	if !ok {
		return Collection{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) Save(_ context.Context, c Collection) (Collection, error) {
	if c.ID == 0 {
		m.nextID++
		c.ID = m.nextID
	}
	m.collections[c.ID] = c
	return c, nil
}

func (m *memoryRepo) PostPayments(_ context.Context, c Collection, entries []PaymentEntry) error {
	if m.postErr != nil {
		return m.postErr
	}
	m.collections[c.ID] = c
	m.posted[c.ID] = entries
	return nil
}

func (m *memoryRepo) Summary(_ context.Context, filter SummaryFilter) (Summary, error) {
	m.lastFilter = filter
	return m.summary, nil
}

type memoryClaims struct {
	claimed map[string]bool
}

func (m *memoryClaims) Claim(_ context.Context, module, key string) error {
	if m.claimed == nil {
		m.claimed = map[string]bool{}
	}
	if m.claimed[module+"/"+key] {
		return shared.ErrAlreadyProcessed
	}
	m.claimed[module+"/"+key] = true
	return nil
}

func (m *memoryClaims) Release(_ context.Context, module, key string) error {
	delete(m.claimed, module+"/"+key)
	return nil
}

func newTestService() (*Service, *memoryRepo, *memoryClaims) {
	repo := newMemoryRepo()
	claims := &memoryClaims{}
	svc := NewService(repo, claims, nil).WithClock(func() time.Time { return testNow })
	return svc, repo, claims
}

func sampleCollection() Collection {
	return Collection{
		Customer:    "Walk-in",
		PaymentMode: "Cash",
		PaidFrom:    "Debtors",
		PaidTo:      "Cash",
		Discount:    dec("50"),
		Rows: []Row{
			{Invoice: "SINV-001", Received: dec("700")},
			{Invoice: "SINV-002", Received: dec("0")},
			{Invoice: "SINV-003", Received: dec("300")},
		},
	}
}

func TestSaveCalculatesTotals(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := shared.ContextWithActor(context.Background(), shared.Actor{ID: 12})

	saved, err := svc.Save(ctx, sampleCollection())
	require.NoError(t, err)
	require.True(t, saved.Amount.Equal(dec("1000")))
	require.True(t, saved.PayableAmount.Equal(dec("950")))
	require.Equal(t, StatusDraft, saved.Status)
	require.Equal(t, int64(12), saved.Cashier)
	require.Regexp(t, `^CC-20260402-[0-9A-F]{8}$`, saved.Number)
	require.Equal(t, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC), saved.PostingDate)
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Collection)
		field  string
	}{
		{"discount above total", func(c *Collection) { c.Discount = dec("1000.01") }, "discount"},
		{"duplicate invoice", func(c *Collection) { c.Rows[2].Invoice = "SINV-001" }, "rows[2].invoice"},
		{"missing paid to", func(c *Collection) { c.PaidTo = " " }, "paid_from"},
		{"missing paid from", func(c *Collection) { c.PaidFrom = "" }, "paid_from"},
		{"no rows", func(c *Collection) { c.Rows = nil }, "rows"},
		{"negative received", func(c *Collection) { c.Rows[0].Received = dec("-1") }, "rows[0].received"},
		{"missing customer", func(c *Collection) { c.Customer = "" }, "customer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := sampleCollection()
			tc.mutate(&c)
			err := Validate(&c)
			require.ErrorIs(t, err, shared.ErrValidation)
			var verr *shared.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestDiscountEqualToTotalIsAllowed(t *testing.T) {
	c := sampleCollection()
	c.Discount = dec("1000")
	require.NoError(t, Validate(&c))
	require.True(t, c.PayableAmount.IsZero())
}

func TestSubmitPostsPositiveRows(t *testing.T) {
	svc, repo, _ := newTestService()
	saved, err := svc.Save(context.Background(), sampleCollection())
	require.NoError(t, err)

	result, err := svc.Submit(context.Background(), saved.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSubmitted, result.Collection.Status)
	require.Len(t, result.Entries, 2)
	require.Equal(t, "SINV-001", result.Entries[0].Invoice)
	require.True(t, result.Entries[0].Amount.Equal(dec("700")))
	require.Equal(t, "Debtors", result.Entries[1].PaidFrom)
	require.Equal(t, saved.ID, result.Entries[1].CollectionID)
	require.Equal(t, result.Entries, repo.posted[saved.ID])

	_, err = svc.Submit(context.Background(), saved.ID)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = svc.Save(context.Background(), result.Collection)
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestSubmitClaimGuardsConcurrentRetry(t *testing.T) {
	svc, _, claims := newTestService()
	saved, err := svc.Save(context.Background(), sampleCollection())
	require.NoError(t, err)
	require.NoError(t, claims.Claim(context.Background(), idempotencyModule, "1"))

	_, err = svc.Submit(context.Background(), saved.ID)
	require.ErrorIs(t, err, ErrAlreadySubmitted)
}

func TestSubmitReleasesClaimOnFailure(t *testing.T) {
	svc, repo, claims := newTestService()
	saved, err := svc.Save(context.Background(), sampleCollection())
	require.NoError(t, err)

	repo.postErr = errors.New("connection reset")
	_, err = svc.Submit(context.Background(), saved.ID)
	require.Error(t, err)
	require.Empty(t, claims.claimed)

	repo.postErr = nil
	_, err = svc.Submit(context.Background(), saved.ID)
	require.NoError(t, err)
}

func TestSummaryValidatesRange(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.summary = Summary{Total: dec("1000"), Discount: dec("50"), Count: 1}
	from := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 4, 30, 0, 0, 0, 0, time.UTC)

	_, err := svc.Summary(context.Background(), SummaryFilter{From: to, To: from})
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Summary(context.Background(), SummaryFilter{To: to})
	require.ErrorIs(t, err, shared.ErrValidation)

	cashier := int64(12)
	out, err := svc.Summary(context.Background(), SummaryFilter{From: from, To: to, Cashier: &cashier})
	require.NoError(t, err)
	require.Equal(t, 1, out.Count)
	require.Equal(t, &cashier, repo.lastFilter.Cashier)
}
