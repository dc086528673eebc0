package purchase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashiercounter/internal/discount"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

type memoryRepo struct {
	docs     map[int64]Document
	nextID   int64
	analysis []AnalysisRow
	saves    int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{docs: make(map[int64]Document)}
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return Document{}, shared.ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *memoryRepo) Save(_ context.Context, doc Document) (Document, error) {
	m.saves++
	if doc.ID == 0 {
		m.nextID++
		doc.ID = m.nextID
	} else if current, ok := m.docs[doc.ID]; !ok || current.Status != StatusDraft {
		return Document{}, ErrNotDraft
	}
	m.docs[doc.ID] = doc.Clone()
	return doc, nil
}

func (m *memoryRepo) Convert(ctx context.Context, estimateID int64, invoice Document) (Document, error) {
	estimate := m.docs[estimateID]
	if estimate.Status != StatusPosted || estimate.ConvertedInvoice != nil {
		return Document{}, ErrAlreadyConverted
	}
	created, err := m.Save(ctx, invoice)
	if err != nil {
		return Document{}, err
	}
	estimate.Status = StatusConverted
	estimate.ConvertedInvoice = &created.ID
	m.docs[estimateID] = estimate
	return created, nil
}

func (m *memoryRepo) DiscountAnalysis(context.Context, AnalysisFilter) ([]AnalysisRow, error) {
	return m.analysis, nil
}

type stubPerms map[int64]bool

func (s stubPerms) HasPermission(_ context.Context, userID int64, perm string) (bool, error) {
	if perm != shared.PermPurchaseEstimateApprove {
		return false, nil
	}
	return s[userID], nil
}

type recordingPricer struct {
	calls int
	err   error
	rate  decimal.Decimal
}

func (p *recordingPricer) ApplyAllDiscounts(_ context.Context, doc *discount.PurchaseDocument) error {
	p.calls++
	if !doc.ApplyDiscount {
		return nil
	}
	for i := range doc.Items {
		doc.Items[i].DiscountAmount = discount.Percent(doc.Items[i].Amount, p.rate)
	}
	if p.err != nil {
		return p.err
	}
	running := discount.Percent(doc.Total, p.rate)
	doc.TotalDiscountAmount = running
	doc.GrandTotal = doc.Total.Sub(running)
	return nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestService(perms PermissionChecker) (*Service, *memoryRepo, *recordingPricer) {
	repo := newMemoryRepo()
	pricer := &recordingPricer{rate: dec("10")}
	svc := NewService(repo, pricer, perms, ServiceConfig{}, nil).WithClock(func() time.Time { return testNow })
	return svc, repo, pricer
}

func estimate(qty, rate string) Document {
	return Document{
		PurchaseDocument: discount.PurchaseDocument{
			Kind:          discount.KindPurchaseEstimate,
			Supplier:      "ACME",
			DiscountType:  discount.DiscountItemWise,
			ApplyDiscount: true,
			Items: []discount.LineItem{
				{ItemCode: "A", Qty: dec(qty), Rate: dec(rate)},
				{ItemCode: "B", Qty: dec("1"), Rate: dec("100")},
			},
		},
	}
}

func asActor(id int64) context.Context {
	return shared.ContextWithActor(context.Background(), shared.Actor{ID: id})
}

func TestCalculateTotals(t *testing.T) {
	doc := estimate("3", "250")
	doc.TotalDiscountAmount = dec("50")
	CalculateTotals(&doc)

	require.True(t, doc.Items[0].Amount.Equal(dec("750")))
	require.True(t, doc.Items[0].BaseRate.Equal(dec("250")))
	require.True(t, doc.TotalQty.Equal(dec("4")))
	require.True(t, doc.Total.Equal(dec("850")))
	require.True(t, doc.GrandTotal.Equal(dec("800")))
}

func TestSaveEstimateBelowThreshold(t *testing.T) {
	svc, repo, pricer := newTestService(stubPerms{})

	saved, err := svc.Save(asActor(5), estimate("10", "1000"))
	require.NoError(t, err)
	require.Equal(t, 1, pricer.calls)
	require.Equal(t, StatusDraft, saved.Status)
	require.True(t, strings.HasPrefix(saved.Number, "PE-20260310-"))
	require.Equal(t, int64(5), saved.CreatedBy)
	require.True(t, saved.Total.Equal(dec("10100")))
	require.True(t, saved.TotalDiscountAmount.Equal(dec("1010")))
	require.Empty(t, saved.ApprovalRef)
	require.Contains(t, repo.docs, saved.ID)
}

func TestApprovalGateBlocksLargeEstimate(t *testing.T) {
	svc, repo, pricer := newTestService(stubPerms{9: true})

	_, err := svc.Save(asActor(5), estimate("100", "1000"))
	require.ErrorIs(t, err, ErrApprovalRequired)
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Zero(t, pricer.calls, "gate runs before the engine")
	require.Empty(t, repo.docs)

	_, err = svc.Save(context.Background(), estimate("100", "1000"))
	require.ErrorIs(t, err, ErrApprovalRequired)

	saved, err := svc.Save(asActor(9), estimate("100", "1000"))
	require.NoError(t, err)
	require.NotEmpty(t, saved.ApprovalRef)
}

func TestApprovalGateThresholdIsExclusive(t *testing.T) {
	svc, _, _ := newTestService(stubPerms{})
	doc := estimate("99", "1000")
	doc.Items[1].Rate = dec("1000")

	_, err := svc.Save(asActor(5), doc)
	require.NoError(t, err, "a total equal to the threshold needs no approval")
}

func TestApprovalGateSkipsInvoices(t *testing.T) {
	svc, _, _ := newTestService(stubPerms{})
	doc := estimate("500", "1000")
	doc.Kind = discount.KindPurchaseInvoice

	saved, err := svc.Save(asActor(5), doc)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(saved.Number, "PI-"))
}

func TestApprovalThresholdIsConfigurable(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, &recordingPricer{}, stubPerms{}, ServiceConfig{ApprovalThreshold: dec("500")}, nil)

	_, err := svc.Save(asActor(5), estimate("1", "450"))
	require.ErrorIs(t, err, ErrApprovalRequired)
}

func TestPricingFailureDiscardsPartialChanges(t *testing.T) {
	svc, repo, pricer := newTestService(stubPerms{})
	pricer.err = &discount.ComputationError{Stage: discount.StageIncentive, Err: errors.New("db down")}

	doc := estimate("1", "100")
	_, err := svc.Preview(context.Background(), doc)
	require.ErrorIs(t, err, shared.ErrComputation)
	require.True(t, doc.Items[0].DiscountAmount.IsZero())

	_, err = svc.Save(context.Background(), doc)
	require.Error(t, err)
	require.Zero(t, repo.saves)
}

func TestSaveRejectsInvalidDocument(t *testing.T) {
	svc, _, _ := newTestService(stubPerms{})

	doc := estimate("1", "100")
	doc.Items[1].ItemCode = ""
	_, err := svc.Save(context.Background(), doc)
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "items[1].item_code", verr.Field)

	doc = estimate("1", "100")
	doc.Items = nil
	_, err = svc.Save(context.Background(), doc)
	require.ErrorIs(t, err, shared.ErrValidation)

	doc = estimate("1", "100")
	doc.Kind = discount.KindUnknown
	_, err = svc.Save(context.Background(), doc)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestSubmitPostsDraftOnce(t *testing.T) {
	svc, _, _ := newTestService(stubPerms{})
	ctx := asActor(5)

	saved, err := svc.Save(ctx, estimate("1", "100"))
	require.NoError(t, err)

	posted, err := svc.Submit(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), posted.PostingDate)

	_, err = svc.Submit(ctx, saved.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	saved.Supplier = "GLOBEX"
	_, err = svc.Save(ctx, saved)
	require.ErrorIs(t, err, ErrNotDraft)
}

func TestConvertEstimateToInvoice(t *testing.T) {
	svc, repo, _ := newTestService(stubPerms{})
	ctx := asActor(5)

	saved, err := svc.Save(ctx, estimate("2", "100"))
	require.NoError(t, err)

	_, err = svc.ConvertEstimateToInvoice(ctx, saved.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState, "draft estimates cannot be converted")

	_, err = svc.Submit(ctx, saved.ID)
	require.NoError(t, err)

	invoice, err := svc.ConvertEstimateToInvoice(ctx, saved.ID)
	require.NoError(t, err)
	require.Equal(t, discount.KindPurchaseInvoice, invoice.Kind)
	require.Equal(t, StatusDraft, invoice.Status)
	require.Equal(t, "ACME", invoice.Supplier)
	require.Equal(t, discount.DiscountItemWise, invoice.DiscountType)
	require.True(t, invoice.ApplyDiscount)
	require.Len(t, invoice.Items, 2)
	require.NotNil(t, invoice.SourceEstimateID)
	require.Equal(t, saved.ID, *invoice.SourceEstimateID)
	require.True(t, invoice.Total.Equal(dec("300")))

	converted := repo.docs[saved.ID]
	require.Equal(t, StatusConverted, converted.Status)
	require.Equal(t, invoice.ID, *converted.ConvertedInvoice)

	_, err = svc.ConvertEstimateToInvoice(ctx, saved.ID)
	require.ErrorIs(t, err, ErrAlreadyConverted)

	_, err = svc.ConvertEstimateToInvoice(ctx, invoice.ID)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDiscountAnalysis(t *testing.T) {
	svc, repo, _ := newTestService(stubPerms{})
	repo.analysis = []AnalysisRow{
		{ID: 1, Total: dec("1000"), TotalDiscountAmount: dec("100")},
		{ID: 2, Total: dec("500"), TotalDiscountAmount: dec("25")},
	}

	report, err := svc.DiscountAnalysis(context.Background(), AnalysisFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, report.InvoiceCount)
	require.True(t, report.TotalAmount.Equal(dec("1500")))
	require.True(t, report.TotalSavings.Equal(dec("125")))
	require.True(t, report.AverageSaving.Equal(dec("62.5")))

	from, to := testNow, testNow.AddDate(0, 0, -1)
	_, err = svc.DiscountAnalysis(context.Background(), AnalysisFilter{From: &from, To: &to})
	require.ErrorIs(t, err, shared.ErrValidation)
}
