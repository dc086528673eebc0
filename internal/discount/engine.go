package discount

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Lookups exposes the read-only discount records the engine consults.
type Lookups interface {
	ActiveAgreements(ctx context.Context, supplier, itemCode string) ([]Agreement, error)
	EligiblePromotions(ctx context.Context, on time.Time) ([]Promotion, error)
	ActiveTiers(ctx context.Context) ([]Tier, error)
}

// SupplierRegistry reads supplier master data owned by the host ERP.
type SupplierRegistry interface {
	DefaultDiscount(ctx context.Context, supplier string) (decimal.Decimal, error)
	ActiveSuppliers(ctx context.Context) ([]string, error)
}

// TurnoverSource computes the live trailing turnover of a supplier.
type TurnoverSource interface {
	TrailingTurnover(ctx context.Context, supplier string, asOf time.Time) (decimal.Decimal, error)
}

// Engine applies the layered discount pipeline to a purchase document.
type Engine struct {
	lookups   Lookups
	suppliers SupplierRegistry
	turnover  TurnoverSource
	treatment IncentiveTreatment
	clock     func() time.Time
}

// NewEngine constructs an engine. An empty treatment defaults to
// IncentiveAsDiscount.
func NewEngine(lookups Lookups, suppliers SupplierRegistry, turnover TurnoverSource, treatment IncentiveTreatment) *Engine {
	if treatment == "" {
		treatment = IncentiveAsDiscount
	}
	return &Engine{
		lookups:   lookups,
		suppliers: suppliers,
		turnover:  turnover,
		treatment: treatment,
		clock:     time.Now,
	}
}

// WithClock overrides the clock used to resolve "today".
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

// accumulator carries the running discount across stages.
type accumulator struct {
	treatment  IncentiveTreatment
	reductions decimal.Decimal
	incentive  decimal.Decimal
}

func (a *accumulator) addReduction(amount decimal.Decimal) {
	a.reductions = a.reductions.Add(amount)
}

func (a *accumulator) addIncentive(amount decimal.Decimal) {
	a.incentive = a.incentive.Add(amount)
}

func (a *accumulator) total() decimal.Decimal {
	if a.treatment == IncentiveAsReward {
		return a.reductions
	}
	return a.reductions.Add(a.incentive)
}

// ApplyAllDiscounts prices doc in place. Nothing is touched when
// ApplyDiscount is false. Line and stage outputs are reset first so a
// second run over the same document yields identical fields.
func (e *Engine) ApplyAllDiscounts(ctx context.Context, doc *PurchaseDocument) error {
	if doc == nil || !doc.ApplyDiscount {
		return nil
	}
	if !doc.Kind.Supported() {
		return invalid("kind", doc.Kind.String(), "unsupported document kind")
	}
	if !doc.DiscountType.Valid() {
		return invalid("discount_type", string(doc.DiscountType), "unknown discount type")
	}

	today := DateOf(e.clock())
	resetComputed(doc)
	acc := &accumulator{treatment: e.treatment}

	switch doc.DiscountType {
	case DiscountItemWise:
		if err := e.applyItemWise(ctx, doc, acc); err != nil {
			return &ComputationError{Stage: StageItemWise, Err: err}
		}
	case DiscountInvoiceWise:
		if err := e.applyInvoiceWise(ctx, doc, acc); err != nil {
			return &ComputationError{Stage: StageInvoiceWise, Err: err}
		}
	}
	if err := e.applyPromotions(ctx, doc, today, acc); err != nil {
		return &ComputationError{Stage: StagePromotions, Err: err}
	}
	if err := e.applyIncentive(ctx, doc, today, acc); err != nil {
		return &ComputationError{Stage: StageIncentive, Err: err}
	}

	finalize(doc, acc.total())
	return nil
}

func resetComputed(doc *PurchaseDocument) {
	for i := range doc.Items {
		item := &doc.Items[i]
		if item.BaseRate.IsZero() {
			item.BaseRate = item.Rate
		}
		item.Rate = item.BaseRate
		item.DiscountPercentage = decimal.Zero
		item.DiscountAmount = decimal.Zero
		item.PromotionApplied = ""
		item.PromotionsApplied = nil
	}
	doc.DiscountAmount = decimal.Zero
	doc.AdditionalDiscountPercentage = decimal.Zero
	doc.TurnoverIncentive = decimal.Zero
}

func (e *Engine) applyItemWise(ctx context.Context, doc *PurchaseDocument, acc *accumulator) error {
	for i := range doc.Items {
		item := &doc.Items[i]
		agreements, err := e.lookups.ActiveAgreements(ctx, doc.Supplier, item.ItemCode)
		if err != nil {
			return fmt.Errorf("lookup agreement %s/%s: %w", doc.Supplier, item.ItemCode, err)
		}
		switch len(agreements) {
		case 0:
			continue
		case 1:
		default:
			return fmt.Errorf("%w: supplier %s item %s", ErrDuplicateAgreement, doc.Supplier, item.ItemCode)
		}
		rate := agreements[0].DiscountPercentage
		discount := Percent(item.Amount, rate)
		item.DiscountPercentage = rate
		item.DiscountAmount = discount
		item.Rate = item.BaseRate.Sub(Percent(item.BaseRate, rate))
		acc.addReduction(discount)
	}
	return nil
}

func (e *Engine) applyInvoiceWise(ctx context.Context, doc *PurchaseDocument, acc *accumulator) error {
	if doc.Supplier == "" {
		return nil
	}
	rate, err := e.suppliers.DefaultDiscount(ctx, doc.Supplier)
	if err != nil {
		return fmt.Errorf("supplier %s default discount: %w", doc.Supplier, err)
	}
	if !rate.IsPositive() {
		return nil
	}
	amount := Percent(doc.Total, rate)
	doc.DiscountAmount = amount
	doc.AdditionalDiscountPercentage = rate
	acc.addReduction(amount)
	return nil
}

func (e *Engine) applyPromotions(ctx context.Context, doc *PurchaseDocument, today time.Time, acc *accumulator) error {
	promotions, err := e.lookups.EligiblePromotions(ctx, today)
	if err != nil {
		return fmt.Errorf("eligible promotions: %w", err)
	}
	for _, promo := range promotions {
		if !promo.EligibleOn(today) || !promo.DiscountPercentage.IsPositive() {
			continue
		}
		for i := range doc.Items {
			item := &doc.Items[i]
			if !promo.AppliesTo(item.ItemCode) {
				continue
			}
			amount := Percent(item.Amount, promo.DiscountPercentage)
			item.DiscountAmount = item.DiscountAmount.Add(amount)
			item.PromotionsApplied = append(item.PromotionsApplied, promo.Label)
			item.PromotionApplied = promo.Label
			acc.addReduction(amount)
		}
	}
	return nil
}

func (e *Engine) applyIncentive(ctx context.Context, doc *PurchaseDocument, today time.Time, acc *accumulator) error {
	if doc.Supplier == "" {
		return nil
	}
	turnover, err := e.turnover.TrailingTurnover(ctx, doc.Supplier, today)
	if err != nil {
		return fmt.Errorf("trailing turnover %s: %w", doc.Supplier, err)
	}
	tiers, err := e.lookups.ActiveTiers(ctx)
	if err != nil {
		return fmt.Errorf("incentive tiers: %w", err)
	}
	tier, ok := SelectTier(tiers, turnover, today)
	if !ok {
		return nil
	}
	incentive := tier.IncentiveFor(turnover)
	if !incentive.IsPositive() {
		return nil
	}
	doc.TurnoverIncentive = incentive
	acc.addIncentive(incentive)
	return nil
}

func finalize(doc *PurchaseDocument, running decimal.Decimal) {
	if !running.IsPositive() {
		return
	}
	doc.TotalDiscountAmount = running
	if !doc.Total.IsZero() {
		doc.EffectiveDiscountPercentage = running.Div(doc.Total).Mul(hundred).Round(6)
	}
	doc.GrandTotal = doc.Total.Sub(running)
}
