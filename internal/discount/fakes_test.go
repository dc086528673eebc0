package discount

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type memoryLookups struct {
	agreements   map[string][]Agreement
	promotions   []Promotion
	tiers        []Tier
	agreementErr error
	promoErr     error
	tierErr      error
	tierCalls    int
}

func newMemoryLookups() *memoryLookups {
	return &memoryLookups{agreements: make(map[string][]Agreement)}
}

func (m *memoryLookups) addAgreement(a Agreement) {
	key := a.Supplier + "|" + a.ItemCode
	m.agreements[key] = append(m.agreements[key], a)
}

func (m *memoryLookups) ActiveAgreements(_ context.Context, supplier, itemCode string) ([]Agreement, error) {
	if m.agreementErr != nil {
		return nil, m.agreementErr
	}
	var out []Agreement
	for _, a := range m.agreements[supplier+"|"+itemCode] {
		if a.IsActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryLookups) EligiblePromotions(_ context.Context, on time.Time) ([]Promotion, error) {
	if m.promoErr != nil {
		return nil, m.promoErr
	}
	var out []Promotion
	for _, p := range m.promotions {
		if p.EligibleOn(on) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryLookups) ActiveTiers(context.Context) ([]Tier, error) {
	m.tierCalls++
	if m.tierErr != nil {
		return nil, m.tierErr
	}
	var out []Tier
	for _, t := range m.tiers {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}

type stubSuppliers struct {
	defaults map[string]decimal.Decimal
	active   []string
	err      error
}

func (s stubSuppliers) DefaultDiscount(_ context.Context, supplier string) (decimal.Decimal, error) {
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.defaults[supplier], nil
}

func (s stubSuppliers) ActiveSuppliers(context.Context) ([]string, error) {
	return s.active, s.err
}

type stubTurnover struct {
	values map[string]decimal.Decimal
	err    error
	asOf   []time.Time
}

func (s *stubTurnover) TrailingTurnover(_ context.Context, supplier string, asOf time.Time) (decimal.Decimal, error) {
	s.asOf = append(s.asOf, asOf)
	if s.err != nil {
		return decimal.Zero, s.err
	}
	return s.values[supplier], nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixedClock(s string) func() time.Time {
	t := day(s).Add(10 * time.Hour)
	return func() time.Time { return t }
}
