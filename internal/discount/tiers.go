package discount

import (
	"time"

	"github.com/shopspring/decimal"
)

// TurnoverWindowDays is the trailing window used for supplier turnover.
const TurnoverWindowDays = 365

// TurnoverWindow returns the inclusive date range [asOf-365d, asOf].
func TurnoverWindow(asOf time.Time) (from, to time.Time) {
	to = DateOf(asOf)
	from = to.AddDate(0, 0, -TurnoverWindowDays)
	return from, to
}

// ActiveOn reports whether the tier is usable on day.
func (t Tier) ActiveOn(day time.Time) bool {
	if !t.IsActive {
		return false
	}
	day = DateOf(day)
	if t.ValidFrom != nil && day.Before(DateOf(*t.ValidFrom)) {
		return false
	}
	if t.ValidTo != nil && day.After(DateOf(*t.ValidTo)) {
		return false
	}
	return true
}

// IncentiveFor returns turnover × rate / 100, capped by a positive maximum.
func (t Tier) IncentiveFor(turnover decimal.Decimal) decimal.Decimal {
	if !t.IncentivePercentage.IsPositive() || !turnover.IsPositive() {
		return decimal.Zero
	}
	amount := Percent(turnover, t.IncentivePercentage)
	if t.MaxIncentiveAmount.IsPositive() && amount.GreaterThan(t.MaxIncentiveAmount) {
		return t.MaxIncentiveAmount
	}
	return amount
}

// SelectTier picks the active tier with the largest threshold not above
// turnover. Ties keep the first tier in input order.
func SelectTier(tiers []Tier, turnover decimal.Decimal, on time.Time) (Tier, bool) {
	var (
		best  Tier
		found bool
	)
	for _, tier := range tiers {
		if !tier.ActiveOn(on) || tier.MinTurnover.GreaterThan(turnover) {
			continue
		}
		if !found || tier.MinTurnover.GreaterThan(best.MinTurnover) {
			best = tier
			found = true
		}
	}
	return best, found
}
