package discount

import (
	"strings"

	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// ValidateAgreement checks an agreement before it is stored.
func ValidateAgreement(a Agreement) error {
	if err := shared.ValidateStruct(a); err != nil {
		return err
	}
	if a.ValidTo != nil && DateOf(a.ValidFrom).After(DateOf(*a.ValidTo)) {
		return invalid("valid_to", a.ValidTo.Format("2006-01-02"), "cannot be earlier than valid_from")
	}
	return nil
}

// ValidatePromotion checks a promotion before it is stored.
func ValidatePromotion(p Promotion) error {
	if err := shared.ValidateStruct(p); err != nil {
		return err
	}
	if DateOf(p.StartDate).After(DateOf(p.EndDate)) {
		return invalid("end_date", p.EndDate.Format("2006-01-02"), "cannot be earlier than start_date")
	}
	for i, code := range p.ApplicableItems {
		if strings.TrimSpace(code) == "" {
			return invalid("applicable_items", i, "item code is required")
		}
	}
	return nil
}

// ValidateTier checks an incentive tier before it is stored.
func ValidateTier(t Tier) error {
	if err := shared.ValidateStruct(t); err != nil {
		return err
	}
	if t.ValidFrom != nil && t.ValidTo != nil && DateOf(*t.ValidFrom).After(DateOf(*t.ValidTo)) {
		return invalid("valid_to", t.ValidTo.Format("2006-01-02"), "cannot be earlier than valid_from")
	}
	return nil
}
