package discount

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DocumentKind is the closed set of purchase documents the engine accepts.
type DocumentKind uint8

const (
	KindUnknown DocumentKind = iota
	KindPurchaseInvoice
	KindPurchaseEstimate
)

// ParseDocumentKind maps the wire name of a document kind.
func ParseDocumentKind(raw string) (DocumentKind, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PURCHASE_INVOICE":
		return KindPurchaseInvoice, nil
	case "PURCHASE_ESTIMATE":
		return KindPurchaseEstimate, nil
	default:
		return KindUnknown, fmt.Errorf("unsupported document kind %q", raw)
	}
}

func (k DocumentKind) String() string {
	switch k {
	case KindPurchaseInvoice:
		return "PURCHASE_INVOICE"
	case KindPurchaseEstimate:
		return "PURCHASE_ESTIMATE"
	default:
		return "UNKNOWN"
	}
}

// Supported reports whether the engine knows how to price the kind.
func (k DocumentKind) Supported() bool {
	return k == KindPurchaseInvoice || k == KindPurchaseEstimate
}

// MarshalText implements encoding.TextMarshaler.
func (k DocumentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *DocumentKind) UnmarshalText(text []byte) error {
	parsed, err := ParseDocumentKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// DiscountType selects the supplier discount path of the pipeline.
type DiscountType string

const (
	DiscountNone        DiscountType = ""
	DiscountItemWise    DiscountType = "ITEM_WISE"
	DiscountInvoiceWise DiscountType = "INVOICE_WISE"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountNone, DiscountItemWise, DiscountInvoiceWise:
		return true
	}
	return false
}

// PurchaseDocument is the header and lines the engine prices in place.
type PurchaseDocument struct {
	ID            int64           `json:"id"`
	Kind          DocumentKind    `json:"kind"`
	Supplier      string          `json:"supplier" validate:"required"`
	Total         decimal.Decimal `json:"total"`
	DiscountType  DiscountType    `json:"discount_type"`
	ApplyDiscount bool            `json:"apply_discount"`

	DiscountAmount               decimal.Decimal `json:"discount_amount"`
	AdditionalDiscountPercentage decimal.Decimal `json:"additional_discount_percentage"`
	TurnoverIncentive            decimal.Decimal `json:"turnover_incentive"`
	TotalDiscountAmount          decimal.Decimal `json:"total_discount_amount"`
	EffectiveDiscountPercentage  decimal.Decimal `json:"effective_discount_percentage"`
	GrandTotal                   decimal.Decimal `json:"grand_total"`

	Items []LineItem `json:"items" validate:"required,min=1,dive"`
}

// LineItem is a single purchase line. Amount is qty × BaseRate; Rate is the
// net rate after the item-wise discount.
type LineItem struct {
	ItemCode string          `json:"item_code" validate:"required"`
	Qty      decimal.Decimal `json:"qty" validate:"dec_gte=0"`
	Rate     decimal.Decimal `json:"rate" validate:"dec_gte=0"`
	BaseRate decimal.Decimal `json:"base_rate" validate:"dec_gte=0"`
	Amount   decimal.Decimal `json:"amount"`

	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	PromotionApplied   string          `json:"promotion_applied"`
	PromotionsApplied  []string        `json:"promotions_applied"`
}

// Clone returns a deep copy safe to mutate independently.
func (d PurchaseDocument) Clone() PurchaseDocument {
	out := d
	out.Items = make([]LineItem, len(d.Items))
	for i, item := range d.Items {
		item.PromotionsApplied = append([]string(nil), item.PromotionsApplied...)
		out.Items[i] = item
	}
	return out
}

// Agreement is a supplier/item discount agreement.
type Agreement struct {
	ID                 int64           `json:"id"`
	Supplier           string          `json:"supplier" validate:"required"`
	ItemCode           string          `json:"item_code" validate:"required"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage" validate:"dec_gt=0,dec_lte=100"`
	ValidFrom          time.Time       `json:"valid_from" validate:"required"`
	ValidTo            *time.Time      `json:"valid_to,omitempty"`
	IsActive           bool            `json:"is_active"`
}

// AgreementSummary is the reporting view of an active agreement.
type AgreementSummary struct {
	ItemCode           string          `json:"item_code"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	ValidFrom          time.Time       `json:"valid_from"`
	ValidTo            *time.Time      `json:"valid_to,omitempty"`
}

// Promotion is a date-bounded seasonal promotion.
type Promotion struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name" validate:"required"`
	Label              string          `json:"label" validate:"required"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage" validate:"dec_gt=0,dec_lte=100"`
	StartDate          time.Time       `json:"start_date" validate:"required"`
	EndDate            time.Time       `json:"end_date" validate:"required"`
	IsActive           bool            `json:"is_active"`
	ApplicableItems    []string        `json:"applicable_items"`
}

// EligibleOn reports whether day falls inside the promotion window. The
// stored IsActive flag is only a mirror of this test and is ignored.
func (p Promotion) EligibleOn(day time.Time) bool {
	day = DateOf(day)
	return !day.Before(DateOf(p.StartDate)) && !day.After(DateOf(p.EndDate))
}

// AppliesTo reports whether the promotion covers itemCode.
func (p Promotion) AppliesTo(itemCode string) bool {
	if len(p.ApplicableItems) == 0 {
		return true
	}
	for _, code := range p.ApplicableItems {
		if code == itemCode {
			return true
		}
	}
	return false
}

// PromotionSummary is the reporting view of an eligible promotion.
type PromotionSummary struct {
	Name               string          `json:"name"`
	Label              string          `json:"label"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage" validate:"dec_gt=0,dec_lte=100"`
	StartDate          time.Time       `json:"start_date"`
	EndDate            time.Time       `json:"end_date"`
}

// Tier is one rung of the turnover incentive ladder.
type Tier struct {
	ID                  int64           `json:"id"`
	Name                string          `json:"name" validate:"required"`
	MinTurnover         decimal.Decimal `json:"min_turnover" validate:"dec_gt=0"`
	IncentivePercentage decimal.Decimal `json:"incentive_percentage" validate:"dec_gt=0,dec_lte=100"`
	MaxIncentiveAmount  decimal.Decimal `json:"max_incentive_amount" validate:"dec_gte=0"`
	IsActive            bool            `json:"is_active"`
	ValidFrom           *time.Time      `json:"valid_from,omitempty"`
	ValidTo             *time.Time      `json:"valid_to,omitempty"`
}

// IncentiveTreatment decides how the turnover incentive affects totals.
type IncentiveTreatment string

const (
	// IncentiveAsDiscount folds the incentive into the running discount total.
	IncentiveAsDiscount IncentiveTreatment = "discount"
	// IncentiveAsReward records the incentive on the header only.
	IncentiveAsReward IncentiveTreatment = "reward"
)

// ParseIncentiveTreatment validates a configured treatment.
func ParseIncentiveTreatment(raw string) (IncentiveTreatment, error) {
	switch IncentiveTreatment(strings.ToLower(strings.TrimSpace(raw))) {
	case "", IncentiveAsDiscount:
		return IncentiveAsDiscount, nil
	case IncentiveAsReward:
		return IncentiveAsReward, nil
	default:
		return "", fmt.Errorf("unknown incentive treatment %q", raw)
	}
}

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Percent returns amount × rate / 100.
func Percent(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate).Div(hundred)
}
