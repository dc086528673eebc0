package cashier

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a collection.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
)

// Row is one sales invoice settled by a collection.
type Row struct {
	Invoice  string          `json:"invoice" validate:"required"`
	Received decimal.Decimal `json:"received" validate:"dec_gte=0"`
}

// Collection is a batch of customer receipts taken at the counter.
type Collection struct {
	ID            int64           `json:"id"`
	Number        string          `json:"number"`
	Customer      string          `json:"customer" validate:"required"`
	PostingDate   time.Time       `json:"posting_date"`
	PaymentMode   string          `json:"payment_mode"`
	PaidFrom      string          `json:"paid_from"`
	PaidTo        string          `json:"paid_to"`
	Discount      decimal.Decimal `json:"discount" validate:"dec_gte=0"`
	Amount        decimal.Decimal `json:"amount"`
	PayableAmount decimal.Decimal `json:"payable_amount"`
	Status        Status          `json:"status"`
	Cashier       int64           `json:"cashier"`
	Rows          []Row           `json:"rows" validate:"required,min=1,dive"`
}

// Editable reports whether the collection may still change.
func (c Collection) Editable() bool {
	return c.Status == "" || c.Status == StatusDraft
}

// PaymentEntry is a receipt posted against one invoice on submit.
type PaymentEntry struct {
	CollectionID int64           `json:"collection_id"`
	Invoice      string          `json:"invoice"`
	Customer     string          `json:"customer"`
	PostingDate  time.Time       `json:"posting_date"`
	PaymentMode  string          `json:"payment_mode"`
	PaidFrom     string          `json:"paid_from"`
	PaidTo       string          `json:"paid_to"`
	Amount       decimal.Decimal `json:"amount"`
}

// SubmitResult is returned by a successful submit.
type SubmitResult struct {
	Collection Collection     `json:"collection"`
	Entries    []PaymentEntry `json:"payment_entries"`
}

// SummaryFilter selects collections for the dashboard summary.
type SummaryFilter struct {
	From    time.Time
	To      time.Time
	Cashier *int64
}

// Summary aggregates collections.
type Summary struct {
	Total    decimal.Decimal `json:"total"`
	Discount decimal.Decimal `json:"discount"`
	Count    int             `json:"count"`
}
