package purchase

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashiercounter/internal/discount"
)

// Status enumerates purchase document workflow states.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPosted    Status = "POSTED"
	StatusConverted Status = "CONVERTED"
	StatusCancelled Status = "CANCELLED"
)

// Document is a purchase invoice or estimate together with its workflow data.
type Document struct {
	discount.PurchaseDocument

	Number           string          `json:"number"`
	Status           Status          `json:"status"`
	PostingDate      time.Time       `json:"posting_date"`
	TotalQty         decimal.Decimal `json:"total_qty"`
	SourceEstimateID *int64          `json:"source_estimate_id,omitempty"`
	ConvertedInvoice *int64          `json:"converted_invoice_id,omitempty"`
	ApprovalRef      string          `json:"approval_ref,omitempty"`
	CreatedBy        int64           `json:"created_by"`
}

// Editable reports whether the document may still be changed.
func (d Document) Editable() bool {
	return d.Status == "" || d.Status == StatusDraft
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	out.PurchaseDocument = d.PurchaseDocument.Clone()
	return out
}

// AnalysisFilter narrows the discount analysis report.
type AnalysisFilter struct {
	From              *time.Time
	To                *time.Time
	Supplier          string
	DiscountType      discount.DiscountType
	MinDiscountAmount decimal.Decimal
}

// AnalysisRow is one posted invoice in the discount analysis report.
type AnalysisRow struct {
	ID                          int64                 `json:"id"`
	Number                      string                `json:"number"`
	PostingDate                 time.Time             `json:"posting_date"`
	Supplier                    string                `json:"supplier"`
	Total                       decimal.Decimal       `json:"total"`
	TotalDiscountAmount         decimal.Decimal       `json:"total_discount_amount"`
	EffectiveDiscountPercentage decimal.Decimal       `json:"effective_discount_percentage"`
	DiscountType                discount.DiscountType `json:"discount_type"`
	GrandTotal                  decimal.Decimal       `json:"grand_total"`
}

// Savings is the amount saved on the invoice.
func (r AnalysisRow) Savings() decimal.Decimal {
	return r.TotalDiscountAmount
}

// AnalysisReport aggregates analysis rows.
type AnalysisReport struct {
	Rows          []AnalysisRow   `json:"rows"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalSavings  decimal.Decimal `json:"total_savings"`
	InvoiceCount  int             `json:"invoice_count"`
	AverageSaving decimal.Decimal `json:"average_saving"`
}
