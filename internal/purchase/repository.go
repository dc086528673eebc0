package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashiercounter/internal/discount"
	"github.com/odyssey-erp/cashiercounter/internal/platform/db"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const documentColumns = `id, number, kind, supplier, status, posting_date, apply_discount, discount_type,
	total_qty, total, discount_amount, additional_discount_percentage, turnover_incentive,
	total_discount_amount, effective_discount_percentage, grand_total,
	source_estimate_id, converted_invoice_id, approval_ref, created_by`

// Get loads a document and its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Document, error) {
	var (
		doc          Document
		kind, status string
		discountType string
		postingDate  *time.Time
	)
	err := r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM purchase_documents WHERE id = $1`, id).Scan(
		&doc.ID, &doc.Number, &kind, &doc.Supplier, &status, &postingDate, &doc.ApplyDiscount, &discountType,
		&doc.TotalQty, &doc.Total, &doc.DiscountAmount, &doc.AdditionalDiscountPercentage, &doc.TurnoverIncentive,
		&doc.TotalDiscountAmount, &doc.EffectiveDiscountPercentage, &doc.GrandTotal,
		&doc.SourceEstimateID, &doc.ConvertedInvoice, &doc.ApprovalRef, &doc.CreatedBy,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, shared.ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	parsed, err := discount.ParseDocumentKind(kind)
	if err != nil {
		return Document{}, fmt.Errorf("purchase document %d: %w", id, err)
	}
	doc.Kind = parsed
	doc.Status = Status(status)
	doc.DiscountType = discount.DiscountType(discountType)
	if postingDate != nil {
		doc.PostingDate = *postingDate
	}

	rows, err := r.pool.Query(ctx, `SELECT item_code, qty, rate, base_rate, amount, discount_percentage,
	discount_amount, promotion_applied, promotions_applied
FROM purchase_document_items
WHERE document_id = $1
ORDER BY line_no`, id)
	if err != nil {
		return Document{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item discount.LineItem
		if err := rows.Scan(&item.ItemCode, &item.Qty, &item.Rate, &item.BaseRate, &item.Amount,
			&item.DiscountPercentage, &item.DiscountAmount, &item.PromotionApplied, &item.PromotionsApplied); err != nil {
			return Document{}, err
		}
		doc.Items = append(doc.Items, item)
	}
	return doc, rows.Err()
}

// Save inserts a new document or replaces a draft.
func (r *Repository) Save(ctx context.Context, doc Document) (Document, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		id, err := saveHeader(ctx, tx, doc)
		if err != nil {
			return err
		}
		doc.ID = id
		return replaceItems(ctx, tx, doc)
	})
	if err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Convert stores invoice and marks the estimate converted in one
// transaction.
func (r *Repository) Convert(ctx context.Context, estimateID int64, invoice Document) (Document, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		id, err := saveHeader(ctx, tx, invoice)
		if err != nil {
			return err
		}
		invoice.ID = id
		if err := replaceItems(ctx, tx, invoice); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `UPDATE purchase_documents
SET status = $2, converted_invoice_id = $3, updated_at = NOW()
WHERE id = $1 AND status = $4 AND converted_invoice_id IS NULL`,
			estimateID, string(StatusConverted), id, string(StatusPosted))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadyConverted
		}
		return nil
	})
	if err != nil {
		return Document{}, err
	}
	return invoice, nil
}

func saveHeader(ctx context.Context, tx pgx.Tx, doc Document) (int64, error) {
	var postingDate *time.Time
	if !doc.PostingDate.IsZero() {
		d := discount.DateOf(doc.PostingDate)
		postingDate = &d
	}
	args := []any{
		doc.Number, doc.Kind.String(), doc.Supplier, string(doc.Status), postingDate, doc.ApplyDiscount,
		string(doc.DiscountType), doc.TotalQty, doc.Total, doc.DiscountAmount, doc.AdditionalDiscountPercentage,
		doc.TurnoverIncentive, doc.TotalDiscountAmount, doc.EffectiveDiscountPercentage, doc.GrandTotal,
		doc.SourceEstimateID, doc.ConvertedInvoice, doc.ApprovalRef, doc.CreatedBy,
	}
	if doc.ID == 0 {
		var id int64
		err := tx.QueryRow(ctx, `INSERT INTO purchase_documents (number, kind, supplier, status, posting_date,
	apply_discount, discount_type, total_qty, total, discount_amount, additional_discount_percentage,
	turnover_incentive, total_discount_amount, effective_discount_percentage, grand_total,
	source_estimate_id, converted_invoice_id, approval_ref, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NOW(), NOW())
RETURNING id`, args...).Scan(&id)
		return id, err
	}
	tag, err := tx.Exec(ctx, `UPDATE purchase_documents
SET number = $1, kind = $2, supplier = $3, status = $4, posting_date = $5, apply_discount = $6,
	discount_type = $7, total_qty = $8, total = $9, discount_amount = $10, additional_discount_percentage = $11,
	turnover_incentive = $12, total_discount_amount = $13, effective_discount_percentage = $14, grand_total = $15,
	source_estimate_id = $16, converted_invoice_id = $17, approval_ref = $18, created_by = $19, updated_at = NOW()
WHERE id = $20 AND status = $21`, append(args, doc.ID, string(StatusDraft))...)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrNotDraft
	}
	return doc.ID, nil
}

func replaceItems(ctx context.Context, tx pgx.Tx, doc Document) error {
	if _, err := tx.Exec(ctx, `DELETE FROM purchase_document_items WHERE document_id = $1`, doc.ID); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for i, item := range doc.Items {
		labels := item.PromotionsApplied
		if labels == nil {
			labels = []string{}
		}
		batch.Queue(`INSERT INTO purchase_document_items (document_id, line_no, item_code, qty, rate, base_rate,
	amount, discount_percentage, discount_amount, promotion_applied, promotions_applied)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			doc.ID, i+1, item.ItemCode, item.Qty, item.Rate, item.BaseRate, item.Amount,
			item.DiscountPercentage, item.DiscountAmount, item.PromotionApplied, labels)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// TrailingTurnover sums grand totals of the supplier's posted invoices in
// the trailing turnover window ending at asOf.
func (r *Repository) TrailingTurnover(ctx context.Context, supplier string, asOf time.Time) (decimal.Decimal, error) {
	from, to := discount.TurnoverWindow(asOf)
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(grand_total), 0)
FROM purchase_documents
WHERE kind = $1 AND status = $2 AND supplier = $3 AND posting_date BETWEEN $4 AND $5`,
		discount.KindPurchaseInvoice.String(), string(StatusPosted), supplier, from, to).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// DiscountAnalysis lists posted invoices matching filter, newest first.
func (r *Repository) DiscountAnalysis(ctx context.Context, filter AnalysisFilter) ([]AnalysisRow, error) {
	conditions := []string{"kind = $1", "status = $2"}
	args := []any{discount.KindPurchaseInvoice.String(), string(StatusPosted)}
	add := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.From != nil {
		add("posting_date >= $%d", discount.DateOf(*filter.From))
	}
	if filter.To != nil {
		add("posting_date <= $%d", discount.DateOf(*filter.To))
	}
	if filter.Supplier != "" {
		add("supplier = $%d", filter.Supplier)
	}
	if filter.DiscountType != discount.DiscountNone {
		add("discount_type = $%d", string(filter.DiscountType))
	}
	if filter.MinDiscountAmount.IsPositive() {
		add("COALESCE(total_discount_amount, 0) >= $%d", filter.MinDiscountAmount)
	}

	rows, err := r.pool.Query(ctx, `SELECT id, number, posting_date, supplier, total,
	COALESCE(total_discount_amount, 0), COALESCE(effective_discount_percentage, 0),
	discount_type, grand_total
FROM purchase_documents
WHERE `+strings.Join(conditions, " AND ")+`
ORDER BY posting_date DESC, number DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AnalysisRow
	for rows.Next() {
		var (
			row          AnalysisRow
			discountType string
		)
		if err := rows.Scan(&row.ID, &row.Number, &row.PostingDate, &row.Supplier, &row.Total,
			&row.TotalDiscountAmount, &row.EffectiveDiscountPercentage, &discountType, &row.GrandTotal); err != nil {
			return nil, err
		}
		row.DiscountType = discount.DiscountType(discountType)
		out = append(out, row)
	}
	return out, rows.Err()
}
