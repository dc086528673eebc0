package cashier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashiercounter/internal/platform/db"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// Repository provides PostgreSQL backed persistence for collections.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get loads a collection and its rows.
func (r *Repository) Get(ctx context.Context, id int64) (Collection, error) {
	var (
		c      Collection
		status string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, number, customer, posting_date, payment_mode, paid_from, paid_to,
	discount, amount, payable_amount, status, cashier
FROM cashier_collections WHERE id = $1`, id).Scan(
		&c.ID, &c.Number, &c.Customer, &c.PostingDate, &c.PaymentMode, &c.PaidFrom, &c.PaidTo,
		&c.Discount, &c.Amount, &c.PayableAmount, &status, &c.Cashier,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Collection{}, shared.ErrNotFound
	}
	if err != nil {
		return Collection{}, err
	}
	c.Status = Status(status)

	rows, err := r.pool.Query(ctx, `SELECT invoice, received FROM cashier_collection_rows
WHERE collection_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return Collection{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.Invoice, &row.Received); err != nil {
			return Collection{}, err
		}
		c.Rows = append(c.Rows, row)
	}
	return c, rows.Err()
}

// Save inserts a new collection or replaces a draft.
func (r *Repository) Save(ctx context.Context, c Collection) (Collection, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		id, err := saveHeader(ctx, tx, c)
		if err != nil {
			return err
		}
		c.ID = id
		if _, err := tx.Exec(ctx, `DELETE FROM cashier_collection_rows WHERE collection_id = $1`, c.ID); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for i, row := range c.Rows {
			batch.Queue(`INSERT INTO cashier_collection_rows (collection_id, line_no, invoice, received)
VALUES ($1, $2, $3, $4)`, c.ID, i+1, row.Invoice, row.Received)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return Collection{}, err
	}
	return c, nil
}

func saveHeader(ctx context.Context, tx pgx.Tx, c Collection) (int64, error) {
	args := []any{c.Number, c.Customer, c.PostingDate, c.PaymentMode, c.PaidFrom, c.PaidTo,
		c.Discount, c.Amount, c.PayableAmount, string(c.Status), c.Cashier}
	if c.ID == 0 {
		var id int64
		err := tx.QueryRow(ctx, `INSERT INTO cashier_collections (number, customer, posting_date, payment_mode,
	paid_from, paid_to, discount, amount, payable_amount, status, cashier, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
RETURNING id`, args...).Scan(&id)
		return id, err
	}
	tag, err := tx.Exec(ctx, `UPDATE cashier_collections
SET number = $1, customer = $2, posting_date = $3, payment_mode = $4, paid_from = $5, paid_to = $6,
	discount = $7, amount = $8, payable_amount = $9, status = $10, cashier = $11, updated_at = NOW()
WHERE id = $12 AND status = $13`, append(args, c.ID, string(StatusDraft))...)
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrNotDraft
	}
	return c.ID, nil
}

// PostPayments marks c submitted and records its payment entries in one
// transaction.
func (r *Repository) PostPayments(ctx context.Context, c Collection, entries []PaymentEntry) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE cashier_collections
SET status = $2, amount = $3, payable_amount = $4, updated_at = NOW()
WHERE id = $1 AND status = $5`, c.ID, string(StatusSubmitted), c.Amount, c.PayableAmount, string(StatusDraft))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadySubmitted
		}
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(`INSERT INTO cashier_payment_entries (collection_id, invoice, customer, posting_date,
	payment_mode, paid_from, paid_to, amount, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`,
				e.CollectionID, e.Invoice, e.Customer, e.PostingDate, e.PaymentMode, e.PaidFrom, e.PaidTo, e.Amount)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if shared.IsUniqueViolation(err) {
				return ErrAlreadySubmitted
			}
			return fmt.Errorf("insert payment entries: %w", err)
		}
		return nil
	})
}

// Summary aggregates collection totals.
func (r *Repository) Summary(ctx context.Context, filter SummaryFilter) (Summary, error) {
	conditions := []string{"posting_date BETWEEN $1 AND $2"}
	args := []any{filter.From, filter.To}
	if filter.Cashier != nil {
		args = append(args, *filter.Cashier)
		conditions = append(conditions, fmt.Sprintf("cashier = $%d", len(args)))
	}
	var (
		out   Summary
		total decimal.Decimal
		disc  decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0), COALESCE(SUM(discount), 0), COUNT(*)
FROM cashier_collections WHERE `+strings.Join(conditions, " AND "), args...).Scan(&total, &disc, &out.Count)
	if err != nil {
		return Summary{}, err
	}
	out.Total, out.Discount = total, disc
	return out, nil
}
