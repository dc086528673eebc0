package incentive

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/cashiercounter/internal/discount"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// Repository persists snapshots and credit note reminders.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertSnapshot writes the snapshot keyed by (supplier, calculation_date),
// overwriting a row written earlier the same day.
func (r *Repository) UpsertSnapshot(ctx context.Context, snap Snapshot) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO supplier_turnover_incentives
	(supplier, calculation_date, yearly_turnover, incentive_amount, incentive_scheme, status, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW())
ON CONFLICT (supplier, calculation_date) DO UPDATE
SET yearly_turnover = EXCLUDED.yearly_turnover,
	incentive_amount = EXCLUDED.incentive_amount,
	incentive_scheme = EXCLUDED.incentive_scheme,
	status = EXCLUDED.status,
	updated_at = NOW()`,
		snap.Supplier, discount.DateOf(snap.CalculationDate), snap.YearlyTurnover, snap.IncentiveAmount,
		snap.IncentiveScheme, string(snap.Status))
	return err
}

// LatestSnapshot returns the most recent active snapshot of supplier.
func (r *Repository) LatestSnapshot(ctx context.Context, supplier string) (Snapshot, error) {
	var (
		snap   Snapshot
		status string
	)
	err := r.pool.QueryRow(ctx, `SELECT supplier, calculation_date, yearly_turnover, incentive_amount, incentive_scheme, status
FROM supplier_turnover_incentives
WHERE supplier = $1 AND status = $2
ORDER BY calculation_date DESC
LIMIT 1`, supplier, string(SnapshotActive)).Scan(
		&snap.Supplier, &snap.CalculationDate, &snap.YearlyTurnover, &snap.IncentiveAmount, &snap.IncentiveScheme, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, shared.ErrNotFound
	}
	if err != nil {
		return Snapshot{}, err
	}
	snap.Status = SnapshotStatus(status)
	return snap, nil
}

// ArchiveSnapshotsBefore archives snapshots calculated before cutoff.
func (r *Repository) ArchiveSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE supplier_turnover_incentives
SET status = $2, updated_at = NOW()
WHERE calculation_date < $1 AND status <> $2`, discount.DateOf(cutoff), string(SnapshotArchived))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DueReminders lists pending credit notes whose reminder date has arrived.
func (r *Repository) DueReminders(ctx context.Context, on time.Time) ([]CreditNote, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, supplier, credit_note_amount, expected_settlement_date, reminder_date, status
FROM supplier_credit_note_tracking
WHERE status = $1 AND reminder_date <= $2
ORDER BY reminder_date, id`, string(CreditNotePending), discount.DateOf(on))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CreditNote
	for rows.Next() {
		var (
			note   CreditNote
			status string
		)
		if err := rows.Scan(&note.ID, &note.Number, &note.Supplier, &note.Amount, &note.ExpectedSettlementDate,
			&note.ReminderDate, &status); err != nil {
			return nil, err
		}
		note.Status = CreditNoteStatus(status)
		out = append(out, note)
	}
	return out, rows.Err()
}

// AdvanceReminder moves the next reminder date of a credit note.
func (r *Repository) AdvanceReminder(ctx context.Context, id int64, next time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE supplier_credit_note_tracking SET reminder_date = $2 WHERE id = $1`,
		id, discount.DateOf(next))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
