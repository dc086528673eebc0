package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/cashiercounter/internal/platform/db"
	"github.com/odyssey-erp/cashiercounter/internal/shared"
)

// Repository provides PostgreSQL backed discount records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const agreementColumns = `id, supplier, item_code, discount_percentage, valid_from, valid_to, is_active`

func scanAgreement(row pgx.Row) (Agreement, error) {
	var a Agreement
	err := row.Scan(&a.ID, &a.Supplier, &a.ItemCode, &a.DiscountPercentage, &a.ValidFrom, &a.ValidTo, &a.IsActive)
	return a, err
}

// ActiveAgreements returns at most two active agreements for the pair so
// callers can detect duplicates without scanning the whole table.
func (r *Repository) ActiveAgreements(ctx context.Context, supplier, itemCode string) ([]Agreement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agreementColumns+`
FROM supplier_discount_agreements
WHERE supplier = $1 AND item_code = $2 AND is_active
ORDER BY id
LIMIT 2`, supplier, itemCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SupplierAgreements lists active agreements of a supplier ordered by item.
func (r *Repository) SupplierAgreements(ctx context.Context, supplier string) ([]Agreement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agreementColumns+`
FROM supplier_discount_agreements
WHERE supplier = $1 AND is_active
ORDER BY item_code, id`, supplier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetAgreement loads an agreement by id.
func (r *Repository) GetAgreement(ctx context.Context, id int64) (Agreement, error) {
	a, err := scanAgreement(r.pool.QueryRow(ctx, `SELECT `+agreementColumns+`
FROM supplier_discount_agreements WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Agreement{}, shared.ErrNotFound
	}
	return a, err
}

// SaveAgreement inserts or updates an agreement. Another active agreement
// for the same pair rejects the write.
func (r *Repository) SaveAgreement(ctx context.Context, a Agreement) (Agreement, error) {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if a.IsActive {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (
	SELECT 1 FROM supplier_discount_agreements
	WHERE supplier = $1 AND item_code = $2 AND is_active AND id <> $3)`,
				a.Supplier, a.ItemCode, a.ID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return duplicateAgreement(a)
			}
		}
		if a.ID == 0 {
			return tx.QueryRow(ctx, `INSERT INTO supplier_discount_agreements
	(supplier, item_code, discount_percentage, valid_from, valid_to, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`, a.Supplier, a.ItemCode, a.DiscountPercentage, a.ValidFrom, a.ValidTo, a.IsActive).Scan(&a.ID)
		}
		tag, err := tx.Exec(ctx, `UPDATE supplier_discount_agreements
SET supplier = $2, item_code = $3, discount_percentage = $4, valid_from = $5, valid_to = $6, is_active = $7
WHERE id = $1`, a.ID, a.Supplier, a.ItemCode, a.DiscountPercentage, a.ValidFrom, a.ValidTo, a.IsActive)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	if shared.IsUniqueViolation(err) {
		return Agreement{}, duplicateAgreement(a)
	}
	return a, err
}

func duplicateAgreement(a Agreement) error {
	return invalid("item_code", a.ItemCode, fmt.Sprintf("active discount agreement already exists for %s", a.Supplier))
}

const promotionColumns = `id, name, label, discount_percentage, start_date, end_date, is_active, applicable_items`

func scanPromotion(row pgx.Row) (Promotion, error) {
	var p Promotion
	err := row.Scan(&p.ID, &p.Name, &p.Label, &p.DiscountPercentage, &p.StartDate, &p.EndDate, &p.IsActive, &p.ApplicableItems)
	return p, err
}

func collectPromotions(rows pgx.Rows) ([]Promotion, error) {
	defer rows.Close()
	var out []Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EligiblePromotions returns promotions whose window covers day, ordered by
// start date then id.
func (r *Repository) EligiblePromotions(ctx context.Context, on time.Time) ([]Promotion, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+promotionColumns+`
FROM seasonal_promotions
WHERE start_date <= $1 AND end_date >= $1
ORDER BY start_date, id`, DateOf(on))
	if err != nil {
		return nil, err
	}
	return collectPromotions(rows)
}

// GetPromotion loads a promotion by id.
func (r *Repository) GetPromotion(ctx context.Context, id int64) (Promotion, error) {
	p, err := scanPromotion(r.pool.QueryRow(ctx, `SELECT `+promotionColumns+`
FROM seasonal_promotions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Promotion{}, shared.ErrNotFound
	}
	return p, err
}

// SavePromotion inserts or updates a promotion.
func (r *Repository) SavePromotion(ctx context.Context, p Promotion) (Promotion, error) {
	items := p.ApplicableItems
	if items == nil {
		items = []string{}
	}
	if p.ID == 0 {
		err := r.pool.QueryRow(ctx, `INSERT INTO seasonal_promotions
	(name, label, discount_percentage, start_date, end_date, is_active, applicable_items)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`, p.Name, p.Label, p.DiscountPercentage, p.StartDate, p.EndDate, p.IsActive, items).Scan(&p.ID)
		return p, err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE seasonal_promotions
SET name = $2, label = $3, discount_percentage = $4, start_date = $5, end_date = $6, is_active = $7, applicable_items = $8
WHERE id = $1`, p.ID, p.Name, p.Label, p.DiscountPercentage, p.StartDate, p.EndDate, p.IsActive, items)
	if err != nil {
		return Promotion{}, err
	}
	if tag.RowsAffected() == 0 {
		return Promotion{}, shared.ErrNotFound
	}
	return p, nil
}

// DeletePromotion removes a promotion.
func (r *Repository) DeletePromotion(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM seasonal_promotions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// RefreshPromotionFlags activates promotions starting on day and
// deactivates the ones that ended before it.
func (r *Repository) RefreshPromotionFlags(ctx context.Context, on time.Time) (activated, deactivated int64, err error) {
	day := DateOf(on)
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE seasonal_promotions SET is_active = TRUE
WHERE start_date = $1 AND NOT is_active`, day)
		if err != nil {
			return fmt.Errorf("activate promotions: %w", err)
		}
		activated = tag.RowsAffected()
		tag, err = tx.Exec(ctx, `UPDATE seasonal_promotions SET is_active = FALSE
WHERE end_date < $1 AND is_active`, day)
		if err != nil {
			return fmt.Errorf("deactivate promotions: %w", err)
		}
		deactivated = tag.RowsAffected()
		return nil
	})
	return activated, deactivated, err
}

// PurgeExpiredPromotions deletes inactive promotions that ended before cutoff.
func (r *Repository) PurgeExpiredPromotions(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM seasonal_promotions
WHERE NOT is_active AND end_date < $1`, DateOf(cutoff))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const tierColumns = `id, name, min_turnover, incentive_percentage, max_incentive_amount, is_active, valid_from, valid_to`

func scanTier(row pgx.Row) (Tier, error) {
	var t Tier
	err := row.Scan(&t.ID, &t.Name, &t.MinTurnover, &t.IncentivePercentage, &t.MaxIncentiveAmount, &t.IsActive, &t.ValidFrom, &t.ValidTo)
	return t, err
}

// ActiveTiers returns active tiers ordered by threshold. Validity windows
// are resolved by SelectTier.
func (r *Repository) ActiveTiers(ctx context.Context) ([]Tier, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+tierColumns+`
FROM turnover_incentive_tiers
WHERE is_active
ORDER BY min_turnover DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tier
	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveTier inserts or updates an incentive tier.
func (r *Repository) SaveTier(ctx context.Context, t Tier) (Tier, error) {
	if t.ID == 0 {
		err := r.pool.QueryRow(ctx, `INSERT INTO turnover_incentive_tiers
	(name, min_turnover, incentive_percentage, max_incentive_amount, is_active, valid_from, valid_to)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`, t.Name, t.MinTurnover, t.IncentivePercentage, t.MaxIncentiveAmount, t.IsActive, t.ValidFrom, t.ValidTo).Scan(&t.ID)
		return t, err
	}
	tag, err := r.pool.Exec(ctx, `UPDATE turnover_incentive_tiers
SET name = $2, min_turnover = $3, incentive_percentage = $4, max_incentive_amount = $5, is_active = $6, valid_from = $7, valid_to = $8
WHERE id = $1`, t.ID, t.Name, t.MinTurnover, t.IncentivePercentage, t.MaxIncentiveAmount, t.IsActive, t.ValidFrom, t.ValidTo)
	if err != nil {
		return Tier{}, err
	}
	if tag.RowsAffected() == 0 {
		return Tier{}, shared.ErrNotFound
	}
	return t, nil
}

// DefaultDiscount reads the supplier's invoice-wise discount percentage.
// Unknown suppliers carry no discount.
func (r *Repository) DefaultDiscount(ctx context.Context, supplier string) (decimal.Decimal, error) {
	var rate decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(default_discount_percentage, 0)
FROM suppliers WHERE name = $1`, supplier).Scan(&rate)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, nil
	}
	return rate, err
}

// ActiveSuppliers lists suppliers that are not disabled.
func (r *Repository) ActiveSuppliers(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM suppliers WHERE NOT disabled ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
