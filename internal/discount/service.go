package discount

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/odyssey-erp/cashiercounter/internal/platform/cache"
)

// Cache keys derived from discount records.
const (
	CacheKeyActivePromotions = "active_promotions"
	CacheKeyIncentiveSchemes = "active_incentive_schemes"
)

// SupplierDiscountsKey is the cache key of a supplier's agreement summary.
func SupplierDiscountsKey(supplier string) string {
	return cache.Key("supplier_discounts", supplier)
}

// RecordStore persists discount records.
type RecordStore interface {
	GetAgreement(ctx context.Context, id int64) (Agreement, error)
	SaveAgreement(ctx context.Context, a Agreement) (Agreement, error)
	SupplierAgreements(ctx context.Context, supplier string) ([]Agreement, error)
	EligiblePromotions(ctx context.Context, on time.Time) ([]Promotion, error)
	GetPromotion(ctx context.Context, id int64) (Promotion, error)
	SavePromotion(ctx context.Context, p Promotion) (Promotion, error)
	DeletePromotion(ctx context.Context, id int64) error
	SaveTier(ctx context.Context, t Tier) (Tier, error)
}

// Service exposes discount record queries and maintenance.
type Service struct {
	records RecordStore
	cache   *cache.Store
	logger  *slog.Logger
	clock   func() time.Time
}

// NewService constructs the service. A nil cache store disables caching.
func NewService(records RecordStore, store *cache.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, cache: store, logger: logger, clock: time.Now}
}

// WithClock overrides the service clock.
func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// GetActivePromotions summarises promotions eligible today.
func (s *Service) GetActivePromotions(ctx context.Context) ([]PromotionSummary, error) {
	var out []PromotionSummary
	err := s.cache.FetchJSON(ctx, CacheKeyActivePromotions, &out, func(ctx context.Context) (any, error) {
		today := DateOf(s.clock())
		promos, err := s.records.EligiblePromotions(ctx, today)
		if err != nil {
			return nil, err
		}
		summaries := make([]PromotionSummary, 0, len(promos))
		for _, p := range promos {
			if !p.EligibleOn(today) {
				continue
			}
			summaries = append(summaries, PromotionSummary{
				Name:               p.Name,
				Label:              p.Label,
				DiscountPercentage: p.DiscountPercentage,
				StartDate:          p.StartDate,
				EndDate:            p.EndDate,
			})
		}
		return summaries, nil
	})
	if err != nil {
		return nil, fmt.Errorf("active promotions: %w", err)
	}
	// The cached list may predate a promotion's end date.
	today := DateOf(s.clock())
	current := make([]PromotionSummary, 0, len(out))
	for _, p := range out {
		if !today.Before(DateOf(p.StartDate)) && !today.After(DateOf(p.EndDate)) {
			current = append(current, p)
		}
	}
	return current, nil
}

// GetSupplierDiscounts summarises the active agreements of supplier.
func (s *Service) GetSupplierDiscounts(ctx context.Context, supplier string) ([]AgreementSummary, error) {
	if supplier == "" {
		return nil, invalid("supplier", nil, "is required")
	}
	var out []AgreementSummary
	err := s.cache.FetchJSON(ctx, SupplierDiscountsKey(supplier), &out, func(ctx context.Context) (any, error) {
		agreements, err := s.records.SupplierAgreements(ctx, supplier)
		if err != nil {
			return nil, err
		}
		sort.SliceStable(agreements, func(i, j int) bool {
			return agreements[i].ItemCode < agreements[j].ItemCode
		})
		summaries := make([]AgreementSummary, 0, len(agreements))
		for _, a := range agreements {
			summaries = append(summaries, AgreementSummary{
				ItemCode:           a.ItemCode,
				DiscountPercentage: a.DiscountPercentage,
				ValidFrom:          a.ValidFrom,
				ValidTo:            a.ValidTo,
			})
		}
		return summaries, nil
	})
	if err != nil {
		return nil, fmt.Errorf("supplier discounts: %w", err)
	}
	return out, nil
}

// SaveAgreement validates and stores an agreement.
func (s *Service) SaveAgreement(ctx context.Context, a Agreement) (Agreement, error) {
	if err := ValidateAgreement(a); err != nil {
		return Agreement{}, err
	}
	keys := []string{SupplierDiscountsKey(a.Supplier)}
	if a.ID != 0 {
		prev, err := s.records.GetAgreement(ctx, a.ID)
		if err != nil {
			return Agreement{}, err
		}
		if prev.Supplier != a.Supplier {
			keys = append(keys, SupplierDiscountsKey(prev.Supplier))
		}
	}
	saved, err := s.records.SaveAgreement(ctx, a)
	if err != nil {
		return Agreement{}, err
	}
	s.invalidate(ctx, keys...)
	return saved, nil
}

// SavePromotion validates and stores a promotion. The stored active flag
// mirrors whether the window covers today.
func (s *Service) SavePromotion(ctx context.Context, p Promotion) (Promotion, error) {
	if err := ValidatePromotion(p); err != nil {
		return Promotion{}, err
	}
	p.IsActive = p.EligibleOn(s.clock())
	saved, err := s.records.SavePromotion(ctx, p)
	if err != nil {
		return Promotion{}, err
	}
	s.invalidate(ctx, CacheKeyActivePromotions)
	return saved, nil
}

// DeletePromotion removes a promotion.
func (s *Service) DeletePromotion(ctx context.Context, id int64) error {
	if err := s.records.DeletePromotion(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, CacheKeyActivePromotions)
	return nil
}

// SaveTier validates and stores an incentive tier.
func (s *Service) SaveTier(ctx context.Context, t Tier) (Tier, error) {
	if err := ValidateTier(t); err != nil {
		return Tier{}, err
	}
	saved, err := s.records.SaveTier(ctx, t)
	if err != nil {
		return Tier{}, err
	}
	s.invalidate(ctx, CacheKeyIncentiveSchemes)
	return saved, nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.logger.Warn("invalidate discount cache", slog.Any("keys", keys), slog.Any("error", err))
	}
}
