package repository

import (
	"context"
	"time"

	"github.com/vendora/promotion/internal/domain"
)

// PromotionFilter defines filter criteria for listing promotions. Status
// filters on the derived lifecycle state at the Now instant.
type PromotionFilter struct {
	Status         *string
	Type           *string
	IncludeDeleted bool
	Now            time.Time
	Page           int
	PerPage        int
}

// PromotionRepository defines persistence operations for promotions and
// their targeting sets. A promotion and its targets are written atomically.
type PromotionRepository interface {
	// Create inserts a new promotion.
	Create(ctx context.Context, p *domain.Promotion) error

	// GetByID retrieves a promotion by id. Soft-deleted promotions are
	// returned only when includeDeleted is true.
	GetByID(ctx context.Context, id string, includeDeleted bool) (*domain.Promotion, error)

	// List returns promotions matching the filter with the total count.
	List(ctx context.Context, filter PromotionFilter) ([]domain.Promotion, int, error)

	// ListEvaluable returns non-deleted promotions whose schedule window
	// contains now and whose is_active flag is set.
	ListEvaluable(ctx context.Context, now time.Time) ([]domain.Promotion, error)

	// ListAutoApply returns evaluable promotions with auto-apply enabled
	// that target the given category.
	ListAutoApply(ctx context.Context, categoryID string, now time.Time) ([]domain.Promotion, error)

	// Update rewrites the definition fields of a promotion. Counters
	// (used_count, spent_budget) are never written by this method.
	Update(ctx context.Context, p *domain.Promotion) error

	// SetActive flips the manual is_active flag.
	SetActive(ctx context.Context, id string, active bool) error

	// AppendTargetProduct adds a product id to the promotion's explicit
	// product-target set if not already present.
	AppendTargetProduct(ctx context.Context, id, productID string) error

	// SoftDelete marks the promotion deleted and inactive.
	SoftDelete(ctx context.Context, id string) error

	// HardDelete removes the promotion row entirely.
	HardDelete(ctx context.Context, id string) error

	// DeactivateFinished clears is_active for promotions whose window does
	// not contain now. Returns the number of rows changed.
	DeactivateFinished(ctx context.Context, now time.Time) (int64, error)
}

// UsageRepository defines read access to usage records. Writes go through
// the ledger's redemption transaction exclusively.
type UsageRepository interface {
	// GetStats aggregates usage records for one promotion.
	GetStats(ctx context.Context, promotionID string) (*domain.UsageStats, error)

	// ListByPromotion returns the usage records of a promotion, newest first.
	ListByPromotion(ctx context.Context, promotionID string, limit int) ([]domain.UsageRecord, error)
}

// TemplateRepository defines persistence operations for promotion templates.
// Templates are immutable once created.
type TemplateRepository interface {
	// Create inserts a new template.
	Create(ctx context.Context, t *domain.PromotionTemplate) error

	// GetByID retrieves a template by id.
	GetByID(ctx context.Context, id string) (*domain.PromotionTemplate, error)

	// List returns templates owned by ownerID plus public ones.
	List(ctx context.Context, ownerID string) ([]domain.PromotionTemplate, error)
}
