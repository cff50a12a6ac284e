package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vendora/promotion/internal/domain"
	"github.com/vendora/promotion/internal/engine"
	"github.com/vendora/promotion/internal/event"
	"github.com/vendora/promotion/internal/repository"
	apperrors "github.com/vendora/promotion/pkg/errors"
)

// EvaluableCache caches the evaluable promotion set between writes.
type EvaluableCache interface {
	GetEvaluable(ctx context.Context) ([]domain.Promotion, bool, error)
	SetEvaluable(ctx context.Context, promotions []domain.Promotion) error
	Invalidate(ctx context.Context) error
}

// PromotionService implements the admin-facing business logic for promotions.
type PromotionService struct {
	repo     repository.PromotionRepository
	usage    repository.UsageRepository
	cache    EvaluableCache
	producer *event.Producer
	logger   *slog.Logger
}

// NewPromotionService creates a new promotion service. The cache may be nil.
func NewPromotionService(
	repo repository.PromotionRepository,
	usage repository.UsageRepository,
	cache EvaluableCache,
	producer *event.Producer,
	logger *slog.Logger,
) *PromotionService {
	return &PromotionService{
		repo:     repo,
		usage:    usage,
		cache:    cache,
		producer: producer,
		logger:   logger,
	}
}

// CreatePromotionInput holds the parameters for creating a promotion.
type CreatePromotionInput struct {
	Name                 string
	Description          string
	Type                 string
	Value                int64
	MinOrderAmount       int64
	MaxDiscountAmount    int64
	BuyQuantity          int
	GetQuantity          int
	UsageLimit           int64
	UsageLimitPerUser    int64
	AllocatedBudget      int64
	IsActive             bool
	AutoApplyNewProducts bool
	StartsAt             time.Time
	ExpiresAt            time.Time
	TargetProducts       []string
	TargetCategories     []string
}

// UpdatePromotionInput holds the parameters for a partial promotion update.
type UpdatePromotionInput struct {
	Name                 *string
	Description          *string
	Value                *int64
	MinOrderAmount       *int64
	MaxDiscountAmount    *int64
	BuyQuantity          *int
	GetQuantity          *int
	UsageLimit           *int64
	UsageLimitPerUser    *int64
	AllocatedBudget      *int64
	AutoApplyNewProducts *bool
	StartsAt             *time.Time
	ExpiresAt            *time.Time
	TargetProducts       []string
	TargetCategories     []string
}

// CreatePromotion creates a new promotion from the given input.
func (s *PromotionService) CreatePromotion(ctx context.Context, input *CreatePromotionInput) (*domain.Promotion, error) {
	now := time.Now().UTC()
	promo := &domain.Promotion{
		ID:                   uuid.New().String(),
		Name:                 input.Name,
		Description:          input.Description,
		Type:                 domain.PromotionType(input.Type),
		Value:                input.Value,
		MinOrderAmount:       input.MinOrderAmount,
		MaxDiscountAmount:    input.MaxDiscountAmount,
		BuyQuantity:          input.BuyQuantity,
		GetQuantity:          input.GetQuantity,
		UsageLimit:           input.UsageLimit,
		UsageLimitPerUser:    input.UsageLimitPerUser,
		AllocatedBudget:      input.AllocatedBudget,
		IsActive:             input.IsActive,
		AutoApplyNewProducts: input.AutoApplyNewProducts,
		StartsAt:             input.StartsAt,
		ExpiresAt:            input.ExpiresAt,
		TargetProducts:       input.TargetProducts,
		TargetCategories:     input.TargetCategories,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if promo.TargetProducts == nil {
		promo.TargetProducts = []string{}
	}
	if promo.TargetCategories == nil {
		promo.TargetCategories = []string{}
	}

	if err := promo.Validate(); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	if err := s.repo.Create(ctx, promo); err != nil {
		return nil, fmt.Errorf("create promotion: %w", err)
	}

	s.invalidateCache(ctx)

	if err := s.producer.PublishPromotionCreated(ctx, promo); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.created event",
			slog.String("promotion_id", promo.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}

	s.logger.InfoContext(ctx, "promotion created",
		slog.String("promotion_id", promo.ID),
		slog.String("type", string(promo.Type)),
	)

	return promo, nil
}

// GetPromotion retrieves a promotion by its id.
func (s *PromotionService) GetPromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	promo, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("get promotion by id: %w", err)
	}
	return promo, nil
}

// ListPromotions returns a filtered, paginated list of promotions.
func (s *PromotionService) ListPromotions(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}
	if filter.Now.IsZero() {
		filter.Now = time.Now().UTC()
	}

	promotions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}

	return promotions, total, nil
}

// UpdatePromotion applies partial updates to an existing promotion. Shrinking
// usage_limit below used_count or allocated_budget below spent_budget is
// rejected with a constraint violation and leaves the record untouched.
func (s *PromotionService) UpdatePromotion(ctx context.Context, id string, input *UpdatePromotionInput) (*domain.Promotion, error) {
	promo, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("get promotion for update: %w", err)
	}

	if input.Name != nil {
		promo.Name = *input.Name
	}
	if input.Description != nil {
		promo.Description = *input.Description
	}
	if input.Value != nil {
		promo.Value = *input.Value
	}
	if input.MinOrderAmount != nil {
		promo.MinOrderAmount = *input.MinOrderAmount
	}
	if input.MaxDiscountAmount != nil {
		promo.MaxDiscountAmount = *input.MaxDiscountAmount
	}
	if input.BuyQuantity != nil {
		promo.BuyQuantity = *input.BuyQuantity
	}
	if input.GetQuantity != nil {
		promo.GetQuantity = *input.GetQuantity
	}
	if input.UsageLimit != nil {
		if *input.UsageLimit > 0 && *input.UsageLimit < promo.UsedCount {
			return nil, apperrors.ConstraintViolation(fmt.Sprintf(
				"usage_limit %d is below used_count %d", *input.UsageLimit, promo.UsedCount))
		}
		promo.UsageLimit = *input.UsageLimit
	}
	if input.UsageLimitPerUser != nil {
		promo.UsageLimitPerUser = *input.UsageLimitPerUser
	}
	if input.AllocatedBudget != nil {
		if *input.AllocatedBudget > 0 && *input.AllocatedBudget < promo.SpentBudget {
			return nil, apperrors.ConstraintViolation(fmt.Sprintf(
				"allocated_budget %d is below spent_budget %d", *input.AllocatedBudget, promo.SpentBudget))
		}
		promo.AllocatedBudget = *input.AllocatedBudget
	}
	if input.AutoApplyNewProducts != nil {
		promo.AutoApplyNewProducts = *input.AutoApplyNewProducts
	}
	if input.StartsAt != nil {
		promo.StartsAt = *input.StartsAt
	}
	if input.ExpiresAt != nil {
		promo.ExpiresAt = *input.ExpiresAt
	}
	if input.TargetProducts != nil {
		promo.TargetProducts = input.TargetProducts
	}
	if input.TargetCategories != nil {
		promo.TargetCategories = input.TargetCategories
	}

	if err := promo.Validate(); err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	if err := s.repo.Update(ctx, promo); err != nil {
		return nil, fmt.Errorf("update promotion: %w", err)
	}

	s.invalidateCache(ctx)

	if err := s.producer.PublishPromotionUpdated(ctx, promo); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.updated event",
			slog.String("promotion_id", promo.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promotion updated",
		slog.String("promotion_id", promo.ID),
	)

	return promo, nil
}

// ActivatePromotion sets the manual is_active flag. Activating an expired
// promotion has no effect on its derived status; extending expires_at is the
// only way out of Expired.
func (s *PromotionService) ActivatePromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	return s.setActive(ctx, id, true)
}

// DeactivatePromotion clears the manual is_active flag.
func (s *PromotionService) DeactivatePromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	return s.setActive(ctx, id, false)
}

func (s *PromotionService) setActive(ctx context.Context, id string, active bool) (*domain.Promotion, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, fmt.Errorf("set promotion active=%t: %w", active, err)
	}

	s.invalidateCache(ctx)

	promo, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("reload promotion: %w", err)
	}

	if err := s.producer.PublishPromotionUpdated(ctx, promo); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.updated event",
			slog.String("promotion_id", promo.ID),
			slog.String("error", err.Error()),
		)
	}

	return promo, nil
}

// DeletePromotion removes a promotion. Promotions with recorded redemptions
// are soft-deleted so usage history stays intact for analytics; promotions
// never redeemed are removed outright.
func (s *PromotionService) DeletePromotion(ctx context.Context, id string) error {
	promo, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return fmt.Errorf("get promotion for delete: %w", err)
	}

	soft := promo.UsedCount > 0
	if soft {
		err = s.repo.SoftDelete(ctx, id)
	} else {
		err = s.repo.HardDelete(ctx, id)
	}
	if err != nil {
		return fmt.Errorf("delete promotion: %w", err)
	}

	s.invalidateCache(ctx)

	if err := s.producer.PublishPromotionDeleted(ctx, id, soft); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.deleted event",
			slog.String("promotion_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promotion deleted",
		slog.String("promotion_id", id),
		slog.Bool("soft", soft),
	)

	return nil
}

// GetStats returns usage analytics for a promotion.
func (s *PromotionService) GetStats(ctx context.Context, id string) (*domain.UsageStats, error) {
	if _, err := s.repo.GetByID(ctx, id, true); err != nil {
		return nil, fmt.Errorf("get promotion for stats: %w", err)
	}

	stats, err := s.usage.GetStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get usage stats: %w", err)
	}

	return stats, nil
}

// PropagateNewProduct adds a newly created product to the product-target set
// of every evaluable auto-apply promotion targeting its category. Returns the
// number of promotions updated.
func (s *PromotionService) PropagateNewProduct(ctx context.Context, productID, categoryID string) (int, error) {
	now := time.Now().UTC()
	promotions, err := s.repo.ListAutoApply(ctx, categoryID, now)
	if err != nil {
		return 0, fmt.Errorf("list auto-apply promotions: %w", err)
	}

	updated := 0
	for i := range promotions {
		p := &promotions[i]
		if !engine.AutoApplyMatches(p, categoryID) {
			continue
		}
		if err := s.repo.AppendTargetProduct(ctx, p.ID, productID); err != nil {
			s.logger.ErrorContext(ctx, "failed to append target product",
				slog.String("promotion_id", p.ID),
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
			continue
		}
		updated++
	}

	if updated > 0 {
		s.invalidateCache(ctx)
	}

	return updated, nil
}

func (s *PromotionService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate promotion cache",
			slog.String("error", err.Error()),
		)
	}
}
