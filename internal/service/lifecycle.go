package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vendora/promotion/internal/repository"
)

// LifecycleService runs the periodic lifecycle sweep. Status itself is always
// derived; the sweep's only side effect is clearing is_active on promotions
// whose schedule window has closed or not yet opened, so a later manual
// activate cannot silently resurrect them.
type LifecycleService struct {
	repo   repository.PromotionRepository
	cache  EvaluableCache
	logger *slog.Logger
}

// NewLifecycleService creates a new lifecycle service. The cache may be nil.
func NewLifecycleService(repo repository.PromotionRepository, cache EvaluableCache, logger *slog.Logger) *LifecycleService {
	return &LifecycleService{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Sweep deactivates promotions outside their schedule window. Running it
// twice with no intervening time change is a no-op the second time.
func (s *LifecycleService) Sweep(ctx context.Context, now time.Time) (int64, error) {
	changed, err := s.repo.DeactivateFinished(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("lifecycle sweep: %w", err)
	}

	if changed > 0 {
		if s.cache != nil {
			if err := s.cache.Invalidate(ctx); err != nil {
				s.logger.WarnContext(ctx, "failed to invalidate promotion cache after sweep",
					slog.String("error", err.Error()),
				)
			}
		}
		s.logger.InfoContext(ctx, "lifecycle sweep deactivated promotions",
			slog.Int64("count", changed),
		)
	}

	return changed, nil
}
