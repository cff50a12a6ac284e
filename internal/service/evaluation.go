package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vendora/promotion/internal/domain"
	"github.com/vendora/promotion/internal/engine"
	"github.com/vendora/promotion/internal/event"
	"github.com/vendora/promotion/internal/repository"
	apperrors "github.com/vendora/promotion/pkg/errors"
)

// EvaluationService runs the evaluation pipeline for checkout: lifecycle and
// targeting gates, conflict resolution, discount computation, and on commit
// the ledger's atomic redemption with next-best fallback.
type EvaluationService struct {
	repo     repository.PromotionRepository
	cache    EvaluableCache
	ledger   *LedgerService
	producer *event.Producer
	logger   *slog.Logger
}

// NewEvaluationService creates a new evaluation service. The cache may be nil.
func NewEvaluationService(
	repo repository.PromotionRepository,
	cache EvaluableCache,
	ledger *LedgerService,
	producer *event.Producer,
	logger *slog.Logger,
) *EvaluationService {
	return &EvaluationService{
		repo:     repo,
		cache:    cache,
		ledger:   ledger,
		producer: producer,
		logger:   logger,
	}
}

// CommitResult is the outcome of committing an order's discounts.
type CommitResult struct {
	Applied       []domain.AppliedDiscount `json:"applied"`
	TotalDiscount int64                    `json:"total_discount"`
	Records       []domain.UsageRecord     `json:"records"`
}

// Evaluate computes the applied discount set for an order context without
// touching any counters. Eligibility is checked at evaluation time only; the
// ledger re-checks limits at commit.
func (s *EvaluationService) Evaluate(ctx context.Context, order domain.OrderContext) (*domain.EvaluationResult, error) {
	if len(order.Items) == 0 {
		return nil, apperrors.InvalidInput("order must contain at least one item")
	}

	now := time.Now().UTC()
	candidates, err := s.candidates(ctx, now)
	if err != nil {
		return nil, err
	}

	result := engine.Resolve(candidates, order, now)
	return &result, nil
}

// maxCommitFallbacks bounds the drop-and-re-resolve loop on limit rejections.
const maxCommitFallbacks = 10

// Commit redeems the best resolvable discount set for the order. When a
// redemption hits a limit, the whole attempt rolls back, the rejected
// promotion is dropped, and the remaining candidates are re-resolved.
func (s *EvaluationService) Commit(ctx context.Context, orderID string, order domain.OrderContext) (*CommitResult, error) {
	if orderID == "" {
		return nil, apperrors.InvalidInput("order_id is required")
	}
	if order.CustomerID == "" {
		return nil, apperrors.InvalidInput("customer_id is required")
	}
	if len(order.Items) == 0 {
		return nil, apperrors.InvalidInput("order must contain at least one item")
	}

	now := time.Now().UTC()
	candidates, err := s.candidates(ctx, now)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool)
	subtotal := order.Subtotal()

	for attempt := 0; attempt < maxCommitFallbacks; attempt++ {
		eligible := candidates[:0:0]
		for _, p := range candidates {
			if !excluded[p.ID] {
				eligible = append(eligible, p)
			}
		}

		result := engine.Resolve(eligible, order, now)
		if len(result.Applied) == 0 {
			return &CommitResult{
				Applied: []domain.AppliedDiscount{},
				Records: []domain.UsageRecord{},
			}, nil
		}

		records, err := s.ledger.CommitAll(ctx, order.CustomerID, orderID, result.Applied, subtotal)
		if err != nil {
			var limitErr *domain.LimitError
			if errors.As(err, &limitErr) {
				excluded[limitErr.PromotionID] = true
				s.logger.InfoContext(ctx, "dropping promotion after limit rejection",
					slog.String("promotion_id", limitErr.PromotionID),
					slog.String("reason", string(limitErr.Reason)),
					slog.String("order_id", orderID),
				)
				continue
			}
			return nil, fmt.Errorf("commit discounts: %w", err)
		}

		for i := range records {
			if err := s.producer.PublishPromotionRedeemed(ctx, &records[i]); err != nil {
				s.logger.ErrorContext(ctx, "failed to publish promotion.redeemed event",
					slog.String("promotion_id", records[i].PromotionID),
					slog.String("error", err.Error()),
				)
			}
		}

		return &CommitResult{
			Applied:       result.Applied,
			TotalDiscount: result.TotalDiscount,
			Records:       records,
		}, nil
	}

	return nil, fmt.Errorf("commit discounts: fallback limit reached for order %s", orderID)
}

// candidates loads the evaluable promotion set, reading through the cache
// when one is configured.
func (s *EvaluationService) candidates(ctx context.Context, now time.Time) ([]domain.Promotion, error) {
	if s.cache != nil {
		cached, found, err := s.cache.GetEvaluable(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "promotion cache read failed",
				slog.String("error", err.Error()),
			)
		} else if found {
			return cached, nil
		}
	}

	promotions, err := s.repo.ListEvaluable(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list evaluable promotions: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetEvaluable(ctx, promotions); err != nil {
			s.logger.WarnContext(ctx, "promotion cache write failed",
				slog.String("error", err.Error()),
			)
		}
	}

	return promotions, nil
}
