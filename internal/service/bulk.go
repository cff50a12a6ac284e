package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vendora/promotion/internal/domain"
	"github.com/vendora/promotion/internal/event"
	"github.com/vendora/promotion/internal/repository"
	apperrors "github.com/vendora/promotion/pkg/errors"
)

// Bulk operation names.
const (
	BulkOpActivate   = "activate"
	BulkOpDeactivate = "deactivate"
	BulkOpDelete     = "delete"
	BulkOpDuplicate  = "duplicate"
)

// maxBulkIDs bounds one bulk request.
const maxBulkIDs = 50

// BulkItemStatus is the per-id outcome of a bulk operation.
type BulkItemStatus string

const (
	BulkItemSucceeded BulkItemStatus = "succeeded"
	BulkItemSkipped   BulkItemStatus = "skipped"
	BulkItemFailed    BulkItemStatus = "failed"
)

// BulkItemResult reports the outcome for one promotion id.
type BulkItemResult struct {
	PromotionID string         `json:"promotion_id"`
	Status      BulkItemStatus `json:"status"`
	Reason      string         `json:"reason,omitempty"`
	CreatedID   string         `json:"created_id,omitempty"`
}

// BulkResult is the full outcome of one bulk request.
type BulkResult struct {
	Operation string           `json:"operation"`
	Items     []BulkItemResult `json:"items"`
	Succeeded int              `json:"succeeded"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
}

// BulkInput holds the parameters for a bulk operation. StartsAt/ExpiresAt are
// required for duplicate, which resets the schedule of each copy.
type BulkInput struct {
	Operation  string
	IDs        []string
	NamePrefix string
	StartsAt   time.Time
	ExpiresAt  time.Time
}

// BulkService applies one operation across a promotion set, each target in
// its own atomic unit, reporting per-id outcomes instead of aborting on the
// first failure.
type BulkService struct {
	promotions *PromotionService
	repo       repository.PromotionRepository
	producer   *event.Producer
	logger     *slog.Logger
}

// NewBulkService creates a new bulk operation executor.
func NewBulkService(promotions *PromotionService, repo repository.PromotionRepository, producer *event.Producer, logger *slog.Logger) *BulkService {
	return &BulkService{
		promotions: promotions,
		repo:       repo,
		producer:   producer,
		logger:     logger,
	}
}

// Execute runs the bulk operation and returns per-id outcomes.
func (s *BulkService) Execute(ctx context.Context, input *BulkInput) (*BulkResult, error) {
	if len(input.IDs) == 0 {
		return nil, apperrors.InvalidInput("ids list cannot be empty")
	}
	if len(input.IDs) > maxBulkIDs {
		return nil, apperrors.InvalidInput(fmt.Sprintf("at most %d ids per bulk request", maxBulkIDs))
	}

	switch input.Operation {
	case BulkOpActivate, BulkOpDeactivate, BulkOpDelete:
	case BulkOpDuplicate:
		if input.StartsAt.IsZero() || input.ExpiresAt.IsZero() {
			return nil, apperrors.InvalidInput("duplicate requires starts_at and expires_at for the copies")
		}
		if !input.ExpiresAt.After(input.StartsAt) {
			return nil, apperrors.InvalidInput("expires_at must be after starts_at")
		}
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown bulk operation %q", input.Operation))
	}

	result := &BulkResult{Operation: input.Operation}
	seen := make(map[string]bool, len(input.IDs))

	for _, id := range input.IDs {
		if seen[id] {
			result.Items = append(result.Items, BulkItemResult{
				PromotionID: id,
				Status:      BulkItemSkipped,
				Reason:      "duplicate id in request",
			})
			result.Skipped++
			continue
		}
		seen[id] = true

		item := s.executeOne(ctx, input, id)
		result.Items = append(result.Items, item)
		switch item.Status {
		case BulkItemSucceeded:
			result.Succeeded++
		case BulkItemSkipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	if err := s.producer.PublishBulkCompleted(ctx, input.Operation, len(result.Items), result.Succeeded, result.Failed); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.bulk_completed event",
			slog.String("operation", input.Operation),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "bulk operation completed",
		slog.String("operation", input.Operation),
		slog.Int("succeeded", result.Succeeded),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	)

	return result, nil
}

func (s *BulkService) executeOne(ctx context.Context, input *BulkInput, id string) BulkItemResult {
	var err error
	item := BulkItemResult{PromotionID: id}

	switch input.Operation {
	case BulkOpActivate:
		_, err = s.promotions.ActivatePromotion(ctx, id)
	case BulkOpDeactivate:
		_, err = s.promotions.DeactivatePromotion(ctx, id)
	case BulkOpDelete:
		err = s.promotions.DeletePromotion(ctx, id)
	case BulkOpDuplicate:
		var copyID string
		copyID, err = s.duplicate(ctx, input, id)
		item.CreatedID = copyID
	}

	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			item.Status = BulkItemSkipped
			item.Reason = "promotion not found"
		} else {
			item.Status = BulkItemFailed
			item.Reason = err.Error()
		}
		return item
	}

	item.Status = BulkItemSucceeded
	return item
}

// duplicate copies one promotion with reset counters, a fresh schedule, and
// value-copied targeting sets.
func (s *BulkService) duplicate(ctx context.Context, input *BulkInput, id string) (string, error) {
	source, err := s.repo.GetByID(ctx, id, false)
	if err != nil {
		return "", err
	}

	prefix := input.NamePrefix
	if prefix == "" {
		prefix = "Copy of "
	}

	products := make([]string, len(source.TargetProducts))
	copy(products, source.TargetProducts)
	categories := make([]string, len(source.TargetCategories))
	copy(categories, source.TargetCategories)

	now := time.Now().UTC()
	dup := &domain.Promotion{
		ID:                   uuid.New().String(),
		Name:                 prefix + source.Name,
		Description:          source.Description,
		Type:                 source.Type,
		Value:                source.Value,
		MinOrderAmount:       source.MinOrderAmount,
		MaxDiscountAmount:    source.MaxDiscountAmount,
		BuyQuantity:          source.BuyQuantity,
		GetQuantity:          source.GetQuantity,
		UsageLimit:           source.UsageLimit,
		UsageLimitPerUser:    source.UsageLimitPerUser,
		UsedCount:            0,
		AllocatedBudget:      source.AllocatedBudget,
		SpentBudget:          0,
		IsActive:             false,
		AutoApplyNewProducts: source.AutoApplyNewProducts,
		StartsAt:             input.StartsAt,
		ExpiresAt:            input.ExpiresAt,
		TargetProducts:       products,
		TargetCategories:     categories,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.repo.Create(ctx, dup); err != nil {
		return "", fmt.Errorf("create duplicate: %w", err)
	}

	return dup.ID, nil
}
