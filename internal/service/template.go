package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vendora/promotion/internal/domain"
	"github.com/vendora/promotion/internal/repository"
	apperrors "github.com/vendora/promotion/pkg/errors"
)

// TemplateService snapshots promotion rule configurations into reusable
// templates and instantiates new draft promotions from them. Templates are
// immutable; later edits to the source promotion never touch a saved one.
type TemplateService struct {
	templates  repository.TemplateRepository
	promotions *PromotionService
	repo       repository.PromotionRepository
	logger     *slog.Logger
}

// NewTemplateService creates a new template service.
func NewTemplateService(
	templates repository.TemplateRepository,
	promotions *PromotionService,
	repo repository.PromotionRepository,
	logger *slog.Logger,
) *TemplateService {
	return &TemplateService{
		templates:  templates,
		promotions: promotions,
		repo:       repo,
		logger:     logger,
	}
}

// SaveAsTemplate snapshots the rule fields of a promotion. Schedule,
// targeting, and counters are not captured.
func (s *TemplateService) SaveAsTemplate(ctx context.Context, promotionID, name, ownerID string, isPublic bool) (*domain.PromotionTemplate, error) {
	if name == "" {
		return nil, apperrors.InvalidInput("template name is required")
	}
	if ownerID == "" {
		return nil, apperrors.InvalidInput("owner_id is required")
	}

	promo, err := s.repo.GetByID(ctx, promotionID, false)
	if err != nil {
		return nil, fmt.Errorf("get promotion for template: %w", err)
	}

	tmpl := domain.FromPromotion(promo, name, ownerID, isPublic)
	tmpl.ID = uuid.New().String()
	tmpl.CreatedAt = time.Now().UTC()

	if err := s.templates.Create(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("create template: %w", err)
	}

	s.logger.InfoContext(ctx, "template created",
		slog.String("template_id", tmpl.ID),
		slog.String("promotion_id", promotionID),
	)

	return tmpl, nil
}

// GetTemplate retrieves a template by id.
func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*domain.PromotionTemplate, error) {
	tmpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template by id: %w", err)
	}
	return tmpl, nil
}

// ListTemplates returns the caller's templates plus public ones.
func (s *TemplateService) ListTemplates(ctx context.Context, ownerID string) ([]domain.PromotionTemplate, error) {
	templates, err := s.templates.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// InstantiateInput holds the caller-supplied fields merged with a template's
// rule snapshot when creating a promotion from it.
type InstantiateInput struct {
	Name             string
	StartsAt         time.Time
	ExpiresAt        time.Time
	TargetProducts   []string
	TargetCategories []string
}

// Instantiate builds a new draft promotion from the template's rule fields
// plus the caller's schedule and targeting.
func (s *TemplateService) Instantiate(ctx context.Context, templateID string, input *InstantiateInput) (*domain.Promotion, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("promotion name is required")
	}

	tmpl, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("get template for instantiate: %w", err)
	}

	return s.promotions.CreatePromotion(ctx, &CreatePromotionInput{
		Name:                 input.Name,
		Type:                 string(tmpl.Type),
		Value:                tmpl.Value,
		MinOrderAmount:       tmpl.MinOrderAmount,
		MaxDiscountAmount:    tmpl.MaxDiscountAmount,
		BuyQuantity:          tmpl.BuyQuantity,
		GetQuantity:          tmpl.GetQuantity,
		AutoApplyNewProducts: tmpl.AutoApplyNewProducts,
		IsActive:             false,
		StartsAt:             input.StartsAt,
		ExpiresAt:            input.ExpiresAt,
		TargetProducts:       input.TargetProducts,
		TargetCategories:     input.TargetCategories,
	})
}
