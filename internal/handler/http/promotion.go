package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vendora/promotion/internal/repository"
	"github.com/vendora/promotion/internal/service"
	"github.com/vendora/promotion/pkg/validator"
)

// PromotionHandler handles HTTP requests for promotion endpoints.
type PromotionHandler struct {
	service *service.PromotionService
	logger  *slog.Logger
}

// NewPromotionHandler creates a new promotion HTTP handler.
func NewPromotionHandler(svc *service.PromotionService, logger *slog.Logger) *PromotionHandler {
	return &PromotionHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreatePromotionRequest is the JSON request body for creating a promotion.
type CreatePromotionRequest struct {
	Name                 string   `json:"name" validate:"required,min=1,max=255"`
	Description          string   `json:"description"`
	Type                 string   `json:"type" validate:"required,oneof=percentage fixed_amount free_shipping buy_x_get_y"`
	Value                int64    `json:"value" validate:"gte=0"`
	MinOrderAmount       int64    `json:"min_order_amount" validate:"gte=0"`
	MaxDiscountAmount    int64    `json:"max_discount_amount" validate:"gte=0"`
	BuyQuantity          int      `json:"buy_quantity" validate:"gte=0"`
	GetQuantity          int      `json:"get_quantity" validate:"gte=0"`
	UsageLimit           int64    `json:"usage_limit" validate:"gte=0"`
	UsageLimitPerUser    int64    `json:"usage_limit_per_user" validate:"gte=0"`
	AllocatedBudget      int64    `json:"allocated_budget" validate:"gte=0"`
	IsActive             bool     `json:"is_active"`
	AutoApplyNewProducts bool     `json:"auto_apply_new_products"`
	StartsAt             string   `json:"starts_at" validate:"required"`
	ExpiresAt            string   `json:"expires_at" validate:"required"`
	TargetProducts       []string `json:"target_products"`
	TargetCategories     []string `json:"target_categories"`
}

// UpdatePromotionRequest is the JSON request body for updating a promotion.
type UpdatePromotionRequest struct {
	Name                 *string  `json:"name" validate:"omitempty,min=1,max=255"`
	Description          *string  `json:"description"`
	Value                *int64   `json:"value" validate:"omitempty,gte=0"`
	MinOrderAmount       *int64   `json:"min_order_amount" validate:"omitempty,gte=0"`
	MaxDiscountAmount    *int64   `json:"max_discount_amount" validate:"omitempty,gte=0"`
	BuyQuantity          *int     `json:"buy_quantity" validate:"omitempty,gte=0"`
	GetQuantity          *int     `json:"get_quantity" validate:"omitempty,gte=0"`
	UsageLimit           *int64   `json:"usage_limit" validate:"omitempty,gte=0"`
	UsageLimitPerUser    *int64   `json:"usage_limit_per_user" validate:"omitempty,gte=0"`
	AllocatedBudget      *int64   `json:"allocated_budget" validate:"omitempty,gte=0"`
	AutoApplyNewProducts *bool    `json:"auto_apply_new_products"`
	StartsAt             *string  `json:"starts_at"`
	ExpiresAt            *string  `json:"expires_at"`
	TargetProducts       []string `json:"target_products"`
	TargetCategories     []string `json:"target_categories"`
}

// --- Handlers ---

// CreatePromotion handles POST /api/v1/promotions
func (h *PromotionHandler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req CreatePromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	startsAt, ok := parseRFC3339(w, req.StartsAt, "starts_at")
	if !ok {
		return
	}
	expiresAt, ok := parseRFC3339(w, req.ExpiresAt, "expires_at")
	if !ok {
		return
	}

	input := &service.CreatePromotionInput{
		Name:                 req.Name,
		Description:          req.Description,
		Type:                 req.Type,
		Value:                req.Value,
		MinOrderAmount:       req.MinOrderAmount,
		MaxDiscountAmount:    req.MaxDiscountAmount,
		BuyQuantity:          req.BuyQuantity,
		GetQuantity:          req.GetQuantity,
		UsageLimit:           req.UsageLimit,
		UsageLimitPerUser:    req.UsageLimitPerUser,
		AllocatedBudget:      req.AllocatedBudget,
		IsActive:             req.IsActive,
		AutoApplyNewProducts: req.AutoApplyNewProducts,
		StartsAt:             startsAt,
		ExpiresAt:            expiresAt,
		TargetProducts:       req.TargetProducts,
		TargetCategories:     req.TargetCategories,
	}

	promo, err := h.service.CreatePromotion(r.Context(), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: promo})
}

// ListPromotions handles GET /api/v1/promotions
func (h *PromotionHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	filter := repository.PromotionFilter{
		Page:    1,
		PerPage: 20,
	}

	if v := r.URL.Query().Get("page"); v != "" {
		if page, err := strconv.Atoi(v); err == nil && page > 0 {
			filter.Page = page
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		if perPage, err := strconv.Atoi(v); err == nil && perPage > 0 && perPage <= 100 {
			filter.PerPage = perPage
		}
	}
	if v := r.URL.Query().Get("status"); v != "" {
		filter.Status = &v
	}
	if v := r.URL.Query().Get("type"); v != "" {
		filter.Type = &v
	}

	promotions, total, err := h.service.ListPromotions(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	totalPages := total / filter.PerPage
	if total%filter.PerPage > 0 {
		totalPages++
	}

	writeJSON(w, http.StatusOK, listResponse{
		Data:       promotions,
		TotalCount: total,
		Page:       filter.Page,
		PerPage:    filter.PerPage,
		TotalPages: totalPages,
	})
}

// GetPromotion handles GET /api/v1/promotions/{id}
func (h *PromotionHandler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	promo, err := h.service.GetPromotion(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: promo})
}

// UpdatePromotion handles PUT /api/v1/promotions/{id}
func (h *PromotionHandler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	var req UpdatePromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	input := &service.UpdatePromotionInput{
		Name:                 req.Name,
		Description:          req.Description,
		Value:                req.Value,
		MinOrderAmount:       req.MinOrderAmount,
		MaxDiscountAmount:    req.MaxDiscountAmount,
		BuyQuantity:          req.BuyQuantity,
		GetQuantity:          req.GetQuantity,
		UsageLimit:           req.UsageLimit,
		UsageLimitPerUser:    req.UsageLimitPerUser,
		AllocatedBudget:      req.AllocatedBudget,
		AutoApplyNewProducts: req.AutoApplyNewProducts,
		TargetProducts:       req.TargetProducts,
		TargetCategories:     req.TargetCategories,
	}

	if req.StartsAt != nil {
		startsAt, ok := parseRFC3339(w, *req.StartsAt, "starts_at")
		if !ok {
			return
		}
		input.StartsAt = &startsAt
	}
	if req.ExpiresAt != nil {
		expiresAt, ok := parseRFC3339(w, *req.ExpiresAt, "expires_at")
		if !ok {
			return
		}
		input.ExpiresAt = &expiresAt
	}

	promo, err := h.service.UpdatePromotion(r.Context(), id, input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: promo})
}

// ActivatePromotion handles POST /api/v1/promotions/{id}/activate
func (h *PromotionHandler) ActivatePromotion(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// DeactivatePromotion handles POST /api/v1/promotions/{id}/deactivate
func (h *PromotionHandler) DeactivatePromotion(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *PromotionHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	var err error
	var promo any
	if active {
		promo, err = h.service.ActivatePromotion(r.Context(), id)
	} else {
		promo, err = h.service.DeactivatePromotion(r.Context(), id)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: promo})
}

// DeletePromotion handles DELETE /api/v1/promotions/{id}
func (h *PromotionHandler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	if err := h.service.DeletePromotion(r.Context(), id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusNoContent, nil)
}

// GetPromotionStats handles GET /api/v1/promotions/{id}/stats
func (h *PromotionHandler) GetPromotionStats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "promotion id is required"},
		})
		return
	}

	stats, err := h.service.GetStats(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: stats})
}

func parseRFC3339(w http.ResponseWriter, value, field string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: field + " must be in RFC3339 format"},
		})
		return time.Time{}, false
	}
	return t, true
}
