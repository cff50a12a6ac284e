package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vendora/promotion/internal/service"
	"github.com/vendora/promotion/pkg/validator"
)

// TemplateHandler handles promotion template endpoints.
type TemplateHandler struct {
	service *service.TemplateService
	logger  *slog.Logger
}

// NewTemplateHandler creates a new template HTTP handler.
func NewTemplateHandler(svc *service.TemplateService, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateTemplateRequest is the JSON request body for saving a promotion as a
// template.
type CreateTemplateRequest struct {
	PromotionID string `json:"promotion_id" validate:"required,uuid"`
	Name        string `json:"name" validate:"required,min=1,max=255"`
	IsPublic    bool   `json:"is_public"`
}

// InstantiateTemplateRequest is the JSON request body for creating a
// promotion from a template.
type InstantiateTemplateRequest struct {
	Name             string   `json:"name" validate:"required,min=1,max=255"`
	StartsAt         string   `json:"starts_at" validate:"required"`
	ExpiresAt        string   `json:"expires_at" validate:"required"`
	TargetProducts   []string `json:"target_products"`
	TargetCategories []string `json:"target_categories"`
}

// CreateTemplate handles POST /api/v1/templates
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	var req CreateTemplateRequest
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

	tmpl, err := h.service.SaveAsTemplate(r.Context(), req.PromotionID, req.Name, ownerID, req.IsPublic)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: tmpl})
}

// ListTemplates handles GET /api/v1/templates
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, response{
			Error: &errorResponse{Code: "UNAUTHORIZED", Message: "authentication required"},
		})
		return
	}

	templates, err := h.service.ListTemplates(r.Context(), ownerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: templates})
}

// GetTemplate handles GET /api/v1/templates/{id}
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "template id is required"},
		})
		return
	}

	tmpl, err := h.service.GetTemplate(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: tmpl})
}

// InstantiateTemplate handles POST /api/v1/templates/{id}/instantiate
func (h *TemplateHandler) InstantiateTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "template id is required"},
		})
		return
	}

	var req InstantiateTemplateRequest
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

	input := &service.InstantiateInput{
		Name:             req.Name,
		StartsAt:         startsAt,
		ExpiresAt:        expiresAt,
		TargetProducts:   req.TargetProducts,
		TargetCategories: req.TargetCategories,
	}

	promo, err := h.service.Instantiate(r.Context(), id, input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: promo})
}
