package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vendora/promotion/internal/service"
	"github.com/vendora/promotion/pkg/validator"
)

// BulkHandler handles bulk promotion operations.
type BulkHandler struct {
	service *service.BulkService
	logger  *slog.Logger
}

// NewBulkHandler creates a new bulk HTTP handler.
func NewBulkHandler(svc *service.BulkService, logger *slog.Logger) *BulkHandler {
	return &BulkHandler{
		service: svc,
		logger:  logger,
	}
}

// BulkRequest is the JSON request body for a bulk operation.
type BulkRequest struct {
	Operation  string   `json:"operation" validate:"required,oneof=activate deactivate delete duplicate"`
	IDs        []string `json:"ids" validate:"required,min=1,max=50,dive,required"`
	NamePrefix string   `json:"name_prefix" validate:"max=100"`
	StartsAt   string   `json:"starts_at"`
	ExpiresAt  string   `json:"expires_at"`
}

// Execute handles POST /api/v1/promotions/bulk
func (h *BulkHandler) Execute(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req BulkRequest
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

	input := &service.BulkInput{
		Operation:  req.Operation,
		IDs:        req.IDs,
		NamePrefix: req.NamePrefix,
	}

	if req.StartsAt != "" {
		startsAt, ok := parseRFC3339(w, req.StartsAt, "starts_at")
		if !ok {
			return
		}
		input.StartsAt = startsAt
	}
	if req.ExpiresAt != "" {
		expiresAt, ok := parseRFC3339(w, req.ExpiresAt, "expires_at")
		if !ok {
			return
		}
		input.ExpiresAt = expiresAt
	}

	result, err := h.service.Execute(r.Context(), input)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: result})
}
