package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/vendora/promotion/internal/domain"
	"github.com/vendora/promotion/internal/service"
	"github.com/vendora/promotion/pkg/validator"
)

// EvaluationHandler handles discount evaluation and commit requests from
// checkout.
type EvaluationHandler struct {
	service *service.EvaluationService
	logger  *slog.Logger
}

// NewEvaluationHandler creates a new evaluation HTTP handler.
func NewEvaluationHandler(svc *service.EvaluationService, logger *slog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service: svc,
		logger:  logger,
	}
}

// LineItemRequest is one order line in an evaluation request.
type LineItemRequest struct {
	ProductID  string `json:"product_id" validate:"required"`
	CategoryID string `json:"category_id"`
	UnitPrice  int64  `json:"unit_price" validate:"gte=0"`
	Quantity   int    `json:"quantity" validate:"required,gt=0"`
}

// EvaluateRequest is the JSON request body for evaluating an order.
type EvaluateRequest struct {
	CustomerID  string            `json:"customer_id"`
	Items       []LineItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingFee int64             `json:"shipping_fee" validate:"gte=0"`
}

// CommitRequest is the JSON request body for committing an order's discounts.
type CommitRequest struct {
	OrderID     string            `json:"order_id" validate:"required,uuid"`
	CustomerID  string            `json:"customer_id" validate:"required"`
	Items       []LineItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingFee int64             `json:"shipping_fee" validate:"gte=0"`
}

// Evaluate handles POST /api/v1/evaluate
func (h *EvaluationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req EvaluateRequest
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

	order := orderContext(req.CustomerID, req.Items, req.ShippingFee)

	result, err := h.service.Evaluate(r.Context(), order)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: result})
}

// Commit handles POST /api/v1/evaluate/commit
func (h *EvaluationHandler) Commit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	var req CommitRequest
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

	order := orderContext(req.CustomerID, req.Items, req.ShippingFee)

	result, err := h.service.Commit(r.Context(), req.OrderID, order)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{Data: result})
}

func orderContext(customerID string, items []LineItemRequest, shippingFee int64) domain.OrderContext {
	order := domain.OrderContext{
		CustomerID:  customerID,
		ShippingFee: shippingFee,
		Items:       make([]domain.LineItem, 0, len(items)),
	}
	for _, item := range items {
		order.Items = append(order.Items, domain.LineItem{
			ProductID:  item.ProductID,
			CategoryID: item.CategoryID,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
		})
	}
	return order
}
