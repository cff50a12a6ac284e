package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	pkgkafka "github.com/vendora/promotion/pkg/kafka"
)

// Kafka topics consumed by the promotion service.
const (
	TopicProductCreated = "ecommerce.product.created"
)

// TargetingService defines the interface required by the event consumer.
type TargetingService interface {
	PropagateNewProduct(ctx context.Context, productID, categoryID string) (int, error)
}

// ProductCreatedData is the expected payload of a product.created event.
type ProductCreatedData struct {
	ProductID  string `json:"product_id"`
	CategoryID string `json:"category_id"`
	Name       string `json:"name"`
}

// Consumer processes incoming Kafka events for the promotion service.
type Consumer struct {
	logger  *slog.Logger
	service TargetingService
}

// NewConsumer creates an event consumer for the promotion service.
func NewConsumer(service TargetingService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandleProductCreated processes product.created events by propagating the
// new product into the product-target sets of matching auto-apply promotions.
// The propagation happens once, at creation time; later category changes do
// not revisit it.
func (c *Consumer) HandleProductCreated(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductCreatedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal product.created data: %w", err)
	}

	if data.ProductID == "" || data.CategoryID == "" {
		c.logger.WarnContext(ctx, "product.created event missing ids, skipping",
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	applied, err := c.service.PropagateNewProduct(ctx, data.ProductID, data.CategoryID)
	if err != nil {
		return fmt.Errorf("propagate product %s: %w", data.ProductID, err)
	}

	c.logger.InfoContext(ctx, "auto-apply propagation completed",
		slog.String("product_id", data.ProductID),
		slog.String("category_id", data.CategoryID),
		slog.Int("promotions_updated", applied),
	)

	return nil
}
