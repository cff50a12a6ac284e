package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vendora/promotion/internal/domain"
	pkgkafka "github.com/vendora/promotion/pkg/kafka"
)

// Kafka topic constants for promotion domain events.
const (
	TopicPromotionCreated       = "ecommerce.promotion.created"
	TopicPromotionUpdated       = "ecommerce.promotion.updated"
	TopicPromotionDeleted       = "ecommerce.promotion.deleted"
	TopicPromotionRedeemed      = "ecommerce.promotion.redeemed"
	TopicPromotionBulkCompleted = "ecommerce.promotion.bulk_completed"
)

// Aggregate type constant.
const AggregateTypePromotion = "promotion"

// Source identifier for events originating from this service.
const SourcePromotionService = "promotion-service"

// PromotionEventData is the payload for promotion.created and
// promotion.updated events.
type PromotionEventData struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Type     domain.PromotionType `json:"type"`
	Status   domain.Status        `json:"status"`
	Value    int64                `json:"value"`
	IsActive bool                 `json:"is_active"`
}

// PromotionDeletedData is the payload for a promotion.deleted event.
type PromotionDeletedData struct {
	ID   string `json:"id"`
	Soft bool   `json:"soft"`
}

// PromotionRedeemedData is the payload for a promotion.redeemed event.
type PromotionRedeemedData struct {
	PromotionID      string `json:"promotion_id"`
	CustomerID       string `json:"customer_id"`
	OrderID          string `json:"order_id"`
	AmountDiscounted int64  `json:"amount_discounted"`
}

// BulkCompletedData is the payload for a promotion.bulk_completed event.
type BulkCompletedData struct {
	Operation string `json:"operation"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// Producer publishes promotion domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for the promotion service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, aggregateID, AggregateTypePromotion, SourcePromotionService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	return nil
}

// PublishPromotionCreated publishes a promotion.created event.
func (p *Producer) PublishPromotionCreated(ctx context.Context, promo *domain.Promotion) error {
	return p.publish(ctx, TopicPromotionCreated, promo.ID, promotionData(promo))
}

// PublishPromotionUpdated publishes a promotion.updated event.
func (p *Producer) PublishPromotionUpdated(ctx context.Context, promo *domain.Promotion) error {
	return p.publish(ctx, TopicPromotionUpdated, promo.ID, promotionData(promo))
}

// PublishPromotionDeleted publishes a promotion.deleted event.
func (p *Producer) PublishPromotionDeleted(ctx context.Context, id string, soft bool) error {
	return p.publish(ctx, TopicPromotionDeleted, id, PromotionDeletedData{ID: id, Soft: soft})
}

// PublishPromotionRedeemed publishes a promotion.redeemed event.
func (p *Producer) PublishPromotionRedeemed(ctx context.Context, record *domain.UsageRecord) error {
	data := PromotionRedeemedData{
		PromotionID:      record.PromotionID,
		CustomerID:       record.CustomerID,
		OrderID:          record.OrderID,
		AmountDiscounted: record.AmountDiscounted,
	}
	if err := p.publish(ctx, TopicPromotionRedeemed, record.PromotionID, data); err != nil {
		return err
	}

	p.logger.DebugContext(ctx, "published promotion.redeemed event",
		slog.String("promotion_id", record.PromotionID),
		slog.String("order_id", record.OrderID),
	)

	return nil
}

// PublishBulkCompleted publishes a promotion.bulk_completed event.
func (p *Producer) PublishBulkCompleted(ctx context.Context, operation string, total, succeeded, failed int) error {
	data := BulkCompletedData{
		Operation: operation,
		Total:     total,
		Succeeded: succeeded,
		Failed:    failed,
	}
	return p.publish(ctx, TopicPromotionBulkCompleted, operation, data)
}

func promotionData(promo *domain.Promotion) PromotionEventData {
	return PromotionEventData{
		ID:       promo.ID,
		Name:     promo.Name,
		Type:     promo.Type,
		Status:   promo.StatusAt(time.Now().UTC()),
		Value:    promo.Value,
		IsActive: promo.IsActive,
	}
}
