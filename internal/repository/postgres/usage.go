package postgres

import (
	"context"
	"fmt"

	"github.com/vendora/promotion/internal/domain"
	"github.com/vendora/promotion/pkg/database"
)

// UsageRepository implements repository.UsageRepository using PostgreSQL.
// It only reads; usage_records inserts happen inside the ledger's redemption
// transaction.
type UsageRepository struct {
	db database.DBTX
}

// NewUsageRepository creates a PostgreSQL-backed usage repository.
func NewUsageRepository(db database.DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

// GetStats aggregates usage records for one promotion.
func (r *UsageRepository) GetStats(ctx context.Context, promotionID string) (*domain.UsageStats, error) {
	query := `
		SELECT count(*),
			   count(DISTINCT customer_id),
			   COALESCE(sum(amount_discounted), 0),
			   COALESCE(sum(order_subtotal), 0)
		FROM usage_records
		WHERE promotion_id = $1`

	stats := domain.UsageStats{PromotionID: promotionID}
	err := r.db.QueryRow(ctx, query, promotionID).Scan(
		&stats.RedemptionCount,
		&stats.UniqueCustomers,
		&stats.TotalDiscounted,
		&stats.RevenueTouched,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate usage records: %w", err)
	}

	return &stats, nil
}

// ListByPromotion returns the usage records of a promotion, newest first.
func (r *UsageRepository) ListByPromotion(ctx context.Context, promotionID string, limit int) ([]domain.UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, promotion_id, customer_id, order_id, amount_discounted,
			   order_subtotal, created_at
		FROM usage_records
		WHERE promotion_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, promotionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list usage records: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var rec domain.UsageRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.PromotionID,
			&rec.CustomerID,
			&rec.OrderID,
			&rec.AmountDiscounted,
			&rec.OrderSubtotal,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage records: %w", err)
	}

	if records == nil {
		records = []domain.UsageRecord{}
	}

	return records, nil
}
