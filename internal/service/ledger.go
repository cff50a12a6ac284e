package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vendora/promotion/internal/domain"
	"github.com/vendora/promotion/pkg/database"
	apperrors "github.com/vendora/promotion/pkg/errors"
)

// LedgerService is the only writer of used_count and spent_budget. Every
// redemption runs as one row-locked transaction so concurrent checkouts can
// never push a counter past its cap.
type LedgerService struct {
	db     database.DBTX
	logger *slog.Logger
}

// NewLedgerService creates a new usage ledger.
func NewLedgerService(db database.DBTX, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		db:     db,
		logger: logger,
	}
}

// RedeemInput identifies one redemption attempt.
type RedeemInput struct {
	PromotionID   string
	CustomerID    string
	OrderID       string
	Amount        int64
	OrderSubtotal int64
}

// promotionCounters is the locked snapshot of a promotion's limit state.
type promotionCounters struct {
	UsageLimit        int64
	UsageLimitPerUser int64
	UsedCount         int64
	AllocatedBudget   int64
	SpentBudget       int64
	CustomerCount     int64
}

// checkLimits applies the limit rules to a counter snapshot. Returns nil when
// the redemption of amount may proceed.
func checkLimits(promotionID string, c promotionCounters, amount int64) *domain.LimitError {
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return &domain.LimitError{PromotionID: promotionID, Reason: domain.ReasonGlobalLimitReached}
	}
	if c.UsageLimitPerUser > 0 && c.CustomerCount >= c.UsageLimitPerUser {
		return &domain.LimitError{PromotionID: promotionID, Reason: domain.ReasonPerCustomerLimitReached}
	}
	if c.AllocatedBudget > 0 && c.SpentBudget+amount > c.AllocatedBudget {
		return &domain.LimitError{PromotionID: promotionID, Reason: domain.ReasonBudgetExhausted}
	}
	return nil
}

// TryRedeem atomically checks all limits and records one redemption. A
// *domain.LimitError return is an expected outcome, not a failure; callers
// drop the promotion and re-resolve.
func (s *LedgerService) TryRedeem(ctx context.Context, input RedeemInput) (*domain.UsageRecord, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin redemption transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	record, err := redeemInTx(ctx, tx, input)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit redemption transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "promotion redeemed",
		slog.String("promotion_id", input.PromotionID),
		slog.String("order_id", input.OrderID),
		slog.Int64("amount", input.Amount),
	)

	return record, nil
}

// CommitAll redeems every applied discount inside one transaction. If any
// redemption hits a limit the whole transaction rolls back and the LimitError
// is returned so the caller can drop that promotion and re-resolve.
func (s *LedgerService) CommitAll(ctx context.Context, customerID, orderID string, applied []domain.AppliedDiscount, orderSubtotal int64) ([]domain.UsageRecord, error) {
	if len(applied) == 0 {
		return []domain.UsageRecord{}, nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin commit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records := make([]domain.UsageRecord, 0, len(applied))
	for _, d := range applied {
		record, err := redeemInTx(ctx, tx, RedeemInput{
			PromotionID:   d.PromotionID,
			CustomerID:    customerID,
			OrderID:       orderID,
			Amount:        d.Amount,
			OrderSubtotal: orderSubtotal,
		})
		if err != nil {
			var limitErr *domain.LimitError
			if errors.As(err, &limitErr) {
				s.logger.InfoContext(ctx, "redemption hit limit, rolling back commit",
					slog.String("promotion_id", limitErr.PromotionID),
					slog.String("reason", string(limitErr.Reason)),
				)
			}
			return nil, err
		}
		records = append(records, *record)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit redemption transaction: %w", err)
	}

	s.logger.InfoContext(ctx, "order discounts committed",
		slog.String("order_id", orderID),
		slog.Int("promotions", len(records)),
	)

	return records, nil
}

// redeemInTx performs the check-and-increment for one promotion inside the
// caller's transaction. The promotion row is locked for the duration.
func redeemInTx(ctx context.Context, tx pgx.Tx, input RedeemInput) (*domain.UsageRecord, error) {
	var counters promotionCounters

	lockQuery := `
		SELECT usage_limit, usage_limit_per_user, used_count,
		       allocated_budget, spent_budget
		FROM promotions
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`

	err := tx.QueryRow(ctx, lockQuery, input.PromotionID).Scan(
		&counters.UsageLimit,
		&counters.UsageLimitPerUser,
		&counters.UsedCount,
		&counters.AllocatedBudget,
		&counters.SpentBudget,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("promotion", input.PromotionID)
		}
		return nil, fmt.Errorf("lock promotion row: %w", err)
	}

	if counters.UsageLimitPerUser > 0 {
		countQuery := `
			SELECT count(*)
			FROM usage_records
			WHERE promotion_id = $1 AND customer_id = $2`

		if err := tx.QueryRow(ctx, countQuery, input.PromotionID, input.CustomerID).Scan(&counters.CustomerCount); err != nil {
			return nil, fmt.Errorf("count customer redemptions: %w", err)
		}
	}

	if limitErr := checkLimits(input.PromotionID, counters, input.Amount); limitErr != nil {
		return nil, limitErr
	}

	updateQuery := `
		UPDATE promotions
		SET used_count = used_count + 1,
		    spent_budget = spent_budget + $2,
		    updated_at = NOW()
		WHERE id = $1`

	if _, err := tx.Exec(ctx, updateQuery, input.PromotionID, input.Amount); err != nil {
		return nil, fmt.Errorf("increment promotion counters: %w", err)
	}

	record := &domain.UsageRecord{
		ID:               uuid.New().String(),
		PromotionID:      input.PromotionID,
		CustomerID:       input.CustomerID,
		OrderID:          input.OrderID,
		AmountDiscounted: input.Amount,
		OrderSubtotal:    input.OrderSubtotal,
		CreatedAt:        time.Now().UTC(),
	}

	insertQuery := `
		INSERT INTO usage_records (id, promotion_id, customer_id, order_id, amount_discounted, order_subtotal, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := tx.Exec(ctx, insertQuery,
		record.ID,
		record.PromotionID,
		record.CustomerID,
		record.OrderID,
		record.AmountDiscounted,
		record.OrderSubtotal,
		record.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert usage record: %w", err)
	}

	return record, nil
}
