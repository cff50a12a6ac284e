package service

import (
	"context"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendora/promotion/internal/domain"
	apperrors "github.com/vendora/promotion/pkg/errors"
)

// --- checkLimits ---

func TestCheckLimits(t *testing.T) {
	tests := []struct {
		name       string
		counters   promotionCounters
		amount     int64
		wantReason domain.LimitReason
	}{
		{
			"all limits clear",
			promotionCounters{UsageLimit: 10, UsedCount: 5, AllocatedBudget: 100000, SpentBudget: 50000},
			10000,
			"",
		},
		{
			"zero limits mean unlimited",
			promotionCounters{UsedCount: 1000000, SpentBudget: 1 << 40},
			10000,
			"",
		},
		{
			"global limit reached",
			promotionCounters{UsageLimit: 5, UsedCount: 5},
			100,
			domain.ReasonGlobalLimitReached,
		},
		{
			"per customer limit reached",
			promotionCounters{UsageLimitPerUser: 2, CustomerCount: 2},
			100,
			domain.ReasonPerCustomerLimitReached,
		},
		{
			"budget would be exceeded",
			promotionCounters{AllocatedBudget: 100000, SpentBudget: 95000},
			10000,
			domain.ReasonBudgetExhausted,
		},
		{
			"budget exactly consumed is allowed",
			promotionCounters{AllocatedBudget: 100000, SpentBudget: 90000},
			10000,
			"",
		},
		{
			"global limit checked before budget",
			promotionCounters{UsageLimit: 1, UsedCount: 1, AllocatedBudget: 1, SpentBudget: 1},
			100,
			domain.ReasonGlobalLimitReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkLimits("promo-1", tt.counters, tt.amount)
			if tt.wantReason == "" {
				assert.Nil(t, err)
			} else {
				require.NotNil(t, err)
				assert.Equal(t, tt.wantReason, err.Reason)
				assert.Equal(t, "promo-1", err.PromotionID)
			}
		})
	}
}

// TestCheckLimits_ConcurrentRedemptions drives the limit check the way the
// ledger does: each attempt sees the counters under a lock, and only a passing
// attempt increments them. With usage_limit=1 and many contenders, exactly one
// redemption may succeed.
func TestCheckLimits_ConcurrentRedemptions(t *testing.T) {
	var (
		mu        sync.Mutex
		counters  = promotionCounters{UsageLimit: 1}
		wg        sync.WaitGroup
		succeeded int
	)

	const contenders = 50
	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func() {
			defer wg.Done()
			mu.Lock()
			defer mu.Unlock()
			if limitErr := checkLimits("promo-1", counters, 1000); limitErr != nil {
				return
			}
			counters.UsedCount++
			counters.SpentBudget += 1000
			succeeded++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(1), counters.UsedCount)
}

// --- transactional ledger ---

func redeemColumns() []string {
	return []string{"usage_limit", "usage_limit_per_user", "used_count", "allocated_budget", "spent_budget"}
}

func sampleRedeemInput() RedeemInput {
	return RedeemInput{
		PromotionID:   "a0000000-0000-0000-0000-000000000001",
		CustomerID:    "cust-1",
		OrderID:       "b0000000-0000-0000-0000-000000000001",
		Amount:        5000,
		OrderSubtotal: 50000,
	}
}

func TestLedger_TryRedeem_Success(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	input := sampleRedeemInput()

	mockPool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mockPool.ExpectQuery(`SELECT usage_limit, usage_limit_per_user, used_count`).
		WithArgs(input.PromotionID).
		WillReturnRows(pgxmock.NewRows(redeemColumns()).
			AddRow(int64(10), int64(0), int64(3), int64(0), int64(15000)))
	mockPool.ExpectExec(`UPDATE promotions`).
		WithArgs(input.PromotionID, input.Amount).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectExec(`INSERT INTO usage_records`).
		WithArgs(pgxmock.AnyArg(), input.PromotionID, input.CustomerID, input.OrderID, input.Amount, input.OrderSubtotal, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()
	mockPool.ExpectRollback()

	ledger := NewLedgerService(mockPool, newTestLogger())

	record, err := ledger.TryRedeem(context.Background(), input)

	require.NoError(t, err)
	assert.Equal(t, input.PromotionID, record.PromotionID)
	assert.Equal(t, input.Amount, record.AmountDiscounted)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLedger_TryRedeem_GlobalLimitReached(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	input := sampleRedeemInput()

	mockPool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mockPool.ExpectQuery(`SELECT usage_limit, usage_limit_per_user, used_count`).
		WithArgs(input.PromotionID).
		WillReturnRows(pgxmock.NewRows(redeemColumns()).
			AddRow(int64(5), int64(0), int64(5), int64(0), int64(0)))
	mockPool.ExpectRollback()

	ledger := NewLedgerService(mockPool, newTestLogger())

	_, err = ledger.TryRedeem(context.Background(), input)

	var limitErr *domain.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, domain.ReasonGlobalLimitReached, limitErr.Reason)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLedger_TryRedeem_PerCustomerLimitCountsRecords(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	input := sampleRedeemInput()

	mockPool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mockPool.ExpectQuery(`SELECT usage_limit, usage_limit_per_user, used_count`).
		WithArgs(input.PromotionID).
		WillReturnRows(pgxmock.NewRows(redeemColumns()).
			AddRow(int64(0), int64(1), int64(7), int64(0), int64(0)))
	mockPool.ExpectQuery(`SELECT count`).
		WithArgs(input.PromotionID, input.CustomerID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mockPool.ExpectRollback()

	ledger := NewLedgerService(mockPool, newTestLogger())

	_, err = ledger.TryRedeem(context.Background(), input)

	var limitErr *domain.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, domain.ReasonPerCustomerLimitReached, limitErr.Reason)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLedger_TryRedeem_PromotionGone(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	input := sampleRedeemInput()

	mockPool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mockPool.ExpectQuery(`SELECT usage_limit, usage_limit_per_user, used_count`).
		WithArgs(input.PromotionID).
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectRollback()

	ledger := NewLedgerService(mockPool, newTestLogger())

	_, err = ledger.TryRedeem(context.Background(), input)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLedger_CommitAll_RollsBackOnLimit(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	applied := []domain.AppliedDiscount{
		{PromotionID: "a0000000-0000-0000-0000-000000000001", Amount: 5000},
		{PromotionID: "a0000000-0000-0000-0000-000000000002", Amount: 3000},
	}

	mockPool.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	// First promotion passes.
	mockPool.ExpectQuery(`SELECT usage_limit, usage_limit_per_user, used_count`).
		WithArgs(applied[0].PromotionID).
		WillReturnRows(pgxmock.NewRows(redeemColumns()).
			AddRow(int64(0), int64(0), int64(0), int64(0), int64(0)))
	mockPool.ExpectExec(`UPDATE promotions`).
		WithArgs(applied[0].PromotionID, applied[0].Amount).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectExec(`INSERT INTO usage_records`).
		WithArgs(pgxmock.AnyArg(), applied[0].PromotionID, "cust-1", "order-1", applied[0].Amount, int64(50000), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Second promotion hits its budget; everything rolls back.
	mockPool.ExpectQuery(`SELECT usage_limit, usage_limit_per_user, used_count`).
		WithArgs(applied[1].PromotionID).
		WillReturnRows(pgxmock.NewRows(redeemColumns()).
			AddRow(int64(0), int64(0), int64(0), int64(1000), int64(0)))
	mockPool.ExpectRollback()

	ledger := NewLedgerService(mockPool, newTestLogger())

	records, err := ledger.CommitAll(context.Background(), "cust-1", "order-1", applied, 50000)

	assert.Nil(t, records)
	var limitErr *domain.LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, applied[1].PromotionID, limitErr.PromotionID)
	assert.Equal(t, domain.ReasonBudgetExhausted, limitErr.Reason)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestLedger_CommitAll_Empty(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	ledger := NewLedgerService(mockPool, newTestLogger())

	records, err := ledger.CommitAll(context.Background(), "cust-1", "order-1", nil, 0)

	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
