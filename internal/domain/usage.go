package domain

import (
	"fmt"
	"time"
)

// UsageRecord is one redemption of a promotion by a customer. Records are
// append-only.
type UsageRecord struct {
	ID               string    `json:"id"`
	PromotionID      string    `json:"promotion_id"`
	CustomerID       string    `json:"customer_id"`
	OrderID          string    `json:"order_id"`
	AmountDiscounted int64     `json:"amount_discounted"`
	OrderSubtotal    int64     `json:"order_subtotal"`
	CreatedAt        time.Time `json:"created_at"`
}

// LimitReason says which cap rejected a redemption attempt.
type LimitReason string

const (
	ReasonGlobalLimitReached      LimitReason = "global_limit_reached"
	ReasonPerCustomerLimitReached LimitReason = "per_customer_limit_reached"
	ReasonBudgetExhausted         LimitReason = "budget_exhausted"
)

// LimitError is the expected, recoverable outcome of a redemption that would
// exceed a usage limit or the allocated budget. Callers drop the promotion
// and re-resolve with the remaining candidates.
type LimitError struct {
	PromotionID string
	Reason      LimitReason
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("promotion %s limit exceeded: %s", e.PromotionID, e.Reason)
}

// UsageStats are read-only aggregates over a promotion's usage records.
type UsageStats struct {
	PromotionID     string `json:"promotion_id"`
	RedemptionCount int64  `json:"redemption_count"`
	UniqueCustomers int64  `json:"unique_customers"`
	TotalDiscounted int64  `json:"total_discounted"`
	RevenueTouched  int64  `json:"revenue_touched"`
}
