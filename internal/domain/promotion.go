package domain

import (
	"fmt"
	"time"
)

// PromotionType identifies the discount kind of a promotion.
type PromotionType string

const (
	TypePercentage   PromotionType = "percentage"
	TypeFixedAmount  PromotionType = "fixed_amount"
	TypeFreeShipping PromotionType = "free_shipping"
	TypeBuyXGetY     PromotionType = "buy_x_get_y"
)

// Status is the derived lifecycle state of a promotion. It is never persisted;
// the stored truth is is_active plus the schedule window.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusActive  Status = "active"
	StatusPaused  Status = "paused"
	StatusExpired Status = "expired"
)

// ValidTypes returns the set of valid promotion types.
func ValidTypes() []PromotionType {
	return []PromotionType{
		TypePercentage,
		TypeFixedAmount,
		TypeFreeShipping,
		TypeBuyXGetY,
	}
}

// IsValidType checks whether the given string names a valid promotion type.
func IsValidType(t string) bool {
	for _, v := range ValidTypes() {
		if string(v) == t {
			return true
		}
	}
	return false
}

// ValidStatuses returns the set of derived statuses.
func ValidStatuses() []Status {
	return []Status{StatusDraft, StatusActive, StatusPaused, StatusExpired}
}

// IsValidStatus checks whether the given string names a valid status.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses() {
		if string(v) == s {
			return true
		}
	}
	return false
}

// Promotion is a discount rule with a schedule, usage limits, a budget, and
// targeting sets. All monetary amounts are in minor currency units; percentage
// values are in basis points (2000 = 20%).
type Promotion struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	Description          string        `json:"description"`
	Type                 PromotionType `json:"type"`
	Value                int64         `json:"value"`
	MinOrderAmount       int64         `json:"min_order_amount"`
	MaxDiscountAmount    int64         `json:"max_discount_amount"`
	BuyQuantity          int           `json:"buy_quantity,omitempty"`
	GetQuantity          int           `json:"get_quantity,omitempty"`
	UsageLimit           int64         `json:"usage_limit"`
	UsageLimitPerUser    int64         `json:"usage_limit_per_user"`
	UsedCount            int64         `json:"used_count"`
	AllocatedBudget      int64         `json:"allocated_budget"`
	SpentBudget          int64         `json:"spent_budget"`
	IsActive             bool          `json:"is_active"`
	AutoApplyNewProducts bool          `json:"auto_apply_new_products"`
	StartsAt             time.Time     `json:"starts_at"`
	ExpiresAt            time.Time     `json:"expires_at"`
	TargetProducts       []string      `json:"target_products"`
	TargetCategories     []string      `json:"target_categories"`
	DeletedAt            *time.Time    `json:"deleted_at,omitempty"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// StatusAt derives the lifecycle status at the given instant.
// Draft before the window, Expired after it, and inside the window
// Active or Paused according to the manual is_active flag.
func (p *Promotion) StatusAt(now time.Time) Status {
	if now.Before(p.StartsAt) {
		return StatusDraft
	}
	if now.After(p.ExpiresAt) {
		return StatusExpired
	}
	if p.IsActive {
		return StatusActive
	}
	return StatusPaused
}

// IsStorewide reports whether the promotion has no targeting and therefore
// applies to every product.
func (p *Promotion) IsStorewide() bool {
	return len(p.TargetProducts) == 0 && len(p.TargetCategories) == 0
}

// Targets reports whether the given product is in scope: storewide promotions
// match everything, otherwise the product must be listed directly or belong to
// a listed category.
func (p *Promotion) Targets(productID, categoryID string) bool {
	if p.IsStorewide() {
		return true
	}
	for _, id := range p.TargetProducts {
		if id == productID {
			return true
		}
	}
	for _, id := range p.TargetCategories {
		if id == categoryID {
			return true
		}
	}
	return false
}

// Rule builds the typed discount rule from the flat persisted fields.
func (p *Promotion) Rule() (DiscountRule, error) {
	switch p.Type {
	case TypePercentage:
		return PercentageRule{BasisPoints: p.Value, MaxDiscount: p.MaxDiscountAmount}, nil
	case TypeFixedAmount:
		return FixedAmountRule{Amount: p.Value}, nil
	case TypeFreeShipping:
		return FreeShippingRule{MaxShippingCovered: p.MaxDiscountAmount}, nil
	case TypeBuyXGetY:
		return BuyXGetYRule{
			BuyQuantity: p.BuyQuantity,
			GetQuantity: p.GetQuantity,
			BasisPoints: p.Value,
		}, nil
	default:
		return nil, fmt.Errorf("unknown promotion type %q", p.Type)
	}
}

// Validate checks structural invariants of the promotion definition.
func (p *Promotion) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if !IsValidType(string(p.Type)) {
		return fmt.Errorf("invalid promotion type %q", p.Type)
	}
	if p.StartsAt.IsZero() || p.ExpiresAt.IsZero() {
		return fmt.Errorf("starts_at and expires_at are required")
	}
	if !p.ExpiresAt.After(p.StartsAt) {
		return fmt.Errorf("expires_at must be after starts_at")
	}
	if p.Value < 0 {
		return fmt.Errorf("value must not be negative")
	}
	if p.MinOrderAmount < 0 {
		return fmt.Errorf("min_order_amount must not be negative")
	}
	if p.MaxDiscountAmount < 0 {
		return fmt.Errorf("max_discount_amount must not be negative")
	}
	if p.UsageLimit < 0 || p.UsageLimitPerUser < 0 {
		return fmt.Errorf("usage limits must not be negative")
	}
	if p.AllocatedBudget < 0 {
		return fmt.Errorf("allocated_budget must not be negative")
	}

	switch p.Type {
	case TypePercentage:
		if p.Value == 0 || p.Value > 10000 {
			return fmt.Errorf("percentage value must be between 1 and 10000 basis points")
		}
	case TypeFixedAmount:
		if p.Value == 0 {
			return fmt.Errorf("fixed amount value must be positive")
		}
	case TypeBuyXGetY:
		if p.BuyQuantity <= 0 || p.GetQuantity <= 0 {
			return fmt.Errorf("buy_quantity and get_quantity must be positive")
		}
		if p.Value > 10000 {
			return fmt.Errorf("buy_x_get_y value must not exceed 10000 basis points")
		}
	}
	return nil
}

// DiscountRule is the closed set of discount kinds. Each variant carries only
// the fields its computation needs.
type DiscountRule interface {
	Basis() DiscountBasis
	isDiscountRule()
}

// DiscountBasis is what a discount acts on. Rules on disjoint bases may
// combine for one order; rules on the same basis never stack.
type DiscountBasis string

const (
	BasisMerchandise DiscountBasis = "merchandise"
	BasisShipping    DiscountBasis = "shipping"
)

// PercentageRule discounts the eligible subtotal by BasisPoints/10000,
// clamped to MaxDiscount when set.
type PercentageRule struct {
	BasisPoints int64
	MaxDiscount int64
}

// FixedAmountRule discounts a fixed amount, never more than the subtotal.
type FixedAmountRule struct {
	Amount int64
}

// FreeShippingRule waives the shipping fee up to MaxShippingCovered when set.
type FreeShippingRule struct {
	MaxShippingCovered int64
}

// BuyXGetYRule discounts GetQuantity units per complete group of
// BuyQuantity+GetQuantity eligible units, at BasisPoints (10000 = free).
type BuyXGetYRule struct {
	BuyQuantity int
	GetQuantity int
	BasisPoints int64
}

func (PercentageRule) isDiscountRule()   {}
func (FixedAmountRule) isDiscountRule()  {}
func (FreeShippingRule) isDiscountRule() {}
func (BuyXGetYRule) isDiscountRule()     {}

func (PercentageRule) Basis() DiscountBasis   { return BasisMerchandise }
func (FixedAmountRule) Basis() DiscountBasis  { return BasisMerchandise }
func (FreeShippingRule) Basis() DiscountBasis { return BasisShipping }
func (BuyXGetYRule) Basis() DiscountBasis     { return BasisMerchandise }
