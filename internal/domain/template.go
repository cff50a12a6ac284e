package domain

import "time"

// PromotionTemplate is a read-only snapshot of a promotion's rule fields.
// Schedule, targeting, and counters are deliberately excluded; instantiation
// merges the template with caller-supplied schedule and targeting.
type PromotionTemplate struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	OwnerID              string        `json:"owner_id"`
	IsPublic             bool          `json:"is_public"`
	Type                 PromotionType `json:"type"`
	Value                int64         `json:"value"`
	MinOrderAmount       int64         `json:"min_order_amount"`
	MaxDiscountAmount    int64         `json:"max_discount_amount"`
	BuyQuantity          int           `json:"buy_quantity,omitempty"`
	GetQuantity          int           `json:"get_quantity,omitempty"`
	AutoApplyNewProducts bool          `json:"auto_apply_new_products"`
	CreatedAt            time.Time     `json:"created_at"`
}

// FromPromotion snapshots the rule fields of a promotion into a template.
func FromPromotion(p *Promotion, name, ownerID string, isPublic bool) *PromotionTemplate {
	return &PromotionTemplate{
		Name:                 name,
		OwnerID:              ownerID,
		IsPublic:             isPublic,
		Type:                 p.Type,
		Value:                p.Value,
		MinOrderAmount:       p.MinOrderAmount,
		MaxDiscountAmount:    p.MaxDiscountAmount,
		BuyQuantity:          p.BuyQuantity,
		GetQuantity:          p.GetQuantity,
		AutoApplyNewProducts: p.AutoApplyNewProducts,
	}
}

// NewPromotion builds a draft promotion from the template's rule fields plus
// the supplied schedule and targeting.
func (t *PromotionTemplate) NewPromotion(name string, startsAt, expiresAt time.Time, targetProducts, targetCategories []string) *Promotion {
	products := make([]string, len(targetProducts))
	copy(products, targetProducts)
	categories := make([]string, len(targetCategories))
	copy(categories, targetCategories)

	return &Promotion{
		Name:                 name,
		Type:                 t.Type,
		Value:                t.Value,
		MinOrderAmount:       t.MinOrderAmount,
		MaxDiscountAmount:    t.MaxDiscountAmount,
		BuyQuantity:          t.BuyQuantity,
		GetQuantity:          t.GetQuantity,
		AutoApplyNewProducts: t.AutoApplyNewProducts,
		IsActive:             false,
		StartsAt:             startsAt,
		ExpiresAt:            expiresAt,
		TargetProducts:       products,
		TargetCategories:     categories,
	}
}
