package engine

import (
	"sort"
	"time"

	"github.com/vendora/promotion/internal/domain"
)

// Resolve selects the promotions that actually apply to an order and their
// amounts. It is a pure function of its inputs.
//
// Policy: at most one promotion applies per line item. Merchandise-basis
// candidates are ordered by discount amount descending, then earliest
// starts_at, then lowest id, and claim line items greedily; a claimed item is
// unavailable to later candidates. A shipping-basis promotion may combine
// with merchandise promotions, but only one shipping promotion applies.
func Resolve(promotions []domain.Promotion, order domain.OrderContext, now time.Time) domain.EvaluationResult {
	var merchandise, shipping []scored

	for i := range promotions {
		p := &promotions[i]
		if p.StatusAt(now) != domain.StatusActive {
			continue
		}
		rule, err := p.Rule()
		if err != nil {
			continue
		}
		amount, err := Discount(p, order.Items, order.ShippingFee)
		if err != nil || amount <= 0 {
			continue
		}
		s := scored{promotion: p, amount: amount}
		if rule.Basis() == domain.BasisShipping {
			shipping = append(shipping, s)
		} else {
			merchandise = append(merchandise, s)
		}
	}

	sortScored(merchandise)
	sortScored(shipping)

	var result domain.EvaluationResult

	remaining := order.Items
	for _, s := range merchandise {
		claimed := EligibleItems(s.promotion, remaining)
		if len(claimed) == 0 {
			continue
		}
		amount, err := Discount(s.promotion, claimed, 0)
		if err != nil || amount <= 0 {
			continue
		}
		result.Applied = append(result.Applied, applied(s.promotion, amount))
		result.TotalDiscount += amount
		remaining = without(remaining, claimed)
		if len(remaining) == 0 {
			break
		}
	}

	if len(shipping) > 0 {
		s := shipping[0]
		result.Applied = append(result.Applied, applied(s.promotion, s.amount))
		result.TotalDiscount += s.amount
	}

	return result
}

type scored struct {
	promotion *domain.Promotion
	amount    int64
}

func sortScored(candidates []scored) {
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.amount != b.amount {
			return a.amount > b.amount
		}
		if !a.promotion.StartsAt.Equal(b.promotion.StartsAt) {
			return a.promotion.StartsAt.Before(b.promotion.StartsAt)
		}
		return a.promotion.ID < b.promotion.ID
	})
}

func applied(p *domain.Promotion, amount int64) domain.AppliedDiscount {
	rule, _ := p.Rule()
	return domain.AppliedDiscount{
		PromotionID:   p.ID,
		PromotionName: p.Name,
		Type:          p.Type,
		Basis:         rule.Basis(),
		Amount:        amount,
	}
}

func without(items, claimed []domain.LineItem) []domain.LineItem {
	taken := make(map[string]bool, len(claimed))
	for _, item := range claimed {
		taken[item.ProductID] = true
	}
	var rest []domain.LineItem
	for _, item := range items {
		if !taken[item.ProductID] {
			rest = append(rest, item)
		}
	}
	return rest
}
