package engine

import (
	"sort"

	"github.com/vendora/promotion/internal/domain"
)

// basisPointDenominator converts basis points to a fraction (2000 bps = 20%).
const basisPointDenominator = 10000

// Discount computes the amount a promotion yields over the given items and
// shipping fee. Targeting is applied to the items first; the minimum order
// gate runs against the eligible portion of the subtotal. The result is
// non-negative and never exceeds the base the rule acts on.
func Discount(p *domain.Promotion, items []domain.LineItem, shippingFee int64) (int64, error) {
	rule, err := p.Rule()
	if err != nil {
		return 0, err
	}

	eligible := EligibleItems(p, items)
	var eligibleSubtotal int64
	for _, item := range eligible {
		eligibleSubtotal += item.Subtotal()
	}

	if eligibleSubtotal < p.MinOrderAmount {
		return 0, nil
	}

	switch r := rule.(type) {
	case domain.PercentageRule:
		d := eligibleSubtotal * r.BasisPoints / basisPointDenominator
		if r.MaxDiscount > 0 && d > r.MaxDiscount {
			d = r.MaxDiscount
		}
		if d > eligibleSubtotal {
			d = eligibleSubtotal
		}
		return d, nil

	case domain.FixedAmountRule:
		if r.Amount > eligibleSubtotal {
			return eligibleSubtotal, nil
		}
		return r.Amount, nil

	case domain.FreeShippingRule:
		d := shippingFee
		if r.MaxShippingCovered > 0 && d > r.MaxShippingCovered {
			d = r.MaxShippingCovered
		}
		return d, nil

	case domain.BuyXGetYRule:
		return buyXGetYDiscount(r, eligible), nil
	}

	return 0, nil
}

// buyXGetYDiscount discounts the cheapest eligible units. For every complete
// group of BuyQuantity+GetQuantity units, GetQuantity units are discounted at
// the rule's basis points (10000 = free). Units below a full group are
// unaffected.
func buyXGetYDiscount(r domain.BuyXGetYRule, items []domain.LineItem) int64 {
	groupSize := r.BuyQuantity + r.GetQuantity
	if groupSize <= 0 {
		return 0
	}

	var unitPrices []int64
	for _, item := range items {
		for i := 0; i < item.Quantity; i++ {
			unitPrices = append(unitPrices, item.UnitPrice)
		}
	}

	groups := len(unitPrices) / groupSize
	discountedUnits := groups * r.GetQuantity
	if discountedUnits == 0 {
		return 0
	}

	sort.Slice(unitPrices, func(i, j int) bool { return unitPrices[i] < unitPrices[j] })

	bps := r.BasisPoints
	if bps == 0 {
		bps = basisPointDenominator
	}

	var discount int64
	for i := 0; i < discountedUnits; i++ {
		discount += unitPrices[i] * bps / basisPointDenominator
	}
	return discount
}
