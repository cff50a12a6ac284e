package engine

import (
	"github.com/vendora/promotion/internal/domain"
)

// EligibleItems returns the order items in scope of the promotion, per its
// targeting sets. Storewide promotions match every item.
func EligibleItems(p *domain.Promotion, items []domain.LineItem) []domain.LineItem {
	if p.IsStorewide() {
		return items
	}
	var eligible []domain.LineItem
	for _, item := range items {
		if p.Targets(item.ProductID, item.CategoryID) {
			eligible = append(eligible, item)
		}
	}
	return eligible
}

// AutoApplyMatches reports whether a newly created product in the given
// category should be propagated into the promotion's product-target set.
// Propagation is a one-time event at product creation; later category
// reassignment never changes the set.
func AutoApplyMatches(p *domain.Promotion, categoryID string) bool {
	if !p.AutoApplyNewProducts {
		return false
	}
	for _, id := range p.TargetCategories {
		if id == categoryID {
			return true
		}
	}
	return false
}
