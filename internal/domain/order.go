package domain

// LineItem is one order line as seen by the evaluation pipeline.
type LineItem struct {
	ProductID  string `json:"product_id"`
	CategoryID string `json:"category_id"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

// Subtotal returns the line's merchandise value.
func (li LineItem) Subtotal() int64 {
	return li.UnitPrice * int64(li.Quantity)
}

// OrderContext is the order snapshot a consumer submits for evaluation.
// Amounts are in minor currency units.
type OrderContext struct {
	CustomerID  string     `json:"customer_id"`
	Items       []LineItem `json:"items"`
	ShippingFee int64      `json:"shipping_fee"`
}

// Subtotal returns the merchandise total across all items.
func (o OrderContext) Subtotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return total
}

// AppliedDiscount is one promotion selected by conflict resolution together
// with its computed amount.
type AppliedDiscount struct {
	PromotionID   string        `json:"promotion_id"`
	PromotionName string        `json:"promotion_name"`
	Type          PromotionType `json:"type"`
	Basis         DiscountBasis `json:"basis"`
	Amount        int64         `json:"amount"`
}

// EvaluationResult is the outcome of evaluating an order context against the
// active promotion set.
type EvaluationResult struct {
	Applied       []AppliedDiscount `json:"applied"`
	TotalDiscount int64             `json:"total_discount"`
}
