package domain

// RecomputeTotals returns a copy of the cart with TotalItems and TotalAmount
// derived from its lines. Every cart mutator calls this before persisting so
// the stored snapshot is always internally consistent.
func RecomputeTotals(cart Cart) Cart {
	var items int
	var amount int64
	for _, line := range cart.Lines {
		items += line.Quantity
		amount += int64(line.Quantity) * line.UnitPrice
	}
	cart.TotalItems = items
	cart.TotalAmount = amount
	return cart
}

// CheckoutPricing holds the flat-rate shipping and tax parameters applied at
// order assembly.
type CheckoutPricing struct {
	FreeShippingThreshold int64
	FlatShippingFee       int64
	TaxRateBasisPoints    int64
}

// ShippingFor returns the shipping cost for a subtotal: zero at or above the
// free-shipping threshold, the flat fee otherwise.
func (p CheckoutPricing) ShippingFor(subtotal int64) int64 {
	if subtotal >= p.FreeShippingThreshold {
		return 0
	}
	return p.FlatShippingFee
}

// TaxFor returns the flat-percentage tax on a subtotal, truncated toward
// zero in minor units.
func (p CheckoutPricing) TaxFor(subtotal int64) int64 {
	if p.TaxRateBasisPoints <= 0 {
		return 0
	}
	return subtotal * p.TaxRateBasisPoints / 10000
}
