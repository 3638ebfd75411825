package domain

import "testing"

func TestRecomputeTotals(t *testing.T) {
	cart := Cart{
		Owner: "user_1",
		Lines: []CartLine{
			{ProductID: "prod_a", Quantity: 3, UnitPrice: 1200},
			{ProductID: "prod_b", Quantity: 1, UnitPrice: 499},
		},
		TotalItems:  99,
		TotalAmount: 99,
	}

	got := RecomputeTotals(cart)
	if got.TotalItems != 4 {
		t.Fatalf("expected 4 total items, got %d", got.TotalItems)
	}
	if got.TotalAmount != 3*1200+499 {
		t.Fatalf("expected total amount %d, got %d", 3*1200+499, got.TotalAmount)
	}
}

func TestRecomputeTotalsEmptyCart(t *testing.T) {
	got := RecomputeTotals(Cart{Owner: "sess_1", TotalItems: 5, TotalAmount: 100})
	if got.TotalItems != 0 || got.TotalAmount != 0 {
		t.Fatalf("expected zero totals, got items=%d amount=%d", got.TotalItems, got.TotalAmount)
	}
}

func TestCheckoutPricingShipping(t *testing.T) {
	pricing := CheckoutPricing{FreeShippingThreshold: 50000, FlatShippingFee: 990, TaxRateBasisPoints: 1000}

	if got := pricing.ShippingFor(50000); got != 0 {
		t.Fatalf("expected free shipping at threshold, got %d", got)
	}
	if got := pricing.ShippingFor(49999); got != 990 {
		t.Fatalf("expected flat fee below threshold, got %d", got)
	}
}

func TestCheckoutPricingTax(t *testing.T) {
	pricing := CheckoutPricing{TaxRateBasisPoints: 825}
	if got := pricing.TaxFor(10000); got != 825 {
		t.Fatalf("expected tax 825, got %d", got)
	}
	if got := (CheckoutPricing{}).TaxFor(10000); got != 0 {
		t.Fatalf("expected zero tax with zero rate, got %d", got)
	}
}

func TestProductFinalPrice(t *testing.T) {
	cases := []struct {
		name    string
		product Product
		want    int64
	}{
		{"no discount", Product{Price: 1000}, 1000},
		{"percentage discount", Product{Price: 1000, DiscountPct: 25}, 750},
		{"full discount clamps to zero", Product{Price: 1000, DiscountPct: 150}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.product.FinalPrice(); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
