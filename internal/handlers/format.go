package handlers

import (
	"github.com/shopspring/decimal"

	"price-dashboard/internal/pricing"
	"price-dashboard/internal/services"
)

// money rounds a monetary or quantity value to two decimal places for
// presentation. Engine values stay unrounded.
func money(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func moneyString(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func roundPoint(p pricing.PricePoint) pricing.PricePoint {
	return pricing.PricePoint{Price: money(p.Price), Quantity: money(p.Quantity), Profit: money(p.Profit)}
}

func roundItem(item pricing.ItemOptimum) pricing.ItemOptimum {
	item.BuyingPrice = money(item.BuyingPrice)
	item.Optimum = roundPoint(item.Optimum)
	return item
}

func roundCombo(c pricing.ComboOptimum) pricing.ComboOptimum {
	items := make([]pricing.ItemOptimum, len(c.Items))
	for i, item := range c.Items {
		items[i] = roundItem(item)
	}
	c.Items = items
	c.TotalPrice = money(c.TotalPrice)
	c.TotalQuantity = money(c.TotalQuantity)
	c.TotalProfit = money(c.TotalProfit)
	return c
}

func roundTable(t services.OptimalPriceTable) services.OptimalPriceTable {
	out := services.OptimalPriceTable{
		Singles: make([]services.ProductOptimum, len(t.Singles)),
		Combos:  make([]services.ComboOptimum, len(t.Combos)),
	}
	for i, s := range t.Singles {
		s.ItemOptimum = roundItem(s.ItemOptimum)
		out.Singles[i] = s
	}
	for i, c := range t.Combos {
		c.ComboOptimum = roundCombo(c.ComboOptimum)
		out.Combos[i] = c
	}
	return out
}

func roundDiscount(d pricing.DiscountResult) pricing.DiscountResult {
	d.CurrentPrice = money(d.CurrentPrice)
	d.DiscountedPrice = money(d.DiscountedPrice)
	d.Quantity = money(d.Quantity)
	d.Profit = money(d.Profit)
	d.BuyingPrice = money(d.BuyingPrice)
	return d
}

func roundDiscounts(curve []pricing.DiscountResult) []pricing.DiscountResult {
	out := make([]pricing.DiscountResult, len(curve))
	for i, d := range curve {
		out[i] = roundDiscount(d)
	}
	return out
}

func roundRecommendations(recs []pricing.Recommendation) []pricing.Recommendation {
	out := make([]pricing.Recommendation, len(recs))
	for i, r := range recs {
		if !r.Failed() {
			r.CurrentPrice = money(r.CurrentPrice)
			r.OptimalPrice = money(r.OptimalPrice)
			r.Change = money(r.Change)
			r.BuyingPrice = money(r.BuyingPrice)
			r.Elasticity = decimal.NewFromFloat(r.Elasticity).Round(4).InexactFloat64()
		}
		out[i] = r
	}
	return out
}
