package pricing

import (
	"errors"
	"fmt"

	"price-dashboard/internal/models"
)

// ItemOptimum is the grid search result of one product.
type ItemOptimum struct {
	Product     string     `json:"product"`
	BuyingPrice float64    `json:"buying_price"`
	CostDerived bool       `json:"cost_derived"`
	Optimum     PricePoint `json:"optimum"`
}

// ComboOptimum totals the per-item optima of a combo.
type ComboOptimum struct {
	Name          string        `json:"name"`
	SellID        int           `json:"sell_id"`
	Items         []ItemOptimum `json:"items"`
	TotalPrice    float64       `json:"total_price"`
	TotalQuantity float64       `json:"total_quantity"`
	TotalProfit   float64       `json:"total_profit"`
	Skipped       []string      `json:"skipped,omitempty"`
}

// OptimizeProduct runs the grid search for one product of the dataset.
func OptimizeProduct(dataset *models.Dataset, key models.ProductKey, set ModelSet, costs CostBasis) (ItemOptimum, error) {
	rows := dataset.Product(key)
	current, err := CurrentPrice(rows)
	if err != nil {
		return ItemOptimum{}, fmt.Errorf("%s: %w", key, err)
	}
	model, ok := set[key]
	if !ok || model == nil {
		return ItemOptimum{}, fmt.Errorf("%s: %w", key, ErrMissingModel)
	}

	buyingPrice, derived := costs.For(key, current)
	point, err := FindOptimalPrice(rows, model, buyingPrice)
	if err != nil {
		return ItemOptimum{}, fmt.Errorf("%s: %w", key, err)
	}
	return ItemOptimum{
		Product:     key.String(),
		BuyingPrice: buyingPrice,
		CostDerived: derived,
		Optimum:     point,
	}, nil
}

// OptimizeCombo optimises every item of a combo independently and sums the
// results. Items that cannot be optimised are skipped; the combo fails only
// when no item succeeds.
func OptimizeCombo(dataset *models.Dataset, combo models.Combo, set ModelSet, costs CostBasis) (ComboOptimum, error) {
	out := ComboOptimum{Name: combo.Name(), SellID: combo.SellID}

	var errs []error
	for _, key := range combo.Keys() {
		item, err := OptimizeProduct(dataset, key, set, costs)
		if err != nil {
			errs = append(errs, err)
			out.Skipped = append(out.Skipped, key.String())
			continue
		}
		out.Items = append(out.Items, item)
		out.TotalPrice += item.Optimum.Price
		out.TotalQuantity += item.Optimum.Quantity
		out.TotalProfit += item.Optimum.Profit
	}

	if len(out.Items) == 0 {
		return out, fmt.Errorf("combo %d: %w", combo.SellID, errors.Join(errs...))
	}
	return out, nil
}
