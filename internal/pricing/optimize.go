package pricing

import (
	"fmt"
	"math"

	"price-dashboard/internal/models"
)

const (
	// The search window is anchored to the lowest observed price so the model
	// is never evaluated far outside the range it was fitted on.
	gridBelowMin = 1.0
	gridAboveMin = 10.0
	gridStep     = 0.01
)

var gridPoints = int(math.Round((gridBelowMin + gridAboveMin) / gridStep))

// PricePoint is a candidate price with its predicted quantity and profit.
type PricePoint struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Profit   float64 `json:"profit"`
}

// PriceGrid returns the candidate prices [minPrice-1, minPrice+10) at a 0.01 step.
func PriceGrid(minPrice float64) []float64 {
	start := minPrice - gridBelowMin
	grid := make([]float64, gridPoints)
	for i := range grid {
		grid[i] = start + float64(i)*gridStep
	}
	return grid
}

// FindOptimalPrice scans the price grid around the lowest observed price and
// returns the point with the highest profit. Ties resolve to the lowest price.
func FindOptimalPrice(rows []models.Observation, model DemandModel, buyingPrice float64) (PricePoint, error) {
	if len(rows) == 0 {
		return PricePoint{}, fmt.Errorf("find optimal price: %w", ErrDataUnavailable)
	}

	grid := PriceGrid(minPrice(rows))
	quantities, err := predict(model, grid)
	if err != nil {
		return PricePoint{}, fmt.Errorf("find optimal price: %w", err)
	}

	best := PricePoint{Profit: math.Inf(-1)}
	for i, price := range grid {
		profit := (price - buyingPrice) * quantities[i]
		if profit > best.Profit {
			best = PricePoint{Price: price, Quantity: quantities[i], Profit: profit}
		}
	}
	return best, nil
}
