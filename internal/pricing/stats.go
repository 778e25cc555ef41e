package pricing

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"price-dashboard/internal/models"
)

func columns(rows []models.Observation) (prices, quantities []float64) {
	prices = make([]float64, len(rows))
	quantities = make([]float64, len(rows))
	for i, r := range rows {
		prices[i] = r.Price
		quantities[i] = r.Quantity
	}
	return prices, quantities
}

func minPrice(rows []models.Observation) float64 {
	prices, _ := columns(rows)
	return floats.Min(prices)
}

func meanPrice(rows []models.Observation) float64 {
	prices, _ := columns(rows)
	return stat.Mean(prices, nil)
}

// CurrentPrice is the mean observed price of the rows.
func CurrentPrice(rows []models.Observation) (float64, error) {
	if len(rows) == 0 {
		return 0, ErrDataUnavailable
	}
	return meanPrice(rows), nil
}

func distinctPrices(rows []models.Observation) int {
	seen := make(map[float64]struct{}, len(rows))
	for _, r := range rows {
		seen[r.Price] = struct{}{}
	}
	return len(seen)
}
