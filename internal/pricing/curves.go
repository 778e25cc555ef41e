package pricing

import (
	"fmt"

	"price-dashboard/internal/models"
)

type CurvePoint struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// PriceCurve holds the observed price/quantity pairs and the model line over
// the same window the grid search scans.
type PriceCurve struct {
	Observed  []CurvePoint `json:"observed"`
	Predicted []CurvePoint `json:"predicted"`
}

func BuildPriceCurve(rows []models.Observation, model DemandModel) (PriceCurve, error) {
	if len(rows) == 0 {
		return PriceCurve{}, fmt.Errorf("price curve: %w", ErrDataUnavailable)
	}

	grid := PriceGrid(minPrice(rows))
	quantities, err := predict(model, grid)
	if err != nil {
		return PriceCurve{}, fmt.Errorf("price curve: %w", err)
	}

	curve := PriceCurve{
		Observed:  make([]CurvePoint, len(rows)),
		Predicted: make([]CurvePoint, len(grid)),
	}
	for i, r := range rows {
		curve.Observed[i] = CurvePoint{Price: r.Price, Quantity: r.Quantity}
	}
	for i, p := range grid {
		curve.Predicted[i] = CurvePoint{Price: p, Quantity: quantities[i]}
	}
	return curve, nil
}
