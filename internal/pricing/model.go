package pricing

import (
	"fmt"
	"math"

	"price-dashboard/internal/models"
)

// DemandModel predicts the quantity sold at each price, one prediction per
// input price and in the same order. Implementations must be deterministic
// and safe for concurrent use.
type DemandModel interface {
	Predict(prices []float64) ([]float64, error)
}

// ModelSet maps products to their fitted demand models.
type ModelSet map[models.ProductKey]DemandModel

// ModelFunc adapts a plain function to DemandModel.
type ModelFunc func(prices []float64) ([]float64, error)

func (f ModelFunc) Predict(prices []float64) ([]float64, error) {
	return f(prices)
}

// LinearModel is quantity = Intercept + Slope*price.
type LinearModel struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
}

func (m LinearModel) Predict(prices []float64) ([]float64, error) {
	out := make([]float64, len(prices))
	for i, p := range prices {
		out[i] = m.Intercept + m.Slope*p
	}
	return out, nil
}

func predict(model DemandModel, prices []float64) ([]float64, error) {
	if model == nil {
		return nil, ErrMissingModel
	}
	quantities, err := model.Predict(prices)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelPrediction, err)
	}
	if len(quantities) != len(prices) {
		return nil, fmt.Errorf("%w: got %d predictions for %d prices", ErrModelPrediction, len(quantities), len(prices))
	}
	for i, q := range quantities {
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return nil, fmt.Errorf("%w: non-finite quantity at price %.2f", ErrModelPrediction, prices[i])
		}
	}
	return quantities, nil
}

func predictOne(model DemandModel, price float64) (float64, error) {
	quantities, err := predict(model, []float64{price})
	if err != nil {
		return 0, err
	}
	return quantities[0], nil
}
