package pricing

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"price-dashboard/internal/models"
)

// Fit is an ordinary least squares fit of quantity on price.
type Fit struct {
	Model        LinearModel `json:"model"`
	RSquared     float64     `json:"r_squared"`
	Observations int         `json:"observations"`
	FittedAt     time.Time   `json:"fitted_at"`
}

// FitLinearModel regresses quantity on price over rows.
func FitLinearModel(rows []models.Observation) (Fit, error) {
	if len(rows) == 0 {
		return Fit{}, fmt.Errorf("fit linear model: %w", ErrDataUnavailable)
	}
	if n := distinctPrices(rows); n < 2 {
		return Fit{}, fmt.Errorf("fit linear model: %w: %d distinct price(s)", ErrInsufficientVariation, n)
	}

	prices, quantities := columns(rows)
	alpha, beta := stat.LinearRegression(prices, quantities, nil, false)

	return Fit{
		Model:        LinearModel{Intercept: alpha, Slope: beta},
		RSquared:     stat.RSquared(prices, quantities, nil, alpha, beta),
		Observations: len(rows),
		FittedAt:     time.Now().UTC(),
	}, nil
}

type DemandClass string

const (
	DemandElastic   DemandClass = "elastic"
	DemandInelastic DemandClass = "inelastic"
)

// Classify applies the unit elasticity cut: e <= -1 is elastic.
func Classify(elasticity float64) DemandClass {
	if elasticity <= -1 {
		return DemandElastic
	}
	return DemandInelastic
}

// Elasticity is a point elasticity evaluated at the sample means.
type Elasticity struct {
	Coefficient  float64     `json:"coefficient"`
	Intercept    float64     `json:"intercept"`
	MeanPrice    float64     `json:"mean_price"`
	MeanQuantity float64     `json:"mean_quantity"`
	Value        float64     `json:"value"`
	Class        DemandClass `json:"class"`
}

// EstimateElasticity fits quantity ~ price and scales the slope by
// mean(price)/mean(quantity). It does not use the product's demand model.
func EstimateElasticity(rows []models.Observation) (Elasticity, error) {
	fit, err := FitLinearModel(rows)
	if err != nil {
		return Elasticity{}, fmt.Errorf("estimate elasticity: %w", err)
	}

	prices, quantities := columns(rows)
	meanP := stat.Mean(prices, nil)
	meanQ := stat.Mean(quantities, nil)
	if meanQ == 0 {
		return Elasticity{}, fmt.Errorf("estimate elasticity: %w: mean quantity is zero", ErrInsufficientVariation)
	}

	value := fit.Model.Slope * meanP / meanQ
	return Elasticity{
		Coefficient:  fit.Model.Slope,
		Intercept:    fit.Model.Intercept,
		MeanPrice:    meanP,
		MeanQuantity: meanQ,
		Value:        value,
		Class:        Classify(value),
	}, nil
}
