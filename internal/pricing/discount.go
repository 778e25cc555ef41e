package pricing

import (
	"fmt"

	"price-dashboard/internal/models"
)

// DefaultDiscountSteps are the discount levels of the discount impact view.
var DefaultDiscountSteps = []float64{0, 5, 10, 15, 20, 25, 30, 35, 40, 45, 50}

// PredictRevenue evaluates the model at testPrice. Prices far outside the
// observed range extrapolate the model without warning.
func PredictRevenue(model DemandModel, testPrice float64) (revenue, quantity float64, err error) {
	quantity, err = predictOne(model, testPrice)
	if err != nil {
		return 0, 0, fmt.Errorf("predict revenue: %w", err)
	}
	return testPrice * quantity, quantity, nil
}

type DiscountResult struct {
	DiscountPercent float64 `json:"discount_percent"`
	CurrentPrice    float64 `json:"current_price"`
	DiscountedPrice float64 `json:"discounted_price"`
	Quantity        float64 `json:"quantity"`
	Profit          float64 `json:"profit"`
	BuyingPrice     float64 `json:"buying_price"`
	CostDerived     bool    `json:"cost_derived"`
}

// AnalyzeDiscount applies discountPercent to the mean observed price and
// predicts quantity and profit at the discounted price. The percentage is
// not clamped.
func AnalyzeDiscount(rows []models.Observation, model DemandModel, discountPercent, buyingPrice float64) (DiscountResult, error) {
	current, err := CurrentPrice(rows)
	if err != nil {
		return DiscountResult{}, fmt.Errorf("analyze discount: %w", err)
	}
	result, err := discountAt(model, current, discountPercent, buyingPrice)
	if err != nil {
		return DiscountResult{}, fmt.Errorf("analyze discount: %w", err)
	}
	return result, nil
}

// DiscountCurve runs the discount analysis for every percentage in percents.
func DiscountCurve(rows []models.Observation, model DemandModel, buyingPrice float64, percents []float64) ([]DiscountResult, error) {
	current, err := CurrentPrice(rows)
	if err != nil {
		return nil, fmt.Errorf("discount curve: %w", err)
	}
	if len(percents) == 0 {
		percents = DefaultDiscountSteps
	}

	curve := make([]DiscountResult, 0, len(percents))
	for _, pct := range percents {
		result, err := discountAt(model, current, pct, buyingPrice)
		if err != nil {
			return nil, fmt.Errorf("discount curve at %.0f%%: %w", pct, err)
		}
		curve = append(curve, result)
	}
	return curve, nil
}

func discountAt(model DemandModel, current, discountPercent, buyingPrice float64) (DiscountResult, error) {
	discounted := current * (1 - discountPercent/100)
	quantity, err := predictOne(model, discounted)
	if err != nil {
		return DiscountResult{}, err
	}
	return DiscountResult{
		DiscountPercent: discountPercent,
		CurrentPrice:    current,
		DiscountedPrice: discounted,
		Quantity:        quantity,
		Profit:          (discounted - buyingPrice) * quantity,
		BuyingPrice:     buyingPrice,
	}, nil
}
