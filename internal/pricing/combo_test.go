package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-dashboard/internal/models"
)

func TestOptimizeProduct(t *testing.T) {
	item, err := OptimizeProduct(singlesDataset(), burger1070, singlesModels(), UniformCost(5))

	require.NoError(t, err)
	assert.Equal(t, "burger_1070", item.Product)
	assert.InDelta(t, 9.5, item.Optimum.Price, 0.005)
	assert.Equal(t, 5.0, item.BuyingPrice)
}

func TestOptimizeProduct_Errors(t *testing.T) {
	_, err := OptimizeProduct(singlesDataset(), tea9999, singlesModels(), UniformCost(5))
	assert.ErrorIs(t, err, ErrDataUnavailable)

	_, err = OptimizeProduct(singlesDataset(), burger1070, ModelSet{}, UniformCost(5))
	assert.ErrorIs(t, err, ErrMissingModel)
}

func TestOptimizeCombo(t *testing.T) {
	dataset := comboDataset()
	combo := dataset.Catalog().Combos[0]
	set := ModelSet{
		burger2051: LinearModel{Intercept: 100, Slope: -5},
		coke2051:   LinearModel{Intercept: 60, Slope: -2},
	}

	result, err := OptimizeCombo(dataset, combo, set, UniformCost(5))

	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, "Combo 2051: BURGER, COKE", result.Name)

	var price, quantity, profit float64
	for _, item := range result.Items {
		price += item.Optimum.Price
		quantity += item.Optimum.Quantity
		profit += item.Optimum.Profit
	}
	assert.InDelta(t, price, result.TotalPrice, 1e-9)
	assert.InDelta(t, quantity, result.TotalQuantity, 1e-9)
	assert.InDelta(t, profit, result.TotalProfit, 1e-9)
	// burger: (100/5 + 5) / 2 = 12.5; coke: (60/2 + 5) / 2 = 17.5
	assert.InDelta(t, 30.0, result.TotalPrice, 0.01)
}

func TestOptimizeCombo_PartialAndFailed(t *testing.T) {
	dataset := comboDataset()
	combo := dataset.Catalog().Combos[0]

	partial, err := OptimizeCombo(dataset, combo, ModelSet{burger2051: LinearModel{Intercept: 100, Slope: -5}}, UniformCost(5))
	require.NoError(t, err)
	assert.Len(t, partial.Items, 1)
	assert.Equal(t, []string{"coke_2051"}, partial.Skipped)

	_, err = OptimizeCombo(dataset, combo, ModelSet{}, UniformCost(5))
	assert.ErrorIs(t, err, ErrMissingModel)
}

func TestBuildPriceCurve(t *testing.T) {
	curve, err := BuildPriceCurve(burgerRows(), burgerModel)

	require.NoError(t, err)
	assert.Len(t, curve.Observed, 3)
	assert.Len(t, curve.Predicted, 1100)
	assert.Equal(t, CurvePoint{Price: 8, Quantity: 120}, curve.Observed[0])
	assert.InDelta(t, 7.0, curve.Predicted[0].Price, 1e-9)
	assert.InDelta(t, 140.0, curve.Predicted[0].Quantity, 1e-9)
}

func TestBuildPriceCurve_Errors(t *testing.T) {
	_, err := BuildPriceCurve(nil, burgerModel)
	assert.ErrorIs(t, err, ErrDataUnavailable)

	_, err = BuildPriceCurve(burgerRows(), nil)
	assert.ErrorIs(t, err, ErrMissingModel)
}

func TestDayTypeFactors(t *testing.T) {
	rows := productRows("BURGER", 1070, []float64{9, 9, 9, 9, 9}, []float64{10, 20, 30, 40, 100})
	rows[4].Holiday = "New Year"
	rows[3].IsWeekend = true
	rows[4].IsWeekend = true
	rows[0].IsSchoolBreak = true

	groups, err := DayTypeFactors(rows)
	require.NoError(t, err)

	byName := make(map[string]FactorGroup)
	for _, g := range groups {
		byName[g.Factor+"="+g.Value] = g
	}
	require.Len(t, groups, 6)

	noHoliday := byName["holiday="+models.NoHoliday]
	assert.Equal(t, 4, noHoliday.Count)
	assert.InDelta(t, 25, noHoliday.Mean, 1e-9)
	assert.Equal(t, 10.0, noHoliday.Min)
	assert.Equal(t, 40.0, noHoliday.Max)
	assert.Equal(t, 20.0, noHoliday.Median)

	assert.Equal(t, 1, byName["holiday=New Year"].Count)
	assert.Equal(t, 2, byName["weekend=yes"].Count)
	assert.InDelta(t, 70, byName["weekend=yes"].Mean, 1e-9)
	assert.Equal(t, 3, byName["weekend=no"].Count)
	assert.Equal(t, 1, byName["schoolbreak=yes"].Count)
	assert.Equal(t, 4, byName["schoolbreak=no"].Count)

	assert.Equal(t, "holiday", groups[0].Factor)
	assert.Equal(t, models.NoHoliday, groups[0].Value)
}

func TestDayTypeFactors_Empty(t *testing.T) {
	_, err := DayTypeFactors(nil)
	assert.ErrorIs(t, err, ErrDataUnavailable)
}
