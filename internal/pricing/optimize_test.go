package pricing

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"price-dashboard/internal/models"
)

func productRows(item string, sellID int, prices, quantities []float64) []models.Observation {
	rows := make([]models.Observation, len(prices))
	for i := range prices {
		rows[i] = models.Observation{
			SellID:       sellID,
			ItemName:     item,
			CalendarDate: time.Date(2012, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Price:        prices[i],
			Quantity:     quantities[i],
			Holiday:      models.NoHoliday,
			IsOutdoor:    true,
		}
	}
	return rows
}

// burgerRows is perfectly linear: quantity = 280 - 20*price.
func burgerRows() []models.Observation {
	return productRows("BURGER", 1070, []float64{8, 9, 10}, []float64{120, 100, 80})
}

var burgerModel = LinearModel{Intercept: 280, Slope: -20}

func TestPriceGrid(t *testing.T) {
	grid := PriceGrid(8)

	require.Len(t, grid, 1100)
	assert.InDelta(t, 7.0, grid[0], 1e-9)
	assert.InDelta(t, 17.99, grid[len(grid)-1], 1e-9)
	for i := 1; i < len(grid); i++ {
		assert.Greater(t, grid[i], grid[i-1])
	}
}

func TestFindOptimalPrice_Example(t *testing.T) {
	point, err := FindOptimalPrice(burgerRows(), burgerModel, 5)

	require.NoError(t, err)
	assert.InDelta(t, 9.5, point.Price, 0.005)
	assert.InDelta(t, 90, point.Quantity, 0.2)
	assert.InDelta(t, 405, point.Profit, 0.01)
}

func TestFindOptimalPrice_LinearDemandMaximizer(t *testing.T) {
	tests := []struct {
		name        string
		a, b        float64
		buyingPrice float64
	}{
		{name: "example", a: 280, b: 20, buyingPrice: 5},
		{name: "shallow slope", a: 100, b: 4, buyingPrice: 2},
		{name: "zero cost", a: 400, b: 25, buyingPrice: 0},
		{name: "high cost", a: 500, b: 30, buyingPrice: 12.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := (tt.a/tt.b + tt.buyingPrice) / 2
			require.True(t, want >= 7 && want < 18, "maximizer %.2f must fall inside the scan window", want)

			model := LinearModel{Intercept: tt.a, Slope: -tt.b}
			point, err := FindOptimalPrice(burgerRows(), model, tt.buyingPrice)

			require.NoError(t, err)
			assert.InDelta(t, want, point.Price, gridStep)
			assert.InDelta(t, (point.Price-tt.buyingPrice)*(tt.a-tt.b*point.Price), point.Profit, 1e-6)
		})
	}
}

func TestFindOptimalPrice_BoundaryClamp(t *testing.T) {
	t.Run("maximizer above window", func(t *testing.T) {
		// (1000/10 + 5) / 2 = 52.5, far above the window [7, 18)
		point, err := FindOptimalPrice(burgerRows(), LinearModel{Intercept: 1000, Slope: -10}, 5)
		require.NoError(t, err)
		assert.InDelta(t, 17.99, point.Price, 1e-9)
	})

	t.Run("maximizer below window", func(t *testing.T) {
		// (100/20 + 0) / 2 = 2.5, below the window
		point, err := FindOptimalPrice(burgerRows(), LinearModel{Intercept: 100, Slope: -20}, 0)
		require.NoError(t, err)
		assert.InDelta(t, 7.0, point.Price, 1e-9)
	})
}

func TestFindOptimalPrice_TieBreaksToLowestPrice(t *testing.T) {
	flat := ModelFunc(func(prices []float64) ([]float64, error) {
		return make([]float64, len(prices)), nil
	})

	point, err := FindOptimalPrice(burgerRows(), flat, 5)

	require.NoError(t, err)
	assert.InDelta(t, 7.0, point.Price, 1e-9)
	assert.Zero(t, point.Profit)
}

func TestFindOptimalPrice_Errors(t *testing.T) {
	failing := ModelFunc(func([]float64) ([]float64, error) {
		return nil, errors.New("bad input shape")
	})
	short := ModelFunc(func(prices []float64) ([]float64, error) {
		return make([]float64, len(prices)-1), nil
	})
	nan := ModelFunc(func(prices []float64) ([]float64, error) {
		out := make([]float64, len(prices))
		out[500] = math.NaN()
		return out, nil
	})

	tests := []struct {
		name  string
		rows  []models.Observation
		model DemandModel
		want  error
	}{
		{name: "empty rows", rows: nil, model: burgerModel, want: ErrDataUnavailable},
		{name: "model error", rows: burgerRows(), model: failing, want: ErrModelPrediction},
		{name: "length mismatch", rows: burgerRows(), model: short, want: ErrModelPrediction},
		{name: "non-finite prediction", rows: burgerRows(), model: nan, want: ErrModelPrediction},
		{name: "nil model", rows: burgerRows(), model: nil, want: ErrMissingModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FindOptimalPrice(tt.rows, tt.model, 5)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFindOptimalPrice_KeepsModelErrorCause(t *testing.T) {
	cause := errors.New("bad input shape")
	failing := ModelFunc(func([]float64) ([]float64, error) { return nil, cause })

	_, err := FindOptimalPrice(burgerRows(), failing, 5)

	assert.ErrorIs(t, err, ErrModelPrediction)
	assert.ErrorIs(t, err, cause)
}
