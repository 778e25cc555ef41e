package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"price-dashboard/internal/models"
)

// DefaultDerivedCostRatio is the share of the current price used as buying
// price when a product has no explicit cost.
const DefaultDerivedCostRatio = 0.8

// CostBasis supplies buying prices. Per-product entries win over the uniform
// price; when neither is present the cost is derived from the current price
// and the result is flagged as derived.
type CostBasis struct {
	Uniform      *float64
	PerProduct   map[models.ProductKey]float64
	DerivedRatio float64
}

func UniformCost(buyingPrice float64) CostBasis {
	return CostBasis{Uniform: &buyingPrice}
}

func PerProductCost(prices map[models.ProductKey]float64) CostBasis {
	return CostBasis{PerProduct: prices}
}

// For returns the buying price of key and whether it was derived.
func (c CostBasis) For(key models.ProductKey, currentPrice float64) (float64, bool) {
	if p, ok := c.PerProduct[key]; ok {
		return p, false
	}
	if c.Uniform != nil {
		return *c.Uniform, false
	}
	ratio := c.DerivedRatio
	if ratio <= 0 {
		ratio = DefaultDerivedCostRatio
	}
	return currentPrice * ratio, true
}

type Direction string

const (
	DirectionIncrease Direction = "increase"
	DirectionDecrease Direction = "decrease"
	DirectionHold     Direction = "hold"
)

func directionOf(delta float64) Direction {
	switch {
	case delta > 0:
		return DirectionIncrease
	case delta < 0:
		return DirectionDecrease
	default:
		return DirectionHold
	}
}

// Recommendation is one row of the price adjustment table. A failed row
// carries Error and no prices.
type Recommendation struct {
	Product      string      `json:"product"`
	SellID       int         `json:"sell_id"`
	Combo        bool        `json:"combo"`
	Items        []string    `json:"items,omitempty"`
	CurrentPrice float64     `json:"current_price"`
	OptimalPrice float64     `json:"optimal_price"`
	Elasticity   float64     `json:"elasticity"`
	Demand       DemandClass `json:"demand,omitempty"`
	Direction    Direction   `json:"direction,omitempty"`
	Change       float64     `json:"change"`
	BuyingPrice  float64     `json:"buying_price"`
	CostDerived  bool        `json:"cost_derived"`
	Skipped      []string    `json:"skipped,omitempty"`
	Error        string      `json:"error,omitempty"`

	cause error
}

func (r Recommendation) Failed() bool {
	return r.cause != nil
}

// Err returns the failure cause, nil for a computed row.
func (r Recommendation) Err() error {
	return r.cause
}

func failedRecommendation(product string, sellID int, err error) Recommendation {
	return Recommendation{Product: product, SellID: sellID, Error: err.Error(), cause: err}
}

// Recommender builds price adjustment tables. Products are evaluated on a
// bounded worker pool; the output order does not depend on scheduling.
type Recommender struct {
	Workers int
}

// RecommendPriceAdjustments runs a Recommender with one worker per CPU.
func RecommendPriceAdjustments(ctx context.Context, dataset *models.Dataset, set ModelSet, costs CostBasis) ([]Recommendation, error) {
	return Recommender{}.Recommend(ctx, dataset, set, costs)
}

// Recommend returns one record per model key, ordered by first appearance in
// the dataset with unknown keys last, followed by one record per combo.
// Product failures become error records; only context cancellation is
// returned as an error.
func (r Recommender) Recommend(ctx context.Context, dataset *models.Dataset, set ModelSet, costs CostBasis) ([]Recommendation, error) {
	keys := orderedModelKeys(dataset, set)
	combos := dataset.Catalog().Combos

	pending := slices.Clone(keys)
	seen := make(map[models.ProductKey]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	for _, combo := range combos {
		for _, k := range combo.Keys() {
			if !seen[k] {
				seen[k] = true
				pending = append(pending, k)
			}
		}
	}

	evaluated, err := r.evaluateAll(ctx, dataset, set, costs, pending)
	if err != nil {
		return nil, err
	}

	out := make([]Recommendation, 0, len(keys)+len(combos))
	for _, k := range keys {
		out = append(out, evaluated[k].recommendation(k))
	}
	for _, combo := range combos {
		out = append(out, comboRecommendation(combo, evaluated))
	}
	return out, nil
}

func (r Recommender) evaluateAll(ctx context.Context, dataset *models.Dataset, set ModelSet, costs CostBasis, keys []models.ProductKey) (map[models.ProductKey]evaluation, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]evaluation, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = evaluateProduct(dataset.Product(key), set[key], key, costs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("recommend price adjustments: %w", err)
	}

	byKey := make(map[models.ProductKey]evaluation, len(keys))
	for i, key := range keys {
		byKey[key] = results[i]
	}
	return byKey, nil
}

// evaluation is the per-product input of a recommendation row.
type evaluation struct {
	current     float64
	optimal     PricePoint
	elasticity  Elasticity
	buyingPrice float64
	derived     bool
	err         error
}

func evaluateProduct(rows []models.Observation, model DemandModel, key models.ProductKey, costs CostBasis) evaluation {
	if len(rows) == 0 {
		return evaluation{err: fmt.Errorf("%s: %w: no historical rows", key, ErrDataUnavailable)}
	}
	if n := distinctPrices(rows); n < 2 {
		return evaluation{err: fmt.Errorf("%s: %w: %d distinct price(s)", key, ErrInsufficientVariation, n)}
	}
	if model == nil {
		return evaluation{err: fmt.Errorf("%s: %w", key, ErrMissingModel)}
	}

	current := meanPrice(rows)
	buyingPrice, derived := costs.For(key, current)

	optimal, err := FindOptimalPrice(rows, model, buyingPrice)
	if err != nil {
		return evaluation{err: fmt.Errorf("%s: %w", key, err)}
	}
	elasticity, err := EstimateElasticity(rows)
	if err != nil {
		return evaluation{err: fmt.Errorf("%s: %w", key, err)}
	}

	return evaluation{
		current:     current,
		optimal:     optimal,
		elasticity:  elasticity,
		buyingPrice: buyingPrice,
		derived:     derived,
	}
}

func (e evaluation) recommendation(key models.ProductKey) Recommendation {
	if e.err != nil {
		return failedRecommendation(key.String(), key.SellID, e.err)
	}
	delta := e.optimal.Price - e.current
	return Recommendation{
		Product:      key.String(),
		SellID:       key.SellID,
		Items:        []string{key.ItemName},
		CurrentPrice: e.current,
		OptimalPrice: e.optimal.Price,
		Elasticity:   e.elasticity.Value,
		Demand:       e.elasticity.Class,
		Direction:    directionOf(delta),
		Change:       math.Abs(delta),
		BuyingPrice:  e.buyingPrice,
		CostDerived:  e.derived,
	}
}

// comboRecommendation sums the constituents of a combo. Constituents that
// failed are listed in Skipped; the combo fails only when all of them did.
func comboRecommendation(combo models.Combo, evaluated map[models.ProductKey]evaluation) Recommendation {
	rec := Recommendation{
		Product: combo.Name(),
		SellID:  combo.SellID,
		Combo:   true,
		Items:   combo.Items,
	}

	var errs []error
	used := 0
	for _, key := range combo.Keys() {
		e := evaluated[key]
		if e.err != nil {
			errs = append(errs, e.err)
			rec.Skipped = append(rec.Skipped, key.String())
			continue
		}
		used++
		rec.CurrentPrice += e.current
		rec.OptimalPrice += e.optimal.Price
		rec.Elasticity += e.elasticity.Value
		rec.BuyingPrice += e.buyingPrice
		rec.CostDerived = rec.CostDerived || e.derived
	}

	if used == 0 {
		err := fmt.Errorf("combo %d: no usable items (%s): %w", combo.SellID, strings.Join(rec.Skipped, ", "), errors.Join(errs...))
		failed := failedRecommendation(rec.Product, combo.SellID, err)
		failed.Combo = true
		failed.Items = combo.Items
		failed.Skipped = rec.Skipped
		return failed
	}

	delta := rec.OptimalPrice - rec.CurrentPrice
	rec.Direction = directionOf(delta)
	rec.Change = math.Abs(delta)
	rec.Demand = Classify(rec.Elasticity)
	return rec
}

func orderedModelKeys(dataset *models.Dataset, set ModelSet) []models.ProductKey {
	keys := make([]models.ProductKey, 0, len(set))
	for _, k := range dataset.ProductKeys() {
		if _, ok := set[k]; ok {
			keys = append(keys, k)
		}
	}

	var missing []models.ProductKey
	for k := range set {
		if !dataset.Has(k) {
			missing = append(missing, k)
		}
	}
	slices.SortFunc(missing, func(a, b models.ProductKey) int {
		return strings.Compare(a.String(), b.String())
	})
	return append(keys, missing...)
}
