package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"price-dashboard/internal/models"
	"price-dashboard/internal/observability"
	"price-dashboard/internal/pricing"
)

// ModelSource supplies demand models on load and reload.
type ModelSource interface {
	ModelSet(ctx context.Context) (pricing.ModelSet, error)
}

type Options struct {
	Loader             *Loader
	Sources            Sources
	Models             ModelSource
	Workers            int
	DefaultBuyingPrice float64
	DerivedCostRatio   float64
	Logger             *slog.Logger
}

// Query selects the slice of history a request works on.
type Query struct {
	Source models.Source
	Filter models.DayFilter
}

// Pricing owns the loaded history and the model set. Readers get a
// consistent snapshot; Reload swaps both atomically.
type Pricing struct {
	mu        sync.RWMutex
	dataset   *models.Dataset
	models    pricing.ModelSet
	loadStats LoadStats

	loader      *Loader
	sources     Sources
	modelSource ModelSource
	recommender pricing.Recommender
	defaultCost float64
	costRatio   float64
	reloads     atomic.Int64
	logger      *slog.Logger
}

func NewPricing(opts Options) *Pricing {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ratio := opts.DerivedCostRatio
	if ratio <= 0 {
		ratio = pricing.DefaultDerivedCostRatio
	}
	return &Pricing{
		dataset:     models.NewDataset(nil),
		models:      pricing.ModelSet{},
		loader:      opts.Loader,
		sources:     opts.Sources,
		modelSource: opts.Models,
		recommender: pricing.Recommender{Workers: opts.Workers},
		defaultCost: opts.DefaultBuyingPrice,
		costRatio:   ratio,
		logger:      logger,
	}
}

// Load reads the history and the model set. Either source may be absent;
// a service without data answers every query with ErrDataUnavailable.
func (s *Pricing) Load(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "pricing.load")
	defer span.End(s.logger)

	var (
		rows  []models.Observation
		stats LoadStats
		set   pricing.ModelSet
	)

	if s.loader != nil {
		var err error
		rows, stats, err = s.loader.Load(ctx, s.sources)
		if err != nil {
			span.SetError(err)
			return fmt.Errorf("load dataset: %w", err)
		}
	}

	if s.modelSource != nil {
		var err error
		set, err = s.modelSource.ModelSet(ctx)
		if err != nil {
			span.SetError(err)
			return fmt.Errorf("load models: %w", err)
		}
	}

	dataset := models.NewDataset(rows)

	s.mu.Lock()
	if s.loader != nil {
		s.dataset = dataset
		s.loadStats = stats
	}
	if s.modelSource != nil {
		s.models = set
	}
	s.mu.Unlock()

	span.SetTag("rows", strconv.Itoa(dataset.Len()))
	span.SetTag("models", strconv.Itoa(len(set)))
	s.logger.Info("pricing data loaded",
		"rows", dataset.Len(),
		"products", len(dataset.ProductKeys()),
		"models", len(set),
	)
	return nil
}

// Reload re-reads data and models. On failure the previous state is kept.
func (s *Pricing) Reload(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		s.logger.Error("reload failed, keeping previous data", "error", err)
		return err
	}
	s.reloads.Add(1)
	return nil
}

func (s *Pricing) SetData(rows []models.Observation) {
	dataset := models.NewDataset(rows)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dataset = dataset
	s.loadStats = LoadStats{Rows: len(rows), LoadedAt: time.Now()}
}

func (s *Pricing) SetModels(set pricing.ModelSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = set
}

// DefaultBuyingPrice is the cost applied to single product views when the
// caller gives none.
func (s *Pricing) DefaultBuyingPrice() float64 {
	return s.defaultCost
}

func (s *Pricing) snapshot() (*models.Dataset, pricing.ModelSet) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset, s.models
}

func (s *Pricing) view(q Query) (*models.Dataset, pricing.ModelSet, error) {
	dataset, set := s.snapshot()
	if dataset.Len() == 0 {
		return nil, nil, fmt.Errorf("no dataset loaded: %w", pricing.ErrDataUnavailable)
	}
	dataset = dataset.View(q.Source)
	if !q.Filter.IsZero() {
		dataset = dataset.Filter(q.Filter)
	}
	return dataset, set, nil
}

func (s *Pricing) costs(c pricing.CostBasis) pricing.CostBasis {
	if c.DerivedRatio <= 0 {
		c.DerivedRatio = s.costRatio
	}
	return c
}

type ProductCatalog struct {
	models.Catalog
	Holidays  []string `json:"holidays"`
	Modeled   []string `json:"modeled"`
	Unmodeled []string `json:"unmodeled"`
}

// Catalog lists single products and combos of the full history along with
// model coverage.
func (s *Pricing) Catalog() ProductCatalog {
	dataset, set := s.snapshot()
	out := ProductCatalog{
		Catalog:   dataset.Catalog(),
		Holidays:  dataset.Holidays(),
		Modeled:   []string{},
		Unmodeled: []string{},
	}
	for _, key := range dataset.ProductKeys() {
		if set[key] != nil {
			out.Modeled = append(out.Modeled, key.String())
		} else {
			out.Unmodeled = append(out.Unmodeled, key.String())
		}
	}
	return out
}

// ProductOptimum is one row of the single product optimum table.
type ProductOptimum struct {
	pricing.ItemOptimum
	Error string `json:"error,omitempty"`
}

type ComboOptimum struct {
	pricing.ComboOptimum
	Error string `json:"error,omitempty"`
}

type OptimalPriceTable struct {
	Singles []ProductOptimum `json:"singles"`
	Combos  []ComboOptimum   `json:"combos"`
}

// OptimalPrices runs the grid search for every single product and combo.
// Failures are reported per row.
func (s *Pricing) OptimalPrices(ctx context.Context, q Query, costs pricing.CostBasis) (OptimalPriceTable, error) {
	dataset, set, err := s.view(q)
	if err != nil {
		return OptimalPriceTable{}, err
	}
	costs = s.costs(costs)
	catalog := dataset.Catalog()

	table := OptimalPriceTable{
		Singles: make([]ProductOptimum, 0, len(catalog.Singles)),
		Combos:  make([]ComboOptimum, 0, len(catalog.Combos)),
	}
	for _, key := range catalog.Singles {
		if err := ctx.Err(); err != nil {
			return OptimalPriceTable{}, err
		}
		item, err := pricing.OptimizeProduct(dataset, key, set, costs)
		row := ProductOptimum{ItemOptimum: item}
		if err != nil {
			row.Product = key.String()
			row.Error = err.Error()
		}
		table.Singles = append(table.Singles, row)
	}
	for _, combo := range catalog.Combos {
		if err := ctx.Err(); err != nil {
			return OptimalPriceTable{}, err
		}
		result, err := pricing.OptimizeCombo(dataset, combo, set, costs)
		row := ComboOptimum{ComboOptimum: result}
		if err != nil {
			row.Error = err.Error()
		}
		table.Combos = append(table.Combos, row)
	}
	return table, nil
}

func (s *Pricing) OptimalPrice(q Query, key models.ProductKey, costs pricing.CostBasis) (pricing.ItemOptimum, error) {
	dataset, set, err := s.view(q)
	if err != nil {
		return pricing.ItemOptimum{}, err
	}
	return pricing.OptimizeProduct(dataset, key, set, s.costs(costs))
}

type RevenueEstimate struct {
	Product  string  `json:"product"`
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// PredictRevenue needs only the model; the price may lie outside the
// observed range.
func (s *Pricing) PredictRevenue(key models.ProductKey, price float64) (RevenueEstimate, error) {
	_, set := s.snapshot()
	model, ok := set[key]
	if !ok {
		return RevenueEstimate{}, fmt.Errorf("%s: %w", key, pricing.ErrMissingModel)
	}
	revenue, quantity, err := pricing.PredictRevenue(model, price)
	if err != nil {
		return RevenueEstimate{}, fmt.Errorf("%s: %w", key, err)
	}
	return RevenueEstimate{Product: key.String(), Price: price, Quantity: quantity, Revenue: revenue}, nil
}

func (s *Pricing) product(q Query, key models.ProductKey) ([]models.Observation, pricing.DemandModel, error) {
	dataset, set, err := s.view(q)
	if err != nil {
		return nil, nil, err
	}
	rows := dataset.Product(key)
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", key, pricing.ErrDataUnavailable)
	}
	model, ok := set[key]
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", key, pricing.ErrMissingModel)
	}
	return rows, model, nil
}

// buyingPrice resolves the cost of key and reports whether it was derived
// from the current price.
func (s *Pricing) buyingPrice(rows []models.Observation, key models.ProductKey, costs pricing.CostBasis) (float64, bool, error) {
	current, err := pricing.CurrentPrice(rows)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", key, err)
	}
	bp, derived := s.costs(costs).For(key, current)
	return bp, derived, nil
}

func (s *Pricing) AnalyzeDiscount(q Query, key models.ProductKey, percent float64, costs pricing.CostBasis) (pricing.DiscountResult, error) {
	rows, model, err := s.product(q, key)
	if err != nil {
		return pricing.DiscountResult{}, err
	}
	bp, derived, err := s.buyingPrice(rows, key, costs)
	if err != nil {
		return pricing.DiscountResult{}, err
	}
	result, err := pricing.AnalyzeDiscount(rows, model, percent, bp)
	if err != nil {
		return pricing.DiscountResult{}, fmt.Errorf("%s: %w", key, err)
	}
	result.CostDerived = derived
	return result, nil
}

func (s *Pricing) DiscountCurve(q Query, key models.ProductKey, costs pricing.CostBasis) ([]pricing.DiscountResult, error) {
	rows, model, err := s.product(q, key)
	if err != nil {
		return nil, err
	}
	bp, derived, err := s.buyingPrice(rows, key, costs)
	if err != nil {
		return nil, err
	}
	curve, err := pricing.DiscountCurve(rows, model, bp, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	for i := range curve {
		curve[i].CostDerived = derived
	}
	return curve, nil
}

func (s *Pricing) PriceCurve(q Query, key models.ProductKey) (pricing.PriceCurve, error) {
	rows, model, err := s.product(q, key)
	if err != nil {
		return pricing.PriceCurve{}, err
	}
	curve, err := pricing.BuildPriceCurve(rows, model)
	if err != nil {
		return pricing.PriceCurve{}, fmt.Errorf("%s: %w", key, err)
	}
	return curve, nil
}

// Factors summarises quantity by day type. It reads history only.
func (s *Pricing) Factors(q Query, key models.ProductKey) ([]pricing.FactorGroup, error) {
	dataset, _, err := s.view(q)
	if err != nil {
		return nil, err
	}
	groups, err := pricing.DayTypeFactors(dataset.Product(key))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return groups, nil
}

func (s *Pricing) Elasticity(q Query, key models.ProductKey) (pricing.Elasticity, error) {
	dataset, _, err := s.view(q)
	if err != nil {
		return pricing.Elasticity{}, err
	}
	e, err := pricing.EstimateElasticity(dataset.Product(key))
	if err != nil {
		return pricing.Elasticity{}, fmt.Errorf("%s: %w", key, err)
	}
	return e, nil
}

// Recommendations builds the price adjustment table. Failed rows are logged
// at warn level and kept in the output.
func (s *Pricing) Recommendations(ctx context.Context, q Query, costs pricing.CostBasis) ([]pricing.Recommendation, error) {
	dataset, set, err := s.view(q)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "pricing.recommendations")
	defer span.End(s.logger)

	recs, err := s.recommender.Recommend(ctx, dataset, set, s.costs(costs))
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	failed := 0
	for _, r := range recs {
		if r.Failed() {
			failed++
			s.logger.Warn("recommendation failed", "product", r.Product, "error", r.Err())
		}
	}
	span.SetTag("records", strconv.Itoa(len(recs)))
	span.SetTag("failed", strconv.Itoa(failed))
	return recs, nil
}

type Stats struct {
	Rows         int       `json:"rows"`
	Products     int       `json:"products"`
	Singles      int       `json:"singles"`
	Combos       int       `json:"combos"`
	Models       int       `json:"models"`
	Skipped      int64     `json:"skipped_records"`
	FromCache    bool      `json:"from_cache"`
	LoadedAt     time.Time `json:"loaded_at"`
	LoadDuration string    `json:"load_duration"`
	Reloads      int64     `json:"reloads"`
	Holidays     []string  `json:"holidays"`
}

func (s *Pricing) Stats() Stats {
	s.mu.RLock()
	dataset, set, load := s.dataset, s.models, s.loadStats
	s.mu.RUnlock()

	catalog := dataset.Catalog()
	return Stats{
		Rows:         dataset.Len(),
		Products:     len(dataset.ProductKeys()),
		Singles:      len(catalog.Singles),
		Combos:       len(catalog.Combos),
		Models:       len(set),
		Skipped:      load.Skipped,
		FromCache:    load.FromCache,
		LoadedAt:     load.LoadedAt,
		LoadDuration: load.Duration.String(),
		Reloads:      s.reloads.Load(),
		Holidays:     slices.Clone(dataset.Holidays()),
	}
}

