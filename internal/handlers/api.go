package handlers

import (
	"log/slog"
	"net/http"

	"price-dashboard/internal/errors"
	"price-dashboard/internal/observability"
	"price-dashboard/internal/pricing"
	"price-dashboard/internal/services"
)

const cacheShort = "private, max-age=60"

type APIHandlers struct {
	pricing *services.Pricing
	logger  *slog.Logger
}

func NewAPIHandlers(pricing *services.Pricing, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		pricing: pricing,
		logger:  logger,
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) ok(w http.ResponseWriter, data any) {
	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheShort})
}

// singleCosts falls back to the configured default buying price.
func (h *APIHandlers) singleCosts(r *http.Request) (pricing.CostBasis, error) {
	return parseCosts(r.URL.Query(), pricing.UniformCost(h.pricing.DefaultBuyingPrice()))
}

func (h *APIHandlers) HandleProducts(w http.ResponseWriter, r *http.Request) {
	h.ok(w, h.pricing.Catalog())
}

func (h *APIHandlers) HandleOptimalPrices(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	costs, err := parseCosts(r.URL.Query(), pricing.CostBasis{})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	table, err := h.pricing.OptimalPrices(r.Context(), q, costs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, roundTable(table))
}

func (h *APIHandlers) HandleProductOptimal(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	costs, err := h.singleCosts(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	item, err := h.pricing.OptimalPrice(q, key, costs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, roundItem(item))
}

func (h *APIHandlers) HandleRevenue(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	price, err := requireFloat(r.URL.Query(), "price")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	estimate, err := h.pricing.PredictRevenue(key, price)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	estimate.Quantity = money(estimate.Quantity)
	estimate.Revenue = money(estimate.Revenue)
	h.ok(w, estimate)
}

func (h *APIHandlers) HandleDiscount(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	percent, err := requireFloat(r.URL.Query(), "percent")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	costs, err := h.singleCosts(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	result, err := h.pricing.AnalyzeDiscount(q, key, percent, costs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, roundDiscount(result))
}

func (h *APIHandlers) HandleDiscountCurve(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	costs, err := h.singleCosts(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	curve, err := h.pricing.DiscountCurve(q, key, costs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, roundDiscounts(curve))
}

func (h *APIHandlers) HandlePriceCurve(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	curve, err := h.pricing.PriceCurve(q, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, curve)
}

func (h *APIHandlers) HandleFactors(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	groups, err := h.pricing.Factors(q, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, groups)
}

func (h *APIHandlers) HandleElasticity(w http.ResponseWriter, r *http.Request) {
	key, err := parseKey(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	e, err := h.pricing.Elasticity(q, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, e)
}

func (h *APIHandlers) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	costs, err := parseCosts(r.URL.Query(), pricing.CostBasis{})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	recs, err := h.pricing.Recommendations(r.Context(), q, costs)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, roundRecommendations(recs))
}
