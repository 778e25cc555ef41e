package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"price-dashboard/internal/errors"
	"price-dashboard/internal/models"
	"price-dashboard/internal/pricing"
	"price-dashboard/internal/services"
)

const maxTableRows = 100

var fragmentFuncs = template.FuncMap{
	"money": moneyString,
	"ratio": func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) },
	"join":  strings.Join,
}

var recommendationsTemplate = template.Must(template.New("recommendations").Funcs(fragmentFuncs).Parse(`
<div id="recommendations-content">
<table class="modern-table">
<thead><tr><th>Product</th><th>Current</th><th>Optimal</th><th>Change</th><th>Elasticity</th><th>Demand</th><th>Cost</th></tr></thead>
<tbody>
{{range $i, $r := .Rows}}{{if lt $i $.MaxRows}}{{if $r.Error}}<tr class="failed">
<td>{{$r.Product}}</td>
<td colspan="6" class="error">{{$r.Error}}</td>
</tr>{{else}}<tr>
<td>{{if $r.Combo}}<span class="combo-badge">combo</span> {{join $r.Items ", "}} ({{$r.SellID}}){{else}}{{$r.Product}}{{end}}</td>
<td>{{money $r.CurrentPrice}}</td>
<td><strong>{{money $r.OptimalPrice}}</strong></td>
<td class="direction-{{$r.Direction}}">{{$r.Direction}} {{money $r.Change}}</td>
<td>{{ratio $r.Elasticity}}</td>
<td>{{$r.Demand}}</td>
<td>{{money $r.BuyingPrice}}{{if $r.CostDerived}} <span class="derived">derived</span>{{end}}</td>
</tr>{{end}}{{end}}{{end}}
</tbody>
</table>
</div>`))

var optimalTemplate = template.Must(template.New("optimal").Funcs(fragmentFuncs).Parse(`
<div id="optimal-content">
<h3>Single products</h3>
<table class="modern-table">
<thead><tr><th>Product</th><th>Optimal price</th><th>Quantity</th><th>Profit</th><th>Cost</th></tr></thead>
<tbody>
{{range .Singles}}{{if .Error}}<tr class="failed"><td>{{.Product}}</td><td colspan="4" class="error">{{.Error}}</td></tr>
{{else}}<tr>
<td>{{.Product}}</td>
<td><strong>{{money .Optimum.Price}}</strong></td>
<td>{{money .Optimum.Quantity}}</td>
<td>{{money .Optimum.Profit}}</td>
<td>{{money .BuyingPrice}}</td>
</tr>{{end}}{{end}}
</tbody>
</table>
<h3>Combos</h3>
<table class="modern-table">
<thead><tr><th>Combo</th><th>Total price</th><th>Total quantity</th><th>Total profit</th><th>Skipped</th></tr></thead>
<tbody>
{{range .Combos}}{{if .Error}}<tr class="failed"><td>{{.Name}}</td><td colspan="4" class="error">{{.Error}}</td></tr>
{{else}}<tr>
<td>{{.Name}}</td>
<td><strong>{{money .TotalPrice}}</strong></td>
<td>{{money .TotalQuantity}}</td>
<td>{{money .TotalProfit}}</td>
<td>{{join .Skipped ", "}}</td>
</tr>{{end}}{{end}}
</tbody>
</table>
</div>`))

var discountTemplate = template.Must(template.New("discount").Funcs(fragmentFuncs).Parse(`
<div id="discount-content">
<dl class="discount-summary">
<dt>Product</dt><dd>{{.Product}}</dd>
<dt>Current price</dt><dd>{{money .Result.CurrentPrice}}</dd>
<dt>Discounted price ({{.Result.DiscountPercent}}%)</dt><dd><strong>{{money .Result.DiscountedPrice}}</strong></dd>
<dt>Predicted quantity</dt><dd>{{money .Result.Quantity}}</dd>
<dt>Predicted profit</dt><dd>{{money .Result.Profit}}</dd>
<dt>Buying price</dt><dd>{{money .Result.BuyingPrice}}{{if .Result.CostDerived}} <span class="derived">derived</span>{{end}}</dd>
</dl>
</div>`))

var errorTemplate = template.Must(template.New("error").Parse(`<div id="{{.ID}}" class="error-banner">{{.Message}}</div>`))

// dashboardSignals mirrors the datastar signal store of the dashboard.
type dashboardSignals struct {
	Source      string   `json:"source"`
	Holiday     string   `json:"holiday"`
	Weekend     string   `json:"weekend"`
	SchoolBreak string   `json:"schoolbreak"`
	BuyingPrice *float64 `json:"buyingPrice"`
	Product     string   `json:"product"`
	Discount    float64  `json:"discount"`
}

func (s dashboardSignals) values() url.Values {
	v := url.Values{}
	for name, value := range map[string]string{
		"source":      s.Source,
		"holiday":     s.Holiday,
		"weekend":     s.Weekend,
		"schoolbreak": s.SchoolBreak,
	} {
		if value != "" {
			v.Set(name, value)
		}
	}
	if s.BuyingPrice != nil {
		v.Set("buying_price", strconv.FormatFloat(*s.BuyingPrice, 'f', -1, 64))
	}
	return v
}

type SSEHandlers struct {
	pricing *services.Pricing
	logger  *slog.Logger
}

func NewSSEHandlers(pricing *services.Pricing, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{
		pricing: pricing,
		logger:  logger,
	}
}

type tableData struct {
	Rows    []pricing.Recommendation
	MaxRows int
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder
	err := tmpl.Execute(&buf, data)
	return buf.String(), err
}

func (h *SSEHandlers) renderRecommendations(recs []pricing.Recommendation) (string, error) {
	return render(recommendationsTemplate, tableData{Rows: recs, MaxRows: maxTableRows})
}

// readSignals decodes the signal store and resolves it to a query and a
// cost basis.
func (h *SSEHandlers) readSignals(r *http.Request) (dashboardSignals, services.Query, pricing.CostBasis, error) {
	var signals dashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		return signals, services.Query{}, pricing.CostBasis{}, errors.BadRequestWrap(err, "Invalid signals")
	}
	values := signals.values()
	q, err := parseQuery(values)
	if err != nil {
		return signals, services.Query{}, pricing.CostBasis{}, err
	}
	costs, err := parseCosts(values, pricing.CostBasis{})
	if err != nil {
		return signals, services.Query{}, pricing.CostBasis{}, err
	}
	return signals, q, costs, nil
}

func (h *SSEHandlers) patchError(sse *datastar.ServerSentEventGenerator, target string, err error) {
	appErr := errors.FromPricing(err)
	h.logger.Warn("sse request failed", "target", target, "code", appErr.Code, "error", err)

	message := appErr.Message
	if appErr.Details != "" {
		message += ": " + appErr.Details
	}
	html, renderErr := render(errorTemplate, map[string]string{"ID": target, "Message": message})
	if renderErr != nil {
		h.logger.Error("render error fragment", "error", renderErr)
		return
	}
	sse.PatchElements(html)
}

func (h *SSEHandlers) patchSignals(sse *datastar.ServerSentEventGenerator, signals map[string]any) {
	data, err := json.Marshal(signals)
	if err != nil {
		h.logger.Error("marshal signals", "error", err)
		return
	}
	sse.PatchSignals(data)
}

func (h *SSEHandlers) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	_, q, costs, err := h.readSignals(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(sse, "recommendations-content", err)
		return
	}
	h.sendRecommendations(sse, r, q, costs)
}

func (h *SSEHandlers) sendRecommendations(sse *datastar.ServerSentEventGenerator, r *http.Request, q services.Query, costs pricing.CostBasis) {
	recs, err := h.pricing.Recommendations(r.Context(), q, costs)
	if err != nil {
		h.patchError(sse, "recommendations-content", err)
		return
	}
	recs = roundRecommendations(recs)

	html, err := h.renderRecommendations(recs)
	if err != nil {
		h.logger.Error("render recommendations", "error", err)
		return
	}
	sse.PatchElements(html)

	failed := 0
	for _, rec := range recs {
		if rec.Failed() {
			failed++
		}
	}
	h.patchSignals(sse, map[string]any{
		"recommendationCount": len(recs),
		"failedCount":         failed,
	})
}

func (h *SSEHandlers) HandleOptimalPrices(w http.ResponseWriter, r *http.Request) {
	_, q, costs, err := h.readSignals(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(sse, "optimal-content", err)
		return
	}
	h.sendOptimalPrices(sse, r, q, costs)
}

func (h *SSEHandlers) sendOptimalPrices(sse *datastar.ServerSentEventGenerator, r *http.Request, q services.Query, costs pricing.CostBasis) {
	table, err := h.pricing.OptimalPrices(r.Context(), q, costs)
	if err != nil {
		h.patchError(sse, "optimal-content", err)
		return
	}

	html, err := render(optimalTemplate, roundTable(table))
	if err != nil {
		h.logger.Error("render optimal prices", "error", err)
		return
	}
	sse.PatchElements(html)
}

func (h *SSEHandlers) HandleDiscount(w http.ResponseWriter, r *http.Request) {
	signals, q, costs, err := h.readSignals(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(sse, "discount-content", err)
		return
	}

	key, err := models.ParseProductKey(signals.Product)
	if err != nil {
		h.patchError(sse, "discount-content", errors.BadRequestWrap(err, "Select a product"))
		return
	}
	if costs.Uniform == nil {
		bp := h.pricing.DefaultBuyingPrice()
		costs.Uniform = &bp
	}

	result, err := h.pricing.AnalyzeDiscount(q, key, signals.Discount, costs)
	if err != nil {
		h.patchError(sse, "discount-content", err)
		return
	}
	curve, err := h.pricing.DiscountCurve(q, key, costs)
	if err != nil {
		h.patchError(sse, "discount-content", err)
		return
	}

	html, err := render(discountTemplate, map[string]any{"Product": key.String(), "Result": roundDiscount(result)})
	if err != nil {
		h.logger.Error("render discount", "error", err)
		return
	}
	sse.PatchElements(html)
	h.patchSignals(sse, map[string]any{"discountCurve": roundDiscounts(curve)})
}

// HandleProductCharts sends the price curve and day type factors of one
// product as chart signals.
func (h *SSEHandlers) HandleProductCharts(w http.ResponseWriter, r *http.Request) {
	_, q, _, err := h.readSignals(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(sse, "charts-content", err)
		return
	}

	key, err := parseKey(r)
	if err != nil {
		h.patchError(sse, "charts-content", err)
		return
	}

	curve, err := h.pricing.PriceCurve(q, key)
	if err != nil {
		h.patchError(sse, "charts-content", err)
		return
	}
	factors, err := h.pricing.Factors(q, key)
	if err != nil {
		h.patchError(sse, "charts-content", err)
		return
	}

	h.patchSignals(sse, map[string]any{
		"priceCurve": curve,
		"factors":    factors,
	})
	sse.PatchElements(`<div id="charts-content">Charts loaded for ` + template.HTMLEscapeString(key.String()) + `</div>`)
}

func (h *SSEHandlers) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	_, q, costs, err := h.readSignals(r)
	sse := datastar.NewSSE(w, r)
	if err != nil {
		h.patchError(sse, "recommendations-content", err)
		return
	}

	h.sendOptimalPrices(sse, r, q, costs)
	h.sendRecommendations(sse, r, q, costs)

	catalog := h.pricing.Catalog()
	h.patchSignals(sse, map[string]any{
		"stats":    h.pricing.Stats(),
		"holidays": catalog.Holidays,
		"products": slices.Concat(catalog.Modeled, catalog.Unmodeled),
	})
}
