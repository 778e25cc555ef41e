package handlers

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"price-dashboard/internal/errors"
	"price-dashboard/internal/models"
	"price-dashboard/internal/pricing"
	"price-dashboard/internal/services"
)

// parseQuery reads the history selection shared by all pricing routes:
// source=all|bau, holiday=<label>, weekend=yes|no, schoolbreak=yes|no.
func parseQuery(values url.Values) (services.Query, error) {
	source, err := models.ParseSource(values.Get("source"))
	if err != nil {
		return services.Query{}, errors.BadRequestWrap(err, err.Error())
	}

	q := services.Query{Source: source}
	q.Filter.Holiday = strings.TrimSpace(values.Get("holiday"))
	if q.Filter.Weekend, err = parseYesNo(values, "weekend"); err != nil {
		return services.Query{}, err
	}
	if q.Filter.SchoolBreak, err = parseYesNo(values, "schoolbreak"); err != nil {
		return services.Query{}, err
	}
	return q, nil
}

func parseYesNo(values url.Values, name string) (*bool, error) {
	v := strings.ToLower(strings.TrimSpace(values.Get(name)))
	switch v {
	case "":
		return nil, nil
	case "yes", "true", "1":
		b := true
		return &b, nil
	case "no", "false", "0":
		b := false
		return &b, nil
	default:
		return nil, errors.BadRequest(fmt.Sprintf("%s must be yes or no", name))
	}
}

func parseKey(r *http.Request) (models.ProductKey, error) {
	key, err := models.ParseProductKey(r.PathValue("key"))
	if err != nil {
		return models.ProductKey{}, errors.BadRequestWrap(err, err.Error())
	}
	return key, nil
}

// parseFloat returns def when the parameter is absent.
func parseFloat(values url.Values, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.BadRequest(fmt.Sprintf("%s must be a number", name))
	}
	return v, nil
}

func requireFloat(values url.Values, name string) (float64, error) {
	if strings.TrimSpace(values.Get(name)) == "" {
		return 0, errors.BadRequest(fmt.Sprintf("%s is required", name))
	}
	return parseFloat(values, name, 0)
}

// parseCosts reads buying_price (uniform) and repeated cost=key:price
// entries. When neither is given the result is fallback; a fallback uniform
// price also covers products without a cost entry.
func parseCosts(values url.Values, fallback pricing.CostBasis) (pricing.CostBasis, error) {
	var costs pricing.CostBasis
	given := false

	if values.Has("buying_price") {
		bp, err := parseFloat(values, "buying_price", 0)
		if err != nil {
			return pricing.CostBasis{}, err
		}
		if bp < 0 {
			return pricing.CostBasis{}, errors.Validation("buying_price must not be negative")
		}
		costs.Uniform = &bp
		given = true
	}

	for _, entry := range values["cost"] {
		for _, pair := range strings.Split(entry, ",") {
			if strings.TrimSpace(pair) == "" {
				continue
			}
			keyPart, pricePart, ok := strings.Cut(pair, ":")
			if !ok {
				return pricing.CostBasis{}, errors.BadRequest(fmt.Sprintf("cost %q must be key:price", pair))
			}
			key, err := models.ParseProductKey(strings.TrimSpace(keyPart))
			if err != nil {
				return pricing.CostBasis{}, errors.ValidationWrap(err, err.Error())
			}
			price, err := strconv.ParseFloat(strings.TrimSpace(pricePart), 64)
			if err != nil || price < 0 {
				return pricing.CostBasis{}, errors.Validation(fmt.Sprintf("cost for %s must be a non-negative number", key))
			}
			if costs.PerProduct == nil {
				costs.PerProduct = make(map[models.ProductKey]float64)
			}
			costs.PerProduct[key] = price
			given = true
		}
	}

	if !given {
		return fallback, nil
	}
	if costs.Uniform == nil {
		costs.Uniform = fallback.Uniform
	}
	return costs, nil
}
