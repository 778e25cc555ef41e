package pricing

import (
	"fmt"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"

	"price-dashboard/internal/models"
)

// FactorGroup summarises the quantity distribution of one day type.
type FactorGroup struct {
	Factor string  `json:"factor"`
	Value  string  `json:"value"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// DayTypeFactors groups quantities by holiday label, weekend and school
// break. Groups without rows are omitted.
func DayTypeFactors(rows []models.Observation) ([]FactorGroup, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("day type factors: %w", ErrDataUnavailable)
	}

	var holidays []string
	byHoliday := make(map[string][]float64)
	weekend := map[bool][]float64{}
	school := map[bool][]float64{}
	for _, r := range rows {
		if _, ok := byHoliday[r.Holiday]; !ok {
			holidays = append(holidays, r.Holiday)
		}
		byHoliday[r.Holiday] = append(byHoliday[r.Holiday], r.Quantity)
		weekend[r.IsWeekend] = append(weekend[r.IsWeekend], r.Quantity)
		school[r.IsSchoolBreak] = append(school[r.IsSchoolBreak], r.Quantity)
	}

	var groups []FactorGroup
	for _, h := range holidays {
		groups = append(groups, summarize("holiday", h, byHoliday[h]))
	}
	for _, flag := range []bool{false, true} {
		if q := weekend[flag]; len(q) > 0 {
			groups = append(groups, summarize("weekend", yesNo(flag), q))
		}
	}
	for _, flag := range []bool{false, true} {
		if q := school[flag]; len(q) > 0 {
			groups = append(groups, summarize("schoolbreak", yesNo(flag), q))
		}
	}
	return groups, nil
}

func summarize(factor, value string, quantities []float64) FactorGroup {
	sorted := slices.Clone(quantities)
	sort.Float64s(sorted)
	return FactorGroup{
		Factor: factor,
		Value:  value,
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Min:    sorted[0],
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
