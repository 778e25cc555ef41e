package models

// Dataset is a read-only, ordered set of observations. The per-product index
// and the single/combo catalog are built once when the dataset is created.
type Dataset struct {
	rows     []Observation
	index    map[ProductKey][]int
	keys     []ProductKey
	catalog  Catalog
	holidays []string
}

func NewDataset(rows []Observation) *Dataset {
	d := &Dataset{
		rows:  rows,
		index: make(map[ProductKey][]int),
	}

	sellItems := make(map[int][]string)
	sellCategory := make(map[int]string)
	var sellOrder []int
	seenHoliday := make(map[string]bool)

	for i, row := range rows {
		key := row.Key()
		if _, ok := d.index[key]; !ok {
			d.keys = append(d.keys, key)
			if _, seen := sellItems[key.SellID]; !seen {
				sellOrder = append(sellOrder, key.SellID)
				sellCategory[key.SellID] = row.SellCategory
			}
			sellItems[key.SellID] = append(sellItems[key.SellID], key.ItemName)
		}
		d.index[key] = append(d.index[key], i)

		if !seenHoliday[row.Holiday] {
			seenHoliday[row.Holiday] = true
			d.holidays = append(d.holidays, row.Holiday)
		}
	}

	for _, sellID := range sellOrder {
		items := sellItems[sellID]
		if len(items) == 1 {
			d.catalog.Singles = append(d.catalog.Singles, NewProductKey(items[0], sellID))
			continue
		}
		d.catalog.Combos = append(d.catalog.Combos, Combo{
			SellID:   sellID,
			Category: sellCategory[sellID],
			Items:    items,
		})
	}

	return d
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.rows)
}

// Rows returns the underlying observations. Callers must not modify them.
func (d *Dataset) Rows() []Observation {
	if d == nil {
		return nil
	}
	return d.rows
}

// Product returns the rows of one product in dataset order.
func (d *Dataset) Product(key ProductKey) []Observation {
	if d == nil {
		return nil
	}
	idx := d.index[key]
	out := make([]Observation, len(idx))
	for i, j := range idx {
		out[i] = d.rows[j]
	}
	return out
}

func (d *Dataset) Has(key ProductKey) bool {
	if d == nil {
		return false
	}
	_, ok := d.index[key]
	return ok
}

// ProductKeys returns the distinct product keys in first-appearance order.
func (d *Dataset) ProductKeys() []ProductKey {
	if d == nil {
		return nil
	}
	return d.keys
}

func (d *Dataset) Catalog() Catalog {
	if d == nil {
		return Catalog{}
	}
	return d.catalog
}

// Holidays returns the distinct holiday labels in first-appearance order.
func (d *Dataset) Holidays() []string {
	if d == nil {
		return nil
	}
	return d.holidays
}

// Filter returns a new dataset holding the rows accepted by f.
func (d *Dataset) Filter(f DayFilter) *Dataset {
	if f.IsZero() {
		return d
	}
	return d.where(f.Match)
}

// BusinessAsUsual returns the baseline subset, see Observation.IsBusinessAsUsual.
func (d *Dataset) BusinessAsUsual() *Dataset {
	return d.where(Observation.IsBusinessAsUsual)
}

// View resolves a source selection to the matching dataset.
func (d *Dataset) View(source Source) *Dataset {
	if source == SourceBAU {
		return d.BusinessAsUsual()
	}
	return d
}

func (d *Dataset) where(keep func(Observation) bool) *Dataset {
	var rows []Observation
	for _, row := range d.Rows() {
		if keep(row) {
			rows = append(rows, row)
		}
	}
	return NewDataset(rows)
}

// DayFilter narrows rows by day type. Empty or nil fields match everything.
type DayFilter struct {
	Holiday     string `json:"holiday,omitempty"`
	Weekend     *bool  `json:"weekend,omitempty"`
	SchoolBreak *bool  `json:"schoolbreak,omitempty"`
}

func (f DayFilter) IsZero() bool {
	return f.Holiday == "" && f.Weekend == nil && f.SchoolBreak == nil
}

func (f DayFilter) Match(o Observation) bool {
	if f.Holiday != "" && o.Holiday != f.Holiday {
		return false
	}
	if f.Weekend != nil && o.IsWeekend != *f.Weekend {
		return false
	}
	if f.SchoolBreak != nil && o.IsSchoolBreak != *f.SchoolBreak {
		return false
	}
	return true
}
