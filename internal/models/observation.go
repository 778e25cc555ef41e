package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NoHoliday is the holiday label of ordinary calendar days.
const NoHoliday = "No Holiday"

// Observation is one (product, sell channel, date) row of the joined history.
type Observation struct {
	SellID        int       `json:"sell_id" msgpack:"sell_id"`
	SellCategory  string    `json:"sell_category" msgpack:"sell_category"`
	ItemName      string    `json:"item_name" msgpack:"item_name"`
	CalendarDate  time.Time `json:"calendar_date" msgpack:"calendar_date"`
	Price         float64   `json:"price" msgpack:"price"`
	Quantity      float64   `json:"quantity" msgpack:"quantity"`
	Holiday       string    `json:"holiday" msgpack:"holiday"`
	IsWeekend     bool      `json:"is_weekend" msgpack:"is_weekend"`
	IsSchoolBreak bool      `json:"is_schoolbreak" msgpack:"is_schoolbreak"`
	IsOutdoor     bool      `json:"is_outdoor" msgpack:"is_outdoor"`
}

func (o Observation) Key() ProductKey {
	return NewProductKey(o.ItemName, o.SellID)
}

// IsBusinessAsUsual reports whether the row belongs to the baseline demand
// regime: no holiday, no school break, a weekday and an outdoor day.
func (o Observation) IsBusinessAsUsual() bool {
	return o.Holiday == NoHoliday && !o.IsSchoolBreak && !o.IsWeekend && o.IsOutdoor
}

// ProductKey identifies a product within a sell channel. A sell channel that
// groups several items is a combo.
type ProductKey struct {
	ItemName string
	SellID   int
}

func NewProductKey(itemName string, sellID int) ProductKey {
	return ProductKey{ItemName: strings.ToUpper(strings.TrimSpace(itemName)), SellID: sellID}
}

// ParseProductKey parses the "{item}_{sell_id}" form, e.g. "burger_1070".
func ParseProductKey(s string) (ProductKey, error) {
	idx := strings.LastIndex(s, "_")
	if idx <= 0 || idx == len(s)-1 {
		return ProductKey{}, fmt.Errorf("invalid product key %q", s)
	}
	sellID, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return ProductKey{}, fmt.Errorf("invalid sell id in product key %q: %w", s, err)
	}
	return NewProductKey(s[:idx], sellID), nil
}

func (k ProductKey) String() string {
	return fmt.Sprintf("%s_%d", strings.ToLower(k.ItemName), k.SellID)
}

func (k ProductKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ProductKey) UnmarshalText(text []byte) error {
	parsed, err := ParseProductKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Combo is a sell channel shared by more than one item.
type Combo struct {
	SellID   int      `json:"sell_id"`
	Category string   `json:"sell_category"`
	Items    []string `json:"items"`
}

func (c Combo) Keys() []ProductKey {
	keys := make([]ProductKey, len(c.Items))
	for i, item := range c.Items {
		keys[i] = NewProductKey(item, c.SellID)
	}
	return keys
}

func (c Combo) Name() string {
	return fmt.Sprintf("Combo %d: %s", c.SellID, strings.Join(c.Items, ", "))
}

// Catalog splits the sell channels of a dataset into single products and combos.
type Catalog struct {
	Singles []ProductKey `json:"singles"`
	Combos  []Combo      `json:"combos"`
}

// Source selects which view of the history a request reads.
type Source string

const (
	SourceAll Source = "all"
	SourceBAU Source = "bau"
)

func ParseSource(s string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SourceAll):
		return SourceAll, nil
	case string(SourceBAU):
		return SourceBAU, nil
	default:
		return "", fmt.Errorf("unknown data source %q, must be one of: all, bau", s)
	}
}
