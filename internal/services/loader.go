package services

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"price-dashboard/internal/models"
)

const (
	batchSize  = 5000
	maxWorkers = 8
)

var dateLayouts = []string{"1/2/06", "1/2/2006", "2006-01-02", "01-02-06"}

// Sources names the three input tables.
type Sources struct {
	SellMeta     string `json:"sell_meta"`
	Transactions string `json:"transactions"`
	DateInfo     string `json:"date_info"`
}

func (s Sources) paths() []string {
	return []string{s.SellMeta, s.Transactions, s.DateInfo}
}

func (s Sources) validate() error {
	for name, path := range map[string]string{
		"sell meta":    s.SellMeta,
		"transactions": s.Transactions,
		"date info":    s.DateInfo,
	} {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("%s file not configured", name)
		}
	}
	return nil
}

// LoadStats describes one load of the joined history.
type LoadStats struct {
	Rows      int           `json:"rows"`
	Skipped   int64         `json:"skipped"`
	FromCache bool          `json:"from_cache"`
	Duration  time.Duration `json:"duration"`
	LoadedAt  time.Time     `json:"loaded_at"`
}

// Loader reads and joins the sell meta, transaction and date info tables.
// CSV and XLSX inputs are accepted; columns are found by header name.
type Loader struct {
	cache  *datasetCache
	logger *slog.Logger
}

// NewLoader returns a loader caching joined rows under cacheDir. An empty
// cacheDir disables the cache.
func NewLoader(cacheDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger}
	if cacheDir != "" {
		l.cache = &datasetCache{dir: cacheDir}
	}
	return l
}

func (l *Loader) Load(ctx context.Context, src Sources) ([]models.Observation, LoadStats, error) {
	if err := src.validate(); err != nil {
		return nil, LoadStats{}, err
	}
	start := time.Now()

	if l.cache != nil {
		if entry, err := l.cache.load(src); err == nil {
			stats := LoadStats{
				Rows:      len(entry.Rows),
				Skipped:   entry.Skipped,
				FromCache: true,
				Duration:  time.Since(start),
				LoadedAt:  time.Now(),
			}
			l.logger.Info("loaded dataset from cache", "rows", stats.Rows)
			return entry.Rows, stats, nil
		} else if !errors.Is(err, errCacheMiss) {
			l.logger.Warn("dataset cache unreadable", "error", err)
		}
	}

	rows, skipped, err := l.join(ctx, src)
	if err != nil {
		return nil, LoadStats{}, err
	}

	if l.cache != nil {
		if err := l.cache.save(src, cacheEntry{Rows: rows, Skipped: skipped}); err != nil {
			l.logger.Warn("failed to save dataset cache", "error", err)
		}
	}

	stats := LoadStats{
		Rows:     len(rows),
		Skipped:  skipped,
		Duration: time.Since(start),
		LoadedAt: time.Now(),
	}
	l.logger.Info("dataset joined",
		"rows", stats.Rows,
		"skipped", stats.Skipped,
		"duration", stats.Duration,
	)
	return rows, stats, nil
}

func (l *Loader) join(ctx context.Context, src Sources) ([]models.Observation, int64, error) {
	var (
		meta    map[int]sellMeta
		days    map[time.Time]dayInfo
		txs     []transaction
		skipped atomic.Int64
		readers errgroup.Group
	)

	readers.Go(func() error {
		t, err := readTable(src.SellMeta)
		if err != nil {
			return err
		}
		meta, err = parseSellMeta(t)
		return err
	})
	readers.Go(func() error {
		t, err := readTable(src.DateInfo)
		if err != nil {
			return err
		}
		days, err = parseDateInfo(t, &skipped)
		return err
	})
	readers.Go(func() error {
		t, err := readTable(src.Transactions)
		if err != nil {
			return err
		}
		txs, err = parseTransactions(ctx, t, &skipped)
		return err
	})
	if err := readers.Wait(); err != nil {
		return nil, 0, err
	}

	return joinTables(meta, txs, days), skipped.Load(), nil
}

type sellMeta struct {
	category string
	items    []string
}

type transaction struct {
	date     time.Time
	price    float64
	quantity float64
	sellID   int
}

type dayInfo struct {
	holiday     string
	weekend     bool
	schoolBreak bool
	outdoor     bool
}

type groupKey struct {
	sellID   int
	category string
	item     string
	date     time.Time
	price    float64
}

// joinTables expands each transaction to every item of its sell channel,
// takes the category from the sell channel, sums quantity per (sell id, category, item, date, price) and keeps only
// dates present in the date info table.
func joinTables(meta map[int]sellMeta, txs []transaction, days map[time.Time]dayInfo) []models.Observation {
	sums := make(map[groupKey]float64)
	for _, tx := range txs {
		m, ok := meta[tx.sellID]
		if !ok {
			continue
		}
		for _, item := range m.items {
			sums[groupKey{
				sellID:   tx.sellID,
				category: m.category,
				item:     item,
				date:     tx.date,
				price:    tx.price,
			}] += tx.quantity
		}
	}

	rows := make([]models.Observation, 0, len(sums))
	for k, qty := range sums {
		day, ok := days[k.date]
		if !ok {
			continue
		}
		rows = append(rows, models.Observation{
			SellID:        k.sellID,
			SellCategory:  k.category,
			ItemName:      k.item,
			CalendarDate:  k.date,
			Price:         k.price,
			Quantity:      qty,
			Holiday:       day.holiday,
			IsWeekend:     day.weekend,
			IsSchoolBreak: day.schoolBreak,
			IsOutdoor:     day.outdoor,
		})
	}

	slices.SortFunc(rows, func(a, b models.Observation) int {
		return cmp.Or(
			cmp.Compare(a.SellID, b.SellID),
			cmp.Compare(a.SellCategory, b.SellCategory),
			cmp.Compare(a.ItemName, b.ItemName),
			a.CalendarDate.Compare(b.CalendarDate),
			cmp.Compare(a.Price, b.Price),
		)
	})
	return rows
}

func parseSellMeta(t *table) (map[int]sellMeta, error) {
	if err := t.require("SELL_ID", "SELL_CATEGORY", "ITEM_NAME"); err != nil {
		return nil, err
	}

	meta := make(map[int]sellMeta)
	for _, rec := range t.rows {
		sellID, err := strconv.Atoi(t.get(rec, "SELL_ID"))
		if err != nil {
			return nil, fmt.Errorf("%s: parse sell id: %w", t.name, err)
		}
		item := strings.ToUpper(t.get(rec, "ITEM_NAME"))
		if item == "" {
			continue
		}
		m := meta[sellID]
		if m.category == "" {
			m.category = t.get(rec, "SELL_CATEGORY")
		}
		if !slices.Contains(m.items, item) {
			m.items = append(m.items, item)
		}
		meta[sellID] = m
	}
	if len(meta) == 0 {
		return nil, fmt.Errorf("%s: no sell channels", t.name)
	}
	return meta, nil
}

func parseDateInfo(t *table, skipped *atomic.Int64) (map[time.Time]dayInfo, error) {
	if err := t.require("CALENDAR_DATE", "HOLIDAY", "IS_WEEKEND", "IS_SCHOOLBREAK"); err != nil {
		return nil, err
	}

	days := make(map[time.Time]dayInfo, len(t.rows))
	for _, rec := range t.rows {
		date, err := parseDate(t.get(rec, "CALENDAR_DATE"))
		if err != nil {
			skipped.Add(1)
			continue
		}
		holiday := t.get(rec, "HOLIDAY")
		if holiday == "" {
			holiday = models.NoHoliday
		}
		outdoor := true
		if t.has("IS_OUTDOOR") {
			outdoor = parseFlag(t.get(rec, "IS_OUTDOOR"))
		}
		days[date] = dayInfo{
			holiday:     holiday,
			weekend:     parseFlag(t.get(rec, "IS_WEEKEND")),
			schoolBreak: parseFlag(t.get(rec, "IS_SCHOOLBREAK")),
			outdoor:     outdoor,
		}
	}
	return days, nil
}

// parseTransactions parses transaction records in fixed size batches on a
// bounded pool. Malformed records are counted in skipped and dropped.
func parseTransactions(ctx context.Context, t *table, skipped *atomic.Int64) ([]transaction, error) {
	if err := t.require("CALENDAR_DATE", "PRICE", "QUANTITY", "SELL_ID"); err != nil {
		return nil, err
	}

	batches := make([][]transaction, (len(t.rows)+batchSize-1)/batchSize)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for i := range batches {
		lo := i * batchSize
		hi := min(lo+batchSize, len(t.rows))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out := make([]transaction, 0, hi-lo)
			for _, rec := range t.rows[lo:hi] {
				tx, err := parseTransaction(t, rec)
				if err != nil {
					skipped.Add(1)
					continue
				}
				out = append(out, tx)
			}
			batches[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slices.Concat(batches...), nil
}

func parseTransaction(t *table, rec []string) (transaction, error) {
	date, err := parseDate(t.get(rec, "CALENDAR_DATE"))
	if err != nil {
		return transaction{}, err
	}
	price, err := strconv.ParseFloat(t.get(rec, "PRICE"), 64)
	if err != nil {
		return transaction{}, err
	}
	quantity, err := strconv.ParseFloat(t.get(rec, "QUANTITY"), 64)
	if err != nil {
		return transaction{}, err
	}
	sellID, err := strconv.Atoi(t.get(rec, "SELL_ID"))
	if err != nil {
		return transaction{}, err
	}
	return transaction{
		date:     date,
		price:    price,
		quantity: quantity,
		sellID:   sellID,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "1.0", "true", "yes", "y":
		return true
	default:
		return false
	}
}

// table is a header-indexed record set.
type table struct {
	name string
	cols map[string]int
	rows [][]string
}

func newTable(name string, records [][]string) (*table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", name)
	}
	t := &table{name: name, cols: make(map[string]int), rows: records[1:]}
	for i, h := range records[0] {
		h = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if h != "" {
			t.cols[h] = i
		}
	}
	return t, nil
}

func (t *table) has(col string) bool {
	_, ok := t.cols[col]
	return ok
}

func (t *table) require(cols ...string) error {
	var missing []string
	for _, c := range cols {
		if !t.has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing columns %s", t.name, strings.Join(missing, ", "))
	}
	return nil
}

func (t *table) get(rec []string, col string) string {
	i, ok := t.cols[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func readTable(path string) (*table, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readXLSX(path)
	default:
		records, err = readCSV(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return newTable(filepath.Base(path), records)
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decodeCSV(f)
}

func decodeCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, errors.New("workbook has no sheets")
	}
	return f.GetRows(sheet)
}
