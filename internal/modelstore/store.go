// Package modelstore persists fitted demand models in SQLite.
package modelstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"price-dashboard/internal/models"
	"price-dashboard/internal/pricing"
)

// Record is one stored linear demand model.
type Record struct {
	Product      models.ProductKey `json:"product"`
	Intercept    float64           `json:"intercept"`
	Slope        float64           `json:"slope"`
	RSquared     float64           `json:"r_squared"`
	Observations int               `json:"observations"`
	Source       models.Source     `json:"source"`
	FittedAt     time.Time         `json:"fitted_at"`
}

func RecordFromFit(key models.ProductKey, fit pricing.Fit, source models.Source) Record {
	return Record{
		Product:      key,
		Intercept:    fit.Model.Intercept,
		Slope:        fit.Model.Slope,
		RSquared:     fit.RSquared,
		Observations: fit.Observations,
		Source:       source,
		FittedAt:     fit.FittedAt,
	}
}

func (r Record) Model() pricing.LinearModel {
	return pricing.LinearModel{Intercept: r.Intercept, Slope: r.Slope}
}

// Store wraps a SQLite database connection.
type Store struct {
	sql    *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping model store: %w", err)
	}

	s := &Store{sql: db, logger: logger.With("component", "modelstore")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate model store: %w", err)
	}
	s.logger.Info("model store opened", "path", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.sql.Close()
}

func (s *Store) migrate() error {
	version := 0
	// schema_version does not exist on a fresh database
	_ = s.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := s.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS demand_models (
				product_key  TEXT PRIMARY KEY,
				item_name    TEXT NOT NULL,
				sell_id      INTEGER NOT NULL,
				intercept    REAL NOT NULL,
				slope        REAL NOT NULL,
				r_squared    REAL NOT NULL DEFAULT 0,
				observations INTEGER NOT NULL DEFAULT 0,
				fitted_at    TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_demand_models_sell ON demand_models(sell_id);

			INSERT OR IGNORE INTO schema_version (version) VALUES (1);
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		s.logger.Info("applied migration", "version", 1)
	}

	if version < 2 {
		_, err := s.sql.Exec(`
			ALTER TABLE demand_models ADD COLUMN source TEXT NOT NULL DEFAULT 'all';

			INSERT OR IGNORE INTO schema_version (version) VALUES (2);
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		s.logger.Info("applied migration", "version", 2, "change", "model source column")
	}

	return nil
}

const upsertModel = `
	INSERT INTO demand_models
		(product_key, item_name, sell_id, intercept, slope, r_squared, observations, source, fitted_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(product_key) DO UPDATE SET
		intercept    = excluded.intercept,
		slope        = excluded.slope,
		r_squared    = excluded.r_squared,
		observations = excluded.observations,
		source       = excluded.source,
		fitted_at    = excluded.fitted_at`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveRecord(ctx context.Context, db execer, r Record) error {
	if r.Source == "" {
		r.Source = models.SourceAll
	}
	if r.FittedAt.IsZero() {
		r.FittedAt = time.Now()
	}
	_, err := db.ExecContext(ctx, upsertModel,
		r.Product.String(), r.Product.ItemName, r.Product.SellID,
		r.Intercept, r.Slope, r.RSquared, r.Observations,
		string(r.Source), r.FittedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save model %s: %w", r.Product, err)
	}
	return nil
}

// Save inserts or replaces the model of r.Product.
func (s *Store) Save(ctx context.Context, r Record) error {
	return saveRecord(ctx, s.sql, r)
}

// SaveAll stores records in one transaction.
func (s *Store) SaveAll(ctx context.Context, records []Record) error {
	tx, err := s.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		if err := saveRecord(ctx, tx, r); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const selectModels = `
	SELECT item_name, sell_id, intercept, slope, r_squared, observations, source, fitted_at
	FROM demand_models`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r        Record
		item     string
		sellID   int
		source   string
		fittedAt string
	)
	if err := row.Scan(&item, &sellID, &r.Intercept, &r.Slope, &r.RSquared, &r.Observations, &source, &fittedAt); err != nil {
		return Record{}, err
	}
	r.Product = models.NewProductKey(item, sellID)
	r.Source = models.Source(source)
	if t, err := time.Parse(time.RFC3339, fittedAt); err == nil {
		r.FittedAt = t
	}
	return r, nil
}

// Get returns the model of key, or an error wrapping pricing.ErrMissingModel.
func (s *Store) Get(ctx context.Context, key models.ProductKey) (Record, error) {
	row := s.sql.QueryRowContext(ctx, selectModels+" WHERE product_key = ?", key.String())
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s: %w", key, pricing.ErrMissingModel)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get model %s: %w", key, err)
	}
	return r, nil
}

// List returns every stored model ordered by sell id then item.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	rows, err := s.sql.QueryContext(ctx, selectModels+" ORDER BY sell_id, item_name")
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan model: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, key models.ProductKey) error {
	res, err := s.sql.ExecContext(ctx, "DELETE FROM demand_models WHERE product_key = ?", key.String())
	if err != nil {
		return fmt.Errorf("delete model %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", key, pricing.ErrMissingModel)
	}
	return nil
}

// ModelSet loads every stored model for the pricing engine.
func (s *Store) ModelSet(ctx context.Context) (pricing.ModelSet, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	set := make(pricing.ModelSet, len(records))
	for _, r := range records {
		set[r.Product] = r.Model()
	}
	return set, nil
}
