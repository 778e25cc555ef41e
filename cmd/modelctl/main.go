// Command modelctl fits demand models from the sales history and manages the
// model store read by the web server.
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"price-dashboard/internal/config"
	"price-dashboard/internal/modelstore"
	"price-dashboard/internal/models"
	"price-dashboard/internal/observability"
	"price-dashboard/internal/pricing"
	"price-dashboard/internal/services"
)

const usage = `usage: modelctl <command> [flags]

commands:
  fit [-source all|bau] [-db path]   fit a linear demand model per product
  import [-db path] <file.json>      store models from a JSON array of records
  list [-db path]                    print stored models
  delete [-db path] <product_key>    remove one model
`

var errUsage = stderrors.New("invalid usage")

type app struct {
	cfg    *config.Config
	out    io.Writer
	logger *slog.Logger
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, out: os.Stdout, logger: logger}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if stderrors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		logger.Error("modelctl failed", "error", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	cmd, args := args[0], args[1:]
	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	dbPath := fs.String("db", a.cfg.Models.DBPath, "model store path")
	source := fs.String("source", string(models.SourceBAU), "history used for fitting: all or bau")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	switch cmd {
	case "fit", "list":
		if fs.NArg() != 0 {
			return errUsage
		}
	case "import", "delete":
		if fs.NArg() != 1 {
			return errUsage
		}
	default:
		return errUsage
	}

	store, err := modelstore.Open(*dbPath, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	switch cmd {
	case "fit":
		src, err := models.ParseSource(*source)
		if err != nil {
			return err
		}
		return a.fit(ctx, store, src)
	case "import":
		return a.importFile(ctx, store, fs.Arg(0))
	case "list":
		return a.list(ctx, store)
	default:
		key, err := models.ParseProductKey(fs.Arg(0))
		if err != nil {
			return err
		}
		if err := store.Delete(ctx, key); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "deleted %s\n", key)
		return nil
	}
}

// fit regresses quantity on price for every product of the selected history.
// Products without enough price variation are reported and skipped.
func (a *app) fit(ctx context.Context, store *modelstore.Store, source models.Source) error {
	loader := services.NewLoader(a.cfg.Data.CacheDir, a.logger)
	rows, stats, err := loader.Load(ctx, services.Sources{
		SellMeta:     a.cfg.Data.SellMetaFile,
		Transactions: a.cfg.Data.TransactionsFile,
		DateInfo:     a.cfg.Data.DateInfoFile,
	})
	if err != nil {
		return err
	}
	dataset := models.NewDataset(rows).View(source)
	a.logger.Info("history loaded", "rows", stats.Rows, "source", source, "selected", dataset.Len())

	var records []modelstore.Record
	for _, key := range dataset.ProductKeys() {
		fit, err := pricing.FitLinearModel(dataset.Product(key))
		if err != nil {
			a.logger.Warn("skipping product", "product", key.String(), "error", err)
			fmt.Fprintf(a.out, "skip %s: %v\n", key, err)
			continue
		}
		records = append(records, modelstore.RecordFromFit(key, fit, source))
	}
	if len(records) == 0 {
		return fmt.Errorf("fit: no product could be fitted from %d rows: %w", dataset.Len(), pricing.ErrInsufficientVariation)
	}

	if err := store.SaveAll(ctx, records); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "fitted %d models from %s history\n", len(records), source)
	return nil
}

func (a *app) importFile(ctx context.Context, store *modelstore.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var records []modelstore.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	now := time.Now().UTC()
	for i := range records {
		if records[i].Product.ItemName == "" {
			return fmt.Errorf("record %d: product is required", i)
		}
		if records[i].Source == "" {
			records[i].Source = models.SourceAll
		}
		if records[i].FittedAt.IsZero() {
			records[i].FittedAt = now
		}
	}

	if err := store.SaveAll(ctx, records); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "imported %d models\n", len(records))
	return nil
}

func (a *app) list(ctx context.Context, store *modelstore.Store) error {
	records, err := store.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tINTERCEPT\tSLOPE\tR2\tN\tSOURCE\tFITTED")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t%.3f\t%d\t%s\t%s\n",
			r.Product, r.Intercept, r.Slope, r.RSquared, r.Observations, r.Source, r.FittedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
