// Command seed-db loads a catalog snapshot into PostgreSQL for desks using
// the postgres catalog source.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/storage/file"
	"github.com/xenking/salesdesk/internal/storage/postgres"
)

func main() {
	var (
		databaseURL string
		snapshot    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&snapshot, "snapshot", "db/seed/catalog.jsonl", "catalog snapshot to load")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, snapshot); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, snapshot string) error {
	products, err := file.NewProductRepository(snapshot).List(ctx)
	if err != nil {
		return errors.Wrap(err, "read snapshot")
	}
	if _, err := product.NewCatalog(products); err != nil {
		return err
	}

	slog.Info("connecting to database")
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	if err := postgres.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return err
	}

	slog.Info("products seeded", slog.Int("count", len(products)))
	return nil
}
