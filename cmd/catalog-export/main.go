// Command catalog-export writes the product catalog to a JSON lines snapshot
// that desks can sell from while the back office is unreachable.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/salesdesk/internal/backend"
	"github.com/xenking/salesdesk/internal/domain/product"
	"github.com/xenking/salesdesk/internal/session"
	"github.com/xenking/salesdesk/internal/storage/file"
	"github.com/xenking/salesdesk/internal/storage/postgres"
)

type options struct {
	source      string
	out         string
	backendURL  string
	sessionPath string
	databaseURL string
	timeout     time.Duration
}

func main() {
	_ = godotenv.Load()

	var opts options
	flag.StringVar(&opts.source, "from", "api", "catalog source: api or postgres")
	flag.StringVar(&opts.out, "out", "catalog.jsonl.gz", "snapshot path, gzip compressed when it ends in .gz")
	flag.StringVar(&opts.backendURL, "backend-url", os.Getenv("SALESDESK_BACKEND_URL"), "back-office base URL")
	flag.StringVar(&opts.sessionPath, "session", ".salesdesk/session.json", "session file shared with the desk")
	flag.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	flag.DurationVar(&opts.timeout, "timeout", time.Minute, "export timeout")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, opts.timeout)
	defer cancelTimeout()

	if err := run(ctx, opts); err != nil {
		slog.Error("catalog export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	repo, closeRepo, err := openSource(ctx, opts)
	if err != nil {
		return err
	}
	defer closeRepo()

	start := time.Now()
	products, err := repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	// Reject snapshots the desk would refuse to load.
	if _, err := product.NewCatalog(products); err != nil {
		return err
	}

	if err := file.WriteSnapshot(opts.out, products); err != nil {
		return errors.Wrap(err, "write snapshot")
	}

	active := 0
	for _, p := range products {
		if p.Active {
			active++
		}
	}
	slog.Info("catalog exported",
		slog.String("from", opts.source),
		slog.String("out", opts.out),
		slog.Int("products", len(products)),
		slog.Int("active", active),
		slog.Duration("took", time.Since(start)),
	)
	return nil
}

func openSource(ctx context.Context, opts options) (product.Repository, func(), error) {
	switch opts.source {
	case "api":
		if opts.backendURL == "" {
			return nil, nil, errors.New("back-office URL is required: set --backend-url or SALESDESK_BACKEND_URL")
		}
		client, err := backend.New(opts.backendURL, backend.Options{})
		if err != nil {
			return nil, nil, err
		}
		sessions := session.NewManager(session.NewFileStore(opts.sessionPath), client, session.Credentials{
			Email:    os.Getenv("SALESDESK_BACKEND_EMAIL"),
			Password: os.Getenv("SALESDESK_BACKEND_PASSWORD"),
		})
		return client.WithTokens(sessions).Products(), func() {}, nil
	case "postgres":
		if opts.databaseURL == "" {
			return nil, nil, errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		pool, err := postgres.NewPool(ctx, opts.databaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect to database")
		}
		return postgres.NewProductRepository(pool), pool.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown source %q", opts.source)
	}
}
