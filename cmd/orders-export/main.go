package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/repository"
)

const (
	dateLayout    = "2006-01-02"
	progressEvery = 1_000
)

func main() {
	var (
		databaseURL string
		storeID     string
		fromFlag    string
		toFlag      string
		outPath     string
		workers     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&storeID, "store", "", "store id to export")
	flag.StringVar(&fromFlag, "from", "", "first day to export, YYYY-MM-DD (default: 30 days ago)")
	flag.StringVar(&toFlag, "to", "", "last day to export, YYYY-MM-DD (default: today)")
	flag.StringVar(&outPath, "out", "", "output file (default: orders-<store>-<from>-<to>.ndjson.gz)")
	flag.IntVar(&workers, "workers", 8, "concurrent item loads")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if storeID == "" {
		slog.Error("store is required: set --store")
		os.Exit(1)
	}

	from, to, err := parseRange(fromFlag, toFlag, time.Now().UTC())
	if err != nil {
		slog.Error("invalid date range", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if outPath == "" {
		outPath = "orders-" + storeID + "-" + from.Format(dateLayout) + "-" + to.AddDate(0, 0, -1).Format(dateLayout) + ".ndjson.gz"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, storeID, from, to, outPath, workers); err != nil {
		slog.Error("export failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("export completed successfully", slog.String("path", outPath))
}

// parseRange turns inclusive calendar days into the half-open [from, to)
// interval used by the query.
func parseRange(fromFlag, toFlag string, now time.Time) (time.Time, time.Time, error) {
	today := now.Truncate(24 * time.Hour)
	from, to := today.AddDate(0, 0, -30), today
	var err error
	if fromFlag != "" {
		if from, err = time.Parse(dateLayout, fromFlag); err != nil {
			return time.Time{}, time.Time{}, errors.Wrap(err, "parse --from")
		}
	}
	if toFlag != "" {
		if to, err = time.Parse(dateLayout, toFlag); err != nil {
			return time.Time{}, time.Time{}, errors.Wrap(err, "parse --to")
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.Errorf("--to %s is before --from %s", to.Format(dateLayout), from.Format(dateLayout))
	}
	return from, to.AddDate(0, 0, 1), nil
}

func run(ctx context.Context, databaseURL, storeID string, from, to time.Time, outPath string, workers int) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := repository.NewOrderRepository(pool)

	orders, err := repo.ListBetween(ctx, storeID, from, to)
	if err != nil {
		return errors.Wrap(err, "list orders")
	}
	slog.Info("orders found", slog.Int("count", len(orders)))

	if err := loadItems(ctx, repo, orders, workers); err != nil {
		return errors.Wrap(err, "load items")
	}

	return writeExport(outPath, orders)
}

// loadItems fills in the items of every order, running at most workers
// queries at a time.
func loadItems(ctx context.Context, repo order.Repository, orders []order.Order, workers int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i := range orders {
		g.Go(func() error {
			items, err := repo.ListItems(ctx, orders[i].ID)
			if err != nil {
				return errors.Wrapf(err, "items of order %s", orders[i].ID)
			}
			orders[i].Items = items
			return nil
		})
	}
	return g.Wait()
}

func writeExport(path string, orders []order.Order) (rerr error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	defer func() {
		if err := f.Close(); err != nil && rerr == nil {
			rerr = errors.Wrap(err, "close output")
		}
	}()

	bw := bufio.NewWriterSize(f, 1<<20)
	gz := pgzip.NewWriter(bw)
	if err := writeOrders(gz, orders); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "close gzip")
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, "flush output")
	}
	return nil
}
