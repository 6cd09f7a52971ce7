package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/apperr"
	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/storage/postgres"
)

const progressEvery = 1000

func main() {
	var (
		databaseURL string
		importer    string
		dryRun      bool
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&importer, "admin-id", "u-admin", "admin user id recorded as coupon creator")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and deduplicate feeds without writing")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: coupon-import [flags] feed.csv[.gz]...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, files, databaseURL, importer, dryRun); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, files []string, databaseURL, importer string, dryRun bool) error {
	slog.Info("parsing feeds", slog.Int("files", len(files)))

	entries, err := parseFeeds(ctx, files)
	if err != nil {
		return errors.Wrap(err, "parse feeds")
	}

	unique, dupes := dedupe(entries)
	slog.Info("feeds parsed",
		slog.Int("rows", len(entries)),
		slog.Int("unique", len(unique)),
		slog.Int("duplicates", dupes),
	)
	if dryRun || len(unique) == 0 {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewCouponRepository(pool)
	svc := coupon.NewService(repo, coupon.NewResolver(repo))
	admin := auth.Identity{UserID: importer, Role: auth.RoleAdmin}
	return writeCoupons(ctx, svc, admin, unique)
}

// parseFeeds parses all files concurrently, keeping file order in the
// result.
func parseFeeds(ctx context.Context, files []string) ([]entry, error) {
	results := make([][]entry, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			rc, err := openFeed(path)
			if err != nil {
				return err
			}
			defer func() { _ = rc.Close() }()

			parsed, err := parseFeed(ctx, path, rc)
			if err != nil {
				return err
			}
			slog.Info("feed parsed", slog.String("file", path), slog.Int("rows", len(parsed)))
			results[i] = parsed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []entry
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// dedupe keeps the first occurrence of each code.
func dedupe(entries []entry) ([]entry, int) {
	d := newDeduper(uint(len(entries)))
	unique := make([]entry, 0, len(entries))
	for _, e := range entries {
		if !d.add(e.req.Code) {
			slog.Warn("duplicate code skipped",
				slog.String("code", e.req.Code),
				slog.String("file", e.file),
				slog.Int("line", e.line),
			)
			continue
		}
		unique = append(unique, e)
	}
	return unique, len(entries) - len(unique)
}

// creator is the part of coupon.Service used by the importer.
type creator interface {
	Create(ctx context.Context, id auth.Identity, req coupon.CreateRequest) (*coupon.Coupon, error)
}

// writeCoupons creates coupons one by one. Rows rejected by validation are
// logged and skipped; any other error aborts the import.
func writeCoupons(ctx context.Context, svc creator, admin auth.Identity, entries []entry) error {
	slog.Info("writing coupons to database", slog.Int("count", len(entries)))

	var created, skipped int
	for i, e := range entries {
		_, err := svc.Create(ctx, admin, e.req)
		switch {
		case err == nil:
			created++
		case apperr.KindOf(err) == apperr.Invalid:
			skipped++
			slog.Warn("coupon rejected",
				slog.String("code", e.req.Code),
				slog.String("file", e.file),
				slog.Int("line", e.line),
				slog.String("reason", apperr.MessageOf(err)),
			)
		default:
			return errors.Wrapf(err, "create coupon %s (%s:%d)", e.req.Code, e.file, e.line)
		}

		if (i+1)%progressEvery == 0 || i+1 == len(entries) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(entries)))
		}
	}

	slog.Info("coupons written", slog.Int("created", created), slog.Int("skipped", skipped))
	return nil
}
