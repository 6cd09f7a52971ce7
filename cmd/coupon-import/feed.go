package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/coupon"
)

// Feed columns: code, type, value, min order, max discount, start, end,
// description. Optional columns may be empty.
const feedColumns = 8

// entry is a parsed feed row with its origin for error reporting.
type entry struct {
	file string
	line int
	req  coupon.CreateRequest
}

// openFeed opens path, transparently decompressing .gz files.
func openFeed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	gz, err := pgzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	return struct {
		io.Reader
		io.Closer
	}{gz, closerFunc(func() error {
		gzErr := gz.Close()
		if err := f.Close(); err != nil {
			return err
		}
		return gzErr
	})}, nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

// parseFeed reads every coupon row from r. Blank lines and lines starting
// with '#' are skipped.
func parseFeed(ctx context.Context, name string, r io.Reader) ([]entry, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []entry
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		line, _ := cr.FieldPos(0)
		req, err := parseRecord(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", name, line)
		}
		out = append(out, entry{file: name, line: line, req: req})
	}
}

func parseRecord(rec []string) (coupon.CreateRequest, error) {
	if len(rec) < 7 || len(rec) > feedColumns {
		return coupon.CreateRequest{}, errors.Errorf("expected 7 or %d columns, got %d", feedColumns, len(rec))
	}
	for i := range rec {
		rec[i] = strings.TrimSpace(rec[i])
	}

	req := coupon.CreateRequest{
		Code:         coupon.NormalizeCode(rec[0]),
		DiscountType: coupon.DiscountType(rec[1]),
	}
	if !req.DiscountType.Valid() {
		return req, errors.Errorf("unknown discount type %q", rec[1])
	}

	var err error
	if req.DiscountValue, err = decimal.NewFromString(rec[2]); err != nil {
		return req, errors.Wrap(err, "discount value")
	}
	if req.MinOrderAmount, err = optionalDecimal(rec[3]); err != nil {
		return req, errors.Wrap(err, "min order amount")
	}
	if req.MaxDiscountAmount, err = optionalDecimal(rec[4]); err != nil {
		return req, errors.Wrap(err, "max discount amount")
	}
	if req.StartDate, err = parseDate(rec[5]); err != nil {
		return req, errors.Wrap(err, "start date")
	}
	if req.EndDate, err = parseDate(rec[6]); err != nil {
		return req, errors.Wrap(err, "end date")
	}
	if len(rec) == feedColumns {
		req.Description = rec[7]
	}
	return req, nil
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}

// deduper drops repeated coupon codes. The bloom filter answers most
// lookups; only its positives are confirmed against the exact set.
type deduper struct {
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

func newDeduper(capacity uint) *deduper {
	if capacity == 0 {
		capacity = 1
	}
	return &deduper{
		filter: bloom.NewWithEstimates(capacity, 0.001),
		seen:   make(map[string]struct{}),
	}
}

// add reports whether code was not seen before.
func (d *deduper) add(code string) bool {
	if d.filter.TestString(code) {
		if _, ok := d.seen[code]; ok {
			return false
		}
	}
	d.filter.AddString(code)
	d.seen[code] = struct{}{}
	return true
}
