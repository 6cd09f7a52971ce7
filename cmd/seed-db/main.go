package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Active bool            `json:"active"`
}

var seedUsers = []auth.User{
	{ID: "u-admin", Name: "Store Admin", Email: "admin@storefront.local", Phone: "01700000000", Role: auth.RoleAdmin, Active: true},
	{ID: "u-shopper", Name: "Demo Shopper", Email: "shopper@storefront.local", Phone: "01800000000", Role: auth.RoleUser, Active: true},
}

func main() {
	var (
		databaseURL  string
		productsFile string
		jwtSecret    string
		tokenTTL     time.Duration
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&jwtSecret, "jwt-secret", "", "secret used to print demo bearer tokens (or SHOP_JWT_SECRET env)")
	flag.DurationVar(&tokenTTL, "token-ttl", 24*time.Hour, "lifetime of printed demo tokens")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if jwtSecret == "" {
		jwtSecret = os.Getenv("SHOP_JWT_SECRET")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if jwtSecret != "" {
		if err := printTokens([]byte(jwtSecret), tokenTTL); err != nil {
			slog.Error("issue tokens", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	users := postgres.NewUserRepository(pool)
	for _, u := range seedUsers {
		if err := users.UpsertUser(ctx, u); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.ID)
		}
		slog.Info("upserted user", slog.String("id", u.ID), slog.String("role", string(u.Role)))
	}

	products := postgres.NewProductRepository(pool)
	catalog, err := seedProducts(ctx, products, productsFile)
	if err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedFlashSale(ctx, products, catalog); err != nil {
		return errors.Wrap(err, "seed flash sale")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) ([]product.Product, error) {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return nil, errors.Wrap(err, "read products file")
	}

	var raw []productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}

	catalog := make([]product.Product, len(raw))
	for i, p := range raw {
		catalog[i] = product.Product{ID: p.ID, Name: p.Name, Price: p.Price, Active: p.Active}
	}
	if err := repo.UpsertProducts(ctx, catalog); err != nil {
		return nil, err
	}

	slog.Info("upserted products", slog.Int("count", len(catalog)))
	return catalog, nil
}

// seedFlashSale puts the first two active products on a 10% sale.
func seedFlashSale(ctx context.Context, repo product.Repository, catalog []product.Product) error {
	var ids []string
	for _, p := range catalog {
		if p.Active && len(ids) < 2 {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	admin := auth.Identity{UserID: seedUsers[0].ID, Role: auth.RoleAdmin}
	if err := product.NewFlashSaleService(repo).Create(ctx, admin, product.CreateFlashSaleRequest{
		ProductIDs:         ids,
		DiscountPercentage: decimal.NewFromInt(10),
	}); err != nil {
		return err
	}

	slog.Info("upserted flash sale", slog.Any("products", ids), slog.String("discount", "10%"))
	return nil
}

func seedCoupons(ctx context.Context, repo coupon.Repository) error {
	slog.Info("seeding demo coupons")

	now := time.Now().UTC()
	minOrder := decimal.NewFromInt(1000)
	maxDiscount := decimal.NewFromInt(300)
	coupons := []coupon.Coupon{
		{
			Code:              "SAVE10",
			Description:       "10% off orders over 1000, up to 300",
			DiscountType:      coupon.Percentage,
			DiscountValue:     decimal.NewFromInt(10),
			MinOrderAmount:    &minOrder,
			MaxDiscountAmount: &maxDiscount,
		},
		{
			Code:          "FLAT50",
			Description:   "50 off any order",
			DiscountType:  coupon.Flat,
			DiscountValue: decimal.NewFromInt(50),
		},
	}

	for _, c := range coupons {
		c.ID = uuid.NewString()
		c.StartDate = now.AddDate(0, 0, -1)
		c.EndDate = now.AddDate(0, 3, 0)
		c.Active = true
		c.CreatedBy = seedUsers[0].ID
		c.UpdatedBy = seedUsers[0].ID
		c.CreatedAt = now
		c.UpdatedAt = now

		err := repo.Create(ctx, &c)
		switch {
		case errors.Is(err, coupon.ErrDuplicateCode):
			slog.Info("coupon already exists", slog.String("code", c.Code))
		case err != nil:
			return errors.Wrapf(err, "create coupon %s", c.Code)
		default:
			slog.Info("created coupon", slog.String("code", c.Code), slog.String("description", c.Description))
		}
	}

	return nil
}

func printTokens(secret []byte, ttl time.Duration) error {
	now := time.Now()
	for _, u := range seedUsers {
		token, err := handler.Issue(secret, u, ttl, now)
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s): Bearer %s\n", u.Email, u.Role, token)
	}
	return nil
}
