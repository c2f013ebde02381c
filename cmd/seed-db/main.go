package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/webshop/internal/domain/auth"
	"github.com/xenking/webshop/internal/domain/catalog"
	"github.com/xenking/webshop/internal/domain/customer"
	"github.com/xenking/webshop/internal/repository"
)

type articleJSON struct {
	Label string          `json:"label"`
	Price decimal.Decimal `json:"price"`
}

type customerJSON struct {
	LoginName string `json:"loginName"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

type options struct {
	databaseURL   string
	articlesFile  string
	customersFile string
	apiKey        string
	apiKeyLogin   string
	apiKeyPepper  string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.articlesFile, "articles-file", "db/seed/articles.json", "path to articles JSON file")
	flag.StringVar(&opts.customersFile, "customers-file", "db/seed/customers.json", "path to customers JSON file")
	flag.StringVar(&opts.apiKey, "api-key", "", "API key to seed (or SHOP_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyLogin, "api-key-login", "alice", "login name of the customer the API key belongs to")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("SHOP_SEED_API_KEY")
	}
	if opts.apiKey == "" {
		slog.Error("API key is required: set --api-key or SHOP_SEED_API_KEY")
		os.Exit(1)
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("SHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, opts options) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	var (
		articles  = repository.NewArticleRepository(pool)
		customers = repository.NewCustomerRepository(pool, repository.NewOrderRepository(pool))
		apikeys   = repository.NewAPIKeyRepository(pool)
	)

	// One transaction for all seed files.
	return repository.NewTransactor(pool).InTx(ctx, func(ctx context.Context) error {
		if err := seedArticles(ctx, articles, opts.articlesFile); err != nil {
			return errors.Wrap(err, "seed articles")
		}
		if err := seedCustomers(ctx, customers, opts.customersFile); err != nil {
			return errors.Wrap(err, "seed customers")
		}
		if err := seedAPIKey(ctx, apikeys, opts); err != nil {
			return errors.Wrap(err, "seed api key")
		}
		return nil
	})
}

func readJSON(path string, v any) error {
	slog.Info("reading seed file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}
	return nil
}

func seedArticles(ctx context.Context, repo catalog.Repository, path string) error {
	var items []articleJSON
	if err := readJSON(path, &items); err != nil {
		return err
	}

	slog.Info("upserting articles", slog.Int("count", len(items)))

	for _, item := range items {
		a := &catalog.Article{Label: item.Label, Price: item.Price, Available: true}
		if err := repo.Upsert(ctx, a); err != nil {
			return errors.Wrapf(err, "upsert article %q", item.Label)
		}

		slog.Info("upserted article", slog.Int64("id", a.ID), slog.String("label", a.Label))
	}

	return nil
}

func seedCustomers(ctx context.Context, repo *repository.CustomerRepository, path string) error {
	var items []customerJSON
	if err := readJSON(path, &items); err != nil {
		return err
	}

	slog.Info("upserting customers", slog.Int("count", len(items)))

	for _, item := range items {
		c := &customer.Customer{
			LoginName: item.LoginName,
			Identity: customer.Identity{
				FirstName: item.FirstName,
				LastName:  item.LastName,
				Email:     item.Email,
			},
		}
		if err := repo.Upsert(ctx, c); err != nil {
			return err
		}

		slog.Info("upserted customer", slog.Int64("id", c.ID), slog.String("login", c.LoginName))
	}

	return nil
}

func seedAPIKey(ctx context.Context, repo *repository.APIKeyRepository, opts options) error {
	slog.Info("seeding API key", slog.String("login", opts.apiKeyLogin))

	info := &auth.APIKeyInfo{
		ID:        "default",
		KeyHash:   auth.HashKey(opts.apiKey, []byte(opts.apiKeyPepper)),
		Name:      "Default key of " + opts.apiKeyLogin,
		LoginName: opts.apiKeyLogin,
		Scopes:    []string{"orders", "cart_positions"},
	}
	if err := repo.Upsert(ctx, info); err != nil {
		return err
	}

	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("name", info.Name))

	return nil
}
