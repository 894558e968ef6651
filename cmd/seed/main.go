package main

import (
	"context"
	"fmt"
	"os"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/images"
	"storefront/internal/logger"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func price(v float64) *float64 { return &v }

var catalog = []service.ProductDraft{
	{
		Title:       "Classic T-Shirt",
		Category:    "T-Shirts",
		Brand:       "Uomo",
		Description: "Soft cotton tee",
		Tags:        []string{"cotton", "basics"},
		Price:       price(29.99),
		Currency:    "USD",
		Images:      []string{"/images/p1.jpg"},
		Stock:       20,
	},
	{
		Title:          "Linen Overshirt",
		Category:       "Shirts",
		Brand:          "Uomo",
		Description:    "Breathable linen for warm evenings",
		Tags:           []string{"linen", "summer"},
		Price:          price(79),
		CompareAtPrice: price(99),
		Currency:       "USD",
		Images:         []string{"/images/p2.jpg", "/images/p2-back.jpg"},
		Stock:          8,
	},
	{
		Title:       "Selvedge Denim",
		Category:    "Jeans",
		Brand:       "Forge",
		Description: "Raw selvedge denim, straight fit",
		Tags:        []string{"denim"},
		Price:       price(140),
		Currency:    "USD",
		Images:      []string{"/images/p3.jpg"},
		Stock:       12,
	},
	{
		Title:       "Merino Crew Sweater",
		Category:    "Knitwear",
		Brand:       "Forge",
		Description: "Fine merino wool crew neck",
		Tags:        []string{"wool", "winter"},
		Price:       price(95),
		Currency:    "USD",
		Images:      []string{"/images/p4.jpg"},
		Stock:       0,
	},
}

func run(ctx context.Context, log *zap.Logger) error {
	cfg := config.Load()

	dbService, err := database.New(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer dbService.Close()

	if err := database.RunMigrations(dbService.DB(), log); err != nil {
		return err
	}

	store, err := images.NewLocalStore(cfg.Uploads.Dir, cfg.Uploads.URLPrefix, cfg.Uploads.MaxFileBytes, log)
	if err != nil {
		return err
	}

	productService := service.NewProductService(
		repository.NewProductRepository(dbService.DB()),
		repository.NewCategoryRepository(dbService.DB()),
		images.NewTracker(store, log),
		log,
	)

	removed, err := productService.DeleteAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear products: %w", err)
	}
	log.Info("Cleared catalog", zap.Int64("removed", removed))

	for _, draft := range catalog {
		if _, err := productService.Create(ctx, draft); err != nil {
			return fmt.Errorf("failed to seed %q: %w", draft.Title, err)
		}
	}

	log.Info("Seeded products", zap.Int("count", len(catalog)))
	return nil
}

func main() {
	_ = godotenv.Load()

	log := logger.NewWithDefaults()
	defer log.Sync()

	if err := run(context.Background(), log); err != nil {
		log.Error("Seed failed", zap.Error(err))
		os.Exit(1)
	}
}
