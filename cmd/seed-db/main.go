// Command seed-db loads catalog items from a JSON file and installs the
// default pricing configuration: metal and gem rates, charge rules, the
// making-charge tier table, cart discount rules and a few promo codes.
// It is idempotent; every write is an upsert.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/aurumlabs/aurum/internal/domain/cart"
	"github.com/aurumlabs/aurum/internal/domain/catalog"
	"github.com/aurumlabs/aurum/internal/domain/inventory"
	"github.com/aurumlabs/aurum/internal/domain/promo"
	"github.com/aurumlabs/aurum/internal/repository"
)

type itemJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Purity      int             `json:"purity"`
	NetWeight   decimal.Decimal `json:"net_weight"`
	CaratWeight decimal.Decimal `json:"carat_weight"`
	Clarity     string          `json:"clarity"`
	Stock       int             `json:"stock"`
}

func main() {
	var (
		databaseURL string
		itemsFile   string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&itemsFile, "items-file", "db/seed/items.json", "path to catalog items JSON file")
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

	if err := run(ctx, databaseURL, itemsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, itemsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedItems(ctx, pool, itemsFile); err != nil {
		return errors.Wrap(err, "seed items")
	}

	if err := seedRates(ctx, repository.NewRateRepository(pool)); err != nil {
		return errors.Wrap(err, "seed rates")
	}

	if err := seedDiscountRules(ctx, repository.NewDiscountRuleRepository(pool)); err != nil {
		return errors.Wrap(err, "seed discount rules")
	}

	if err := seedPromoCodes(ctx, repository.NewPromoRepository(pool)); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}

	return nil
}

func seedItems(ctx context.Context, pool *pgxpool.Pool, itemsFile string) error {
	slog.Info("reading items file", slog.String("path", itemsFile))

	data, err := os.ReadFile(itemsFile)
	if err != nil {
		return errors.Wrap(err, "read items file")
	}

	var items []itemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse items JSON")
	}

	catalogRepo := repository.NewCatalogRepository(pool)
	inventoryRepo := repository.NewInventoryRepository(pool)

	slog.Info("upserting items", slog.Int("count", len(items)))

	for _, it := range items {
		existing, err := catalogRepo.GetItem(ctx, it.ID)
		var notFound *catalog.ItemNotFoundError
		if err != nil && !errors.As(err, &notFound) {
			return errors.Wrapf(err, "check item %s", it.ID)
		}

		if err := catalogRepo.Upsert(ctx, catalog.Item{
			ID:          it.ID,
			Name:        it.Name,
			Category:    it.Category,
			Purity:      it.Purity,
			NetWeight:   it.NetWeight,
			CaratWeight: it.CaratWeight,
			Clarity:     it.Clarity,
			Stock:       it.Stock,
			Active:      true,
		}); err != nil {
			return errors.Wrapf(err, "upsert item %s", it.ID)
		}

		// First-time items get an opening ledger entry so the audit trail
		// sums to the current stock.
		if existing == nil && it.Stock != 0 {
			entry := &inventory.Entry{
				ID:      uuid.NewString(),
				ItemID:  it.ID,
				Delta:   it.Stock,
				Action:  inventory.ActionInitialStock,
				Reason:  "seed",
				ActorID: "seed-db",
			}
			if err := inventoryRepo.AppendEntry(ctx, entry); err != nil {
				return errors.Wrapf(err, "log initial stock for %s", it.ID)
			}
		}

		slog.Info("upserted item", slog.String("id", it.ID), slog.String("name", it.Name))
	}

	return nil
}

func seedRates(ctx context.Context, rates *repository.RateRepository) error {
	slog.Info("seeding rates and charge rules")

	defaults := []catalog.Rate{
		{Kind: catalog.RateMetal, Key: "24", PerUnit: decimal.NewFromInt(74_000)},
		{Kind: catalog.RateMetal, Key: "22", PerUnit: decimal.NewFromInt(68_000)},
		{Kind: catalog.RateMetal, Key: "18", PerUnit: decimal.NewFromInt(55_500)},
		{Kind: catalog.RateGem, Key: "VVS1", PerUnit: decimal.NewFromInt(95_000)},
		{Kind: catalog.RateGem, Key: "VS1", PerUnit: decimal.NewFromInt(72_000)},
		{Kind: catalog.RateGem, Key: "SI1", PerUnit: decimal.NewFromInt(48_000)},
	}
	for _, r := range defaults {
		if err := rates.UpsertRate(ctx, r); err != nil {
			return errors.Wrapf(err, "upsert rate %s/%s", r.Kind, r.Key)
		}
	}

	rules := []catalog.ChargeRule{
		{
			ID:     "gst",
			Name:   "GST",
			Class:  catalog.ChargeTax,
			Kind:   catalog.ChargePercent,
			Target: catalog.TargetFinalAmount,
			Amount: decimal.NewFromInt(3),
			Active: true,
		},
		{
			ID:     "hallmark",
			Name:   "Hallmarking",
			Class:  catalog.ChargeOther,
			Kind:   catalog.ChargeFlat,
			Target: catalog.TargetSubtotal,
			Amount: decimal.NewFromInt(45),
			Active: true,
		},
	}
	for _, rule := range rules {
		if err := rates.UpsertChargeRule(ctx, rule); err != nil {
			return errors.Wrapf(err, "upsert charge rule %s", rule.ID)
		}
	}

	heavy := decimal.NewFromInt(8)
	mid := decimal.NewFromInt(4)
	tiers := []catalog.MakingTier{
		{ID: "light", MinWeight: decimal.Zero, MaxWeight: &mid, Kind: catalog.ChargePerGram, Amount: decimal.NewFromInt(550)},
		{ID: "mid", MinWeight: mid, MaxWeight: &heavy, Kind: catalog.ChargePerGram, Amount: decimal.NewFromInt(450)},
		{ID: "heavy", MinWeight: heavy, Kind: catalog.ChargePerGram, Amount: decimal.NewFromInt(350)},
	}
	if err := rates.ReplaceMakingTiers(ctx, tiers); err != nil {
		return errors.Wrap(err, "replace making tiers")
	}

	return nil
}

func seedDiscountRules(ctx context.Context, discounts *repository.DiscountRuleRepository) error {
	slog.Info("seeding cart discount rules")

	rules := []cart.DiscountRule{
		{ID: "cart-50k", MinCartValue: decimal.NewFromInt(50_000), Percent: decimal.NewFromInt(3), Active: true},
		{ID: "cart-2l", MinCartValue: decimal.NewFromInt(200_000), Percent: decimal.NewFromInt(5), Active: true},
	}
	for _, rule := range rules {
		if err := discounts.Upsert(ctx, rule); err != nil {
			return errors.Wrapf(err, "upsert discount rule %s", rule.ID)
		}
	}

	return nil
}

func seedPromoCodes(ctx context.Context, promos *repository.PromoRepository) error {
	slog.Info("seeding promo codes")

	rules := []promo.Rule{
		{Code: "WELCOME10", Kind: promo.KindPercent, Value: decimal.NewFromInt(10), MaxUses: 0, Active: true},
		{Code: "FESTIVE500", Kind: promo.KindFlat, Value: decimal.NewFromInt(500), MaxUses: 1000, Active: true},
	}
	for _, rule := range rules {
		if err := promos.Upsert(ctx, rule); err != nil {
			return errors.Wrapf(err, "upsert promo %s", rule.Code)
		}

		slog.Info("upserted promo", slog.String("code", rule.Code))
	}

	return nil
}
