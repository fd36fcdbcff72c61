// cmd/seedcatalog/main.go creates or updates a demo catalog for one owner.
// Usage: go run ./cmd/seedcatalog <owner-uuid>
package main

import (
	"context"
	"os"

	"possync/internal/config"
	"possync/internal/infra"
	"possync/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

func intPtr(v int) *int { return &v }

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) < 2 {
		log.Fatal().Msg("usage: seedcatalog <owner-uuid>")
	}
	owner, err := uuid.Parse(os.Args[1])
	if err != nil {
		log.Fatal().Err(err).Msg("owner must be a UUID")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	products := []model.Product{
		{SKU: "BREAD-KG", Name: "Bread", Unit: "kg", IsVolatile: true, Price: decimal.RequireFromString("1.50")},
		{SKU: "JUICE-1L", Name: "Juice", Unit: "unit", Price: decimal.RequireFromString("0.50"), Stock: intPtr(60), ReorderLevel: intPtr(20)},
		{SKU: "MILK-1L", Name: "Milk", Unit: "unit", Price: decimal.RequireFromString("1.10"), Stock: intPtr(40), ReorderLevel: intPtr(10)},
		{SKU: "CHEESE-500G", Name: "Cheese", Unit: "unit", Price: decimal.RequireFromString("6.00"), Stock: intPtr(15), ReorderLevel: intPtr(5)},
	}

	ctx := context.Background()
	for i := range products {
		p := &products[i]
		p.ID = uuid.New()
		p.OwnerID = owner
		p.Active = true

		err := db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "unit", "is_volatile", "price", "stock", "reorder_level", "active"}),
			Where:     clause.Where{Exprs: []clause.Expression{clause.Eq{Column: clause.Column{Table: "products", Name: "owner_id"}, Value: owner}}},
		}).Create(p).Error
		if err != nil {
			log.Fatal().Err(err).Str("sku", p.SKU).Msg("upsert failed")
		}
		log.Info().Str("sku", p.SKU).Bool("volatile", p.IsVolatile).Msg("product seeded")
	}
}
