package infra

import (
	"fmt"

	"possync/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx and brings the
// schema up to date. TranslateError is required: the idempotency ledger
// relies on gorm.ErrDuplicatedKey to detect a lost external_id race.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates / updates all tables, then applies the idempotent SQL
// patches GORM cannot express. Integration tests call it directly.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Product{},
		&model.Sale{},
		&model.SaleItem{},
		&model.LowStockAlert{},
		&model.StockMovement{},
		&model.AlertPreference{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot handle on its
// own. Each statement uses IF NOT EXISTS semantics so re-running is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		// One unacknowledged alert per product; the alert upsert targets it.
		{"partial unique idx_low_stock_alerts_active", `
CREATE UNIQUE INDEX IF NOT EXISTS idx_low_stock_alerts_active
    ON low_stock_alerts (product_id)
    WHERE acknowledged = false`},
		// Analytics scans sale_items of one product joined to sales by time.
		{"idx_sale_items_product_sale", `
CREATE INDEX IF NOT EXISTS idx_sale_items_product_sale
    ON sale_items (product_id, sale_id)`},
		{"fk sale_items.product_id", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_sale_items_product') THEN
    ALTER TABLE sale_items
      ADD CONSTRAINT fk_sale_items_product FOREIGN KEY (product_id) REFERENCES products(id);
  END IF;
END $$`},
		{"fk low_stock_alerts.product_id", `
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'fk_low_stock_alerts_product') THEN
    ALTER TABLE low_stock_alerts
      ADD CONSTRAINT fk_low_stock_alerts_product FOREIGN KEY (product_id) REFERENCES products(id);
  END IF;
END $$`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}
