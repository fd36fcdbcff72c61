package repository

import (
	"context"

	"possync/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductRepository defines the data access contract for products.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via in-memory stubs.
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindBySKU(ctx context.Context, sku string) (*model.Product, error)

	// Used inside transactions; callers pass the tx instance
	CreateTx(tx *gorm.DB, p *model.Product) error

	// AdjustStockTx applies stock = stock + delta in a single UPDATE and
	// returns the resulting level. Volatile products are never matched.
	AdjustStockTx(tx *gorm.DB, id uuid.UUID, delta int) (int, error)

	// UpdatePriceTx stores the last unit price used for a volatile product.
	UpdatePriceTx(tx *gorm.DB, id uuid.UUID, price decimal.Decimal) error

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type productRepo struct{ db *gorm.DB }

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepo{db: db} }

func (r *productRepo) DB() *gorm.DB { return r.db }

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *productRepo) FindBySKU(ctx context.Context, sku string) (*model.Product, error) {
	var p model.Product
	err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&p).Error
	return &p, err
}

func (r *productRepo) CreateTx(tx *gorm.DB, p *model.Product) error {
	return tx.Create(p).Error
}

func (r *productRepo) AdjustStockTx(tx *gorm.DB, id uuid.UUID, delta int) (int, error) {
	var p model.Product
	res := tx.Model(&p).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "stock"}}}).
		Where("id = ? AND is_volatile = ?", id, false).
		Update("stock", gorm.Expr("COALESCE(stock, 0) + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 || p.Stock == nil {
		return 0, ErrNotTracked
	}
	return *p.Stock, nil
}

func (r *productRepo) UpdatePriceTx(tx *gorm.DB, id uuid.UUID, price decimal.Decimal) error {
	return tx.Model(&model.Product{}).
		Where("id = ? AND is_volatile = ?", id, true).
		Update("price", price).Error
}
