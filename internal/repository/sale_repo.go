package repository

import (
	"context"
	"time"

	"possync/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductLine is one sale item of a product joined with its sale time.
type ProductLine struct {
	SaleID   uuid.UUID
	Quantity decimal.Decimal
	Subtotal decimal.Decimal
	SoldAt   time.Time
}

type SaleRepository interface {
	// Create inserts the sale together with its items.
	Create(ctx context.Context, tx *gorm.DB, s *model.Sale) error
	// MarkSyncedTx sets synced_at once; a second call is a no-op.
	MarkSyncedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error)
	FindByExternalID(ctx context.Context, externalID string) (*model.Sale, error)
	List(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]model.Sale, int64, error)
	// ListProductLines returns the product's sale items whose sale time lies
	// in [from, to). byClientTime selects client_created_at over received_at.
	ListProductLines(ctx context.Context, productID uuid.UUID, from, to time.Time, byClientTime bool) ([]ProductLine, error)
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type saleRepo struct{ db *gorm.DB }

func NewSaleRepository(db *gorm.DB) SaleRepository { return &saleRepo{db: db} }

func (r *saleRepo) DB() *gorm.DB { return r.db }

func (r *saleRepo) Create(ctx context.Context, tx *gorm.DB, s *model.Sale) error {
	return tx.WithContext(ctx).Create(s).Error
}

func (r *saleRepo) MarkSyncedTx(tx *gorm.DB, id uuid.UUID, at time.Time) error {
	return tx.Model(&model.Sale{}).
		Where("id = ? AND synced_at IS NULL", id).
		Update("synced_at", at).Error
}

func (r *saleRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Preload("Items.Product").First(&s, "id = ?", id).Error
	return &s, err
}

func (r *saleRepo) FindByExternalID(ctx context.Context, externalID string) (*model.Sale, error) {
	var s model.Sale
	err := r.db.WithContext(ctx).Preload("Items.Product").
		Where("external_id = ?", externalID).First(&s).Error
	return &s, err
}

func (r *saleRepo) List(ctx context.Context, ownerID uuid.UUID, page, limit int) ([]model.Sale, int64, error) {
	var sales []model.Sale
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Sale{}).Where("owner_id = ?", ownerID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	err := q.Preload("Items.Product").
		Order("received_at DESC").
		Offset(offset).Limit(limit).
		Find(&sales).Error
	return sales, total, err
}

func (r *saleRepo) ListProductLines(ctx context.Context, productID uuid.UUID, from, to time.Time, byClientTime bool) ([]ProductLine, error) {
	col := "sales.received_at"
	if byClientTime {
		col = "sales.client_created_at"
	}

	var lines []ProductLine
	err := r.db.WithContext(ctx).Table("sale_items").
		Select("sale_items.sale_id, sale_items.quantity, sale_items.subtotal, "+col+" AS sold_at").
		Joins("JOIN sales ON sales.id = sale_items.sale_id").
		Where("sale_items.product_id = ?", productID).
		Where(col+" >= ? AND "+col+" < ?", from, to).
		Order(col + " ASC").
		Scan(&lines).Error
	return lines, err
}
