package repository

import (
	"context"
	"time"

	"possync/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AlertRepository interface {
	// UpsertActiveTx creates the product's unacknowledged alert or refreshes
	// the existing one in place. created reports which branch ran.
	UpsertActiveTx(tx *gorm.DB, a *model.LowStockAlert) (created bool, err error)
	// ClearActiveTx removes the product's unacknowledged alert, if any.
	ClearActiveTx(tx *gorm.DB, productID uuid.UUID) (int64, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]model.LowStockAlert, error)
	Acknowledge(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error)
	// DeleteRecovered removes unacknowledged alerts whose product stock is
	// back at or above its reorder level.
	DeleteRecovered(ctx context.Context) (int64, error)
}

type alertRepo struct{ db *gorm.DB }

func NewAlertRepository(db *gorm.DB) AlertRepository { return &alertRepo{db: db} }

// upsertActiveSQL relies on the partial unique index idx_low_stock_alerts_active.
// days_low_stock advances only when the refresh lands on a later calendar day.
const upsertActiveSQL = `
INSERT INTO low_stock_alerts
    (product_id, severity, message, triggered_at, acknowledged, days_low_stock, created_at, updated_at)
VALUES (?, ?, ?, ?, false, 0, ?, ?)
ON CONFLICT (product_id) WHERE acknowledged = false
DO UPDATE SET
    severity       = EXCLUDED.severity,
    message        = EXCLUDED.message,
    days_low_stock = low_stock_alerts.days_low_stock +
        CASE WHEN EXCLUDED.triggered_at::date > low_stock_alerts.triggered_at::date THEN 1 ELSE 0 END,
    triggered_at   = EXCLUDED.triggered_at,
    updated_at     = EXCLUDED.updated_at
RETURNING id, days_low_stock, created_at, (xmax = 0) AS inserted`

func (r *alertRepo) UpsertActiveTx(tx *gorm.DB, a *model.LowStockAlert) (bool, error) {
	var row struct {
		ID           uuid.UUID
		DaysLowStock int
		CreatedAt    time.Time
		Inserted     bool
	}
	err := tx.Raw(upsertActiveSQL,
		a.ProductID, a.Severity, a.Message, a.TriggeredAt, a.TriggeredAt, a.TriggeredAt,
	).Scan(&row).Error
	if err != nil {
		return false, err
	}
	a.ID = row.ID
	a.DaysLowStock = row.DaysLowStock
	a.CreatedAt = row.CreatedAt
	a.UpdatedAt = a.TriggeredAt
	return row.Inserted, nil
}

func (r *alertRepo) ClearActiveTx(tx *gorm.DB, productID uuid.UUID) (int64, error) {
	res := tx.Where("product_id = ? AND acknowledged = ?", productID, false).
		Delete(&model.LowStockAlert{})
	return res.RowsAffected, res.Error
}

func (r *alertRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, activeOnly bool) ([]model.LowStockAlert, error) {
	q := r.db.WithContext(ctx).
		Joins("Product").
		Where("\"Product\".owner_id = ?", ownerID)
	if activeOnly {
		q = q.Where("low_stock_alerts.acknowledged = ?", false)
	}
	var alerts []model.LowStockAlert
	err := q.Order("low_stock_alerts.triggered_at DESC").Find(&alerts).Error
	return alerts, err
}

func (r *alertRepo) Acknowledge(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.LowStockAlert{}).
		Where("id IN ? AND acknowledged = ?", ids, false).
		Where("product_id IN (?)", r.db.Model(&model.Product{}).Select("id").Where("owner_id = ?", ownerID)).
		Update("acknowledged", true)
	return res.RowsAffected, res.Error
}

func (r *alertRepo) DeleteRecovered(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("acknowledged = ?", false).
		Where("product_id IN (?)", r.db.Model(&model.Product{}).Select("id").
			Where("is_volatile = ? OR reorder_level IS NULL OR stock IS NULL OR stock >= reorder_level", true)).
		Delete(&model.LowStockAlert{})
	return res.RowsAffected, res.Error
}
