package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry. Only the stock and price fields are mutated by
// sale ingestion; catalog metadata is managed elsewhere.
//
// IsVolatile=true means stock is not tracked: Stock and ReorderLevel are
// ignored and Price holds the last unit price used in a sale.
type Product struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerID     uuid.UUID `gorm:"type:uuid;index;not null"`
	SKU         string    `gorm:"column:sku;type:varchar(64);uniqueIndex;not null"`
	Name        string    `gorm:"not null"`
	Description *string
	Unit        string          `gorm:"type:varchar(32);not null;default:'unit'"`
	IsVolatile  bool            `gorm:"not null;default:false"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	// Stock may be negative after an oversell; nil means never counted.
	Stock        *int
	ReorderLevel *int
	Active       bool `gorm:"not null;default:true"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsTracked reports whether sales drive this product's stock.
func (p *Product) IsTracked() bool { return !p.IsVolatile }
