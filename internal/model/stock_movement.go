package model

import (
	"time"

	"github.com/google/uuid"
)

// Stock movement types.
const (
	MovementSale       = "SALE"
	MovementRestock    = "RESTOCK"
	MovementAdjustment = "ADJUSTMENT"
)

// StockMovement journals every stock change applied to a tracked product.
// Rows are immutable.
type StockMovement struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	MovementType   string     `gorm:"type:varchar(20);not null"`
	Delta          int        `gorm:"not null"` // positive = in, negative = out
	ResultingStock int        `gorm:"not null"`
	PerformedBy    *uuid.UUID `gorm:"type:uuid"`
	Reason         string     `gorm:"type:varchar(128)"`
	ReferenceID    *uuid.UUID `gorm:"type:uuid;index"` // sale id for SALE movements
	CreatedAt      time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}

// TableName keeps the journal name stable regardless of GORM pluralization.
func (StockMovement) TableName() string { return "stock_movements" }
