package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sale is one checkout event. Rows are append-only: after the ingestion
// transaction commits, only SyncedAt is ever written (once, inside the same
// transaction) and rows are never deleted.
type Sale struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	// ExternalID is the client idempotency key; the unique index is what
	// serializes concurrent submissions of the same key.
	ExternalID  string          `gorm:"type:varchar(64);uniqueIndex;not null"`
	OwnerID     uuid.UUID       `gorm:"type:uuid;index;not null"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(18,5);not null"`
	ReceivedAt  time.Time       `gorm:"index;not null"`
	// ClientCreatedAt may precede ReceivedAt for sales made offline.
	ClientCreatedAt time.Time `gorm:"index;not null"`
	DeviceLabel     *string   `gorm:"type:varchar(64)"`
	SyncedAt        *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Items []SaleItem `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
}

// SaleItem is one line of a Sale. Subtotal is always Quantity × UnitPrice,
// computed server-side.
type SaleItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SaleID    uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProductID uuid.UUID       `gorm:"type:uuid;index;not null"`
	Quantity  decimal.Decimal `gorm:"type:decimal(12,3);not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(18,5);not null"`
	CreatedAt time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}
