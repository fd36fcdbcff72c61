package model

import (
	"time"

	"github.com/google/uuid"
)

// Alert severities, from least to most urgent.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// LowStockAlert signals that a tracked product fell below its reorder level.
// A partial unique index keeps at most one unacknowledged row per product;
// repeated low-stock events refresh that row instead of adding new ones.
type LowStockAlert struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID    uuid.UUID `gorm:"type:uuid;index;not null"`
	Severity     string    `gorm:"type:varchar(20);not null"`
	Message      string    `gorm:"type:varchar(255);not null"`
	TriggeredAt  time.Time `gorm:"not null"`
	Acknowledged bool      `gorm:"not null;default:false"`
	// DaysLowStock counts the distinct calendar days after the first on which
	// the alert was refreshed while still unacknowledged.
	DaysLowStock int `gorm:"not null;default:0"`
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Product *Product `gorm:"foreignKey:ProductID"`
}
