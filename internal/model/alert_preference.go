package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertPreference holds one owner's low-stock notification settings. Owners
// without a row get DefaultAlertPreference.
type AlertPreference struct {
	OwnerID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	NotifyEmail bool      `gorm:"not null"`
	NotifyInApp bool      `gorm:"column:notify_inapp;not null"`
	// Email overrides ALERT_EMAIL_TO for this owner's notices.
	Email     string `gorm:"type:varchar(254);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func DefaultAlertPreference(ownerID uuid.UUID) *AlertPreference {
	return &AlertPreference{OwnerID: ownerID, NotifyEmail: true, NotifyInApp: true}
}
