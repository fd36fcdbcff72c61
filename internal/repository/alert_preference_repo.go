package repository

import (
	"context"
	"errors"

	"possync/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AlertPreferenceRepository interface {
	// Get returns the owner's stored preferences, or the defaults when none
	// were saved yet.
	Get(ctx context.Context, ownerID uuid.UUID) (*model.AlertPreference, error)
	Save(ctx context.Context, p *model.AlertPreference) error
}

type alertPreferenceRepo struct{ db *gorm.DB }

func NewAlertPreferenceRepository(db *gorm.DB) AlertPreferenceRepository {
	return &alertPreferenceRepo{db: db}
}

func (r *alertPreferenceRepo) Get(ctx context.Context, ownerID uuid.UUID) (*model.AlertPreference, error) {
	var p model.AlertPreference
	err := r.db.WithContext(ctx).First(&p, "owner_id = ?", ownerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DefaultAlertPreference(ownerID), nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *alertPreferenceRepo) Save(ctx context.Context, p *model.AlertPreference) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"notify_email", "notify_inapp", "email", "updated_at"}),
	}).Create(p).Error
}
