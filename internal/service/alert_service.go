package service

import (
	"context"
	"strings"
	"time"

	"possync/internal/dto"
	"possync/internal/model"
	"possync/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type AlertService interface {
	ListActive(ctx context.Context, ownerID uuid.UUID) (*dto.AlertListResponse, error)
	History(ctx context.Context, ownerID uuid.UUID) (*dto.AlertListResponse, error)
	Acknowledge(ctx context.Context, ownerID uuid.UUID, req dto.AcknowledgeAlertsRequest) (*dto.AcknowledgeAlertsResponse, error)
	// SweepRecovered drops active alerts of products restocked outside sales.
	SweepRecovered(ctx context.Context) (int64, error)
	GetSettings(ctx context.Context, ownerID uuid.UUID) (*dto.AlertSettingsResponse, error)
	// UpdateSettings applies the fields present in req and returns the result.
	UpdateSettings(ctx context.Context, ownerID uuid.UUID, req dto.UpdateAlertSettingsRequest) (*dto.AlertSettingsResponse, error)
}

type alertService struct {
	repo  repository.AlertRepository
	prefs repository.AlertPreferenceRepository
}

func NewAlertService(repo repository.AlertRepository, prefs repository.AlertPreferenceRepository) AlertService {
	return &alertService{repo: repo, prefs: prefs}
}

func (s *alertService) ListActive(ctx context.Context, ownerID uuid.UUID) (*dto.AlertListResponse, error) {
	return s.list(ctx, ownerID, true)
}

func (s *alertService) History(ctx context.Context, ownerID uuid.UUID) (*dto.AlertListResponse, error) {
	return s.list(ctx, ownerID, false)
}

func (s *alertService) list(ctx context.Context, ownerID uuid.UUID, activeOnly bool) (*dto.AlertListResponse, error) {
	alerts, err := s.repo.ListByOwner(ctx, ownerID, activeOnly)
	if err != nil {
		return nil, err
	}
	resp := &dto.AlertListResponse{Alerts: make([]dto.AlertResponse, 0, len(alerts))}
	for i := range alerts {
		a := &alerts[i]
		if !a.Acknowledged {
			resp.UnreadCount++
			if a.Severity == model.SeverityCritical {
				resp.CriticalCount++
			}
		}
		resp.Alerts = append(resp.Alerts, alertToResponse(a))
	}
	return resp, nil
}

func (s *alertService) Acknowledge(ctx context.Context, ownerID uuid.UUID, req dto.AcknowledgeAlertsRequest) (*dto.AcknowledgeAlertsResponse, error) {
	if len(req.AlertIDs) == 0 {
		return nil, fieldError("alert_ids", "at least one id is required")
	}
	ids := make([]uuid.UUID, 0, len(req.AlertIDs))
	for _, raw := range req.AlertIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fieldError("alert_ids", "must contain UUIDs")
		}
		ids = append(ids, id)
	}
	n, err := s.repo.Acknowledge(ctx, ownerID, ids)
	if err != nil {
		return nil, err
	}
	return &dto.AcknowledgeAlertsResponse{Acknowledged: n}, nil
}

func (s *alertService) SweepRecovered(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteRecovered(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		LowStockSignalsTotal.WithLabelValues(AlertCleared.String()).Add(float64(n))
		log.Info().Int64("cleared", n).Msg("recovered low stock alerts swept")
	}
	return n, nil
}

func (s *alertService) GetSettings(ctx context.Context, ownerID uuid.UUID) (*dto.AlertSettingsResponse, error) {
	p, err := s.prefs.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return settingsToResponse(p), nil
}

func (s *alertService) UpdateSettings(ctx context.Context, ownerID uuid.UUID, req dto.UpdateAlertSettingsRequest) (*dto.AlertSettingsResponse, error) {
	p, err := s.prefs.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if req.NotifyEmail != nil {
		p.NotifyEmail = *req.NotifyEmail
	}
	if req.NotifyInApp != nil {
		p.NotifyInApp = *req.NotifyInApp
	}
	if req.Email != nil {
		p.Email = strings.TrimSpace(*req.Email)
	}
	if err := s.prefs.Save(ctx, p); err != nil {
		return nil, err
	}
	log.Info().
		Str("owner_id", ownerID.String()).
		Bool("notify_email", p.NotifyEmail).
		Bool("notify_inapp", p.NotifyInApp).
		Msg("alert settings updated")
	return settingsToResponse(p), nil
}

func settingsToResponse(p *model.AlertPreference) *dto.AlertSettingsResponse {
	return &dto.AlertSettingsResponse{NotifyEmail: p.NotifyEmail, NotifyInApp: p.NotifyInApp, Email: p.Email}
}

func alertToResponse(a *model.LowStockAlert) dto.AlertResponse {
	resp := dto.AlertResponse{
		ID:           a.ID.String(),
		Severity:     a.Severity,
		Message:      a.Message,
		TriggeredAt:  a.TriggeredAt.UTC().Format(time.RFC3339),
		Acknowledged: a.Acknowledged,
		DaysLowStock: a.DaysLowStock,
	}
	resp.Product.ID = a.ProductID.String()
	if a.Product != nil {
		resp.Product.SKU = a.Product.SKU
		resp.Product.Name = a.Product.Name
		resp.Product.Stock = a.Product.Stock
		resp.Product.ReorderLevel = a.Product.ReorderLevel
	}
	return resp
}
