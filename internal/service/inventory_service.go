package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"possync/internal/dto"
	"possync/internal/model"
	"possync/internal/repository"
	"possync/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// AlertOutcome is what the low-stock evaluation did for one product.
type AlertOutcome int

const (
	AlertNone AlertOutcome = iota
	AlertRaised
	AlertRefreshed
	AlertCleared
)

func (o AlertOutcome) String() string {
	switch o {
	case AlertRaised:
		return "raised"
	case AlertRefreshed:
		return "refreshed"
	case AlertCleared:
		return "cleared"
	default:
		return "none"
	}
}

// Movement describes the journal entry written with a stock adjustment.
type Movement struct {
	Type        string
	Reason      string
	PerformedBy uuid.UUID
	ReferenceID *uuid.UUID
}

// LowStockSignal is one alert change produced inside a committed transaction.
type LowStockSignal struct {
	Product *model.Product
	Stock   int
	Outcome AlertOutcome
	Alert   *model.LowStockAlert
}

// LowStockNotifier receives the alerts a committed transaction raised or refreshed.
type LowStockNotifier interface {
	EnqueueLowStock(ctx context.Context, payload worker.LowStockJobPayload) error
}

// InventoryService owns stock mutation and the low-stock signal.
type InventoryService interface {
	// AdjustStockTx applies delta to a tracked product's stock atomically and
	// journals the movement. There is no floor: the result may be negative.
	AdjustStockTx(tx *gorm.DB, product *model.Product, delta int, mov Movement) (*model.StockMovement, error)
	// EvaluateLowStockTx raises or refreshes the product's active alert when
	// newStock is strictly below its reorder level, and clears it otherwise.
	EvaluateLowStockTx(tx *gorm.DB, product *model.Product, newStock int, at time.Time) (AlertOutcome, *model.LowStockAlert, error)
	// RecordMovement applies a manual restock or correction in its own
	// transaction and re-evaluates the product's alert.
	RecordMovement(ctx context.Context, ownerID uuid.UUID, req dto.CreateMovementRequest) (*dto.StockMovementResponse, error)
	// NotifyLowStock enqueues e-mail notices for committed signals, honouring
	// the owner's alert preferences. Failures are logged, never returned.
	NotifyLowStock(ctx context.Context, ownerID uuid.UUID, signals []LowStockSignal)
	ListMovements(ctx context.Context, ownerID uuid.UUID, filter dto.MovementFilter) (*dto.StockMovementListResponse, error)
}

type inventoryService struct {
	products  repository.ProductRepository
	movements repository.StockMovementRepository
	alerts    repository.AlertRepository
	prefs     repository.AlertPreferenceRepository
	notifier  LowStockNotifier
	cache     *AnalyticsCache
}

// NewInventoryService wires stock handling. prefs, notifier and cache may be nil.
func NewInventoryService(
	products repository.ProductRepository,
	movements repository.StockMovementRepository,
	alerts repository.AlertRepository,
	prefs repository.AlertPreferenceRepository,
	notifier LowStockNotifier,
	cache *AnalyticsCache,
) InventoryService {
	return &inventoryService{
		products:  products,
		movements: movements,
		alerts:    alerts,
		prefs:     prefs,
		notifier:  notifier,
		cache:     cache,
	}
}

// ErrVolatileStock is returned when stock adjustment is requested for a
// product that does not track stock.
var ErrVolatileStock = errors.New("stock is not tracked for volatile products")

func (s *inventoryService) AdjustStockTx(tx *gorm.DB, product *model.Product, delta int, mov Movement) (*model.StockMovement, error) {
	if product.IsVolatile {
		return nil, ErrVolatileStock
	}
	newStock, err := s.products.AdjustStockTx(tx, product.ID, delta)
	if err != nil {
		return nil, fmt.Errorf("adjust stock of %s: %w", product.SKU, err)
	}

	by := mov.PerformedBy
	m := &model.StockMovement{
		ProductID:      product.ID,
		MovementType:   mov.Type,
		Delta:          delta,
		ResultingStock: newStock,
		PerformedBy:    &by,
		Reason:         mov.Reason,
		ReferenceID:    mov.ReferenceID,
	}
	if err := s.movements.CreateTx(tx, m); err != nil {
		return nil, fmt.Errorf("record stock movement: %w", err)
	}
	return m, nil
}

func (s *inventoryService) RecordMovement(ctx context.Context, ownerID uuid.UUID, req dto.CreateMovementRequest) (*dto.StockMovementResponse, error) {
	id, err := uuid.Parse(strings.TrimSpace(req.ProductID))
	if err != nil {
		return nil, fieldError("product_id", "must be a UUID")
	}
	if req.Delta == 0 {
		return nil, fieldError("delta", "must not be zero")
	}

	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("load product %s: %w", id, err)
	}
	if p.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, id)
	}
	if p.IsVolatile {
		return nil, fieldError("product_id", ErrVolatileStock.Error())
	}
	if !p.Active {
		return nil, fieldError("product_id", "product is inactive")
	}

	mov := Movement{Type: model.MovementAdjustment, Reason: "Manual adjustment", PerformedBy: ownerID}
	if req.Delta > 0 {
		mov.Type, mov.Reason = model.MovementRestock, "Manual restock"
	}
	if r := strings.TrimSpace(req.Reason); r != "" {
		mov.Reason = r
	}

	var (
		recorded *model.StockMovement
		signals  []LowStockSignal
	)
	now := time.Now().UTC()
	txErr := runTx(ctx, s.products.DB(), func(tx *gorm.DB) error {
		signals = signals[:0]
		m, err := s.AdjustStockTx(tx, p, req.Delta, mov)
		if err != nil {
			return err
		}
		outcome, alert, err := s.EvaluateLowStockTx(tx, p, m.ResultingStock, now)
		if err != nil {
			return err
		}
		if outcome != AlertNone {
			signals = append(signals, LowStockSignal{Product: p, Stock: m.ResultingStock, Outcome: outcome, Alert: alert})
		}
		recorded = m
		return nil
	})
	if txErr != nil {
		log.Error().Err(txErr).Str("product_id", id.String()).Msg("stock movement rolled back")
		return nil, fmt.Errorf("stock movement: %w", txErr)
	}

	s.cache.Invalidate(ctx, []uuid.UUID{p.ID})
	s.NotifyLowStock(ctx, ownerID, signals)

	log.Info().
		Str("product_id", p.ID.String()).
		Str("type", recorded.MovementType).
		Int("delta", recorded.Delta).
		Int("stock", recorded.ResultingStock).
		Msg("stock movement recorded")

	recorded.Product = p
	resp := movementToResponse(recorded)
	return &resp, nil
}

func (s *inventoryService) NotifyLowStock(ctx context.Context, ownerID uuid.UUID, signals []LowStockSignal) {
	if s.notifier == nil || len(signals) == 0 {
		return
	}
	pref := s.preference(ctx, ownerID)
	for _, sig := range signals {
		LowStockSignalsTotal.WithLabelValues(sig.Outcome.String()).Inc()
		if sig.Alert == nil {
			continue
		}
		if !pref.NotifyEmail {
			log.Debug().Str("product_id", sig.Product.ID.String()).Msg("e-mail notices disabled for owner")
			continue
		}
		payload := worker.LowStockJobPayload{
			AlertID:      sig.Alert.ID.String(),
			OwnerID:      ownerID.String(),
			ProductID:    sig.Product.ID.String(),
			SKU:          sig.Product.SKU,
			ProductName:  sig.Product.Name,
			Severity:     sig.Alert.Severity,
			Message:      sig.Alert.Message,
			Stock:        sig.Stock,
			ReorderLevel: *sig.Product.ReorderLevel,
			Outcome:      sig.Outcome.String(),
			To:           pref.Email,
		}
		if err := s.notifier.EnqueueLowStock(ctx, payload); err != nil {
			log.Warn().Err(err).Str("product_id", payload.ProductID).Msg("failed to enqueue low stock notice")
		}
	}
}

// preference falls back to the defaults when no repository is wired or the
// lookup fails.
func (s *inventoryService) preference(ctx context.Context, ownerID uuid.UUID) *model.AlertPreference {
	if s.prefs == nil {
		return model.DefaultAlertPreference(ownerID)
	}
	pref, err := s.prefs.Get(ctx, ownerID)
	if err != nil {
		log.Warn().Err(err).Str("owner_id", ownerID.String()).Msg("load alert preference failed, using defaults")
		return model.DefaultAlertPreference(ownerID)
	}
	return pref
}

func (s *inventoryService) EvaluateLowStockTx(tx *gorm.DB, product *model.Product, newStock int, at time.Time) (AlertOutcome, *model.LowStockAlert, error) {
	if product.IsVolatile || product.ReorderLevel == nil {
		return AlertNone, nil, nil
	}
	reorder := *product.ReorderLevel

	if newStock >= reorder {
		n, err := s.alerts.ClearActiveTx(tx, product.ID)
		if err != nil {
			return AlertNone, nil, fmt.Errorf("clear alert: %w", err)
		}
		if n > 0 {
			return AlertCleared, nil, nil
		}
		return AlertNone, nil, nil
	}

	severity := classifySeverity(newStock, reorder)
	alert := &model.LowStockAlert{
		ProductID:   product.ID,
		Severity:    severity,
		Message:     lowStockMessage(severity, newStock, reorder),
		TriggeredAt: at,
	}
	created, err := s.alerts.UpsertActiveTx(tx, alert)
	if err != nil {
		return AlertNone, nil, fmt.Errorf("upsert alert: %w", err)
	}
	outcome := AlertRefreshed
	if created {
		outcome = AlertRaised
	}
	log.Debug().
		Str("product_id", product.ID.String()).
		Int("stock", newStock).
		Int("reorder_level", reorder).
		Str("severity", severity).
		Str("outcome", outcome.String()).
		Msg("low stock evaluated")
	return outcome, alert, nil
}

func (s *inventoryService) ListMovements(ctx context.Context, ownerID uuid.UUID, filter dto.MovementFilter) (*dto.StockMovementListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 100
	}
	f := repository.StockMovementFilter{OwnerID: ownerID, Page: filter.Page, Limit: filter.Limit}
	if filter.ProductID != "" {
		pid, err := uuid.Parse(filter.ProductID)
		if err != nil {
			return nil, fieldError("product_id", "must be a UUID")
		}
		f.ProductID = &pid
	}

	movements, total, err := s.movements.List(ctx, f)
	if err != nil {
		return nil, err
	}
	data := make([]dto.StockMovementResponse, 0, len(movements))
	for _, m := range movements {
		data = append(data, movementToResponse(&m))
	}
	return &dto.StockMovementListResponse{Data: data, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

// classifySeverity grades how far below the reorder level stock is.
func classifySeverity(stock, reorder int) string {
	ratio := float64(stock) / float64(max(reorder, 1))
	switch {
	case ratio <= 0.2:
		return model.SeverityCritical
	case ratio <= 0.5:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

func lowStockMessage(severity string, stock, reorder int) string {
	switch severity {
	case model.SeverityCritical:
		return fmt.Sprintf("Stock critically low: %d units remaining (reorder level %d)", stock, reorder)
	case model.SeverityWarning:
		return fmt.Sprintf("Stock running low: %d units remaining (reorder level %d)", stock, reorder)
	default:
		return fmt.Sprintf("Stock below reorder level: %d units remaining (reorder level %d)", stock, reorder)
	}
}

func movementToResponse(m *model.StockMovement) dto.StockMovementResponse {
	resp := dto.StockMovementResponse{
		ID:             m.ID.String(),
		ProductID:      m.ProductID.String(),
		MovementType:   m.MovementType,
		Delta:          m.Delta,
		ResultingStock: m.ResultingStock,
		Reason:         m.Reason,
		CreatedAt:      m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.Product != nil {
		resp.SKU = m.Product.SKU
		resp.ProductName = m.Product.Name
	}
	if m.PerformedBy != nil {
		by := m.PerformedBy.String()
		resp.PerformedBy = &by
	}
	if m.ReferenceID != nil {
		ref := m.ReferenceID.String()
		resp.ReferenceID = &ref
	}
	return resp
}
