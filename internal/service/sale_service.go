package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"possync/internal/dto"
	"possync/internal/model"
	"possync/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	quantityPlaces = 3
	pricePlaces    = 2

	maxLabelLen = 64
	maxSKULen   = 64
	maxNameLen  = 255
	maxUnitLen  = 32
)

var maxQuantity = decimal.NewFromInt(1_000_000_000)

type SaleService interface {
	SubmitSale(ctx context.Context, ownerID uuid.UUID, req dto.SubmitSaleRequest) (*dto.SubmitSaleResponse, error)
	GetSale(ctx context.Context, ownerID, id uuid.UUID) (*dto.SaleResponse, error)
	ListSales(ctx context.Context, ownerID uuid.UUID, filter dto.SaleFilter) (*dto.SaleListResponse, error)
	// SyncBatch ingests a device's offline queue in order, one transaction per sale.
	SyncBatch(ctx context.Context, ownerID uuid.UUID, req dto.SyncBatchRequest) (*dto.SyncBatchResponse, error)
}

type saleService struct {
	repo      repository.SaleRepository
	products  repository.ProductRepository
	inventory InventoryService
	ledger    *IdempotencyLedger
	cache     *AnalyticsCache
}

// NewSaleService wires the ingestion transaction. cache may be nil.
// Low-stock notices go out through inventory.NotifyLowStock.
func NewSaleService(
	repo repository.SaleRepository,
	products repository.ProductRepository,
	inventory InventoryService,
	cache *AnalyticsCache,
) SaleService {
	return &saleService{
		repo:      repo,
		products:  products,
		inventory: inventory,
		ledger:    NewIdempotencyLedger(repo),
		cache:     cache,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── SubmitSale ───────────────────────────────────────────────────────────────
//   1. Idempotency: return the stored sale for a known external_id
//   2. Pre-flight (no writes): resolve products, validate lines, compute totals
//   3. BEGIN TX: inline products, sale + items, price suggestions (volatile),
//      stock deltas (tracked), low-stock signals, synced marker
//   4. COMMIT; a lost external_id race becomes a read of the winner
//   5. (post-commit) cache invalidation and low-stock notifications

type plannedLine struct {
	product  *model.Product
	quantity decimal.Decimal
	price    decimal.Decimal
	subtotal decimal.Decimal
}

type salePlan struct {
	lines       []plannedLine
	newProducts []*model.Product
	total       decimal.Decimal
}

func (s *saleService) SubmitSale(ctx context.Context, ownerID uuid.UUID, req dto.SubmitSaleRequest) (*dto.SubmitSaleResponse, error) {
	start := time.Now()

	// 1. Idempotency
	res, err := s.ledger.ResolveOrReserve(ctx, ownerID, req.ExternalID)
	if err != nil {
		SalesIngestedTotal.WithLabelValues(dto.SaleStatusRejected).Inc()
		return nil, err
	}
	if res.Hit() {
		SalesIngestedTotal.WithLabelValues(dto.SaleStatusExisting).Inc()
		log.Info().
			Str("sale_id", res.Existing.ID.String()).
			Str("external_id", res.Key).
			Msg("sale replay: returning existing sale")
		return &dto.SubmitSaleResponse{Status: dto.SaleStatusExisting, Sale: saleToResponse(res.Existing, nil)}, nil
	}

	// 2. Pre-flight
	if req.DeviceLabel != nil && utf8.RuneCountInString(strings.TrimSpace(*req.DeviceLabel)) > maxLabelLen {
		SalesIngestedTotal.WithLabelValues(dto.SaleStatusRejected).Inc()
		return nil, fieldError("device_label", fmt.Sprintf("must be at most %d characters", maxLabelLen))
	}
	plan, err := s.planSale(ctx, ownerID, req.Items)
	if err != nil {
		SalesIngestedTotal.WithLabelValues(dto.SaleStatusRejected).Inc()
		return nil, err
	}

	receivedAt := time.Now().UTC()
	clientAt := receivedAt
	if req.ClientCreatedAt != nil && !req.ClientCreatedAt.IsZero() {
		clientAt = req.ClientCreatedAt.UTC()
	}

	sale := &model.Sale{
		ID:              uuid.New(),
		ExternalID:      res.Key,
		OwnerID:         ownerID,
		TotalAmount:     plan.total,
		ReceivedAt:      receivedAt,
		ClientCreatedAt: clientAt,
		DeviceLabel:     trimmedOrNil(req.DeviceLabel),
	}
	for _, l := range plan.lines {
		sale.Items = append(sale.Items, model.SaleItem{
			ID:        uuid.New(),
			SaleID:    sale.ID,
			ProductID: l.product.ID,
			Quantity:  l.quantity,
			UnitPrice: l.price,
			Subtotal:  l.subtotal,
		})
	}

	// 3. ACID transaction
	var signals []LowStockSignal
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		signals = signals[:0]

		for _, p := range plan.newProducts {
			if err := s.products.CreateTx(tx, p); err != nil {
				return fmt.Errorf("create product %s: %w", p.SKU, err)
			}
		}

		if err := s.repo.Create(ctx, tx, sale); err != nil {
			return err
		}

		// Volatile products: the last unit price charged becomes the suggestion.
		suggested, volatileOrder := volatilePrices(plan.lines)
		for _, id := range volatileOrder {
			if err := s.products.UpdatePriceTx(tx, id, suggested[id]); err != nil {
				return fmt.Errorf("update price suggestion: %w", err)
			}
		}

		// Tracked products: one accumulated delta per product, applied in id
		// order so concurrent sales lock rows in the same sequence. Products
		// whose lines sum to zero are neither touched nor journalled.
		deltas, tracked := trackedDeltas(plan.lines)
		stock := make(map[uuid.UUID]int, len(tracked))
		saleRef := sale.ID
		mov := Movement{
			Type:        model.MovementSale,
			Reason:      "Sale " + sale.ID.String(),
			PerformedBy: ownerID,
			ReferenceID: &saleRef,
		}
		for _, p := range tracked {
			m, err := s.inventory.AdjustStockTx(tx, p, -deltas[p.ID], mov)
			if err != nil {
				return err
			}
			stock[p.ID] = m.ResultingStock
		}

		for _, p := range tracked {
			outcome, alert, err := s.inventory.EvaluateLowStockTx(tx, p, stock[p.ID], receivedAt)
			if err != nil {
				return err
			}
			if outcome != AlertNone {
				signals = append(signals, LowStockSignal{Product: p, Stock: stock[p.ID], Outcome: outcome, Alert: alert})
			}
		}

		syncedAt := time.Now().UTC()
		if err := s.repo.MarkSyncedTx(tx, sale.ID, syncedAt); err != nil {
			return fmt.Errorf("mark synced: %w", err)
		}
		sale.SyncedAt = &syncedAt
		return nil
	})

	// 4. Lost race on external_id → read the winner
	if txErr != nil {
		winner, ok, err := s.ledger.ResolveConflict(ctx, ownerID, res.Key, txErr)
		if err != nil {
			SalesIngestedTotal.WithLabelValues(dto.SaleStatusRejected).Inc()
			return nil, err
		}
		if ok {
			SalesIngestedTotal.WithLabelValues(dto.SaleStatusExisting).Inc()
			log.Info().
				Str("sale_id", winner.ID.String()).
				Str("external_id", res.Key).
				Msg("concurrent submission lost the external_id race: returning winner")
			return &dto.SubmitSaleResponse{Status: dto.SaleStatusExisting, Sale: saleToResponse(winner, nil)}, nil
		}
		SalesIngestedTotal.WithLabelValues(dto.SaleStatusFailed).Inc()
		log.Error().Err(txErr).Str("external_id", res.Key).Msg("sale transaction rolled back")
		return nil, fmt.Errorf("sale transaction: %w", txErr)
	}

	SaleIngestDuration.Observe(time.Since(start).Seconds())
	SalesIngestedTotal.WithLabelValues(dto.SaleStatusCreated).Inc()

	// 5. Post-commit side channels (best effort)
	s.cache.Invalidate(ctx, touchedProducts(plan.lines))
	s.inventory.NotifyLowStock(ctx, ownerID, signals)

	log.Info().
		Str("sale_id", sale.ID.String()).
		Str("external_id", sale.ExternalID).
		Int("items", len(sale.Items)).
		Str("total", sale.TotalAmount.String()).
		Int("signals", len(signals)).
		Msg("sale created")

	names := make(map[uuid.UUID]string, len(plan.lines))
	for _, l := range plan.lines {
		names[l.product.ID] = l.product.Name
	}
	return &dto.SubmitSaleResponse{Status: dto.SaleStatusCreated, Sale: saleToResponse(sale, names)}, nil
}

// planSale validates every line and resolves its product without writing.
// Field problems are collected and returned together; a missing or foreign
// product reference aborts immediately.
func (s *saleService) planSale(ctx context.Context, ownerID uuid.UUID, items []dto.SaleItemRequest) (*salePlan, error) {
	if len(items) == 0 {
		return nil, fieldError("items", "at least one item is required")
	}

	verr := &ValidationError{}
	plan := &salePlan{total: decimal.Zero}
	byID := make(map[uuid.UUID]*model.Product)
	bySKU := make(map[string]*model.Product)

	for i, item := range items {
		field := fmt.Sprintf("items[%d]", i)

		product, err := s.resolveProduct(ctx, ownerID, item, field, byID, bySKU, plan, verr)
		if err != nil {
			return nil, err
		}

		qty, qtyOK := validateQuantity(item.Quantity, field+".quantity", verr)
		price, priceOK := validatePrice(item.UnitPrice, field+".unit_price", verr)
		if product == nil || !qtyOK || !priceOK {
			continue
		}
		if product.IsTracked() && !qty.IsInteger() {
			verr.add(field+".quantity", "must be a whole number for stock-tracked products")
			continue
		}

		subtotal := qty.Mul(price)
		plan.total = plan.total.Add(subtotal)
		plan.lines = append(plan.lines, plannedLine{
			product:  product,
			quantity: qty,
			price:    price,
			subtotal: subtotal,
		})
	}

	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *saleService) resolveProduct(
	ctx context.Context,
	ownerID uuid.UUID,
	item dto.SaleItemRequest,
	field string,
	byID map[uuid.UUID]*model.Product,
	bySKU map[string]*model.Product,
	plan *salePlan,
	verr *ValidationError,
) (*model.Product, error) {
	hasRef := item.ProductID != nil && strings.TrimSpace(*item.ProductID) != ""
	hasInline := item.Product != nil
	if hasRef == hasInline {
		verr.add(field, "exactly one of product_id or product is required")
		return nil, nil
	}

	if hasRef {
		id, err := uuid.Parse(strings.TrimSpace(*item.ProductID))
		if err != nil {
			verr.add(field+".product_id", "must be a UUID")
			return nil, nil
		}
		if p, ok := byID[id]; ok {
			return p, nil
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
		if !p.Active {
			verr.add(field+".product_id", "product is inactive")
			return nil, nil
		}
		byID[id] = p
		bySKU[p.SKU] = p
		return p, nil
	}

	in := item.Product
	sku := strings.TrimSpace(in.SKU)
	name := strings.TrimSpace(in.Name)
	if sku == "" {
		verr.add(field+".product.sku", "required")
	}
	if name == "" {
		verr.add(field+".product.name", "required")
	}
	if sku == "" || name == "" {
		return nil, nil
	}
	if !checkLen(sku, maxSKULen, field+".product.sku", verr) ||
		!checkLen(name, maxNameLen, field+".product.name", verr) ||
		!checkLen(strings.TrimSpace(in.Unit), maxUnitLen, field+".product.unit", verr) {
		return nil, nil
	}
	if p, ok := bySKU[sku]; ok {
		return p, nil
	}

	existing, err := s.products.FindBySKU(ctx, sku)
	switch {
	case err == nil:
		if existing.OwnerID != ownerID {
			verr.add(field+".product.sku", "already used by another owner")
			return nil, nil
		}
		if !existing.Active {
			verr.add(field+".product.sku", "product is inactive")
			return nil, nil
		}
		byID[existing.ID] = existing
		bySKU[sku] = existing
		return existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("load product by sku %s: %w", sku, err)
	}

	if in.ReorderLevel != nil && *in.ReorderLevel < 0 {
		verr.add(field+".product.reorder_level", "must be >= 0")
		return nil, nil
	}

	p := &model.Product{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		SKU:         sku,
		Name:        name,
		Description: in.Description,
		Unit:        strings.TrimSpace(in.Unit),
		IsVolatile:  in.IsVolatile,
		Active:      true,
	}
	if p.Unit == "" {
		p.Unit = "unit"
	}
	switch {
	case in.Price != nil:
		p.Price = in.Price.Round(pricePlaces)
	case item.UnitPrice != nil:
		p.Price = item.UnitPrice.Round(pricePlaces)
	}
	if !p.IsVolatile {
		stock := 0
		if in.Stock != nil {
			stock = *in.Stock
		}
		p.Stock = &stock
		p.ReorderLevel = in.ReorderLevel
	}

	plan.newProducts = append(plan.newProducts, p)
	byID[p.ID] = p
	bySKU[sku] = p
	return p, nil
}

func checkLen(v string, limit int, field string, verr *ValidationError) bool {
	if utf8.RuneCountInString(v) > limit {
		verr.add(field, fmt.Sprintf("must be at most %d characters", limit))
		return false
	}
	return true
}

func validateQuantity(q *decimal.Decimal, field string, verr *ValidationError) (decimal.Decimal, bool) {
	switch {
	case q == nil:
		verr.add(field, "required")
	case q.IsNegative():
		verr.add(field, "must be >= 0")
	case !q.Equal(q.Truncate(quantityPlaces)):
		verr.add(field, fmt.Sprintf("at most %d decimal places", quantityPlaces))
	case q.GreaterThan(maxQuantity):
		verr.add(field, "too large")
	default:
		return *q, true
	}
	return decimal.Zero, false
}

func validatePrice(p *decimal.Decimal, field string, verr *ValidationError) (decimal.Decimal, bool) {
	switch {
	case p == nil:
		verr.add(field, "required")
	case p.IsNegative():
		verr.add(field, "must be >= 0")
	case !p.Equal(p.Truncate(pricePlaces)):
		verr.add(field, fmt.Sprintf("at most %d decimal places", pricePlaces))
	default:
		return *p, true
	}
	return decimal.Zero, false
}

// volatilePrices returns, per volatile product, the unit price of its last
// line, plus the products in first-seen order.
func volatilePrices(lines []plannedLine) (map[uuid.UUID]decimal.Decimal, []uuid.UUID) {
	prices := make(map[uuid.UUID]decimal.Decimal)
	var order []uuid.UUID
	for _, l := range lines {
		if !l.product.IsVolatile {
			continue
		}
		if _, seen := prices[l.product.ID]; !seen {
			order = append(order, l.product.ID)
		}
		prices[l.product.ID] = l.price
	}
	return prices, order
}

// trackedDeltas sums sold quantities per tracked product. Products whose
// quantities sum to zero are left out; the rest are returned sorted by id.
func trackedDeltas(lines []plannedLine) (map[uuid.UUID]int, []*model.Product) {
	deltas := make(map[uuid.UUID]int)
	var products []*model.Product
	for _, l := range lines {
		if l.product.IsVolatile {
			continue
		}
		if _, seen := deltas[l.product.ID]; !seen {
			products = append(products, l.product)
		}
		deltas[l.product.ID] += int(l.quantity.IntPart())
	}
	kept := products[:0]
	for _, p := range products {
		if deltas[p.ID] != 0 {
			kept = append(kept, p)
		}
	}
	products = kept
	sort.Slice(products, func(i, j int) bool {
		return products[i].ID.String() < products[j].ID.String()
	})
	return deltas, products
}

func touchedProducts(lines []plannedLine) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(lines))
	var ids []uuid.UUID
	for _, l := range lines {
		if !seen[l.product.ID] {
			seen[l.product.ID] = true
			ids = append(ids, l.product.ID)
		}
	}
	return ids
}

// ── SyncBatch ────────────────────────────────────────────────────────────────

func (s *saleService) SyncBatch(ctx context.Context, ownerID uuid.UUID, req dto.SyncBatchRequest) (*dto.SyncBatchResponse, error) {
	resp := &dto.SyncBatchResponse{Results: make([]dto.SyncResult, 0, len(req.Sales))}
	for i, sale := range req.Sales {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result := dto.SyncResult{Index: i}
		out, err := s.SubmitSale(ctx, ownerID, sale)
		switch {
		case err == nil:
			result.Status = out.Status
			result.Sale = &out.Sale
		case isClientError(err):
			result.Status = dto.SaleStatusRejected
			result.Error = err.Error()
			var verr *ValidationError
			if errors.As(err, &verr) {
				result.Error = ErrValidation.Error()
				result.Fields = verr.Fields
			}
		default:
			result.Status = dto.SaleStatusFailed
			result.Error = "internal error"
			result.Retryable = true
		}

		switch result.Status {
		case dto.SaleStatusCreated:
			resp.Created++
		case dto.SaleStatusExisting:
			resp.Existing++
		case dto.SaleStatusRejected:
			resp.Rejected++
		default:
			resp.Failed++
		}
		resp.Results = append(resp.Results, result)
	}

	log.Info().
		Str("owner_id", ownerID.String()).
		Int("created", resp.Created).
		Int("existing", resp.Existing).
		Int("rejected", resp.Rejected).
		Int("failed", resp.Failed).
		Msg("sync batch processed")
	return resp, nil
}

// isClientError reports whether err is the caller's fault and resubmitting
// the same payload cannot succeed.
func isClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrIdempotencyKeyInUse)
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (s *saleService) GetSale(ctx context.Context, ownerID, id uuid.UUID) (*dto.SaleResponse, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	if sale.OwnerID != ownerID {
		return nil, ErrSaleNotFound
	}
	resp := saleToResponse(sale, nil)
	return &resp, nil
}

// ListSales returns the caller's sales, newest first.
func (s *saleService) ListSales(ctx context.Context, ownerID uuid.UUID, filter dto.SaleFilter) (*dto.SaleListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	sales, total, err := s.repo.List(ctx, ownerID, filter.Page, filter.Limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.SaleResponse, 0, len(sales))
	for i := range sales {
		data = append(data, saleToResponse(&sales[i], nil))
	}
	return &dto.SaleListResponse{Data: data, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

func saleToResponse(s *model.Sale, names map[uuid.UUID]string) dto.SaleResponse {
	items := make([]dto.SaleItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		name := names[it.ProductID]
		if it.Product != nil {
			name = it.Product.Name
		}
		items = append(items, dto.SaleItemResponse{
			ID:        it.ID.String(),
			ProductID: it.ProductID.String(),
			Product:   name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	resp := dto.SaleResponse{
		ID:              s.ID.String(),
		ExternalID:      s.ExternalID,
		OwnerID:         s.OwnerID.String(),
		TotalAmount:     s.TotalAmount,
		DeviceLabel:     s.DeviceLabel,
		ReceivedAt:      s.ReceivedAt.UTC().Format(time.RFC3339Nano),
		ClientCreatedAt: s.ClientCreatedAt.UTC().Format(time.RFC3339Nano),
		Items:           items,
	}
	if s.SyncedAt != nil {
		at := s.SyncedAt.UTC().Format(time.RFC3339Nano)
		resp.SyncedAt = &at
	}
	return resp
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
