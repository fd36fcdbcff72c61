package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"possync/internal/model"
	"possync/internal/repository"
	"possync/internal/worker"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────
// In-memory repositories. Transactions are not emulated: services receive a
// nil *gorm.DB from runTx and the stubs apply writes immediately. Every stub
// is safe for concurrent use so the idempotency race can be exercised.

type stubProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*model.Product
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{products: make(map[uuid.UUID]*model.Product)}
}

func (r *stubProductRepo) add(p model.Product) *model.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Unit == "" {
		p.Unit = "unit"
	}
	p.Active = true
	r.products[p.ID] = &p
	return &p
}

// get returns a snapshot of the stored product.
func (r *stubProductRepo) get(id uuid.UUID) *model.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil
	}
	return cloneProduct(p)
}

func (r *stubProductRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.products)
}

func cloneProduct(p *model.Product) *model.Product {
	cp := *p
	if p.Stock != nil {
		s := *p.Stock
		cp.Stock = &s
	}
	if p.ReorderLevel != nil {
		rl := *p.ReorderLevel
		cp.ReorderLevel = &rl
	}
	return &cp
}

func (r *stubProductRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	if p := r.get(id); p != nil {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubProductRepo) FindBySKU(_ context.Context, sku string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.SKU == sku {
			return cloneProduct(p), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubProductRepo) CreateTx(_ *gorm.DB, p *model.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.products {
		if existing.SKU == p.SKU {
			return gorm.ErrDuplicatedKey
		}
	}
	r.products[p.ID] = cloneProduct(p)
	return nil
}

func (r *stubProductRepo) AdjustStockTx(_ *gorm.DB, id uuid.UUID, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok || p.IsVolatile {
		return 0, repository.ErrNotTracked
	}
	s := 0
	if p.Stock != nil {
		s = *p.Stock
	}
	s += delta
	p.Stock = &s
	return s, nil
}

func (r *stubProductRepo) UpdatePriceTx(_ *gorm.DB, id uuid.UUID, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok && p.IsVolatile {
		p.Price = price
	}
	return nil
}

func (r *stubProductRepo) DB() *gorm.DB { return nil }

var _ repository.ProductRepository = (*stubProductRepo)(nil)

// stubSaleRepo emulates the unique index on external_id.
type stubSaleRepo struct {
	mu         sync.Mutex
	sales      map[uuid.UUID]*model.Sale
	byExternal map[string]*model.Sale
	products   *stubProductRepo
	createErr  error
}

func newStubSaleRepo(products *stubProductRepo) *stubSaleRepo {
	return &stubSaleRepo{
		sales:      make(map[uuid.UUID]*model.Sale),
		byExternal: make(map[string]*model.Sale),
		products:   products,
	}
}

func (r *stubSaleRepo) Create(_ context.Context, _ *gorm.DB, s *model.Sale) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if _, dup := r.byExternal[s.ExternalID]; dup {
		return gorm.ErrDuplicatedKey
	}
	cp := *s
	cp.Items = append([]model.SaleItem(nil), s.Items...)
	r.sales[s.ID] = &cp
	r.byExternal[s.ExternalID] = &cp
	return nil
}

func (r *stubSaleRepo) MarkSyncedTx(_ *gorm.DB, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sales[id]; ok && s.SyncedAt == nil {
		s.SyncedAt = &at
	}
	return nil
}

func (r *stubSaleRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sales[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *stubSaleRepo) FindByExternalID(_ context.Context, externalID string) (*model.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byExternal[externalID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *stubSaleRepo) List(_ context.Context, ownerID uuid.UUID, page, limit int) ([]model.Sale, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Sale
	for _, s := range r.sales {
		if s.OwnerID == ownerID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	total := int64(len(out))
	start := (page - 1) * limit
	if start >= len(out) {
		return nil, total, nil
	}
	end := min(start+limit, len(out))
	return out[start:end], total, nil
}

func (r *stubSaleRepo) ListProductLines(_ context.Context, productID uuid.UUID, from, to time.Time, byClientTime bool) ([]repository.ProductLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var lines []repository.ProductLine
	for _, s := range r.sales {
		at := s.ReceivedAt
		if byClientTime {
			at = s.ClientCreatedAt
		}
		if at.Before(from) || !at.Before(to) {
			continue
		}
		for _, it := range s.Items {
			if it.ProductID == productID {
				lines = append(lines, repository.ProductLine{
					SaleID: s.ID, Quantity: it.Quantity, Subtotal: it.Subtotal, SoldAt: at,
				})
			}
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].SoldAt.Before(lines[j].SoldAt) })
	return lines, nil
}

func (r *stubSaleRepo) DB() *gorm.DB { return nil }

func (r *stubSaleRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sales)
}

func (r *stubSaleRepo) itemCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sales {
		n += len(s.Items)
	}
	return n
}

var _ repository.SaleRepository = (*stubSaleRepo)(nil)

type stubMovementRepo struct {
	mu        sync.Mutex
	movements []model.StockMovement
}

func (r *stubMovementRepo) CreateTx(_ *gorm.DB, m *model.StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	r.movements = append(r.movements, *m)
	return nil
}

func (r *stubMovementRepo) List(_ context.Context, f repository.StockMovementFilter) ([]model.StockMovement, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.StockMovement
	for _, m := range r.movements {
		if f.ProductID == nil || m.ProductID == *f.ProductID {
			out = append(out, m)
		}
	}
	return out, int64(len(out)), nil
}

func (r *stubMovementRepo) all() []model.StockMovement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.StockMovement(nil), r.movements...)
}

var _ repository.StockMovementRepository = (*stubMovementRepo)(nil)

// stubAlertRepo keeps at most one unacknowledged alert per product, like the
// partial unique index does.
type stubAlertRepo struct {
	mu       sync.Mutex
	alerts   []*model.LowStockAlert
	products *stubProductRepo
}

func newStubAlertRepo(products *stubProductRepo) *stubAlertRepo {
	return &stubAlertRepo{products: products}
}

func (r *stubAlertRepo) activeLocked(productID uuid.UUID) *model.LowStockAlert {
	for _, a := range r.alerts {
		if a.ProductID == productID && !a.Acknowledged {
			return a
		}
	}
	return nil
}

func (r *stubAlertRepo) active(productID uuid.UUID) *model.LowStockAlert {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a := r.activeLocked(productID); a != nil {
		cp := *a
		return &cp
	}
	return nil
}

func (r *stubAlertRepo) UpsertActiveTx(_ *gorm.DB, a *model.LowStockAlert) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur := r.activeLocked(a.ProductID); cur != nil {
		if a.TriggeredAt.Truncate(24 * time.Hour).After(cur.TriggeredAt.Truncate(24 * time.Hour)) {
			cur.DaysLowStock++
		}
		cur.Severity = a.Severity
		cur.Message = a.Message
		cur.TriggeredAt = a.TriggeredAt
		a.ID = cur.ID
		a.DaysLowStock = cur.DaysLowStock
		return false, nil
	}
	a.ID = uuid.New()
	cp := *a
	r.alerts = append(r.alerts, &cp)
	return true, nil
}

func (r *stubAlertRepo) ClearActiveTx(_ *gorm.DB, productID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.alerts {
		if a.ProductID == productID && !a.Acknowledged {
			r.alerts = append(r.alerts[:i], r.alerts[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (r *stubAlertRepo) ListByOwner(_ context.Context, ownerID uuid.UUID, activeOnly bool) ([]model.LowStockAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LowStockAlert
	for _, a := range r.alerts {
		p := r.products.get(a.ProductID)
		if p == nil || p.OwnerID != ownerID || (activeOnly && a.Acknowledged) {
			continue
		}
		cp := *a
		cp.Product = p
		out = append(out, cp)
	}
	return out, nil
}

func (r *stubAlertRepo) Acknowledge(_ context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.alerts {
		for _, id := range ids {
			if a.ID != id || a.Acknowledged {
				continue
			}
			if p := r.products.get(a.ProductID); p != nil && p.OwnerID == ownerID {
				a.Acknowledged = true
				n++
			}
		}
	}
	return n, nil
}

func (r *stubAlertRepo) DeleteRecovered(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*model.LowStockAlert
	var n int64
	for _, a := range r.alerts {
		p := r.products.get(a.ProductID)
		recovered := p == nil || p.IsVolatile || p.ReorderLevel == nil || p.Stock == nil || *p.Stock >= *p.ReorderLevel
		if !a.Acknowledged && recovered {
			n++
			continue
		}
		kept = append(kept, a)
	}
	r.alerts = kept
	return n, nil
}

var _ repository.AlertRepository = (*stubAlertRepo)(nil)

type stubPrefRepo struct {
	mu    sync.Mutex
	prefs map[uuid.UUID]model.AlertPreference
	err   error
}

func newStubPrefRepo() *stubPrefRepo {
	return &stubPrefRepo{prefs: make(map[uuid.UUID]model.AlertPreference)}
}

func (r *stubPrefRepo) Get(_ context.Context, ownerID uuid.UUID) (*model.AlertPreference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if p, ok := r.prefs[ownerID]; ok {
		return &p, nil
	}
	return model.DefaultAlertPreference(ownerID), nil
}

func (r *stubPrefRepo) Save(_ context.Context, p *model.AlertPreference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefs[p.OwnerID] = *p
	return nil
}

var _ repository.AlertPreferenceRepository = (*stubPrefRepo)(nil)

type stubNotifier struct {
	mu       sync.Mutex
	payloads []worker.LowStockJobPayload
}

func (n *stubNotifier) EnqueueLowStock(_ context.Context, p worker.LowStockJobPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.payloads = append(n.payloads, p)
	return nil
}

func (n *stubNotifier) sent() []worker.LowStockJobPayload {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]worker.LowStockJobPayload(nil), n.payloads...)
}

// ── Fixture ──────────────────────────────────────────────────────────────────

type fixture struct {
	owner     uuid.UUID
	products  *stubProductRepo
	sales     *stubSaleRepo
	movements *stubMovementRepo
	alerts    *stubAlertRepo
	prefs     *stubPrefRepo
	notifier  *stubNotifier
	svc       SaleService
	inventory InventoryService
}

func newFixture() *fixture {
	products := newStubProductRepo()
	f := &fixture{
		owner:     uuid.New(),
		products:  products,
		sales:     newStubSaleRepo(products),
		movements: &stubMovementRepo{},
		alerts:    newStubAlertRepo(products),
		prefs:     newStubPrefRepo(),
		notifier:  &stubNotifier{},
	}
	f.inventory = NewInventoryService(f.products, f.movements, f.alerts, f.prefs, f.notifier, nil)
	f.svc = NewSaleService(f.sales, f.products, f.inventory, nil)
	return f
}

func intPtr(v int) *int             { return &v }
func strPtr(v string) *string       { return &v }
func dec(s string) decimal.Decimal  { return decimal.RequireFromString(s) }
func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}
