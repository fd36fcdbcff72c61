package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// InlineProductRequest describes a product not yet known to the server. It is
// created (owned by the caller) inside the sale transaction, or reused when
// the caller already owns a product with the same SKU.
type InlineProductRequest struct {
	SKU          string           `json:"sku"           validate:"required,max=64"`
	Name         string           `json:"name"          validate:"required,max=255"`
	Description  *string          `json:"description"`
	Unit         string           `json:"unit"          validate:"omitempty,max=32"`
	IsVolatile   bool             `json:"is_volatile"`
	Price        *decimal.Decimal `json:"price"`
	Stock        *int             `json:"stock"`
	ReorderLevel *int             `json:"reorder_level" validate:"omitempty,min=0"`
}

// SaleItemRequest is one line of a submitted sale. Exactly one of ProductID
// and Product must be set. Client-side subtotals are not part of the contract.
type SaleItemRequest struct {
	ProductID *string               `json:"product_id" validate:"omitempty,uuid"`
	Product   *InlineProductRequest `json:"product"`
	Quantity  *decimal.Decimal      `json:"quantity"`
	UnitPrice *decimal.Decimal      `json:"unit_price"`
}

// SubmitSaleRequest is the body of POST /v1/sales. Any client-declared total
// is ignored.
type SubmitSaleRequest struct {
	ExternalID      *string           `json:"external_id"       validate:"omitempty,max=64"`
	DeviceLabel     *string           `json:"device_label"      validate:"omitempty,max=64"`
	ClientCreatedAt *time.Time        `json:"client_created_at"`
	Items           []SaleItemRequest `json:"items"             validate:"required,min=1,dive"`
}

// SaleFilter is bound from the query string of GET /v1/sales.
type SaleFilter struct {
	Page  int `form:"page,default=1"   validate:"min=1"`
	Limit int `form:"limit,default=50" validate:"min=1,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// Submission statuses.
const (
	SaleStatusCreated  = "created"
	SaleStatusExisting = "existing"
)

type SaleItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Product   string          `json:"product"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type SaleResponse struct {
	ID              string             `json:"id"`
	ExternalID      string             `json:"external_id"`
	OwnerID         string             `json:"owner_id"`
	TotalAmount     decimal.Decimal    `json:"total_amount"`
	DeviceLabel     *string            `json:"device_label"`
	ReceivedAt      string             `json:"received_at"`
	ClientCreatedAt string             `json:"client_created_at"`
	SyncedAt        *string            `json:"synced_at"`
	Items           []SaleItemResponse `json:"items"`
}

// SubmitSaleResponse distinguishes a newly created sale from a replayed one.
type SubmitSaleResponse struct {
	Status string       `json:"status"` // created | existing
	Sale   SaleResponse `json:"sale"`
}

type SaleListResponse struct {
	Data  []SaleResponse `json:"data"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

// ─── Offline sync batch ──────────────────────────────────────────────────────

// SyncBatchRequest carries a device's offline queue. Each sale is ingested
// independently; one rejected sale does not affect the others. Sales are not
// validated on binding so that each one gets its own result.
type SyncBatchRequest struct {
	Sales []SubmitSaleRequest `json:"sales" validate:"required,min=1,max=100"`
}

// Per-sale statuses of a sync batch, in addition to created and existing.
const (
	SaleStatusRejected = "rejected"
	SaleStatusFailed   = "failed"
)

type SyncResult struct {
	Index  int               `json:"index"`
	Status string            `json:"status"`
	Sale   *SaleResponse     `json:"sale,omitempty"`
	Error  string            `json:"error,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	// Retryable marks failures the device should resubmit later.
	Retryable bool `json:"retryable,omitempty"`
}

type SyncBatchResponse struct {
	Results  []SyncResult `json:"results"`
	Created  int          `json:"created"`
	Existing int          `json:"existing"`
	Rejected int          `json:"rejected"`
	Failed   int          `json:"failed"`
}
