package dto

import "github.com/shopspring/decimal"

// Bucketing periods.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// Time bases for analytics windows.
const (
	TimeBasisReceived = "received"
	TimeBasisClient   = "client"
)

// AnalyticsQuery is bound from the query string of
// GET /v1/analytics/products/:id. Dates are YYYY-MM-DD, both inclusive.
type AnalyticsQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Period    string `form:"period"     validate:"omitempty,oneof=daily weekly monthly"`
	TimeBasis string `form:"time_basis" validate:"omitempty,oneof=received client"`
}

// ProductSummary is the product block of an analytics response. Stock fields
// are nil for volatile products.
type ProductSummary struct {
	ID           string          `json:"id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	IsVolatile   bool            `json:"is_volatile"`
	Price        decimal.Decimal `json:"price"`
	Stock        *int            `json:"stock"`
	ReorderLevel *int            `json:"reorder_level"`
}

// PeriodBucket aggregates the sales of one period window. Date is the
// window start (YYYY-MM-DD).
type PeriodBucket struct {
	Date     string          `json:"date"`
	Quantity decimal.Decimal `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
	Lines    int             `json:"lines"`
}

type ProductAnalyticsResponse struct {
	Product           ProductSummary  `json:"product"`
	StartDate         string          `json:"start_date"`
	EndDate           string          `json:"end_date"`
	Period            string          `json:"period"`
	TimeBasis         string          `json:"time_basis"`
	TotalQuantitySold decimal.Decimal `json:"total_quantity_sold"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageUnitPrice  decimal.Decimal `json:"average_unit_price"`
	PeriodBreakdown   []PeriodBucket  `json:"period_breakdown"`
}
