package dto

// MovementFilter is bound from the query string of GET /v1/inventory/movements.
type MovementFilter struct {
	ProductID string `form:"product_id" validate:"omitempty,uuid"`
	Page      int    `form:"page,default=1"    validate:"min=1"`
	Limit     int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type StockMovementResponse struct {
	ID             string  `json:"id"`
	ProductID      string  `json:"product_id"`
	SKU            string  `json:"sku"`
	ProductName    string  `json:"product_name"`
	MovementType   string  `json:"movement_type"`
	Delta          int     `json:"delta"`
	ResultingStock int     `json:"resulting_stock"`
	PerformedBy    *string `json:"performed_by"`
	Reason         string  `json:"reason"`
	ReferenceID    *string `json:"reference_id"`
	CreatedAt      string  `json:"created_at"`
}

type StockMovementListResponse struct {
	Data  []StockMovementResponse `json:"data"`
	Total int64                   `json:"total"`
	Page  int                     `json:"page"`
	Limit int                     `json:"limit"`
}

// CreateMovementRequest is the body of POST /v1/inventory/movements: a manual
// restock (delta > 0) or correction (delta < 0) of a tracked product.
type CreateMovementRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Delta     int    `json:"delta"      validate:"required"`
	Reason    string `json:"reason"     validate:"omitempty,max=128"`
}
