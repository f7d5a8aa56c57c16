package materials

// CreateMaterialRequest registers a new raw material.
type CreateMaterialRequest struct {
	Name         string  `json:"name" validate:"required,max=120"`
	Unit         string  `json:"unit" validate:"required,max=20"`
	StockMinimum float64 `json:"stock_minimum" validate:"gte=0"`
	UnitCost     float64 `json:"unit_cost" validate:"gte=0"`
}

// UpdateMaterialRequest changes descriptive fields.
type UpdateMaterialRequest struct {
	Name         string  `json:"name" validate:"required,max=120"`
	Unit         string  `json:"unit" validate:"required,max=20"`
	StockMinimum float64 `json:"stock_minimum" validate:"gte=0"`
	Active       bool    `json:"active"`
}

// PurchaseRequest registers an inbound supplier delivery.
type PurchaseRequest struct {
	MaterialID int64   `json:"material_id" validate:"required,gt=0"`
	Quantity   float64 `json:"quantity" validate:"required,gt=0"`
	UnitCost   float64 `json:"unit_cost" validate:"gte=0"`
	InvoiceRef string  `json:"invoice_ref,omitempty" validate:"max=60"`
	Notes      string  `json:"notes,omitempty" validate:"max=255"`
}

// AdjustStockRequest sets counted stock; the service records the signed delta.
type AdjustStockRequest struct {
	MaterialID int64   `json:"material_id" validate:"required,gt=0"`
	NewStock   float64 `json:"new_stock" validate:"gte=0"`
	Reason     string  `json:"reason" validate:"required,max=255"`
}

// WasteRequest discards spoiled stock.
type WasteRequest struct {
	MaterialID int64   `json:"material_id" validate:"required,gt=0"`
	Quantity   float64 `json:"quantity" validate:"required,gt=0"`
	Reason     string  `json:"reason" validate:"required,max=255"`
}
