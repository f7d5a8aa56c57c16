package finishedgoods

// SaleRequest commits one sold line against finished stock.
type SaleRequest struct {
	Quantity      float64 `json:"quantity" validate:"required,gt=0"`
	OrderID       string  `json:"order_id" validate:"required,max=64"`
	SalespersonID *int64  `json:"salesperson_id,omitempty" validate:"omitempty,gt=0"`
	Subtotal      float64 `json:"subtotal" validate:"gte=0"`
}

// OutRequest withdraws stock as waste or samples.
type OutRequest struct {
	Quantity float64 `json:"quantity" validate:"required,gt=0"`
	Notes    string  `json:"notes,omitempty" validate:"max=500"`
}

// AdjustRequest sets the stock to an absolute target.
type AdjustRequest struct {
	NewStock float64 `json:"new_stock" validate:"gte=0"`
	Notes    string  `json:"notes,omitempty" validate:"max=500"`
}

// SetMinimumRequest updates the low stock alert threshold.
type SetMinimumRequest struct {
	StockMinimum float64 `json:"stock_minimum" validate:"gte=0"`
}

// WithdrawLotRequest pulls a lot out of circulation.
type WithdrawLotRequest struct {
	Notes string `json:"notes,omitempty" validate:"max=500"`
}
