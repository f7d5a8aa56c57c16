package payroll

// CreateBakerRequest registers a production worker.
type CreateBakerRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=120"`
	BaseSalary  float64 `json:"base_salary" validate:"gte=0"`
	RatePerKilo float64 `json:"rate_per_kilo" validate:"gte=0"`
}

// CreateSalespersonRequest registers a commissioned seller.
type CreateSalespersonRequest struct {
	Name           string  `json:"name" validate:"required,min=2,max=120"`
	CommissionRate float64 `json:"commission_rate" validate:"gte=0,lte=100"`
}

// SettleRequest pays out part of an accrued balance, or a fixed salary.
type SettleRequest struct {
	Amount            float64  `json:"amount" validate:"required,gt=0"`
	KilosOrCommission *float64 `json:"kilos_or_commission,omitempty" validate:"omitempty,gt=0"`
	IsFixedSalary     bool     `json:"is_fixed_salary"`
	Notes             string   `json:"notes,omitempty" validate:"max=500"`
}
