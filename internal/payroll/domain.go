package payroll

import (
	"errors"
	"fmt"
	"time"
)

// PaymentTarget identifies who a payment settles against. It is a closed sum
// type: exactly bakers and salespersons exist, and settlement switches over
// the concrete type exhaustively.
type PaymentTarget interface {
	TargetID() int64
	targetKind() TargetKind
}

// BakerTarget addresses a baker by id.
type BakerTarget struct {
	ID int64 `json:"id"`
}

// SalespersonTarget addresses a salesperson by id.
type SalespersonTarget struct {
	ID int64 `json:"id"`
}

func (t BakerTarget) TargetID() int64        { return t.ID }
func (t BakerTarget) targetKind() TargetKind { return TargetBaker }

func (t SalespersonTarget) TargetID() int64        { return t.ID }
func (t SalespersonTarget) targetKind() TargetKind { return TargetSalesperson }

// TargetKind is the persisted discriminator of a PaymentTarget.
type TargetKind string

const (
	TargetBaker       TargetKind = "BAKER"
	TargetSalesperson TargetKind = "SALESPERSON"
)

// Baker accrues kilos for weight-denominated production output. KilosAccrued
// only grows through completed runs and only shrinks through settlement.
type Baker struct {
	ID                 int64     `json:"id" db:"id"`
	Name               string    `json:"name" db:"name"`
	BaseSalary         float64   `json:"base_salary" db:"base_salary"`
	RatePerKilo        float64   `json:"rate_per_kilo" db:"rate_per_kilo"`
	KilosAccrued       float64   `json:"kilos_accrued" db:"kilos_accrued"`
	UnitsProducedTotal float64   `json:"units_produced_total" db:"units_produced_total"`
	Active             bool      `json:"active" db:"active"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// Salesperson accrues commission on attributed sales.
type Salesperson struct {
	ID                int64     `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	CommissionRate    float64   `json:"commission_rate" db:"commission_rate"`
	CommissionAccrued float64   `json:"commission_accrued" db:"commission_accrued"`
	TotalSold         float64   `json:"total_sold" db:"total_sold"`
	Active            bool      `json:"active" db:"active"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// PaymentKind enumerates recorded payment types.
type PaymentKind string

const (
	PaymentKindProduction PaymentKind = "PRODUCTION"
	PaymentKindCommission PaymentKind = "COMMISSION"
	PaymentKindSalary     PaymentKind = "SALARY"
)

// StaffPayment is one append-only settlement row. Rows are immutable; no
// reversal mechanism exists.
type StaffPayment struct {
	ID                int64       `json:"id" db:"id"`
	TargetKind        TargetKind  `json:"target_kind" db:"target_kind"`
	TargetID          int64       `json:"target_id" db:"target_id"`
	Amount            float64     `json:"amount" db:"amount"`
	KilosSettled      *float64    `json:"kilos_settled,omitempty" db:"kilos_settled"`
	CommissionSettled *float64    `json:"commission_settled,omitempty" db:"commission_settled"`
	PaymentKind       PaymentKind `json:"payment_kind" db:"payment_kind"`
	IsFixedSalary     bool        `json:"is_fixed_salary" db:"is_fixed_salary"`
	Notes             string      `json:"notes,omitempty" db:"notes"`
	AuthorID          int64       `json:"author_id" db:"author_id"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
}

var (
	// ErrInvalidAmount indicates a non-positive payment amount.
	ErrInvalidAmount = errors.New("payroll: amount must be > 0")
	// ErrSettlementRequired indicates a non-fixed payment without a kilos or
	// commission figure.
	ErrSettlementRequired = errors.New("payroll: settled kilos or commission required")
	// ErrOverpayment triggers when settlement exceeds the accrued balance.
	ErrOverpayment = errors.New("payroll: settlement exceeds accrued balance")
)

// OverpaymentError carries the accrual detail of a rejected settlement.
type OverpaymentError struct {
	Target    TargetKind
	ID        int64
	Requested float64
	Accrued   float64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payroll: %s %d: requested %.4f exceeds accrued %.4f", e.Target, e.ID, e.Requested, e.Accrued)
}

func (e *OverpaymentError) Unwrap() error { return ErrOverpayment }

// HTTPStatus maps the rejection to a conflict response.
func (e *OverpaymentError) HTTPStatus() int { return 409 }

// ProblemExtras exposes the accrual detail.
func (e *OverpaymentError) ProblemExtras() map[string]any {
	return map[string]any{
		"target":    string(e.Target),
		"target_id": e.ID,
		"requested": e.Requested,
		"accrued":   e.Accrued,
	}
}
