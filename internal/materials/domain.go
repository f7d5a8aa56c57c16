package materials

import (
	"errors"
	"fmt"
	"time"
)

// MovementKind enumerates raw material ledger movements.
type MovementKind string

const (
	// MovementPurchase is inbound stock from a supplier invoice.
	MovementPurchase MovementKind = "PURCHASE"
	// MovementReturn is stock sent back to a supplier.
	MovementReturn MovementKind = "RETURN"
	// MovementAdjustIn corrects stock upward after a physical count.
	MovementAdjustIn MovementKind = "ADJUST_IN"
	// MovementConsumption is stock consumed by a production run.
	MovementConsumption MovementKind = "PRODUCTION_CONSUMPTION"
	// MovementWaste is spoiled or discarded stock.
	MovementWaste MovementKind = "WASTE"
	// MovementAdjustOut corrects stock downward after a physical count.
	MovementAdjustOut MovementKind = "ADJUST_OUT"
)

// Sign returns the signed direction of the movement kind.
func (k MovementKind) Sign() float64 {
	switch k {
	case MovementPurchase, MovementAdjustIn:
		return 1
	case MovementReturn, MovementConsumption, MovementWaste, MovementAdjustOut:
		return -1
	}
	return 0
}

// RawMaterial models one raw ingredient. StockActual is a denormalized cache of
// the movement ledger; it changes only alongside a movement append while the
// row is locked.
type RawMaterial struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Unit         string    `json:"unit" db:"unit"`
	StockActual  float64   `json:"stock_actual" db:"stock_actual"`
	StockMinimum float64   `json:"stock_minimum" db:"stock_minimum"`
	UnitCost     float64   `json:"unit_cost" db:"unit_cost"`
	Active       bool      `json:"active" db:"active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Movement is one append-only ledger row. Rows are never updated or deleted;
// StockAfter = StockBefore + Kind.Sign() × Quantity.
type Movement struct {
	ID           int64        `json:"id" db:"id"`
	MaterialID   int64        `json:"material_id" db:"material_id"`
	Kind         MovementKind `json:"kind" db:"kind"`
	Quantity     float64      `json:"quantity" db:"quantity"`
	UnitCost     *float64     `json:"unit_cost,omitempty" db:"unit_cost"`
	StockBefore  float64      `json:"stock_before" db:"stock_before"`
	StockAfter   float64      `json:"stock_after" db:"stock_after"`
	ProductionID *int64       `json:"production_id,omitempty" db:"production_id"`
	ActorID      *int64       `json:"actor_id,omitempty" db:"actor_id"`
	Notes        string       `json:"notes,omitempty" db:"notes"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

var (
	// ErrInsufficientStock triggers when a deduction would drive stock negative.
	ErrInsufficientStock = errors.New("materials: insufficient stock")
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("materials: quantity must be > 0")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("materials: unit cost must be >= 0")
	// ErrInactive indicates operations on a deactivated material.
	ErrInactive = errors.New("materials: material is inactive")
)

// InsufficientStockError carries the availability detail for one material.
type InsufficientStockError struct {
	MaterialID int64
	Name       string
	Required   float64
	Available  float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("materials: insufficient stock for %q: required %.4f, available %.4f", e.Name, e.Required, e.Available)
}

// Unwrap lets errors.Is match the package sentinel.
func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// HTTPStatus maps the shortage to a conflict response.
func (e *InsufficientStockError) HTTPStatus() int { return 409 }

// ProblemExtras exposes the shortage payload.
func (e *InsufficientStockError) ProblemExtras() map[string]any {
	return map[string]any{
		"material_id": e.MaterialID,
		"material":    e.Name,
		"required":    e.Required,
		"available":   e.Available,
	}
}
