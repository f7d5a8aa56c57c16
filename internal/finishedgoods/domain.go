package finishedgoods

import (
	"errors"
	"fmt"
	"time"
)

// MovementKind enumerates finished-good ledger movements.
type MovementKind string

const (
	// MovementProductionIn is output received from a completed production run.
	MovementProductionIn MovementKind = "PRODUCTION_IN"
	// MovementSaleOut is stock sold through an order.
	MovementSaleOut MovementKind = "SALE_OUT"
	// MovementWaste is expired or damaged product.
	MovementWaste MovementKind = "WASTE"
	// MovementSample is product given away for tasting.
	MovementSample MovementKind = "SAMPLE"
	// MovementAdjust corrects stock after a count, either direction.
	MovementAdjust MovementKind = "ADJUST"
)

// Sign returns the signed direction; MovementAdjust direction comes from the
// caller and is resolved before appending.
func (k MovementKind) Sign() float64 {
	switch k {
	case MovementProductionIn:
		return 1
	case MovementSaleOut, MovementWaste, MovementSample:
		return -1
	}
	return 0
}

// Inventory is the per-product finished-good stock row (1:1 with product).
// StockActual is a denormalized cache of the movement ledger.
type Inventory struct {
	ProductID       int64      `json:"product_id" db:"product_id"`
	StockActual     float64    `json:"stock_actual" db:"stock_actual"`
	StockMinimum    float64    `json:"stock_minimum" db:"stock_minimum"`
	ElaborationDate *time.Time `json:"elaboration_date,omitempty" db:"elaboration_date"`
	ShelfLifeDays   int        `json:"shelf_life_days" db:"shelf_life_days"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`
	AverageCost     float64    `json:"average_cost" db:"average_cost"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Movement is one append-only finished-good ledger row.
type Movement struct {
	ID           int64        `json:"id" db:"id"`
	ProductID    int64        `json:"product_id" db:"product_id"`
	Kind         MovementKind `json:"kind" db:"kind"`
	Quantity     float64      `json:"quantity" db:"quantity"`
	StockBefore  float64      `json:"stock_before" db:"stock_before"`
	StockAfter   float64      `json:"stock_after" db:"stock_after"`
	ProductionID *int64       `json:"production_id,omitempty" db:"production_id"`
	OrderID      *string      `json:"order_id,omitempty" db:"order_id"`
	ActorID      *int64       `json:"actor_id,omitempty" db:"actor_id"`
	Notes        string       `json:"notes,omitempty" db:"notes"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// LotStatus enumerates the lifecycle of a production lot.
type LotStatus string

const (
	LotStatusActive    LotStatus = "ACTIVE"
	LotStatusExpired   LotStatus = "EXPIRED"
	LotStatusDepleted  LotStatus = "DEPLETED"
	LotStatusWithdrawn LotStatus = "WITHDRAWN"
)

// Lot is a dated, quantity-bounded output unit of one production run, tracked
// for expiry and traceability separately from aggregate stock.
type Lot struct {
	ID                int64     `json:"id" db:"id"`
	LotCode           string    `json:"lot_code" db:"lot_code"`
	ProductionID      int64     `json:"production_id" db:"production_id"`
	ProductID         int64     `json:"product_id" db:"product_id"`
	QuantityProduced  float64   `json:"quantity_produced" db:"quantity_produced"`
	QuantityAvailable float64   `json:"quantity_available" db:"quantity_available"`
	ExpiryDate        time.Time `json:"expiry_date" db:"expiry_date"`
	Status            LotStatus `json:"status" db:"status"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}

var (
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("finishedgoods: quantity must be > 0")
	// ErrInsufficientStock triggers when a deduction would drive stock negative.
	ErrInsufficientStock = errors.New("finishedgoods: insufficient stock")
	// ErrLotNotActive indicates a withdraw on a non-active lot.
	ErrLotNotActive = errors.New("finishedgoods: lot is not active")
)

// InsufficientStockError carries availability detail for one product.
type InsufficientStockError struct {
	ProductID int64
	Required  float64
	Available float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("finishedgoods: insufficient stock for product %d: required %.4f, available %.4f", e.ProductID, e.Required, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// HTTPStatus maps the shortage to a conflict response.
func (e *InsufficientStockError) HTTPStatus() int { return 409 }

// ProblemExtras exposes the shortage payload.
func (e *InsufficientStockError) ProblemExtras() map[string]any {
	return map[string]any{
		"product_id": e.ProductID,
		"required":   e.Required,
		"available":  e.Available,
	}
}
