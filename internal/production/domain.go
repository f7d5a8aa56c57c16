package production

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// RunStatus is the production run state. Transitions are monotone:
// in_progress moves to completed or cancelled, both terminal.
type RunStatus string

const (
	StatusInProgress RunStatus = "IN_PROGRESS"
	StatusCompleted  RunStatus = "COMPLETED"
	StatusCancelled  RunStatus = "CANCELLED"
)

// VarianceKind classifies the primary ingredient variance.
// Positive variance means more was consumed than the recipe planned.
type VarianceKind string

const (
	VarianceNormal    VarianceKind = "NORMAL"
	VarianceShortfall VarianceKind = "SHORTFALL"
	VarianceExcess    VarianceKind = "EXCESS"
)

// ClassifyVariance maps actual − theoretical onto a kind.
func ClassifyVariance(variance float64) VarianceKind {
	switch {
	case variance > 0:
		return VarianceShortfall
	case variance < 0:
		return VarianceExcess
	default:
		return VarianceNormal
	}
}

// Run is one production run. Completed runs are immutable and pin the exact
// recipe version they consumed.
type Run struct {
	ID                   int64        `json:"id" db:"id"`
	ProductID            int64        `json:"product_id" db:"product_id"`
	RecipeID             int64        `json:"recipe_id" db:"recipe_id"`
	RecipeVersion        int          `json:"recipe_version" db:"recipe_version"`
	AuthorID             int64        `json:"author_id" db:"author_id"`
	BakerID              *int64       `json:"baker_id,omitempty" db:"baker_id"`
	Date                 time.Time    `json:"date" db:"date"`
	OutputQuantity       float64      `json:"output_quantity" db:"output_quantity"`
	OutputUnit           string       `json:"output_unit" db:"output_unit"`
	PrimaryActual        float64      `json:"primary_ingredient_actual" db:"primary_ingredient_actual"`
	PrimaryTheoretical   float64      `json:"primary_ingredient_theoretical" db:"primary_ingredient_theoretical"`
	Variance             float64      `json:"variance" db:"variance"`
	VarianceKind         VarianceKind `json:"variance_kind" db:"variance_kind"`
	ProductionCost       float64      `json:"production_cost" db:"production_cost"`
	UnitCost             float64      `json:"unit_cost" db:"unit_cost"`
	Status               RunStatus    `json:"status" db:"status"`
	LotCode              string       `json:"lot_code,omitempty" db:"lot_code"`
	CreatedAt            time.Time    `json:"created_at" db:"created_at"`
}

var (
	// ErrInvalidOutput indicates a non-positive requested output quantity.
	ErrInvalidOutput = errors.New("production: output quantity must be > 0")
	// ErrInsufficientIngredients indicates the pre-check found shortages.
	ErrInsufficientIngredients = errors.New("production: insufficient ingredients")
	// ErrBatchSize indicates a batch outside the 1..5 line bound.
	ErrBatchSize = errors.New("production: batch must contain between 1 and 5 lines")
)

// Shortage is one deficient material found by the availability pre-check.
type Shortage struct {
	MaterialID int64   `json:"material_id"`
	Name       string  `json:"name"`
	Required   float64 `json:"required"`
	Available  float64 `json:"available"`
}

// InsufficientIngredientsError carries every deficient material, not just the
// first, so staff can resolve all shortages before retrying.
type InsufficientIngredientsError struct {
	Shortages []Shortage
}

func (e *InsufficientIngredientsError) Error() string {
	names := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		names = append(names, fmt.Sprintf("%s (need %.3f, have %.3f)", s.Name, s.Required, s.Available))
	}
	return "production: insufficient ingredients: " + strings.Join(names, ", ")
}

func (e *InsufficientIngredientsError) Unwrap() error { return ErrInsufficientIngredients }

// HTTPStatus reports the response status for this error.
func (e *InsufficientIngredientsError) HTTPStatus() int { return http.StatusConflict }

// ProblemExtras reports extra problem detail members.
func (e *InsufficientIngredientsError) ProblemExtras() map[string]any {
	return map[string]any{"missing_ingredients": e.Shortages}
}
