package catalog

import (
	"errors"
	"time"
)

// Recipe is one immutable version of a product's ingredient list. Editing a
// recipe never mutates an existing version; it inserts version N+1 and flips
// the active pointer. Historical productions reference the exact version used.
type Recipe struct {
	ID                int64              `json:"id" db:"id"`
	ProductID         int64              `json:"product_id" db:"product_id"`
	Version           int                `json:"version" db:"version"`
	YieldQuantity     float64            `json:"yield_quantity" db:"yield_quantity"`
	YieldUnit         string             `json:"yield_unit" db:"yield_unit"`
	Active            bool               `json:"active" db:"active"`
	ComputedTotalCost float64            `json:"computed_total_cost" db:"computed_total_cost"`
	ComputedUnitCost  float64            `json:"computed_unit_cost" db:"computed_unit_cost"`
	CreatedBy         int64              `json:"created_by" db:"created_by"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
	Ingredients       []RecipeIngredient `json:"ingredients,omitempty" db:"-"`
}

// RecipeIngredient is one material line of a recipe version, quantity expressed
// per yield quantity. Unique per (recipe, material).
type RecipeIngredient struct {
	ID         int64   `json:"id" db:"id"`
	RecipeID   int64   `json:"recipe_id" db:"recipe_id"`
	MaterialID int64   `json:"material_id" db:"material_id"`
	Quantity   float64 `json:"quantity" db:"quantity"`
	Unit       string  `json:"unit" db:"unit"`
}

// ScaledIngredient is the requirement of one material for a requested output.
type ScaledIngredient struct {
	MaterialID int64   `json:"material_id"`
	Quantity   float64 `json:"quantity"`
	Unit       string  `json:"unit"`
}

// ErrNoIngredients indicates a recipe without lines.
var ErrNoIngredients = errors.New("catalog: recipe requires at least one ingredient")

// ErrDuplicateMaterial indicates the same material listed twice in one version.
var ErrDuplicateMaterial = errors.New("catalog: material listed more than once")

// ErrInvalidYield indicates a non-positive yield quantity.
var ErrInvalidYield = errors.New("catalog: yield quantity must be > 0")

// Scale computes the material requirements for requestedOutput units of the
// recipe's product. Pure linear scaling, no rounding beyond float64.
func Scale(r Recipe, requestedOutput float64) []ScaledIngredient {
	if r.YieldQuantity <= 0 || requestedOutput <= 0 {
		return nil
	}
	factor := requestedOutput / r.YieldQuantity
	scaled := make([]ScaledIngredient, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		scaled = append(scaled, ScaledIngredient{
			MaterialID: ing.MaterialID,
			Quantity:   ing.Quantity * factor,
			Unit:       ing.Unit,
		})
	}
	return scaled
}
