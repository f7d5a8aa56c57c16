package masterdata

import "time"

// Product is the read model projected from the external product catalog. The
// production core needs only naming, the stock unit and the configured shelf
// life; everything else about a product lives upstream.
type Product struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Unit          string    `json:"unit" db:"unit"`
	ShelfLifeDays int       `json:"shelf_life_days" db:"shelf_life_days"`
	Active        bool      `json:"active" db:"active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// WeightUnits enumerates units treated as weight-denominated for baker accrual.
var WeightUnits = map[string]bool{
	"kg": true,
	"g":  true,
}

// IsWeightUnit reports whether the unit counts toward kilos accrual.
func IsWeightUnit(unit string) bool {
	return WeightUnits[unit]
}
