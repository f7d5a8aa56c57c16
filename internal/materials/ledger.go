package materials

import (
	"context"
	"fmt"
)

// MovementParams describes one ledger append applied against a locked material
// row. The functions here are transaction-scoped: the caller owns the enclosing
// transaction, so a production run can bundle many appends with its own writes.
type MovementParams struct {
	MaterialID   int64
	Kind         MovementKind
	Quantity     float64
	UnitCost     float64
	ProductionID *int64
	ActorID      int64
	Notes        string
}

// ApplyMovement locks the material row, validates the guarded balance change,
// appends the movement and writes the new cached stock. Purchases fold the new
// cost into a weighted average; every other kind leaves unit cost untouched.
func ApplyMovement(ctx context.Context, tx TxRepository, p MovementParams) (Movement, error) {
	if p.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	sign := p.Kind.Sign()
	if sign == 0 {
		return Movement{}, fmt.Errorf("materials: unknown movement kind %q", p.Kind)
	}

	material, err := tx.GetForUpdate(ctx, p.MaterialID)
	if err != nil {
		return Movement{}, err
	}
	if !material.Active {
		return Movement{}, ErrInactive
	}

	stockBefore := material.StockActual
	stockAfter := stockBefore + sign*p.Quantity
	if stockAfter < 0 {
		return Movement{}, &InsufficientStockError{
			MaterialID: material.ID,
			Name:       material.Name,
			Required:   p.Quantity,
			Available:  stockBefore,
		}
	}

	unitCost := material.UnitCost
	var movementCost *float64
	switch p.Kind {
	case MovementPurchase:
		if p.UnitCost < 0 {
			return Movement{}, ErrInvalidUnitCost
		}
		// Weighted average over the old stock and the incoming lot.
		if stockAfter > 0 {
			unitCost = (stockBefore*material.UnitCost + p.Quantity*p.UnitCost) / stockAfter
		} else {
			unitCost = p.UnitCost
		}
		cost := p.UnitCost
		movementCost = &cost
	case MovementConsumption, MovementWaste, MovementReturn:
		cost := material.UnitCost
		movementCost = &cost
	}

	movement := Movement{
		MaterialID:   p.MaterialID,
		Kind:         p.Kind,
		Quantity:     p.Quantity,
		UnitCost:     movementCost,
		StockBefore:  stockBefore,
		StockAfter:   stockAfter,
		ProductionID: p.ProductionID,
		Notes:        p.Notes,
	}
	if p.ActorID != 0 {
		actor := p.ActorID
		movement.ActorID = &actor
	}

	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, err
	}
	movement.ID = id

	if err := tx.UpdateStock(ctx, p.MaterialID, stockAfter, unitCost); err != nil {
		return Movement{}, err
	}
	return movement, nil
}

// Consume appends a production-consumption movement for one material inside the
// caller's transaction. Availability is re-checked under the row lock, so a
// concurrent run cannot drive stock negative.
func Consume(ctx context.Context, tx TxRepository, materialID int64, qty float64, productionID, actorID int64) (Movement, error) {
	return ApplyMovement(ctx, tx, MovementParams{
		MaterialID:   materialID,
		Kind:         MovementConsumption,
		Quantity:     qty,
		ProductionID: &productionID,
		ActorID:      actorID,
	})
}
