package finishedgoods

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// ProductionInParams describes finished output entering the ledger.
type ProductionInParams struct {
	ProductID     int64
	Quantity      float64
	UnitCost      float64
	ProductionID  int64
	ShelfLifeDays int
	ActorID       *int64
}

// ApplyProductionIn records finished output inside the caller's transaction:
// one production-in movement, a stock increase with a weighted average cost
// update, and a new active lot. The inventory row is created on first use.
func ApplyProductionIn(ctx context.Context, tx TxRepository, p ProductionInParams) (Movement, Lot, error) {
	if p.Quantity <= 0 {
		return Movement{}, Lot{}, ErrInvalidQuantity
	}

	inv, err := tx.GetInventoryForUpdate(ctx, p.ProductID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return Movement{}, Lot{}, err
	}

	stockBefore := inv.StockActual
	stockAfter := stockBefore + p.Quantity

	if stockAfter > 0 {
		inv.AverageCost = (stockBefore*inv.AverageCost + p.Quantity*p.UnitCost) / stockAfter
	}
	now := time.Now()
	expiry := now.AddDate(0, 0, p.ShelfLifeDays)
	inv.ProductID = p.ProductID
	inv.StockActual = stockAfter
	inv.ElaborationDate = &now
	inv.ShelfLifeDays = p.ShelfLifeDays
	inv.ExpiryDate = &expiry

	productionID := p.ProductionID
	movement := Movement{
		ProductID:    p.ProductID,
		Kind:         MovementProductionIn,
		Quantity:     p.Quantity,
		StockBefore:  stockBefore,
		StockAfter:   stockAfter,
		ProductionID: &productionID,
		ActorID:      p.ActorID,
	}
	movementID, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, Lot{}, err
	}
	movement.ID = movementID

	if err := tx.UpsertInventory(ctx, inv); err != nil {
		return Movement{}, Lot{}, err
	}

	lot := Lot{
		LotCode:           newLotCode(now),
		ProductionID:      p.ProductionID,
		ProductID:         p.ProductID,
		QuantityProduced:  p.Quantity,
		QuantityAvailable: p.Quantity,
		ExpiryDate:        expiry,
		Status:            LotStatusActive,
	}
	lotID, err := tx.InsertLot(ctx, lot)
	if err != nil {
		return Movement{}, Lot{}, err
	}
	lot.ID = lotID
	return movement, lot, nil
}

func newLotCode(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("LOT-%s-%s", at.Format("20060102"), suffix)
}

// depleteLots walks active lots oldest expiry first and subtracts qty.
// Lot totals can lag inventory after manual adjustments, so running out
// of lots is not an error here; the inventory guard is authoritative.
func depleteLots(ctx context.Context, tx TxRepository, productID int64, qty float64) error {
	lots, err := tx.ActiveLotsForUpdate(ctx, productID)
	if err != nil {
		return err
	}
	remaining := qty
	for _, lot := range lots {
		if remaining <= 0 {
			break
		}
		take := lot.QuantityAvailable
		if take > remaining {
			take = remaining
		}
		available := lot.QuantityAvailable - take
		status := LotStatusActive
		if available <= 0 {
			available = 0
			status = LotStatusDepleted
		}
		if err := tx.UpdateLot(ctx, lot.ID, available, status); err != nil {
			return err
		}
		remaining -= take
	}
	return nil
}
