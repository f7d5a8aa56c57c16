package payroll

import (
	"context"
	"fmt"
)

// AccrueProduction increments a baker's owed kilos and lifetime output inside
// the caller's transaction. Called only for weight-denominated runs.
func AccrueProduction(ctx context.Context, tx TxRepository, bakerID int64, kilos, units float64) error {
	if kilos < 0 || units < 0 {
		return fmt.Errorf("payroll: accrual amounts must be >= 0")
	}
	baker, err := tx.GetBakerForUpdate(ctx, bakerID)
	if err != nil {
		return err
	}
	return tx.UpdateBakerAccrual(ctx, bakerID, baker.KilosAccrued+kilos, baker.UnitsProducedTotal+units)
}

// AccrueCommission credits a salesperson for an attributed sale inside the
// caller's transaction: commission grows by subtotal × rate / 100.
func AccrueCommission(ctx context.Context, tx TxRepository, salespersonID int64, subtotal float64) error {
	if subtotal < 0 {
		return fmt.Errorf("payroll: sale subtotal must be >= 0")
	}
	person, err := tx.GetSalespersonForUpdate(ctx, salespersonID)
	if err != nil {
		return err
	}
	commission := subtotal * person.CommissionRate / 100
	return tx.UpdateSalespersonAccrual(ctx, salespersonID, person.CommissionAccrued+commission, person.TotalSold+subtotal)
}
