package finishedgoods

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bakehouse-erp/bakehouse-erp/internal/payroll"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	WithSaleTx(ctx context.Context, fn func(context.Context, SaleTx) error) error
	GetInventory(ctx context.Context, productID int64) (Inventory, error)
	ListInventory(ctx context.Context) ([]Inventory, error)
	Movements(ctx context.Context, productID int64, limit int) ([]Movement, error)
	Lots(ctx context.Context, productID int64, status LotStatus) ([]Lot, error)
	GetLotByCode(ctx context.Context, code string) (Lot, error)
	ExpireLots(ctx context.Context, asOf time.Time) ([]string, error)
	BelowMinimum(ctx context.Context) ([]Inventory, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates finished good stock, sales and lots.
type Service struct {
	repo  RepositoryPort
	cache *StockCache
	audit AuditPort
	sf    singleflight.Group
}

// NewService builds Service. cache may be nil.
func NewService(repo RepositoryPort, cache *StockCache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

// CurrentStock returns the inventory row for a product. Reads go through
// the versioned redis cache and concurrent identical lookups are collapsed
// so a cold key costs one database query.
func (s *Service) CurrentStock(ctx context.Context, productID int64) (Inventory, error) {
	key, err := s.cache.BuildKey(ctx, "fgstock", strconv.FormatInt(productID, 10))
	if err != nil {
		return Inventory{}, err
	}
	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		var inv Inventory
		err := s.cache.FetchJSON(ctx, key, &inv, func(ctx context.Context) (interface{}, error) {
			return s.repo.GetInventory(ctx, productID)
		})
		return inv, err
	})
	if err != nil {
		return Inventory{}, err
	}
	return result.(Inventory), nil
}

// ListStock returns all inventory rows, bypassing the cache.
func (s *Service) ListStock(ctx context.Context) ([]Inventory, error) {
	return s.repo.ListInventory(ctx)
}

// Movements returns the movement ledger for a product, newest first.
func (s *Service) Movements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	return s.repo.Movements(ctx, productID, limit)
}

// Lots returns lots for a product, optionally filtered by status.
func (s *Service) Lots(ctx context.Context, productID int64, status LotStatus) ([]Lot, error) {
	return s.repo.Lots(ctx, productID, status)
}

// SaleInput describes one committed sale line.
type SaleInput struct {
	ProductID     int64
	Quantity      float64
	OrderID       string
	SalespersonID *int64
	Subtotal      float64
	ActorID       *int64
}

// CommitSale appends a sale-out movement, decrements stock, depletes active
// lots oldest expiry first, and accrues the salesperson's commission. All of
// it commits or none of it does.
func (s *Service) CommitSale(ctx context.Context, input SaleInput) (Movement, error) {
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	var movement Movement
	err := s.repo.WithSaleTx(ctx, func(ctx context.Context, tx SaleTx) error {
		goods := tx.Goods()
		inv, err := goods.GetInventoryForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		stockAfter := inv.StockActual - input.Quantity
		if stockAfter < 0 {
			return &InsufficientStockError{ProductID: input.ProductID, Required: input.Quantity, Available: inv.StockActual}
		}

		orderID := input.OrderID
		movement = Movement{
			ProductID:   input.ProductID,
			Kind:        MovementSaleOut,
			Quantity:    input.Quantity,
			StockBefore: inv.StockActual,
			StockAfter:  stockAfter,
			OrderID:     &orderID,
			ActorID:     input.ActorID,
		}
		id, err := goods.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id

		inv.StockActual = stockAfter
		if err := goods.UpsertInventory(ctx, inv); err != nil {
			return err
		}
		if err := depleteLots(ctx, goods, input.ProductID, input.Quantity); err != nil {
			return err
		}

		if input.SalespersonID != nil && input.Subtotal > 0 {
			return payroll.AccrueCommission(ctx, tx.Payroll(), *input.SalespersonID, input.Subtotal)
		}
		return nil
	})
	if err != nil {
		return Movement{}, err
	}

	s.afterWrite(ctx, input.ActorID, "finishedgoods:sale", input.ProductID, map[string]any{
		"quantity": input.Quantity,
		"order_id": input.OrderID,
	})
	return movement, nil
}

// OutInput describes a waste or sample withdrawal.
type OutInput struct {
	ProductID int64
	Quantity  float64
	Notes     string
	ActorID   *int64
}

// RegisterWaste records spoiled finished stock leaving the ledger.
func (s *Service) RegisterWaste(ctx context.Context, input OutInput) (Movement, error) {
	return s.applyOut(ctx, MovementWaste, "finishedgoods:waste", input)
}

// RegisterSample records promotional samples leaving the ledger.
func (s *Service) RegisterSample(ctx context.Context, input OutInput) (Movement, error) {
	return s.applyOut(ctx, MovementSample, "finishedgoods:sample", input)
}

func (s *Service) applyOut(ctx context.Context, kind MovementKind, action string, input OutInput) (Movement, error) {
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInventoryForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		stockAfter := inv.StockActual - input.Quantity
		if stockAfter < 0 {
			return &InsufficientStockError{ProductID: input.ProductID, Required: input.Quantity, Available: inv.StockActual}
		}
		movement = Movement{
			ProductID:   input.ProductID,
			Kind:        kind,
			Quantity:    input.Quantity,
			StockBefore: inv.StockActual,
			StockAfter:  stockAfter,
			ActorID:     input.ActorID,
			Notes:       input.Notes,
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id

		inv.StockActual = stockAfter
		if err := tx.UpsertInventory(ctx, inv); err != nil {
			return err
		}
		return depleteLots(ctx, tx, input.ProductID, input.Quantity)
	})
	if err != nil {
		return Movement{}, err
	}
	s.afterWrite(ctx, input.ActorID, action, input.ProductID, map[string]any{"quantity": input.Quantity})
	return movement, nil
}

// Adjust sets the stock to an absolute target, recording the delta as one
// adjustment movement. Target below zero is rejected; zero delta is a no-op.
func (s *Service) Adjust(ctx context.Context, productID int64, newStock float64, notes string, actorID *int64) (Movement, error) {
	if newStock < 0 {
		return Movement{}, fmt.Errorf("%w: target stock must be >= 0", shared.ErrValidation)
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInventoryForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		delta := newStock - inv.StockActual
		if delta == 0 {
			return nil
		}
		qty := delta
		if qty < 0 {
			qty = -qty
		}
		movement = Movement{
			ProductID:   productID,
			Kind:        MovementAdjust,
			Quantity:    qty,
			StockBefore: inv.StockActual,
			StockAfter:  newStock,
			ActorID:     actorID,
			Notes:       notes,
		}
		id, err := tx.InsertMovement(ctx, movement)
		if err != nil {
			return err
		}
		movement.ID = id
		inv.StockActual = newStock
		return tx.UpsertInventory(ctx, inv)
	})
	if err != nil {
		return Movement{}, err
	}
	if movement.ID != 0 {
		s.afterWrite(ctx, actorID, "finishedgoods:adjust", productID, map[string]any{"new_stock": newStock})
	}
	return movement, nil
}

// SetMinimum updates the reorder threshold the low stock scan alerts on.
// The inventory row is created on first use so a minimum can be set before
// the first production run.
func (s *Service) SetMinimum(ctx context.Context, productID int64, minimum float64, actorID *int64) (Inventory, error) {
	if minimum < 0 {
		return Inventory{}, fmt.Errorf("%w: stock minimum must be >= 0", shared.ErrValidation)
	}
	var inv Inventory
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cur, err := tx.GetInventoryForUpdate(ctx, productID)
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			return err
		}
		cur.ProductID = productID
		cur.StockMinimum = minimum
		if err := tx.UpsertInventory(ctx, cur); err != nil {
			return err
		}
		inv = cur
		return nil
	})
	if err != nil {
		return Inventory{}, err
	}
	s.afterWrite(ctx, actorID, "finishedgoods:set_minimum", productID, map[string]any{"stock_minimum": minimum})
	return inv, nil
}

// WithdrawLot pulls a whole lot out of circulation (recall, quality hold)
// and removes its remaining quantity from stock.
func (s *Service) WithdrawLot(ctx context.Context, lotCode string, notes string, actorID *int64) (Lot, error) {
	lot, err := s.repo.GetLotByCode(ctx, lotCode)
	if err != nil {
		return Lot{}, err
	}
	if lot.Status != LotStatusActive {
		return Lot{}, fmt.Errorf("%w: lot %s is %s", ErrLotNotActive, lot.LotCode, lot.Status)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInventoryForUpdate(ctx, lot.ProductID)
		if err != nil {
			return err
		}
		// Stock can already sit below the lot remainder after manual
		// adjustments; withdraw what the ledger still carries.
		qty := lot.QuantityAvailable
		if qty > inv.StockActual {
			qty = inv.StockActual
		}
		if qty > 0 {
			movement := Movement{
				ProductID:   lot.ProductID,
				Kind:        MovementAdjust,
				Quantity:    qty,
				StockBefore: inv.StockActual,
				StockAfter:  inv.StockActual - qty,
				ActorID:     actorID,
				Notes:       fmt.Sprintf("lot withdrawal %s: %s", lot.LotCode, notes),
			}
			if _, err := tx.InsertMovement(ctx, movement); err != nil {
				return err
			}
			inv.StockActual -= qty
			if err := tx.UpsertInventory(ctx, inv); err != nil {
				return err
			}
		}
		return tx.UpdateLot(ctx, lot.ID, 0, LotStatusWithdrawn)
	})
	if err != nil {
		return Lot{}, err
	}
	lot.QuantityAvailable = 0
	lot.Status = LotStatusWithdrawn
	s.afterWrite(ctx, actorID, "finishedgoods:lot_withdraw", lot.ProductID, map[string]any{"lot_code": lot.LotCode})
	return lot, nil
}

// ExpireLots marks active lots past their expiry date, returning the codes
// that changed state. Invoked by the scheduled sweep.
func (s *Service) ExpireLots(ctx context.Context, asOf time.Time) ([]string, error) {
	codes, err := s.repo.ExpireLots(ctx, asOf)
	if err != nil {
		return nil, err
	}
	if len(codes) > 0 {
		_ = s.cache.Bump(ctx)
	}
	return codes, nil
}

// BelowMinimum lists products whose stock sits under their minimum.
func (s *Service) BelowMinimum(ctx context.Context) ([]Inventory, error) {
	return s.repo.BelowMinimum(ctx)
}

// InvalidateStock bumps the cache version. Exposed for callers that write
// through their own transactions, such as the production processor.
func (s *Service) InvalidateStock(ctx context.Context) {
	_ = s.cache.Bump(ctx)
}

func (s *Service) afterWrite(ctx context.Context, actorID *int64, action string, productID int64, meta map[string]any) {
	_ = s.cache.Bump(ctx)
	if s.audit == nil {
		return
	}
	var actor int64
	if actorID != nil {
		actor = *actorID
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "finished_good",
		EntityID: strconv.FormatInt(productID, 10),
		Meta:     meta,
	})
}
