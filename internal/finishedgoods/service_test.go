package finishedgoods

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bakehouse-erp/bakehouse-erp/internal/payroll"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

type memGoodsRepo struct {
	inventory    map[int64]Inventory
	movements    map[int64][]Movement
	lots         map[int64]Lot
	salespersons map[int64]payroll.Salesperson
	nextMoveID   int64
	nextLotID    int64
}

func newMemGoodsRepo() *memGoodsRepo {
	return &memGoodsRepo{
		inventory:    make(map[int64]Inventory),
		movements:    make(map[int64][]Movement),
		lots:         make(map[int64]Lot),
		salespersons: make(map[int64]payroll.Salesperson),
	}
}

func (r *memGoodsRepo) snapshot() *memGoodsRepo {
	cp := newMemGoodsRepo()
	for k, v := range r.inventory {
		cp.inventory[k] = v
	}
	for k, v := range r.movements {
		cp.movements[k] = append([]Movement(nil), v...)
	}
	for k, v := range r.lots {
		cp.lots[k] = v
	}
	for k, v := range r.salespersons {
		cp.salespersons[k] = v
	}
	cp.nextMoveID, cp.nextLotID = r.nextMoveID, r.nextLotID
	return cp
}

func (r *memGoodsRepo) restore(snap *memGoodsRepo) {
	r.inventory, r.movements, r.lots = snap.inventory, snap.movements, snap.lots
	r.salespersons = snap.salespersons
	r.nextMoveID, r.nextLotID = snap.nextMoveID, snap.nextLotID
}

func (r *memGoodsRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := r.snapshot()
	if err := fn(ctx, &memGoodsTx{repo: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memGoodsRepo) WithSaleTx(ctx context.Context, fn func(context.Context, SaleTx) error) error {
	snap := r.snapshot()
	if err := fn(ctx, &memSaleTx{repo: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memGoodsRepo) GetInventory(ctx context.Context, productID int64) (Inventory, error) {
	inv, ok := r.inventory[productID]
	if !ok {
		return Inventory{}, shared.ErrNotFound
	}
	return inv, nil
}

func (r *memGoodsRepo) ListInventory(ctx context.Context) ([]Inventory, error) {
	var out []Inventory
	for _, inv := range r.inventory {
		out = append(out, inv)
	}
	return out, nil
}

func (r *memGoodsRepo) Movements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	return append([]Movement(nil), r.movements[productID]...), nil
}

func (r *memGoodsRepo) Lots(ctx context.Context, productID int64, status LotStatus) ([]Lot, error) {
	var out []Lot
	for _, lot := range r.lots {
		if lot.ProductID != productID {
			continue
		}
		if status != "" && lot.Status != status {
			continue
		}
		out = append(out, lot)
	}
	return out, nil
}

func (r *memGoodsRepo) GetLotByCode(ctx context.Context, code string) (Lot, error) {
	for _, lot := range r.lots {
		if lot.LotCode == code {
			return lot, nil
		}
	}
	return Lot{}, shared.ErrNotFound
}

func (r *memGoodsRepo) ExpireLots(ctx context.Context, asOf time.Time) ([]string, error) {
	var codes []string
	for id, lot := range r.lots {
		if lot.Status == LotStatusActive && lot.ExpiryDate.Before(asOf) {
			lot.Status = LotStatusExpired
			r.lots[id] = lot
			codes = append(codes, lot.LotCode)
		}
	}
	return codes, nil
}

func (r *memGoodsRepo) BelowMinimum(ctx context.Context) ([]Inventory, error) {
	var out []Inventory
	for _, inv := range r.inventory {
		if inv.StockActual < inv.StockMinimum {
			out = append(out, inv)
		}
	}
	return out, nil
}

type memGoodsTx struct {
	repo *memGoodsRepo
}

func (t *memGoodsTx) GetInventoryForUpdate(ctx context.Context, productID int64) (Inventory, error) {
	return t.repo.GetInventory(ctx, productID)
}

func (t *memGoodsTx) UpsertInventory(ctx context.Context, inv Inventory) error {
	t.repo.inventory[inv.ProductID] = inv
	return nil
}

func (t *memGoodsTx) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	t.repo.nextMoveID++
	m.ID = t.repo.nextMoveID
	t.repo.movements[m.ProductID] = append(t.repo.movements[m.ProductID], m)
	return m.ID, nil
}

func (t *memGoodsTx) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	t.repo.nextLotID++
	lot.ID = t.repo.nextLotID
	t.repo.lots[lot.ID] = lot
	return lot.ID, nil
}

func (t *memGoodsTx) ActiveLotsForUpdate(ctx context.Context, productID int64) ([]Lot, error) {
	var out []Lot
	for _, lot := range t.repo.lots {
		if lot.ProductID == productID && lot.Status == LotStatusActive {
			out = append(out, lot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

func (t *memGoodsTx) UpdateLot(ctx context.Context, lotID int64, available float64, status LotStatus) error {
	lot, ok := t.repo.lots[lotID]
	if !ok {
		return shared.ErrNotFound
	}
	lot.QuantityAvailable, lot.Status = available, status
	t.repo.lots[lotID] = lot
	return nil
}

type memSaleTx struct {
	repo *memGoodsRepo
}

func (t *memSaleTx) Goods() TxRepository { return &memGoodsTx{repo: t.repo} }

func (t *memSaleTx) Payroll() payroll.TxRepository { return &memSalePayrollTx{repo: t.repo} }

// memSalePayrollTx implements only what a sale exercises; baker methods are
// unreachable from CommitSale.
type memSalePayrollTx struct {
	repo *memGoodsRepo
}

func (t *memSalePayrollTx) GetBakerForUpdate(ctx context.Context, id int64) (payroll.Baker, error) {
	return payroll.Baker{}, shared.ErrNotFound
}

func (t *memSalePayrollTx) UpdateBakerAccrual(ctx context.Context, id int64, kilosAccrued, unitsTotal float64) error {
	return shared.ErrNotFound
}

func (t *memSalePayrollTx) GetSalespersonForUpdate(ctx context.Context, id int64) (payroll.Salesperson, error) {
	s, ok := t.repo.salespersons[id]
	if !ok {
		return payroll.Salesperson{}, shared.ErrNotFound
	}
	return s, nil
}

func (t *memSalePayrollTx) UpdateSalespersonAccrual(ctx context.Context, id int64, commissionAccrued, totalSold float64) error {
	s := t.repo.salespersons[id]
	s.CommissionAccrued, s.TotalSold = commissionAccrued, totalSold
	t.repo.salespersons[id] = s
	return nil
}

func (t *memSalePayrollTx) InsertPayment(ctx context.Context, p payroll.StaffPayment) (int64, error) {
	return 0, shared.ErrNotFound
}

func seedLot(repo *memGoodsRepo, id int64, productID int64, code string, available float64, expiry time.Time) {
	repo.nextLotID = id
	repo.lots[id] = Lot{
		ID: id, LotCode: code, ProductID: productID,
		QuantityProduced: available, QuantityAvailable: available,
		ExpiryDate: expiry, Status: LotStatusActive,
	}
}

func i64(v int64) *int64 { return &v }

func TestCommitSaleDepletesOldestLotFirst(t *testing.T) {
	repo := newMemGoodsRepo()
	repo.inventory[1] = Inventory{ProductID: 1, StockActual: 30}
	now := time.Now()
	seedLot(repo, 1, 1, "LOT-A", 10, now.Add(24*time.Hour))
	seedLot(repo, 2, 1, "LOT-B", 20, now.Add(72*time.Hour))
	svc := NewService(repo, nil, nil)

	movement, err := svc.CommitSale(context.Background(), SaleInput{
		ProductID: 1, Quantity: 15, OrderID: "ORD-1", ActorID: i64(9),
	})
	require.NoError(t, err)
	require.Equal(t, MovementSaleOut, movement.Kind)
	require.Equal(t, 15.0, movement.StockAfter)

	// The near-expiry lot empties first; the later one covers the rest.
	require.Equal(t, LotStatusDepleted, repo.lots[1].Status)
	require.Equal(t, 0.0, repo.lots[1].QuantityAvailable)
	require.Equal(t, LotStatusActive, repo.lots[2].Status)
	require.Equal(t, 15.0, repo.lots[2].QuantityAvailable)
}

func TestCommitSaleInsufficientStock(t *testing.T) {
	repo := newMemGoodsRepo()
	repo.inventory[1] = Inventory{ProductID: 1, StockActual: 4}
	seedLot(repo, 1, 1, "LOT-A", 4, time.Now().Add(24*time.Hour))
	svc := NewService(repo, nil, nil)

	_, err := svc.CommitSale(context.Background(), SaleInput{ProductID: 1, Quantity: 5, OrderID: "ORD-1"})
	require.ErrorIs(t, err, ErrInsufficientStock)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, 5.0, stockErr.Required)
	require.Equal(t, 4.0, stockErr.Available)

	// Nothing committed: stock, lots and ledger are untouched.
	require.Equal(t, 4.0, repo.inventory[1].StockActual)
	require.Equal(t, 4.0, repo.lots[1].QuantityAvailable)
	require.Empty(t, repo.movements[1])
}

func TestCommitSaleAccruesCommission(t *testing.T) {
	repo := newMemGoodsRepo()
	repo.inventory[1] = Inventory{ProductID: 1, StockActual: 10}
	repo.salespersons[3] = payroll.Salesperson{ID: 3, CommissionRate: 10, Active: true}
	svc := NewService(repo, nil, nil)

	_, err := svc.CommitSale(context.Background(), SaleInput{
		ProductID: 1, Quantity: 2, OrderID: "ORD-2",
		SalespersonID: i64(3), Subtotal: 50,
	})
	require.NoError(t, err)

	s := repo.salespersons[3]
	require.InDelta(t, 5.0, s.CommissionAccrued, 1e-9)
	require.Equal(t, 50.0, s.TotalSold)
}

func TestCommitSaleUnknownSalespersonRollsBackStock(t *testing.T) {
	repo := newMemGoodsRepo()
	repo.inventory[1] = Inventory{ProductID: 1, StockActual: 10}
	svc := NewService(repo, nil, nil)

	_, err := svc.CommitSale(context.Background(), SaleInput{
		ProductID: 1, Quantity: 2, OrderID: "ORD-3",
		SalespersonID: i64(99), Subtotal: 50,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, 10.0, repo.inventory[1].StockActual)
	require.Empty(t, repo.movements[1])
}

func TestApplyProductionInCreatesInventoryAndLot(t *testing.T) {
	repo := newMemGoodsRepo()
	var movement Movement
	var lot Lot
	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, lot, err = ApplyProductionIn(ctx, tx, ProductionInParams{
			ProductID: 1, Quantity: 40, UnitCost: 1.5, ProductionID: 7, ShelfLifeDays: 3,
		})
		return err
	})
	require.NoError(t, err)
	require.Equal(t, MovementProductionIn, movement.Kind)
	require.Equal(t, 0.0, movement.StockBefore)
	require.Equal(t, 40.0, movement.StockAfter)

	inv := repo.inventory[1]
	require.Equal(t, 40.0, inv.StockActual)
	require.Equal(t, 1.5, inv.AverageCost)
	require.NotNil(t, inv.ExpiryDate)

	require.Equal(t, LotStatusActive, lot.Status)
	require.Equal(t, 40.0, lot.QuantityAvailable)
	require.Contains(t, lot.LotCode, "LOT-")
}

func TestApplyProductionInWeightedAverageCost(t *testing.T) {
	repo := newMemGoodsRepo()
	repo.inventory[1] = Inventory{ProductID: 1, StockActual: 10, AverageCost: 2.0}

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, _, err := ApplyProductionIn(ctx, tx, ProductionInParams{
			ProductID: 1, Quantity: 10, UnitCost: 4.0, ProductionID: 7, ShelfLifeDays: 3,
		})
		return err
	})
	require.NoError(t, err)
	require.InDelta(t, 3.0, repo.inventory[1].AverageCost, 1e-9)
}

func TestSetMinimumFeedsLowStockScan(t *testing.T) {
	repo := newMemGoodsRepo()
	repo.inventory[1] = Inventory{ProductID: 1, StockActual: 3, AverageCost: 2.5}
	svc := NewService(repo, nil, nil)

	inv, err := svc.SetMinimum(context.Background(), 1, 10, i64(9))
	require.NoError(t, err)
	require.Equal(t, 10.0, inv.StockMinimum)
	require.Equal(t, 3.0, repo.inventory[1].StockActual)
	require.Equal(t, 2.5, repo.inventory[1].AverageCost)

	low, err := svc.BelowMinimum(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.EqualValues(t, 1, low[0].ProductID)
}

func TestSetMinimumCreatesInventoryRow(t *testing.T) {
	repo := newMemGoodsRepo()
	svc := NewService(repo, nil, nil)

	inv, err := svc.SetMinimum(context.Background(), 7, 5, i64(9))
	require.NoError(t, err)
	require.Equal(t, 5.0, inv.StockMinimum)
	require.Equal(t, 0.0, repo.inventory[7].StockActual)
}

func TestSetMinimumRejectsNegative(t *testing.T) {
	repo := newMemGoodsRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.SetMinimum(context.Background(), 1, -1, i64(9))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAdjustRecordsDelta(t *testing.T) {
	repo := newMemGoodsRepo()
	repo.inventory[1] = Inventory{ProductID: 1, StockActual: 20}
	svc := NewService(repo, nil, nil)

	movement, err := svc.Adjust(context.Background(), 1, 14, "count", i64(9))
	require.NoError(t, err)
	require.Equal(t, MovementAdjust, movement.Kind)
	require.Equal(t, 6.0, movement.Quantity)
	require.Equal(t, 14.0, movement.StockAfter)
	require.Equal(t, 14.0, repo.inventory[1].StockActual)
}

func TestAdjustZeroDeltaIsNoop(t *testing.T) {
	repo := newMemGoodsRepo()
	repo.inventory[1] = Inventory{ProductID: 1, StockActual: 20}
	svc := NewService(repo, nil, nil)

	movement, err := svc.Adjust(context.Background(), 1, 20, "count", nil)
	require.NoError(t, err)
	require.Zero(t, movement.ID)
	require.Empty(t, repo.movements[1])
}

func TestWithdrawLotRemovesRemainderFromStock(t *testing.T) {
	repo := newMemGoodsRepo()
	repo.inventory[1] = Inventory{ProductID: 1, StockActual: 25}
	seedLot(repo, 1, 1, "LOT-R", 10, time.Now().Add(48*time.Hour))
	svc := NewService(repo, nil, nil)

	lot, err := svc.WithdrawLot(context.Background(), "LOT-R", "quality hold", i64(9))
	require.NoError(t, err)
	require.Equal(t, LotStatusWithdrawn, lot.Status)
	require.Equal(t, 0.0, lot.QuantityAvailable)
	require.Equal(t, 15.0, repo.inventory[1].StockActual)

	moves := repo.movements[1]
	require.Len(t, moves, 1)
	require.Equal(t, MovementAdjust, moves[0].Kind)
	require.Contains(t, moves[0].Notes, "LOT-R")
}

func TestWithdrawLotRejectsNonActive(t *testing.T) {
	repo := newMemGoodsRepo()
	repo.inventory[1] = Inventory{ProductID: 1, StockActual: 25}
	seedLot(repo, 1, 1, "LOT-X", 0, time.Now())
	lot := repo.lots[1]
	lot.Status = LotStatusExpired
	repo.lots[1] = lot
	svc := NewService(repo, nil, nil)

	_, err := svc.WithdrawLot(context.Background(), "LOT-X", "", nil)
	require.ErrorIs(t, err, ErrLotNotActive)
}

func TestExpireLots(t *testing.T) {
	repo := newMemGoodsRepo()
	now := time.Now()
	seedLot(repo, 1, 1, "LOT-OLD", 5, now.Add(-time.Hour))
	seedLot(repo, 2, 1, "LOT-NEW", 5, now.Add(48*time.Hour))
	svc := NewService(repo, nil, nil)

	codes, err := svc.ExpireLots(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, []string{"LOT-OLD"}, codes)
	require.Equal(t, LotStatusExpired, repo.lots[1].Status)
	require.Equal(t, LotStatusActive, repo.lots[2].Status)
}

func TestCurrentStockWithoutCache(t *testing.T) {
	repo := newMemGoodsRepo()
	repo.inventory[1] = Inventory{ProductID: 1, StockActual: 12}
	svc := NewService(repo, nil, nil)

	inv, err := svc.CurrentStock(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 12.0, inv.StockActual)

	_, err = svc.CurrentStock(context.Background(), 2)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
