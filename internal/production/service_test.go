package production

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bakehouse-erp/bakehouse-erp/internal/catalog"
	"github.com/bakehouse-erp/bakehouse-erp/internal/finishedgoods"
	"github.com/bakehouse-erp/bakehouse-erp/internal/masterdata"
	"github.com/bakehouse-erp/bakehouse-erp/internal/materials"
	"github.com/bakehouse-erp/bakehouse-erp/internal/payroll"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// memWorld backs every ledger a production run touches, so one fake covers
// the whole cross-module transaction.
type memWorld struct {
	products      map[int64]masterdata.Product
	recipes       map[int64]catalog.Recipe
	materials     map[int64]materials.RawMaterial
	materialMoves []materials.Movement
	inventory     map[int64]finishedgoods.Inventory
	goodsMoves    []finishedgoods.Movement
	lots          map[int64]finishedgoods.Lot
	bakers        map[int64]payroll.Baker
	runs          map[int64]Run
	nextRunID     int64
	nextMoveID    int64
	nextLotID     int64
	invalidations int
}

func newMemWorld() *memWorld {
	return &memWorld{
		products:  make(map[int64]masterdata.Product),
		recipes:   make(map[int64]catalog.Recipe),
		materials: make(map[int64]materials.RawMaterial),
		inventory: make(map[int64]finishedgoods.Inventory),
		lots:      make(map[int64]finishedgoods.Lot),
		bakers:    make(map[int64]payroll.Baker),
		runs:      make(map[int64]Run),
	}
}

func (w *memWorld) snapshot() *memWorld {
	cp := newMemWorld()
	for k, v := range w.products {
		cp.products[k] = v
	}
	for k, v := range w.recipes {
		cp.recipes[k] = v
	}
	for k, v := range w.materials {
		cp.materials[k] = v
	}
	for k, v := range w.inventory {
		cp.inventory[k] = v
	}
	for k, v := range w.lots {
		cp.lots[k] = v
	}
	for k, v := range w.bakers {
		cp.bakers[k] = v
	}
	for k, v := range w.runs {
		cp.runs[k] = v
	}
	cp.materialMoves = append([]materials.Movement(nil), w.materialMoves...)
	cp.goodsMoves = append([]finishedgoods.Movement(nil), w.goodsMoves...)
	cp.nextRunID, cp.nextMoveID, cp.nextLotID = w.nextRunID, w.nextMoveID, w.nextLotID
	cp.invalidations = w.invalidations
	return cp
}

func (w *memWorld) restore(snap *memWorld) {
	w.products, w.recipes, w.materials = snap.products, snap.recipes, snap.materials
	w.inventory, w.lots, w.bakers, w.runs = snap.inventory, snap.lots, snap.bakers, snap.runs
	w.materialMoves, w.goodsMoves = snap.materialMoves, snap.goodsMoves
	w.nextRunID, w.nextMoveID, w.nextLotID = snap.nextRunID, snap.nextMoveID, snap.nextLotID
	w.invalidations = snap.invalidations
}

// InvalidateStock satisfies StockInvalidator.
func (w *memWorld) InvalidateStock(ctx context.Context) { w.invalidations++ }

type memProducts struct{ world *memWorld }

func (p memProducts) Get(ctx context.Context, id int64) (masterdata.Product, error) {
	product, ok := p.world.products[id]
	if !ok {
		return masterdata.Product{}, shared.ErrNotFound
	}
	return product, nil
}

type memRecipes struct{ world *memWorld }

func (r memRecipes) GetActive(ctx context.Context, productID int64) (catalog.Recipe, error) {
	for _, rec := range r.world.recipes {
		if rec.ProductID == productID && rec.Active {
			return rec, nil
		}
	}
	return catalog.Recipe{}, shared.ErrNotFound
}

type memMaterialsReader struct{ world *memWorld }

func (m memMaterialsReader) Get(ctx context.Context, id int64) (materials.RawMaterial, error) {
	mat, ok := m.world.materials[id]
	if !ok {
		return materials.RawMaterial{}, shared.ErrNotFound
	}
	return mat, nil
}

type memRunStore struct{ world *memWorld }

func (s memRunStore) WithBundle(ctx context.Context, attempts int, fn func(context.Context, Bundle) error) error {
	snap := s.world.snapshot()
	if err := fn(ctx, memBundle{world: s.world}); err != nil {
		s.world.restore(snap)
		return err
	}
	return nil
}

func (s memRunStore) GetRun(ctx context.Context, id int64) (Run, error) {
	run, ok := s.world.runs[id]
	if !ok {
		return Run{}, shared.ErrNotFound
	}
	return run, nil
}

func (s memRunStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	var out []Run
	for _, run := range s.world.runs {
		if filter.ProductID != 0 && run.ProductID != filter.ProductID {
			continue
		}
		out = append(out, run)
	}
	return out, nil
}

type memBundle struct{ world *memWorld }

func (b memBundle) Materials() materials.TxRepository { return memMaterialsTx{world: b.world} }
func (b memBundle) Goods() finishedgoods.TxRepository { return memGoodsTx{world: b.world} }
func (b memBundle) Payroll() payroll.TxRepository     { return memPayrollTx{world: b.world} }

func (b memBundle) InsertRun(ctx context.Context, run Run) (int64, error) {
	b.world.nextRunID++
	run.ID = b.world.nextRunID
	b.world.runs[run.ID] = run
	return run.ID, nil
}

func (b memBundle) CompleteRun(ctx context.Context, run Run) error {
	stored, ok := b.world.runs[run.ID]
	if !ok || stored.Status != StatusInProgress {
		return shared.ErrNotFound
	}
	b.world.runs[run.ID] = run
	return nil
}

type memMaterialsTx struct{ world *memWorld }

func (t memMaterialsTx) GetForUpdate(ctx context.Context, materialID int64) (materials.RawMaterial, error) {
	mat, ok := t.world.materials[materialID]
	if !ok {
		return materials.RawMaterial{}, shared.ErrNotFound
	}
	return mat, nil
}

func (t memMaterialsTx) UpdateStock(ctx context.Context, materialID int64, stock, unitCost float64) error {
	mat := t.world.materials[materialID]
	mat.StockActual, mat.UnitCost = stock, unitCost
	t.world.materials[materialID] = mat
	return nil
}

func (t memMaterialsTx) InsertMovement(ctx context.Context, m materials.Movement) (int64, error) {
	t.world.nextMoveID++
	m.ID = t.world.nextMoveID
	t.world.materialMoves = append(t.world.materialMoves, m)
	return m.ID, nil
}

type memGoodsTx struct{ world *memWorld }

func (t memGoodsTx) GetInventoryForUpdate(ctx context.Context, productID int64) (finishedgoods.Inventory, error) {
	inv, ok := t.world.inventory[productID]
	if !ok {
		return finishedgoods.Inventory{}, shared.ErrNotFound
	}
	return inv, nil
}

func (t memGoodsTx) UpsertInventory(ctx context.Context, inv finishedgoods.Inventory) error {
	t.world.inventory[inv.ProductID] = inv
	return nil
}

func (t memGoodsTx) InsertMovement(ctx context.Context, m finishedgoods.Movement) (int64, error) {
	t.world.nextMoveID++
	m.ID = t.world.nextMoveID
	t.world.goodsMoves = append(t.world.goodsMoves, m)
	return m.ID, nil
}

func (t memGoodsTx) InsertLot(ctx context.Context, lot finishedgoods.Lot) (int64, error) {
	t.world.nextLotID++
	lot.ID = t.world.nextLotID
	t.world.lots[lot.ID] = lot
	return lot.ID, nil
}

func (t memGoodsTx) ActiveLotsForUpdate(ctx context.Context, productID int64) ([]finishedgoods.Lot, error) {
	var out []finishedgoods.Lot
	for _, lot := range t.world.lots {
		if lot.ProductID == productID && lot.Status == finishedgoods.LotStatusActive {
			out = append(out, lot)
		}
	}
	return out, nil
}

func (t memGoodsTx) UpdateLot(ctx context.Context, lotID int64, available float64, status finishedgoods.LotStatus) error {
	lot, ok := t.world.lots[lotID]
	if !ok {
		return shared.ErrNotFound
	}
	lot.QuantityAvailable, lot.Status = available, status
	t.world.lots[lotID] = lot
	return nil
}

type memPayrollTx struct{ world *memWorld }

func (t memPayrollTx) GetBakerForUpdate(ctx context.Context, id int64) (payroll.Baker, error) {
	baker, ok := t.world.bakers[id]
	if !ok {
		return payroll.Baker{}, shared.ErrNotFound
	}
	return baker, nil
}

func (t memPayrollTx) UpdateBakerAccrual(ctx context.Context, id int64, kilosAccrued, unitsTotal float64) error {
	baker := t.world.bakers[id]
	baker.KilosAccrued, baker.UnitsProducedTotal = kilosAccrued, unitsTotal
	t.world.bakers[id] = baker
	return nil
}

func (t memPayrollTx) GetSalespersonForUpdate(ctx context.Context, id int64) (payroll.Salesperson, error) {
	return payroll.Salesperson{}, shared.ErrNotFound
}

func (t memPayrollTx) UpdateSalespersonAccrual(ctx context.Context, id int64, commissionAccrued, totalSold float64) error {
	return shared.ErrNotFound
}

func (t memPayrollTx) InsertPayment(ctx context.Context, p payroll.StaffPayment) (int64, error) {
	return 0, shared.ErrNotFound
}

func newTestService(world *memWorld) *Service {
	return NewService(
		memRunStore{world: world},
		memRecipes{world: world},
		memProducts{world: world},
		memMaterialsReader{world: world},
		world,
		nil,
		1,
	)
}

// seedBreadWorld sets up a weight-denominated product whose recipe yields 10
// units from 4 kg flour and 1 kg sugar.
func seedBreadWorld() *memWorld {
	world := newMemWorld()
	world.products[1] = masterdata.Product{ID: 1, Name: "sourdough", Unit: "kg", ShelfLifeDays: 2, Active: true}
	world.recipes[1] = catalog.Recipe{
		ID: 1, ProductID: 1, Version: 3, YieldQuantity: 10, YieldUnit: "kg", Active: true,
		Ingredients: []catalog.RecipeIngredient{
			{RecipeID: 1, MaterialID: 10, Quantity: 4, Unit: "kg"},
			{RecipeID: 1, MaterialID: 11, Quantity: 1, Unit: "kg"},
		},
	}
	world.materials[10] = materials.RawMaterial{ID: 10, Name: "flour", Unit: "kg", StockActual: 20, UnitCost: 2.0, Active: true}
	world.materials[11] = materials.RawMaterial{ID: 11, Name: "sugar", Unit: "kg", StockActual: 10, UnitCost: 1.0, Active: true}
	world.bakers[5] = payroll.Baker{ID: 5, Name: "ana", Active: true}
	return world
}

func bakerRef(id int64) *int64 { return &id }

func TestProcessCommitsEveryEffect(t *testing.T) {
	world := seedBreadWorld()
	svc := newTestService(world)

	run, err := svc.Process(context.Background(), ProcessInput{
		ProductID: 1, OutputQuantity: 25, BakerID: bakerRef(5), AuthorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, run.Status)
	require.Equal(t, 3, run.RecipeVersion)
	require.NotEmpty(t, run.LotCode)

	// Recipe scaled 10 -> 25: flour 10 kg, sugar 2.5 kg.
	require.Equal(t, 10.0, world.materials[10].StockActual)
	require.Equal(t, 7.5, world.materials[11].StockActual)
	require.Len(t, world.materialMoves, 2)
	for _, mv := range world.materialMoves {
		require.Equal(t, materials.MovementConsumption, mv.Kind)
		require.NotNil(t, mv.ProductionID)
		require.Equal(t, run.ID, *mv.ProductionID)
	}

	// Cost: 10*2.0 + 2.5*1.0 over 25 units.
	require.InDelta(t, 22.5, run.ProductionCost, 1e-9)
	require.InDelta(t, 0.9, run.UnitCost, 1e-9)

	require.Equal(t, 25.0, world.inventory[1].StockActual)
	require.Len(t, world.lots, 1)

	// kg output accrues the baker's kilos.
	require.Equal(t, 25.0, world.bakers[5].KilosAccrued)
	require.Equal(t, 1, world.invalidations)

	stored, err := svc.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, stored.Status)
}

func TestProcessVarianceClassification(t *testing.T) {
	world := seedBreadWorld()
	svc := newTestService(world)

	over := 12.0
	run, err := svc.Process(context.Background(), ProcessInput{
		ProductID: 1, OutputQuantity: 25, PrimaryActualOverride: &over, AuthorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, 10.0, run.PrimaryTheoretical)
	require.Equal(t, 12.0, run.PrimaryActual)
	require.Equal(t, 2.0, run.Variance)
	require.Equal(t, VarianceShortfall, run.VarianceKind)

	// Output 10 at yield 10 scales the primary flour line to 4kg.
	under := 3.5
	run, err = svc.Process(context.Background(), ProcessInput{
		ProductID: 1, OutputQuantity: 10, PrimaryActualOverride: &under, AuthorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, 4.0, run.PrimaryTheoretical)
	require.Equal(t, VarianceExcess, run.VarianceKind)
	require.InDelta(t, -0.5, run.Variance, 1e-9)
}

func TestProcessListsEveryShortage(t *testing.T) {
	world := seedBreadWorld()
	world.materials[10] = materials.RawMaterial{ID: 10, Name: "flour", StockActual: 3, UnitCost: 2, Active: true}
	world.materials[11] = materials.RawMaterial{ID: 11, Name: "sugar", StockActual: 1, UnitCost: 1, Active: true}
	svc := newTestService(world)

	_, err := svc.Process(context.Background(), ProcessInput{ProductID: 1, OutputQuantity: 25, AuthorID: 9})
	require.ErrorIs(t, err, ErrInsufficientIngredients)

	var shortErr *InsufficientIngredientsError
	require.ErrorAs(t, err, &shortErr)
	require.Len(t, shortErr.Shortages, 2)
	require.Equal(t, "flour", shortErr.Shortages[0].Name)
	require.Equal(t, 10.0, shortErr.Shortages[0].Required)
	require.Equal(t, 3.0, shortErr.Shortages[0].Available)
	require.Equal(t, "sugar", shortErr.Shortages[1].Name)

	// Pre-check failure writes nothing.
	require.Empty(t, world.materialMoves)
	require.Empty(t, world.runs)
}

func TestProcessRollsBackWholeRunOnLateFailure(t *testing.T) {
	world := seedBreadWorld()
	svc := newTestService(world)

	// Pre-check cannot see a missing baker; the accrual fails inside the
	// transaction after materials were consumed and stock was emitted.
	_, err := svc.Process(context.Background(), ProcessInput{
		ProductID: 1, OutputQuantity: 25, BakerID: bakerRef(404), AuthorID: 9,
	})
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.Equal(t, 20.0, world.materials[10].StockActual)
	require.Equal(t, 10.0, world.materials[11].StockActual)
	require.Empty(t, world.materialMoves)
	require.Empty(t, world.goodsMoves)
	require.Empty(t, world.inventory)
	require.Empty(t, world.lots)
	require.Empty(t, world.runs)
	require.Zero(t, world.invalidations)
}

func TestProcessSkipsAccrualForUnitDenominatedOutput(t *testing.T) {
	world := seedBreadWorld()
	product := world.products[1]
	product.Unit = "unit"
	world.products[1] = product
	svc := newTestService(world)

	_, err := svc.Process(context.Background(), ProcessInput{
		ProductID: 1, OutputQuantity: 25, BakerID: bakerRef(5), AuthorID: 9,
	})
	require.NoError(t, err)
	require.Equal(t, 0.0, world.bakers[5].KilosAccrued)
}

func TestProcessMergesExtraIngredients(t *testing.T) {
	world := seedBreadWorld()
	world.materials[12] = materials.RawMaterial{ID: 12, Name: "raisins", StockActual: 5, UnitCost: 3, Active: true}
	svc := newTestService(world)

	run, err := svc.Process(context.Background(), ProcessInput{
		ProductID: 1, OutputQuantity: 10, AuthorID: 9,
		ExtraIngredients: []ExtraIngredient{
			{MaterialID: 10, Quantity: 0.5},
			{MaterialID: 12, Quantity: 2},
		},
	})
	require.NoError(t, err)

	// Flour: 4 scaled + 0.5 extra in one movement; raisins untouched by the
	// recipe but consumed as given.
	require.Equal(t, 15.5, world.materials[10].StockActual)
	require.Equal(t, 3.0, world.materials[12].StockActual)
	require.Len(t, world.materialMoves, 3)
	// 4.5*2 + 1*1 + 2*3
	require.InDelta(t, 16.0, run.ProductionCost, 1e-9)
}

func TestProcessRejectsInvalidInput(t *testing.T) {
	world := seedBreadWorld()
	svc := newTestService(world)
	ctx := context.Background()

	_, err := svc.Process(ctx, ProcessInput{ProductID: 1, OutputQuantity: 0})
	require.ErrorIs(t, err, ErrInvalidOutput)

	_, err = svc.Process(ctx, ProcessInput{
		ProductID: 1, OutputQuantity: 5,
		ExtraIngredients: []ExtraIngredient{{MaterialID: 10, Quantity: -1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Process(ctx, ProcessInput{ProductID: 404, OutputQuantity: 5})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
