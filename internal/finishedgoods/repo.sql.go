package finishedgoods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakehouse-erp/bakehouse-erp/internal/payroll"
	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/db"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// Repository persists finished-good stock, movements and lots in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service and by the
// production processor.
type TxRepository interface {
	GetInventoryForUpdate(ctx context.Context, productID int64) (Inventory, error)
	UpsertInventory(ctx context.Context, inv Inventory) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
	InsertLot(ctx context.Context, lot Lot) (int64, error)
	ActiveLotsForUpdate(ctx context.Context, productID int64) ([]Lot, error)
	UpdateLot(ctx context.Context, lotID int64, available float64, status LotStatus) error
}

// SaleTx bundles the finished-good ledger with payroll accrual so a sale and
// its commission commit atomically.
type SaleTx interface {
	Goods() TxRepository
	Payroll() payroll.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction for cross-module composition.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

type saleTx struct {
	goods   TxRepository
	payroll payroll.TxRepository
}

func (s *saleTx) Goods() TxRepository           { return s.goods }
func (s *saleTx) Payroll() payroll.TxRepository { return s.payroll }

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

// WithSaleTx executes the callback with ledger and payroll sharing one
// transaction.
func (r *Repository) WithSaleTx(ctx context.Context, fn func(context.Context, SaleTx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &saleTx{goods: &txRepository{tx: tx}, payroll: payroll.NewTxRepository(tx)})
	})
}

const inventoryColumns = `product_id, stock_actual, stock_minimum, elaboration_date, shelf_life_days, expiry_date, average_cost, updated_at`

// GetInventory returns the stock row for one product.
func (r *Repository) GetInventory(ctx context.Context, productID int64) (Inventory, error) {
	var inv Inventory
	err := r.pool.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM finished_good_inventory WHERE product_id=$1`, productID).
		Scan(&inv.ProductID, &inv.StockActual, &inv.StockMinimum, &inv.ElaborationDate, &inv.ShelfLifeDays, &inv.ExpiryDate, &inv.AverageCost, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Inventory{}, shared.ErrNotFound
		}
		return Inventory{}, err
	}
	return inv, nil
}

// ListInventory returns every stock row.
func (r *Repository) ListInventory(ctx context.Context) ([]Inventory, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+inventoryColumns+` FROM finished_good_inventory ORDER BY product_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Inventory{}
	for rows.Next() {
		var inv Inventory
		if err := rows.Scan(&inv.ProductID, &inv.StockActual, &inv.StockMinimum, &inv.ElaborationDate, &inv.ShelfLifeDays, &inv.ExpiryDate, &inv.AverageCost, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

// Movements returns the ledger for one product, oldest first.
func (r *Repository) Movements(ctx context.Context, productID int64, limit int) ([]Movement, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, kind, quantity, stock_before, stock_after, production_id, order_id, actor_id, notes, created_at
FROM finished_good_movements WHERE product_id=$1 ORDER BY id ASC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Kind, &m.Quantity, &m.StockBefore, &m.StockAfter, &m.ProductionID, &m.OrderID, &m.ActorID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

const lotColumns = `id, lot_code, production_id, product_id, quantity_produced, quantity_available, expiry_date, status, created_at`

// Lots returns lots for a product filtered by status ("" for all).
func (r *Repository) Lots(ctx context.Context, productID int64, status LotStatus) ([]Lot, error) {
	query := `SELECT ` + lotColumns + ` FROM production_lots WHERE product_id=$1`
	args := []any{productID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, string(status))
	}
	query += ` ORDER BY expiry_date ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLots(rows)
}

// GetLotByCode returns one lot.
func (r *Repository) GetLotByCode(ctx context.Context, code string) (Lot, error) {
	var lot Lot
	err := r.pool.QueryRow(ctx, `SELECT `+lotColumns+` FROM production_lots WHERE lot_code=$1`, code).
		Scan(&lot.ID, &lot.LotCode, &lot.ProductionID, &lot.ProductID, &lot.QuantityProduced, &lot.QuantityAvailable, &lot.ExpiryDate, &lot.Status, &lot.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lot{}, shared.ErrNotFound
		}
		return Lot{}, err
	}
	return lot, nil
}

// ExpireLots flips active lots past their expiry date; returns affected codes.
func (r *Repository) ExpireLots(ctx context.Context, asOf time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `UPDATE production_lots SET status=$1 WHERE status=$2 AND expiry_date < $3 RETURNING lot_code`,
		string(LotStatusExpired), string(LotStatusActive), asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	codes := []string{}
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// BelowMinimum lists products whose finished stock sits under the threshold.
func (r *Repository) BelowMinimum(ctx context.Context) ([]Inventory, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+inventoryColumns+` FROM finished_good_inventory WHERE stock_actual < stock_minimum ORDER BY product_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []Inventory{}
	for rows.Next() {
		var inv Inventory
		if err := rows.Scan(&inv.ProductID, &inv.StockActual, &inv.StockMinimum, &inv.ElaborationDate, &inv.ShelfLifeDays, &inv.ExpiryDate, &inv.AverageCost, &inv.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

func (r *txRepository) GetInventoryForUpdate(ctx context.Context, productID int64) (Inventory, error) {
	var inv Inventory
	err := r.tx.QueryRow(ctx, `SELECT `+inventoryColumns+` FROM finished_good_inventory WHERE product_id=$1 FOR UPDATE`, productID).
		Scan(&inv.ProductID, &inv.StockActual, &inv.StockMinimum, &inv.ElaborationDate, &inv.ShelfLifeDays, &inv.ExpiryDate, &inv.AverageCost, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Inventory{ProductID: productID}, shared.ErrNotFound
		}
		return Inventory{}, err
	}
	return inv, nil
}

func (r *txRepository) UpsertInventory(ctx context.Context, inv Inventory) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO finished_good_inventory (product_id, stock_actual, stock_minimum, elaboration_date, shelf_life_days, expiry_date, average_cost, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())
ON CONFLICT (product_id) DO UPDATE SET stock_actual=EXCLUDED.stock_actual, stock_minimum=EXCLUDED.stock_minimum, elaboration_date=EXCLUDED.elaboration_date,
shelf_life_days=EXCLUDED.shelf_life_days, expiry_date=EXCLUDED.expiry_date, average_cost=EXCLUDED.average_cost, updated_at=NOW()`,
		inv.ProductID, inv.StockActual, inv.StockMinimum, inv.ElaborationDate, inv.ShelfLifeDays, inv.ExpiryDate, inv.AverageCost)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO finished_good_movements (product_id, kind, quantity, stock_before, stock_after, production_id, order_id, actor_id, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id`,
		m.ProductID, string(m.Kind), m.Quantity, m.StockBefore, m.StockAfter, m.ProductionID, m.OrderID, m.ActorID, m.Notes).Scan(&id)
	return id, err
}

func (r *txRepository) InsertLot(ctx context.Context, lot Lot) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO production_lots (lot_code, production_id, product_id, quantity_produced, quantity_available, expiry_date, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		lot.LotCode, lot.ProductionID, lot.ProductID, lot.QuantityProduced, lot.QuantityAvailable, lot.ExpiryDate, string(lot.Status)).Scan(&id)
	return id, err
}

func (r *txRepository) ActiveLotsForUpdate(ctx context.Context, productID int64) ([]Lot, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+lotColumns+` FROM production_lots
WHERE product_id=$1 AND status=$2 ORDER BY expiry_date ASC, id ASC FOR UPDATE`, productID, string(LotStatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanLots(rows)
}

func (r *txRepository) UpdateLot(ctx context.Context, lotID int64, available float64, status LotStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE production_lots SET quantity_available=$2, status=$3 WHERE id=$1`, lotID, available, string(status))
	return err
}

func scanLots(rows pgx.Rows) ([]Lot, error) {
	lots := []Lot{}
	for rows.Next() {
		var lot Lot
		if err := rows.Scan(&lot.ID, &lot.LotCode, &lot.ProductionID, &lot.ProductID, &lot.QuantityProduced, &lot.QuantityAvailable, &lot.ExpiryDate, &lot.Status, &lot.CreatedAt); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	return lots, rows.Err()
}
