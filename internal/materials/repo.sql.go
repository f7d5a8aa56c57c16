package materials

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/db"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// Repository persists raw materials and their movement ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service and by the
// production processor, which composes these over its own transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, materialID int64) (RawMaterial, error)
	UpdateStock(ctx context.Context, materialID int64, stock, unitCost float64) error
	InsertMovement(ctx context.Context, m Movement) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction so other modules can append
// material movements inside their own atomic unit.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const materialColumns = `id, name, unit, stock_actual, stock_minimum, unit_cost, active, created_at, updated_at`

// Get returns a material by id.
func (r *Repository) Get(ctx context.Context, id int64) (RawMaterial, error) {
	var m RawMaterial
	err := r.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM raw_materials WHERE id=$1`, id).
		Scan(&m.ID, &m.Name, &m.Unit, &m.StockActual, &m.StockMinimum, &m.UnitCost, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RawMaterial{}, shared.ErrNotFound
		}
		return RawMaterial{}, err
	}
	return m, nil
}

// List returns materials, optionally including inactive ones.
func (r *Repository) List(ctx context.Context, includeInactive bool) ([]RawMaterial, error) {
	query := `SELECT ` + materialColumns + ` FROM raw_materials`
	if !includeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []RawMaterial{}
	for rows.Next() {
		var m RawMaterial
		if err := rows.Scan(&m.ID, &m.Name, &m.Unit, &m.StockActual, &m.StockMinimum, &m.UnitCost, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// Create inserts a new raw material with zero stock.
func (r *Repository) Create(ctx context.Context, m RawMaterial) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO raw_materials (name, unit, stock_actual, stock_minimum, unit_cost, active, created_at, updated_at)
VALUES ($1,$2,0,$3,$4,true,NOW(),NOW()) RETURNING id`, m.Name, m.Unit, m.StockMinimum, m.UnitCost).Scan(&id)
	return id, err
}

// UpdateMeta updates descriptive fields; stock is never written here.
func (r *Repository) UpdateMeta(ctx context.Context, id int64, name, unit string, stockMinimum float64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE raw_materials SET name=$2, unit=$3, stock_minimum=$4, active=$5, updated_at=NOW() WHERE id=$1`,
		id, name, unit, stockMinimum, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MovementFilter filters ledger reads.
type MovementFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

// Movements returns the append-only ledger for a material, oldest first.
func (r *Repository) Movements(ctx context.Context, materialID int64, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT id, material_id, kind, quantity, unit_cost, stock_before, stock_after, production_id, actor_id, notes, created_at
FROM material_movements
WHERE material_id=$1 AND created_at BETWEEN COALESCE($2, '-infinity') AND COALESCE($3, 'infinity')
ORDER BY id ASC
LIMIT $4`, materialID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.MaterialID, &m.Kind, &m.Quantity, &m.UnitCost, &m.StockBefore, &m.StockAfter, &m.ProductionID, &m.ActorID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// BelowMinimum lists active materials whose stock sits under the threshold.
func (r *Repository) BelowMinimum(ctx context.Context) ([]RawMaterial, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+materialColumns+` FROM raw_materials WHERE active AND stock_actual < stock_minimum ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []RawMaterial{}
	for rows.Next() {
		var m RawMaterial
		if err := rows.Scan(&m.ID, &m.Name, &m.Unit, &m.StockActual, &m.StockMinimum, &m.UnitCost, &m.Active, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (r *txRepository) GetForUpdate(ctx context.Context, materialID int64) (RawMaterial, error) {
	var m RawMaterial
	err := r.tx.QueryRow(ctx, `SELECT `+materialColumns+` FROM raw_materials WHERE id=$1 FOR UPDATE`, materialID).
		Scan(&m.ID, &m.Name, &m.Unit, &m.StockActual, &m.StockMinimum, &m.UnitCost, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RawMaterial{}, shared.ErrNotFound
		}
		return RawMaterial{}, err
	}
	return m, nil
}

func (r *txRepository) UpdateStock(ctx context.Context, materialID int64, stock, unitCost float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE raw_materials SET stock_actual=$2, unit_cost=$3, updated_at=NOW() WHERE id=$1`,
		materialID, stock, unitCost)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO material_movements (material_id, kind, quantity, unit_cost, stock_before, stock_after, production_id, actor_id, notes, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id`,
		m.MaterialID, string(m.Kind), m.Quantity, m.UnitCost, m.StockBefore, m.StockAfter, m.ProductionID, m.ActorID, m.Notes).Scan(&id)
	return id, err
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
