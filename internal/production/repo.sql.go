package production

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakehouse-erp/bakehouse-erp/internal/finishedgoods"
	"github.com/bakehouse-erp/bakehouse-erp/internal/materials"
	"github.com/bakehouse-erp/bakehouse-erp/internal/payroll"
	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/db"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// Repository persists production runs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Bundle exposes every ledger a production run writes, all scoped to the
// same transaction. A run commits across all of them or not at all.
type Bundle interface {
	Materials() materials.TxRepository
	Goods() finishedgoods.TxRepository
	Payroll() payroll.TxRepository
	InsertRun(ctx context.Context, run Run) (int64, error)
	CompleteRun(ctx context.Context, run Run) error
}

type bundle struct {
	tx        pgx.Tx
	materials materials.TxRepository
	goods     finishedgoods.TxRepository
	payroll   payroll.TxRepository
}

func (b *bundle) Materials() materials.TxRepository { return b.materials }
func (b *bundle) Goods() finishedgoods.TxRepository { return b.goods }
func (b *bundle) Payroll() payroll.TxRepository     { return b.payroll }

// WithBundle runs fn inside one RepeatableRead transaction, retrying
// serialization conflicts up to attempts times.
func (r *Repository) WithBundle(ctx context.Context, attempts int, fn func(context.Context, Bundle) error) error {
	return db.WithTxRetry(ctx, r.pool, attempts, func(tx pgx.Tx) error {
		return fn(ctx, &bundle{
			tx:        tx,
			materials: materials.NewTxRepository(tx),
			goods:     finishedgoods.NewTxRepository(tx),
			payroll:   payroll.NewTxRepository(tx),
		})
	})
}

const runColumns = `id, product_id, recipe_id, recipe_version, author_id, baker_id, date, output_quantity, output_unit,
primary_ingredient_actual, primary_ingredient_theoretical, variance, variance_kind, production_cost, unit_cost, status, lot_code, created_at`

func (b *bundle) InsertRun(ctx context.Context, run Run) (int64, error) {
	var id int64
	err := b.tx.QueryRow(ctx, `INSERT INTO production_runs
(product_id, recipe_id, recipe_version, author_id, baker_id, date, output_quantity, output_unit, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id`,
		run.ProductID, run.RecipeID, run.RecipeVersion, run.AuthorID, run.BakerID, run.Date,
		run.OutputQuantity, run.OutputUnit, string(run.Status)).Scan(&id)
	return id, err
}

func (b *bundle) CompleteRun(ctx context.Context, run Run) error {
	tag, err := b.tx.Exec(ctx, `UPDATE production_runs SET
primary_ingredient_actual=$2, primary_ingredient_theoretical=$3, variance=$4, variance_kind=$5,
production_cost=$6, unit_cost=$7, status=$8, lot_code=$9
WHERE id=$1 AND status=$10`,
		run.ID, run.PrimaryActual, run.PrimaryTheoretical, run.Variance, string(run.VarianceKind),
		run.ProductionCost, run.UnitCost, string(StatusCompleted), run.LotCode, string(StatusInProgress))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetRun returns one production run.
func (r *Repository) GetRun(ctx context.Context, id int64) (Run, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM production_runs WHERE id=$1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, shared.ErrNotFound
		}
		return Run{}, err
	}
	return run, nil
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	ProductID int64
	From      time.Time
	To        time.Time
	Limit     int
}

// ListRuns returns runs newest first.
func (r *Repository) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM production_runs WHERE 1=1`
	args := []any{}
	if filter.ProductID > 0 {
		args = append(args, filter.ProductID)
		query += ` AND product_id=$` + itoa(len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += ` AND date >= $` + itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += ` AND date <= $` + itoa(len(args))
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += ` ORDER BY id DESC LIMIT $` + itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, run)
	}
	return result, rows.Err()
}

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	err := row.Scan(&run.ID, &run.ProductID, &run.RecipeID, &run.RecipeVersion, &run.AuthorID, &run.BakerID,
		&run.Date, &run.OutputQuantity, &run.OutputUnit, &run.PrimaryActual, &run.PrimaryTheoretical,
		&run.Variance, &run.VarianceKind, &run.ProductionCost, &run.UnitCost, &run.Status, &run.LotCode, &run.CreatedAt)
	return run, err
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
