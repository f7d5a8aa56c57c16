package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/db"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// Repository persists recipes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	DeactivateVersions(ctx context.Context, productID int64) error
	NextVersion(ctx context.Context, productID int64) (int, error)
	InsertRecipe(ctx context.Context, r Recipe) (int64, error)
	InsertIngredients(ctx context.Context, recipeID int64, lines []RecipeIngredient) error
	MaterialUnitCosts(ctx context.Context, materialIDs []int64) (map[int64]float64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const recipeColumns = `id, product_id, version, yield_quantity, yield_unit, active, computed_total_cost, computed_unit_cost, created_by, created_at`

// GetActive returns the single active recipe version for a product, including
// its ingredient lines.
func (r *Repository) GetActive(ctx context.Context, productID int64) (Recipe, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE product_id=$1 AND active`, productID)
	return r.scanRecipeWithLines(ctx, row)
}

// GetVersion returns an exact recipe version, active or not.
func (r *Repository) GetVersion(ctx context.Context, productID int64, version int) (Recipe, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE product_id=$1 AND version=$2`, productID, version)
	return r.scanRecipeWithLines(ctx, row)
}

// GetByID returns a recipe version by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (Recipe, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE id=$1`, id)
	return r.scanRecipeWithLines(ctx, row)
}

// ListVersions returns every version recorded for a product, newest first.
func (r *Repository) ListVersions(ctx context.Context, productID int64) ([]Recipe, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+recipeColumns+` FROM recipes WHERE product_id=$1 ORDER BY version DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recipes := []Recipe{}
	for rows.Next() {
		var rec Recipe
		if err := scanRecipe(rows, &rec); err != nil {
			return nil, err
		}
		recipes = append(recipes, rec)
	}
	return recipes, rows.Err()
}

func (r *Repository) scanRecipeWithLines(ctx context.Context, row pgx.Row) (Recipe, error) {
	var rec Recipe
	if err := scanRecipe(row, &rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Recipe{}, shared.ErrNotFound
		}
		return Recipe{}, err
	}
	lines, err := r.ingredients(ctx, rec.ID)
	if err != nil {
		return Recipe{}, err
	}
	rec.Ingredients = lines
	return rec, nil
}

func (r *Repository) ingredients(ctx context.Context, recipeID int64) ([]RecipeIngredient, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, recipe_id, material_id, quantity, unit
FROM recipe_ingredients WHERE recipe_id=$1 ORDER BY id ASC`, recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lines := []RecipeIngredient{}
	for rows.Next() {
		var ing RecipeIngredient
		if err := rows.Scan(&ing.ID, &ing.RecipeID, &ing.MaterialID, &ing.Quantity, &ing.Unit); err != nil {
			return nil, err
		}
		lines = append(lines, ing)
	}
	return lines, rows.Err()
}

func scanRecipe(row pgx.Row, rec *Recipe) error {
	return row.Scan(&rec.ID, &rec.ProductID, &rec.Version, &rec.YieldQuantity, &rec.YieldUnit,
		&rec.Active, &rec.ComputedTotalCost, &rec.ComputedUnitCost, &rec.CreatedBy, &rec.CreatedAt)
}

func (r *txRepository) DeactivateVersions(ctx context.Context, productID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE recipes SET active=false WHERE product_id=$1 AND active`, productID)
	return err
}

func (r *txRepository) NextVersion(ctx context.Context, productID int64) (int, error) {
	var next int
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM recipes WHERE product_id=$1`, productID).Scan(&next)
	return next, err
}

func (r *txRepository) InsertRecipe(ctx context.Context, rec Recipe) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO recipes (product_id, version, yield_quantity, yield_unit, active, computed_total_cost, computed_unit_cost, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW()) RETURNING id`,
		rec.ProductID, rec.Version, rec.YieldQuantity, rec.YieldUnit, rec.Active,
		rec.ComputedTotalCost, rec.ComputedUnitCost, rec.CreatedBy).Scan(&id)
	return id, err
}

func (r *txRepository) InsertIngredients(ctx context.Context, recipeID int64, lines []RecipeIngredient) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO recipe_ingredients (recipe_id, material_id, quantity, unit)
VALUES ($1,$2,$3,$4)`, recipeID, line.MaterialID, line.Quantity, line.Unit); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) MaterialUnitCosts(ctx context.Context, materialIDs []int64) (map[int64]float64, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, unit_cost FROM raw_materials WHERE id = ANY($1) AND active`, materialIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	costs := make(map[int64]float64, len(materialIDs))
	for rows.Next() {
		var id int64
		var cost float64
		if err := rows.Scan(&id, &cost); err != nil {
			return nil, err
		}
		costs[id] = cost
	}
	return costs, rows.Err()
}
