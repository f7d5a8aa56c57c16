package catalog

import (
	"context"
	"fmt"

	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetActive(ctx context.Context, productID int64) (Recipe, error)
	GetVersion(ctx context.Context, productID int64, version int) (Recipe, error)
	GetByID(ctx context.Context, id int64) (Recipe, error)
	ListVersions(ctx context.Context, productID int64) ([]Recipe, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates recipe versioning and scaling.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// GetActiveRecipe returns the active version for a product.
func (s *Service) GetActiveRecipe(ctx context.Context, productID int64) (Recipe, error) {
	if productID <= 0 {
		return Recipe{}, fmt.Errorf("%w: product id required", shared.ErrValidation)
	}
	return s.repo.GetActive(ctx, productID)
}

// GetVersion returns one pinned version, used when inspecting historical runs.
func (s *Service) GetVersion(ctx context.Context, productID int64, version int) (Recipe, error) {
	return s.repo.GetVersion(ctx, productID, version)
}

// ListVersions returns a product's full recipe history.
func (s *Service) ListVersions(ctx context.Context, productID int64) ([]Recipe, error) {
	return s.repo.ListVersions(ctx, productID)
}

// Create inserts version 1 of a product's recipe.
func (s *Service) Create(ctx context.Context, req CreateRecipeRequest, actorID int64) (Recipe, error) {
	return s.insertVersion(ctx, req.ProductID, req.YieldQuantity, req.YieldUnit, req.Ingredients, actorID, true)
}

// UpdateIngredients creates version N+1 as a fresh immutable record set and
// deactivates version N. Existing version rows are never touched.
func (s *Service) UpdateIngredients(ctx context.Context, productID int64, req UpdateIngredientsRequest, actorID int64) (Recipe, error) {
	if _, err := s.repo.GetActive(ctx, productID); err != nil {
		return Recipe{}, err
	}
	return s.insertVersion(ctx, productID, req.YieldQuantity, req.YieldUnit, req.Ingredients, actorID, false)
}

func (s *Service) insertVersion(ctx context.Context, productID int64, yieldQty float64, yieldUnit string, lines []IngredientLineReq, actorID int64, mustBeFirst bool) (Recipe, error) {
	if productID <= 0 {
		return Recipe{}, fmt.Errorf("%w: product id required", shared.ErrValidation)
	}
	if yieldQty <= 0 {
		return Recipe{}, ErrInvalidYield
	}
	if len(lines) == 0 {
		return Recipe{}, ErrNoIngredients
	}
	seen := make(map[int64]bool, len(lines))
	materialIDs := make([]int64, 0, len(lines))
	for _, line := range lines {
		if line.MaterialID <= 0 || line.Quantity <= 0 {
			return Recipe{}, fmt.Errorf("%w: ingredient quantities must be > 0", shared.ErrValidation)
		}
		if seen[line.MaterialID] {
			return Recipe{}, ErrDuplicateMaterial
		}
		seen[line.MaterialID] = true
		materialIDs = append(materialIDs, line.MaterialID)
	}

	var created Recipe
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		costs, err := tx.MaterialUnitCosts(ctx, materialIDs)
		if err != nil {
			return err
		}
		var totalCost float64
		for _, line := range lines {
			unitCost, ok := costs[line.MaterialID]
			if !ok {
				return fmt.Errorf("material %d: %w", line.MaterialID, shared.ErrNotFound)
			}
			totalCost += line.Quantity * unitCost
		}

		version, err := tx.NextVersion(ctx, productID)
		if err != nil {
			return err
		}
		if mustBeFirst && version != 1 {
			return fmt.Errorf("%w: recipe already exists for product %d", shared.ErrValidation, productID)
		}
		if err := tx.DeactivateVersions(ctx, productID); err != nil {
			return err
		}

		created = Recipe{
			ProductID:         productID,
			Version:           version,
			YieldQuantity:     yieldQty,
			YieldUnit:         yieldUnit,
			Active:            true,
			ComputedTotalCost: totalCost,
			ComputedUnitCost:  totalCost / yieldQty,
			CreatedBy:         actorID,
		}
		id, err := tx.InsertRecipe(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id

		ingredients := make([]RecipeIngredient, 0, len(lines))
		for _, line := range lines {
			ingredients = append(ingredients, RecipeIngredient{
				RecipeID:   id,
				MaterialID: line.MaterialID,
				Quantity:   line.Quantity,
				Unit:       line.Unit,
			})
		}
		if err := tx.InsertIngredients(ctx, id, ingredients); err != nil {
			return err
		}
		created.Ingredients = ingredients
		return nil
	})
	if err != nil {
		return Recipe{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "catalog:recipe_version",
			Entity:   "recipe",
			EntityID: fmt.Sprintf("%d:v%d", productID, created.Version),
			Meta: map[string]any{
				"product_id": productID,
				"version":    created.Version,
				"lines":      len(created.Ingredients),
			},
		})
	}
	return created, nil
}
