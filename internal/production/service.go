package production

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/bakehouse-erp/bakehouse-erp/internal/catalog"
	"github.com/bakehouse-erp/bakehouse-erp/internal/finishedgoods"
	"github.com/bakehouse-erp/bakehouse-erp/internal/masterdata"
	"github.com/bakehouse-erp/bakehouse-erp/internal/materials"
	"github.com/bakehouse-erp/bakehouse-erp/internal/payroll"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// RunStore abstracts run persistence and the cross-ledger transaction.
type RunStore interface {
	WithBundle(ctx context.Context, attempts int, fn func(context.Context, Bundle) error) error
	GetRun(ctx context.Context, id int64) (Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
}

// RecipePort resolves active recipe versions.
type RecipePort interface {
	GetActive(ctx context.Context, productID int64) (catalog.Recipe, error)
}

// ProductPort resolves product master data.
type ProductPort interface {
	Get(ctx context.Context, id int64) (masterdata.Product, error)
}

// MaterialReader reads current material state for the availability pre-check.
type MaterialReader interface {
	Get(ctx context.Context, id int64) (materials.RawMaterial, error)
}

// StockInvalidator drops cached finished good stock after a committed run.
type StockInvalidator interface {
	InvalidateStock(ctx context.Context)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service executes production runs.
type Service struct {
	runs       RunStore
	recipes    RecipePort
	products   ProductPort
	materials  MaterialReader
	invalidate StockInvalidator
	audit      AuditPort
	attempts   int
}

// NewService builds Service. attempts bounds transparent conflict retries.
func NewService(runs RunStore, recipes RecipePort, products ProductPort, mats MaterialReader, invalidate StockInvalidator, audit AuditPort, attempts int) *Service {
	if attempts < 1 {
		attempts = 1
	}
	return &Service{runs: runs, recipes: recipes, products: products, materials: mats, invalidate: invalidate, audit: audit, attempts: attempts}
}

// ExtraIngredient is an ad hoc consumption line, taken exactly as given and
// never scaled with the recipe.
type ExtraIngredient struct {
	MaterialID int64   `json:"material_id"`
	Quantity   float64 `json:"quantity"`
}

// ProcessInput describes one production request.
type ProcessInput struct {
	ProductID             int64
	OutputQuantity        float64
	BakerID               *int64
	PrimaryActualOverride *float64
	ExtraIngredients      []ExtraIngredient
	Date                  time.Time
	AuthorID              int64
}

type consumption struct {
	materialID int64
	quantity   float64
}

// Process runs one production: resolve and scale the active recipe, merge
// ad hoc extras, pre-check availability, then consume every line, record
// cost and variance, emit finished stock plus a lot, and accrue the baker,
// all inside a single transaction. Either every effect commits or none do.
func (s *Service) Process(ctx context.Context, input ProcessInput) (Run, error) {
	if input.OutputQuantity <= 0 {
		return Run{}, ErrInvalidOutput
	}
	for _, extra := range input.ExtraIngredients {
		if extra.Quantity <= 0 {
			return Run{}, fmt.Errorf("%w: extra ingredient quantity must be > 0", shared.ErrValidation)
		}
	}

	product, err := s.products.Get(ctx, input.ProductID)
	if err != nil {
		return Run{}, err
	}
	recipe, err := s.recipes.GetActive(ctx, input.ProductID)
	if err != nil {
		return Run{}, err
	}
	scaled := catalog.Scale(recipe, input.OutputQuantity)
	if len(scaled) == 0 {
		return Run{}, catalog.ErrNoIngredients
	}

	// The recipe's first line is the primary ingredient; its scaled quantity
	// is the theoretical consumption the variance is measured against.
	theoretical := scaled[0].Quantity
	actual := theoretical
	if input.PrimaryActualOverride != nil {
		actual = *input.PrimaryActualOverride
	}

	lines := mergeConsumption(scaled, input.ExtraIngredients)
	if shortages, err := s.precheck(ctx, lines); err != nil {
		return Run{}, err
	} else if len(shortages) > 0 {
		return Run{}, &InsufficientIngredientsError{Shortages: shortages}
	}

	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}

	run := Run{
		ProductID:          input.ProductID,
		RecipeID:           recipe.ID,
		RecipeVersion:      recipe.Version,
		AuthorID:           input.AuthorID,
		BakerID:            input.BakerID,
		Date:               date,
		OutputQuantity:     input.OutputQuantity,
		OutputUnit:         product.Unit,
		PrimaryActual:      actual,
		PrimaryTheoretical: theoretical,
		Variance:           actual - theoretical,
		VarianceKind:       ClassifyVariance(actual - theoretical),
		Status:             StatusInProgress,
	}

	err = s.runs.WithBundle(ctx, s.attempts, func(ctx context.Context, b Bundle) error {
		id, err := b.InsertRun(ctx, run)
		if err != nil {
			return err
		}
		run.ID = id

		var cost float64
		for _, line := range lines {
			movement, err := materials.Consume(ctx, b.Materials(), line.materialID, line.quantity, id, input.AuthorID)
			if err != nil {
				return err
			}
			if movement.UnitCost != nil {
				cost += line.quantity * *movement.UnitCost
			}
		}
		run.ProductionCost = cost
		run.UnitCost = cost / input.OutputQuantity

		actorID := input.AuthorID
		_, lot, err := finishedgoods.ApplyProductionIn(ctx, b.Goods(), finishedgoods.ProductionInParams{
			ProductID:     input.ProductID,
			Quantity:      input.OutputQuantity,
			UnitCost:      run.UnitCost,
			ProductionID:  id,
			ShelfLifeDays: product.ShelfLifeDays,
			ActorID:       &actorID,
		})
		if err != nil {
			return err
		}
		run.LotCode = lot.LotCode

		if input.BakerID != nil && masterdata.IsWeightUnit(product.Unit) {
			if err := payroll.AccrueProduction(ctx, b.Payroll(), *input.BakerID, input.OutputQuantity, input.OutputQuantity); err != nil {
				return err
			}
		}

		run.Status = StatusCompleted
		return b.CompleteRun(ctx, run)
	})
	if err != nil {
		return Run{}, err
	}

	if s.invalidate != nil {
		s.invalidate.InvalidateStock(ctx)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.AuthorID,
			Action:   "production:process",
			Entity:   "production_run",
			EntityID: strconv.FormatInt(run.ID, 10),
			Meta: map[string]any{
				"product_id":      input.ProductID,
				"output_quantity": input.OutputQuantity,
				"lot_code":        run.LotCode,
			},
		})
	}
	return run, nil
}

// GetRun returns one run.
func (s *Service) GetRun(ctx context.Context, id int64) (Run, error) {
	return s.runs.GetRun(ctx, id)
}

// ListRuns returns runs newest first.
func (s *Service) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	return s.runs.ListRuns(ctx, filter)
}

// mergeConsumption unions scaled recipe lines with ad hoc extras, summing
// quantities per material. Order is deterministic by material id so two runs
// of the same request lock rows in the same order.
func mergeConsumption(scaled []catalog.ScaledIngredient, extras []ExtraIngredient) []consumption {
	byMaterial := make(map[int64]float64, len(scaled)+len(extras))
	for _, ing := range scaled {
		byMaterial[ing.MaterialID] += ing.Quantity
	}
	for _, extra := range extras {
		byMaterial[extra.MaterialID] += extra.Quantity
	}
	lines := make([]consumption, 0, len(byMaterial))
	for id, qty := range byMaterial {
		lines = append(lines, consumption{materialID: id, quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].materialID < lines[j].materialID })
	return lines
}

// precheck compares every consumption line against current stock and
// collects every shortage. Nothing is written here; the authoritative check
// happens again under row locks inside the transaction.
func (s *Service) precheck(ctx context.Context, lines []consumption) ([]Shortage, error) {
	var shortages []Shortage
	for _, line := range lines {
		material, err := s.materials.Get(ctx, line.materialID)
		if err != nil {
			return nil, err
		}
		if line.quantity > material.StockActual {
			shortages = append(shortages, Shortage{
				MaterialID: material.ID,
				Name:       material.Name,
				Required:   line.quantity,
				Available:  material.StockActual,
			})
		}
	}
	return shortages, nil
}
