package materials

import (
	"context"
	"fmt"

	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (RawMaterial, error)
	List(ctx context.Context, includeInactive bool) ([]RawMaterial, error)
	Create(ctx context.Context, m RawMaterial) (int64, error)
	UpdateMeta(ctx context.Context, id int64, name, unit string, stockMinimum float64, active bool) error
	Movements(ctx context.Context, materialID int64, filter MovementFilter) ([]Movement, error)
	BelowMinimum(ctx context.Context) ([]RawMaterial, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates raw material stock operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Get returns one material.
func (s *Service) Get(ctx context.Context, id int64) (RawMaterial, error) {
	return s.repo.Get(ctx, id)
}

// List returns materials.
func (s *Service) List(ctx context.Context, includeInactive bool) ([]RawMaterial, error) {
	return s.repo.List(ctx, includeInactive)
}

// Movements returns the ledger for one material.
func (s *Service) Movements(ctx context.Context, materialID int64, filter MovementFilter) ([]Movement, error) {
	if _, err := s.repo.Get(ctx, materialID); err != nil {
		return nil, err
	}
	return s.repo.Movements(ctx, materialID, filter)
}

// BelowMinimum lists materials under their stock threshold.
func (s *Service) BelowMinimum(ctx context.Context) ([]RawMaterial, error) {
	return s.repo.BelowMinimum(ctx)
}

// Create registers a new raw material with zero stock.
func (s *Service) Create(ctx context.Context, req CreateMaterialRequest, actorID int64) (RawMaterial, error) {
	m := RawMaterial{
		Name:         req.Name,
		Unit:         req.Unit,
		StockMinimum: req.StockMinimum,
		UnitCost:     req.UnitCost,
		Active:       true,
	}
	id, err := s.repo.Create(ctx, m)
	if err != nil {
		return RawMaterial{}, err
	}
	s.record(ctx, actorID, "materials:create", id, map[string]any{"name": req.Name})
	return s.repo.Get(ctx, id)
}

// UpdateMeta changes descriptive fields only; stock moves exclusively through
// the ledger.
func (s *Service) UpdateMeta(ctx context.Context, id int64, req UpdateMaterialRequest, actorID int64) (RawMaterial, error) {
	if err := s.repo.UpdateMeta(ctx, id, req.Name, req.Unit, req.StockMinimum, req.Active); err != nil {
		return RawMaterial{}, err
	}
	s.record(ctx, actorID, "materials:update", id, map[string]any{"name": req.Name, "active": req.Active})
	return s.repo.Get(ctx, id)
}

// RegisterPurchase appends a purchase movement and folds the invoice cost into
// the weighted-average unit cost.
func (s *Service) RegisterPurchase(ctx context.Context, req PurchaseRequest, actorID int64) (Movement, error) {
	if req.Quantity <= 0 {
		return Movement{}, ErrInvalidQuantity
	}
	if req.UnitCost < 0 {
		return Movement{}, ErrInvalidUnitCost
	}
	notes := req.Notes
	if req.InvoiceRef != "" {
		notes = fmt.Sprintf("invoice %s %s", req.InvoiceRef, notes)
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = ApplyMovement(ctx, tx, MovementParams{
			MaterialID: req.MaterialID,
			Kind:       MovementPurchase,
			Quantity:   req.Quantity,
			UnitCost:   req.UnitCost,
			ActorID:    actorID,
			Notes:      notes,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.record(ctx, actorID, "materials:purchase", req.MaterialID, map[string]any{
		"qty": req.Quantity, "unit_cost": req.UnitCost, "invoice": req.InvoiceRef,
	})
	return movement, nil
}

// AdjustStock sets the cached stock to a counted value by appending the signed
// delta as an adjustment movement. Target must be >= 0.
func (s *Service) AdjustStock(ctx context.Context, req AdjustStockRequest, actorID int64) (Movement, error) {
	if req.NewStock < 0 {
		return Movement{}, fmt.Errorf("%w: target stock must be >= 0", shared.ErrValidation)
	}
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, req.MaterialID)
		if err != nil {
			return err
		}
		delta := req.NewStock - current.StockActual
		if delta == 0 {
			movement = Movement{MaterialID: req.MaterialID, StockBefore: current.StockActual, StockAfter: current.StockActual}
			return nil
		}
		kind := MovementAdjustIn
		if delta < 0 {
			kind = MovementAdjustOut
			delta = -delta
		}
		movement, err = ApplyMovement(ctx, tx, MovementParams{
			MaterialID: req.MaterialID,
			Kind:       kind,
			Quantity:   delta,
			ActorID:    actorID,
			Notes:      req.Reason,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.record(ctx, actorID, "materials:adjust", req.MaterialID, map[string]any{
		"new_stock": req.NewStock, "reason": req.Reason,
	})
	return movement, nil
}

// RegisterWaste appends a waste movement.
func (s *Service) RegisterWaste(ctx context.Context, materialID int64, qty float64, reason string, actorID int64) (Movement, error) {
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = ApplyMovement(ctx, tx, MovementParams{
			MaterialID: materialID,
			Kind:       MovementWaste,
			Quantity:   qty,
			ActorID:    actorID,
			Notes:      reason,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.record(ctx, actorID, "materials:waste", materialID, map[string]any{"qty": qty, "reason": reason})
	return movement, nil
}

// RegisterReturn appends a supplier return movement.
func (s *Service) RegisterReturn(ctx context.Context, materialID int64, qty float64, reason string, actorID int64) (Movement, error) {
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = ApplyMovement(ctx, tx, MovementParams{
			MaterialID: materialID,
			Kind:       MovementReturn,
			Quantity:   qty,
			ActorID:    actorID,
			Notes:      reason,
		})
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.record(ctx, actorID, "materials:return", materialID, map[string]any{"qty": qty, "reason": reason})
	return movement, nil
}

// ReserveAndConsume deducts stock for a production run in its own transaction.
// The production processor uses Consume directly instead, inside its larger
// atomic unit.
func (s *Service) ReserveAndConsume(ctx context.Context, materialID int64, qty float64, productionID, actorID int64) (Movement, error) {
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		movement, err = Consume(ctx, tx, materialID, qty, productionID, actorID)
		return err
	})
	return movement, err
}

func (s *Service) record(ctx context.Context, actorID int64, action string, materialID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "raw_material",
		EntityID: fmt.Sprintf("%d", materialID),
		Meta:     meta,
	})
}
