package payroll

import (
	"context"
	"fmt"

	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBaker(ctx context.Context, id int64) (Baker, error)
	GetSalesperson(ctx context.Context, id int64) (Salesperson, error)
	ListBakers(ctx context.Context) ([]Baker, error)
	ListSalespersons(ctx context.Context) ([]Salesperson, error)
	CreateBaker(ctx context.Context, b Baker) (int64, error)
	CreateSalesperson(ctx context.Context, s Salesperson) (int64, error)
	Payments(ctx context.Context, kind TargetKind, targetID int64, limit int) ([]StaffPayment, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates accrual settlement and staff administration.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// SettleInput describes one settlement request.
type SettleInput struct {
	Target            PaymentTarget
	Amount            float64
	KilosOrCommission *float64
	PaymentKind       PaymentKind
	IsFixedSalary     bool
	Notes             string
	AuthorID          int64
}

// Settle converts part of an accrued balance into an immutable payment row.
// The bound check and the accrual decrement happen under a row lock in the
// same transaction as the payment append, so two concurrent settlements can
// never both pass against a stale snapshot.
func (s *Service) Settle(ctx context.Context, input SettleInput) (StaffPayment, error) {
	if input.Target == nil {
		return StaffPayment{}, fmt.Errorf("%w: payment target required", shared.ErrValidation)
	}
	if input.Amount <= 0 {
		return StaffPayment{}, ErrInvalidAmount
	}

	payment := StaffPayment{
		TargetKind:    input.Target.targetKind(),
		TargetID:      input.Target.TargetID(),
		Amount:        input.Amount,
		PaymentKind:   input.PaymentKind,
		IsFixedSalary: input.IsFixedSalary,
		Notes:         input.Notes,
		AuthorID:      input.AuthorID,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.IsFixedSalary {
			// Flat payroll: no accrual bound, no decrement.
			id, err := tx.InsertPayment(ctx, payment)
			payment.ID = id
			return err
		}
		if input.KilosOrCommission == nil || *input.KilosOrCommission <= 0 {
			return ErrSettlementRequired
		}
		settled := *input.KilosOrCommission

		switch target := input.Target.(type) {
		case BakerTarget:
			baker, err := tx.GetBakerForUpdate(ctx, target.ID)
			if err != nil {
				return err
			}
			if settled > baker.KilosAccrued {
				return &OverpaymentError{Target: TargetBaker, ID: target.ID, Requested: settled, Accrued: baker.KilosAccrued}
			}
			if err := tx.UpdateBakerAccrual(ctx, target.ID, baker.KilosAccrued-settled, baker.UnitsProducedTotal); err != nil {
				return err
			}
			payment.KilosSettled = &settled
		case SalespersonTarget:
			person, err := tx.GetSalespersonForUpdate(ctx, target.ID)
			if err != nil {
				return err
			}
			if settled > person.CommissionAccrued {
				return &OverpaymentError{Target: TargetSalesperson, ID: target.ID, Requested: settled, Accrued: person.CommissionAccrued}
			}
			if err := tx.UpdateSalespersonAccrual(ctx, target.ID, person.CommissionAccrued-settled, person.TotalSold); err != nil {
				return err
			}
			payment.CommissionSettled = &settled
		default:
			return fmt.Errorf("%w: unknown payment target %T", shared.ErrValidation, input.Target)
		}

		id, err := tx.InsertPayment(ctx, payment)
		payment.ID = id
		return err
	})
	if err != nil {
		return StaffPayment{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.AuthorID,
			Action:   "payroll:settle",
			Entity:   "staff_payment",
			EntityID: fmt.Sprintf("%s:%d", payment.TargetKind, payment.TargetID),
			Meta: map[string]any{
				"amount":       input.Amount,
				"payment_kind": string(input.PaymentKind),
				"fixed_salary": input.IsFixedSalary,
			},
		})
	}
	return payment, nil
}

// GetBaker returns one baker.
func (s *Service) GetBaker(ctx context.Context, id int64) (Baker, error) {
	return s.repo.GetBaker(ctx, id)
}

// GetSalesperson returns one salesperson.
func (s *Service) GetSalesperson(ctx context.Context, id int64) (Salesperson, error) {
	return s.repo.GetSalesperson(ctx, id)
}

// ListBakers returns active bakers.
func (s *Service) ListBakers(ctx context.Context) ([]Baker, error) {
	return s.repo.ListBakers(ctx)
}

// ListSalespersons returns active salespersons.
func (s *Service) ListSalespersons(ctx context.Context) ([]Salesperson, error) {
	return s.repo.ListSalespersons(ctx)
}

// CreateBaker registers a baker.
func (s *Service) CreateBaker(ctx context.Context, req CreateBakerRequest) (Baker, error) {
	id, err := s.repo.CreateBaker(ctx, Baker{Name: req.Name, BaseSalary: req.BaseSalary, RatePerKilo: req.RatePerKilo})
	if err != nil {
		return Baker{}, err
	}
	return s.repo.GetBaker(ctx, id)
}

// CreateSalesperson registers a salesperson.
func (s *Service) CreateSalesperson(ctx context.Context, req CreateSalespersonRequest) (Salesperson, error) {
	id, err := s.repo.CreateSalesperson(ctx, Salesperson{Name: req.Name, CommissionRate: req.CommissionRate})
	if err != nil {
		return Salesperson{}, err
	}
	return s.repo.GetSalesperson(ctx, id)
}

// Payments returns the settlement history for a target.
func (s *Service) Payments(ctx context.Context, kind TargetKind, targetID int64, limit int) ([]StaffPayment, error) {
	return s.repo.Payments(ctx, kind, targetID, limit)
}
