package payroll

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

type memPayrollRepo struct {
	bakers       map[int64]Baker
	salespersons map[int64]Salesperson
	payments     []StaffPayment
}

func newMemPayrollRepo() *memPayrollRepo {
	return &memPayrollRepo{
		bakers:       make(map[int64]Baker),
		salespersons: make(map[int64]Salesperson),
	}
}

func (r *memPayrollRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Snapshot so a failed callback leaves the fake untouched, matching
	// transaction rollback.
	bakers := make(map[int64]Baker, len(r.bakers))
	for k, v := range r.bakers {
		bakers[k] = v
	}
	sales := make(map[int64]Salesperson, len(r.salespersons))
	for k, v := range r.salespersons {
		sales[k] = v
	}
	payments := append([]StaffPayment(nil), r.payments...)
	if err := fn(ctx, &memPayrollTx{repo: r}); err != nil {
		r.bakers, r.salespersons, r.payments = bakers, sales, payments
		return err
	}
	return nil
}

func (r *memPayrollRepo) GetBaker(ctx context.Context, id int64) (Baker, error) {
	b, ok := r.bakers[id]
	if !ok {
		return Baker{}, shared.ErrNotFound
	}
	return b, nil
}

func (r *memPayrollRepo) GetSalesperson(ctx context.Context, id int64) (Salesperson, error) {
	s, ok := r.salespersons[id]
	if !ok {
		return Salesperson{}, shared.ErrNotFound
	}
	return s, nil
}

func (r *memPayrollRepo) ListBakers(ctx context.Context) ([]Baker, error) {
	var out []Baker
	for _, b := range r.bakers {
		out = append(out, b)
	}
	return out, nil
}

func (r *memPayrollRepo) ListSalespersons(ctx context.Context) ([]Salesperson, error) {
	var out []Salesperson
	for _, s := range r.salespersons {
		out = append(out, s)
	}
	return out, nil
}

func (r *memPayrollRepo) CreateBaker(ctx context.Context, b Baker) (int64, error) {
	id := int64(len(r.bakers) + 1)
	b.ID, b.Active = id, true
	r.bakers[id] = b
	return id, nil
}

func (r *memPayrollRepo) CreateSalesperson(ctx context.Context, s Salesperson) (int64, error) {
	id := int64(len(r.salespersons) + 1)
	s.ID, s.Active = id, true
	r.salespersons[id] = s
	return id, nil
}

func (r *memPayrollRepo) Payments(ctx context.Context, kind TargetKind, targetID int64, limit int) ([]StaffPayment, error) {
	var out []StaffPayment
	for _, p := range r.payments {
		if p.TargetKind == kind && p.TargetID == targetID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memPayrollTx struct {
	repo *memPayrollRepo
}

func (t *memPayrollTx) GetBakerForUpdate(ctx context.Context, id int64) (Baker, error) {
	return t.repo.GetBaker(ctx, id)
}

func (t *memPayrollTx) UpdateBakerAccrual(ctx context.Context, id int64, kilosAccrued, unitsTotal float64) error {
	b := t.repo.bakers[id]
	b.KilosAccrued, b.UnitsProducedTotal = kilosAccrued, unitsTotal
	t.repo.bakers[id] = b
	return nil
}

func (t *memPayrollTx) GetSalespersonForUpdate(ctx context.Context, id int64) (Salesperson, error) {
	return t.repo.GetSalesperson(ctx, id)
}

func (t *memPayrollTx) UpdateSalespersonAccrual(ctx context.Context, id int64, commissionAccrued, totalSold float64) error {
	s := t.repo.salespersons[id]
	s.CommissionAccrued, s.TotalSold = commissionAccrued, totalSold
	t.repo.salespersons[id] = s
	return nil
}

func (t *memPayrollTx) InsertPayment(ctx context.Context, p StaffPayment) (int64, error) {
	p.ID = int64(len(t.repo.payments) + 1)
	t.repo.payments = append(t.repo.payments, p)
	return p.ID, nil
}

func float(v float64) *float64 { return &v }

func TestSettleRejectsOverpayment(t *testing.T) {
	repo := newMemPayrollRepo()
	repo.bakers[1] = Baker{ID: 1, Name: "ana", KilosAccrued: 12, Active: true}
	svc := NewService(repo, nil)

	_, err := svc.Settle(context.Background(), SettleInput{
		Target:            BakerTarget{ID: 1},
		Amount:            150,
		KilosOrCommission: float(15),
		PaymentKind:       PaymentKindProduction,
		AuthorID:          9,
	})
	require.ErrorIs(t, err, ErrOverpayment)

	var overErr *OverpaymentError
	require.ErrorAs(t, err, &overErr)
	require.Equal(t, 15.0, overErr.Requested)
	require.Equal(t, 12.0, overErr.Accrued)

	b, _ := svc.GetBaker(context.Background(), 1)
	require.Equal(t, 12.0, b.KilosAccrued)
	require.Empty(t, repo.payments)
}

func TestSettleExactAccrualDrainsToZero(t *testing.T) {
	repo := newMemPayrollRepo()
	repo.bakers[1] = Baker{ID: 1, Name: "ana", KilosAccrued: 12, UnitsProducedTotal: 300, Active: true}
	svc := NewService(repo, nil)

	payment, err := svc.Settle(context.Background(), SettleInput{
		Target:            BakerTarget{ID: 1},
		Amount:            120,
		KilosOrCommission: float(12),
		PaymentKind:       PaymentKindProduction,
		AuthorID:          9,
	})
	require.NoError(t, err)
	require.NotNil(t, payment.KilosSettled)
	require.Equal(t, 12.0, *payment.KilosSettled)
	require.Nil(t, payment.CommissionSettled)

	b, _ := svc.GetBaker(context.Background(), 1)
	require.Equal(t, 0.0, b.KilosAccrued)
	// Lifetime output is untouched by settlement.
	require.Equal(t, 300.0, b.UnitsProducedTotal)
}

func TestSettleCommission(t *testing.T) {
	repo := newMemPayrollRepo()
	repo.salespersons[2] = Salesperson{ID: 2, Name: "leo", CommissionAccrued: 40.5, Active: true}
	svc := NewService(repo, nil)

	payment, err := svc.Settle(context.Background(), SettleInput{
		Target:            SalespersonTarget{ID: 2},
		Amount:            40.5,
		KilosOrCommission: float(30),
		PaymentKind:       PaymentKindCommission,
		AuthorID:          9,
	})
	require.NoError(t, err)
	require.NotNil(t, payment.CommissionSettled)
	require.Equal(t, 30.0, *payment.CommissionSettled)

	s, _ := svc.GetSalesperson(context.Background(), 2)
	require.InDelta(t, 10.5, s.CommissionAccrued, 1e-9)
}

func TestSettleFixedSalarySkipsAccrualBound(t *testing.T) {
	repo := newMemPayrollRepo()
	repo.bakers[1] = Baker{ID: 1, Name: "ana", KilosAccrued: 0, Active: true}
	svc := NewService(repo, nil)

	payment, err := svc.Settle(context.Background(), SettleInput{
		Target:        BakerTarget{ID: 1},
		Amount:        900,
		PaymentKind:   PaymentKindSalary,
		IsFixedSalary: true,
		AuthorID:      9,
	})
	require.NoError(t, err)
	require.True(t, payment.IsFixedSalary)
	require.Nil(t, payment.KilosSettled)

	b, _ := svc.GetBaker(context.Background(), 1)
	require.Equal(t, 0.0, b.KilosAccrued)
	require.Len(t, repo.payments, 1)
}

func TestSettleRequiresSettlementFigure(t *testing.T) {
	repo := newMemPayrollRepo()
	repo.bakers[1] = Baker{ID: 1, Name: "ana", KilosAccrued: 5, Active: true}
	svc := NewService(repo, nil)

	_, err := svc.Settle(context.Background(), SettleInput{
		Target:      BakerTarget{ID: 1},
		Amount:      50,
		PaymentKind: PaymentKindProduction,
		AuthorID:    9,
	})
	require.ErrorIs(t, err, ErrSettlementRequired)
}

func TestSettleRejectsNonPositiveAmount(t *testing.T) {
	svc := NewService(newMemPayrollRepo(), nil)
	_, err := svc.Settle(context.Background(), SettleInput{
		Target: BakerTarget{ID: 1}, Amount: 0, KilosOrCommission: float(1),
	})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSettleRequiresTarget(t *testing.T) {
	svc := NewService(newMemPayrollRepo(), nil)
	_, err := svc.Settle(context.Background(), SettleInput{Amount: 10})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAccrueProduction(t *testing.T) {
	repo := newMemPayrollRepo()
	repo.bakers[1] = Baker{ID: 1, Name: "ana", KilosAccrued: 2, UnitsProducedTotal: 100, Active: true}

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		return AccrueProduction(ctx, tx, 1, 25, 25)
	})
	require.NoError(t, err)

	b := repo.bakers[1]
	require.Equal(t, 27.0, b.KilosAccrued)
	require.Equal(t, 125.0, b.UnitsProducedTotal)
}

func TestAccrueCommissionAppliesRate(t *testing.T) {
	repo := newMemPayrollRepo()
	repo.salespersons[2] = Salesperson{ID: 2, Name: "leo", CommissionRate: 5, CommissionAccrued: 1, TotalSold: 200, Active: true}

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		return AccrueCommission(ctx, tx, 2, 300)
	})
	require.NoError(t, err)

	s := repo.salespersons[2]
	// 1 + 300 * 5%
	require.InDelta(t, 16.0, s.CommissionAccrued, 1e-9)
	require.Equal(t, 500.0, s.TotalSold)
}

func TestSequentialSettlementsCannotOverdraw(t *testing.T) {
	repo := newMemPayrollRepo()
	repo.bakers[1] = Baker{ID: 1, Name: "ana", KilosAccrued: 10, Active: true}
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Settle(ctx, SettleInput{
		Target: BakerTarget{ID: 1}, Amount: 70, KilosOrCommission: float(7),
		PaymentKind: PaymentKindProduction, AuthorID: 9,
	})
	require.NoError(t, err)

	_, err = svc.Settle(ctx, SettleInput{
		Target: BakerTarget{ID: 1}, Amount: 70, KilosOrCommission: float(7),
		PaymentKind: PaymentKindProduction, AuthorID: 9,
	})
	require.ErrorIs(t, err, ErrOverpayment)

	b, _ := svc.GetBaker(ctx, 1)
	require.Equal(t, 3.0, b.KilosAccrued)
	require.Len(t, repo.payments, 1)
}
