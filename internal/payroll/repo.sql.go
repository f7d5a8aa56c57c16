package payroll

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakehouse-erp/bakehouse-erp/internal/platform/db"
	"github.com/bakehouse-erp/bakehouse-erp/internal/shared"
)

// Repository persists staff accrual state and payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations shared with the production and
// finished-goods modules.
type TxRepository interface {
	GetBakerForUpdate(ctx context.Context, id int64) (Baker, error)
	UpdateBakerAccrual(ctx context.Context, id int64, kilosAccrued, unitsTotal float64) error
	GetSalespersonForUpdate(ctx context.Context, id int64) (Salesperson, error)
	UpdateSalespersonAccrual(ctx context.Context, id int64, commissionAccrued, totalSold float64) error
	InsertPayment(ctx context.Context, p StaffPayment) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction for cross-module composition.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const bakerColumns = `id, name, base_salary, rate_per_kilo, kilos_accrued, units_produced_total, active, created_at, updated_at`
const salespersonColumns = `id, name, commission_rate, commission_accrued, total_sold, active, created_at, updated_at`

// GetBaker returns one baker.
func (r *Repository) GetBaker(ctx context.Context, id int64) (Baker, error) {
	var b Baker
	err := r.pool.QueryRow(ctx, `SELECT `+bakerColumns+` FROM bakers WHERE id=$1`, id).
		Scan(&b.ID, &b.Name, &b.BaseSalary, &b.RatePerKilo, &b.KilosAccrued, &b.UnitsProducedTotal, &b.Active, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Baker{}, shared.ErrNotFound
		}
		return Baker{}, err
	}
	return b, nil
}

// GetSalesperson returns one salesperson.
func (r *Repository) GetSalesperson(ctx context.Context, id int64) (Salesperson, error) {
	var s Salesperson
	err := r.pool.QueryRow(ctx, `SELECT `+salespersonColumns+` FROM salespersons WHERE id=$1`, id).
		Scan(&s.ID, &s.Name, &s.CommissionRate, &s.CommissionAccrued, &s.TotalSold, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Salesperson{}, shared.ErrNotFound
		}
		return Salesperson{}, err
	}
	return s, nil
}

// ListBakers returns active bakers.
func (r *Repository) ListBakers(ctx context.Context) ([]Baker, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+bakerColumns+` FROM bakers WHERE active ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bakers := []Baker{}
	for rows.Next() {
		var b Baker
		if err := rows.Scan(&b.ID, &b.Name, &b.BaseSalary, &b.RatePerKilo, &b.KilosAccrued, &b.UnitsProducedTotal, &b.Active, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		bakers = append(bakers, b)
	}
	return bakers, rows.Err()
}

// ListSalespersons returns active salespersons.
func (r *Repository) ListSalespersons(ctx context.Context) ([]Salesperson, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+salespersonColumns+` FROM salespersons WHERE active ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	persons := []Salesperson{}
	for rows.Next() {
		var s Salesperson
		if err := rows.Scan(&s.ID, &s.Name, &s.CommissionRate, &s.CommissionAccrued, &s.TotalSold, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		persons = append(persons, s)
	}
	return persons, rows.Err()
}

// CreateBaker inserts a baker.
func (r *Repository) CreateBaker(ctx context.Context, b Baker) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO bakers (name, base_salary, rate_per_kilo, kilos_accrued, units_produced_total, active, created_at, updated_at)
VALUES ($1,$2,$3,0,0,true,NOW(),NOW()) RETURNING id`, b.Name, b.BaseSalary, b.RatePerKilo).Scan(&id)
	return id, err
}

// CreateSalesperson inserts a salesperson.
func (r *Repository) CreateSalesperson(ctx context.Context, s Salesperson) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO salespersons (name, commission_rate, commission_accrued, total_sold, active, created_at, updated_at)
VALUES ($1,$2,0,0,true,NOW(),NOW()) RETURNING id`, s.Name, s.CommissionRate).Scan(&id)
	return id, err
}

// Payments returns the payment ledger for a target, newest first.
func (r *Repository) Payments(ctx context.Context, kind TargetKind, targetID int64, limit int) ([]StaffPayment, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, target_kind, target_id, amount, kilos_settled, commission_settled, payment_kind, is_fixed_salary, notes, author_id, created_at
FROM staff_payments WHERE target_kind=$1 AND target_id=$2 ORDER BY id DESC LIMIT $3`, string(kind), targetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	payments := []StaffPayment{}
	for rows.Next() {
		var p StaffPayment
		if err := rows.Scan(&p.ID, &p.TargetKind, &p.TargetID, &p.Amount, &p.KilosSettled, &p.CommissionSettled, &p.PaymentKind, &p.IsFixedSalary, &p.Notes, &p.AuthorID, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *txRepository) GetBakerForUpdate(ctx context.Context, id int64) (Baker, error) {
	var b Baker
	err := r.tx.QueryRow(ctx, `SELECT `+bakerColumns+` FROM bakers WHERE id=$1 FOR UPDATE`, id).
		Scan(&b.ID, &b.Name, &b.BaseSalary, &b.RatePerKilo, &b.KilosAccrued, &b.UnitsProducedTotal, &b.Active, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Baker{}, shared.ErrNotFound
		}
		return Baker{}, err
	}
	return b, nil
}

func (r *txRepository) UpdateBakerAccrual(ctx context.Context, id int64, kilosAccrued, unitsTotal float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE bakers SET kilos_accrued=$2, units_produced_total=$3, updated_at=NOW() WHERE id=$1`, id, kilosAccrued, unitsTotal)
	return err
}

func (r *txRepository) GetSalespersonForUpdate(ctx context.Context, id int64) (Salesperson, error) {
	var s Salesperson
	err := r.tx.QueryRow(ctx, `SELECT `+salespersonColumns+` FROM salespersons WHERE id=$1 FOR UPDATE`, id).
		Scan(&s.ID, &s.Name, &s.CommissionRate, &s.CommissionAccrued, &s.TotalSold, &s.Active, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Salesperson{}, shared.ErrNotFound
		}
		return Salesperson{}, err
	}
	return s, nil
}

func (r *txRepository) UpdateSalespersonAccrual(ctx context.Context, id int64, commissionAccrued, totalSold float64) error {
	_, err := r.tx.Exec(ctx, `UPDATE salespersons SET commission_accrued=$2, total_sold=$3, updated_at=NOW() WHERE id=$1`, id, commissionAccrued, totalSold)
	return err
}

func (r *txRepository) InsertPayment(ctx context.Context, p StaffPayment) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO staff_payments (target_kind, target_id, amount, kilos_settled, commission_settled, payment_kind, is_fixed_salary, notes, author_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW()) RETURNING id`,
		string(p.TargetKind), p.TargetID, p.Amount, p.KilosSettled, p.CommissionSettled, string(p.PaymentKind), p.IsFixedSalary, p.Notes, p.AuthorID).Scan(&id)
	return id, err
}
