package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bakehouse-erp/bakehouse-erp/internal/observability"
)

// NewLedgerIntegrityHandler builds the handler verifying that every
// denormalized balance still equals what its ledger replays to. A mismatch
// is a data defect, so it is logged loudly rather than retried.
func NewLedgerIntegrityHandler(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.JobMetrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		mismatches := 0
		mismatches += checkMaterialLedger(ctx, pool, logger, metrics)
		mismatches += checkFinishedGoodLedger(ctx, pool, logger, metrics)
		mismatches += checkAccruals(ctx, pool, logger, metrics)
		if mismatches == 0 {
			logger.Info("ledger integrity check passed", slog.String("job", TaskTypeLedgerIntegrity))
		} else {
			logger.Error("ledger integrity check found mismatches",
				slog.String("job", TaskTypeLedgerIntegrity), slog.Int("mismatches", mismatches))
		}
		return nil
	}
}

// checkMaterialLedger compares stock_actual to the replayed movement chain:
// the first movement's stock_before plus the signed sum of all quantities.
func checkMaterialLedger(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.JobMetrics) int {
	rows, err := pool.Query(ctx, `
SELECT rm.id, rm.name, rm.stock_actual, head.stock_after
FROM raw_materials rm
JOIN LATERAL (
  SELECT stock_after FROM material_movements
  WHERE material_id = rm.id ORDER BY id DESC LIMIT 1
) head ON true
WHERE rm.stock_actual <> head.stock_after`)
	if err != nil {
		logger.Error("material ledger check failed", slog.Any("error", err))
		return 0
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id int64
		var name string
		var actual, replayed float64
		if err := rows.Scan(&id, &name, &actual, &replayed); err != nil {
			logger.Error("material ledger scan failed", slog.Any("error", err))
			return count
		}
		count++
		metrics.AddLedgerDrift("raw_materials", id, 1)
		logger.Error("material balance diverged from ledger",
			slog.Int64("material_id", id), slog.String("name", name),
			slog.Float64("stock_actual", actual), slog.Float64("ledger_head", replayed))
	}
	return count
}

func checkFinishedGoodLedger(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.JobMetrics) int {
	rows, err := pool.Query(ctx, `
SELECT inv.product_id, inv.stock_actual, head.stock_after
FROM finished_good_inventory inv
JOIN LATERAL (
  SELECT stock_after FROM finished_good_movements
  WHERE product_id = inv.product_id ORDER BY id DESC LIMIT 1
) head ON true
WHERE inv.stock_actual <> head.stock_after`)
	if err != nil {
		logger.Error("finished good ledger check failed", slog.Any("error", err))
		return 0
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var productID int64
		var actual, replayed float64
		if err := rows.Scan(&productID, &actual, &replayed); err != nil {
			logger.Error("finished good ledger scan failed", slog.Any("error", err))
			return count
		}
		count++
		metrics.AddLedgerDrift("finished_goods", productID, 1)
		logger.Error("finished good balance diverged from ledger",
			slog.Int64("product_id", productID),
			slog.Float64("stock_actual", actual), slog.Float64("ledger_head", replayed))
	}
	return count
}

// checkAccruals verifies an accrued balance is never negative. The settle
// path enforces the bound transactionally; a negative value here means a
// write bypassed it.
func checkAccruals(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.JobMetrics) int {
	count := 0
	var negBakers, negSales int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM bakers WHERE kilos_accrued < 0`).Scan(&negBakers); err != nil {
		logger.Error("baker accrual check failed", slog.Any("error", err))
	} else if negBakers > 0 {
		count += negBakers
		metrics.AddLedgerDrift("bakers", 0, negBakers)
		logger.Error("bakers with negative accrual", slog.Int("count", negBakers))
	}
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM salespersons WHERE commission_accrued < 0`).Scan(&negSales); err != nil {
		logger.Error("salesperson accrual check failed", slog.Any("error", err))
	} else if negSales > 0 {
		count += negSales
		metrics.AddLedgerDrift("salespersons", 0, negSales)
		logger.Error("salespersons with negative accrual", slog.Int("count", negSales))
	}
	return count
}
