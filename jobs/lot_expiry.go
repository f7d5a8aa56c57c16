package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// LotExpirer marks active lots past their expiry date.
type LotExpirer interface {
	ExpireLots(ctx context.Context, asOf time.Time) ([]string, error)
}

// NewLotExpiryHandler builds the handler running the daily expiry sweep.
func NewLotExpiryHandler(goods LotExpirer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		codes, err := goods.ExpireLots(ctx, time.Now())
		if err != nil {
			return err
		}
		if len(codes) == 0 {
			logger.Info("lot expiry sweep: nothing to expire", slog.String("job", TaskTypeLotExpiry))
			return nil
		}
		logger.Info("lot expiry sweep expired lots",
			slog.String("job", TaskTypeLotExpiry),
			slog.Int("count", len(codes)),
			slog.Any("lot_codes", codes))
		return nil
	}
}
