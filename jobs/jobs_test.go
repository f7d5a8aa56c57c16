package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/bakehouse-erp/bakehouse-erp/internal/finishedgoods"
	"github.com/bakehouse-erp/bakehouse-erp/internal/materials"
)

type fakeExpirer struct {
	codes []string
	err   error
	asOf  time.Time
}

func (f *fakeExpirer) ExpireLots(_ context.Context, asOf time.Time) ([]string, error) {
	f.asOf = asOf
	return f.codes, f.err
}

type fakeMaterialScanner struct {
	low []materials.RawMaterial
	err error
}

func (f *fakeMaterialScanner) BelowMinimum(context.Context) ([]materials.RawMaterial, error) {
	return f.low, f.err
}

type fakeGoodsScanner struct {
	low []finishedgoods.Inventory
}

func (f *fakeGoodsScanner) BelowMinimum(context.Context) ([]finishedgoods.Inventory, error) {
	return f.low, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLotExpiryHandlerSweepsWithCurrentTime(t *testing.T) {
	expirer := &fakeExpirer{codes: []string{"LOT-20260830-deadbeef"}}
	handler := NewLotExpiryHandler(expirer, quietLogger())

	before := time.Now()
	err := handler(context.Background(), asynq.NewTask(TaskTypeLotExpiry, nil))
	require.NoError(t, err)
	require.False(t, expirer.asOf.Before(before))
}

func TestLotExpiryHandlerPropagatesError(t *testing.T) {
	boom := errors.New("db down")
	handler := NewLotExpiryHandler(&fakeExpirer{err: boom}, quietLogger())

	err := handler(context.Background(), asynq.NewTask(TaskTypeLotExpiry, nil))
	require.ErrorIs(t, err, boom)
}

func TestLowStockScanWithoutRecipientStillSucceeds(t *testing.T) {
	mats := &fakeMaterialScanner{low: []materials.RawMaterial{{
		ID: 1, Name: "flour", Unit: "kg", StockActual: 2, StockMinimum: 10,
	}}}
	goods := &fakeGoodsScanner{low: []finishedgoods.Inventory{{
		ProductID: 7, StockActual: 1, StockMinimum: 5,
	}}}
	handler := NewLowStockScanHandler(mats, goods, nil, "", quietLogger())

	err := handler(context.Background(), asynq.NewTask(TaskTypeLowStockScan, nil))
	require.NoError(t, err)
}

func TestLowStockScanPropagatesScannerError(t *testing.T) {
	boom := errors.New("query failed")
	handler := NewLowStockScanHandler(&fakeMaterialScanner{err: boom}, &fakeGoodsScanner{}, nil, "", quietLogger())

	err := handler(context.Background(), asynq.NewTask(TaskTypeLowStockScan, nil))
	require.ErrorIs(t, err, boom)
}
