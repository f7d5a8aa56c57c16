package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/bakehouse-erp/bakehouse-erp/internal/finishedgoods"
	"github.com/bakehouse-erp/bakehouse-erp/internal/materials"
)

// MaterialScanner lists raw materials under their minimum stock.
type MaterialScanner interface {
	BelowMinimum(ctx context.Context) ([]materials.RawMaterial, error)
}

// GoodsScanner lists finished goods under their minimum stock.
type GoodsScanner interface {
	BelowMinimum(ctx context.Context) ([]finishedgoods.Inventory, error)
}

// NewLowStockScanHandler builds the handler that emails a low stock summary.
// Recipient empty disables the email; the scan still logs its findings.
func NewLowStockScanHandler(mats MaterialScanner, goods GoodsScanner, client *Client, recipient string, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		lowMaterials, err := mats.BelowMinimum(ctx)
		if err != nil {
			return err
		}
		lowGoods, err := goods.BelowMinimum(ctx)
		if err != nil {
			return err
		}
		if len(lowMaterials) == 0 && len(lowGoods) == 0 {
			logger.Info("low stock scan: all stock above minimums", slog.String("job", TaskTypeLowStockScan))
			return nil
		}

		var body strings.Builder
		if len(lowMaterials) > 0 {
			body.WriteString("Raw materials below minimum:\n")
			for _, m := range lowMaterials {
				fmt.Fprintf(&body, "- %s: %.3f %s (minimum %.3f)\n", m.Name, m.StockActual, m.Unit, m.StockMinimum)
			}
		}
		if len(lowGoods) > 0 {
			body.WriteString("Finished goods below minimum:\n")
			for _, g := range lowGoods {
				fmt.Fprintf(&body, "- product %d: %.3f (minimum %.3f)\n", g.ProductID, g.StockActual, g.StockMinimum)
			}
		}

		logger.Warn("low stock scan found shortages",
			slog.String("job", TaskTypeLowStockScan),
			slog.Int("materials", len(lowMaterials)),
			slog.Int("finished_goods", len(lowGoods)))

		if recipient == "" || client == nil {
			return nil
		}
		_, err = client.EnqueueSendEmail(ctx, SendEmailPayload{
			To:      recipient,
			Subject: "Stock below minimum",
			Body:    body.String(),
		})
		return err
	}
}
