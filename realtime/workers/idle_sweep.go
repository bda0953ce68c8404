package workers

import (
	"context"
	"log/slog"
	"time"

	"campushub/realtime"
)

// IdleSweepWorker periodically force-closes connections whose last activity
// is older than the threshold. A forced close runs the exact disconnect
// sequence a client-initiated close would.
type IdleSweepWorker struct {
	log        *slog.Logger
	controller *realtime.Controller
	interval   time.Duration
	threshold  time.Duration
}

func NewIdleSweepWorker(log *slog.Logger, controller *realtime.Controller,
	interval, threshold time.Duration) *IdleSweepWorker {
	return &IdleSweepWorker{log: log, controller: controller, interval: interval, threshold: threshold}
}

func (w *IdleSweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping idle sweep")
			return nil
		case <-ticker.C:
			if closed := w.controller.CloseIdle(ctx, w.threshold); closed > 0 {
				w.log.Info("idle sweep closed connections", "count", closed)
			}
		}
	}
}
