package workers

import (
	"context"
	"log/slog"
	"time"

	"campushub/realtime"
)

// TypingSweepWorker is the active half of typing-state expiry: it reclaims
// entries past the timeout and emits the stop events peers are waiting on.
// The passive half runs on every read of the tracker.
type TypingSweepWorker struct {
	log        *slog.Logger
	controller *realtime.Controller
	interval   time.Duration
}

func NewTypingSweepWorker(log *slog.Logger, controller *realtime.Controller,
	interval time.Duration) *TypingSweepWorker {
	return &TypingSweepWorker{log: log, controller: controller, interval: interval}
}

func (w *TypingSweepWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping typing sweep")
			return nil
		case <-ticker.C:
			w.controller.ExpireTyping()
		}
	}
}
