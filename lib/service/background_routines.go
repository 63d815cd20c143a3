package service

import (
	"context"
	"errors"
	"time"

	"github.com/getsentry/sentry-go"
)

// StartTransferRoutine runs the real-time reconciliation loop. Plain context
// cancellation is the shutdown path, not an error.
func (svc *InvoicehubService) StartTransferRoutine(ctx context.Context) error {
	err := svc.TransferUpdateSubscription(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// StartBackfillRoutine runs an initial backfill pass to rebuild state after
// a restart, then repeats on the configured interval to catch settlements
// the live subscription missed. Failed passes are logged and retried on the
// next tick; they never take the process down.
func (svc *InvoicehubService) StartBackfillRoutine(ctx context.Context) error {
	runPass := func() {
		marked, err := svc.Backfill(ctx, 0)
		if err != nil {
			svc.Logger.Errorf("Backfill pass failed: %v", err)
			sentry.CaptureException(err)
			return
		}
		if marked > 0 {
			svc.Logger.Infof("Backfill marked %d invoices paid", marked)
		}
	}
	runPass()

	if svc.Config.BackfillInterval <= 0 {
		return nil
	}
	ticker := time.NewTicker(time.Duration(svc.Config.BackfillInterval) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runPass()
		}
	}
}
