package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/getsentry/sentry-go"

	"github.com/memopay/invoicehub/common"
	"github.com/memopay/invoicehub/ledger"
)

func (svc *InvoicehubService) ConnectTransferSubscription(ctx context.Context) (ledger.SubscribeTransfersWrapper, error) {
	opts := ledger.SubscribeOptions{
		Query: ledger.FilterQuery{
			Kinds: []string{common.TransferKindMemo},
			To:    svc.MerchantAddress(),
		},
		PollInterval: time.Duration(svc.Config.PollInterval) * time.Second,
	}
	svc.Logger.Infof("Starting transfer subscription for merchant %s", svc.MerchantAddress())
	return svc.Ledger.SubscribeTransfers(ctx, opts)
}

// TransferUpdateSubscription runs the long-lived real-time loop: it receives
// transfer events in ledger order and feeds them to the matcher, reconnecting
// with exponential backoff when the stream breaks. Gaps during a reconnect
// are recovered by the periodic backfill pass.
func (svc *InvoicehubService) TransferUpdateSubscription(ctx context.Context) error {
	stream, err := svc.ConnectTransferSubscription(ctx)
	if err != nil {
		sentry.CaptureException(err)
		return err
	}
	reconnect := backoff.NewExponentialBackOff()
	reconnect.MaxElapsedTime = 0 // retry for the lifetime of the process
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			ev, err := stream.Recv()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				svc.Logger.Errorf("Error receiving transfer update: %v", err)
				sentry.CaptureException(err)
				for {
					time.Sleep(reconnect.NextBackOff())
					if ctx.Err() != nil {
						return ctx.Err()
					}
					stream, err = svc.ConnectTransferSubscription(ctx)
					if err == nil {
						break
					}
					svc.Logger.Errorf("Error reconnecting transfer subscription: %v", err)
				}
				continue
			}
			reconnect.Reset()

			if processingError := svc.ProcessTransferEvent(ctx, ev); processingError != nil {
				svc.Logger.Errorf("Error processing transfer %s: %v", ev.ID(), processingError)
				sentry.CaptureException(processingError)
			}
		}
	}
}
