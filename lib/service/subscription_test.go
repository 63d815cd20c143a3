package service

import (
	"context"
	"testing"
	"time"

	"github.com/memopay/invoicehub/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransferUpdateSubscriptionSettlesLiveEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ml := newMockLedger(100)
	svc := newTestService(ml, newMockRegistry())
	memoHex := mustMemoHex("INV-0001-deadbeef")
	svc.Projection.Upsert(openInvoice(1, memoHex))

	events := make(chan Event, 16)
	svc.InvoicePubSub.Subscribe(events)

	done := make(chan error, 1)
	go func() {
		done <- svc.TransferUpdateSubscription(ctx)
	}()

	ml.subChan <- memoTransfer(testPayee, testMerchant, memoHex, 1500, 42, "0x01", 0)
	// same event delivered again, as a reorg replay or resubscription would
	ml.subChan <- memoTransfer(testPayee, testMerchant, memoHex, 1500, 42, "0x01", 0)

	deadline := time.After(2 * time.Second)
	for {
		inv, ok := svc.Projection.Get(1)
		if ok && inv.Status == common.InvoiceStatusPaid {
			break
		}
		select {
		case <-deadline:
			t.Fatal("invoice never settled from the live stream")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// give the duplicate a chance to be processed before asserting
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, drainByName(events, common.EventInvoicePaid), 1)

	cancel()
	close(ml.subChan)
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription loop did not stop on cancel")
	}
}

func TestStartTransferRoutineStopsCleanlyOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ml := newMockLedger(100)
	svc := newTestService(ml, newMockRegistry())

	done := make(chan error, 1)
	go func() {
		done <- svc.StartTransferRoutine(ctx)
	}()

	// deliver one event so the loop is past connection setup
	ml.subChan <- memoTransfer(testPayee, testMerchant, mustMemoHex("INV-0001-deadbeef"), 1500, 42, "0x01", 0)

	// shutdown order as in main: cancel the context, then the stream breaks
	cancel()
	close(ml.subChan)

	select {
	case err := <-done:
		require.NoError(t, err, "plain cancellation must not surface as an error")
	case <-time.After(2 * time.Second):
		t.Fatal("transfer routine did not stop on cancel")
	}
}
