package service

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/memopay/invoicehub/common"
	"github.com/memopay/invoicehub/ledger"
	"github.com/memopay/invoicehub/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedInvoice creates an open invoice in the mock registry and returns its
// memo. The payment for it, if any, is seeded separately into the mock ledger.
func seedInvoice(t *testing.T, mr *mockRegistry, payee string) (uint64, string) {
	t.Helper()
	number := mr.next
	invoiceID := fmt.Sprintf("INV-%04d-deadbeef", number)
	memoHex := mustMemoHex(invoiceID)
	_, got, err := mr.CreateInvoice(context.Background(), &registry.Invoice{
		InvoiceID: invoiceID,
		MemoHex:   memoHex,
		Payee:     payee,
		Currency:  testToken,
		Amount:    big.NewInt(1500),
	})
	require.NoError(t, err)
	require.Equal(t, number, got)
	return number, memoHex
}

func TestBackfillConvergesToZero(t *testing.T) {
	ctx := context.Background()
	ml := newMockLedger(1000)
	mr := newMockRegistry()
	svc := newTestService(ml, mr)

	var memos []string
	for i := 0; i < 3; i++ {
		_, memoHex := seedInvoice(t, mr, testPayee)
		memos = append(memos, memoHex)
	}
	// one invoice stays unpaid
	unpaidNumber, _ := seedInvoice(t, mr, testPayee)

	for i, memoHex := range memos {
		ml.events = append(ml.events,
			memoTransfer(testPayee, testMerchant, memoHex, 1500, uint64(100+i), fmt.Sprintf("0x%02d", i), 0))
	}

	marked, err := svc.Backfill(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, marked)
	assert.Equal(t, 3, mr.markPaidCalls)

	for n := uint64(1); n <= 3; n++ {
		inv, err := mr.GetInvoice(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, common.InvoiceStatusPaid, inv.Status)
	}
	unpaid, err := mr.GetInvoice(ctx, unpaidNumber)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStatusOpen, unpaid.Status)

	// second pass over the same window finds nothing left to mark
	marked, err = svc.Backfill(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, marked)
	assert.Equal(t, 3, mr.markPaidCalls)
}

func TestBackfillAbortKeepsAppliedMutations(t *testing.T) {
	ctx := context.Background()
	ml := newMockLedger(1000)
	mr := newMockRegistry()
	svc := newTestService(ml, mr)

	for i := 0; i < 3; i++ {
		_, memoHex := seedInvoice(t, mr, testPayee)
		ml.events = append(ml.events,
			memoTransfer(testPayee, testMerchant, memoHex, 1500, uint64(100+i), fmt.Sprintf("0x%02d", i), 0))
	}
	mr.failMarkPaidAt = 3

	marked, err := svc.Backfill(ctx, 0)
	require.Error(t, err)
	assert.Equal(t, 2, marked)

	// the pass aborted on invoice 3, but 1 and 2 stay durably marked
	for n := uint64(1); n <= 2; n++ {
		inv, err := mr.GetInvoice(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, common.InvoiceStatusPaid, inv.Status)
	}
	inv, err := mr.GetInvoice(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStatusOpen, inv.Status)

	// the next pass picks up where the failed one left off
	mr.failMarkPaidAt = 0
	marked, err = svc.Backfill(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	inv, err = mr.GetInvoice(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, common.InvoiceStatusPaid, inv.Status)
}

func TestBackfillFirstEventWinsOnDuplicateMemo(t *testing.T) {
	ctx := context.Background()
	ml := newMockLedger(1000)
	mr := newMockRegistry()
	svc := newTestService(ml, mr)

	number, memoHex := seedInvoice(t, mr, testPayee)
	// the same payee pays the same memo twice; events arrive newest chunk
	// first, so ordering must come from (block, log index), not delivery
	ml.events = append(ml.events,
		memoTransfer(testPayee, testMerchant, memoHex, 1500, 700, "0xlate", 0),
		memoTransfer(testPayee, testMerchant, memoHex, 1500, 300, "0xearly", 2),
		memoTransfer(testPayee, testMerchant, memoHex, 1500, 300, "0xearlier", 1),
	)

	marked, err := svc.Backfill(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)

	inv, err := mr.GetInvoice(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, "0xearlier", inv.PaidTxHash)
}

func TestBackfillChunkedQueryMatchesSingleQuery(t *testing.T) {
	ctx := context.Background()

	// events scattered across the window, including both edges and a
	// chunk boundary
	blocks := []uint64{0, 1, 499, 500, 501, 5000, 9999, 10000}

	run := func(maxBlockRange uint64, enforceCap bool) (int, *mockRegistry, *mockLedger) {
		ml := newMockLedger(10000)
		if enforceCap {
			ml.maxRange = maxBlockRange
		}
		mr := newMockRegistry()
		svc := newTestService(ml, mr)
		svc.Config.MaxBlockRange = maxBlockRange
		svc.Config.MaxBackfillLookback = 50000

		for i, block := range blocks {
			_, memoHex := seedInvoice(t, mr, testPayee)
			ml.events = append(ml.events,
				memoTransfer(testPayee, testMerchant, memoHex, 1500, block, fmt.Sprintf("0x%02x", i), 0))
		}
		marked, err := svc.Backfill(ctx, 10000)
		require.NoError(t, err)
		return marked, mr, ml
	}

	chunkedMarked, chunkedReg, ml := run(500, true)
	singleMarked, singleReg, _ := run(20000, false)

	assert.Equal(t, len(blocks), chunkedMarked)
	assert.Equal(t, singleMarked, chunkedMarked)
	for n := uint64(1); n <= uint64(len(blocks)); n++ {
		a, err := chunkedReg.GetInvoice(ctx, n)
		require.NoError(t, err)
		b, err := singleReg.GetInvoice(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, b.Status, a.Status)
		assert.Equal(t, b.PaidTxHash, a.PaidTxHash)
	}

	// the chunked queries must tile [0, 10000] without gaps or overlap
	ranges := append([][2]uint64(nil), ml.queries...)
	next := uint64(10000)
	for _, r := range ranges {
		assert.Equal(t, next, r[1], "chunks are issued newest first")
		require.LessOrEqual(t, r[0], r[1])
		if r[0] == 0 {
			next = 0
			break
		}
		next = r[0] - 1
	}
	assert.Equal(t, uint64(0), next, "window not fully covered")
}

func TestCollectTransfersDeduplicates(t *testing.T) {
	ctx := context.Background()
	ml := newMockLedger(1000)
	svc := newTestService(ml, newMockRegistry())

	ev := memoTransfer(testPayee, testMerchant, mustMemoHex("INV-0001-deadbeef"), 1500, 100, "0x01", 0)
	dup := *ev
	ml.events = append(ml.events, ev, &dup)

	events, err := svc.collectTransfers(ctx, 0, 1000, ledger.FilterQuery{
		Kinds: []string{common.TransferKindMemo},
		To:    testMerchant,
	})
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
