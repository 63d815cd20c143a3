package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/memopay/invoicehub/common"
	"github.com/memopay/invoicehub/ledger"
	"github.com/memopay/invoicehub/memo"
	"github.com/memopay/invoicehub/registry"
)

type matchKey struct {
	from string
	memo string
}

// Backfill is the batch half of the reconciliation engine: a bounded
// historical re-scan that catches settlements the live subscription missed.
// It queries all memo transfers into the merchant address over the lookback
// window, matches them against every Open invoice in the registry and marks
// matched invoices paid, sequentially and durably. It returns the number of
// invoices newly marked in this pass.
//
// The pass aborts on the first upstream failure; invoices already marked in
// the pass stay marked, since every mark-paid call is atomic on its own.
// Running the pass again is always safe: Paid invoices are skipped.
func (svc *InvoicehubService) Backfill(ctx context.Context, lookback uint64) (int, error) {
	if lookback == 0 {
		lookback = svc.Config.BackfillLookback
	}
	if lookback > svc.Config.MaxBackfillLookback {
		lookback = svc.Config.MaxBackfillLookback
	}
	head, err := svc.Ledger.BlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	fromBlock := uint64(0)
	if head > lookback {
		fromBlock = head - lookback
	}

	events, err := svc.collectTransfers(ctx, fromBlock, head, ledger.FilterQuery{
		Kinds: []string{common.TransferKindMemo},
		To:    svc.MerchantAddress(),
	})
	if err != nil {
		return 0, err
	}

	// Index settling candidates by (sender, memo). On duplicate keys the
	// first event in (block, log index) order wins.
	index := make(map[matchKey]*ledger.TransferEvent, len(events))
	for _, ev := range events {
		key := matchKey{from: ev.From, memo: memo.Canonical(ev.Memo)}
		if existing, ok := index[key]; ok && !eventBefore(ev, existing) {
			continue
		}
		index[key] = ev
	}

	next, err := svc.Registry.NextInvoiceNumber(ctx)
	if err != nil {
		return 0, err
	}

	// Linear scan over all invoice numbers. Invoice volume is expected to
	// be small; at production scale this would be an indexed payee lookup.
	marked := 0
	for number := uint64(1); number < next; number++ {
		invoice, err := svc.Registry.GetInvoice(ctx, number)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				continue
			}
			return marked, fmt.Errorf("backfill: reading invoice %d: %w", number, err)
		}
		svc.upsertFromRegistry(invoice)
		if invoice.Status == common.InvoiceStatusPaid {
			continue
		}
		ev, ok := index[matchKey{from: invoice.Payee, memo: invoice.MemoHex}]
		if !ok {
			continue
		}
		if _, err := svc.Registry.MarkPaid(ctx, number, ev.TxHash); err != nil {
			return marked, fmt.Errorf("backfill: marking invoice %d paid: %w", number, err)
		}
		mismatch := ev.Amount.String() != invoice.Amount.String()
		if mismatch {
			svc.Logger.Warnf("Amount mismatch on invoice %d: expected %s, paid %s. tx_hash:%s",
				number, invoice.Amount.String(), ev.Amount.String(), ev.TxHash)
		}
		updated, changed := svc.Projection.MarkPaid(number, ev.From, ev.Amount.String(), ev.TxHash, mismatch)
		if changed {
			svc.InvoicePubSub.Publish(common.EventInvoicePaid, updated)
		}
		svc.Logger.Infof("Backfill marked invoice %d paid. tx_hash:%s", number, ev.TxHash)
		marked++
	}
	if marked > 0 {
		svc.InvoicePubSub.Publish(common.EventInvoicesSnapshot, svc.Projection.All())
	}
	svc.Logger.Infof("Backfill pass done. window:[%d,%d] events:%d marked:%d", fromBlock, head, len(events), marked)
	return marked, nil
}

func eventBefore(a, b *ledger.TransferEvent) bool {
	if a.BlockNumber != b.BlockNumber {
		return a.BlockNumber < b.BlockNumber
	}
	return a.LogIndex < b.LogIndex
}

// collectTransfers queries [fromBlock, toBlock] in chunks of at most
// MaxBlockRange blocks, newest chunk first, because ledger nodes cap the
// range a single eth_getLogs call may span. Results are merged and
// deduplicated by (transaction hash, log index).
func (svc *InvoicehubService) collectTransfers(ctx context.Context, fromBlock, toBlock uint64, q ledger.FilterQuery) ([]*ledger.TransferEvent, error) {
	chunk := svc.Config.MaxBlockRange
	if chunk == 0 {
		chunk = 500
	}
	seen := make(map[string]struct{})
	var events []*ledger.TransferEvent
	hi := toBlock
	for {
		lo := fromBlock
		if hi >= chunk && hi-chunk+1 > fromBlock {
			lo = hi - chunk + 1
		}
		q.FromBlock = lo
		q.ToBlock = hi
		chunkEvents, err := svc.Ledger.FilterTransfers(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("querying blocks [%d,%d]: %w", lo, hi, err)
		}
		for _, ev := range chunkEvents {
			if _, dup := seen[ev.ID()]; dup {
				continue
			}
			seen[ev.ID()] = struct{}{}
			events = append(events, ev)
		}
		if lo <= fromBlock {
			break
		}
		hi = lo - 1
	}
	return events, nil
}
