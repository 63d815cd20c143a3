package service

import (
	"context"
	"sort"

	"github.com/memopay/invoicehub/common"
	"github.com/memopay/invoicehub/ledger"
	"github.com/memopay/invoicehub/memo"
)

// Transfer is the read-only aggregation view of a ledger movement touching
// an address.
type Transfer struct {
	Kind        string `json:"kind"`
	From        string `json:"from,omitempty"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Memo        string `json:"memo,omitempty"`
	InvoiceID   string `json:"invoice_id,omitempty"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
}

// ListTransfers aggregates recent movements for an address across the three
// event kinds: memo-carrying transfers, plain transfers and mint/funding
// events. Results are deduplicated by transaction, preferring the
// memo-carrying variant when a transaction emitted both, and returned newest
// first.
func (svc *InvoicehubService) ListTransfers(ctx context.Context, address string, lookback uint64) ([]Transfer, error) {
	address = ledger.NormalizeAddress(address)
	if lookback == 0 {
		lookback = svc.Config.TransferLookback
	}
	if lookback > svc.Config.MaxBackfillLookback {
		lookback = svc.Config.MaxBackfillLookback
	}
	head, err := svc.Ledger.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	fromBlock := uint64(0)
	if head > lookback {
		fromBlock = head - lookback
	}

	queries := []ledger.FilterQuery{
		{Kinds: []string{common.TransferKindMemo, common.TransferKindPlain}, From: address},
		{Kinds: []string{common.TransferKindMemo, common.TransferKindPlain, common.TransferKindMint}, To: address},
	}
	byTx := make(map[string]*ledger.TransferEvent)
	for _, q := range queries {
		events, err := svc.collectTransfers(ctx, fromBlock, head, q)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			existing, ok := byTx[ev.TxHash]
			if !ok || preferEvent(ev, existing) {
				byTx[ev.TxHash] = ev
			}
		}
	}

	out := make([]Transfer, 0, len(byTx))
	for _, ev := range byTx {
		t := Transfer{
			Kind:        ev.Kind,
			From:        ev.From,
			To:          ev.To,
			Amount:      ev.Amount.String(),
			Memo:        ev.Memo,
			BlockNumber: ev.BlockNumber,
			TxHash:      ev.TxHash,
		}
		if ev.Kind == common.TransferKindMemo {
			if id, err := memo.DecodeHex(ev.Memo); err == nil {
				t.InvoiceID = id
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockNumber > out[j].BlockNumber })
	return out, nil
}

// preferEvent decides which event represents a transaction in the aggregated
// view: memo-carrying transfers win over the plain/mint variants.
func preferEvent(candidate, existing *ledger.TransferEvent) bool {
	if candidate.Kind == common.TransferKindMemo && existing.Kind != common.TransferKindMemo {
		return true
	}
	return false
}
