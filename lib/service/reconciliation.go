package service

import (
	"context"

	"github.com/memopay/invoicehub/common"
	"github.com/memopay/invoicehub/ledger"
)

// ProcessTransferEvent is the real-time half of the reconciliation engine.
// For every observed transfer it decides whether some Open invoice is
// satisfied and, if so, transitions the projection entry to Paid and notifies
// observers. Events that do not match, target another recipient or settle an
// already-Paid invoice are discarded as expected non-error outcomes, which
// makes duplicate delivery, reorganization replays and re-subscription safe.
//
// The registry record is not mutated here: the durable mark-paid happens in
// backfill passes or through the explicit mark-paid operation, both of which
// treat a projection-paid/registry-open invoice as still pending.
func (svc *InvoicehubService) ProcessTransferEvent(ctx context.Context, ev *ledger.TransferEvent) error {
	if ev.Kind != common.TransferKindMemo || ev.Memo == "" {
		return nil
	}
	if ev.To != svc.MerchantAddress() {
		return nil
	}
	invoice, ok := svc.Projection.FindByMemo(ev.Memo)
	if !ok {
		svc.Logger.Debugf("No invoice for memo, ignoring. tx_hash:%s log_index:%d", ev.TxHash, ev.LogIndex)
		return nil
	}
	if invoice.Status == common.InvoiceStatusPaid {
		svc.Logger.Debugf("Invoice %d already paid, ignoring. tx_hash:%s", invoice.Number, ev.TxHash)
		return nil
	}
	if invoice.Payee != "" && invoice.Payee != ev.From {
		svc.Logger.Infof("Transfer sender %s does not match invoice %d payee %s, ignoring. tx_hash:%s",
			ev.From, invoice.Number, invoice.Payee, ev.TxHash)
		return nil
	}

	// Amount equality is not enforced: the observed amount settles the
	// invoice either way, and mismatches are flagged for manual review.
	mismatch := ev.Amount.String() != invoice.Amount
	updated, changed := svc.Projection.MarkPaid(invoice.Number, ev.From, ev.Amount.String(), ev.TxHash, mismatch)
	if !changed {
		return nil
	}
	if mismatch {
		svc.Logger.Warnf("Amount mismatch on invoice %d: expected %s, paid %s. tx_hash:%s",
			invoice.Number, invoice.Amount, ev.Amount.String(), ev.TxHash)
	}
	svc.Logger.Infof("Invoice %d paid. payer:%s amount:%s tx_hash:%s", updated.Number, ev.From, ev.Amount.String(), ev.TxHash)

	svc.InvoicePubSub.Publish(common.EventInvoicePaid, updated)
	svc.InvoicePubSub.Publish(common.EventInvoicesSnapshot, svc.Projection.All())
	return nil
}
