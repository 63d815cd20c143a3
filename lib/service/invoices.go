package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/memopay/invoicehub/common"
	"github.com/memopay/invoicehub/ledger"
	"github.com/memopay/invoicehub/memo"
	"github.com/memopay/invoicehub/registry"
)

func viewFromRegistry(inv *registry.Invoice) Invoice {
	return Invoice{
		Number:     inv.Number,
		InvoiceID:  inv.InvoiceID,
		Memo:       inv.MemoHex,
		Payee:      inv.Payee,
		Currency:   inv.Currency,
		Amount:     inv.Amount.String(),
		DueDate:    inv.DueDate,
		Status:     inv.Status,
		PaidTxHash: inv.PaidTxHash,
	}
}

// upsertFromRegistry refreshes the projection entry from the authoritative
// record. A cached Paid entry is kept when the registry still reports Open:
// the real-time matcher runs ahead of the durable mark-paid, and the refresh
// must not resurrect an invoice the engine already observed as settled.
func (svc *InvoicehubService) upsertFromRegistry(inv *registry.Invoice) Invoice {
	view := viewFromRegistry(inv)
	if cached, ok := svc.Projection.Get(inv.Number); ok {
		if cached.Status == common.InvoiceStatusPaid && view.Status == common.InvoiceStatusOpen {
			view.Status = common.InvoiceStatusPaid
			view.PaidTxHash = cached.PaidTxHash
			view.Payer = cached.Payer
			view.PaidAmount = cached.PaidAmount
			view.AmountMismatch = cached.AmountMismatch
			view.PaidAt = cached.PaidAt
		} else if view.Status == common.InvoiceStatusPaid {
			view.Payer = cached.Payer
			view.PaidAmount = cached.PaidAmount
			view.AmountMismatch = cached.AmountMismatch
			view.PaidAt = cached.PaidAt
		}
	}
	if conflict := svc.Projection.Upsert(view); conflict {
		svc.Logger.Warnf("Data-integrity fault: memo %s is tracked for more than one invoice (latest: %d)", view.Memo, view.Number)
	}
	return view
}

// CreateInvoice creates a demo invoice for the payee: the amount is chosen
// randomly within the configured bounds and the due date is a configured
// number of days out. The registry create runs through the serialized
// mutation queue and the call returns only once the transaction confirmed.
func (svc *InvoicehubService) CreateInvoice(ctx context.Context, payee string) (Invoice, string, error) {
	payee = ledger.NormalizeAddress(payee)

	expectedNumber, err := svc.Registry.NextInvoiceNumber(ctx)
	if err != nil {
		return Invoice{}, "", err
	}
	invoiceID := newInvoiceID(expectedNumber)
	memoHex, err := memo.EncodeHex(invoiceID)
	if err != nil {
		return Invoice{}, "", err
	}

	span := svc.Config.MaxInvoiceAmount - svc.Config.MinInvoiceAmount
	amount := svc.Config.MinInvoiceAmount
	if span > 0 {
		amount += rand.Int63n(span + 1)
	}

	record := &registry.Invoice{
		InvoiceID: invoiceID,
		MemoHex:   memoHex,
		Payee:     payee,
		Currency:  ledger.NormalizeAddress(svc.Config.TokenAddress),
		Amount:    big.NewInt(amount),
		DueDate:   time.Now().UTC().AddDate(0, 0, svc.Config.InvoiceDueDays).Truncate(time.Second),
		Status:    common.InvoiceStatusOpen,
	}
	txHash, number, err := svc.Registry.CreateInvoice(ctx, record)
	if err != nil {
		return Invoice{}, "", err
	}
	if number != expectedNumber {
		svc.Logger.Warnf("Registry assigned invoice number %d, expected %d", number, expectedNumber)
	}
	record.Number = number

	view := svc.upsertFromRegistry(record)
	svc.Logger.Infof("Created invoice %d id:%s payee:%s amount:%d tx_hash:%s", number, invoiceID, payee, amount, txHash)
	svc.InvoicePubSub.Publish(common.EventInvoiceCreated, view)
	svc.InvoicePubSub.Publish(common.EventInvoicesSnapshot, svc.Projection.All())
	return view, txHash, nil
}

// GetInvoice reads through to the registry and refreshes the projection.
func (svc *InvoicehubService) GetInvoice(ctx context.Context, number uint64) (Invoice, error) {
	if number == 0 {
		return Invoice{}, ErrInvoiceNotFound
	}
	record, err := svc.Registry.GetInvoice(ctx, number)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return svc.upsertFromRegistry(record), nil
}

// ListInvoices refreshes the projection from the registry and returns the
// full snapshot ordered by invoice number.
func (svc *InvoicehubService) ListInvoices(ctx context.Context) ([]Invoice, error) {
	next, err := svc.Registry.NextInvoiceNumber(ctx)
	if err != nil {
		return nil, err
	}
	for number := uint64(1); number < next; number++ {
		record, err := svc.Registry.GetInvoice(ctx, number)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				continue
			}
			return nil, err
		}
		svc.upsertFromRegistry(record)
	}
	return svc.Projection.All(), nil
}

// MarkPaidWithTx settles an invoice against a caller-supplied transaction.
// The transaction must actually contain a memo transfer satisfying the
// invoice's payee, memo and merchant-address constraints before any mutation
// happens. An already-Paid invoice is a successful no-op, reported distinctly
// from a fresh settlement and emitting no duplicate paid event.
func (svc *InvoicehubService) MarkPaidWithTx(ctx context.Context, number uint64, txHash string) (string, Invoice, error) {
	invoice, err := svc.GetInvoice(ctx, number)
	if err != nil {
		return "", Invoice{}, err
	}
	if invoice.Status == common.InvoiceStatusPaid {
		return common.MarkPaidResultAlreadyPaid, invoice, nil
	}

	events, err := svc.Ledger.TransferEventsInTx(ctx, txHash)
	if err != nil {
		return "", Invoice{}, err
	}
	var match *ledger.TransferEvent
	for _, ev := range events {
		if ev.Kind != common.TransferKindMemo {
			continue
		}
		if ev.To == svc.MerchantAddress() && ev.From == invoice.Payee && memo.Canonical(ev.Memo) == invoice.Memo {
			match = ev
			break
		}
	}
	if match == nil {
		return "", Invoice{}, fmt.Errorf("%w: invoice %d, tx %s", ErrNoMatchingTransfer, number, txHash)
	}

	if _, err := svc.Registry.MarkPaid(ctx, number, match.TxHash); err != nil {
		return "", Invoice{}, err
	}
	mismatch := match.Amount.String() != invoice.Amount
	if mismatch {
		svc.Logger.Warnf("Amount mismatch on invoice %d: expected %s, paid %s. tx_hash:%s",
			number, invoice.Amount, match.Amount.String(), match.TxHash)
	}
	updated, changed := svc.Projection.MarkPaid(number, match.From, match.Amount.String(), match.TxHash, mismatch)
	if changed {
		svc.InvoicePubSub.Publish(common.EventInvoicePaid, updated)
		svc.InvoicePubSub.Publish(common.EventInvoicesSnapshot, svc.Projection.All())
	}
	return common.MarkPaidResultPaid, updated, nil
}
