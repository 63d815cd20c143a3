package service

import (
	"sync"
	"time"

	"github.com/memopay/invoicehub/common"
	"github.com/memopay/invoicehub/memo"
)

// Invoice is the projection's view of an invoice record: the registry fields
// plus what the reconciliation engine actually observed on the ledger.
// Amounts are decimal strings so payloads survive JSON consumers that cannot
// represent 256-bit integers.
type Invoice struct {
	Number         uint64    `json:"number"`
	InvoiceID      string    `json:"invoice_id"`
	Memo           string    `json:"memo"`
	Payee          string    `json:"payee"`
	Currency       string    `json:"currency"`
	Amount         string    `json:"amount"`
	DueDate        time.Time `json:"due_date"`
	Status         string    `json:"status"`
	PaidTxHash     string    `json:"paid_tx_hash,omitempty"`
	Payer          string    `json:"payer,omitempty"`
	PaidAmount     string    `json:"paid_amount,omitempty"`
	AmountMismatch bool      `json:"amount_mismatch,omitempty"`
	PaidAt         time.Time `json:"paid_at,omitempty"`
}

// Projection is the in-process cache of invoice view state. It is never the
// source of truth: it is rebuilt from the registry on restart and refreshed
// by reads, the live subscription and backfill passes.
//
// Only the reconciliation engine writes to it. Reads may run concurrently
// with writes and observe either the pre- or post-mutation record, never a
// torn one: records are stored by value and swapped whole.
type Projection struct {
	mu       sync.RWMutex
	byNumber map[uint64]Invoice
	byMemo   map[string]uint64
	order    []uint64
}

func NewProjection() *Projection {
	return &Projection{
		byNumber: make(map[uint64]Invoice),
		byMemo:   make(map[string]uint64),
	}
}

// Upsert inserts or replaces the cached record. The returned flag reports a
// data-integrity fault: the memo is already tracked for a different invoice
// number. The lower-numbered invoice keeps the memo mapping so lookups stay
// stable; the caller is expected to flag the fault, not resolve it.
func (p *Projection) Upsert(inv Invoice) (memoConflict bool) {
	inv.Memo = memo.Canonical(inv.Memo)
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.byNumber[inv.Number]; !ok {
		p.order = append(p.order, inv.Number)
	}
	p.byNumber[inv.Number] = inv

	if existing, ok := p.byMemo[inv.Memo]; ok && existing != inv.Number {
		if inv.Number < existing {
			p.byMemo[inv.Memo] = inv.Number
		}
		return true
	}
	p.byMemo[inv.Memo] = inv.Number
	return false
}

// Get returns a copy of the cached record.
func (p *Projection) Get(number uint64) (Invoice, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	inv, ok := p.byNumber[number]
	return inv, ok
}

// FindByMemo performs a canonicalized exact-match lookup on the memo field.
func (p *Projection) FindByMemo(memoHex string) (Invoice, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	number, ok := p.byMemo[memo.Canonical(memoHex)]
	if !ok {
		return Invoice{}, false
	}
	inv, ok := p.byNumber[number]
	return inv, ok
}

// MarkPaid transitions an Open invoice to Paid and records the observed
// payer, amount and transaction. It returns the updated record and whether
// anything changed: marking a missing or already-Paid invoice is a no-op,
// which is the engine's defense against duplicate event delivery.
func (p *Projection) MarkPaid(number uint64, payer, paidAmount, txHash string, amountMismatch bool) (Invoice, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	inv, ok := p.byNumber[number]
	if !ok || inv.Status == common.InvoiceStatusPaid {
		return inv, false
	}
	inv.Status = common.InvoiceStatusPaid
	inv.PaidTxHash = txHash
	inv.Payer = payer
	inv.PaidAmount = paidAmount
	inv.AmountMismatch = amountMismatch
	inv.PaidAt = time.Now().UTC()
	p.byNumber[number] = inv
	return inv, true
}

// All returns the current snapshot in insertion order. Invoices are inserted
// in ascending number order by every code path, so the result is stable for
// UI consumption.
func (p *Projection) All() []Invoice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Invoice, 0, len(p.order))
	for _, n := range p.order {
		out = append(out, p.byNumber[n])
	}
	return out
}

func (p *Projection) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byNumber)
}
