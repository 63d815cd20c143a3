package registry

import (
	"context"
	"errors"
	"math/big"
	"time"
)

// ErrNotFound is returned when an invoice number has no record. Number 0 is
// reserved as "not found" by the contract.
var ErrNotFound = errors.New("invoice not found")

// Invoice is the authoritative on-chain invoice record.
type Invoice struct {
	Number     uint64
	InvoiceID  string
	MemoHex    string
	Payee      string
	Currency   string
	Amount     *big.Int
	DueDate    time.Time
	Status     string
	PaidTxHash string
}

type RegistryClientWrapper interface {
	CreateInvoice(ctx context.Context, inv *Invoice) (txHash string, number uint64, err error)
	MarkPaid(ctx context.Context, number uint64, payingTxHash string) (markTxHash string, err error)
	GetInvoice(ctx context.Context, number uint64) (*Invoice, error)
	NextInvoiceNumber(ctx context.Context) (uint64, error)
	InvoiceNumbersByPayee(ctx context.Context, payee string) ([]uint64, error)
}
