package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/gommon/random"
	"github.com/ziflex/lecho/v3"

	"github.com/memopay/invoicehub/ledger"
	"github.com/memopay/invoicehub/registry"
)

var (
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrNoMatchingTransfer = errors.New("transaction contains no matching transfer")
)

// InvoicehubService owns the reconciliation engine, the invoice projection
// and the notification fan-out. The projection has a single writer: all
// mutations go through methods on this service.
type InvoicehubService struct {
	Config        *Config
	Ledger        ledger.LedgerClientWrapper
	Registry      registry.RegistryClientWrapper
	Logger        *lecho.Logger
	Projection    *Projection
	InvoicePubSub *Pubsub
}

// MerchantAddress returns the configured receive address in canonical form.
func (svc *InvoicehubService) MerchantAddress() string {
	return ledger.NormalizeAddress(svc.Config.MerchantAddress)
}

// newInvoiceID builds a human-readable invoice identifier: a fixed prefix,
// the expected sequence number and a random suffix to keep memos unique even
// if numbering ever diverges.
func newInvoiceID(number uint64) string {
	return fmt.Sprintf("INV-%04d-%s", number, strings.ToLower(random.String(8, random.Hex)))
}
