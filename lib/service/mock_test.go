package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/memopay/invoicehub/common"
	"github.com/memopay/invoicehub/lib"
	"github.com/memopay/invoicehub/memo"
	"github.com/memopay/invoicehub/registry"

	"github.com/memopay/invoicehub/ledger"
)

const (
	testMerchant = "0x00000000000000000000000000000000000000aa"
	testToken    = "0x00000000000000000000000000000000000000bb"
	testPayee    = "0x0000000000000000000000000000000000000aaa"
	testPayee2   = "0x0000000000000000000000000000000000000bbb"
)

type mockLedger struct {
	mu       sync.Mutex
	head     uint64
	events   []*ledger.TransferEvent
	txEvents map[string][]*ledger.TransferEvent
	// maxRange makes FilterTransfers fail on over-wide queries, mimicking
	// the block-range cap of real nodes
	maxRange uint64
	queries  [][2]uint64
	subChan  chan *ledger.TransferEvent
}

func newMockLedger(head uint64) *mockLedger {
	return &mockLedger{
		head:     head,
		txEvents: make(map[string][]*ledger.TransferEvent),
		subChan:  make(chan *ledger.TransferEvent, 16),
	}
}

func (m *mockLedger) BlockNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.head, nil
}

func (m *mockLedger) FilterTransfers(ctx context.Context, q ledger.FilterQuery) ([]*ledger.TransferEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, [2]uint64{q.FromBlock, q.ToBlock})
	if m.maxRange > 0 && q.ToBlock-q.FromBlock+1 > m.maxRange+1 {
		return nil, fmt.Errorf("query range [%d,%d] exceeds maximum of %d blocks", q.FromBlock, q.ToBlock, m.maxRange)
	}
	kinds := q.Kinds
	if len(kinds) == 0 {
		kinds = []string{common.TransferKindMemo}
	}
	kindSet := make(map[string]struct{}, len(kinds))
	for _, k := range kinds {
		kindSet[k] = struct{}{}
	}
	var out []*ledger.TransferEvent
	for _, ev := range m.events {
		if ev.BlockNumber < q.FromBlock || ev.BlockNumber > q.ToBlock {
			continue
		}
		if _, ok := kindSet[ev.Kind]; !ok {
			continue
		}
		if q.From != "" && ev.From != q.From {
			continue
		}
		if q.To != "" && ev.To != q.To {
			continue
		}
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out, nil
}

func (m *mockLedger) TransferEventsInTx(ctx context.Context, txHash string) ([]*ledger.TransferEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	events, ok := m.txEvents[txHash]
	if !ok {
		return nil, fmt.Errorf("transaction %s not found", txHash)
	}
	return events, nil
}

func (m *mockLedger) TransactionReceipt(ctx context.Context, txHash string) (*ledger.Receipt, error) {
	return &ledger.Receipt{Status: 1, TxHash: txHash}, nil
}

func (m *mockLedger) SubscribeTransfers(ctx context.Context, opts ledger.SubscribeOptions) (ledger.SubscribeTransfersWrapper, error) {
	return &mockSubscription{events: m.subChan}, nil
}

func (m *mockLedger) Call(ctx context.Context, to string, data []byte) ([]byte, error) {
	return nil, fmt.Errorf("not implemented in mock")
}

func (m *mockLedger) SendTransaction(ctx context.Context, from, to string, data []byte) (string, error) {
	return "", fmt.Errorf("not implemented in mock")
}

type mockSubscription struct {
	events chan *ledger.TransferEvent
}

func (s *mockSubscription) Recv() (*ledger.TransferEvent, error) {
	ev, ok := <-s.events
	if !ok {
		return nil, fmt.Errorf("subscription closed")
	}
	return ev, nil
}

type mockRegistry struct {
	mu            sync.Mutex
	invoices      map[uint64]*registry.Invoice
	next          uint64
	markPaidCalls int
	// failMarkPaidAt makes the Nth MarkPaid call fail, for abort-path tests
	failMarkPaidAt int
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{invoices: make(map[uint64]*registry.Invoice), next: 1}
}

func (m *mockRegistry) CreateInvoice(ctx context.Context, inv *registry.Invoice) (string, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	number := m.next
	m.next++
	stored := *inv
	stored.Number = number
	stored.Status = common.InvoiceStatusOpen
	m.invoices[number] = &stored
	return fmt.Sprintf("0xcreate%04d", number), number, nil
}

func (m *mockRegistry) MarkPaid(ctx context.Context, number uint64, payingTxHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markPaidCalls++
	if m.failMarkPaidAt != 0 && m.markPaidCalls == m.failMarkPaidAt {
		return "", fmt.Errorf("node rejected transaction")
	}
	inv, ok := m.invoices[number]
	if !ok {
		return "", registry.ErrNotFound
	}
	if inv.Status == common.InvoiceStatusPaid {
		return "", fmt.Errorf("invoice %d already paid", number)
	}
	inv.Status = common.InvoiceStatusPaid
	inv.PaidTxHash = payingTxHash
	return fmt.Sprintf("0xmark%04d", number), nil
}

func (m *mockRegistry) GetInvoice(ctx context.Context, number uint64) (*registry.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[number]
	if !ok {
		return nil, registry.ErrNotFound
	}
	out := *inv
	return &out, nil
}

func (m *mockRegistry) NextInvoiceNumber(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next, nil
}

func (m *mockRegistry) InvoiceNumbersByPayee(ctx context.Context, payee string) ([]uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uint64
	for n, inv := range m.invoices {
		if inv.Payee == payee {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func newTestService(ml *mockLedger, mr *mockRegistry) *InvoicehubService {
	return &InvoicehubService{
		Config: &Config{
			MerchantAddress:     testMerchant,
			TokenAddress:        testToken,
			MaxBlockRange:       500,
			BackfillLookback:    5000,
			MaxBackfillLookback: 50000,
			TransferLookback:    5000,
			MinInvoiceAmount:    100,
			MaxInvoiceAmount:    10000,
			InvoiceDueDays:      7,
		},
		Ledger:        ml,
		Registry:      mr,
		Logger:        lib.Logger(""),
		Projection:    NewProjection(),
		InvoicePubSub: NewPubsub(),
	}
}

func mustMemoHex(id string) string {
	h, err := memo.EncodeHex(id)
	if err != nil {
		panic(err)
	}
	return h
}
