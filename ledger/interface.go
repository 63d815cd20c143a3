package ledger

import (
	"context"
	"time"
)

// FilterQuery selects transfer events by block window, kind and addresses.
// Empty Kinds means memo transfers only, the kind the reconciliation engine
// cares about. From/To are optional indexed-address filters.
type FilterQuery struct {
	FromBlock uint64
	ToBlock   uint64
	Kinds     []string
	From      string
	To        string
}

// SubscribeOptions configures a live transfer subscription.
type SubscribeOptions struct {
	// FromBlock is the first block the subscription reports events for.
	// Zero means the current chain head.
	FromBlock    uint64
	Query        FilterQuery
	PollInterval time.Duration
}

type LedgerClientWrapper interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterTransfers(ctx context.Context, q FilterQuery) ([]*TransferEvent, error)
	TransferEventsInTx(ctx context.Context, txHash string) ([]*TransferEvent, error)
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)
	SubscribeTransfers(ctx context.Context, opts SubscribeOptions) (SubscribeTransfersWrapper, error)
	Call(ctx context.Context, to string, data []byte) ([]byte, error)
	SendTransaction(ctx context.Context, from, to string, data []byte) (string, error)
}

type SubscribeTransfersWrapper interface {
	Recv() (*TransferEvent, error)
}
