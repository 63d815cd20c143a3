package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ziflex/lecho/v3"

	"github.com/memopay/invoicehub/common"
	"github.com/memopay/invoicehub/ledger"
	"github.com/memopay/invoicehub/memo"
)

var (
	selCreateInvoice     = methodID("createInvoice(bytes32,address,address,uint256,uint64)")
	selMarkPaid          = methodID("markPaid(uint256,bytes32)")
	selGetInvoice        = methodID("getInvoice(uint256)")
	selNextInvoiceNumber = methodID("nextInvoiceNumber()")
	selInvoicesOfPayee   = methodID("invoicesOfPayee(address)")

	topicInvoiceCreated = eventTopic("InvoiceCreated(uint256,bytes32)")
)

// Client issues contract calls through the ledger RPC node. The node manages
// the registry owner's key, so mutations are plain eth_sendTransaction calls
// with the owner as sender.
//
// All mutating calls are serialized through a single mutex: the owner account
// carries one nonce sequence, and two in-flight mutations from the same
// sender would race on it.
type Client struct {
	ledger              ledger.LedgerClientWrapper
	contract            string
	owner               string
	confirmationTimeout time.Duration
	logger              *lecho.Logger

	mutationMu sync.Mutex
}

func NewClient(l ledger.LedgerClientWrapper, contract, owner string, confirmationTimeout time.Duration, logger *lecho.Logger) *Client {
	return &Client{
		ledger:              l,
		contract:            ledger.NormalizeAddress(contract),
		owner:               ledger.NormalizeAddress(owner),
		confirmationTimeout: confirmationTimeout,
		logger:              logger,
	}
}

func (c *Client) CreateInvoice(ctx context.Context, inv *Invoice) (string, uint64, error) {
	memoWord, err := encodeBytes32(inv.MemoHex)
	if err != nil {
		return "", 0, err
	}
	payeeWord, err := encodeAddress(inv.Payee)
	if err != nil {
		return "", 0, err
	}
	currencyWord, err := encodeAddress(inv.Currency)
	if err != nil {
		return "", 0, err
	}
	data := pack(selCreateInvoice,
		memoWord,
		payeeWord,
		currencyWord,
		encodeBig(inv.Amount),
		encodeUint64(uint64(inv.DueDate.Unix())),
	)

	c.mutationMu.Lock()
	defer c.mutationMu.Unlock()

	txHash, err := c.ledger.SendTransaction(ctx, c.owner, c.contract, data)
	if err != nil {
		return "", 0, fmt.Errorf("create invoice: %w", err)
	}
	receipt, err := c.waitConfirmed(ctx, txHash)
	if err != nil {
		return txHash, 0, fmt.Errorf("create invoice %s: %w", txHash, err)
	}
	number, err := c.createdNumberFromReceipt(receipt)
	if err != nil {
		return txHash, 0, err
	}
	return txHash, number, nil
}

// createdNumberFromReceipt extracts the assigned invoice number from the
// registry's InvoiceCreated event.
func (c *Client) createdNumberFromReceipt(receipt *ledger.Receipt) (uint64, error) {
	for _, l := range receipt.Logs {
		if ledger.NormalizeAddress(l.Address) != c.contract {
			continue
		}
		if len(l.Topics) < 2 || strings.ToLower(l.Topics[0]) != topicInvoiceCreated {
			continue
		}
		return ledger.HexToUint64(l.Topics[1])
	}
	return 0, fmt.Errorf("transaction %s has no InvoiceCreated event", receipt.TxHash)
}

func (c *Client) MarkPaid(ctx context.Context, number uint64, payingTxHash string) (string, error) {
	txWord, err := encodeBytes32(payingTxHash)
	if err != nil {
		return "", err
	}
	data := pack(selMarkPaid, encodeUint64(number), txWord)

	c.mutationMu.Lock()
	defer c.mutationMu.Unlock()

	txHash, err := c.ledger.SendTransaction(ctx, c.owner, c.contract, data)
	if err != nil {
		return "", fmt.Errorf("mark paid invoice %d: %w", number, err)
	}
	if _, err := c.waitConfirmed(ctx, txHash); err != nil {
		return txHash, fmt.Errorf("mark paid invoice %d, tx %s: %w", number, txHash, err)
	}
	return txHash, nil
}

// waitConfirmed polls for the transaction receipt with exponential backoff.
// It fails when the receipt does not arrive within the confirmation timeout
// or when the transaction reverted.
func (c *Client) waitConfirmed(ctx context.Context, txHash string) (*ledger.Receipt, error) {
	var receipt *ledger.Receipt
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = c.confirmationTimeout
	err := backoff.Retry(func() error {
		r, err := c.ledger.TransactionReceipt(ctx, txHash)
		if err != nil {
			return backoff.Permanent(err)
		}
		if r == nil {
			return fmt.Errorf("transaction %s not yet confirmed", txHash)
		}
		if r.Status != 1 {
			return backoff.Permanent(fmt.Errorf("transaction %s reverted", txHash))
		}
		receipt = r
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Client) GetInvoice(ctx context.Context, number uint64) (*Invoice, error) {
	data := pack(selGetInvoice, encodeUint64(number))
	out, err := c.ledger.Call(ctx, c.contract, data)
	if err != nil {
		return nil, fmt.Errorf("get invoice %d: %w", number, err)
	}
	memoHex, err := decodeBytes32Hex(out, 0)
	if err != nil {
		return nil, err
	}
	payee, err := decodeAddress(out, 1)
	if err != nil {
		return nil, err
	}
	currency, err := decodeAddress(out, 2)
	if err != nil {
		return nil, err
	}
	amount, err := decodeBig(out, 3)
	if err != nil {
		return nil, err
	}
	dueDate, err := decodeUint64(out, 4)
	if err != nil {
		return nil, err
	}
	status, err := decodeUint64(out, 5)
	if err != nil {
		return nil, err
	}
	paidTxHash, err := decodeBytes32Hex(out, 6)
	if err != nil {
		return nil, err
	}

	const zeroWord = "0x0000000000000000000000000000000000000000000000000000000000000000"
	if memoHex == zeroWord {
		return nil, ErrNotFound
	}
	invoiceID, err := memo.DecodeHex(memoHex)
	if err != nil {
		return nil, err
	}
	inv := &Invoice{
		Number:    number,
		InvoiceID: invoiceID,
		MemoHex:   memo.Canonical(memoHex),
		Payee:     payee,
		Currency:  currency,
		Amount:    amount,
		DueDate:   time.Unix(int64(dueDate), 0).UTC(),
		Status:    common.InvoiceStatusOpen,
	}
	if status == 1 {
		inv.Status = common.InvoiceStatusPaid
		inv.PaidTxHash = paidTxHash
	}
	return inv, nil
}

func (c *Client) NextInvoiceNumber(ctx context.Context) (uint64, error) {
	out, err := c.ledger.Call(ctx, c.contract, pack(selNextInvoiceNumber))
	if err != nil {
		return 0, fmt.Errorf("next invoice number: %w", err)
	}
	return decodeUint64(out, 0)
}

func (c *Client) InvoiceNumbersByPayee(ctx context.Context, payee string) ([]uint64, error) {
	payeeWord, err := encodeAddress(payee)
	if err != nil {
		return nil, err
	}
	out, err := c.ledger.Call(ctx, c.contract, pack(selInvoicesOfPayee, payeeWord))
	if err != nil {
		return nil, fmt.Errorf("invoices of payee %s: %w", payee, err)
	}
	return decodeUint64Array(out)
}
