package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/ziflex/lecho/v3"

	"github.com/memopay/invoicehub/common"
)

const defaultPollInterval = 2 * time.Second

// RPCClient talks JSON-RPC over HTTP to a ledger node. The live transfer
// subscription is implemented by polling eth_getLogs for new blocks, which
// keeps the client usable against plain HTTP endpoints.
type RPCClient struct {
	url          string
	tokenAddress string
	httpClient   *retryablehttp.Client
	logger       *lecho.Logger

	mu sync.Mutex
	id uint64
}

func NewRPCClient(url, tokenAddress string, logger *lecho.Logger) *RPCClient {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 3
	httpClient.Logger = nil
	return &RPCClient{
		url:          url,
		tokenAddress: NormalizeAddress(tokenAddress),
		httpClient:   httpClient,
		logger:       logger,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	c.mu.Lock()
	c.id++
	id := c.id
	c.mu.Unlock()

	body, err := json.Marshal(&rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ledger rpc %s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger rpc %s: unexpected status %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("ledger rpc %s: decoding response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("ledger rpc %s: %s (code %d)", method, rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("ledger rpc %s: decoding result: %w", method, err)
		}
	}
	return nil
}

func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	var raw string
	if err := c.call(ctx, "eth_blockNumber", []interface{}{}, &raw); err != nil {
		return 0, err
	}
	return HexToUint64(raw)
}

type logFilter struct {
	FromBlock string     `json:"fromBlock"`
	ToBlock   string     `json:"toBlock"`
	Address   string     `json:"address,omitempty"`
	Topics    [][]string `json:"topics,omitempty"`
}

func (c *RPCClient) FilterTransfers(ctx context.Context, q FilterQuery) ([]*TransferEvent, error) {
	kinds := q.Kinds
	if len(kinds) == 0 {
		kinds = []string{common.TransferKindMemo}
	}
	var events []*TransferEvent
	for _, kind := range kinds {
		topics, err := topicsForKind(kind, q.From, q.To)
		if err != nil {
			return nil, err
		}
		var logs []Log
		filter := logFilter{
			FromBlock: Uint64ToHex(q.FromBlock),
			ToBlock:   Uint64ToHex(q.ToBlock),
			Address:   c.tokenAddress,
			Topics:    topics,
		}
		if err := c.call(ctx, "eth_getLogs", []interface{}{filter}, &logs); err != nil {
			return nil, err
		}
		for _, l := range logs {
			if l.Removed {
				continue
			}
			ev, err := DecodeTransferLog(l)
			if err != nil {
				c.logger.Warnf("Skipping undecodable log in tx %s: %v", l.TransactionHash, err)
				continue
			}
			events = append(events, ev)
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
	return events, nil
}

func topicsForKind(kind, from, to string) ([][]string, error) {
	fromTopic := []string{}
	if from != "" {
		fromTopic = []string{addressToTopic(from)}
	}
	toTopic := []string{}
	if to != "" {
		toTopic = []string{addressToTopic(to)}
	}
	switch kind {
	case common.TransferKindMemo:
		return [][]string{{TopicTransferMemo}, fromTopic, toTopic}, nil
	case common.TransferKindPlain:
		return [][]string{{TopicTransfer}, fromTopic, toTopic}, nil
	case common.TransferKindMint:
		// Mint carries only the recipient as an indexed field.
		return [][]string{{TopicMint}, toTopic}, nil
	default:
		return nil, fmt.Errorf("unknown transfer kind %q", kind)
	}
}

type rawReceipt struct {
	Status          string `json:"status"`
	BlockNumber     string `json:"blockNumber"`
	TransactionHash string `json:"transactionHash"`
	Logs            []Log  `json:"logs"`
}

func (c *RPCClient) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var raw *rawReceipt
	if err := c.call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	status, err := HexToUint64(raw.Status)
	if err != nil {
		return nil, err
	}
	block, err := HexToUint64(raw.BlockNumber)
	if err != nil {
		return nil, err
	}
	return &Receipt{
		Status:      status,
		BlockNumber: block,
		TxHash:      strings.ToLower(raw.TransactionHash),
		Logs:        raw.Logs,
	}, nil
}

func (c *RPCClient) TransferEventsInTx(ctx context.Context, txHash string) ([]*TransferEvent, error) {
	receipt, err := c.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("transaction %s not found", txHash)
	}
	var events []*TransferEvent
	for _, l := range receipt.Logs {
		if NormalizeAddress(l.Address) != c.tokenAddress {
			continue
		}
		ev, err := DecodeTransferLog(l)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

func (c *RPCClient) Call(ctx context.Context, to string, data []byte) ([]byte, error) {
	params := []interface{}{
		map[string]string{"to": to, "data": "0x" + hex.EncodeToString(data)},
		"latest",
	}
	var raw string
	if err := c.call(ctx, "eth_call", params, &raw); err != nil {
		return nil, err
	}
	return hex.DecodeString(strings.TrimPrefix(raw, "0x"))
}

func (c *RPCClient) SendTransaction(ctx context.Context, from, to string, data []byte) (string, error) {
	params := []interface{}{
		map[string]string{"from": from, "to": to, "data": "0x" + hex.EncodeToString(data)},
	}
	var txHash string
	if err := c.call(ctx, "eth_sendTransaction", params, &txHash); err != nil {
		return "", err
	}
	return strings.ToLower(txHash), nil
}

// SubscribeTransfers polls for new blocks and delivers matching transfer
// events in ledger order. Recv returns an error when the underlying poll
// fails or the context is canceled, at which point the caller reconnects.
func (c *RPCClient) SubscribeTransfers(ctx context.Context, opts SubscribeOptions) (SubscribeTransfersWrapper, error) {
	interval := opts.PollInterval
	if interval == 0 {
		interval = defaultPollInterval
	}
	last := opts.FromBlock
	if last == 0 {
		head, err := c.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		last = head
	}
	sub := &transferSubscription{
		events: make(chan *TransferEvent, 64),
		errs:   make(chan error, 1),
	}
	go func() {
		defer close(sub.events)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				sub.errs <- ctx.Err()
				return
			case <-ticker.C:
				head, err := c.BlockNumber(ctx)
				if err != nil {
					sub.errs <- err
					return
				}
				if head <= last {
					continue
				}
				q := opts.Query
				q.FromBlock = last + 1
				q.ToBlock = head
				events, err := c.FilterTransfers(ctx, q)
				if err != nil {
					sub.errs <- err
					return
				}
				for _, ev := range events {
					select {
					case sub.events <- ev:
					case <-ctx.Done():
						sub.errs <- ctx.Err()
						return
					}
				}
				last = head
			}
		}
	}()
	return sub, nil
}

type transferSubscription struct {
	events chan *TransferEvent
	errs   chan error
}

// Recv drains buffered events before surfacing a pending error, so events
// decoded just before a poll failure are not lost.
func (s *transferSubscription) Recv() (*TransferEvent, error) {
	select {
	case ev, ok := <-s.events:
		return s.recvEvent(ev, ok)
	default:
	}
	select {
	case ev, ok := <-s.events:
		return s.recvEvent(ev, ok)
	case err := <-s.errs:
		return nil, err
	}
}

func (s *transferSubscription) recvEvent(ev *TransferEvent, ok bool) (*TransferEvent, error) {
	if !ok {
		select {
		case err := <-s.errs:
			return nil, err
		default:
			return nil, fmt.Errorf("transfer subscription closed")
		}
	}
	return ev, nil
}
