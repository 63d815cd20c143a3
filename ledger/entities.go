package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/memopay/invoicehub/common"
)

// TransferEvent is a decoded token-transfer log. BlockNumber, TxHash and
// LogIndex together identify the event uniquely within the ledger's history.
type TransferEvent struct {
	Kind        string   `json:"kind"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Amount      *big.Int `json:"amount"`
	Memo        string   `json:"memo,omitempty"`
	BlockNumber uint64   `json:"block_number"`
	TxHash      string   `json:"tx_hash"`
	LogIndex    uint32   `json:"log_index"`
}

// ID returns the event's unique identity, used to deduplicate events merged
// from the live subscription and backfill queries.
func (e *TransferEvent) ID() string {
	return fmt.Sprintf("%s:%d", e.TxHash, e.LogIndex)
}

// Log is a raw eth_getLogs entry.
type Log struct {
	Address         string   `json:"address"`
	Topics          []string `json:"topics"`
	Data            string   `json:"data"`
	BlockNumber     string   `json:"blockNumber"`
	TransactionHash string   `json:"transactionHash"`
	LogIndex        string   `json:"logIndex"`
	Removed         bool     `json:"removed"`
}

// Receipt is a decoded transaction receipt.
type Receipt struct {
	Status      uint64
	BlockNumber uint64
	TxHash      string
	Logs        []Log
}

func HexToUint64(s string) (uint64, error) {
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimPrefix(s, "0x"), 16); !ok {
		return 0, fmt.Errorf("invalid hex quantity %q", s)
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("hex quantity %q overflows uint64", s)
	}
	return n.Uint64(), nil
}

func Uint64ToHex(u uint64) string {
	return fmt.Sprintf("0x%x", u)
}

func HexToBig(s string) (*big.Int, error) {
	n := new(big.Int)
	if _, ok := n.SetString(strings.TrimPrefix(s, "0x"), 16); !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return n, nil
}

// NormalizeAddress lowercases an address so comparisons are exact-match.
func NormalizeAddress(s string) string {
	s = strings.ToLower(s)
	if s != "" && !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}

// topicToAddress extracts the address from a 32-byte indexed log topic.
func topicToAddress(topic string) string {
	t := strings.TrimPrefix(strings.ToLower(topic), "0x")
	if len(t) < 40 {
		return ""
	}
	return "0x" + t[len(t)-40:]
}

// addressToTopic left-pads an address to the 32-byte topic form used in
// eth_getLogs filters.
func addressToTopic(addr string) string {
	a := strings.TrimPrefix(strings.ToLower(addr), "0x")
	return "0x" + strings.Repeat("0", 64-len(a)) + a
}

// DecodeTransferLog decodes a raw log into a TransferEvent. Logs whose first
// topic is not one of the known transfer signatures are rejected.
func DecodeTransferLog(l Log) (*TransferEvent, error) {
	if len(l.Topics) == 0 {
		return nil, fmt.Errorf("log %s has no topics", l.TransactionHash)
	}
	block, err := HexToUint64(l.BlockNumber)
	if err != nil {
		return nil, err
	}
	idx, err := HexToUint64(l.LogIndex)
	if err != nil {
		return nil, err
	}
	ev := &TransferEvent{
		BlockNumber: block,
		TxHash:      strings.ToLower(l.TransactionHash),
		LogIndex:    uint32(idx),
	}
	data := strings.TrimPrefix(l.Data, "0x")
	word := func(i int) (string, error) {
		if len(data) < (i+1)*64 {
			return "", fmt.Errorf("log %s data too short for word %d", l.TransactionHash, i)
		}
		return data[i*64 : (i+1)*64], nil
	}
	switch strings.ToLower(l.Topics[0]) {
	case TopicTransferMemo:
		if len(l.Topics) != 3 {
			return nil, fmt.Errorf("memo transfer log %s has %d topics, expected 3", l.TransactionHash, len(l.Topics))
		}
		ev.Kind = common.TransferKindMemo
		ev.From = topicToAddress(l.Topics[1])
		ev.To = topicToAddress(l.Topics[2])
		amountHex, err := word(0)
		if err != nil {
			return nil, err
		}
		if ev.Amount, err = HexToBig(amountHex); err != nil {
			return nil, err
		}
		memoHex, err := word(1)
		if err != nil {
			return nil, err
		}
		ev.Memo = "0x" + strings.ToLower(memoHex)
	case TopicTransfer:
		if len(l.Topics) != 3 {
			return nil, fmt.Errorf("transfer log %s has %d topics, expected 3", l.TransactionHash, len(l.Topics))
		}
		ev.Kind = common.TransferKindPlain
		ev.From = topicToAddress(l.Topics[1])
		ev.To = topicToAddress(l.Topics[2])
		amountHex, err := word(0)
		if err != nil {
			return nil, err
		}
		if ev.Amount, err = HexToBig(amountHex); err != nil {
			return nil, err
		}
	case TopicMint:
		if len(l.Topics) != 2 {
			return nil, fmt.Errorf("mint log %s has %d topics, expected 2", l.TransactionHash, len(l.Topics))
		}
		ev.Kind = common.TransferKindMint
		ev.To = topicToAddress(l.Topics[1])
		amountHex, err := word(0)
		if err != nil {
			return nil, err
		}
		if ev.Amount, err = HexToBig(amountHex); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("log %s has unknown event signature %s", l.TransactionHash, l.Topics[0])
	}
	return ev, nil
}
