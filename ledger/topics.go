package ledger

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Event signatures of the memo token contract.
var (
	TopicTransferMemo = eventTopic("TransferWithMemo(address,address,uint256,bytes32)")
	TopicTransfer     = eventTopic("Transfer(address,address,uint256)")
	TopicMint         = eventTopic("Mint(address,uint256)")
)

func eventTopic(signature string) string {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return "0x" + hex.EncodeToString(h.Sum(nil))
}
