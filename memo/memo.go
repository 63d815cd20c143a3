// Package memo maps human-readable invoice identifiers to the fixed-width
// binary memo field carried by token transfers. The encoded memo is the join
// key between invoice records and observed transfer events.
package memo

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Width is the size of the on-chain memo field in bytes.
const Width = 32

// Encode pads the UTF-8 bytes of id with trailing zero bytes to exactly
// Width bytes. Identifiers longer than Width bytes are rejected.
func Encode(id string) ([Width]byte, error) {
	var out [Width]byte
	if len(id) > Width {
		return out, fmt.Errorf("identifier %q is %d bytes, maximum is %d", id, len(id), Width)
	}
	copy(out[:], id)
	return out, nil
}

// Decode strips trailing zero bytes and returns the remainder as a string.
// Decode(Encode(x)) == x for every identifier within Width bytes.
func Decode(b [Width]byte) string {
	return string(bytes.TrimRight(b[:], "\x00"))
}

// EncodeHex returns the encoded memo as a 0x-prefixed lowercase hex string,
// the form used in log topics and eth_getLogs filters.
func EncodeHex(id string) (string, error) {
	b, err := Encode(id)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(b[:]), nil
}

// DecodeHex parses a 0x-prefixed hex memo field and returns the identifier.
func DecodeHex(s string) (string, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
	if err != nil {
		return "", fmt.Errorf("invalid memo hex %q: %w", s, err)
	}
	if len(b) != Width {
		return "", fmt.Errorf("memo field is %d bytes, expected %d", len(b), Width)
	}
	var fixed [Width]byte
	copy(fixed[:], b)
	return Decode(fixed), nil
}

// Canonical lowercases a hex memo field so that lookups are exact-match
// regardless of the casing a node returns.
func Canonical(s string) string {
	s = strings.ToLower(s)
	if !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return s
}
