// Package registry is the client for the on-chain invoice registry contract,
// the authoritative store of invoice records. Calls are ABI-encoded by hand;
// the contract surface is small enough that a full ABI library would be
// overkill.
package registry

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

const wordSize = 32

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

// methodID returns the 4-byte selector for a function signature.
func methodID(signature string) []byte {
	return keccak256([]byte(signature))[:4]
}

func eventTopic(signature string) string {
	return "0x" + hex.EncodeToString(keccak256([]byte(signature)))
}

func encodeUint64(v uint64) [wordSize]byte {
	return encodeBig(new(big.Int).SetUint64(v))
}

func encodeBig(v *big.Int) [wordSize]byte {
	var word [wordSize]byte
	b := v.Bytes()
	copy(word[wordSize-len(b):], b)
	return word
}

func encodeAddress(addr string) ([wordSize]byte, error) {
	var word [wordSize]byte
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(addr), "0x"))
	if err != nil {
		return word, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if len(b) != 20 {
		return word, fmt.Errorf("address %q is %d bytes, expected 20", addr, len(b))
	}
	copy(word[wordSize-20:], b)
	return word, nil
}

func encodeBytes32(hexstr string) ([wordSize]byte, error) {
	var word [wordSize]byte
	b, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(hexstr), "0x"))
	if err != nil {
		return word, fmt.Errorf("invalid bytes32 %q: %w", hexstr, err)
	}
	if len(b) != wordSize {
		return word, fmt.Errorf("bytes32 %q is %d bytes, expected %d", hexstr, len(b), wordSize)
	}
	copy(word[:], b)
	return word, nil
}

func pack(selector []byte, words ...[wordSize]byte) []byte {
	out := make([]byte, 0, len(selector)+len(words)*wordSize)
	out = append(out, selector...)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

func wordAt(data []byte, i int) ([]byte, error) {
	if len(data) < (i+1)*wordSize {
		return nil, fmt.Errorf("return data too short: want word %d, have %d bytes", i, len(data))
	}
	return data[i*wordSize : (i+1)*wordSize], nil
}

func decodeUint64(data []byte, i int) (uint64, error) {
	w, err := wordAt(data, i)
	if err != nil {
		return 0, err
	}
	n := new(big.Int).SetBytes(w)
	if !n.IsUint64() {
		return 0, fmt.Errorf("word %d overflows uint64", i)
	}
	return n.Uint64(), nil
}

func decodeBig(data []byte, i int) (*big.Int, error) {
	w, err := wordAt(data, i)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

func decodeAddress(data []byte, i int) (string, error) {
	w, err := wordAt(data, i)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(w[wordSize-20:]), nil
}

func decodeBytes32Hex(data []byte, i int) (string, error) {
	w, err := wordAt(data, i)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(w), nil
}

// decodeUint64Array decodes a dynamic uint256[] return value.
func decodeUint64Array(data []byte) ([]uint64, error) {
	offset, err := decodeUint64(data, 0)
	if err != nil {
		return nil, err
	}
	if offset%wordSize != 0 || int(offset) >= len(data) {
		return nil, fmt.Errorf("invalid array offset %d", offset)
	}
	tail := data[offset:]
	length, err := decodeUint64(tail, 0)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, length)
	for i := 0; i < int(length); i++ {
		v, err := decodeUint64(tail, i+1)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
