package registry

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethodIDMatchesKnownSelector(t *testing.T) {
	// well-known ERC-20 transfer selector
	assert.Equal(t, "a9059cbb", hex.EncodeToString(methodID("transfer(address,uint256)")))
}

func TestEncodeAddress(t *testing.T) {
	addr := "0x" + strings.Repeat("ab", 20)
	word, err := encodeAddress(addr)
	assert.NoError(t, err)
	assert.Equal(t, strings.Repeat("00", 12)+strings.Repeat("ab", 20), hex.EncodeToString(word[:]))

	_, err = encodeAddress("0xdeadbeef")
	assert.Error(t, err)
}

func TestEncodeBigLeftPads(t *testing.T) {
	word := encodeBig(big.NewInt(1000))
	assert.Equal(t, strings.Repeat("00", 30)+"03e8", hex.EncodeToString(word[:]))
}

func TestPackAndWordRoundTrip(t *testing.T) {
	data := pack(methodID("transfer(address,uint256)"), encodeUint64(7), encodeUint64(9))
	assert.Len(t, data, 4+2*wordSize)

	// decode helpers work on return data without the selector
	ret := data[4:]
	n, err := decodeUint64(ret, 0)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), n)
	n, err = decodeUint64(ret, 1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(9), n)

	_, err = decodeUint64(ret, 2)
	assert.Error(t, err)
}

func TestDecodeUint64Array(t *testing.T) {
	// offset 0x20, length 2, values 3 and 5
	var data []byte
	for _, w := range [][32]byte{encodeUint64(32), encodeUint64(2), encodeUint64(3), encodeUint64(5)} {
		data = append(data, w[:]...)
	}
	values, err := decodeUint64Array(data)
	assert.NoError(t, err)
	assert.Equal(t, []uint64{3, 5}, values)
}

func TestDecodeUint64ArrayEmpty(t *testing.T) {
	var data []byte
	for _, w := range [][32]byte{encodeUint64(32), encodeUint64(0)} {
		data = append(data, w[:]...)
	}
	values, err := decodeUint64Array(data)
	assert.NoError(t, err)
	assert.Empty(t, values)
}
