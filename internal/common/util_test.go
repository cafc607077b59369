package common

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRandByteArray(t *testing.T) {
	for _, n := range []int{0, 12, 32} {
		assert.Len(t, GenerateRandByteArray(n), n)
	}

	// two 32 byte draws colliding means the source is broken
	a, b := GenerateRandByteArray(32), GenerateRandByteArray(32)
	assert.False(t, bytes.Equal(a, b))
}

func TestWipeByteArray(t *testing.T) {
	passcode := []byte("123456")
	WipeByteArray(passcode)
	assert.Equal(t, make([]byte, 6), passcode)

	assert.NotPanics(t, func() { WipeByteArray(nil) })
}
