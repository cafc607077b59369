package sharecode

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	codeRe = regexp.MustCompile(`^[A-Z0-9]{8}$`)
	otpRe  = regexp.MustCompile(`^[0-9]{6}$`)
)

func TestShareCode_Format(t *testing.T) {
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		c := ShareCode()
		require.Regexp(t, codeRe, c)
		seen[c] = struct{}{}
	}
	// 36^8 space; a handful of collisions in 1000 draws would mean a broken source
	assert.Greater(t, len(seen), 990)
}

func TestShareCode_UsesWholeAlphabet(t *testing.T) {
	hits := make(map[rune]int)
	for i := 0; i < 2000; i++ {
		for _, r := range ShareCode() {
			hits[r]++
		}
	}
	assert.Len(t, hits, len(codeAlphabet))
}

func TestOTP_Format(t *testing.T) {
	for i := 0; i < 200; i++ {
		assert.Regexp(t, otpRe, OTP())
	}
}

func TestRandom_Limit(t *testing.T) {
	// 36 divides 252, 10 divides 250
	assert.Equal(t, byte(252), byte(256-256%len(codeAlphabet)))
	assert.Equal(t, byte(250), byte(256-256%len(otpAlphabet)))
}
