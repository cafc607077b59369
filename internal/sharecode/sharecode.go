// Package sharecode generates the human-readable codes attached to shares.
package sharecode

import (
	"crypto/rand"
)

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	otpAlphabet  = "0123456789"

	CodeLength = 8
	OTPLength  = 6
)

// ShareCode returns 8 symbols drawn uniformly from [A-Z0-9].
// Uniqueness is not checked.
func ShareCode() string {
	return random(codeAlphabet, CodeLength)
}

// OTP returns a 6-digit one-time code. Shares carry one but nothing
// validates it yet.
func OTP() string {
	return random(otpAlphabet, OTPLength)
}

// random draws n symbols from alphabet with rejection sampling: bytes at or
// above the largest multiple of len(alphabet) are discarded.
func random(alphabet string, n int) string {
	limit := byte(256 - 256%len(alphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}
