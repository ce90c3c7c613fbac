package common

import (
	"crypto/rand"
	"math/big"
)

// GenerateRandByteArray returns size cryptographically random bytes.
// crypto/rand failures are unrecoverable, so it panics instead of
// returning an error.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// MakeRandDigitCode returns a string of n random decimal digits,
// suitable for one-time verification codes.
func MakeRandDigitCode(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + v.Int64())
	}
	return string(digits), nil
}

// Wipe overwrites the contents of b with zeros. Used to remove decrypted
// key material from memory after a signing operation completes.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
