package security

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"
)

// NumericCode returns a random numeric string of the given length,
// zero-padded, suitable for OTPs and email verification codes.
func NumericCode(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// OpaqueToken returns a random hex token for the legacy single-token
// refresh model.
func OpaqueToken(bytes int) (string, error) {
	buf := make([]byte, bytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
