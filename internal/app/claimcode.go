package app

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

// NewClaimCode returns a fresh random claim code: 20 bytes of entropy encoded
// as 32 lowercase base32 characters. The code is the only credential needed to
// redeem a payment, so it must be unguessable.
func NewClaimCode() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate claim code: %w", err)
	}
	code := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
	return strings.ToLower(code), nil
}
