// Package shareid generates the public identifiers for shareable boards.
package shareid

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

// TokenLength is the number of characters in a share id. Ten base32
// characters carry 50 bits of randomness, far beyond what concurrent bill
// creation can collide on, and short enough to read off a phone screen.
const TokenLength = 10

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// New returns a fresh random share token in lowercase base32.
// Callers must still verify non-existence against the store before
// committing, retrying on the (vanishingly rare) collision.
func New() (string, error) {
	// 5 bits per base32 character, rounded up to whole bytes.
	buf := make([]byte, (TokenLength*5+7)/8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	token := strings.ToLower(encoding.EncodeToString(buf))
	return token[:TokenLength], nil
}
