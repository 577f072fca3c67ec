package challenge

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// newNonce returns a random hex nonce for a proof-of-work puzzle.
func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// solvesPuzzle reports whether sha256(nonce+solution) starts with the
// required number of zero hex digits.
func solvesPuzzle(nonce, solution string, difficulty int) bool {
	sum := sha256.Sum256([]byte(nonce + solution))
	digest := hex.EncodeToString(sum[:])
	return strings.HasPrefix(digest, strings.Repeat("0", difficulty))
}
