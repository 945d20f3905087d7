package room

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// codeAlphabet is the character set for room codes, matching what the
// original party links used.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Source produces random ints for code generation. It exists so tests
// can substitute a deterministic sequence.
type Source interface {
	// Intn returns a random int in [0, n).
	Intn(n int) int
}

// cryptoSource implements Source using crypto/rand.
//
// Invariant: All values produced are uniformly distributed in [0, n)
// for any n > 0.
type cryptoSource struct{}

// NewCryptoSource returns a Source backed by crypto/rand.
//
// Postcondition: Every value returned by Intn is in [0, n).
func NewCryptoSource() Source {
	return &cryptoSource{}
}

// Intn returns a cryptographically secure random int in [0, n).
//
// Precondition: n > 0. Panics with "room: Intn called with n <= 0" if n <= 0.
// Panics with "room: crypto/rand failure: <err>" if crypto/rand fails.
func (c *cryptoSource) Intn(n int) int {
	if n <= 0 {
		panic("room: Intn called with n <= 0")
	}
	val, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic("room: crypto/rand failure: " + err.Error())
	}
	return int(val.Int64())
}

// newCode generates a random room code of the given length.
//
// Precondition: src must be non-nil; length must be > 0.
// Postcondition: Returns a string of exactly length characters drawn
// from codeAlphabet. Uniqueness is the store's concern, not this
// function's.
func newCode(src Source, length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(codeAlphabet[src.Intn(len(codeAlphabet))])
	}
	return b.String()
}
