// Package roomcode generates the short identifiers players type to
// join a room. Codes are exactly four uppercase English letters drawn
// uniformly, so the caller must treat collisions as expected and
// retry its check-and-insert.
package roomcode

import (
	"crypto/rand"
	"fmt"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Length is the fixed code length.
const Length = 4

// RandSource interface for dependency injection of randomness.
type RandSource interface {
	IntN(n int) int
}

// Generator produces room codes with configurable randomness.
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a generator. A nil RandSource means crypto/rand.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate creates a new room code using crypto/rand.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate creates a new room code using the generator's RandSource.
func (g *Generator) Generate() string {
	buf := make([]byte, Length)
	for i := range buf {
		buf[i] = alphabet[g.index()]
	}
	return string(buf)
}

// index picks a uniform value in [0, 26). The alphabet size is not a
// power of two, so bytes from crypto/rand go through rejection
// sampling to avoid modulo bias.
func (g *Generator) index() int {
	if g.randSource != nil {
		return g.randSource.IntN(len(alphabet))
	}

	// Accept bytes below the largest multiple of 26 that fits in a byte.
	const limit = 256 - 256%len(alphabet)
	var b [1]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic("failed to read random bytes: " + err.Error())
		}
		if int(b[0]) < limit {
			return int(b[0]) % len(alphabet)
		}
	}
}

// Validate checks that a code has the generator's format: exactly four
// uppercase ASCII letters.
func Validate(code string) error {
	if len(code) != Length {
		return fmt.Errorf("room code must be exactly %d characters, got %d", Length, len(code))
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return fmt.Errorf("invalid character %c at position %d", code[i], i)
		}
	}
	return nil
}
