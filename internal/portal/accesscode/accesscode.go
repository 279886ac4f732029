// Package accesscode mints and canonicalises client access codes.
//
// A code is 28 symbols of the Crockford base32 alphabet (140 random bits)
// printed in groups of four, e.g. "7K3M-Q9TX-2HVD-8RWN-C4EA-ZB6P-1GJF".
// The alphabet has no I, L, O or U so codes survive being read aloud or
// copied by hand.
package accesscode

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const (
	alphabet  = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	symbols   = 28
	groupSize = 4
)

// Length is the length of a formatted code, separators included.
const Length = symbols + symbols/groupSize - 1

// Generator produces access codes from a random source.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a Generator reading from crypto/rand.
func NewGenerator() *Generator {
	return &Generator{rand: rand.Reader}
}

// NewGeneratorWithSource returns a Generator reading from src. Intended for
// tests that need deterministic or colliding codes.
func NewGeneratorWithSource(src io.Reader) *Generator {
	return &Generator{rand: src}
}

// Generate returns a new formatted access code.
func (g *Generator) Generate() (string, error) {
	buf := make([]byte, symbols)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	raw := make([]byte, symbols)
	for i, b := range buf {
		// 256 is a multiple of 32, so masking keeps the distribution uniform.
		raw[i] = alphabet[b&31]
	}
	return group(string(raw)), nil
}

// Canonical normalises user input into the stored form: upper case,
// separators and whitespace removed, look-alike letters mapped to digits,
// then regrouped. Input that cannot be a code is returned upper-cased and
// trimmed so lookups simply miss.
func Canonical(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		switch r {
		case '-', ' ', '\t', '_':
			continue
		case 'O':
			r = '0'
		case 'I', 'L':
			r = '1'
		}
		b.WriteRune(r)
	}
	raw := b.String()
	if len(raw) != symbols || strings.IndexFunc(raw, func(r rune) bool { return !strings.ContainsRune(alphabet, r) }) >= 0 {
		return strings.TrimSpace(strings.ToUpper(code))
	}
	return group(raw)
}

func group(raw string) string {
	var b strings.Builder
	b.Grow(Length)
	for i := 0; i < len(raw); i += groupSize {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(raw[i : i+groupSize])
	}
	return b.String()
}
