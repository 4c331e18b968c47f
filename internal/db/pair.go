package db

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Pair is an unordered pair of user ids in canonical order.
type Pair struct {
	Lo  string
	Hi  string
	Key string
}

// NewPair sorts the two ids and derives the pair key (hex BLAKE2b-256 of "lo:hi").
// NewPair(a, b) and NewPair(b, a) are identical.
func NewPair(a, b string) Pair {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	sum := blake2b.Sum256([]byte(lo + ":" + hi))
	return Pair{Lo: lo, Hi: hi, Key: hex.EncodeToString(sum[:])}
}

// Has reports whether id is one side of the pair.
func (p Pair) Has(id string) bool {
	return id == p.Lo || id == p.Hi
}

// IsLo reports whether id is the lower side.
func (p Pair) IsLo(id string) bool {
	return id == p.Lo
}
