package fieldcodec

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// RandSource provides random numbers for nonces and item identifiers.
// This interface enables dependency injection for deterministic testing.
type RandSource interface {
	// Int returns a uniform random value in [0, max). Panics if max <= 0.
	Int(max *big.Int) *big.Int
}

// cryptoRandSource wraps crypto/rand for production use
type cryptoRandSource struct{}

func (cryptoRandSource) Int(max *big.Int) *big.Int {
	if max.Sign() <= 0 {
		panic(fmt.Sprintf("cryptoRandSource.Int: max must be positive, got %s", max))
	}
	// rand.Int only fails if the reader fails, and rand.Reader does not
	n, _ := rand.Int(rand.Reader, max)
	return n
}

// DefaultRandSource is a cryptographically secure random source.
var DefaultRandSource RandSource = cryptoRandSource{}

// RandomField returns a random field literal such as "1234field".
func RandomField(r RandSource) string {
	if r == nil {
		r = DefaultRandSource
	}
	return FormatField(r.Int(Modulus))
}

// RandomScalar returns a random scalar literal such as "1234scalar".
func RandomScalar(r RandSource) string {
	if r == nil {
		r = DefaultRandSource
	}
	return r.Int(ScalarModulus).String() + "scalar"
}
