package core

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// MicrocreditsPerCredit is the number of microcredits in one credit.
const MicrocreditsPerCredit = 1_000_000

const creditPrecision int32 = 6 // microcredit resolution

var microcreditsPerCreditDecimal = decimal.NewFromInt(MicrocreditsPerCredit)

// MicrocreditsToCredits converts an integer microcredit amount into credits.
func MicrocreditsToCredits(microcredits uint64) decimal.Decimal {
	// Use decimal arithmetic for precise calculation
	return decimal.NewFromBigInt(new(big.Int).SetUint64(microcredits), 0).Div(microcreditsPerCreditDecimal)
}

// CreditsToMicrocredits converts a credit amount into microcredits. Amounts that are negative
// or finer than one microcredit are rejected rather than rounded.
func CreditsToMicrocredits(credits decimal.Decimal) (uint64, error) {
	if credits.IsNegative() {
		return 0, fmt.Errorf("negative credit amount %s", credits)
	}
	micro := credits.Mul(microcreditsPerCreditDecimal)
	if !micro.Equal(micro.Truncate(0)) {
		return 0, fmt.Errorf("credit amount %s is finer than one microcredit", credits)
	}
	if !micro.BigInt().IsUint64() {
		return 0, fmt.Errorf("credit amount %s overflows", credits)
	}
	return micro.BigInt().Uint64(), nil
}

// ParseCredits parses a human-entered credit amount such as "0.137".
func ParseCredits(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid credit amount %q: %w", s, err)
	}
	return CreditsToMicrocredits(d)
}

// FormatCredits renders microcredits as a credit amount with trailing zeros removed,
// e.g. 2500000 -> "2.5".
func FormatCredits(microcredits uint64) string {
	return MicrocreditsToCredits(microcredits).Round(creditPrecision).String()
}
