// Package ledger holds the donation domain: fee split, ledger storage contract,
// aggregation, supporter ranking and ranking visibility.
package ledger

import (
	"errors"
	"slices"
)

// FeeRatePercent is the share of every donation retained by the platform.
const FeeRatePercent = 10

// ErrInvalidAmount is returned for amounts outside the allowed denominations.
var ErrInvalidAmount = errors.New("ledger: amount is not an allowed denomination")

var denominations = []int64{100, 500, 1000}

// Denominations returns the allowed donation amounts in ascending order.
func Denominations() []int64 {
	return slices.Clone(denominations)
}

// ValidAmount reports whether amount is an allowed denomination.
func ValidAmount(amount int64) bool {
	return slices.Contains(denominations, amount)
}

// Breakdown is the fee split of one donation.
type Breakdown struct {
	Amount        int64 `json:"amount"`
	PlatformFee   int64 `json:"platform_fee"`
	AuthorEarning int64 `json:"author_earning"`
}

// Split computes the platform fee (floored) and the author's remainder.
func Split(amount int64) (Breakdown, error) {
	if !ValidAmount(amount) {
		return Breakdown{}, ErrInvalidAmount
	}
	fee := amount * FeeRatePercent / 100
	return Breakdown{
		Amount:        amount,
		PlatformFee:   fee,
		AuthorEarning: amount - fee,
	}, nil
}
