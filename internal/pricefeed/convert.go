package pricefeed

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const etherDecimals = 18

// USDValue converts a wei amount to its USD value at the quoted price.
// The quote's value string is parsed exactly; no float64 passes through.
func USDValue(wei *big.Int, quote *Quote) (decimal.Decimal, error) {
	if wei == nil {
		return decimal.Zero, fmt.Errorf("nil wei amount")
	}
	price, err := decimal.NewFromString(quote.Value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid price value %q: %w", quote.Value, err)
	}
	eth := decimal.NewFromBigInt(wei, -etherDecimals)
	return eth.Mul(price), nil
}

// FormatUSD renders a USD amount with two decimal places, rounding half up.
func FormatUSD(v decimal.Decimal) string {
	return "$" + v.StringFixed(2)
}
