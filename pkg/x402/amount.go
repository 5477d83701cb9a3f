package x402

import (
	"fmt"
	"math/big"
	"strings"
)

// AmountToAssetUnits converts a decimal major-unit amount into the asset's
// smallest unit, rounding half-up. The arithmetic is done in big.Rat so that
// prices like "0.002" convert exactly; float64 would drift at the margins.
func AmountToAssetUnits(amount string, decimals int) (*big.Int, error) {
	cleaned := strings.TrimSpace(amount)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty amount", ErrInvalidPrice)
	}

	rat, ok := new(big.Rat).SetString(cleaned)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrice, amount)
	}
	if rat.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidPrice, amount)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).Mul(rat, new(big.Rat).SetInt(scale))

	// round(n/d) = floor((2n + d) / 2d) for non-negative n/d
	num := new(big.Int).Lsh(scaled.Num(), 1)
	num.Add(num, scaled.Denom())
	den := new(big.Int).Lsh(scaled.Denom(), 1)
	return num.Div(num, den), nil
}
