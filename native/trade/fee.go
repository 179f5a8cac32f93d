package trade

import "math/big"

var bpsDenominator = big.NewInt(10_000)

// computeFee returns floor(amountIn * feeBps / 10000). big.Int arithmetic
// keeps the intermediate product wide, so no operand range can overflow.
func computeFee(amountIn *big.Int, feeBps uint16) *big.Int {
	fee := new(big.Int).Mul(amountIn, big.NewInt(int64(feeBps)))
	return fee.Quo(fee, bpsDenominator)
}
