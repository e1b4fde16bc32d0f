package split

import (
	"math"
	"math/big"
)

// FeePolicy describes the platform fee taken before distribution.
type FeePolicy struct {
	BasisPoints uint32 // 1 bp = 0.01%
}

// DefaultFeePolicy is the platform's 10% fee.
var DefaultFeePolicy = FeePolicy{BasisPoints: 1000}

// Fee returns the fee charged on sum, rounded to the nearest minor unit.
func (p FeePolicy) Fee(sum int64) int64 {
	return MulRoundDiv(sum, int64(p.BasisPoints), 10000)
}

// Rate returns the fee as a fraction, for display.
func (p FeePolicy) Rate() float64 {
	return float64(p.BasisPoints) / 10000
}

// RoundDiv returns n/d rounded to the nearest integer, with halves rounded
// toward positive infinity. d must be positive.
func RoundDiv(n, d int64) int64 {
	return MulRoundDiv(n, 1, d)
}

// MulRoundDiv returns a*b/d rounded like RoundDiv. The intermediate product
// is exact; a result outside int64 saturates. d must be positive.
func MulRoundDiv(a, b, d int64) int64 {
	// floor((2ab + d) / 2d)
	n := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	n.Lsh(n, 1)
	n.Add(n, big.NewInt(d))
	den := new(big.Int).Lsh(big.NewInt(d), 1)
	q := new(big.Int).Div(n, den) // Euclidean; den > 0 so this is floor
	return saturate(q)
}

func saturate(x *big.Int) int64 {
	switch {
	case x.IsInt64():
		return x.Int64()
	case x.Sign() > 0:
		return math.MaxInt64
	default:
		return math.MinInt64
	}
}
