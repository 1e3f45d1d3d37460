package amm

import "math/big"

// CanonicalDecimals is the precision trade sizes are searched in: the finer
// of the two venues' base-token scales, so no venue-native amount loses
// precision on the way in.
func CanonicalDecimals(a, b uint8) uint8 {
	if a > b {
		return a
	}
	return b
}

// Rescale converts an integer amount from one decimal scale to another.
// Upscaling is exact; downscaling floors, which is the conservative choice
// for trade sizes (never round a size up past what was solved for).
func Rescale(amount *big.Int, from, to uint8) *big.Int {
	out := new(big.Int).Set(amount)
	switch {
	case to > from:
		out.Mul(out, pow10(int(to-from)))
	case from > to:
		out.Quo(out, pow10(int(from-to)))
	}
	return out
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
