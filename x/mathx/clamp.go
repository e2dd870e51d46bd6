package mathx

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. If lo > hi, the bounds are swapped.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if hi < lo {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ScaleRound returns round(v*num/den) for signed integers, rounding half away
// from zero. den must be positive.
func ScaleRound[T constraints.Signed](v, num, den T) T {
	p := v * num
	if p < 0 {
		return (p - den/2) / den
	}
	return (p + den/2) / den
}
