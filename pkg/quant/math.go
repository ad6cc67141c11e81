package quant

import "math/bits"

// MulDiv computes a*b/den without intermediate int64 overflow, using a
// 128-bit intermediate product. Panics on den == 0 or when the final
// quotient does not fit in int64. Fixed-point scaling (price * qty / scale,
// price * fraction / scale) must go through this helper.
func MulDiv(a, b, den int64) int64 {
	if den == 0 {
		panic("QUANT_MULDIV_DIV_BY_ZERO")
	}

	neg := false
	ua, ub, ud := abs64(a, &neg), abs64(b, &neg), abs64(den, &neg)

	hi, lo := bits.Mul64(ua, ub)
	if hi >= ud {
		panic("QUANT_MULDIV_OVERFLOW")
	}
	q, _ := bits.Div64(hi, lo, ud)
	if neg {
		if q > 1<<63 {
			panic("QUANT_MULDIV_OVERFLOW")
		}
		if q == 1<<63 {
			return -1 << 63
		}
		return -int64(q)
	}
	if q > 1<<63-1 {
		panic("QUANT_MULDIV_OVERFLOW")
	}
	return int64(q)
}

// CheckedAdd performs int64 addition and panics on overflow.
func CheckedAdd(a, b int64) int64 {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		panic("QUANT_ADD_OVERFLOW")
	}
	return sum
}

// CheckedSub performs int64 subtraction and panics on overflow.
func CheckedSub(a, b int64) int64 {
	diff := a - b
	if (b > 0 && diff > a) || (b < 0 && diff < a) {
		panic("QUANT_SUB_OVERFLOW")
	}
	return diff
}

// abs64 returns |v| as uint64 and flips *neg when v is negative.
func abs64(v int64, neg *bool) uint64 {
	if v < 0 {
		*neg = !*neg
		// -MinInt64 is representable as uint64
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}
