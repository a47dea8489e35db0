// Package types provides value types shared across the accounting packages.
package types

import "math"

// CheckedAdd returns a+b and false if the sum overflows int64.
func CheckedAdd(a, b int64) (int64, bool) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, false
	}
	return a + b, true
}

// CheckedSub returns a-b and false if the difference overflows int64.
func CheckedSub(a, b int64) (int64, bool) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, false
	}
	return a - b, true
}

// Sum adds values with overflow checking.
func Sum(values ...int64) (int64, bool) {
	var total int64
	for _, v := range values {
		var ok bool
		if total, ok = CheckedAdd(total, v); !ok {
			return 0, false
		}
	}
	return total, true
}
