package mathutil

import "math"

// IsFinite reports whether a value is neither NaN nor an infinity.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// AllFinite reports whether every value is finite.
func AllFinite(vals ...float64) bool {
	for _, v := range vals {
		if !IsFinite(v) {
			return false
		}
	}
	return true
}
