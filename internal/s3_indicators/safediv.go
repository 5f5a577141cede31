package s3_indicators

import (
	"math"

	"github.com/guregu/null/v6"
)

// Finite nulls NaN and ±Inf
func Finite(v float64) null.Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

// SafeDiv divides num by den. A null operand, a zero denominator or a
// non-finite result yields null.
func SafeDiv(num, den null.Float) null.Float {
	if !num.Valid || !den.Valid || den.Float64 == 0 {
		return null.Float{}
	}
	return Finite(num.Float64 / den.Float64)
}

func mul(a null.Float, k float64) null.Float {
	if !a.Valid {
		return null.Float{}
	}
	return Finite(a.Float64 * k)
}

func plus(a, b null.Float) null.Float {
	if !a.Valid || !b.Valid {
		return null.Float{}
	}
	return Finite(a.Float64 + b.Float64)
}

func minus(a, b null.Float) null.Float {
	if !a.Valid || !b.Valid {
		return null.Float{}
	}
	return Finite(a.Float64 - b.Float64)
}
