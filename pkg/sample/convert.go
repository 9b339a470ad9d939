package sample

import (
	"math"
	"unsafe"
)

// Int and Float are the numeric types a hardware or logical sample may take.
type Int interface {
	int16 | int32
}

type Float interface {
	float32 | float64
}

// Largest positive value of I.
func maxOf[I Int]() int64 {
	var zero I
	return int64(1)<<(8*unsafe.Sizeof(zero)-1) - 1
}

// Smallest value of I.
func minOf[I Int]() int64 {
	return -maxOf[I]() - 1
}

func saturate[I Int](v int64) I {
	if hi := maxOf[I](); v > hi {
		return I(hi)
	}
	if lo := minOf[I](); v < lo {
		return I(lo)
	}
	return I(v)
}

// FloatToFloat is an identity for equal widths and a direct cast otherwise.
func FloatToFloat[To, From Float](x From) To {
	return To(x)
}

// IntToFloat maps the integer range onto [-1, 1] by dividing by the type's
// maximum. The most negative integer lands slightly below -1.
func IntToFloat[F Float, I Int](x I) F {
	return F(float64(x) / float64(maxOf[I]()))
}

// FloatToInt scales by the integer maximum and truncates toward zero.
// Values outside [-1, 1] saturate.
func FloatToInt[I Int, F Float](x F) I {
	v := float64(x) * float64(maxOf[I]())
	if math.IsNaN(v) {
		return 0
	}
	if v >= float64(maxOf[I]()) {
		return I(maxOf[I]())
	}
	if v <= float64(minOf[I]()) {
		return I(minOf[I]())
	}
	return I(int64(v))
}

// IntToInt rescales between integer widths as x * max(To) / max(From) computed
// in int64, saturating when the result does not fit To.
func IntToInt[To, From Int](x From) To {
	return saturate[To](int64(x) * maxOf[To]() / maxOf[From]())
}

// --------------------------------------------------------------------------------

// Convert maps a sample between two kinds using the same rules as the typed
// functions above. Integer values are carried in the float64 argument and
// result. It branches per call and is meant for tooling and tests rather
// than the buffer-switch path.
func Convert(x float64, from, to Kind) float64 {
	switch {
	case from.IsFloat() && to.IsFloat():
		if to == KindFloat32 {
			return float64(float32(x))
		}
		return x
	case !from.IsFloat() && to.IsFloat():
		v := x / float64(kindMax(from))
		if to == KindFloat32 {
			return float64(float32(v))
		}
		return v
	case from.IsFloat() && !to.IsFloat():
		if to == KindInt16 {
			return float64(FloatToInt[int16](x))
		}
		return float64(FloatToInt[int32](x))
	default:
		v := int64(x) * kindMax(to) / kindMax(from)
		if to == KindInt16 {
			return float64(saturate[int16](v))
		}
		return float64(saturate[int32](v))
	}
}

func kindMax(k Kind) int64 {
	switch k {
	case KindInt16:
		return math.MaxInt16
	case KindInt32:
		return math.MaxInt32
	}
	return 1
}

// AddSaturating adds two integer samples, clamping instead of wrapping.
func AddSaturating[I Int](a, b I) I {
	return saturate[I](int64(a) + int64(b))
}
