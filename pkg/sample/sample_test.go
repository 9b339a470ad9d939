package sample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndianRoundTrip16(t *testing.T) {
	values := []int16{0, 1, -1, 0x1234, math.MaxInt16, math.MinInt16}
	for _, e := range []Endian{Little, Big} {
		for _, v := range values {
			assert.Equal(t, v, FromHardwareEndian16(ToHardwareEndian16(v, e), e), "endian %v value %d", e, v)
		}
	}
}

func TestEndianRoundTrip32(t *testing.T) {
	values := []int32{0, 1, -1, 0x12345678, math.MaxInt32, math.MinInt32}
	for _, e := range []Endian{Little, Big} {
		for _, v := range values {
			assert.Equal(t, v, FromHardwareEndian32(ToHardwareEndian32(v, e), e), "endian %v value %d", e, v)
		}
	}
}

func TestEndianSwapsOnlyForeignOrder(t *testing.T) {
	foreign := Big
	if NativeEndian() == Big {
		foreign = Little
	}
	assert.Equal(t, int16(0x1234), ToHardwareEndian16(0x1234, NativeEndian()))
	assert.Equal(t, int16(0x3412), ToHardwareEndian16(0x1234, foreign))
	assert.Equal(t, int32(0x12345678), FromHardwareEndian32(0x12345678, NativeEndian()))
	assert.Equal(t, int32(0x78563412), FromHardwareEndian32(0x12345678, foreign))
}

// --------------------------------------------------------------------------------

func TestIntToFloat(t *testing.T) {
	assert.Equal(t, float32(0), IntToFloat[float32](int16(0)))
	assert.Equal(t, float32(1), IntToFloat[float32](int16(math.MaxInt16)))
	assert.Equal(t, 1.0, IntToFloat[float64](int32(math.MaxInt32)))
	assert.Less(t, IntToFloat[float64](int16(math.MinInt16)), -1.0)
}

func TestFloatToIntTruncatesAndSaturates(t *testing.T) {
	assert.Equal(t, int16(math.MaxInt16), FloatToInt[int16](float32(1)))
	assert.Equal(t, int16(16383), FloatToInt[int16](0.5))
	assert.Equal(t, int16(-16383), FloatToInt[int16](-0.5))
	assert.Equal(t, int16(math.MaxInt16), FloatToInt[int16](2.0))
	assert.Equal(t, int16(math.MinInt16), FloatToInt[int16](-2.0))
	assert.Equal(t, int32(math.MaxInt32), FloatToInt[int32](1.0))
	assert.Equal(t, int32(0), FloatToInt[int32](math.NaN()))
}

func TestIntToInt(t *testing.T) {
	assert.Equal(t, int32(math.MaxInt32), IntToInt[int32](int16(math.MaxInt16)))
	assert.Equal(t, int16(math.MaxInt16), IntToInt[int16](int32(math.MaxInt32)))
	assert.Equal(t, int32(math.MinInt32), IntToInt[int32](int16(math.MinInt16)), "widening the most negative value saturates")
	assert.Equal(t, int16(0), IntToInt[int16](int32(65535)))
	assert.Equal(t, int16(1), IntToInt[int16](int32(65539)))
	assert.Equal(t, int16(-7), IntToInt[int16](int16(-7)))
}

func TestFloatToFloat(t *testing.T) {
	assert.Equal(t, float32(0.25), FloatToFloat[float32](0.25))
	assert.Equal(t, 0.5, FloatToFloat[float64](float32(0.5)))
}

func withinOne(t *testing.T, want, got int64, msgAndArgs ...any) {
	t.Helper()
	diff := want - got
	if diff < 0 {
		diff = -diff
	}
	assert.LessOrEqual(t, diff, int64(1), msgAndArgs...)
}

func TestInt16RoundTrips(t *testing.T) {
	values := []int16{0, 1, -1, 1000, -1000, 12345, math.MaxInt16, math.MinInt16}
	for _, v := range values {
		viaF32 := FloatToInt[int16](IntToFloat[float32](v))
		withinOne(t, int64(v), int64(viaF32), "int16->float32->int16 %d", v)

		viaF64 := FloatToInt[int16](IntToFloat[float64](v))
		withinOne(t, int64(v), int64(viaF64), "int16->float64->int16 %d", v)

		viaI32 := IntToInt[int16](IntToInt[int32](v))
		withinOne(t, int64(v), int64(viaI32), "int16->int32->int16 %d", v)
	}
}

func TestFloat32RoundTrips(t *testing.T) {
	values := []float32{0, 0.5, -0.5, 1, -1}
	for _, v := range values {
		viaI16 := IntToFloat[float32](FloatToInt[int16](v))
		assert.InDelta(t, v, viaI16, 1.0/math.MaxInt16, "float32->int16->float32 %v", v)

		viaI32 := IntToFloat[float32](FloatToInt[int32](v))
		assert.InDelta(t, v, viaI32, 1e-6, "float32->int32->float32 %v", v)

		viaF64 := FloatToFloat[float32](FloatToFloat[float64](v))
		assert.Equal(t, v, viaF64)
	}
}

func TestConvertMatchesTypedRules(t *testing.T) {
	assert.Equal(t, float64(IntToInt[int32](int16(1234))), Convert(1234, KindInt16, KindInt32))
	assert.Equal(t, float64(FloatToInt[int16](0.25)), Convert(0.25, KindFloat64, KindInt16))
	assert.Equal(t, float64(IntToFloat[float32](int16(-200))), Convert(-200, KindInt16, KindFloat32))
	assert.Equal(t, 0.125, Convert(0.125, KindFloat32, KindFloat64))
}

// --------------------------------------------------------------------------------

func TestEncodingProperties(t *testing.T) {
	assert.Equal(t, 2, Int16MSB.Width())
	assert.Equal(t, 4, Int32LSB.Width())
	assert.Equal(t, 4, Float32MSB.Width())
	assert.Equal(t, 8, Float64LSB.Width())
	assert.Equal(t, Big, Int32MSB.Endian())
	assert.Equal(t, KindFloat64, Float64MSB.Kind())
	assert.Equal(t, "int32LSB", Int32LSB.String())
	assert.Len(t, Encodings, 8)
}

func TestParseEncoding(t *testing.T) {
	for _, e := range Encodings {
		parsed, err := ParseEncoding(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, parsed)
	}
	parsed, err := ParseEncoding("FLOAT64msb")
	require.NoError(t, err)
	assert.Equal(t, Float64MSB, parsed)

	_, err = ParseEncoding("int24LSB")
	assert.ErrorIs(t, err, errUnknownEncoding)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("f32")
	require.NoError(t, err)
	assert.Equal(t, FormatFloat32, f)

	f, err = ParseFormat("I16")
	require.NoError(t, err)
	assert.Equal(t, FormatInt16, f)

	_, err = ParseFormat("s24")
	assert.ErrorIs(t, err, errUnknownFormat)

	assert.Equal(t, FormatInt16, FormatOf[int16]())
	assert.Equal(t, FormatFloat32, FormatOf[float32]())
}
