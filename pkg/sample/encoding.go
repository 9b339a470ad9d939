package sample

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errUnknownEncoding = errors.New("unknown sample encoding")
	errUnknownFormat   = errors.New("unknown sample format")
)

// Byte order of a hardware encoding.
type Endian int

const (
	Little Endian = iota
	Big
)

func (e Endian) String() string {
	switch e {
	case Little:
		return "little"
	case Big:
		return "big"
	}
	return "?"
}

// Numeric representation of a hardware sample, independent of byte order.
type Kind int

const (
	KindInt16 Kind = iota
	KindInt32
	KindFloat32
	KindFloat64
)

// Width of the representation in bytes.
func (k Kind) Width() int {
	switch k {
	case KindInt16:
		return 2
	case KindInt32, KindFloat32:
		return 4
	case KindFloat64:
		return 8
	}
	return 0
}

func (k Kind) IsFloat() bool {
	return k == KindFloat32 || k == KindFloat64
}

func (k Kind) String() string {
	switch k {
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	}
	return "?"
}

// Encoding is the hardware-native sample encoding reported by a driver:
// one of four numeric kinds in one of two byte orders.
type Encoding struct {
	kind   Kind
	endian Endian
}

var (
	Int16LSB   = Encoding{KindInt16, Little}
	Int16MSB   = Encoding{KindInt16, Big}
	Int32LSB   = Encoding{KindInt32, Little}
	Int32MSB   = Encoding{KindInt32, Big}
	Float32LSB = Encoding{KindFloat32, Little}
	Float32MSB = Encoding{KindFloat32, Big}
	Float64LSB = Encoding{KindFloat64, Little}
	Float64MSB = Encoding{KindFloat64, Big}
)

// All eight supported hardware encodings.
var Encodings = []Encoding{
	Int16LSB, Int16MSB,
	Int32LSB, Int32MSB,
	Float32LSB, Float32MSB,
	Float64LSB, Float64MSB,
}

func NewEncoding(kind Kind, endian Endian) Encoding {
	return Encoding{kind: kind, endian: endian}
}

func (e Encoding) Kind() Kind     { return e.kind }
func (e Encoding) Endian() Endian { return e.endian }
func (e Encoding) Width() int     { return e.kind.Width() }

// Native reports whether the encoding is laid out in host byte order.
func (e Encoding) Native() bool {
	return e.endian == NativeEndian()
}

func (e Encoding) String() string {
	suffix := "LSB"
	if e.endian == Big {
		suffix = "MSB"
	}
	return e.kind.String() + suffix
}

// Parse an encoding name such as "int32LSB" or "float64msb".
func ParseEncoding(s string) (Encoding, error) {
	lower := strings.ToLower(s)
	for _, e := range Encodings {
		if strings.ToLower(e.String()) == lower {
			return e, nil
		}
	}
	return Encoding{}, fmt.Errorf("%w: %q", errUnknownEncoding, s)
}

// --------------------------------------------------------------------------------

// Format is the sample representation an application asks for.
type Format int

const (
	FormatInt16 Format = iota
	FormatUint16
	FormatFloat32
)

func (f Format) String() string {
	switch f {
	case FormatInt16:
		return "i16"
	case FormatUint16:
		return "u16"
	case FormatFloat32:
		return "f32"
	}
	return "?"
}

// Parse a logical format name: "i16", "u16" or "f32".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "i16", "int16":
		return FormatInt16, nil
	case "u16", "uint16":
		return FormatUint16, nil
	case "f32", "float32":
		return FormatFloat32, nil
	}
	return 0, fmt.Errorf("%w: %q", errUnknownFormat, s)
}

// Logical sample types exposed to application callbacks.
type Logical interface {
	int16 | float32
}

// FormatOf returns the Format matching the logical sample type L.
func FormatOf[L Logical]() Format {
	var zero L
	switch any(zero).(type) {
	case int16:
		return FormatInt16
	default:
		return FormatFloat32
	}
}
