package driver

import (
	"encoding/binary"
	"math"
)

// BufferView reads and writes fixed-width samples in a slice of driver
// memory. Values are transferred in host byte order; callers apply the
// hardware byte order themselves (see the sample package).
//
// Every access is bounds checked by the underlying slice. The shape (length
// a multiple of stride, stride matching the encoding) is validated once when
// a stream is built, not per sample.
type BufferView struct {
	data   []byte
	stride int
}

func NewBufferView(data []byte, stride int) BufferView {
	return BufferView{data: data, stride: stride}
}

// Number of whole samples in the view.
func (v BufferView) Len() int {
	if v.stride == 0 {
		return 0
	}
	return len(v.data) / v.stride
}

func (v BufferView) Stride() int {
	return v.stride
}

// Zero every byte of the view.
func (v BufferView) Zero() {
	clear(v.data)
}

func (v BufferView) Int16(i int) int16 {
	return int16(binary.NativeEndian.Uint16(v.data[i*2:]))
}

func (v BufferView) SetInt16(i int, s int16) {
	binary.NativeEndian.PutUint16(v.data[i*2:], uint16(s))
}

func (v BufferView) Int32(i int) int32 {
	return int32(binary.NativeEndian.Uint32(v.data[i*4:]))
}

func (v BufferView) SetInt32(i int, s int32) {
	binary.NativeEndian.PutUint32(v.data[i*4:], uint32(s))
}

func (v BufferView) Float32(i int) float32 {
	return math.Float32frombits(binary.NativeEndian.Uint32(v.data[i*4:]))
}

func (v BufferView) SetFloat32(i int, s float32) {
	binary.NativeEndian.PutUint32(v.data[i*4:], math.Float32bits(s))
}

func (v BufferView) Float64(i int) float64 {
	return math.Float64frombits(binary.NativeEndian.Uint64(v.data[i*8:]))
}

func (v BufferView) SetFloat64(i int, s float64) {
	binary.NativeEndian.PutUint64(v.data[i*8:], math.Float64bits(s))
}
