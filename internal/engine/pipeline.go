package engine

import (
	"fmt"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/frame"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/sample"
)

// A pipeline moves one logical stream's samples between the hardware
// half-buffers and the application callback. The conversion functions are
// picked once, when the stream is built, from the pair (hardware encoding,
// logical format); nothing on the per-swap path branches on the encoding or
// allocates.
type pipeline interface {
	// Reports whether the hardware stream still has the shape the pipeline
	// was built for.
	fits(hw *driver.HardwareStream) bool

	// Read half-buffer index, convert, interleave and hand the result to cb.
	input(hw *driver.HardwareStream, index int, id StreamID, cb Callback)

	// Let cb fill the interleaved buffer, deinterleave it and mix it into
	// half-buffer index. claim reports whether this stream is the first to
	// touch the half in the current fill cycle, in which case the half is
	// zeroed before mixing. Returns whether the half was zeroed.
	output(hw *driver.HardwareStream, index int, id StreamID, cb Callback, claim func(index int) bool) bool
}

// Reads one hardware half-buffer and appends the converted samples to dst.
type decodeFunc[L sample.Logical] func(v driver.BufferView, dst []L) []L

// Converts src and adds it to the samples already in the hardware half-buffer.
type encodeFunc[L sample.Logical] func(src []L, v driver.BufferView)

type conversionPipeline[L sample.Logical] struct {
	encoding    sample.Encoding
	frames      int
	numChannels int

	// Allocated once, never resized.
	interleaved []L
	channels    [][]L

	decode decodeFunc[L]
	encode encodeFunc[L]

	inputView  *InputBuffer
	outputView *OutputBuffer
}

func newPipeline(format sample.Format, encoding sample.Encoding, numChannels int, bufferSize int) (pipeline, error) {
	switch format {
	case sample.FormatInt16:
		return newConversionPipeline[int16](encoding, numChannels, bufferSize)
	case sample.FormatFloat32:
		return newConversionPipeline[float32](encoding, numChannels, bufferSize)
	}
	return nil, fmt.Errorf("%w: logical sample format %v", ErrFormatNotSupported, format)
}

// Reports whether the engine can convert between encoding and logical formats.
// Floating point encodings are copied without byte swapping, so they must be
// in host order.
func checkEncoding(encoding sample.Encoding) error {
	if encoding.Kind().Width() == 0 {
		return fmt.Errorf("%w: unknown hardware encoding", ErrFormatNotSupported)
	}
	if encoding.Kind().IsFloat() && !encoding.Native() {
		return fmt.Errorf("%w: hardware encoding %v is not in host byte order", ErrFormatNotSupported, encoding)
	}
	return nil
}

func newConversionPipeline[L sample.Logical](encoding sample.Encoding, numChannels int, bufferSize int) (*conversionPipeline[L], error) {
	if err := checkEncoding(encoding); err != nil {
		return nil, err
	}

	conv := convertersFor[L]()
	p := &conversionPipeline[L]{
		encoding:    encoding,
		frames:      bufferSize,
		numChannels: numChannels,
		interleaved: make([]L, bufferSize*numChannels),
		channels:    frame.NewChannels[L](numChannels, bufferSize),
	}
	p.inputView = newInputBuffer(p.interleaved)
	p.outputView = newOutputBuffer(p.interleaved)

	endian := encoding.Endian()
	switch encoding.Kind() {
	case sample.KindInt16:
		p.decode = decodeInt16(endian, conv.fromInt16)
		p.encode = encodeInt16(endian, conv.toInt16)
	case sample.KindInt32:
		p.decode = decodeInt32(endian, conv.fromInt32)
		p.encode = encodeInt32(endian, conv.toInt32)
	case sample.KindFloat32:
		p.decode = decodeFloat32(conv.fromFloat32)
		p.encode = encodeFloat32(conv.toFloat32)
	case sample.KindFloat64:
		p.decode = decodeFloat64(conv.fromFloat64)
		p.encode = encodeFloat64(conv.toFloat64)
	}
	return p, nil
}

func (p *conversionPipeline[L]) fits(hw *driver.HardwareStream) bool {
	return hw.BufferSize == p.frames &&
		hw.Encoding == p.encoding &&
		hw.NumChannels() >= p.numChannels
}

func (p *conversionPipeline[L]) input(hw *driver.HardwareStream, index int, id StreamID, cb Callback) {
	for c := range p.channels {
		p.channels[c] = p.decode(hw.View(c, index), p.channels[c][:0])
	}
	frame.Interleave(p.channels, p.interleaved)
	cb(id, StreamData{Input: p.inputView})
	frame.Clear(p.channels)
}

func (p *conversionPipeline[L]) output(hw *driver.HardwareStream, index int, id StreamID, cb Callback, claim func(index int) bool) bool {
	cb(id, StreamData{Output: p.outputView})
	frame.Deinterleave(p.interleaved, p.channels)

	silence := claim(index)
	if silence {
		// Zero every hardware channel, including ones this stream does not
		// write, so no stale half-buffer reaches the device.
		for c := 0; c < hw.NumChannels(); c++ {
			hw.View(c, index).Zero()
		}
	}
	for c, channel := range p.channels {
		p.encode(channel, hw.View(c, index))
	}
	return silence
}

// --------------------------------------------------------------------------------
// Per-sample conversions for one logical type.

type converters[L sample.Logical] struct {
	fromInt16   func(int16) L
	fromInt32   func(int32) L
	fromFloat32 func(float32) L
	fromFloat64 func(float64) L

	toInt16   func(L) int16
	toInt32   func(L) int32
	toFloat32 func(L) float32
	toFloat64 func(L) float64
}

var int16Converters = converters[int16]{
	fromInt16:   sample.IntToInt[int16, int16],
	fromInt32:   sample.IntToInt[int16, int32],
	fromFloat32: sample.FloatToInt[int16, float32],
	fromFloat64: sample.FloatToInt[int16, float64],

	toInt16:   sample.IntToInt[int16, int16],
	toInt32:   sample.IntToInt[int32, int16],
	toFloat32: sample.IntToFloat[float32, int16],
	toFloat64: sample.IntToFloat[float64, int16],
}

var float32Converters = converters[float32]{
	fromInt16:   sample.IntToFloat[float32, int16],
	fromInt32:   sample.IntToFloat[float32, int32],
	fromFloat32: sample.FloatToFloat[float32, float32],
	fromFloat64: sample.FloatToFloat[float32, float64],

	toInt16:   sample.FloatToInt[int16, float32],
	toInt32:   sample.FloatToInt[int32, float32],
	toFloat32: sample.FloatToFloat[float32, float32],
	toFloat64: sample.FloatToFloat[float64, float32],
}

func convertersFor[L sample.Logical]() converters[L] {
	var zero L
	switch any(zero).(type) {
	case int16:
		return any(int16Converters).(converters[L])
	default:
		return any(float32Converters).(converters[L])
	}
}

// --------------------------------------------------------------------------------
// Hardware readers and mixers, one per hardware kind.

func decodeInt16[L sample.Logical](endian sample.Endian, conv func(int16) L) decodeFunc[L] {
	return func(v driver.BufferView, dst []L) []L {
		for i := 0; i < v.Len(); i++ {
			dst = append(dst, conv(sample.FromHardwareEndian16(v.Int16(i), endian)))
		}
		return dst
	}
}

func decodeInt32[L sample.Logical](endian sample.Endian, conv func(int32) L) decodeFunc[L] {
	return func(v driver.BufferView, dst []L) []L {
		for i := 0; i < v.Len(); i++ {
			dst = append(dst, conv(sample.FromHardwareEndian32(v.Int32(i), endian)))
		}
		return dst
	}
}

func decodeFloat32[L sample.Logical](conv func(float32) L) decodeFunc[L] {
	return func(v driver.BufferView, dst []L) []L {
		for i := 0; i < v.Len(); i++ {
			dst = append(dst, conv(v.Float32(i)))
		}
		return dst
	}
}

func decodeFloat64[L sample.Logical](conv func(float64) L) decodeFunc[L] {
	return func(v driver.BufferView, dst []L) []L {
		for i := 0; i < v.Len(); i++ {
			dst = append(dst, conv(v.Float64(i)))
		}
		return dst
	}
}

// Integer mixing happens in host order and saturates, then the result is
// written back in hardware order.

func encodeInt16[L sample.Logical](endian sample.Endian, conv func(L) int16) encodeFunc[L] {
	return func(src []L, v driver.BufferView) {
		for i, s := range src {
			current := sample.FromHardwareEndian16(v.Int16(i), endian)
			mixed := sample.AddSaturating(current, conv(s))
			v.SetInt16(i, sample.ToHardwareEndian16(mixed, endian))
		}
	}
}

func encodeInt32[L sample.Logical](endian sample.Endian, conv func(L) int32) encodeFunc[L] {
	return func(src []L, v driver.BufferView) {
		for i, s := range src {
			current := sample.FromHardwareEndian32(v.Int32(i), endian)
			mixed := sample.AddSaturating(current, conv(s))
			v.SetInt32(i, sample.ToHardwareEndian32(mixed, endian))
		}
	}
}

func encodeFloat32[L sample.Logical](conv func(L) float32) encodeFunc[L] {
	return func(src []L, v driver.BufferView) {
		for i, s := range src {
			v.SetFloat32(i, v.Float32(i)+conv(s))
		}
	}
}

func encodeFloat64[L sample.Logical](conv func(L) float64) encodeFunc[L] {
	return func(src []L, v driver.BufferView) {
		for i, s := range src {
			v.SetFloat64(i, v.Float64(i)+conv(s))
		}
	}
}
