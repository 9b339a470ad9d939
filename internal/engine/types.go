package engine

import (
	"fmt"
	"strings"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/sample"
)

// StreamID identifies a logical stream. Ids start at one, grow by one with
// every build and are never reused.
type StreamID uint64

func (id StreamID) String() string {
	return fmt.Sprintf("stream-%d", uint64(id))
}

// Device is an audio device reachable through a driver.
type Device struct {
	Name   string
	Driver driver.Driver
}

// Format is what an application asks for when building a stream.
type Format struct {
	Channels     int
	SampleRate   int
	SampleFormat sample.Format
}

func (f Format) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d channels, %d Hz, %v", f.Channels, f.SampleRate, f.SampleFormat)
	return sb.String()
}

// --------------------------------------------------------------------------------

// Callback receives the converted buffer of one logical stream per
// half-buffer swap. It runs on the driver's real-time thread: it must not
// block or allocate, and must not build streams or close the event loop.
// Playing, pausing and destroying streams from the callback is allowed.
type Callback func(id StreamID, data StreamData)

// StreamData carries exactly one of Input or Output.
type StreamData struct {
	Input  *InputBuffer
	Output *OutputBuffer
}

// InputBuffer holds one half-buffer of captured audio, interleaved, in the
// stream's logical format. The accessor for the other format returns nil.
// The slices belong to the engine and must not be kept or modified.
type InputBuffer struct {
	format   sample.Format
	int16s   []int16
	float32s []float32
}

func (b *InputBuffer) Format() sample.Format { return b.format }
func (b *InputBuffer) Int16() []int16        { return b.int16s }
func (b *InputBuffer) Float32() []float32    { return b.float32s }

// Number of samples (frames * channels).
func (b *InputBuffer) Len() int {
	if b.format == sample.FormatInt16 {
		return len(b.int16s)
	}
	return len(b.float32s)
}

// OutputBuffer is the interleaved buffer the callback fills for one
// half-buffer of playback. Its contents persist between calls.
type OutputBuffer struct {
	format   sample.Format
	int16s   []int16
	float32s []float32
}

func (b *OutputBuffer) Format() sample.Format { return b.format }
func (b *OutputBuffer) Int16() []int16        { return b.int16s }
func (b *OutputBuffer) Float32() []float32    { return b.float32s }

func (b *OutputBuffer) Len() int {
	if b.format == sample.FormatInt16 {
		return len(b.int16s)
	}
	return len(b.float32s)
}

func newInputBuffer[L sample.Logical](buf []L) *InputBuffer {
	b := &InputBuffer{format: sample.FormatOf[L]()}
	switch typed := any(buf).(type) {
	case []int16:
		b.int16s = typed
	case []float32:
		b.float32s = typed
	}
	return b
}

func newOutputBuffer[L sample.Logical](buf []L) *OutputBuffer {
	b := &OutputBuffer{format: sample.FormatOf[L]()}
	switch typed := any(buf).(type) {
	case []int16:
		b.int16s = typed
	case []float32:
		b.float32s = typed
	}
	return b
}
