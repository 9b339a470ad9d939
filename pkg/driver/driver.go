// Package driver defines the boundary between the stream engine and a
// double-buffered audio driver (ASIO style).
//
// A driver owns one hardware input stream and/or one hardware output stream.
// Each hardware stream exposes, for every channel, two half-buffers of raw
// driver memory. The driver alternates between the halves and, once per
// swap, calls the buffer switch callback with the index (0 or 1) of the half
// that is ready to be read (input) and filled (output).
package driver

import (
	"errors"
	"fmt"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/sample"
)

var (
	ErrInvalidHalf      = errors.New("half-buffer index must be 0 or 1")
	ErrBufferMismatch   = errors.New("hardware buffer does not match stream shape")
	ErrNoSuchDirection  = errors.New("unknown stream direction")
	ErrStreamNotCreated = errors.New("hardware stream has not been prepared")
)

type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	switch d {
	case Input:
		return "input"
	case Output:
		return "output"
	}
	return "?"
}

// Called by the driver on every half-buffer swap.
type BufferSwitchFunc func(index int)

// Driver is the collaborator the engine drives. Enumeration, capability
// probing and lifecycle are the implementation's business; the engine only
// uses the methods below.
type Driver interface {
	SampleRate() (int, error)
	CanSampleRate(rate int) bool
	SetSampleRate(rate int) error

	// Hardware-native sample encoding shared by all channels.
	DataType() (sample.Encoding, error)

	// Maximum number of channels the device advertises for a direction.
	ChannelCount(direction Direction) (int, error)

	// Create the hardware input stream. Some drivers can only create buffers
	// for both directions at once, so the current output stream (possibly nil)
	// is handed over and the returned pair replaces it.
	PrepareInputStream(existingOutput *HardwareStream, numChannels int) (StreamPair, error)
	// Create the hardware output stream, see PrepareInputStream.
	PrepareOutputStream(existingInput *HardwareStream, numChannels int) (StreamPair, error)

	// Install the function invoked on every half-buffer swap. Drivers hold
	// exactly one; a later call replaces the earlier one.
	SetBufferSwitchCallback(cb BufferSwitchFunc)

	// Start and Stop are idempotent.
	Start() error
	Stop() error

	// Release the hardware buffers created by the Prepare calls.
	Teardown() error
}

// MessagePump is implemented by drivers whose internal message loop must be
// serviced periodically by the thread that owns the engine.
type MessagePump interface {
	PumpMessages()
}

// --------------------------------------------------------------------------------

// The two halves of one channel's double buffer.
type ChannelBuffers struct {
	Halves [2][]byte
}

// HardwareStream is one live hardware input or output stream.
type HardwareStream struct {
	// Frames per half-buffer, fixed for the life of the stream.
	BufferSize int
	Encoding   sample.Encoding
	Channels   []ChannelBuffers
}

// NewHardwareStream allocates a stream backed by Go memory. Drivers that own
// their memory construct HardwareStream directly.
func NewHardwareStream(numChannels int, bufferSize int, encoding sample.Encoding) *HardwareStream {
	channels := make([]ChannelBuffers, numChannels)
	for c := range channels {
		for h := range channels[c].Halves {
			channels[c].Halves[h] = make([]byte, bufferSize*encoding.Width())
		}
	}
	return &HardwareStream{
		BufferSize: bufferSize,
		Encoding:   encoding,
		Channels:   channels,
	}
}

func (s *HardwareStream) NumChannels() int {
	return len(s.Channels)
}

// Validate checks that every half-buffer holds exactly BufferSize samples of
// the stream encoding and that at least numChannels channels exist.
func (s *HardwareStream) Validate(numChannels int) error {
	if s == nil {
		return ErrStreamNotCreated
	}
	if numChannels > len(s.Channels) {
		return fmt.Errorf("%w: %d channels requested, stream has %d", ErrBufferMismatch, numChannels, len(s.Channels))
	}
	want := s.BufferSize * s.Encoding.Width()
	for c, channel := range s.Channels {
		for h, half := range channel.Halves {
			if len(half) != want {
				return fmt.Errorf("%w: channel %d half %d holds %d bytes, want %d", ErrBufferMismatch, c, h, len(half), want)
			}
		}
	}
	return nil
}

// View returns a typed view over one channel's half-buffer.
func (s *HardwareStream) View(channel int, index int) BufferView {
	return NewBufferView(s.Channels[channel].Halves[index], s.Encoding.Width())
}

// StreamPair is the set of hardware streams a driver currently holds.
type StreamPair struct {
	Input  *HardwareStream
	Output *HardwareStream
}

// Get the stream for a direction.
func (p StreamPair) Get(direction Direction) *HardwareStream {
	if direction == Input {
		return p.Input
	}
	return p.Output
}
