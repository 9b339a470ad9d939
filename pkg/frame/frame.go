// Package frame moves samples between one interleaved buffer (frame-major,
// channel-minor: L,R,L,R,...) and a set of per-channel buffers.
//
// Neither direction allocates as long as the destination buffers were sized
// beforehand, so both may run inside a driver callback.
package frame

import "fmt"

// Interleave writes out[i*N+c] = channels[c][i] for every frame i and channel c.
//
// All channel buffers must have the same length and out must hold at least
// len(channels[0])*N samples. Violating either is a programming error and panics.
func Interleave[T any](channels [][]T, out []T) {
	numChannels := len(channels)
	if numChannels == 0 {
		return
	}
	frames := len(channels[0])
	for c := 1; c < numChannels; c++ {
		if len(channels[c]) != frames {
			panic(fmt.Sprintf("frame: channel %d holds %d samples, channel 0 holds %d", c, len(channels[c]), frames))
		}
	}
	if len(out) < frames*numChannels {
		panic(fmt.Sprintf("frame: interleaved buffer holds %d samples, need %d", len(out), frames*numChannels))
	}

	for c, channel := range channels {
		for i, s := range channel {
			out[i*numChannels+c] = s
		}
	}
}

// Deinterleave splits interleaved into the channel buffers. Each channel is
// truncated and refilled with len(interleaved)/N samples; a trailing partial
// frame is ignored. The refilled buffers are returned in place.
func Deinterleave[T any](interleaved []T, channels [][]T) [][]T {
	numChannels := len(channels)
	if numChannels == 0 {
		return channels
	}
	frames := len(interleaved) / numChannels

	for c := range channels {
		channel := channels[c][:0]
		for i := 0; i < frames; i++ {
			channel = append(channel, interleaved[i*numChannels+c])
		}
		channels[c] = channel
	}
	return channels
}

// Clear truncates every channel buffer to zero length, keeping its capacity.
func Clear[T any](channels [][]T) {
	for c := range channels {
		channels[c] = channels[c][:0]
	}
}

// NewChannels allocates numChannels empty buffers, each with room for frames samples.
func NewChannels[T any](numChannels int, frames int) [][]T {
	channels := make([][]T, numChannels)
	for c := range channels {
		channels[c] = make([]T, 0, frames)
	}
	return channels
}
