package main

import (
	"math"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/engine"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/sample"
)

const toneAmplitude = 0.25

// A sine generator for one output stream. Every channel gets the same signal.
type tone struct {
	channels int
	phase    float64
	step     float64
}

func newTone(frequency float64, f engine.Format) *tone {
	return &tone{
		channels: f.Channels,
		step:     2 * math.Pi * frequency / float64(f.SampleRate),
	}
}

func (t *tone) next() float64 {
	v := toneAmplitude * math.Sin(t.phase)
	t.phase += t.step
	if t.phase >= 2*math.Pi {
		t.phase -= 2 * math.Pi
	}
	return v
}

func (t *tone) fill(out *engine.OutputBuffer) {
	switch out.Format() {
	case sample.FormatInt16:
		buf := out.Int16()
		for i := 0; i+t.channels <= len(buf); i += t.channels {
			v := sample.FloatToInt[int16](t.next())
			for c := 0; c < t.channels; c++ {
				buf[i+c] = v
			}
		}
	case sample.FormatFloat32:
		buf := out.Float32()
		for i := 0; i+t.channels <= len(buf); i += t.channels {
			v := float32(t.next())
			for c := 0; c < t.channels; c++ {
				buf[i+c] = v
			}
		}
	}
}

// passthrough copies each captured half-buffer to the output stream on the
// same swap. Input streams are always serviced before output streams.
type passthrough struct {
	int16s   []int16
	float32s []float32
}

func newPassthrough(f engine.Format, samples int) *passthrough {
	p := &passthrough{}
	switch f.SampleFormat {
	case sample.FormatInt16:
		p.int16s = make([]int16, samples)
	case sample.FormatFloat32:
		p.float32s = make([]float32, samples)
	}
	return p
}

func (p *passthrough) capture(in *engine.InputBuffer) {
	copy(p.int16s, in.Int16())
	copy(p.float32s, in.Float32())
}

func (p *passthrough) play(out *engine.OutputBuffer) {
	copy(out.Int16(), p.int16s)
	copy(out.Float32(), p.float32s)
}

// --------------------------------------------------------------------------------

// Scales everything an output stream writes. 0.0 mutes, 1.0 leaves the signal
// as is. Integer samples clip at their range.
type volume struct {
	magnitude float32
}

func newVolume(magnitude float64) volume {
	if magnitude < 0 {
		magnitude = 0
	}
	return volume{magnitude: float32(magnitude)}
}

func (v volume) apply(out *engine.OutputBuffer) {
	if v.magnitude == 1 {
		return
	}
	buf32 := out.Float32()
	for i := range buf32 {
		buf32[i] *= v.magnitude
	}
	buf16 := out.Int16()
	for i := range buf16 {
		buf16[i] = sample.FloatToInt[int16](float32(buf16[i]) / math.MaxInt16 * v.magnitude)
	}
}
