package engine

import (
	"testing"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/sample"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillInt16(buf []int16, v int16) {
	for i := range buf {
		buf[i] = v
	}
}

// Float hardware samples are in host order; widened to float64.
func readFloatHalf(hw *driver.HardwareStream, channel, index int) []float64 {
	view := hw.View(channel, index)
	out := make([]float64, view.Len())
	for i := range out {
		if hw.Encoding.Kind() == sample.KindFloat32 {
			out[i] = float64(view.Float32(i))
		} else {
			out[i] = view.Float64(i)
		}
	}
	return out
}

func writeFloatHalf(hw *driver.HardwareStream, channel, index int, v float64) {
	view := hw.View(channel, index)
	for i := 0; i < view.Len(); i++ {
		if hw.Encoding.Kind() == sample.KindFloat32 {
			view.SetFloat32(i, float32(v))
		} else {
			view.SetFloat64(i, v)
		}
	}
}

// Read every sample of one hardware half in host order.
func readInt16Half(hw *driver.HardwareStream, channel, index int) []int16 {
	view := hw.View(channel, index)
	out := make([]int16, view.Len())
	for i := range out {
		out[i] = sample.FromHardwareEndian16(view.Int16(i), hw.Encoding.Endian())
	}
	return out
}

func TestPausedStreamIsNotDispatched(t *testing.T) {
	loop, drv, dev, m := newTestLoop(t, testProperties(sample.Int16LSB))

	calls := 0
	require.NoError(t, loop.SetCallback(func(StreamID, StreamData) { calls++ }))
	_, err := loop.BuildOutputStream(dev, int16Format(1))
	require.NoError(t, err)

	drv.Swap(0)
	drv.Swap(1)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BufferSwitches))
}

func TestMissingCallbackSkipsStream(t *testing.T) {
	loop, drv, dev, m := newTestLoop(t, testProperties(sample.Int16LSB))

	id, err := loop.BuildOutputStream(dev, int16Format(1))
	require.NoError(t, err)
	require.NoError(t, loop.PlayStream(id))

	drv.Swap(0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SkippedCounter(driver.Output)))
}

func TestInvalidHalfIndexIsIgnored(t *testing.T) {
	loop, drv, dev, m := newTestLoop(t, testProperties(sample.Int16LSB))

	calls := 0
	require.NoError(t, loop.SetCallback(func(StreamID, StreamData) { calls++ }))
	id, err := loop.BuildOutputStream(dev, int16Format(1))
	require.NoError(t, err)
	require.NoError(t, loop.PlayStream(id))

	drv.Swap(2)
	drv.Swap(-1)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.InvalidSwitches))
}

func TestOutputStreamsMixWithSingleSilencePerCycle(t *testing.T) {
	loop, drv, dev, m := newTestLoop(t, testProperties(sample.Int16LSB))

	values := map[StreamID]int16{1: 1000, 2: 2000}
	require.NoError(t, loop.SetCallback(func(id StreamID, data StreamData) {
		require.NotNil(t, data.Output)
		fillInt16(data.Output.Int16(), values[id])
	}))

	for rep := 0; rep < 2; rep++ {
		id, err := loop.BuildOutputStream(dev, int16Format(2))
		require.NoError(t, err)
		require.NoError(t, loop.PlayStream(id))
	}
	hw := drv.Streams().Output

	// Stale data in the half must not leak into the mix.
	hw.View(0, 0).SetInt16(3, 12345)

	drv.Swap(0)
	for c := 0; c < 2; c++ {
		for _, v := range readInt16Half(hw, c, 0) {
			assert.Equal(t, int16(3000), v)
		}
	}

	drv.Swap(1)
	drv.Swap(0)
	for _, v := range readInt16Half(hw, 1, 0) {
		assert.Equal(t, int16(3000), v)
	}
	for _, v := range readInt16Half(hw, 0, 1) {
		assert.Equal(t, int16(3000), v)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SilencedHalves))
}

func TestIntegerMixSaturates(t *testing.T) {
	loop, drv, dev, _ := newTestLoop(t, testProperties(sample.Int16MSB))

	value := int16(30000)
	require.NoError(t, loop.SetCallback(func(id StreamID, data StreamData) {
		fillInt16(data.Output.Int16(), value)
	}))
	for rep := 0; rep < 2; rep++ {
		id, err := loop.BuildOutputStream(dev, int16Format(1))
		require.NoError(t, err)
		require.NoError(t, loop.PlayStream(id))
	}
	hw := drv.Streams().Output

	drv.Swap(1)
	for _, v := range readInt16Half(hw, 0, 1) {
		assert.Equal(t, int16(32767), v)
	}

	value = -30000
	drv.Swap(0)
	for _, v := range readInt16Half(hw, 0, 0) {
		assert.Equal(t, int16(-32768), v)
	}
}

func TestFloatOutputIntoInt32Hardware(t *testing.T) {
	loop, drv, dev, _ := newTestLoop(t, testProperties(sample.Int32MSB))

	require.NoError(t, loop.SetCallback(func(id StreamID, data StreamData) {
		buf := data.Output.Float32()
		require.Len(t, buf, 2*testBufferSize)
		for i := range buf {
			if i%2 == 0 {
				buf[i] = 0.5
			} else {
				buf[i] = -2
			}
		}
	}))
	id, err := loop.BuildOutputStream(dev, float32Format(2))
	require.NoError(t, err)
	require.NoError(t, loop.PlayStream(id))

	drv.Swap(0)
	hw := drv.Streams().Output
	for i := 0; i < testBufferSize; i++ {
		left := sample.FromHardwareEndian32(hw.View(0, 0).Int32(i), sample.Big)
		right := sample.FromHardwareEndian32(hw.View(1, 0).Int32(i), sample.Big)
		assert.Equal(t, sample.FloatToInt[int32](float32(0.5)), left)
		assert.Equal(t, int32(-2147483648), right)
	}
}

func TestInputIsNormalisedAndInterleaved(t *testing.T) {
	for _, encoding := range []sample.Encoding{sample.Int16LSB, sample.Int16MSB} {
		t.Run(encoding.String(), func(t *testing.T) {
			loop, drv, dev, m := newTestLoop(t, testProperties(encoding))

			var got []int16
			require.NoError(t, loop.SetCallback(func(id StreamID, data StreamData) {
				require.NotNil(t, data.Input)
				require.Nil(t, data.Output)
				assert.Equal(t, sample.FormatInt16, data.Input.Format())
				assert.Nil(t, data.Input.Float32())
				got = append(got[:0], data.Input.Int16()...)
			}))
			id, err := loop.BuildInputStream(dev, int16Format(2))
			require.NoError(t, err)
			require.NoError(t, loop.PlayStream(id))

			hw := drv.Streams().Input
			for i := 0; i < testBufferSize; i++ {
				hw.View(0, 1).SetInt16(i, sample.ToHardwareEndian16(int16(i+1), encoding.Endian()))
				hw.View(1, 1).SetInt16(i, sample.ToHardwareEndian16(int16(-i-1), encoding.Endian()))
			}

			drv.Swap(1)
			require.Len(t, got, 2*testBufferSize)
			for i := 0; i < testBufferSize; i++ {
				assert.Equal(t, int16(i+1), got[2*i])
				assert.Equal(t, int16(-i-1), got[2*i+1])
			}
			assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchedCounter(driver.Input)))
		})
	}
}

func TestInputInt32BigEndianToFloat(t *testing.T) {
	loop, drv, dev, _ := newTestLoop(t, testProperties(sample.Int32MSB))

	var got []float32
	require.NoError(t, loop.SetCallback(func(id StreamID, data StreamData) {
		got = append(got[:0], data.Input.Float32()...)
	}))
	id, err := loop.BuildInputStream(dev, float32Format(1))
	require.NoError(t, err)
	require.NoError(t, loop.PlayStream(id))

	hw := drv.Streams().Input
	for i := 0; i < testBufferSize; i++ {
		hw.View(0, 0).SetInt32(i, sample.ToHardwareEndian32(1<<30, sample.Big))
	}

	drv.Swap(0)
	require.Len(t, got, testBufferSize)
	for _, v := range got {
		assert.InDelta(t, 0.5, v, 1e-6)
	}
}

func TestFloatHardware(t *testing.T) {
	for _, kind := range []sample.Kind{sample.KindFloat32, sample.KindFloat64} {
		encoding := sample.NewEncoding(kind, sample.NativeEndian())

		t.Run(encoding.String()+"/output mix", func(t *testing.T) {
			loop, drv, dev, _ := newTestLoop(t, testProperties(encoding))

			values := map[StreamID]float32{1: 0.25, 2: 0.125}
			require.NoError(t, loop.SetCallback(func(id StreamID, data StreamData) {
				buf := data.Output.Float32()
				for i := range buf {
					buf[i] = values[id]
				}
			}))
			for rep := 0; rep < 2; rep++ {
				id, err := loop.BuildOutputStream(dev, float32Format(2))
				require.NoError(t, err)
				require.NoError(t, loop.PlayStream(id))
			}
			hw := drv.Streams().Output
			writeFloatHalf(hw, 0, 0, 0.9)

			drv.Swap(0)
			for c := 0; c < 2; c++ {
				for _, v := range readFloatHalf(hw, c, 0) {
					assert.Equal(t, 0.375, v)
				}
			}
		})

		t.Run(encoding.String()+"/input", func(t *testing.T) {
			loop, drv, dev, _ := newTestLoop(t, testProperties(encoding))

			var got []float32
			require.NoError(t, loop.SetCallback(func(id StreamID, data StreamData) {
				got = append(got[:0], data.Input.Float32()...)
			}))
			id, err := loop.BuildInputStream(dev, float32Format(2))
			require.NoError(t, err)
			require.NoError(t, loop.PlayStream(id))

			hw := drv.Streams().Input
			writeFloatHalf(hw, 0, 1, 0.5)
			writeFloatHalf(hw, 1, 1, -0.25)

			drv.Swap(1)
			require.Len(t, got, 2*testBufferSize)
			for i := 0; i < testBufferSize; i++ {
				assert.Equal(t, float32(0.5), got[2*i])
				assert.Equal(t, float32(-0.25), got[2*i+1])
			}
		})
	}
}

func TestInputBeforeOutputOnEachSwap(t *testing.T) {
	loop, drv, dev, _ := newTestLoop(t, testProperties(sample.NewEncoding(sample.KindFloat64, sample.NativeEndian())))

	var order []StreamID
	require.NoError(t, loop.SetCallback(func(id StreamID, data StreamData) {
		order = append(order, id)
	}))
	out, err := loop.BuildOutputStream(dev, float32Format(1))
	require.NoError(t, err)
	in, err := loop.BuildInputStream(dev, float32Format(1))
	require.NoError(t, err)
	require.NoError(t, loop.PlayStream(out))
	require.NoError(t, loop.PlayStream(in))

	drv.Swap(0)
	assert.Equal(t, []StreamID{in, out}, order)
}

func TestCallbackMayPauseAndDestroyStreams(t *testing.T) {
	loop, drv, dev, _ := newTestLoop(t, testProperties(sample.Int16LSB))

	calls := map[StreamID]int{}
	require.NoError(t, loop.SetCallback(func(id StreamID, data StreamData) {
		calls[id]++
		switch id {
		case 1:
			require.NoError(t, loop.PauseStream(1))
		case 2:
			require.NoError(t, loop.DestroyStream(1))
			require.NoError(t, loop.DestroyStream(2))
		}
	}))
	for rep := 0; rep < 2; rep++ {
		id, err := loop.BuildOutputStream(dev, int16Format(1))
		require.NoError(t, err)
		require.NoError(t, loop.PlayStream(id))
	}

	drv.Swap(0)
	drv.Swap(1)
	assert.Equal(t, map[StreamID]int{1: 1, 2: 1}, calls)

	// The last stream was destroyed from inside the switch.
	require.Eventually(t, func() bool { return drv.Stats().Teardowns == 1 }, time.Second, time.Millisecond)
}

func TestBufferSwitchDoesNotAllocate(t *testing.T) {
	loop, drv, dev, _ := newTestLoop(t, testProperties(sample.Int32LSB))

	require.NoError(t, loop.SetCallback(func(id StreamID, data StreamData) {
		if data.Output != nil {
			fillInt16(data.Output.Int16(), 100)
		}
	}))
	for _, build := range []func(Device, Format) (StreamID, error){loop.BuildInputStream, loop.BuildOutputStream, loop.BuildOutputStream} {
		id, err := build(dev, int16Format(2))
		require.NoError(t, err)
		require.NoError(t, loop.PlayStream(id))
	}

	index := 0
	allocs := testing.AllocsPerRun(100, func() {
		drv.Swap(index)
		index = 1 - index
	})
	assert.Zero(t, allocs)
}
