package dummydriver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareKeepsOtherDirection(t *testing.T) {
	d := New(DefaultProperties())

	pair, err := d.PrepareOutputStream(nil, 2)
	require.NoError(t, err)
	require.NotNil(t, pair.Output)
	assert.Nil(t, pair.Input)
	require.NoError(t, pair.Output.Validate(2))
	assert.Equal(t, sample.Int32LSB, pair.Output.Encoding)

	pair, err = d.PrepareInputStream(pair.Output, 1)
	require.NoError(t, err)
	assert.Same(t, d.Streams().Output, pair.Output)
	assert.Equal(t, 1, pair.Input.NumChannels())

	require.NoError(t, d.Teardown())
	assert.Equal(t, driver.StreamPair{}, d.Streams())
}

func TestPrepareErrors(t *testing.T) {
	props := DefaultProperties()
	props.InputChannels = 0
	d := New(props)

	_, err := d.PrepareInputStream(nil, 1)
	assert.ErrorIs(t, err, errNoChannels)

	_, err = d.PrepareOutputStream(nil, 3)
	assert.ErrorIs(t, err, errTooManyChannels)

	refused := errors.New("refused")
	d.FailNextPrepare(refused)
	_, err = d.PrepareOutputStream(nil, 1)
	assert.ErrorIs(t, err, refused)
	_, err = d.PrepareOutputStream(nil, 1)
	assert.NoError(t, err)
}

func TestSampleRates(t *testing.T) {
	d := New(DefaultProperties())

	assert.True(t, d.CanSampleRate(44100))
	assert.False(t, d.CanSampleRate(96000))
	assert.ErrorIs(t, d.SetSampleRate(96000), errUnsupportedRate)
	require.NoError(t, d.SetSampleRate(44100))

	rate, err := d.SampleRate()
	require.NoError(t, err)
	assert.Equal(t, 44100, rate)

	props := DefaultProperties()
	props.SupportedRates = nil
	assert.True(t, New(props).CanSampleRate(12345))
	assert.False(t, New(props).CanSampleRate(0))
}

func TestTickAlternatesHalvesWhileRunning(t *testing.T) {
	d := New(DefaultProperties())

	var got []int
	d.SetBufferSwitchCallback(func(index int) { got = append(got, index) })

	assert.False(t, d.Tick())
	require.NoError(t, d.Start())
	require.NoError(t, d.Start())
	for rep := 0; rep < 3; rep++ {
		assert.True(t, d.Tick())
	}
	require.NoError(t, d.Stop())
	assert.False(t, d.Tick())

	assert.Equal(t, []int{0, 1, 0}, got)
	assert.Equal(t, Stats{Starts: 1, Stops: 1, Swaps: 3}, d.Stats())
}

func TestRunClock(t *testing.T) {
	props := DefaultProperties()
	props.BufferSize = 48
	d := New(props)

	swaps := make(chan int, 16)
	d.SetBufferSwitchCallback(func(index int) {
		select {
		case swaps <- index:
		default:
		}
	})
	require.NoError(t, d.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.RunClock(ctx), context.DeadlineExceeded)

	require.NotEmpty(t, swaps)
	assert.Equal(t, 0, <-swaps)
}
