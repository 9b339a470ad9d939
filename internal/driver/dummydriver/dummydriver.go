// Package dummydriver is an in-memory double-buffered driver.
//
// It owns Go-allocated half-buffers and only swaps them when told to, either
// explicitly with Swap or on a clock started with RunClock. Input halves hold
// whatever was written into them; output halves are never played anywhere.
//
// This driver is intended to be used in testing only!
package dummydriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/sample"
	"github.com/google/uuid"
)

var (
	errUnsupportedRate  = errors.New("sample rate not supported")
	errTooManyChannels  = errors.New("more channels requested than the device has")
	errNoChannels       = errors.New("device has no channels in this direction")
	errInvalidBufferLen = errors.New("buffer size must be positive")
)

// Properties describe the simulated device.
type Properties struct {
	SampleRate int
	// Rates SetSampleRate accepts. Empty accepts any positive rate.
	SupportedRates []int
	Encoding       sample.Encoding
	InputChannels  int
	OutputChannels int
	// Frames per half-buffer.
	BufferSize int
}

func DefaultProperties() Properties {
	return Properties{
		SampleRate:     48000,
		SupportedRates: []int{44100, 48000},
		Encoding:       sample.Int32LSB,
		InputChannels:  2,
		OutputChannels: 2,
		BufferSize:     256,
	}
}

// Counts of lifecycle calls, for assertions in tests.
type Stats struct {
	Starts    int
	Stops     int
	Teardowns int
	Pumps     int
	Swaps     int
}

type Driver struct {
	logger *slog.Logger

	mu         sync.Mutex
	properties Properties
	pair       driver.StreamPair
	onSwitch   driver.BufferSwitchFunc
	running    bool
	next       int
	stats      Stats

	// Returned by the next Prepare call, then cleared.
	prepareErr error
}

func New(properties Properties) *Driver {
	return &Driver{
		logger:     slog.Default().With("dummy driver uuid", uuid.New()),
		properties: properties,
	}
}

func (d *Driver) SampleRate() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.properties.SampleRate, nil
}

func (d *Driver) CanSampleRate(rate int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.canSampleRate(rate)
}

func (d *Driver) canSampleRate(rate int) bool {
	if rate <= 0 {
		return false
	}
	return len(d.properties.SupportedRates) == 0 || slices.Contains(d.properties.SupportedRates, rate)
}

func (d *Driver) SetSampleRate(rate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.canSampleRate(rate) {
		return fmt.Errorf("%w: %d Hz", errUnsupportedRate, rate)
	}
	d.properties.SampleRate = rate
	return nil
}

func (d *Driver) DataType() (sample.Encoding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.properties.Encoding, nil
}

func (d *Driver) ChannelCount(direction driver.Direction) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch direction {
	case driver.Input:
		return d.properties.InputChannels, nil
	case driver.Output:
		return d.properties.OutputChannels, nil
	}
	return 0, driver.ErrNoSuchDirection
}

func (d *Driver) PrepareInputStream(existingOutput *driver.HardwareStream, numChannels int) (driver.StreamPair, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stream, err := d.newStream(d.properties.InputChannels, numChannels)
	if err != nil {
		return driver.StreamPair{}, err
	}
	d.pair = driver.StreamPair{Input: stream, Output: existingOutput}
	d.logger.Debug("prepared input stream", "channels", numChannels)
	return d.pair, nil
}

func (d *Driver) PrepareOutputStream(existingInput *driver.HardwareStream, numChannels int) (driver.StreamPair, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	stream, err := d.newStream(d.properties.OutputChannels, numChannels)
	if err != nil {
		return driver.StreamPair{}, err
	}
	d.pair = driver.StreamPair{Input: existingInput, Output: stream}
	d.logger.Debug("prepared output stream", "channels", numChannels)
	return d.pair, nil
}

// Caller holds d.mu.
func (d *Driver) newStream(available int, numChannels int) (*driver.HardwareStream, error) {
	if err := d.prepareErr; err != nil {
		d.prepareErr = nil
		return nil, err
	}
	switch {
	case available <= 0:
		return nil, errNoChannels
	case numChannels > available:
		return nil, fmt.Errorf("%w: %d > %d", errTooManyChannels, numChannels, available)
	case d.properties.BufferSize <= 0:
		return nil, errInvalidBufferLen
	}
	return driver.NewHardwareStream(numChannels, d.properties.BufferSize, d.properties.Encoding), nil
}

func (d *Driver) SetBufferSwitchCallback(cb driver.BufferSwitchFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSwitch = cb
}

func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		d.running = true
		d.stats.Starts++
	}
	return nil
}

func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		d.running = false
		d.stats.Stops++
	}
	return nil
}

func (d *Driver) Teardown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pair = driver.StreamPair{}
	d.next = 0
	d.stats.Teardowns++
	return nil
}

func (d *Driver) PumpMessages() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Pumps++
}

// --------------------------------------------------------------------------------
// Test controls

// FailNextPrepare makes the next Prepare call fail with err.
func (d *Driver) FailNextPrepare(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.prepareErr = err
}

// Swap signals that half-buffer index is ready, whether or not the driver is
// running. The buffer switch callback runs on the calling goroutine.
func (d *Driver) Swap(index int) {
	d.mu.Lock()
	cb := d.onSwitch
	d.stats.Swaps++
	d.mu.Unlock()

	if cb != nil {
		cb(index)
	}
}

// Tick swaps to the next half-buffer if the driver is running, and reports
// whether it did.
func (d *Driver) Tick() bool {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return false
	}
	index := d.next
	d.next = 1 - d.next
	d.mu.Unlock()

	d.Swap(index)
	return true
}

// RunClock ticks once per half-buffer period until ctx is done.
func (d *Driver) RunClock(ctx context.Context) error {
	d.mu.Lock()
	period := time.Second * time.Duration(d.properties.BufferSize) / time.Duration(max(d.properties.SampleRate, 1))
	d.mu.Unlock()
	if period <= 0 {
		period = time.Millisecond
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.Tick()
		}
	}
}

func (d *Driver) Streams() driver.StreamPair {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pair
}

func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Driver) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
