//go:build portaudio

// Package portaudiodriver drives the default PortAudio devices as a
// double-buffered driver.
//
// PortAudio hands over one buffer per callback; the driver copies it into
// alternating half-buffers and signals a buffer switch for each, which gives
// the engine the same view it would get from an ASIO style device. Samples
// are int16 in host byte order.
package portaudiodriver

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/sample"
)

var encoding = sample.NewEncoding(sample.KindInt16, sample.NativeEndian())

var (
	errNoDevices       = errors.New("no default input or output device")
	errNoDevice        = errors.New("no default device for direction")
	errStreamOpen      = errors.New("cannot prepare streams while the PortAudio stream is open")
	errTooManyChannels = errors.New("more channels requested than the device has")
)

type Driver struct {
	logger     *slog.Logger
	bufferSize int

	mu         sync.Mutex
	input      *portaudio.DeviceInfo
	output     *portaudio.DeviceInfo
	sampleRate float64
	pair       driver.StreamPair
	stream     *portaudio.Stream

	onSwitch atomic.Pointer[driver.BufferSwitchFunc]
	running  atomic.Bool
	// Only touched on the PortAudio thread.
	index int
}

// New initialises PortAudio and picks the default devices. Close releases
// PortAudio again.
func New(bufferSize int) (*Driver, error) {
	logger := slog.Default().With("portaudio driver uuid", uuid.New())
	if bufferSize <= 0 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", bufferSize)
	}
	if err := portaudio.Initialize(); err != nil {
		logger.Error("failed to initialize portaudio", "err", err)
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	input, err := portaudio.DefaultInputDevice()
	if err != nil {
		logger.Warn("no default input device", "err", err)
		input = nil
	}
	output, err := portaudio.DefaultOutputDevice()
	if err != nil {
		logger.Warn("no default output device", "err", err)
		output = nil
	}
	if input == nil && output == nil {
		portaudio.Terminate()
		return nil, errNoDevices
	}

	d := &Driver{
		logger:     logger,
		bufferSize: bufferSize,
		input:      input,
		output:     output,
	}
	if output != nil {
		d.sampleRate = output.DefaultSampleRate
	} else {
		d.sampleRate = input.DefaultSampleRate
	}
	logger.Debug("initialized portaudio", "sampleRate", d.sampleRate, "bufferSize", bufferSize)
	return d, nil
}

func (d *Driver) Close() error {
	err := d.Teardown()
	if termErr := portaudio.Terminate(); err == nil {
		err = termErr
	}
	return err
}

// --------------------------------------------------------------------------------
// driver.Driver

func (d *Driver) SampleRate() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int(d.sampleRate), nil
}

func (d *Driver) CanSampleRate(rate int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.supports(float64(rate)) == nil
}

// Caller holds d.mu.
func (d *Driver) supports(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("invalid sample rate %v", rate)
	}
	numIn, numOut := min(d.inputChannels(), 1), min(d.outputChannels(), 1)
	params := d.parameters(numIn, numOut)
	params.SampleRate = rate
	return portaudio.IsFormatSupported(params, callbackFor(numIn, numOut, func(in, out [][]int16) {}))
}

func (d *Driver) SetSampleRate(rate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream != nil {
		return errStreamOpen
	}
	if err := d.supports(float64(rate)); err != nil {
		return err
	}
	d.sampleRate = float64(rate)
	return nil
}

func (d *Driver) DataType() (sample.Encoding, error) {
	return encoding, nil
}

func (d *Driver) ChannelCount(direction driver.Direction) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch direction {
	case driver.Input:
		if d.input == nil {
			return 0, nil
		}
		return d.input.MaxInputChannels, nil
	case driver.Output:
		if d.output == nil {
			return 0, nil
		}
		return d.output.MaxOutputChannels, nil
	}
	return 0, driver.ErrNoSuchDirection
}

func (d *Driver) PrepareInputStream(existingOutput *driver.HardwareStream, numChannels int) (driver.StreamPair, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPrepare(d.input, d.inputChannels(), numChannels); err != nil {
		return driver.StreamPair{}, err
	}
	d.pair = driver.StreamPair{
		Input:  driver.NewHardwareStream(numChannels, d.bufferSize, encoding),
		Output: existingOutput,
	}
	return d.pair, nil
}

func (d *Driver) PrepareOutputStream(existingInput *driver.HardwareStream, numChannels int) (driver.StreamPair, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkPrepare(d.output, d.outputChannels(), numChannels); err != nil {
		return driver.StreamPair{}, err
	}
	d.pair = driver.StreamPair{
		Input:  existingInput,
		Output: driver.NewHardwareStream(numChannels, d.bufferSize, encoding),
	}
	return d.pair, nil
}

// Caller holds d.mu.
func (d *Driver) checkPrepare(device *portaudio.DeviceInfo, available int, numChannels int) error {
	switch {
	case d.stream != nil:
		return errStreamOpen
	case device == nil:
		return errNoDevice
	case numChannels > available:
		return fmt.Errorf("%w: %d > %d", errTooManyChannels, numChannels, available)
	}
	return nil
}

func (d *Driver) inputChannels() int {
	if d.input == nil {
		return 0
	}
	return d.input.MaxInputChannels
}

func (d *Driver) outputChannels() int {
	if d.output == nil {
		return 0
	}
	return d.output.MaxOutputChannels
}

func (d *Driver) SetBufferSwitchCallback(cb driver.BufferSwitchFunc) {
	d.onSwitch.Store(&cb)
}

// Start opens the PortAudio stream on first use. Later calls only resume the
// buffer switches.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stream == nil {
		if err := d.open(); err != nil {
			return err
		}
	}
	d.running.Store(true)
	return nil
}

// Stop pauses the buffer switches; PortAudio keeps running and plays
// silence. It does not wait for the PortAudio thread, so it may be called
// from within a buffer switch.
func (d *Driver) Stop() error {
	d.running.Store(false)
	return nil
}

// Teardown stops and closes the PortAudio stream and drops the buffers.
func (d *Driver) Teardown() error {
	d.running.Store(false)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pair = driver.StreamPair{}
	if d.stream == nil {
		return nil
	}
	stream := d.stream
	d.stream = nil

	if err := stream.Stop(); err != nil {
		d.logger.Error("error stopping portaudio stream", "err", err)
		stream.Close()
		return err
	}
	if err := stream.Close(); err != nil {
		d.logger.Error("error closing portaudio stream", "err", err)
		return err
	}
	d.logger.Debug("closed portaudio stream")
	return nil
}

// --------------------------------------------------------------------------------
// PortAudio stream

// Caller holds d.mu.
func (d *Driver) parameters(numIn, numOut int) portaudio.StreamParameters {
	params := portaudio.StreamParameters{
		SampleRate:      d.sampleRate,
		FramesPerBuffer: d.bufferSize,
	}
	if d.input != nil && numIn > 0 {
		params.Input = portaudio.StreamDeviceParameters{
			Device:   d.input,
			Channels: numIn,
			Latency:  d.input.DefaultLowInputLatency,
		}
	}
	if d.output != nil && numOut > 0 {
		params.Output = portaudio.StreamDeviceParameters{
			Device:   d.output,
			Channels: numOut,
			Latency:  d.output.DefaultLowOutputLatency,
		}
	}
	return params
}

// Caller holds d.mu.
func (d *Driver) open() error {
	pair := d.pair
	numIn, numOut := 0, 0
	if pair.Input != nil {
		numIn = pair.Input.NumChannels()
	}
	if pair.Output != nil {
		numOut = pair.Output.NumChannels()
	}
	params := d.parameters(numIn, numOut)

	callback := callbackFor(numIn, numOut, func(in, out [][]int16) { d.process(pair, in, out) })
	if callback == nil {
		return driver.ErrStreamNotCreated
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		d.logger.Error("failed to open portaudio stream", "err", err)
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		d.logger.Error("failed to start portaudio stream", "err", err)
		return fmt.Errorf("failed to start stream: %w", err)
	}
	d.stream = stream
	d.index = 0
	d.logger.Debug("opened portaudio stream", "inputChannels", numIn, "outputChannels", numOut)
	return nil
}

// The callback shape tells PortAudio which directions are in use.
func callbackFor(numIn, numOut int, fn func(in, out [][]int16)) any {
	switch {
	case numIn > 0 && numOut > 0:
		return fn
	case numIn > 0:
		return func(in [][]int16) { fn(in, nil) }
	case numOut > 0:
		return func(out [][]int16) { fn(nil, out) }
	}
	return nil
}

// Runs on the PortAudio thread.
func (d *Driver) process(pair driver.StreamPair, in, out [][]int16) {
	cb := d.onSwitch.Load()
	if !d.running.Load() || cb == nil {
		for _, channel := range out {
			clear(channel)
		}
		return
	}

	index := d.index
	d.index = 1 - index

	for c, channel := range in {
		view := pair.Input.View(c, index)
		for i := 0; i < min(len(channel), view.Len()); i++ {
			view.SetInt16(i, channel[i])
		}
	}

	(*cb)(index)

	for c, channel := range out {
		view := pair.Output.View(c, index)
		n := min(len(channel), view.Len())
		for i := 0; i < n; i++ {
			channel[i] = view.Int16(i)
		}
		clear(channel[n:])
	}
}
