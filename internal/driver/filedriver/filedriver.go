// Package filedriver is a double-buffered driver backed by WAV files.
//
// The input direction loops over a WAV file, the output direction is written
// to a new 16 bit WAV file. A ticker paced at one half-buffer period stands
// in for the hardware clock. The clock runs from the first Start until
// Teardown; Stop only pauses it, so there is never more than one buffer
// switch in flight.
package filedriver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/sample"
)

const (
	outputBitDepth = 16
	wavFormatPCM   = 1
)

// Samples live in the half-buffers as little endian int16, as in the file.
var encoding = sample.Int16LSB

var (
	errNoFiles          = errors.New("neither an input nor an output file was given")
	errInvalidFile      = errors.New("error while decoding audio file")
	errUnsupportedDepth = errors.New("unsupported wav bit depth")
	errUnsupportedRate  = errors.New("sample rate is fixed by the file")
	errNotPrepared      = errors.New("no hardware stream prepared")
	errTooManyChannels  = errors.New("more channels requested than the file provides")
)

type Config struct {
	// Looped as the input. Empty disables input.
	InputPath string
	// Created or truncated as the output. Empty disables output.
	OutputPath string
	// Output sample rate when there is no input file.
	SampleRate int
	// Channels of the output file.
	OutputChannels int
	// Frames per half-buffer.
	BufferSize int
}

type Driver struct {
	logger *slog.Logger
	config Config

	sampleRate    int
	inputChannels int
	// Input file, one int16 per sample, interleaved.
	inputSamples []int16
	inputPos     int

	mu        sync.Mutex
	pair      driver.StreamPair
	onSwitch  driver.BufferSwitchFunc
	encoder   *wav.Encoder
	outFile   *os.File
	outBuffer *goaudio.IntBuffer
	running   bool

	// Set while a clock goroutine exists.
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(config Config) (*Driver, error) {
	logger := slog.Default().With("file driver uuid", uuid.New())
	if config.InputPath == "" && config.OutputPath == "" {
		return nil, errNoFiles
	}
	if config.BufferSize <= 0 {
		return nil, fmt.Errorf("buffer size must be positive, got %d", config.BufferSize)
	}

	d := &Driver{
		logger:     logger,
		config:     config,
		sampleRate: config.SampleRate,
	}
	if config.InputPath != "" {
		if err := d.loadInput(config.InputPath); err != nil {
			return nil, err
		}
	}
	if d.sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", d.sampleRate)
	}
	return d, nil
}

func (d *Driver) loadInput(path string) error {
	f, err := os.Open(path)
	if err != nil {
		d.logger.Error("could not open audio file", "audioFile", path, "err", err)
		return err
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		d.logger.Error("could not decode audio file", "audioFile", path, "err", decoder.Err())
		return errInvalidFile
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		d.logger.Error("could not get full PCM buffer from audio file", "audioFile", path, "err", err)
		return fmt.Errorf("%w: %w", errInvalidFile, err)
	}

	toInt16, err := int16From(int(decoder.BitDepth))
	if err != nil {
		return err
	}
	d.inputSamples = make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		d.inputSamples[i] = toInt16(s)
	}
	d.sampleRate = int(decoder.SampleRate)
	d.inputChannels = int(decoder.NumChans)
	if d.inputChannels <= 0 || len(d.inputSamples) < d.inputChannels {
		return fmt.Errorf("%w: no samples in %s", errInvalidFile, path)
	}

	d.logger.Debug(
		"loaded audio file",
		"audioFile", path,
		"sampleRate", d.sampleRate,
		"channels", d.inputChannels,
		"bitDepth", decoder.BitDepth,
		"frames", len(d.inputSamples)/d.inputChannels,
	)
	return nil
}

// Scale a decoded PCM value of the given depth to int16.
func int16From(bitDepth int) (func(int) int16, error) {
	switch bitDepth {
	case 8:
		// 8 bit wav is unsigned.
		return func(s int) int16 { return int16((s - 128) << 8) }, nil
	case 16:
		return func(s int) int16 { return int16(s) }, nil
	case 24:
		return func(s int) int16 { return int16(s >> 8) }, nil
	case 32:
		return func(s int) int16 { return int16(s >> 16) }, nil
	}
	return nil, fmt.Errorf("%w: %d", errUnsupportedDepth, bitDepth)
}

// --------------------------------------------------------------------------------
// driver.Driver

func (d *Driver) SampleRate() (int, error) {
	return d.sampleRate, nil
}

func (d *Driver) CanSampleRate(rate int) bool {
	return rate == d.sampleRate
}

func (d *Driver) SetSampleRate(rate int) error {
	if rate != d.sampleRate {
		return fmt.Errorf("%w: file is %d Hz, %d requested", errUnsupportedRate, d.sampleRate, rate)
	}
	return nil
}

func (d *Driver) DataType() (sample.Encoding, error) {
	return encoding, nil
}

func (d *Driver) ChannelCount(direction driver.Direction) (int, error) {
	switch direction {
	case driver.Input:
		return d.inputChannels, nil
	case driver.Output:
		if d.config.OutputPath == "" {
			return 0, nil
		}
		return d.config.OutputChannels, nil
	}
	return 0, driver.ErrNoSuchDirection
}

func (d *Driver) PrepareInputStream(existingOutput *driver.HardwareStream, numChannels int) (driver.StreamPair, error) {
	if numChannels > d.inputChannels {
		return driver.StreamPair{}, fmt.Errorf("%w: %d > %d", errTooManyChannels, numChannels, d.inputChannels)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pair = driver.StreamPair{
		Input:  driver.NewHardwareStream(numChannels, d.config.BufferSize, encoding),
		Output: existingOutput,
	}
	return d.pair, nil
}

func (d *Driver) PrepareOutputStream(existingInput *driver.HardwareStream, numChannels int) (driver.StreamPair, error) {
	if d.config.OutputPath == "" || numChannels > d.config.OutputChannels {
		return driver.StreamPair{}, fmt.Errorf("%w: %d > %d", errTooManyChannels, numChannels, d.config.OutputChannels)
	}

	f, err := os.Create(d.config.OutputPath)
	if err != nil {
		d.logger.Error("could not create output file", "audioFile", d.config.OutputPath, "err", err)
		return driver.StreamPair{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeOutputLocked()
	d.outFile = f
	d.encoder = wav.NewEncoder(f, d.sampleRate, outputBitDepth, numChannels, wavFormatPCM)
	d.outBuffer = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: numChannels, SampleRate: d.sampleRate},
		Data:           make([]int, numChannels*d.config.BufferSize),
		SourceBitDepth: outputBitDepth,
	}
	d.pair = driver.StreamPair{
		Input:  existingInput,
		Output: driver.NewHardwareStream(numChannels, d.config.BufferSize, encoding),
	}
	d.logger.Debug("writing output file", "audioFile", d.config.OutputPath, "channels", numChannels)
	return d.pair, nil
}

func (d *Driver) SetBufferSwitchCallback(cb driver.BufferSwitchFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSwitch = cb
}

// Start resumes buffer switches, launching the clock on first use. Calling
// Start on a running driver does nothing.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pair.Input == nil && d.pair.Output == nil {
		return errNotPrepared
	}
	if d.running {
		return nil
	}
	d.running = true

	if d.cancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		d.cancel = cancel
		period := time.Second * time.Duration(d.config.BufferSize) / time.Duration(d.sampleRate)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.clock(ctx, period)
		}()
		d.logger.Debug("started clock", "period", period)
	}
	d.logger.Debug("started")
	return nil
}

// Stop pauses buffer switches. The clock keeps ticking and Stop does not wait
// for it, so it is safe to call from within the buffer switch.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		d.running = false
		d.logger.Debug("stopped")
	}
	return nil
}

// Teardown ends the clock, waits for it to finish and finalises the output
// file.
func (d *Driver) Teardown() error {
	d.mu.Lock()
	d.running = false
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.pair = driver.StreamPair{}
	return d.closeOutputLocked()
}

// Caller holds d.mu.
func (d *Driver) closeOutputLocked() error {
	if d.encoder == nil {
		return nil
	}
	err := d.encoder.Close()
	if closeErr := d.outFile.Close(); err == nil {
		err = closeErr
	}
	d.encoder = nil
	d.outFile = nil
	d.outBuffer = nil
	if err != nil {
		d.logger.Error("error finalising output file", "audioFile", d.config.OutputPath, "err", err)
		return err
	}
	d.logger.Debug("finalised output file", "audioFile", d.config.OutputPath)
	return nil
}

// --------------------------------------------------------------------------------
// Clock

func (d *Driver) clock(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	index := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if d.swap(index) {
				index = 1 - index
			}
		}
	}
}

// swap runs one buffer switch and reports whether it ran. Ticks while paused
// are dropped.
func (d *Driver) swap(index int) bool {
	d.mu.Lock()
	pair, cb, running := d.pair, d.onSwitch, d.running
	d.mu.Unlock()
	if !running {
		return false
	}

	if pair.Input != nil {
		d.fillInput(pair.Input, index)
	}
	if cb != nil {
		cb(index)
	}
	if pair.Output != nil {
		d.drainOutput(pair.Output, index)
	}
	return true
}

// Copy the next half-buffer of the input file, wrapping at the end.
func (d *Driver) fillInput(hw *driver.HardwareStream, index int) {
	for i := 0; i < hw.BufferSize; i++ {
		for c := 0; c < hw.NumChannels(); c++ {
			v := d.inputSamples[d.inputPos+c]
			hw.View(c, index).SetInt16(i, sample.ToHardwareEndian16(v, encoding.Endian()))
		}
		d.inputPos += d.inputChannels
		if d.inputPos+d.inputChannels > len(d.inputSamples) {
			d.inputPos = 0
		}
	}
}

// Append the output half-buffer to the file.
func (d *Driver) drainOutput(hw *driver.HardwareStream, index int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.encoder == nil || d.pair.Output != hw {
		return
	}

	channels := hw.NumChannels()
	for c := 0; c < channels; c++ {
		view := hw.View(c, index)
		for i := 0; i < hw.BufferSize; i++ {
			d.outBuffer.Data[i*channels+c] = int(sample.FromHardwareEndian16(view.Int16(i), encoding.Endian()))
		}
	}
	if err := d.encoder.Write(d.outBuffer); err != nil {
		d.logger.Error("error writing output file", "err", err)
	}
}
