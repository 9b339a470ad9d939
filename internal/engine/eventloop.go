// Package engine multiplexes any number of logical application streams onto
// the single double-buffered hardware stream pair of a driver.
//
// Streams are built against a Device, start paused, and are fed from the
// driver's buffer switch once played. Each logical stream has its own channel
// count and logical sample format (int16 or float32); conversion from and to
// the hardware encoding happens inside the buffer switch.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/internal/metrics"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/sample"
	"github.com/google/uuid"
)

const DefaultPollInterval = 200 * time.Millisecond

// EventLoop owns the logical streams, the hardware stream pair and the
// process-lifetime callback.
type EventLoop struct {
	logger       *slog.Logger
	metrics      *metrics.Metrics
	pollInterval time.Duration

	registry registry
	hw       hardware

	cbMu     sync.Mutex
	callback Callback

	// Bound once so the buffer switch does not build a method value per call.
	claim func(index int) bool
}

type Option func(*EventLoop)

func WithLogger(logger *slog.Logger) Option {
	return func(l *EventLoop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics records engine activity. Without it nothing is recorded.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *EventLoop) {
		l.metrics = m
	}
}

// WithPollInterval sets how long Run sleeps between message pump iterations.
func WithPollInterval(d time.Duration) Option {
	return func(l *EventLoop) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

func New(opts ...Option) *EventLoop {
	l := &EventLoop{
		logger:       slog.Default(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("event loop uuid", uuid.New())
	l.hw.logger = l.logger
	l.claim = l.hw.claimSilence
	return l
}

// --------------------------------------------------------------------------------
// Building streams

// BuildInputStream creates a paused logical capture stream on dev. The first
// stream of a direction creates the hardware stream for it.
func (l *EventLoop) BuildInputStream(dev Device, f Format) (StreamID, error) {
	return l.buildStream(dev, f, driver.Input)
}

// BuildOutputStream creates a paused logical playback stream on dev.
func (l *EventLoop) BuildOutputStream(dev Device, f Format) (StreamID, error) {
	return l.buildStream(dev, f, driver.Output)
}

func (l *EventLoop) buildStream(dev Device, f Format, direction driver.Direction) (StreamID, error) {
	id, err := l.build(dev, f, direction)
	if err != nil {
		l.logger.Warn(
			"failed to build stream",
			"device", dev.Name,
			"direction", direction,
			"format", f,
			"err", err,
		)
		l.metrics.BuildFailed(direction, buildFailureReason(err))
		return 0, err
	}

	l.logger.Info("built stream", "id", id, "device", dev.Name, "direction", direction, "format", f)
	l.metrics.StreamBuilt(direction)
	return id, nil
}

func (l *EventLoop) build(dev Device, f Format, direction driver.Direction) (StreamID, error) {
	drv := dev.Driver
	if drv == nil {
		return 0, fmt.Errorf("%w: device %q has no driver", ErrDeviceNotAvailable, dev.Name)
	}

	l.hw.lifecycle.Lock()
	defer l.hw.lifecycle.Unlock()
	l.hw.mu.Lock()
	defer l.hw.mu.Unlock()

	if current := l.hw.driver(); current != nil && current != drv && l.hw.hasStreams() {
		return 0, fmt.Errorf("%w: hardware streams are owned by another device", ErrDeviceNotAvailable)
	}

	previousRate, err := l.checkFormat(drv, f, direction)
	if err != nil {
		return 0, err
	}

	bufferSize, err := l.hw.ensureStream(drv, direction, f.Channels, l.bufferSwitch)
	if err != nil {
		if previousRate != 0 {
			l.restoreSampleRate(drv, previousRate)
		}
		return 0, err
	}

	hwStream := l.hw.pair.Get(direction)
	if hwStream.NumChannels() < f.Channels {
		return 0, fmt.Errorf(
			"%w: hardware %v stream has %d channels, %d requested",
			ErrFormatNotSupported, direction, hwStream.NumChannels(), f.Channels,
		)
	}

	p, err := newPipeline(f.SampleFormat, hwStream.Encoding, f.Channels, bufferSize)
	if err != nil {
		return 0, err
	}

	id := l.registry.register(&logicalStream{
		direction: direction,
		format:    f,
		pipeline:  p,
	})
	return id, nil
}

// checkFormat validates f against what drv can do. The sample rate is switched
// only after every other check has passed; the rate it was switched from is
// returned, or 0 if it was left alone.
//
// Caller holds l.hw.mu.
func (l *EventLoop) checkFormat(drv driver.Driver, f Format, direction driver.Direction) (int, error) {
	switch f.SampleFormat {
	case sample.FormatInt16, sample.FormatFloat32:
	default:
		return 0, fmt.Errorf("%w: sample format %v", ErrFormatNotSupported, f.SampleFormat)
	}

	if f.Channels <= 0 {
		return 0, fmt.Errorf("%w: %d channels", ErrFormatNotSupported, f.Channels)
	}
	maxChannels, err := drv.ChannelCount(direction)
	if err != nil {
		return 0, fmt.Errorf("%w: channel count: %w", ErrDeviceNotAvailable, err)
	}
	if f.Channels > maxChannels {
		return 0, fmt.Errorf("%w: %d channels requested, device has %d", ErrFormatNotSupported, f.Channels, maxChannels)
	}

	encoding, err := drv.DataType()
	if err != nil {
		return 0, fmt.Errorf("%w: data type: %w", ErrDeviceNotAvailable, err)
	}
	if err := checkEncoding(encoding); err != nil {
		return 0, err
	}

	rate, err := drv.SampleRate()
	if err != nil {
		return 0, fmt.Errorf("%w: sample rate: %w", ErrDeviceNotAvailable, err)
	}
	if rate == f.SampleRate {
		return 0, nil
	}
	if !drv.CanSampleRate(f.SampleRate) {
		return 0, fmt.Errorf("%w: sample rate %d Hz", ErrFormatNotSupported, f.SampleRate)
	}
	if l.hw.hasStreams() {
		return 0, fmt.Errorf(
			"%w: cannot switch from %d Hz to %d Hz while hardware streams are open",
			ErrFormatNotSupported, rate, f.SampleRate,
		)
	}
	if err := drv.SetSampleRate(f.SampleRate); err != nil {
		return 0, fmt.Errorf("%w: set sample rate: %w", ErrFormatNotSupported, err)
	}
	l.logger.Debug("switched sample rate", "from", rate, "to", f.SampleRate)
	return rate, nil
}

// Caller holds l.hw.mu and no hardware stream exists.
func (l *EventLoop) restoreSampleRate(drv driver.Driver, rate int) {
	if err := drv.SetSampleRate(rate); err != nil {
		l.logger.Warn("failed to restore sample rate", "rate", rate, "err", err)
		return
	}
	l.logger.Debug("restored sample rate", "rate", rate)
}

// --------------------------------------------------------------------------------
// Stream state

// PlayStream marks id as playing and starts the driver if it is not running.
// The stream is fed from the next buffer switch.
func (l *EventLoop) PlayStream(id StreamID) error {
	if err := l.registry.setPlaying(id, true); err != nil {
		return fmt.Errorf("play stream: %w", err)
	}
	if drv := l.hw.driver(); drv != nil {
		if err := drv.Start(); err != nil {
			l.logger.Error("error starting driver", "err", err)
			return fmt.Errorf("play stream: %w", err)
		}
	}
	return nil
}

// PauseStream marks id as paused from the next buffer switch on. The driver
// is stopped once no stream of either direction is playing.
func (l *EventLoop) PauseStream(id StreamID) error {
	if err := l.registry.setPlaying(id, false); err != nil {
		return fmt.Errorf("pause stream: %w", err)
	}
	if l.registry.isAnyPlaying(driver.Input) || l.registry.isAnyPlaying(driver.Output) {
		return nil
	}
	if drv := l.hw.driver(); drv != nil {
		if err := drv.Stop(); err != nil {
			l.logger.Error("error stopping driver", "err", err)
			return fmt.Errorf("pause stream: %w", err)
		}
	}
	return nil
}

// DestroyStream removes id. Its identity is never handed out again. Once the
// last stream is gone the hardware streams are released.
func (l *EventLoop) DestroyStream(id StreamID) error {
	s, err := l.registry.destroy(id)
	if err != nil {
		return fmt.Errorf("destroy stream: %w", err)
	}
	l.logger.Info("destroyed stream", "id", id, "direction", s.direction)
	l.metrics.StreamDestroyed(s.direction)

	if !l.idle() {
		return nil
	}
	if l.hw.busy() {
		go func() {
			if err := l.hw.release(l.idle); err != nil {
				l.logger.Error("error releasing hardware streams", "err", err)
			}
		}()
		return nil
	}
	return l.hw.release(l.idle)
}

func (l *EventLoop) idle() bool {
	return l.registry.count(driver.Input) == 0 && l.registry.count(driver.Output) == 0
}

// --------------------------------------------------------------------------------
// Callback and driving loop

// SetCallback fills the callback slot. The slot is filled once for the life
// of the event loop.
func (l *EventLoop) SetCallback(cb Callback) error {
	if cb == nil {
		return errNilCallback
	}
	l.cbMu.Lock()
	defer l.cbMu.Unlock()
	if l.callback != nil {
		return ErrCallbackAlreadyRegistered
	}
	l.callback = cb
	return nil
}

func (l *EventLoop) currentCallback() Callback {
	l.cbMu.Lock()
	defer l.cbMu.Unlock()
	return l.callback
}

// Run registers cb and keeps the driver's message loop serviced until ctx is
// done. Audio is processed on the driver's thread, not here.
func (l *EventLoop) Run(ctx context.Context, cb Callback) error {
	if err := l.SetCallback(cb); err != nil {
		return err
	}
	l.logger.Info("event loop running", "pollInterval", l.pollInterval)

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("event loop stopped", "reason", context.Cause(ctx))
			return ctx.Err()
		case <-ticker.C:
			if pump, ok := l.hw.driver().(driver.MessagePump); ok {
				pump.PumpMessages()
			}
		}
	}
}

// Close destroys every stream, stops the driver and releases the hardware
// streams. The event loop can be reused afterwards; ids keep counting up.
func (l *EventLoop) Close() error {
	for _, s := range l.registry.clear() {
		l.metrics.StreamDestroyed(s.direction)
	}
	if err := l.hw.release(func() bool { return true }); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	l.logger.Info("event loop closed")
	return nil
}
