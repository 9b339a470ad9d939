package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
)

// hardware owns the single hardware stream pair shared by every logical
// stream, and the silence flags of the two output half-buffers.
//
// mu guards pair and silence. It is held for the whole of a logical stream's
// conversion in the buffer switch, so stream creation and per-stream
// processing are serialised. The current driver sits behind its own lock so
// that play and pause never wait on an in-flight buffer switch.
type hardware struct {
	logger *slog.Logger

	// Serialises building against releasing. Taken before mu.
	lifecycle sync.Mutex

	mu      sync.Mutex
	pair    driver.StreamPair
	silence [2]bool

	driverMu sync.Mutex
	drv      driver.Driver
}

func (h *hardware) driver() driver.Driver {
	h.driverMu.Lock()
	defer h.driverMu.Unlock()
	return h.drv
}

func (h *hardware) setDriver(drv driver.Driver) {
	h.driverMu.Lock()
	defer h.driverMu.Unlock()
	h.drv = drv
}

// Caller holds h.mu.
func (h *hardware) hasStreams() bool {
	return h.pair.Input != nil || h.pair.Output != nil
}

// ensureStream returns the buffer size of the hardware stream for direction,
// creating it through drv if none exists. An existing stream is returned as
// is; its channel count is not checked again.
//
// Caller holds h.mu.
func (h *hardware) ensureStream(drv driver.Driver, direction driver.Direction, numChannels int, onSwitch driver.BufferSwitchFunc) (int, error) {
	if existing := h.pair.Get(direction); existing != nil {
		return existing.BufferSize, nil
	}

	var (
		pair driver.StreamPair
		err  error
	)
	switch direction {
	case driver.Input:
		pair, err = drv.PrepareInputStream(h.pair.Output, numChannels)
	case driver.Output:
		pair, err = drv.PrepareOutputStream(h.pair.Input, numChannels)
	default:
		return 0, fmt.Errorf("%w: %w", ErrDeviceNotAvailable, driver.ErrNoSuchDirection)
	}
	if err != nil {
		h.logger.Error("error preparing hardware stream", "direction", direction, "err", err)
		return 0, fmt.Errorf("%w: %w", ErrDeviceNotAvailable, err)
	}

	created := pair.Get(direction)
	if err := created.Validate(numChannels); err != nil {
		h.logger.Error("driver returned an unusable hardware stream", "direction", direction, "err", err)
		return 0, fmt.Errorf("%w: %w", ErrDeviceNotAvailable, err)
	}

	h.pair = pair
	h.silence = [2]bool{}
	h.setDriver(drv)
	drv.SetBufferSwitchCallback(onSwitch)

	h.logger.Debug(
		"created hardware stream",
		"direction", direction,
		"channels", created.NumChannels(),
		"bufferSize", created.BufferSize,
		"encoding", created.Encoding,
	)
	return created.BufferSize, nil
}

// claimSilence decides whether the caller is the first output stream to
// touch half-buffer index in this fill cycle. The first claim of an index
// wins and re-arms the opposite index, so each half is zeroed exactly once
// per cycle before streams mix into it. Both flags start cleared, so the very
// first touch of either half also zeroes it.
//
// Caller holds h.mu.
func (h *hardware) claimSilence(index int) bool {
	if h.silence[index] {
		return false
	}
	h.silence[index] = true
	h.silence[1-index] = false
	return true
}

// busy reports whether a buffer switch or a build currently holds h.mu.
// Destroying the last stream from inside the user callback lands here.
func (h *hardware) busy() bool {
	if h.mu.TryLock() {
		h.mu.Unlock()
		return false
	}
	return true
}

// release stops the driver and drops the stream pair, but only if stillIdle
// reports that no logical stream was built in the meantime. Teardown runs
// without h.mu held, since drivers may wait for an in-flight buffer switch.
func (h *hardware) release(stillIdle func() bool) error {
	h.lifecycle.Lock()
	defer h.lifecycle.Unlock()

	drv := h.driver()
	if drv == nil || !stillIdle() {
		return nil
	}
	if err := drv.Stop(); err != nil {
		h.logger.Warn("error stopping driver", "err", err)
	}

	h.mu.Lock()
	if !stillIdle() {
		h.mu.Unlock()
		return nil
	}
	h.pair = driver.StreamPair{}
	h.silence = [2]bool{}
	h.setDriver(nil)
	h.mu.Unlock()

	if err := drv.Teardown(); err != nil {
		h.logger.Error("error tearing down hardware streams", "err", err)
		return fmt.Errorf("teardown: %w", err)
	}
	h.logger.Debug("released hardware streams")
	return nil
}
