package engine

import (
	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
)

// Input streams are serviced before output streams on every swap.
var dispatchOrder = [...]driver.Direction{driver.Input, driver.Output}

// bufferSwitch is installed on the driver and runs on its real-time thread.
// index names the half-buffer that was just captured and is to be filled
// next. Nothing here returns an error: a bad swap is logged and skipped.
func (l *EventLoop) bufferSwitch(index int) {
	l.metrics.BufferSwitch()
	if index != 0 && index != 1 {
		l.logger.Error("ignoring buffer switch", "index", index, "err", driver.ErrInvalidHalf)
		l.metrics.InvalidSwitch()
		return
	}

	// Streams built during this swap are picked up on the next one.
	slots := l.registry.slots()
	for _, direction := range dispatchOrder {
		for slot := 0; slot < slots; slot++ {
			l.process(slot, direction, index)
		}
	}
}

// process runs one logical stream for one swap. The registry lock is only
// held for the playing check, so the user callback may play, pause or
// destroy streams.
func (l *EventLoop) process(slot int, direction driver.Direction, index int) {
	s := l.registry.playingAt(slot, direction)
	if s == nil {
		return
	}

	l.hw.mu.Lock()
	defer l.hw.mu.Unlock()

	hw := l.hw.pair.Get(direction)
	cb := l.currentCallback()
	if hw == nil || cb == nil {
		l.metrics.Skipped(direction)
		return
	}
	if !s.pipeline.fits(hw) {
		l.logger.Error(
			"hardware buffer does not match stream",
			"id", s.id,
			"direction", direction,
			"err", driver.ErrBufferMismatch,
		)
		l.metrics.InvalidSwitch()
		return
	}

	l.metrics.Dispatched(direction)
	switch direction {
	case driver.Input:
		s.pipeline.input(hw, index, s.id, cb)
	case driver.Output:
		if s.pipeline.output(hw, index, s.id, cb, l.claim) {
			l.metrics.Silenced()
		}
	}
}
