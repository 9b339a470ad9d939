package engine

import (
	"fmt"
	"sync"

	"github.com/Honorable-Knights-of-the-Roundtable/asiomux/pkg/driver"
)

// A logical stream multiplexed onto the hardware stream of its direction.
type logicalStream struct {
	id        StreamID
	direction driver.Direction
	format    Format
	playing   bool
	pipeline  pipeline
}

// registry owns the logical streams. Slot i holds stream id i+1; destroyed
// streams leave a nil hole so ids are never renumbered or reused.
type registry struct {
	mu      sync.Mutex
	streams []*logicalStream
}

// Register appends a stream, paused, and returns its id.
func (r *registry) register(s *logicalStream) StreamID {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.id = StreamID(len(r.streams) + 1)
	s.playing = false
	r.streams = append(r.streams, s)
	return s.id
}

// Caller holds r.mu.
func (r *registry) get(id StreamID) (*logicalStream, error) {
	if id == 0 || uint64(id) > uint64(len(r.streams)) {
		return nil, fmt.Errorf("%w: %v was never created", ErrInvalidStreamID, id)
	}
	s := r.streams[id-1]
	if s == nil {
		return nil, fmt.Errorf("%w: %v was destroyed", ErrInvalidStreamID, id)
	}
	return s, nil
}

func (r *registry) setPlaying(id StreamID, playing bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.get(id)
	if err != nil {
		return err
	}
	s.playing = playing
	return nil
}

func (r *registry) isAnyPlaying(direction driver.Direction) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.streams {
		if s != nil && s.direction == direction && s.playing {
			return true
		}
	}
	return false
}

// Count the live streams of a direction.
func (r *registry) count(direction driver.Direction) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.streams {
		if s != nil && s.direction == direction {
			n++
		}
	}
	return n
}

// Destroy empties the slot of id and returns the removed stream.
func (r *registry) destroy(id StreamID) (*logicalStream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.get(id)
	if err != nil {
		return nil, err
	}
	r.streams[id-1] = nil
	return s, nil
}

// Clear destroys every live stream and returns them. The slots stay, so ids
// keep counting from where they were.
func (r *registry) clear() []*logicalStream {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*logicalStream
	for i, s := range r.streams {
		if s != nil {
			removed = append(removed, s)
			r.streams[i] = nil
		}
	}
	return removed
}

// Number of slots, holes included. Slots are only ever appended.
func (r *registry) slots() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}

// playingAt returns the stream in slot i if it is live, of the given
// direction and playing. A destroyed slot is treated as not playing.
func (r *registry) playingAt(i int, direction driver.Direction) *logicalStream {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i >= len(r.streams) {
		return nil
	}
	s := r.streams[i]
	if s == nil || s.direction != direction || !s.playing {
		return nil
	}
	return s
}
