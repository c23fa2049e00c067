// Package contextbuf maintains the sliding window of recent camera frames
// that conditions trajectory sampling. The window is decoupled from raw
// frame-arrival cadence by a minimum-interval gate.
package contextbuf

import (
	"time"

	"github.com/teslashibe/go-explore/internal/log"
)

// Frame is one captured camera image. Frames are never mutated after
// capture; stages copy or resample as needed.
type Frame struct {
	JPEG   []byte
	Width  int
	Height int
	Stamp  time.Time
}

// Buffer is a fixed-capacity sliding window of the most recent frames,
// oldest first. Pushing past capacity evicts the oldest frame; that is
// normal operation, not a fault.
type Buffer struct {
	contextSize int
	frames      []Frame
}

// New creates a buffer sized for the given context: it holds up to
// contextSize+1 frames.
func New(contextSize int) *Buffer {
	return &Buffer{
		contextSize: contextSize,
		frames:      make([]Frame, 0, contextSize+1),
	}
}

// Capacity returns the maximum number of frames held.
func (b *Buffer) Capacity() int {
	return b.contextSize + 1
}

// Push appends a frame, evicting the oldest if at capacity.
func (b *Buffer) Push(f Frame) {
	if len(b.frames) == b.Capacity() {
		copy(b.frames, b.frames[1:])
		b.frames = b.frames[:len(b.frames)-1]
	}
	b.frames = append(b.frames, f)
	log.Debug("frame added to context buffer", "occupancy", len(b.frames), "capacity", b.Capacity())
}

// Len returns the current number of buffered frames.
func (b *Buffer) Len() int {
	return len(b.frames)
}

// Ready reports whether enough context has accumulated to sample.
func (b *Buffer) Ready() bool {
	return len(b.frames) > b.contextSize
}

// Snapshot returns the current contents in temporal order, oldest first.
// The returned slice is a copy; the buffer is not mutated.
func (b *Buffer) Snapshot() []Frame {
	out := make([]Frame, len(b.frames))
	copy(out, b.frames)
	return out
}

// Latest returns the most recent frame and whether one exists.
func (b *Buffer) Latest() (Frame, bool) {
	if len(b.frames) == 0 {
		return Frame{}, false
	}
	return b.frames[len(b.frames)-1], true
}

// Gate suppresses frames that arrive faster than a configured cadence.
// Frames arriving before the interval elapses are dropped, not buffered.
type Gate struct {
	interval time.Duration
	last     time.Time
}

// NewGate creates a gate with the given minimum inter-frame interval.
// A non-positive interval accepts every frame.
func NewGate(interval time.Duration) *Gate {
	return &Gate{interval: interval}
}

// Accept reports whether a frame arriving at now passes the gate, and
// advances the gate clock when it does.
func (g *Gate) Accept(now time.Time) bool {
	if g.interval > 0 && !g.last.IsZero() && now.Sub(g.last) < g.interval {
		return false
	}
	g.last = now
	return true
}
