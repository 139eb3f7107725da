// Package schedule drives the incremental draw loop.
//
// The host polls Tick on an interval; every tick transmits a bounded
// number of graphics frames and reports whether work remains. The
// engine never holds the host for a full redraw, which keeps the
// host's event loop responsive however large the work list gets.
package schedule

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/termart/internal/applog"
	"github.com/dshills/termart/internal/render/core"
)

// State represents the scheduler state machine.
type State uint8

const (
	// StateIdle means no draw work is queued.
	StateIdle State = iota

	// StateDrawing means a work list is being transmitted.
	StateDrawing
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrawing:
		return "drawing"
	default:
		return "unknown"
	}
}

// Frame is one transmit unit: an encoded graphics sequence addressed
// to a screen cell.
type Frame struct {
	Row  int
	Col  int
	Data []byte
}

// Scheduler emits frames across draw ticks.
type Scheduler struct {
	mu      sync.Mutex
	state   State
	budget  int
	version uint64
	session string
	queue   []Frame

	// pending are the rectangles of the pass in progress; drawn are
	// the rectangles of the last completed pass, kept so ClearAll can
	// erase exactly what is on screen.
	pending []core.Rect
	drawn   []core.Rect

	log *applog.Logger
}

// New creates a scheduler transmitting up to budget frames per tick.
func New(budget int, log *applog.Logger) *Scheduler {
	if budget <= 0 {
		budget = 1
	}
	if log == nil {
		log = applog.Nop()
	}
	return &Scheduler{budget: budget, log: log}
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start replaces the work list with a freshly computed one. The
// version tags the engine snapshot the list was derived from; a later
// Invalidate with a different version discards it.
func (s *Scheduler) Start(version uint64, frames []Frame, rects []core.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version = version
	s.queue = frames
	s.pending = rects
	if len(frames) == 0 {
		s.state = StateIdle
		s.drawn = rects
		s.pending = nil
		return
	}
	s.state = StateDrawing
	s.session = uuid.NewString()
	s.log.Debug("draw session %s: %d frames at version %d", s.session, len(frames), version)
}

// Invalidate discards any work list derived from a different engine
// version. A stale list must never resume: the screen positions it
// carries were computed against a viewport that no longer exists.
func (s *Scheduler) Invalidate(version uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.version == version {
		return
	}
	if s.state == StateDrawing {
		s.log.Debug("draw session %s invalidated at version %d", s.session, version)
	}
	s.queue = nil
	s.pending = nil
	s.state = StateIdle
}

// Tick transmits the next budget of frames. It returns true while more
// work remains and the host should call again after its interval.
func (s *Scheduler) Tick(w io.Writer) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDrawing || len(s.queue) == 0 {
		s.state = StateIdle
		return false, nil
	}

	n := s.budget
	if n > len(s.queue) {
		n = len(s.queue)
	}
	for i := 0; i < n; i++ {
		f := s.queue[i]
		if err := writeFrame(w, f); err != nil {
			// Drop the frames already written; the rest stay queued
			// for the next tick.
			s.queue = s.queue[i:]
			return true, err
		}
	}
	s.queue = s.queue[n:]

	if len(s.queue) == 0 {
		s.drawn = s.pending
		s.pending = nil
		s.state = StateIdle
		s.log.Debug("draw session %s complete", s.session)
		return false, nil
	}
	return true, nil
}

// EraseAll overwrites every rectangle drawn or in flight with blanks
// and resets the scheduler to idle. A full-screen clear would clobber
// the host's text, so only the graphics rectangles are touched.
func (s *Scheduler) EraseAll(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rects := append(append([]core.Rect{}, s.drawn...), s.pending...)
	s.queue = nil
	s.pending = nil
	s.drawn = nil
	s.state = StateIdle

	if len(rects) == 0 {
		return nil
	}

	if _, err := io.WriteString(w, "\x1b[s"); err != nil {
		return err
	}
	for _, r := range rects {
		for row := r.Row; row < r.Row+r.Rows; row++ {
			if _, err := fmt.Fprintf(w, "\x1b[%d;%dH\x1b[%dX", row, r.Col, r.Cols); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(w, "\x1b[u")
	return err
}

// writeFrame transmits one frame between cursor save and restore so
// the host's cursor never moves.
func writeFrame(w io.Writer, f Frame) error {
	if _, err := fmt.Fprintf(w, "\x1b[s\x1b[%d;%dH", f.Row, f.Col); err != nil {
		return err
	}
	if _, err := w.Write(f.Data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\x1b[u")
	return err
}
