// Package engine owns the process-wide render state and exposes the
// five host entry points: UpdateMetadata, UpdateContent, SetFolds,
// Draw, and ClearAll.
//
// All entry points mutate one mutex-guarded snapshot and bump its
// version; draw work lists carry the version they were computed
// against, so any state change invalidates stale screen positions
// before they are written.
package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dshills/termart/internal/applog"
	"github.com/dshills/termart/internal/config"
	"github.com/dshills/termart/internal/render/core"
	"github.com/dshills/termart/internal/render/layout"
	"github.com/dshills/termart/internal/render/pipeline"
	"github.com/dshills/termart/internal/render/rcache"
	"github.com/dshills/termart/internal/render/scanner"
	"github.com/dshills/termart/internal/render/schedule"
	"github.com/dshills/termart/internal/render/sixel"
	"github.com/dshills/termart/internal/term"
)

// ContentDelta is the result of an UpdateContent call.
type ContentDelta struct {
	// ShouldRedraw signals the host to start polling Draw.
	ShouldRedraw bool

	// FoldLines are markdown header lines the host may fold on.
	FoldLines []int

	// Messages are displayable render failure messages.
	Messages []string
}

// DrawReport is the result of one draw tick.
type DrawReport struct {
	// More is true while draw work remains and the host should call
	// Draw again after its interval.
	More bool

	// Messages are displayable render or encoding warnings.
	Messages []string
}

// Engine is the render engine facade.
type Engine struct {
	cfg  config.Config
	log  *applog.Logger
	scan *scanner.Scanner

	cache *rcache.Cache
	pipe  *pipeline.Pipeline
	enc   *sixel.Encoder
	sched *schedule.Scheduler

	mu       sync.Mutex
	version  uint64
	blocks   []core.Block
	metadata core.Metadata
	folds    []core.Fold
	dirty    bool
	messages []string
}

// Option configures the engine.
type Option func(*options)

type options struct {
	log        *applog.Logger
	cellWidth  int
	cellHeight int
}

// WithLogger overrides the logger built from the configuration.
func WithLogger(log *applog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithCellSize sets the terminal cell size in pixels. Hosts should
// probe it; the default matches terminals that report no pixel sizes.
func WithCellSize(width, height int) Option {
	return func(o *options) {
		o.cellWidth = width
		o.cellHeight = height
	}
}

// New creates an engine using the given external renderer.
func New(cfg config.Config, renderer pipeline.Renderer, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if renderer == nil {
		return nil, ErrNilRenderer
	}

	o := options{
		cellWidth:  term.FallbackCellWidth,
		cellHeight: term.FallbackCellHeight,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		lc := applog.Config{Level: applog.ParseLevel(cfg.Log.Level), Prefix: "termart"}
		if cfg.Log.File != "" {
			if f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				lc.Output = f
			}
		}
		o.log = applog.New(lc)
	}

	cache := rcache.New(cfg.Cache.Capacity, rcache.WithLogger(o.log.WithComponent("rcache")))
	if cfg.Cache.WatchFiles {
		if err := cache.EnableFileWatch(); err != nil {
			o.log.Warn("file watching disabled: %v", err)
		}
	}

	e := &Engine{
		cfg:      cfg,
		log:      o.log,
		scan:     scanner.New(),
		cache:    cache,
		pipe:     pipeline.New(cache, renderer, cfg.Render.Workers, o.log.WithComponent("pipeline")),
		enc:      sixel.NewEncoder(o.cellWidth, o.cellHeight, cfg.Sixel.ChunkRows, cfg.Sixel.MaxChunks),
		sched:    schedule.New(cfg.Draw.Budget, o.log.WithComponent("schedule")),
		metadata: core.NewMetadata(),
	}
	return e, nil
}

// Close releases the engine's workers and watchers.
func (e *Engine) Close() error {
	e.pipe.Close()
	return e.cache.Close()
}

// UpdateMetadata atomically replaces the viewport snapshot.
func (e *Engine) UpdateMetadata(md core.Metadata) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if md == e.metadata {
		return
	}
	e.metadata = md
	e.bump()
}

// UpdateContent re-scans the buffer and reconciles renders. The scan
// result replaces the block set wholesale; nothing is patched in
// place.
func (e *Engine) UpdateContent(text string) ContentDelta {
	res := e.scan.Scan(text)
	pd := e.pipe.Update(res.Blocks)

	e.mu.Lock()
	defer e.mu.Unlock()

	redraw := pd.ShouldRedraw || !blocksEqual(e.blocks, res.Blocks)
	e.blocks = res.Blocks
	if redraw {
		e.bump()
	}
	return ContentDelta{
		ShouldRedraw: redraw,
		FoldLines:    res.FoldLines,
		Messages:     pd.Messages,
	}
}

// SetFolds replaces the fold table. Returns true when the normalized
// table differs from the previous one.
func (e *Engine) SetFolds(folds []core.Fold) bool {
	norm := core.NormalizeFolds(folds)

	e.mu.Lock()
	defer e.mu.Unlock()

	if core.FoldsEqual(e.folds, norm) {
		return false
	}
	e.folds = norm
	e.bump()
	return true
}

// Draw emits the next increment of graphics to w.
func (e *Engine) Draw(w io.Writer) (DrawReport, error) {
	pd := e.pipe.Flush()

	e.mu.Lock()
	if pd.ShouldRedraw {
		e.bump()
	}
	e.messages = append(e.messages, pd.Messages...)

	if e.dirty {
		frames, rects := e.buildWork()
		e.sched.Start(e.version, frames, rects)
		e.dirty = false
	}

	msgs := e.messages
	e.messages = nil
	e.mu.Unlock()

	more, err := e.sched.Tick(w)
	return DrawReport{More: more, Messages: msgs}, err
}

// ClearAll erases the graphics region and resets the engine to empty.
func (e *Engine) ClearAll(w io.Writer) error {
	e.mu.Lock()
	e.blocks = nil
	e.folds = nil
	e.messages = nil
	e.dirty = false
	e.version++
	version := e.version
	e.mu.Unlock()

	e.cache.Clear()
	e.sched.Invalidate(version)
	return e.sched.EraseAll(w)
}

// CacheStats exposes render cache counters.
func (e *Engine) CacheStats() rcache.Stats {
	return e.cache.Stats()
}

// bump marks the snapshot changed. Callers hold e.mu.
func (e *Engine) bump() {
	e.version++
	e.dirty = true
	e.sched.Invalidate(e.version)
}

// buildWork computes the full ordered work list for the current
// snapshot: one frame per sixel chunk, blocks in document order.
// Callers hold e.mu.
func (e *Engine) buildWork() ([]schedule.Frame, []core.Rect) {
	var frames []schedule.Frame
	var rects []core.Rect

	for _, b := range e.blocks {
		entry, ok := e.cache.Lookup(b.ID)
		if !ok || entry.State != rcache.StateReady {
			continue
		}

		rect, visible := layout.Position(b, e.metadata, e.folds)
		if !visible {
			continue
		}

		chunks, err := e.enc.Encode(entry.Bitmap, rect)
		if err != nil {
			if errors.Is(err, sixel.ErrChunkLimit) {
				e.messages = append(e.messages,
					fmt.Sprintf("graphic at line %d truncated: %v", b.LineRange.Start, err))
			} else {
				e.log.Warn("encode %s: %v", b.ID, err)
				continue
			}
		}
		if len(chunks) == 0 {
			continue
		}

		for _, c := range chunks {
			frames = append(frames, schedule.Frame{
				Row:  rect.Row + c.RowOffset,
				Col:  rect.Col,
				Data: c.Data,
			})
		}
		rects = append(rects, rect)
	}
	return frames, rects
}

// blocksEqual compares block sets by identity and position.
func blocksEqual(a, b []core.Block) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].LineRange != b[i].LineRange || a[i].HeightHint != b[i].HeightHint {
			return false
		}
	}
	return true
}
