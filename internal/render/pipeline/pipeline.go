// Package pipeline keeps the render cache in step with the current
// block set.
//
// Rendering runs on worker goroutines off the synchronous update path;
// completions are collected and surfaced on the next update or draw
// tick. Nothing cancels an in-flight render: a result for a block that
// has since disappeared is cached anyway, which is harmless and pays
// off if the same content reappears.
package pipeline

import (
	"context"
	"image"
	"sync"

	"github.com/dshills/termart/internal/applog"
	"github.com/dshills/termart/internal/render/core"
	"github.com/dshills/termart/internal/render/rcache"
)

// Renderer is the external renderer collaborator. Render is expected
// to take non-trivial wall-clock time (subprocess latency) and is only
// ever called from pipeline workers.
type Renderer interface {
	Render(ctx context.Context, block core.Block) (image.Image, error)
}

// Delta reports what changed since the previous update.
type Delta struct {
	// ShouldRedraw is true when any render completed or the block set
	// itself changed, signaling the host to run the draw loop.
	ShouldRedraw bool

	// Messages are displayable render failure messages, surfaced once
	// per failed fingerprint.
	Messages []string
}

type completion struct {
	fingerprint string
	failed      bool
	message     string
}

// Pipeline dispatches renders and collects their results.
type Pipeline struct {
	cache    *rcache.Cache
	renderer Renderer
	log      *applog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	mu        sync.Mutex
	completed []completion
	prev      map[string]int
}

// New creates a pipeline with the given worker bound.
func New(cache *rcache.Cache, renderer Renderer, workers int, log *applog.Logger) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	if log == nil {
		log = applog.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		cache:    cache,
		renderer: renderer,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		sem:      make(chan struct{}, workers),
		prev:     make(map[string]int),
	}
}

// Update reconciles the cache against the current block set. Blocks
// without a cache entry are claimed and dispatched; everything else is
// left alone, including failed entries, which retry only when their
// fingerprint changes.
func (p *Pipeline) Update(blocks []core.Block) Delta {
	delta := p.Flush()

	cur := make(map[string]int, len(blocks))
	for _, b := range blocks {
		cur[b.ID]++
	}

	p.mu.Lock()
	if !countsEqual(cur, p.prev) {
		delta.ShouldRedraw = true
	}
	p.prev = cur
	p.mu.Unlock()

	for _, b := range blocks {
		if _, ok := p.cache.Lookup(b.ID); ok {
			continue
		}
		if p.cache.Begin(b.ID) {
			p.wg.Add(1)
			go p.render(b)
		}
	}
	return delta
}

// Flush drains completed renders into the cache-visible world and
// reports whether a redraw is due.
func (p *Pipeline) Flush() Delta {
	p.mu.Lock()
	done := p.completed
	p.completed = nil
	p.mu.Unlock()

	var delta Delta
	for _, c := range done {
		delta.ShouldRedraw = true
		if c.failed {
			delta.Messages = append(delta.Messages, c.message)
		}
	}
	return delta
}

// Wait blocks until no renders are in flight.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Close stops dispatching and signals workers' contexts. In-flight
// renders finish on their own; their results land in the cache.
func (p *Pipeline) Close() {
	p.cancel()
}

func (p *Pipeline) render(b core.Block) {
	defer p.wg.Done()

	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	p.cache.MarkRendering(b.ID)
	p.log.Debug("render %s %s", b.Kind, b.ID)

	img, err := p.renderer.Render(p.ctx, b)

	c := completion{fingerprint: b.ID}
	if err != nil {
		p.cache.StoreError(b.ID, err)
		c.failed = true
		c.message = err.Error()
		p.log.Warn("render %s failed: %v", b.ID, err)
	} else {
		p.cache.StoreBitmap(b.ID, img)
		if b.FromFile {
			if werr := p.cache.WatchFile(b.ID, b.Source); werr != nil {
				p.log.Debug("watch %s: %v", b.Source, werr)
			}
		}
	}

	p.mu.Lock()
	p.completed = append(p.completed, c)
	p.mu.Unlock()
}

func countsEqual(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
