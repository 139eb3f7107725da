package pipeline

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/termart/internal/render/core"
	"github.com/dshills/termart/internal/render/rcache"
)

// mockRenderer counts dispatches and can block or fail on demand.
type mockRenderer struct {
	dispatches atomic.Int32
	release    chan struct{}
	err        error
}

func (m *mockRenderer) Render(ctx context.Context, b core.Block) (image.Image, error) {
	m.dispatches.Add(1)
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
}

func mathBlock(src string) core.Block {
	return core.Block{ID: "fp-" + src, Kind: core.KindMath, Source: src}
}

func newTestPipeline(r Renderer) (*Pipeline, *rcache.Cache) {
	cache := rcache.New(32)
	return New(cache, r, 2, nil), cache
}

func TestUpdateDispatchesNewBlocks(t *testing.T) {
	r := &mockRenderer{}
	p, cache := newTestPipeline(r)
	defer p.Close()

	p.Update([]core.Block{mathBlock("a")})
	p.Wait()

	if got := r.dispatches.Load(); got != 1 {
		t.Errorf("dispatches = %d, want 1", got)
	}
	e, ok := cache.Lookup("fp-a")
	if !ok || e.State != rcache.StateReady {
		t.Errorf("entry = %+v, want ready", e)
	}
}

func TestAtMostOneInFlightPerFingerprint(t *testing.T) {
	r := &mockRenderer{release: make(chan struct{})}
	p, _ := newTestPipeline(r)
	defer p.Close()

	blocks := []core.Block{mathBlock("a")}
	p.Update(blocks)
	p.Update(blocks) // re-scan while the first render is running
	p.Update(blocks)

	close(r.release)
	p.Wait()

	if got := r.dispatches.Load(); got != 1 {
		t.Errorf("dispatches = %d, want 1 (no duplicate while rendering)", got)
	}
}

func TestSharedFingerprintRendersOnce(t *testing.T) {
	r := &mockRenderer{}
	p, _ := newTestPipeline(r)
	defer p.Close()

	// Two blocks at different positions with identical source.
	a := mathBlock("same")
	a.LineRange = core.LineRange{Start: 1, End: 3}
	b := mathBlock("same")
	b.LineRange = core.LineRange{Start: 10, End: 12}

	p.Update([]core.Block{a, b})
	p.Wait()

	if got := r.dispatches.Load(); got != 1 {
		t.Errorf("dispatches = %d, want 1 for shared source", got)
	}
}

func TestCompletionTriggersRedraw(t *testing.T) {
	r := &mockRenderer{}
	p, _ := newTestPipeline(r)
	defer p.Close()

	delta := p.Update([]core.Block{mathBlock("a")})
	if !delta.ShouldRedraw {
		t.Error("new block set should request a redraw")
	}

	p.Wait()
	delta = p.Flush()
	if !delta.ShouldRedraw {
		t.Error("completed render should request a redraw")
	}

	delta = p.Flush()
	if delta.ShouldRedraw {
		t.Error("nothing new happened; no redraw expected")
	}
}

func TestUnchangedBlockSetNoRedraw(t *testing.T) {
	r := &mockRenderer{}
	p, _ := newTestPipeline(r)
	defer p.Close()

	blocks := []core.Block{mathBlock("a")}
	p.Update(blocks)
	p.Wait()
	p.Flush()

	delta := p.Update(blocks)
	if delta.ShouldRedraw {
		t.Error("identical block set with settled cache should not redraw")
	}
	if got := r.dispatches.Load(); got != 1 {
		t.Errorf("dispatches = %d, want 1 (cache hit)", got)
	}
}

func TestFailureSurfacedOnce(t *testing.T) {
	r := &mockRenderer{err: errors.New("latex: missing $ inserted")}
	p, cache := newTestPipeline(r)
	defer p.Close()

	blocks := []core.Block{mathBlock("bad")}
	p.Update(blocks)
	p.Wait()

	delta := p.Flush()
	if len(delta.Messages) != 1 {
		t.Fatalf("messages = %v, want one failure message", delta.Messages)
	}

	// The failure stays cached and is not redispatched or re-reported.
	delta = p.Update(blocks)
	if len(delta.Messages) != 0 {
		t.Errorf("messages = %v, want none on re-scan", delta.Messages)
	}
	if got := r.dispatches.Load(); got != 1 {
		t.Errorf("dispatches = %d, want 1", got)
	}
	e, _ := cache.Lookup("fp-bad")
	if e.State != rcache.StateFailed {
		t.Errorf("state = %v, want failed", e.State)
	}
}

func TestStaleRenderStillCached(t *testing.T) {
	r := &mockRenderer{release: make(chan struct{})}
	p, cache := newTestPipeline(r)
	defer p.Close()

	p.Update([]core.Block{mathBlock("gone")})
	// The block disappears while its render is in flight.
	p.Update(nil)

	close(r.release)
	p.Wait()

	e, ok := cache.Lookup("fp-gone")
	if !ok || e.State != rcache.StateReady {
		t.Errorf("stale render should still be cached, got %+v ok=%v", e, ok)
	}
}

func TestWorkerBound(t *testing.T) {
	r := &mockRenderer{release: make(chan struct{})}
	cache := rcache.New(32)
	p := New(cache, r, 2, nil)
	defer p.Close()

	p.Update([]core.Block{mathBlock("a"), mathBlock("b"), mathBlock("c")})

	// Only two workers may enter Render concurrently.
	deadline := time.Now().Add(time.Second)
	for r.dispatches.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	if got := r.dispatches.Load(); got > 2 {
		t.Errorf("concurrent dispatches = %d, want at most 2", got)
	}

	close(r.release)
	p.Wait()
	if got := r.dispatches.Load(); got != 3 {
		t.Errorf("total dispatches = %d, want 3", got)
	}
}
