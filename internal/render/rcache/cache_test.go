package rcache

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testBitmap() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 2, 2))
}

func TestBeginClaimsOnce(t *testing.T) {
	c := New(8)

	if !c.Begin("fp1") {
		t.Fatal("first Begin should claim the fingerprint")
	}
	if c.Begin("fp1") {
		t.Error("second Begin must not trigger a duplicate render")
	}

	e, ok := c.Lookup("fp1")
	if !ok {
		t.Fatal("claimed entry should be present")
	}
	if e.State != StatePending {
		t.Errorf("state = %v, want pending", e.State)
	}
}

func TestStateTransitions(t *testing.T) {
	c := New(8)

	c.Begin("fp1")
	c.MarkRendering("fp1")

	e, _ := c.Lookup("fp1")
	if e.State != StateRendering {
		t.Errorf("state = %v, want rendering", e.State)
	}

	c.StoreBitmap("fp1", testBitmap())
	e, _ = c.Lookup("fp1")
	if e.State != StateReady {
		t.Errorf("state = %v, want ready", e.State)
	}
	if e.Bitmap == nil {
		t.Error("ready entry should carry a bitmap")
	}
}

func TestFailedRetained(t *testing.T) {
	c := New(8)
	renderErr := errors.New("latex: undefined control sequence")

	c.Begin("fp1")
	c.StoreError("fp1", renderErr)

	e, ok := c.Lookup("fp1")
	if !ok || e.State != StateFailed {
		t.Fatalf("entry = %+v, want failed", e)
	}
	if !errors.Is(e.Err, renderErr) {
		t.Errorf("err = %v, want the render error", e.Err)
	}

	// A failed fingerprint is not retried: Begin still refuses.
	if c.Begin("fp1") {
		t.Error("failed entry should block re-dispatch")
	}
}

func TestEvictLRU(t *testing.T) {
	c := New(3)

	for i := 0; i < 3; i++ {
		fp := fmt.Sprintf("fp%d", i)
		c.Begin(fp)
		c.StoreBitmap(fp, testBitmap())
	}

	// Touch fp0 so fp1 becomes the oldest.
	c.Lookup("fp0")

	c.Begin("fp3")
	c.StoreBitmap("fp3", testBitmap())

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	if _, ok := c.Lookup("fp1"); ok {
		t.Error("fp1 should have been evicted as least recently used")
	}
	if _, ok := c.Lookup("fp0"); !ok {
		t.Error("fp0 was recently touched and should survive")
	}
}

func TestEvictSkipsInFlight(t *testing.T) {
	c := New(1)

	c.Begin("inflight")
	c.MarkRendering("inflight")

	c.Begin("done")
	c.StoreBitmap("done", testBitmap())

	if _, ok := c.Lookup("inflight"); !ok {
		t.Error("in-flight entries must never be evicted")
	}
}

func TestClear(t *testing.T) {
	c := New(8)
	c.Begin("fp1")
	c.StoreBitmap("fp1", testBitmap())

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", c.Len())
	}
}

func TestStats(t *testing.T) {
	c := New(8)
	c.Begin("fp1")
	c.StoreBitmap("fp1", testBitmap())

	c.Lookup("fp1")
	c.Lookup("absent")

	st := c.Stats()
	if st.Hits == 0 {
		t.Error("expected at least one hit")
	}
	if st.Misses == 0 {
		t.Error("expected at least one miss")
	}
	if st.Entries != 1 {
		t.Errorf("Entries = %d, want 1", st.Entries)
	}
}

func TestFileWatchInvalidates(t *testing.T) {
	c := New(8)
	if err := c.EnableFileWatch(); err != nil {
		t.Skipf("file watcher unavailable: %v", err)
	}
	defer c.Close()

	path := filepath.Join(t.TempDir(), "img.png")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	c.Begin("fp1")
	c.StoreBitmap("fp1", testBitmap())
	if err := c.WatchFile("fp1", path); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := c.Lookup("fp1"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("file change should invalidate the entry")
}
