// Package hostio is the host-facing surface of the engine: JSON
// payloads in, tagged JSON results out.
//
// Every entry point returns a string of the form {"ok": ...} or
// {"err": "message"} so the host can dispatch on a single key without
// schema knowledge. Payload parsing is tolerant of extra fields and
// strict about missing required ones.
package hostio

import (
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/termart/internal/engine"
	"github.com/dshills/termart/internal/render/core"
)

// ParseMetadata decodes a viewport snapshot payload. Required fields:
// start, end (visible line range), width, height (window cells), and
// cursor. origin_row and origin_col are optional and default to a
// gutterless window.
func ParseMetadata(payload string) (core.Metadata, error) {
	if !gjson.Valid(payload) {
		return core.Metadata{}, fmt.Errorf("%w: not valid json", ErrBadPayload)
	}

	md := core.NewMetadata()
	for _, f := range []struct {
		key string
		dst *int
	}{
		{"start", &md.TopLine},
		{"end", &md.BottomLine},
		{"width", &md.Cols},
		{"height", &md.Rows},
		{"cursor", &md.CursorLine},
	} {
		v := gjson.Get(payload, f.key)
		if !v.Exists() {
			return core.Metadata{}, fmt.Errorf("%w: missing field %q", ErrBadPayload, f.key)
		}
		*f.dst = int(v.Int())
	}

	if v := gjson.Get(payload, "origin_row"); v.Exists() {
		md.OriginRow = int(v.Int())
	}
	md.OriginCol = int(gjson.Get(payload, "origin_col").Int())

	if md.TopLine < 1 || md.BottomLine < md.TopLine || md.Rows < 1 || md.Cols < 1 {
		return core.Metadata{}, fmt.Errorf("%w: inconsistent viewport", ErrBadPayload)
	}
	return md, nil
}

// ParseFolds decodes a fold table payload: an array of [start, end]
// line pairs.
func ParseFolds(payload string) ([]core.Fold, error) {
	if !gjson.Valid(payload) {
		return nil, fmt.Errorf("%w: not valid json", ErrBadPayload)
	}
	root := gjson.Parse(payload)
	if !root.IsArray() {
		return nil, fmt.Errorf("%w: folds must be an array", ErrBadPayload)
	}

	var folds []core.Fold
	var perr error
	root.ForEach(func(_, pair gjson.Result) bool {
		elems := pair.Array()
		if len(elems) != 2 {
			perr = fmt.Errorf("%w: fold must be a [start, end] pair", ErrBadPayload)
			return false
		}
		folds = append(folds, core.Fold{
			Start: int(elems[0].Int()),
			End:   int(elems[1].Int()),
		})
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return folds, nil
}

// Host adapts the engine to a string-in, string-out call surface.
// Draw output goes to out, typically the controlling terminal.
type Host struct {
	eng *engine.Engine
	out io.Writer
}

// NewHost wraps an engine.
func NewHost(eng *engine.Engine, out io.Writer) *Host {
	return &Host{eng: eng, out: out}
}

// UpdateContent scans new buffer text and reports the resulting delta.
func (h *Host) UpdateContent(text string) string {
	d := h.eng.UpdateContent(text)

	body, _ := sjson.Set("", "should_redraw", d.ShouldRedraw)
	body = setIntList(body, "update_folding", d.FoldLines)
	body = setStringList(body, "messages", d.Messages)
	return okResult(body)
}

// UpdateMetadata replaces the viewport snapshot from a JSON payload.
func (h *Host) UpdateMetadata(payload string) string {
	md, err := ParseMetadata(payload)
	if err != nil {
		return errResult(err)
	}
	h.eng.UpdateMetadata(md)
	return okResult("true")
}

// SetFolds replaces the fold table from a JSON payload.
func (h *Host) SetFolds(payload string) string {
	folds, err := ParseFolds(payload)
	if err != nil {
		return errResult(err)
	}
	changed := h.eng.SetFolds(folds)

	body, _ := sjson.Set("", "any_changed", changed)
	return okResult(body)
}

// Draw emits one draw increment and reports whether to keep polling.
func (h *Host) Draw() string {
	rep, err := h.eng.Draw(h.out)
	if err != nil {
		return errResult(err)
	}

	body, _ := sjson.Set("", "continue", rep.More)
	body = setStringList(body, "messages", rep.Messages)
	return okResult(body)
}

// ClearAll erases all graphics and resets the engine.
func (h *Host) ClearAll() string {
	if err := h.eng.ClearAll(h.out); err != nil {
		return errResult(err)
	}
	return okResult("true")
}

// okResult wraps an already-encoded JSON value under the ok key.
func okResult(raw string) string {
	out, _ := sjson.SetRaw("", "ok", raw)
	return out
}

func errResult(err error) string {
	out, _ := sjson.Set("", "err", err.Error())
	return out
}

// setIntList sets key to the list, encoding nil as an empty array
// rather than null.
func setIntList(body, key string, vals []int) string {
	if vals == nil {
		vals = []int{}
	}
	body, _ = sjson.Set(body, key, vals)
	return body
}

func setStringList(body, key string, vals []string) string {
	if vals == nil {
		vals = []string{}
	}
	body, _ = sjson.Set(body, key, vals)
	return body
}
