// Package scanner parses buffer text into renderable content blocks.
//
// Three textual patterns are recognized: fenced regions with a
// language tag (math, gnuplot, latex/tex), markdown image links on
// their own line, and markdown headers, which are reported as fold
// candidates for the host. Scanning is a pure function of the buffer
// text.
package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/termart/internal/render/core"
)

// fingerprintLen is the number of hex characters kept from the sha256
// digest. 96 bits is plenty for content addressing a buffer.
const fingerprintLen = 24

var (
	fenceRe  = regexp.MustCompile("(?ms)^```([a-z]{3,})(?:,height=([0-9]+))?[^\n]*\n(.*?)^```[ \t]*$")
	imageRe  = regexp.MustCompile(`^!\[[^\]]*\]\(([^)]+)\)[ \t]*$`)
	headerRe = regexp.MustCompile(`^#{1,6}[ \t]`)
)

// Result holds the outcome of one scan pass.
type Result struct {
	// Blocks are the renderable blocks in document order.
	Blocks []core.Block

	// FoldLines are the 1-based lines of markdown headers, in order.
	// The host uses them to seed its fold table.
	FoldLines []int
}

// Scanner parses buffer text into blocks.
type Scanner struct{}

// New creates a scanner.
func New() *Scanner {
	return &Scanner{}
}

// Fingerprint computes the content fingerprint for a block: the kind
// plus the normalized source. Inline source is whitespace-normalized;
// file paths are hashed byte-exact.
func Fingerprint(kind core.Kind, source string, fromFile bool) string {
	norm := source
	if !fromFile {
		norm = strings.Join(strings.Fields(source), " ")
	}
	sum := sha256.Sum256([]byte(kind.String() + "\x00" + norm))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// Scan parses the buffer text. Blocks come back in strictly increasing
// start-line order with no overlapping ranges. Unterminated fences at
// end of buffer are dropped on the assumption they are being typed.
func (s *Scanner) Scan(text string) Result {
	lineStarts := lineOffsets(text)
	lineOf := func(off int) int {
		// Number of line starts at or before off.
		return sort.Search(len(lineStarts), func(i int) bool { return lineStarts[i] > off })
	}
	lines := strings.Split(text, "\n")

	var blocks []core.Block

	// Fenced regions. Every fence masks its body from the line scans
	// below, whether or not its language is renderable.
	masked := make([]bool, len(lines)+1)
	for _, m := range fenceRe.FindAllStringSubmatchIndex(text, -1) {
		startLine := lineOf(m[0])
		endLine := lineOf(m[1] - 1)
		for l := startLine; l <= endLine && l < len(masked); l++ {
			masked[l] = true
		}

		kind, ok := fenceKind(text[m[2]:m[3]])
		if !ok {
			continue
		}

		height := 0
		if m[4] >= 0 {
			height, _ = strconv.Atoi(text[m[4]:m[5]])
		}
		source := ""
		if m[6] >= 0 {
			source = text[m[6]:m[7]]
		}

		blocks = append(blocks, core.Block{
			ID:         Fingerprint(kind, source, false),
			Kind:       kind,
			Source:     source,
			ByteRange:  core.ByteRange{Start: m[0], End: m[1]},
			LineRange:  core.LineRange{Start: startLine, End: endLine},
			HeightHint: height,
		})
	}

	// Image links and fold candidates, outside fence bodies.
	var foldLines []int
	for i, line := range lines {
		nr := i + 1
		if nr < len(masked) && masked[nr] {
			continue
		}

		if headerRe.MatchString(line) {
			foldLines = append(foldLines, nr)
			continue
		}

		m := imageRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		// Blank lines after the link reserve vertical space for the
		// image.
		blanks := 0
		for j := i + 1; j < len(lines) && strings.TrimSpace(lines[j]) == ""; j++ {
			blanks++
		}

		target := m[1]
		kind := linkKind(target)
		start := lineStarts[i]

		blocks = append(blocks, core.Block{
			ID:        Fingerprint(kind, target, true),
			Kind:      kind,
			Source:    target,
			FromFile:  true,
			ByteRange: core.ByteRange{Start: start, End: start + len(line)},
			LineRange: core.LineRange{Start: nr, End: nr + blanks},
		})
	}

	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].LineRange.Start < blocks[j].LineRange.Start
	})

	// Enforce non-overlapping document order; later blocks lose.
	dst := blocks[:0]
	for _, b := range blocks {
		if n := len(dst); n > 0 && dst[n-1].LineRange.Overlaps(b.LineRange) {
			continue
		}
		dst = append(dst, b)
	}

	return Result{Blocks: dst, FoldLines: foldLines}
}

// fenceKind maps a fence language tag to a block kind. Unknown tags
// are not renderable and are skipped.
func fenceKind(lang string) (core.Kind, bool) {
	switch lang {
	case "math":
		return core.KindMath, true
	case "gnuplot":
		return core.KindPlot, true
	case "latex", "tex":
		return core.KindTeX, true
	default:
		return 0, false
	}
}

// linkKind routes an image link target by extension.
func linkKind(target string) core.Kind {
	switch strings.ToLower(filepath.Ext(target)) {
	case ".plt":
		return core.KindPlot
	case ".tex":
		return core.KindTeX
	default:
		return core.KindImage
	}
}

// lineOffsets returns the byte offset of each line start. Index i
// holds the offset of line i+1.
func lineOffsets(text string) []int {
	offsets := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}
