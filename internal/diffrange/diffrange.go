// Package diffrange locates the lines that are new in a document
// relative to a previously captured snapshot.
//
// The resolver is deliberately line-oriented: the annotation writer only
// ever inserts whole comment lines, so character-precise diffing buys
// nothing. Matching is multiset-based rather than set-based so duplicate
// lines (repeated boilerplate, blank-ish separators) are consumed one
// occurrence at a time instead of masking genuinely new copies.
package diffrange

import (
	"strings"

	"provmark/internal/marker"
)

// Range is a half-open line range [Start, End). An empty range
// (Start == End) means "nothing new found" and callers must treat it as
// nothing to annotate.
type Range struct {
	Start int
	End   int
}

// Empty reports whether the range covers no lines.
func (r Range) Empty() bool {
	return r.Start >= r.End
}

// Find computes the minimal contiguous line range of current that is
// absent from snapshot. When the line diff is inconclusive (stale
// snapshot), it falls back to locating insertedText directly. Provenance
// marker lines are excluded from both sides so blocks written by earlier
// annotations never corrupt the diff.
func Find(current, snapshot, insertedText string) Range {
	curLines := strings.Split(current, "\n")

	// Empty snapshot: the file was never observed before this process.
	// When it already carries marker blocks it was partially annotated
	// by an earlier run, and only the content after the last end marker
	// can be new; claiming the whole file would nest blocks.
	if strings.TrimSpace(snapshot) == "" {
		if last := marker.LastEndLine(current); last >= 0 {
			start := last + 1
			for start < len(curLines) && strings.TrimSpace(curLines[start]) == "" {
				start++
			}
			if start >= len(curLines) {
				return Range{}
			}
			return Range{Start: start, End: len(curLines)}
		}
		return Range{Start: 0, End: len(curLines)}
	}

	if r, ok := diffByMultiset(curLines, snapshot); ok {
		return r
	}

	if r, ok := searchInserted(curLines, insertedText); ok {
		return r
	}

	return Range{}
}

// diffByMultiset walks current lines left to right, consuming one
// occurrence per matching snapshot line. Lines with no occurrence left
// are new; the result spans from the first to the last new line,
// including any matched lines caught in between (the inserted block is
// contiguous even when some of its lines coincide with old content).
func diffByMultiset(curLines []string, snapshot string) (Range, bool) {
	old := make(map[string]int)
	for _, line := range strings.Split(snapshot, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || marker.IsMarkerLine(t) {
			continue
		}
		old[t]++
	}

	first, last := -1, -1
	for i, line := range curLines {
		t := strings.TrimSpace(line)
		if t == "" || marker.IsMarkerLine(t) {
			continue
		}
		if old[t] > 0 {
			old[t]--
			continue
		}
		if first == -1 {
			first = i
		}
		last = i
	}

	if first == -1 {
		return Range{}, false
	}
	return Range{Start: first, End: last + 1}, true
}

// searchInserted bounds the range between the first current line equal
// to the inserted text's first non-empty line and the last current line
// (searched from the end) equal to its last non-empty line.
func searchInserted(curLines []string, insertedText string) (Range, bool) {
	firstIns, lastIns := edgeLines(insertedText)
	if firstIns == "" {
		return Range{}, false
	}

	start := -1
	for i, line := range curLines {
		if strings.TrimSpace(line) == firstIns {
			start = i
			break
		}
	}
	if start == -1 {
		return Range{}, false
	}

	end := -1
	for i := len(curLines) - 1; i >= start; i-- {
		if strings.TrimSpace(line(curLines, i)) == lastIns {
			end = i
			break
		}
	}
	if end == -1 {
		return Range{}, false
	}
	return Range{Start: start, End: end + 1}, true
}

func line(lines []string, i int) string {
	if i < 0 || i >= len(lines) {
		return ""
	}
	return lines[i]
}

// edgeLines returns the trimmed first and last non-empty lines of text.
func edgeLines(text string) (first, last string) {
	for _, l := range strings.Split(text, "\n") {
		t := strings.TrimSpace(l)
		if t == "" {
			continue
		}
		if first == "" {
			first = t
		}
		last = t
	}
	return first, last
}
