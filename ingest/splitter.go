package ingest

import (
	"strings"
	"unicode"
)

// Span is a half-open character range into the text being split.
type Span struct {
	Start int
	End   int
}

func (s Span) size() int { return s.End - s.Start }

// recursiveSplitter cuts text into spans no larger than chunkSize, preferring
// high-priority separators and only descending to lower-priority ones (and
// finally hard character windows) when a piece cannot otherwise fit.
// Consecutive spans share roughly overlap characters.
type recursiveSplitter struct {
	chunkSize  int
	overlap    int
	separators []string
	// hardBoundary marks positions that must start a span cleanly: no
	// overlap back-up reaches across a unit starting with it.
	hardBoundary string
}

func newRecursiveSplitter(chunkSize, overlap int, separators []string) *recursiveSplitter {
	if len(separators) == 0 {
		separators = []string{"\n\n", "\n", ". ", " "}
	}
	return &recursiveSplitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: separators,
	}
}

// Split returns trimmed, offset-accurate spans covering the text.
func (s *recursiveSplitter) Split(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	units := s.splitRange(text, 0, len(text), 0)
	merged := s.mergeUnits(text, units)
	out := make([]Span, 0, len(merged))
	for _, span := range merged {
		if trimmed, ok := trimSpan(text, span); ok {
			out = append(out, trimmed)
		}
	}
	return out
}

// splitRange produces spans each no larger than chunkSize, splitting at the
// given separator priority and recursing to the next priority for oversized
// pieces.
func (s *recursiveSplitter) splitRange(text string, start, end, sepIdx int) []Span {
	if end-start <= s.chunkSize {
		return []Span{{start, end}}
	}
	if sepIdx >= len(s.separators) {
		return s.hardWindows(text, start, end)
	}

	sep := s.separators[sepIdx]
	var pieces []Span
	if sep == s.hardBoundary && sep != "" {
		pieces = cutBeforeSeparator(text, start, end, sep)
	} else {
		pieces = cutAtSeparator(text, start, end, sep)
	}
	if len(pieces) <= 1 {
		return s.splitRange(text, start, end, sepIdx+1)
	}

	var units []Span
	for _, piece := range pieces {
		if piece.size() <= s.chunkSize {
			units = append(units, piece)
			continue
		}
		units = append(units, s.splitRange(text, piece.Start, piece.End, sepIdx+1)...)
	}
	return units
}

// cutAtSeparator splits [start,end) at every separator occurrence, keeping the
// separator attached to the preceding piece so spans tile the range exactly.
func cutAtSeparator(text string, start, end int, sep string) []Span {
	var pieces []Span
	pos := start
	for pos < end {
		idx := strings.Index(text[pos:end], sep)
		if idx < 0 {
			pieces = append(pieces, Span{pos, end})
			break
		}
		cut := pos + idx + len(sep)
		pieces = append(pieces, Span{pos, cut})
		pos = cut
	}
	return pieces
}

// cutBeforeSeparator splits [start,end) so each occurrence of sep starts a new
// piece. Used for hard boundaries, which belong to the text that follows them.
func cutBeforeSeparator(text string, start, end int, sep string) []Span {
	var pieces []Span
	pos := start
	search := start
	if strings.HasPrefix(text[start:end], sep) {
		search = start + len(sep)
	}
	for {
		idx := strings.Index(text[search:end], sep)
		if idx < 0 {
			pieces = append(pieces, Span{pos, end})
			break
		}
		cut := search + idx
		pieces = append(pieces, Span{pos, cut})
		pos = cut
		search = cut + len(sep)
	}
	return pieces
}

// hardWindows is the last resort for text with no usable separators.
func (s *recursiveSplitter) hardWindows(text string, start, end int) []Span {
	step := s.chunkSize - s.overlap
	if step <= 0 {
		step = s.chunkSize
	}
	var out []Span
	pos := start
	for pos < end {
		winEnd := alignRuneStart(text, pos+s.chunkSize)
		if winEnd >= end {
			out = append(out, Span{pos, end})
			break
		}
		out = append(out, Span{pos, winEnd})
		pos = alignRuneStart(text, pos+step)
	}
	return out
}

// mergeUnits greedily packs consecutive units into chunk-sized spans, backing
// each new span's start up by the overlap so neighbours share context.
func (s *recursiveSplitter) mergeUnits(text string, units []Span) []Span {
	if len(units) == 0 {
		return nil
	}
	var out []Span
	current := units[0]
	for _, unit := range units[1:] {
		if unit.End-current.Start <= s.chunkSize {
			current.End = unit.End
			continue
		}
		out = append(out, current)
		// Back up by the overlap, but never so far that the new span would
		// exceed the chunk size.
		back := s.overlap
		if avail := s.chunkSize - unit.size(); back > avail {
			back = avail
		}
		if back < 0 {
			back = 0
		}
		if s.hardBoundary != "" && strings.HasPrefix(text[unit.Start:], s.hardBoundary) {
			back = 0
		}
		nextStart := alignRuneStart(text, unit.Start-back)
		if nextStart < current.Start {
			nextStart = current.Start
		}
		current = Span{nextStart, unit.End}
	}
	out = append(out, current)
	return out
}

// alignRuneStart nudges a position forward to the nearest UTF-8 rune boundary.
func alignRuneStart(text string, pos int) int {
	if pos <= 0 {
		return 0
	}
	for pos < len(text) && text[pos]&0xC0 == 0x80 {
		pos++
	}
	return pos
}

// trimSpan shrinks a span to exclude leading and trailing whitespace so the
// recorded offsets match the chunk content exactly.
func trimSpan(text string, span Span) (Span, bool) {
	start, end := span.Start, span.End
	for start < end && unicode.IsSpace(rune(text[start])) {
		start++
	}
	for end > start && unicode.IsSpace(rune(text[end-1])) {
		end--
	}
	if start >= end {
		return Span{}, false
	}
	return Span{start, end}, true
}
