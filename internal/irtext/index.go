package irtext

import (
	"github.com/alecthomas/participle/v2/lexer"

	"attributor/internal/position"
)

// LineIndex maps a parsed source span back to the position.Position the
// engine seeded for it, built alongside Build by BuildIndexed. Spans can
// nest (a parameter's span sits inside its function's); Lookup returns the
// narrowest span containing the query point, the same "most specific
// enclosing node" rule a cursor-to-node hover lookup typically uses.
type LineIndex struct {
	entries []indexEntry
}

type indexEntry struct {
	start, end lexer.Position
	pos        position.Position
}

func (li *LineIndex) add(start, end lexer.Position, pos position.Position) {
	li.entries = append(li.entries, indexEntry{start: start, end: end, pos: pos})
}

// Lookup returns the narrowest recorded position.Position whose span
// contains (line, col), if any.
func (li *LineIndex) Lookup(line, col int) (position.Position, bool) {
	var best *indexEntry
	for i := range li.entries {
		e := &li.entries[i]
		if !spanContains(e.start, e.end, line, col) {
			continue
		}
		if best == nil || spanNarrower(e, best) {
			best = e
		}
	}
	if best == nil {
		return position.InvalidPosition, false
	}
	return best.pos, true
}

func spanContains(start, end lexer.Position, line, col int) bool {
	if line < start.Line || line > end.Line {
		return false
	}
	if line == start.Line && col < start.Column {
		return false
	}
	if line == end.Line && col > end.Column {
		return false
	}
	return true
}

func spanLen(e *indexEntry) int {
	return (e.end.Line-e.start.Line)*100000 + (e.end.Column - e.start.Column)
}

func spanNarrower(a, b *indexEntry) bool {
	return spanLen(a) < spanLen(b)
}
