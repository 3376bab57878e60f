// Package document models an open text document the way editors address it:
// zero-based lines and UTF-16 character offsets.
package document

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
)

var (
	// ErrOverlappingEdits is returned by ApplyEdits when two edits touch the
	// same span.
	ErrOverlappingEdits = errors.New("overlapping edits")
	// ErrBadRange is returned by ParseRange for malformed input.
	ErrBadRange = errors.New("malformed range")
)

// Position is a zero-based line and UTF-16 character offset.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p comes strictly before q.
func (p Position) Before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Character < q.Character
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line+1, p.Character+1)
}

// Range is a half-open span between two positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Empty reports whether the range selects nothing.
func (r Range) Empty() bool {
	return r.Start == r.End
}

// Normalized returns r with Start before End.
func (r Range) Normalized() Range {
	if r.End.Before(r.Start) {
		return Range{Start: r.End, End: r.Start}
	}
	return r
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// LineEnd is a character offset past the end of any line. Offset clamps it
// to the line length.
const LineEnd = math.MaxInt32

// Edit replaces Range with NewText.
type Edit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// Document is an in-memory text buffer.
type Document struct {
	URI        string
	LanguageID string

	text  string
	lines []string
	// starts holds the byte offset of each line.
	starts []int
}

// New creates a document.
func New(uri, languageID, text string) *Document {
	d := &Document{URI: uri, LanguageID: languageID}
	d.setText(text)
	return d
}

func (d *Document) setText(text string) {
	d.text = text
	d.lines = nil
	d.starts = nil
	start := 0
	for {
		i := strings.IndexByte(text[start:], '\n')
		if i < 0 {
			d.starts = append(d.starts, start)
			d.lines = append(d.lines, text[start:])
			break
		}
		end := start + i
		d.starts = append(d.starts, start)
		d.lines = append(d.lines, strings.TrimSuffix(text[start:end], "\r"))
		start = end + 1
	}
}

// Text returns the whole content.
func (d *Document) Text() string { return d.text }

// Lines returns the lines without their terminators.
func (d *Document) Lines() []string { return d.lines }

// LineCount returns the number of lines.
func (d *Document) LineCount() int { return len(d.lines) }

// Line returns line i, or "" when out of range.
func (d *Document) Line(i int) string {
	if i < 0 || i >= len(d.lines) {
		return ""
	}
	return d.lines[i]
}

// EOL returns "\r\n" when the document uses CRLF, "\n" otherwise.
func (d *Document) EOL() string {
	if strings.Contains(d.text, "\r\n") {
		return "\r\n"
	}
	return "\n"
}

// Offset converts a position to a byte offset. Positions past the end of a
// line clamp to the line end; lines past the end clamp to the text end.
func (d *Document) Offset(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(d.lines) {
		return len(d.text)
	}
	return d.starts[pos.Line] + ByteIndex(d.lines[pos.Line], pos.Character)
}

// PositionAt converts a byte offset to a position.
func (d *Document) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(d.text) {
		offset = len(d.text)
	}
	line := sort.Search(len(d.starts), func(i int) bool { return d.starts[i] > offset }) - 1
	col := offset - d.starts[line]
	if col > len(d.lines[line]) {
		col = len(d.lines[line])
	}
	return Position{Line: line, Character: UTF16Len(d.lines[line][:col])}
}

// Trim shrinks r so it neither starts nor ends with whitespace. A range
// holding only whitespace collapses to its trimmed start.
func (d *Document) Trim(r Range) Range {
	r = r.Normalized()
	start, end := d.Offset(r.Start), d.Offset(r.End)
	sel := d.text[start:end]
	rest := strings.TrimLeftFunc(sel, unicode.IsSpace)
	start += len(sel) - len(rest)
	end = start + len(strings.TrimRightFunc(rest, unicode.IsSpace))
	return Range{Start: d.PositionAt(start), End: d.PositionAt(end)}
}

// TextIn returns the text covered by r.
func (d *Document) TextIn(r Range) string {
	r = r.Normalized()
	return d.text[d.Offset(r.Start):d.Offset(r.End)]
}

// ApplyEdits applies non-overlapping edits and returns the resulting text.
// The document itself is not modified.
func (d *Document) ApplyEdits(edits []Edit) (string, error) {
	type span struct {
		start, end int
		text       string
	}
	spans := make([]span, 0, len(edits))
	for _, e := range edits {
		r := e.Range.Normalized()
		spans = append(spans, span{d.Offset(r.Start), d.Offset(r.End), e.NewText})
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			return "", fmt.Errorf("%w: %s and %s", ErrOverlappingEdits,
				d.PositionAt(spans[i-1].start), d.PositionAt(spans[i].start))
		}
	}

	out := d.text
	for i := len(spans) - 1; i >= 0; i-- {
		s := spans[i]
		out = out[:s.start] + s.text + out[s.end:]
	}
	return out, nil
}

// Change applies an incremental content change in place.
func (d *Document) Change(r Range, text string) {
	r = r.Normalized()
	start, end := d.Offset(r.Start), d.Offset(r.End)
	d.setText(d.text[:start] + text + d.text[end:])
}

// Replace swaps the whole content.
func (d *Document) Replace(text string) {
	d.setText(text)
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// ByteIndex converts a UTF-16 offset within s to a byte offset, clamping to
// len(s). An offset landing inside a surrogate pair rounds up.
func ByteIndex(s string, units int) int {
	if units <= 0 {
		return 0
	}
	n := 0
	for i, r := range s {
		if n >= units {
			return i
		}
		n += utf16.RuneLen(r)
	}
	return len(s)
}

// ParseRange parses the one-based "L:C-L:C" notation used on the command
// line. A bare "L" selects the content of that line without its line break.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{}, fmt.Errorf("%w: empty", ErrBadRange)
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 {
			return Range{}, fmt.Errorf("%w: line %d", ErrBadRange, n)
		}
		return Range{Start: Position{Line: n - 1}, End: Position{Line: n - 1, Character: LineEnd}}, nil
	}

	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q (want L:C-L:C)", ErrBadRange, s)
	}
	start, err := parsePosition(from)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: %v", ErrBadRange, s, err)
	}
	end, err := parsePosition(to)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: %v", ErrBadRange, s, err)
	}
	return Range{Start: start, End: end}.Normalized(), nil
}

func parsePosition(s string) (Position, error) {
	l, c, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Position{}, fmt.Errorf("missing column in %q", s)
	}
	line, err := strconv.Atoi(l)
	if err != nil || line < 1 {
		return Position{}, fmt.Errorf("bad line %q", l)
	}
	col, err := strconv.Atoi(c)
	if err != nil || col < 1 {
		return Position{}, fmt.Errorf("bad column %q", c)
	}
	return Position{Line: line - 1, Character: col - 1}, nil
}

// LanguageFromPath guesses an LSP language identifier from a file name.
func LanguageFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vue":
		return "vue"
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".tsx":
		return "typescriptreact"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	case ".jsx":
		return "javascriptreact"
	case ".html", ".htm":
		return "html"
	case ".svelte":
		return "svelte"
	default:
		return "plaintext"
	}
}
