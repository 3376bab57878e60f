// Package textsfile edits the TypeScript translation definitions file.
//
// The file holds one type section and one value section per locale:
//
//	export type Texts = {
//	    save: NoParamString;
//	};
//
//	const texts_en: Texts = {
//	    save: "Save",
//	};
//
//	const texts_fr: Texts = {
//	    save: "Enregistrer",
//	};
//
// Edits are line splices located by scanning for the section headers and the
// closing "};" line. Nothing is parsed beyond "key: value" on a single line,
// and every line that is not inserted is written back byte-for-byte, so the
// line endings and the trailing newline survive untouched. An empty section
// may sit on its header line ("export type Texts = {};"); inserting into it
// moves the "};" to a line of its own.
package textsfile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/minios-linux/textkey/keyname"
)

var (
	// ErrDuplicateKey is returned by Insert when the key already exists.
	ErrDuplicateKey = errors.New("key already exists")
	// ErrInvalidKey is returned by Insert for keys that are not identifiers.
	ErrInvalidKey = errors.New("invalid key")
	// ErrNoSections is returned by Insert when none of the sections exist.
	ErrNoSections = errors.New("no translation sections found")
	// ErrUnterminatedSection is returned when a section header has no "};"
	// before the end of the file or the next section header.
	ErrUnterminatedSection = errors.New("section is not terminated by \"};\"")
)

// TypeSection is the section name used for the type declaration block.
const TypeSection = "type"

const sectionEnd = "};"

// ---------------------------------------------------------------------------
// Layout
// ---------------------------------------------------------------------------

// Layout describes the names used in the file.
type Layout struct {
	// TypeName is the declared type ("Texts").
	TypeName string
	// ValueType is the per-key type in the type section ("NoParamString").
	ValueType string
	// Locales lists the value sections in file order ("en", "fr").
	Locales []string
	// Indent is used when a section has no entry to copy indentation from.
	Indent string
}

// DefaultLayout returns the layout of a stock i18n.ts file.
func DefaultLayout() Layout {
	return Layout{
		TypeName:  "Texts",
		ValueType: "NoParamString",
		Locales:   []string{"en", "fr"},
		Indent:    "    ",
	}
}

// TypeHeader returns the marker line of the type section.
func (l Layout) TypeHeader() string {
	return "export type " + l.TypeName + " = {"
}

// LocaleHeader returns the marker line of a locale section.
func (l Layout) LocaleHeader(lang string) string {
	return "const texts_" + lang + ": " + l.TypeName + " = {"
}

func (l Layout) indent() string {
	if l.Indent == "" {
		return "    "
	}
	return l.Indent
}

// ---------------------------------------------------------------------------
// File model
// ---------------------------------------------------------------------------

// File is a translation definitions file split into lines. Lines keep a
// trailing "\r" when the file has one, so mixed line endings round-trip.
type File struct {
	lines  []string
	eol    string
	layout Layout
}

// Section is one block of the file.
type Section struct {
	// Name is TypeSection or a locale code.
	Name string
	// Header is the line index of the opening marker.
	Header int
	// End is the line index of the closing "};". It equals Header for an
	// empty section written on one line.
	End int
	// Keys holds the entry keys in document order.
	Keys []string
}

// Report describes the outcome of Insert.
type Report struct {
	// Inserted lists the sections that received the new key.
	Inserted []string
	// Missing lists sections that were not found in the file.
	Missing []string
}

// ParseFile reads a translation file from disk.
func ParseFile(path string, layout Layout) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data, layout), nil
}

// Parse splits data into lines. It never fails: a file without sections is
// still a File, it just cannot receive keys.
func Parse(data []byte, layout Layout) *File {
	lines := strings.Split(string(data), "\n")
	crlf := 0
	for _, ln := range lines[:len(lines)-1] {
		if strings.HasSuffix(ln, "\r") {
			crlf++
		}
	}
	eol := "\n"
	if crlf*2 > len(lines)-1 {
		eol = "\r\n"
	}
	return &File{lines: lines, eol: eol, layout: layout}
}

// Bytes returns the file content.
func (f *File) Bytes() []byte {
	return []byte(strings.Join(f.lines, "\n"))
}

// EOL returns the line ending used by most lines, and so by inserted ones.
func (f *File) EOL() string {
	return f.eol
}

// newLine terminates an inserted line the way most lines are terminated.
func (f *File) newLine(s string) string {
	if f.eol == "\r\n" {
		return s + "\r"
	}
	return s
}

// Layout returns the layout the file was parsed with.
func (f *File) Layout() Layout {
	return f.layout
}

// WriteFile writes the file, keeping the mode of an existing file.
func (f *File) WriteFile(path string) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, f.Bytes(), mode); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Section scanning
// ---------------------------------------------------------------------------

// sectionNames returns TypeSection followed by the locales.
func (f *File) sectionNames() []string {
	return append([]string{TypeSection}, f.layout.Locales...)
}

func (f *File) header(name string) string {
	if name == TypeSection {
		return f.layout.TypeHeader()
	}
	return f.layout.LocaleHeader(name)
}

// find locates a section. ok is false when the header is absent; err is
// set when the header exists but the section never closes.
func (f *File) find(name string) (sec Section, ok bool, err error) {
	marker := f.header(name)
	start := -1
	for i, ln := range f.lines {
		if strings.Contains(ln, marker) {
			start = i
			break
		}
	}
	if start < 0 {
		return Section{}, false, nil
	}

	sec = Section{Name: name, Header: start, End: -1}
	if _, rest, _ := strings.Cut(f.lines[start], marker); isInlineEnd(rest) {
		sec.End = start
		return sec, true, nil
	}
	for i := start + 1; i < len(f.lines); i++ {
		if strings.TrimSpace(f.lines[i]) == sectionEnd {
			sec.End = i
			break
		}
		if f.isHeader(f.lines[i]) {
			break
		}
		if k, isEntry := entryKey(f.lines[i]); isEntry {
			sec.Keys = append(sec.Keys, k)
		}
	}
	if sec.End < 0 {
		return Section{}, true, fmt.Errorf("%w: %s (line %d)", ErrUnterminatedSection, marker, start+1)
	}
	return sec, true, nil
}

// isInlineEnd reports whether the text after a header's "{" closes the
// section on the same line, as in "{};" or "{ } ;".
func isInlineEnd(rest string) bool {
	return strings.Join(strings.Fields(rest), "") == sectionEnd
}

// isHeader reports whether line opens any known section.
func (f *File) isHeader(line string) bool {
	for _, name := range f.sectionNames() {
		if strings.Contains(line, f.header(name)) {
			return true
		}
	}
	return false
}

// open rewrites a one-line empty section as a header line and a "};" line.
func (f *File) open(sec Section) {
	ln := f.lines[sec.Header]
	marker := f.header(sec.Name)
	at := strings.Index(ln, marker) + len(marker)
	indent := ln[:len(ln)-len(strings.TrimLeft(ln, " \t"))]
	cr := ""
	if strings.HasSuffix(ln, "\r") {
		cr = "\r"
	}
	f.lines[sec.Header] = ln[:at] + cr
	f.lines = splice(f.lines, sec.Header+1, indent+sectionEnd+cr)
}

// Sections returns every section present in the file, type section first.
func (f *File) Sections() ([]Section, error) {
	var out []Section
	for _, name := range f.sectionNames() {
		sec, ok, err := f.find(name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, sec)
		}
	}
	return out, nil
}

// Keys returns the keys declared in the type section.
func (f *File) Keys() []string {
	sec, ok, err := f.find(TypeSection)
	if !ok || err != nil {
		return nil
	}
	return sec.Keys
}

// Value returns the string literal assigned to key in a locale section.
func (f *File) Value(lang, key string) (string, bool) {
	sec, ok, err := f.find(lang)
	if !ok || err != nil {
		return "", false
	}
	for i := sec.Header + 1; i < sec.End; i++ {
		k, isEntry := entryKey(f.lines[i])
		if !isEntry || k != key {
			continue
		}
		_, rest, _ := strings.Cut(f.lines[i], ":")
		return unquote(rest), true
	}
	return "", false
}

// HasKey reports whether any section holds an entry named key.
func (f *File) HasKey(key string) bool {
	for _, name := range f.sectionNames() {
		sec, ok, err := f.find(name)
		if !ok || err != nil {
			continue
		}
		for _, k := range sec.Keys {
			if k == key {
				return true
			}
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Insertion
// ---------------------------------------------------------------------------

// Insert adds key to the type section and, with the matching value, to every
// locale section, keeping each section in alphabetical order.
func (f *File) Insert(key string, values map[string]string) (*Report, error) {
	if !keyname.Valid(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if f.HasKey(key) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
	}

	// Locate every section before touching anything so a malformed section
	// leaves the file unchanged.
	report := &Report{}
	var found []string
	for _, name := range f.sectionNames() {
		_, ok, err := f.find(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			report.Missing = append(report.Missing, name)
			continue
		}
		found = append(found, name)
	}
	if len(found) == 0 {
		return nil, ErrNoSections
	}

	// Each splice shifts later line indices, so sections are re-found.
	for _, name := range found {
		sec, _, _ := f.find(name)
		if sec.End == sec.Header {
			f.open(sec)
			sec, _, _ = f.find(name)
		}
		at := insertionPoint(f.lines, sec, key)
		f.lines = splice(f.lines, at, f.entryLine(sec, key, values[name]))
		report.Inserted = append(report.Inserted, name)
	}
	return report, nil
}

// insertionPoint returns the line index before which key belongs: the
// first entry whose key sorts after it, or the closing line.
func insertionPoint(lines []string, sec Section, key string) int {
	for i := sec.Header + 1; i < sec.End; i++ {
		k, isEntry := entryKey(lines[i])
		if !isEntry {
			continue
		}
		if key < k {
			return i
		}
	}
	return sec.End
}

func (f *File) entryLine(sec Section, key, value string) string {
	indent := f.sectionIndent(sec)
	if sec.Name == TypeSection {
		return f.newLine(indent + key + ": " + f.layout.ValueType + ";")
	}
	return f.newLine(indent + key + ": " + quote(value) + ",")
}

// sectionIndent copies the indentation of the first entry in the section.
func (f *File) sectionIndent(sec Section) string {
	for i := sec.Header + 1; i < sec.End; i++ {
		ln := f.lines[i]
		if _, isEntry := entryKey(ln); isEntry {
			return ln[:len(ln)-len(strings.TrimLeft(ln, " \t"))]
		}
	}
	return f.layout.indent()
}

func splice(lines []string, at int, line string) []string {
	lines = append(lines, "")
	copy(lines[at+1:], lines[at:])
	lines[at] = line
	return lines
}

// ---------------------------------------------------------------------------
// Line helpers
// ---------------------------------------------------------------------------

// entryKey extracts the key from a "key: value" line. Blank lines, comments
// and lines without a colon are not entries.
func entryKey(line string) (string, bool) {
	s := strings.TrimSpace(line)
	if s == "" || strings.HasPrefix(s, "//") || strings.HasPrefix(s, "/*") || strings.HasPrefix(s, "*") {
		return "", false
	}
	k, _, found := strings.Cut(s, ":")
	if !found {
		return "", false
	}
	k = strings.TrimSpace(k)
	k = strings.TrimSuffix(k, "?")
	if len(k) >= 2 && (k[0] == '"' || k[0] == '\'') && k[len(k)-1] == k[0] {
		k = k[1 : len(k)-1]
	}
	if k == "" {
		return "", false
	}
	return k, true
}

// quote renders s as a double-quoted TypeScript string literal.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// unquote reverses quote for the value part of an entry line (`"Save",`).
func unquote(rest string) string {
	s := strings.TrimSpace(rest)
	s = strings.TrimSuffix(s, ",")
	s = strings.TrimSuffix(s, ";")
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return s
	}
	q := s[0]
	if (q != '"' && q != '\'' && q != '`') || s[len(s)-1] != q {
		return s
	}
	s = s[1 : len(s)-1]

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
