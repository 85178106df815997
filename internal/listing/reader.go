// Package listing tokenizes disassembler listings into items and classifies
// each item against the fixed catalog of recognized line shapes.
package listing

import (
	"bufio"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"lstconv/internal/diag"
)

// ErrNotRewindable is returned by Rewind when the input cannot seek.
var ErrNotRewindable = errors.New("listing: input is not rewindable")

const maxLineSize = 1 << 20

// Item is one listing line split into its fields.
type Item struct {
	Segment   string // empty for include-file lines
	Offset    int
	HasOffset bool
	Instr     string // whitespace-normalized instruction text
	Comment   string // comment text without the ';' delimiter, trimmed
	Line      int    // 1-based input line number
}

// Loc renders the item location for diagnostics.
func (it Item) Loc() string {
	if it.HasOffset {
		return diag.Loc(it.Segment, it.Offset)
	}
	if it.Line > 0 {
		return "line " + strconv.Itoa(it.Line)
	}
	return ""
}

// Source is a forward-only sequence of items. Next returns io.EOF after the
// last item.
type Source interface {
	Next() (Item, error)
}

var addrRe = regexp.MustCompile(`^([_a-zA-Z0-9]+):([0-9A-Fa-f]+)(.*)$`)

// Reader reads an IDA-style listing where every line starts with a
// segment:offset address. Lines without an address are skipped.
type Reader struct {
	src  io.Reader
	sc   *bufio.Scanner
	line int
}

// NewReader returns a Reader over cp437-encoded listing text.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{src: r}
	rd.reset()
	return rd
}

func (r *Reader) reset() {
	r.sc = bufio.NewScanner(charmap.CodePage437.NewDecoder().Reader(r.src))
	r.sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	r.line = 0
}

// Next returns the next addressed line.
func (r *Reader) Next() (Item, error) {
	for r.sc.Scan() {
		r.line++
		m := addrRe.FindStringSubmatch(r.sc.Text())
		if m == nil {
			continue
		}
		off, err := strconv.ParseInt(m[2], 16, 64)
		if err != nil {
			return Item{}, diag.Parsef("line "+strconv.Itoa(r.line), "bad offset %q", m[2])
		}
		it := splitLine(m[3])
		it.Segment = m[1]
		it.Offset = int(off)
		it.HasOffset = true
		it.Line = r.line
		return it, nil
	}
	if err := r.sc.Err(); err != nil {
		return Item{}, diag.IOf("line "+strconv.Itoa(r.line+1), "read listing: %v", err)
	}
	return Item{}, io.EOF
}

// Rewind restarts the sequence from the first line if the input can seek.
func (r *Reader) Rewind() error {
	s, ok := r.src.(io.Seeker)
	if !ok {
		return ErrNotRewindable
	}
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return err
	}
	r.reset()
	return nil
}

func splitLine(rest string) Item {
	instr, comment := SplitComment(rest)
	return Item{
		Instr:   Squeeze(instr),
		Comment: strings.TrimSpace(comment),
	}
}

// LineReader reads an unaddressed definition file (struct and enum layouts)
// line by line.
type LineReader struct {
	sc   *bufio.Scanner
	line int
}

// NewLineReader returns a LineReader over cp437-encoded text.
func NewLineReader(r io.Reader) *LineReader {
	sc := bufio.NewScanner(charmap.CodePage437.NewDecoder().Reader(r))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &LineReader{sc: sc}
}

// NextLine returns the next raw line and its 1-based number.
func (r *LineReader) NextLine() (string, int, error) {
	if r.sc.Scan() {
		r.line++
		return r.sc.Text(), r.line, nil
	}
	if err := r.sc.Err(); err != nil {
		return "", r.line, diag.IOf("line "+strconv.Itoa(r.line+1), "read definitions: %v", err)
	}
	return "", r.line, io.EOF
}

// StructReader yields the member lines of one struct definition from a
// LineReader, ending at the "<name> ends" line. Items carry no segment or
// offset.
type StructReader struct {
	lines *LineReader
	endRe *regexp.Regexp
	done  bool
}

// NewStructReader starts reading members of struct name. The struct header
// line must already have been consumed.
func NewStructReader(lines *LineReader, name string) *StructReader {
	return &StructReader{
		lines: lines,
		endRe: regexp.MustCompile(`^` + regexp.QuoteMeta(name) + `\s+ends\b`),
	}
}

func (r *StructReader) Next() (Item, error) {
	if r.done {
		return Item{}, io.EOF
	}
	for {
		raw, n, err := r.lines.NextLine()
		if err != nil {
			if err == io.EOF {
				r.done = true
				return Item{}, diag.Structuralf("line "+strconv.Itoa(n), "struct definition not terminated")
			}
			return Item{}, err
		}
		it := splitLine(raw)
		it.Line = n
		if r.endRe.MatchString(it.Instr) {
			r.done = true
			return Item{}, io.EOF
		}
		if it.Instr == "" && it.Comment == "" {
			continue
		}
		return it, nil
	}
}
