// Package asmgen converts a listing into assembly source that reassembles to
// the original binary, routing configured ranges into extraction files.
package asmgen

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"lstconv/internal/config"
	"lstconv/internal/diag"
	"lstconv/internal/fixup"
	"lstconv/internal/listing"
)

// Options selects the routine processing mode.
type Options struct {
	Stub       bool      // drop routine bodies, keep a near return
	NoProc     bool      // drop routines entirely
	NoPreserve bool      // ignore the preserve list
	Include    io.Reader // cp437 text copied after the declarations
	Debug      io.Writer // nil = silent
}

// Result summarizes a conversion.
type Result struct {
	Written  []string // routines whose end marker was reached
	Missing  []string // preserved routines never written
	Windows  int      // extraction windows opened
	Fixups   int      // byte-exact corrections applied
	Bytes    int64    // bytes written to the primary output
	Warnings []string
}

var (
	segBanner = "; " + strings.Repeat("=", 78)
	procRule  = strings.Repeat("-", 30)
)

// Converter holds the state of one conversion run.
type Converter struct {
	cfg   *config.Config
	opts  Options
	sinks Sinks

	out   *countWriter
	dst   io.Writer // current destination: out, a side file or io.Discard
	win   *config.ExtractWindow
	side  io.WriteCloser
	proc  string
	edits [][]config.Edit
	wins  []config.ExtractWindow
	syms  []symbol
	res   Result
	werr  error // first write error
}

type symbol struct {
	name string
	re   *regexp.Regexp
}

type countWriter struct {
	w io.Writer
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// New returns a converter writing to w. sinks may be nil when no window
// names a file.
func New(w io.Writer, cfg *config.Config, sinks Sinks, opts Options) *Converter {
	c := &Converter{
		cfg:   cfg,
		opts:  opts,
		sinks: sinks,
		out:   &countWriter{w: w},
		edits: cfg.Edits(),
		wins:  cfg.Windows(),
	}
	c.dst = c.out
	for _, s := range slices.Concat(cfg.Publics, cfg.Externs) {
		c.syms = append(c.syms, symbol{
			name: s,
			re:   regexp.MustCompile(`(^|[^_a-zA-Z0-9@$])` + regexp.QuoteMeta(s) + `($|[^_a-zA-Z0-9@$])`),
		})
	}
	return c
}

func (c *Converter) debugf(format string, args ...any) {
	if c.opts.Debug != nil {
		fmt.Fprintf(c.opts.Debug, format, args...)
	}
}

// Convert runs the whole conversion of src. On error an open extraction
// file is closed with what was written so far.
func (c *Converter) Convert(src listing.Source) (_ *Result, err error) {
	defer func() {
		if err != nil && c.side != nil {
			c.side.Close()
			c.side = nil
		}
	}()
	if err := c.openExtracts(); err != nil {
		return nil, err
	}
	if err := c.header(); err != nil {
		return nil, err
	}
	for {
		it, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := c.step(it); err != nil {
			return nil, diag.At(err, it.Loc())
		}
	}
	if c.proc != "" {
		return nil, diag.Structuralf("", "unclosed routine at end of input: %s", c.proc)
	}
	if c.win != nil {
		if err := c.closeWindow(); err != nil {
			return nil, err
		}
	}
	if err := c.closeExtracts(); err != nil {
		return nil, err
	}
	for _, l := range c.cfg.Coda {
		c.writeTo(c.out, l)
	}
	c.res.Bytes = c.out.n
	if c.werr != nil {
		return nil, diag.IOf("", "write output: %v", c.werr)
	}
	if c.out.n == 0 {
		return nil, diag.Configf("", "output is empty, broken config?")
	}
	if !c.opts.NoPreserve {
		for _, p := range c.cfg.Preserves {
			if !slices.Contains(c.res.Written, p) {
				c.res.Missing = append(c.res.Missing, p)
				c.res.Warnings = append(c.res.Warnings, "preserved routine not written to output: "+p)
			}
		}
	}
	return &c.res, nil
}

func (c *Converter) writeTo(w io.Writer, line string) {
	if _, err := io.WriteString(w, line+"\n"); err != nil && c.werr == nil {
		c.werr = err
	}
}

// header writes the preamble, symbol declarations and the include file.
func (c *Converter) header() error {
	for _, l := range c.cfg.Preamble {
		c.writeTo(c.out, l)
	}
	for _, e := range c.cfg.Externs {
		c.writeTo(c.out, "EXTRN _"+e+":PROC")
	}
	for _, p := range c.cfg.Publics {
		if c.opts.NoPreserve && c.cfg.Preserved(p) {
			continue
		}
		c.writeTo(c.out, "PUBLIC _"+p)
	}
	if c.opts.Include != nil {
		if _, err := io.Copy(c.out, charmap.CodePage437.NewDecoder().Reader(c.opts.Include)); err != nil {
			return diag.IOf("", "copy include file: %v", err)
		}
	}
	return nil
}

func (c *Converter) step(it listing.Item) error {
	if !c.cfg.IsInput(it.Segment) || it.Instr == "" {
		return nil
	}
	instr := it.Instr
	lines := []string{instr}
	skip := false
	if c.cfg.IsCode(it.Segment) {
		var err error
		if skip, lines, err = c.routineMode(it, lines); err != nil {
			return err
		}
	}

	if c.win != nil && (it.Offset > c.win.End || (it.Offset == c.win.End && c.win.EndText == "")) {
		if err := c.checkWindowSegment(it); err != nil {
			return err
		}
		if err := c.closeWindow(); err != nil {
			return err
		}
	}
	if c.win == nil {
		if err := c.openWindow(it); err != nil {
			return err
		}
	}

	comment := listing.TweakComment(it.Comment)
	kind, tokens, err := c.matchEdit(it)
	if err != nil {
		return err
	}
	switch kind {
	case config.EditRemove:
		skip = true
	case config.EditReplace:
		comment = joinComment(comment, instr)
		lines = tokens
	case config.EditInsert:
		lines = append(lines, tokens...)
	}

	if !skip {
		lines = c.prefixSymbols(instr, lines)
		if kind != config.EditReplace {
			var corrected bool
			if lines, corrected, err = c.correct(it, lines); err != nil {
				return err
			}
			if corrected {
				comment = joinComment(comment, instr)
			}
		}
		c.emit(it, lines, comment)
	}

	if c.win != nil && it.Offset == c.win.End && c.win.MatchEnd(instr) {
		if err := c.checkWindowSegment(it); err != nil {
			return err
		}
		return c.closeWindow()
	}
	return nil
}

// routineMode applies the stub, noproc and preserve rules to a code line.
func (c *Converter) routineMode(it listing.Item, lines []string) (bool, []string, error) {
	sh, err := listing.Classify(it)
	if err != nil {
		return false, nil, err
	}
	drop := func(name string) bool {
		return c.opts.NoPreserve || !c.cfg.Preserved(name)
	}
	switch sh.Kind {
	case listing.ShapeRoutineStart:
		if c.proc != "" {
			return false, nil, diag.Structuralf(it.Loc(), "start of routine %s while %s not closed", sh.Name, c.proc)
		}
		c.proc = sh.Name
		if c.opts.NoProc && drop(c.proc) {
			c.debugf("ignoring start of non-preserved routine %s\n", c.proc)
			return true, lines, nil
		}
	case listing.ShapeRoutineEnd:
		if c.proc == "" {
			return false, nil, diag.Structuralf(it.Loc(), "end of routine %s while not inside a routine", sh.Name)
		}
		if sh.Name != c.proc {
			return false, nil, diag.Structuralf(it.Loc(), "end of routine %s while inside routine %s", sh.Name, c.proc)
		}
		skip := false
		if c.opts.NoProc && drop(c.proc) {
			skip = true
		} else if c.opts.Stub && drop(c.proc) {
			lines = append([]string{"retn"}, lines...)
		}
		c.res.Written = append(c.res.Written, c.proc)
		c.proc = ""
		return skip, lines, nil
	default:
		if c.proc == "" {
			instr := it.Instr
			if c.opts.NoProc || !(strings.Contains(instr, "segment") || strings.Contains(instr, "ends") || listing.IsData(instr)) {
				c.debugf("ignoring instruction outside routine: %s\n", instr)
				return true, lines, nil
			}
		} else if (c.opts.Stub || c.opts.NoProc) && drop(c.proc) {
			return true, lines, nil
		}
	}
	return false, lines, nil
}

// matchEdit finds the edit for a line. Each kind's rules are scanned in
// order; a line matched by rules of two kinds is an error. It returns -1
// when nothing matches.
func (c *Converter) matchEdit(it listing.Item) (config.EditKind, []string, error) {
	kind := config.EditKind(-1)
	var tokens []string
	for _, group := range c.edits {
		for _, e := range group {
			if !e.Matches(it.Segment, it.Offset, it.Instr) {
				continue
			}
			if kind >= 0 {
				return kind, nil, diag.Structuralf(it.Loc(), "location matched to %s while previously marked for %s", e.Kind, kind)
			}
			c.debugf("matched location to %s: %v\n", e.Kind, e.Tokens)
			kind, tokens = e.Kind, e.Tokens
			break
		}
	}
	return kind, tokens, nil
}

// prefixSymbols adds the C underscore to public and extern names found as
// tokens of instr, except in equates.
func (c *Converter) prefixSymbols(instr string, lines []string) []string {
	if len(c.syms) == 0 {
		return lines
	}
	toks := listing.Tokens(instr)
	for i, tok := range toks {
		if i+1 < len(toks) && toks[i+1] == "=" {
			continue
		}
		for _, s := range c.syms {
			if tok != s.name {
				continue
			}
			out := make([]string, len(lines))
			for j, l := range lines {
				out[j] = s.re.ReplaceAllString(l, "${1}_"+s.name+"${2}")
			}
			lines = out
		}
	}
	return lines
}

// correct applies alignment padding and the byte-exact instruction
// rewrites to the first line. It reports whether the line was rewritten.
func (c *Converter) correct(it listing.Item, lines []string) ([]string, bool, error) {
	sh, err := listing.Classify(it)
	if err != nil {
		return nil, false, err
	}
	if sh.Kind == listing.ShapeAlign {
		pad := (sh.Count - it.Offset%sh.Count) % sh.Count
		fill := ""
		switch {
		case c.cfg.IsCode(it.Segment):
			fill = "nop"
		case c.cfg.IsData(it.Segment) && c.cfg.InBSS(it.Segment, it.Offset):
			fill = "db ?"
		case c.cfg.IsData(it.Segment):
			fill = "db 0"
		default:
			return lines, false, nil
		}
		out := make([]string, pad, pad+len(lines)-1)
		for i := range out {
			out[i] = fill
		}
		return append(out, lines[1:]...), true, nil
	}
	f, ok, err := fixup.Apply(it.Instr)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return lines, false, nil
	}
	c.res.Fixups++
	c.debugf("%s: %s\n", it.Loc(), f)
	return append(slices.Clone(f.Lines), lines[1:]...), true, nil
}

// emit writes lines with boundary banners and indentation. The comment goes
// on the first line.
func (c *Converter) emit(it listing.Item, lines []string, comment string) {
	procBanner := "; " + procRule + diag.Loc(it.Segment, it.Offset) + procRule
	for i, l := range lines {
		indent := true
		switch {
		case strings.Contains(l, "segment") || strings.Contains(l, ".CODE") ||
			strings.Contains(l, ".DATA") || strings.Contains(l, ".STACK"):
			c.writeTo(c.dst, segBanner)
			indent = false
		case strings.Contains(l, "proc"):
			c.writeTo(c.dst, procBanner)
			indent = false
		case listing.IsData(l) || strings.Contains(l, "ends") || strings.Contains(l, "endp") || listing.IsLabel(l):
			indent = false
		}
		text := l
		if indent {
			text = "    " + text
		}
		if i == 0 && comment != "" {
			text += " ;" + comment
		}
		c.writeTo(c.dst, text)
		switch {
		case strings.Contains(l, "ends"):
			c.writeTo(c.dst, segBanner)
		case strings.Contains(l, "endp"):
			c.writeTo(c.dst, procBanner)
		}
	}
}

func joinComment(comment, instr string) string {
	if comment == "" {
		return instr
	}
	return comment + " " + instr
}
