// Package config holds the conversion settings for one listing: segment
// classes, location edits, extraction windows and output boilerplate.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"lstconv/internal/listing"
)

// Config is the typed, read-only view of a conversion config file.
type Config struct {
	// Preamble and Coda are written verbatim around the assembly output
	Preamble []string `json:"preamble,omitempty"`
	Coda     []string `json:"coda,omitempty"`

	// Include names a file copied verbatim after the preamble
	Include string `json:"include,omitempty"`

	InSegments   []string     `json:"in_segments,omitempty"`
	CodeSegments []string     `json:"code_segments,omitempty"`
	DataSegments []string     `json:"data_segments,omitempty"`
	OutSegments  []SegmentDef `json:"out_segments,omitempty"`

	// DataSize is the expected total size of all reconstructed variables
	DataSize Num `json:"data_size,omitempty"`

	Remove  []Location `json:"remove,omitempty"`
	Replace []Location `json:"replace,omitempty"`
	Insert  []Location `json:"insert,omitempty"`

	Extract []Window `json:"extract,omitempty"`
	BSS     []Region `json:"bss,omitempty"`

	// Preserves lists routines kept even when routine bodies are dropped
	Preserves []string `json:"preserves,omitempty"`
	Externs   []string `json:"externs,omitempty"`
	Publics   []string `json:"publics,omitempty"`

	HeaderPreamble Lines `json:"header_preamble,omitempty"`
	HeaderCoda     Lines `json:"header_coda,omitempty"`
}

// SegmentDef declares an output segment and its class. It is written as
// {"name": ..., "class": ...} or as a ["name", "class"] pair.
type SegmentDef struct {
	Name  string `json:"name"`
	Class string `json:"class"`
}

func (s *SegmentDef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var pair []string
		if err := json.Unmarshal(b, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("output segment %s: want [name, class]", b)
		}
		s.Name, s.Class = pair[0], pair[1]
		return nil
	}
	type plain SegmentDef
	return json.Unmarshal(b, (*plain)(s))
}

// Location is one configured edit rule.
type Location struct {
	Segment string `json:"seg"`
	Offset  Num    `json:"off"`
	From    string `json:"from,omitempty"`
	To      Lines  `json:"to,omitempty"`
}

// Window is one configured extraction window.
type Window struct {
	Segment string `json:"seg"`
	Begin   Num    `json:"begin"`
	End     Num    `json:"end"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	File    string `json:"file,omitempty"`
	Ported  *bool  `json:"ported,omitempty"`
}

// Region is a segment byte range.
type Region struct {
	Segment string `json:"seg"`
	Begin   Num    `json:"begin"`
	End     Num    `json:"end"`
}

// Num is an integer that may be written as a JSON number or as a string in
// decimal, 0x-prefixed or h-suffixed hex form.
type Num int

func (n *Num) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := listing.ParseNum(strings.TrimSpace(s))
		if err != nil {
			return err
		}
		*n = Num(v)
		return nil
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("number %s: %w", b, err)
	}
	*n = Num(v)
	return nil
}

// Lines is a list of text lines that may be written as a single string.
type Lines []string

func (l *Lines) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Lines{s}
		return nil
	}
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return err
	}
	*l = ss
	return nil
}

func (c *Config) IsInput(segment string) bool { return slices.Contains(c.InSegments, segment) }
func (c *Config) IsCode(segment string) bool  { return slices.Contains(c.CodeSegments, segment) }
func (c *Config) IsData(segment string) bool  { return slices.Contains(c.DataSegments, segment) }

// Preserved reports whether routine name is on the preserve list.
func (c *Config) Preserved(name string) bool { return slices.Contains(c.Preserves, name) }

// InBSS reports whether segment:offset falls inside a configured
// uninitialized region. Region ends are inclusive.
func (c *Config) InBSS(segment string, offset int) bool {
	for _, r := range c.BSS {
		if r.Segment == segment && offset >= int(r.Begin) && offset <= int(r.End) {
			return true
		}
	}
	return false
}

// EditKind is the action of a location edit.
type EditKind int

const (
	EditRemove EditKind = iota
	EditReplace
	EditInsert
)

func (k EditKind) String() string {
	switch k {
	case EditRemove:
		return "remove"
	case EditReplace:
		return "replace"
	case EditInsert:
		return "insert"
	}
	return "unknown"
}

// Edit is a location edit rule resolved from the config.
type Edit struct {
	Kind    EditKind
	Segment string
	Offset  int
	From    string   // empty matches any instruction at the location
	Tokens  []string // replacement or inserted lines
}

// Matches reports whether the edit applies to the given line.
func (e Edit) Matches(segment string, offset int, instr string) bool {
	if e.Segment != segment || e.Offset != offset {
		return false
	}
	return e.From == "" || e.From == instr
}

// Edits returns the edit rules grouped by kind in remove, replace, insert
// order, each group in config order.
func (c *Config) Edits() [][]Edit {
	groups := [][]Location{c.Remove, c.Replace, c.Insert}
	out := make([][]Edit, len(groups))
	for k, locs := range groups {
		for _, l := range locs {
			out[k] = append(out[k], Edit{
				Kind:    EditKind(k),
				Segment: l.Segment,
				Offset:  int(l.Offset),
				From:    listing.Squeeze(l.From),
				Tokens:  slices.Clone(l.To),
			})
		}
	}
	return out
}

// ExtractWindow is a resolved extraction window over [Begin, End).
type ExtractWindow struct {
	Segment   string
	Begin     int
	End       int
	StartText string // optional: instruction must contain it to open
	EndText   string // optional: instruction at End that closes the window
	Sink      string // destination file name, empty discards
	Ported    bool
}

// MatchStart reports whether the window opens on this line.
func (w ExtractWindow) MatchStart(segment string, offset int, instr string) bool {
	return w.Segment == segment && w.Begin == offset &&
		(w.StartText == "" || strings.Contains(instr, w.StartText))
}

// MatchEnd reports whether instr matches the end text.
func (w ExtractWindow) MatchEnd(instr string) bool {
	return w.EndText != "" && strings.Contains(instr, w.EndText)
}

// Size is the window length in bytes.
func (w ExtractWindow) Size() int { return w.End - w.Begin }

// Windows returns the extraction windows in config order.
func (c *Config) Windows() []ExtractWindow {
	out := make([]ExtractWindow, 0, len(c.Extract))
	for _, e := range c.Extract {
		ported := true
		if e.Ported != nil {
			ported = *e.Ported
		}
		out = append(out, ExtractWindow{
			Segment:   e.Segment,
			Begin:     int(e.Begin),
			End:       int(e.End),
			StartText: e.From,
			EndText:   e.To,
			Sink:      e.File,
			Ported:    ported,
		})
	}
	return out
}
