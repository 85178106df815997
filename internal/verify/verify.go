// Package verify cross-checks the independently accumulated size counters of
// a data reconstruction pass.
package verify

import (
	"fmt"
	"io"

	"lstconv/internal/diag"
	"lstconv/internal/listing"
)

// Counters holds the running byte counts of one pass. Offsets are compared
// relative to the counter values at the start of the current segment.
type Counters struct {
	data    int // bytes contributed by parsed data lines
	vars    int // bytes of closed variables
	prev    int // last checked listing offset
	segment string
	dataAt  int // data counter when the segment began
	started bool
	varSeg  string
	varsAt  int // variable counter when varSeg began
	debug   io.Writer
}

// New returns zeroed counters. debug may be nil.
func New(debug io.Writer) *Counters {
	return &Counters{debug: debug}
}

func (c *Counters) debugf(format string, args ...any) {
	if c.debug != nil {
		fmt.Fprintf(c.debug, format, args...)
	}
}

// Data is the running data byte counter.
func (c *Counters) Data() int { return c.data }

// Vars is the running closed-variable byte counter.
func (c *Counters) Vars() int { return c.vars }

// enter rebases the counters when the listing moves to another segment.
func (c *Counters) enter(segment string) {
	if c.started && segment == c.segment {
		return
	}
	c.segment = segment
	c.dataAt = c.data
	c.prev = 0
	c.started = true
}

// Checkpoint is called for every data line before it is processed. When the
// listing offset is present, non-zero and different from the previous
// checkpoint, the data counter must equal it.
func (c *Counters) Checkpoint(it listing.Item) error {
	if !it.HasOffset {
		return nil
	}
	c.enter(it.Segment)
	off := it.Offset
	c.debugf("checking data size %s against offset %s (prev %s)\n",
		listing.Hex(c.data-c.dataAt), listing.Hex(off), listing.Hex(c.prev))
	if off == 0 || off == c.prev {
		return nil
	}
	if got := c.data - c.dataAt; got != off {
		return diag.Structuralf(it.Loc(), "summed up data size %s does not agree with offset %s",
			listing.Hex(got), listing.Hex(off))
	}
	c.prev = off
	return nil
}

// AddData records n bytes of parsed data.
func (c *Counters) AddData(n int) {
	c.data += n
	c.debugf("added %s bytes of data, total now %s\n", listing.Hex(n), listing.Hex(c.data))
}

// CloseVariable records a closed variable of size bytes that began at
// segment:varOffset. it is the line that caused the close; when it lies in
// the same segment at a different offset, the variable counter must match it.
func (c *Counters) CloseVariable(size int, segment string, varOffset int, it listing.Item) error {
	if segment != c.varSeg || c.vars == 0 {
		c.varSeg = segment
		c.varsAt = c.vars
	}
	c.vars += size
	c.debugf("closed variable of %s bytes, total now %s\n", listing.Hex(size), listing.Hex(c.vars))
	if !it.HasOffset || it.Segment != segment || it.Offset == 0 || it.Offset == varOffset {
		return nil
	}
	if got := c.vars - c.varsAt; got != it.Offset {
		return diag.Structuralf(it.Loc(), "summed up variable size %s does not agree with offset %s",
			listing.Hex(got), listing.Hex(it.Offset))
	}
	return nil
}

// Finish checks the final totals: the sum of all variable sizes must equal
// the data counter and the expected size.
func (c *Counters) Finish(varTotal, expected int) error {
	if varTotal != c.data {
		return diag.Structuralf("", "accumulated data size %s different than running total %s",
			listing.Hex(varTotal), listing.Hex(c.data))
	}
	if varTotal != expected {
		return diag.Structuralf("", "accumulated data size %s different than expected %s",
			listing.Hex(varTotal), listing.Hex(expected))
	}
	return nil
}
