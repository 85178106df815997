package asmgen

import (
	"io"

	"lstconv/internal/diag"
	"lstconv/internal/listing"
)

// sinkNames lists the distinct side output names in config order.
func (c *Converter) sinkNames() []string {
	var names []string
	seen := map[string]bool{}
	for _, w := range c.wins {
		if w.Sink == "" || seen[w.Sink] {
			continue
		}
		seen[w.Sink] = true
		names = append(names, w.Sink)
	}
	return names
}

// segmentOf returns the segment of the first window writing to name.
func (c *Converter) segmentOf(name string) string {
	for _, w := range c.wins {
		if w.Sink == name {
			return w.Segment
		}
	}
	return ""
}

func (c *Converter) needSinks() error {
	if c.sinks == nil {
		return diag.Configf("", "extraction windows name files but no output directory is set")
	}
	return nil
}

// openExtracts creates every side output with the preamble, forward
// declarations of the other output segments and the opening of its own.
func (c *Converter) openExtracts() error {
	names := c.sinkNames()
	if len(names) == 0 {
		return nil
	}
	if err := c.needSinks(); err != nil {
		return err
	}
	for _, name := range names {
		seg := c.segmentOf(name)
		f, err := c.sinks.Create(name)
		if err != nil {
			return err
		}
		for _, l := range c.cfg.Preamble {
			c.writeTo(f, l)
		}
		for _, s := range c.cfg.OutSegments {
			if s.Name == seg {
				continue
			}
			c.writeTo(f, s.Name+" segment byte public '"+s.Class+"'")
			c.writeTo(f, s.Name+" ends")
			c.writeTo(f, "")
		}
		c.writeTo(f, seg+" segment byte public 'CODE'")
		if err := f.Close(); err != nil {
			return diag.IOf("", "close extraction file %s: %v", name, err)
		}
	}
	return nil
}

// closeExtracts terminates every side output.
func (c *Converter) closeExtracts() error {
	for _, name := range c.sinkNames() {
		f, err := c.sinks.Append(name)
		if err != nil {
			return err
		}
		seg := c.segmentOf(name)
		c.writeTo(f, seg+" ends")
		c.writeTo(f, "end")
		if err := f.Close(); err != nil {
			return diag.IOf("", "close extraction file %s: %v", name, err)
		}
	}
	return nil
}

// openWindow activates the first window starting at this line.
func (c *Converter) openWindow(it listing.Item) error {
	for i := range c.wins {
		w := &c.wins[i]
		if !w.MatchStart(it.Segment, it.Offset, it.Instr) {
			continue
		}
		c.win = w
		c.res.Windows++
		if w.Sink == "" {
			c.dst = io.Discard
			c.debugf("%s: starting extraction on '%s', range [0x%x, 0x%x) to nowhere\n", it.Loc(), it.Instr, w.Begin, w.End)
			return nil
		}
		if err := c.needSinks(); err != nil {
			return err
		}
		f, err := c.sinks.Append(w.Sink)
		if err != nil {
			return err
		}
		c.side = f
		c.dst = f
		c.debugf("%s: starting extraction on '%s', range [0x%x, 0x%x) to %s\n", it.Loc(), it.Instr, w.Begin, w.End, w.Sink)
		return nil
	}
	return nil
}

func (c *Converter) checkWindowSegment(it listing.Item) error {
	if it.Segment != c.win.Segment {
		return diag.Structuralf(it.Loc(), "unexpected segment %s for extraction window in %s", it.Segment, c.win.Segment)
	}
	return nil
}

// closeWindow deactivates the current window and restores the primary
// output.
func (c *Converter) closeWindow() error {
	c.debugf("ending extraction [0x%x, 0x%x)\n", c.win.Begin, c.win.End)
	c.win = nil
	c.dst = c.out
	if c.side == nil {
		return nil
	}
	f := c.side
	c.side = nil
	if err := f.Close(); err != nil {
		return diag.IOf("", "close extraction file: %v", err)
	}
	return nil
}
