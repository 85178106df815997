// Package reconstruct drives a listing through the pattern catalog and builds
// the routine and variable inventory of the binary.
package reconstruct

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"lstconv/internal/config"
	"lstconv/internal/diag"
	"lstconv/internal/entity"
	"lstconv/internal/listing"
	"lstconv/internal/value"
	"lstconv/internal/verify"
)

// Options controls a reconstruction pass.
type Options struct {
	Debug io.Writer // nil = silent
}

// Result is the inventory built by one pass.
type Result struct {
	Routines  []*entity.Routine
	Variables []*entity.Variable
	Ignored   int // startup and library routines skipped
	TotalData int // bytes accumulated from data lines

	counters *verify.Counters
}

// VarSize is the summed size of all variables.
func (r *Result) VarSize() int {
	n := 0
	for _, v := range r.Variables {
		n += v.Size()
	}
	return n
}

// Empty reports whether the pass found neither routines nor variables.
func (r *Result) Empty() bool {
	return len(r.Routines) == 0 && len(r.Variables) == 0
}

// Verify checks the final size totals against the running data counter and
// the expected data size.
func (r *Result) Verify(expected int) error {
	return r.counters.Finish(r.VarSize(), expected)
}

// IgnoredRoutine reports whether a routine is startup or C library code.
func IgnoredRoutine(name string) bool {
	return name == "start" || strings.HasPrefix(name, "_")
}

var callRe = regexp.MustCompile(`^(?:call|jmp)\s+(?:(?:near|far|short)\s+)?(?:ptr\s+)?([_a-zA-Z@$][_a-zA-Z0-9@$]*)$`)

// decl is a secret header declaration waiting for its variable.
type decl struct {
	segment string
	offset  int
	text    string
}

// pass is the per-run state of one listing walk.
type pass struct {
	cfg     *config.Config
	structs entity.Structs
	opts    Options
	res     *Result

	sub *entity.Routine
	v   *entity.Variable

	proto    string
	protoSeg string
	protoOff int
	pending  *decl
}

func debugf(w io.Writer, format string, args ...any) {
	if w != nil {
		fmt.Fprintf(w, format, args...)
	}
}

func (p *pass) debugf(format string, args ...any) { debugf(p.opts.Debug, format, args...) }

// Parse walks src once. structs resolves struct-typed data and may be empty.
// Lines without a segment are treated as data.
func Parse(src listing.Source, cfg *config.Config, structs entity.Structs, opts Options) (*Result, error) {
	p := &pass{
		cfg:     cfg,
		structs: structs,
		opts:    opts,
		res:     &Result{counters: verify.New(opts.Debug)},
	}
	for {
		it, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if err := p.step(it); err != nil {
			return nil, diag.At(err, it.Loc())
		}
	}
	if p.v != nil {
		p.v.Close()
		p.res.Variables = append(p.res.Variables, p.v)
		p.v = nil
	}
	if p.sub != nil {
		return nil, diag.Structuralf(diag.Loc(p.sub.Segment, p.sub.Start), "unclosed routine at end of input: %s", p.sub.Name)
	}
	p.res.TotalData = p.res.counters.Data()
	return p.res, nil
}

func (p *pass) step(it listing.Item) error {
	if it.Segment != "" && !p.cfg.IsInput(it.Segment) {
		return nil
	}
	sh, err := listing.Classify(it)
	if err != nil {
		return err
	}
	switch {
	case it.Segment != "" && p.cfg.IsCode(it.Segment):
		return p.code(it, sh)
	case it.Segment == "" || p.cfg.IsData(it.Segment):
		// a variable never spans segments
		if p.v != nil && it.Segment != "" && it.Segment != p.v.Segment {
			if err := p.closeVar(it); err != nil {
				return err
			}
		}
		if err := p.res.counters.Checkpoint(it); err != nil {
			return err
		}
		return p.data(it, sh)
	}
	p.debugf("unknown line ignored: %s\n", it.Instr)
	return nil
}

func (p *pass) code(it listing.Item, sh listing.Shape) error {
	switch sh.Kind {
	case listing.ShapeRoutineStart:
		if IgnoredRoutine(sh.Name) {
			p.res.Ignored++
			return nil
		}
		if p.sub != nil {
			return diag.Structuralf(it.Loc(), "start of routine %s while %s not closed", sh.Name, p.sub.Name)
		}
		p.sub = entity.NewRoutine(sh.Name, sh.Type, it.Segment, it.Offset)
		if c := listing.TweakComment(it.Comment); c != "" {
			p.sub.Comments = append(p.sub.Comments, c)
		}
		p.sub.Comments = append(p.sub.Comments, fmt.Sprintf("==== %s ====", it.Loc()))
		if p.proto != "" && p.protoSeg == it.Segment && p.protoOff == it.Offset {
			p.sub.Prototype = p.proto
		}
		p.debugf("opened routine %s\n", sh.Name)
	case listing.ShapeRoutineEnd:
		if IgnoredRoutine(sh.Name) {
			return nil
		}
		if p.sub == nil || p.sub.Name != sh.Name {
			return diag.Structuralf(it.Loc(), "end of routine %s while not open", sh.Name)
		}
		if err := p.sub.Close(it.Offset); err != nil {
			return err
		}
		p.debugf("closed routine %s, size = %s\n", p.sub.Name, listing.Hex(p.sub.Size()))
		p.res.Routines = append(p.res.Routines, p.sub)
		p.sub = nil
	case listing.ShapePrototype:
		p.proto, p.protoSeg, p.protoOff = sh.Value, it.Segment, it.Offset
		p.debugf("prototype: %s\n", sh.Value)
	case listing.ShapeCollapsed:
		if IgnoredRoutine(sh.Name) {
			p.res.Ignored++
			return nil
		}
		if p.sub != nil {
			return diag.Structuralf(it.Loc(), "collapsed routine %s while %s not closed", sh.Name, p.sub.Name)
		}
		r := entity.NewRoutine(sh.Name, "near", it.Segment, it.Offset)
		r.Comments = []string{fmt.Sprintf("==== %s ====", it.Loc())}
		if err := r.Close(it.Offset + sh.Count); err != nil {
			return err
		}
		p.debugf("collapsed routine %s, size = %s\n", sh.Name, listing.Hex(sh.Count))
		p.res.Routines = append(p.res.Routines, r)
	default:
		if it.Instr == "" {
			return nil
		}
		if p.sub != nil {
			if m := callRe.FindStringSubmatch(it.Instr); m != nil {
				p.sub.AddCall(m[1])
			}
			return nil
		}
		if n := len(p.res.Routines); n > 0 && !p.res.Routines[n-1].IsBoundary() &&
			(it.Instr == "nop" || it.Instr == "db 0") {
			p.debugf("code outside of routine at %s: %s\n", it.Loc(), it.Instr)
			p.res.Routines = append(p.res.Routines, entity.NewRoutine("", "", it.Segment, it.Offset))
		}
	}
	return nil
}

func (p *pass) data(it listing.Item, sh listing.Shape) error {
	switch sh.Kind {
	case listing.ShapeSecret:
		p.secret(it, sh.Value)
	case listing.ShapeNamedData:
		r, err := value.Parse(sh.Value, p.structs)
		if err != nil {
			return err
		}
		if err := p.closeVar(it); err != nil {
			return err
		}
		size := entity.ItemSize(sh.Type)
		v := entity.NewVariable(sh.Name, it.Segment, it.Offset, size, nil)
		if !v.Append(r.Values, r.Count, r.Tag, size, "") {
			return diag.Parsef(it.Loc(), "data rejected by new variable %s", sh.Name)
		}
		p.open(v, it, r.Note)
		p.res.counters.AddData(r.Count * size)
	case listing.ShapeData:
		r, err := value.Parse(sh.Value, p.structs)
		if err != nil {
			return err
		}
		size := entity.ItemSize(sh.Type)
		if p.v == nil || !p.v.Append(r.Values, r.Count, r.Tag, size, "") {
			p.debugf("creating dummy variable at %s\n", it.Loc())
			if err := p.closeVar(it); err != nil {
				return err
			}
			name := fmt.Sprintf("%s_%s_%x", it.Segment, entity.TypeName(sh.Type), it.Offset)
			v := entity.NewVariable(name, it.Segment, it.Offset, size, nil)
			v.Dummy = true
			if !v.Append(r.Values, r.Count, r.Tag, size, "") {
				return diag.Parsef(it.Loc(), "data rejected by new dummy variable %s", name)
			}
			p.open(v, it, r.Note)
		}
		p.res.counters.AddData(r.Count * size)
	case listing.ShapeCollapsed:
		if err := p.closeVar(it); err != nil {
			return err
		}
		v := entity.NewVariable(sh.Name, it.Segment, it.Offset, 1, nil)
		v.Append(entity.Numbers(sh.Count, 0), sh.Count, entity.TagArray, 1, "")
		p.open(v, it, "")
		p.res.counters.AddData(sh.Count)
	case listing.ShapeFarJump:
		if err := p.closeVar(it); err != nil {
			return err
		}
		v := entity.NewVariable("jmp_"+sh.Name, it.Segment, it.Offset, 1, nil)
		far := []entity.Value{{Kind: entity.ValNumber, Num: 0xea}}
		far = append(far, entity.Numbers(4, 0)...)
		v.Append(far, len(far), entity.TagArray, 1, "")
		p.open(v, it, "")
		p.res.counters.AddData(len(far))
	case listing.ShapeAlign:
		return p.align(it, sh.Count)
	case listing.ShapeStructBSS, listing.ShapeStructBSSArray, listing.ShapeStructVar,
		listing.ShapeStructInit, listing.ShapeStructArray:
		return p.structData(it, sh)
	default:
		if it.Instr == "" {
			if p.v != nil {
				p.v.AddComment(listing.TweakComment(it.Comment))
			}
			return nil
		}
		p.debugf("data line ignored: %s\n", it.Instr)
	}
	return nil
}

func (p *pass) structData(it listing.Item, sh listing.Shape) error {
	st, err := p.structs.Lookup(sh.Type)
	if err != nil {
		return err
	}
	var (
		vals  []entity.Value
		count = 1
		tag   entity.Tag
	)
	switch sh.Kind {
	case listing.ShapeStructBSS:
		vals, tag = entity.Uninit(st.MemberCount()), entity.TagBSS
	case listing.ShapeStructBSSArray:
		r, err := value.Parse(sh.Directive, p.structs)
		if err != nil {
			return err
		}
		vals, count, tag = r.Values, r.Count, r.Tag
	case listing.ShapeStructArray:
		vals, tag, err = structValues(sh.Value, st, sh.Count, p.structs)
		if err != nil {
			return err
		}
		count = sh.Count
	default:
		vals, tag, err = structValues(sh.Value, st, 1, p.structs)
		if err != nil {
			return err
		}
	}

	if sh.Kind == listing.ShapeStructInit {
		if p.v == nil || !p.v.Append(vals, count, tag, st.Size, st.Name) {
			if err := p.closeVar(it); err != nil {
				return err
			}
			v := entity.NewVariable(fmt.Sprintf("%s_struc_%x", it.Segment, it.Offset), it.Segment, it.Offset, st.Size, st)
			v.Dummy = true
			v.Append(vals, count, tag, st.Size, st.Name)
			p.open(v, it, "")
		}
		p.res.counters.AddData(count * st.Size)
		return nil
	}

	if err := p.closeVar(it); err != nil {
		return err
	}
	v := entity.NewVariable(sh.Name, it.Segment, it.Offset, st.Size, st)
	if !v.Append(vals, count, tag, st.Size, st.Name) {
		return diag.Parsef(it.Loc(), "data rejected by new struct variable %s", sh.Name)
	}
	p.open(v, it, "")
	p.res.counters.AddData(count * st.Size)
	return nil
}

// structValues parses struct initializer values for dup copies of st. A
// lone zero or an empty initializer zero-fills every member; a full member
// list is replicated dup times.
func structValues(text string, st *entity.Struct, dup int, structs entity.Structs) ([]entity.Value, entity.Tag, error) {
	members := st.MemberCount()
	text = strings.TrimSpace(text)
	if text == "" || text == "0" {
		return entity.Numbers(members*dup, 0), entity.TagArray, nil
	}
	r, err := value.Parse(text, structs)
	if err != nil {
		return nil, entity.TagUnknown, err
	}
	if len(r.Values) != members {
		return nil, entity.TagUnknown, diag.Parsef("", "invalid data size %s to initialize struct of type %s",
			listing.Hex(len(r.Values)), st.Name)
	}
	vals := make([]entity.Value, 0, members*dup)
	for range dup {
		vals = append(vals, r.Values...)
	}
	return vals, r.Tag, nil
}

// align pads the data up to the next multiple of n with a dummy variable.
func (p *pass) align(it listing.Item, n int) error {
	pad := (n - it.Offset%n) % n
	if pad == 0 {
		return nil
	}
	if err := p.closeVar(it); err != nil {
		return err
	}
	v := entity.NewVariable(fmt.Sprintf("%s_align_%x", it.Segment, it.Offset), it.Segment, it.Offset, 1, nil)
	v.Dummy = true
	if p.cfg.InBSS(it.Segment, it.Offset) {
		v.Append(entity.Uninit(pad), pad, entity.TagBSS, 1, "")
	} else {
		v.Append(entity.Numbers(pad, 0), pad, entity.TagArray, 1, "")
	}
	p.open(v, it, "")
	p.res.counters.AddData(pad)
	return p.closeVar(it)
}

// open makes v the current variable and applies a pending declaration.
func (p *pass) open(v *entity.Variable, it listing.Item, note string) {
	v.AddComment(listing.TweakComment(it.Comment))
	v.AddComment(note)
	if d := p.pending; d != nil && d.segment == v.Segment && d.offset == v.Offset {
		applyDecl(v, d.text)
		p.pending = nil
	}
	p.v = v
}

func (p *pass) closeVar(it listing.Item) error {
	v := p.v
	if v == nil {
		return nil
	}
	p.v = nil
	v.Close()
	p.res.Variables = append(p.res.Variables, v)
	p.debugf("closed variable %s, size %s\n", v.Name, listing.Hex(v.Size()))
	return p.res.counters.CloseVariable(v.Size(), v.Segment, v.Offset, it)
}

func (p *pass) secret(it listing.Item, text string) {
	p.debugf("secret message: %s\n", text)
	if p.v != nil && p.v.Segment == it.Segment && p.v.Offset == it.Offset {
		applyDecl(p.v, text)
		return
	}
	p.pending = &decl{segment: it.Segment, offset: it.Offset, text: text}
}

func applyDecl(v *entity.Variable, text string) {
	if text == "ignore" {
		v.OmitHeader = true
		return
	}
	v.Decl = text
}
