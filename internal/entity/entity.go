package entity

import (
	"slices"

	"lstconv/internal/diag"
)

// Routine is a reconstructed code unit. A routine with an empty Name marks a
// module boundary between routines.
type Routine struct {
	Name       string   `json:"name,omitempty"`
	Convention string   `json:"convention,omitempty"` // near or far
	Segment    string   `json:"segment"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Prototype  string   `json:"prototype,omitempty"`
	Comments   []string `json:"-"`
	Calls      []string `json:"calls,omitempty"`
	closed     bool
}

// NewRoutine opens a routine at start.
func NewRoutine(name, convention, segment string, start int) *Routine {
	return &Routine{Name: name, Convention: convention, Segment: segment, Start: start, End: start}
}

// Close sets the end offset. The end must not precede the start.
func (r *Routine) Close(end int) error {
	if r.closed {
		return diag.Structuralf(diag.Loc(r.Segment, end), "routine %s closed twice", r.Name)
	}
	if end < r.Start {
		return diag.Structuralf(diag.Loc(r.Segment, end), "routine %s ends before its start 0x%x", r.Name, r.Start)
	}
	r.End = end
	r.closed = true
	return nil
}

func (r *Routine) Closed() bool { return r.closed }

// Size is End - Start.
func (r *Routine) Size() int { return r.End - r.Start }

// IsBoundary reports whether r is a module boundary marker.
func (r *Routine) IsBoundary() bool { return r.Name == "" }

// AddCall records a call or jump target referenced from the routine body.
// Repeated targets are recorded once.
func (r *Routine) AddCall(target string) {
	if !slices.Contains(r.Calls, target) {
		r.Calls = append(r.Calls, target)
	}
}

// Variable is a reconstructed data unit.
type Variable struct {
	Name       string   `json:"name"`
	Segment    string   `json:"segment,omitempty"`
	Offset     int      `json:"offset"`
	ItemSize   int      `json:"item_size"`
	Tag        Tag      `json:"-"`
	Values     []Value  `json:"-"`
	Count      int      `json:"count"` // logical item count
	Struct     *Struct  `json:"-"`
	Dummy      bool     `json:"dummy,omitempty"`
	OmitHeader bool     `json:"omit_header,omitempty"`
	Decl       string   `json:"decl,omitempty"` // explicit header declaration
	Comments   []string `json:"-"`
	closed     bool
}

// NewVariable opens an empty variable.
func NewVariable(name, segment string, offset, itemSize int, st *Struct) *Variable {
	return &Variable{Name: name, Segment: segment, Offset: offset, ItemSize: itemSize, Struct: st}
}

// Size is the variable's byte size.
func (v *Variable) Size() int { return v.Count * v.ItemSize }

// StructName returns the backing struct name or "".
func (v *Variable) StructName() string {
	if v.Struct == nil {
		return ""
	}
	return v.Struct.Name
}

// Accepts reports whether data of the given item size, struct and tag can
// extend the variable.
func (v *Variable) Accepts(itemSize int, structName string, tag Tag) bool {
	if v.closed || itemSize != v.ItemSize || structName != v.StructName() {
		return false
	}
	_, err := Merge(v.Tag, tag)
	return err == nil
}

// Append extends the variable with count items of parsed values. It returns
// false and leaves the variable untouched when the data is not compatible.
func (v *Variable) Append(values []Value, count int, tag Tag, itemSize int, structName string) bool {
	if !v.Accepts(itemSize, structName, tag) {
		return false
	}
	v.Tag, _ = Merge(v.Tag, tag)
	v.Values = append(v.Values, values...)
	v.Count += count
	return true
}

// Close freezes the variable.
func (v *Variable) Close() { v.closed = true }

func (v *Variable) Closed() bool { return v.closed }

// AddComment attaches a non-empty comment line.
func (v *Variable) AddComment(c string) {
	if c != "" {
		v.Comments = append(v.Comments, c)
	}
}

// Struct is a layout template for struct-typed variables.
type Struct struct {
	Name    string
	Size    int
	Members []*Variable
}

// MemberCount is the number of member variables.
func (s *Struct) MemberCount() int { return len(s.Members) }

// MemberSize is the summed size of all members.
func (s *Struct) MemberSize() int {
	n := 0
	for _, m := range s.Members {
		n += m.Size()
	}
	return n
}

// Structs resolves struct names.
type Structs map[string]*Struct

// Lookup returns the named struct or a config error.
func (t Structs) Lookup(name string) (*Struct, error) {
	if s, ok := t[name]; ok {
		return s, nil
	}
	return nil, diag.Configf("", "unable to find definition of struct %s", name)
}

// Enum is one scalar define from the definition file.
type Enum struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}
