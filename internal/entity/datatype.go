// Package entity models the routines, variables and structs reconstructed
// from a listing.
package entity

import "fmt"

// Tag is the merged data classification of a variable's contents.
type Tag int

const (
	TagUnknown Tag = iota
	TagArray       // initialized values
	TagString      // NUL-terminated character string
	TagPointer     // offset or segment references
	TagBSS         // uninitialized storage
)

var tagNames = [...]string{"unknown", "array", "string", "pointer", "bss"}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", int(t))
}

// specificity orders tags for Merge. Array and BSS share a rank and conflict.
var specificity = [...]int{
	TagUnknown: 0,
	TagArray:   1,
	TagBSS:     1,
	TagString:  2,
	TagPointer: 3,
}

// ErrTagConflict is returned by Merge for initialized and uninitialized data.
var ErrTagConflict = fmt.Errorf("data type conflict: %s with %s", TagArray, TagBSS)

// Merge combines two tags. Unknown is absorbed by anything; array with bss
// conflicts; otherwise the more specific tag wins.
func Merge(a, b Tag) (Tag, error) {
	if a == b {
		return a, nil
	}
	if (a == TagArray && b == TagBSS) || (a == TagBSS && b == TagArray) {
		return TagUnknown, ErrTagConflict
	}
	if specificity[a] >= specificity[b] {
		return a, nil
	}
	return b, nil
}

// Directive item sizes.
var itemSizes = map[string]int{"db": 1, "dw": 2, "dd": 4}

// ItemSize returns the byte size of one item of a data directive, or 0.
func ItemSize(directive string) int { return itemSizes[directive] }

// TypeName returns the short type name used in synthesized variable names.
func TypeName(directive string) string {
	switch directive {
	case "db":
		return "byte"
	case "dw":
		return "word"
	case "dd":
		return "dword"
	}
	return "data"
}

// ValueKind classifies one expanded data value.
type ValueKind int

const (
	ValUninit  ValueKind = iota // ?
	ValNumber                   // numeric literal
	ValChar                     // one character of a quoted string
	ValString                   // NUL-terminated string, terminator folded in
	ValPointer                  // offset name
	ValSegment                  // seg name, no resolvable target
)

// Value is one element of a variable's contents. Text holds the character,
// string contents or referenced symbol name.
type Value struct {
	Kind ValueKind
	Num  int64
	Text string
}

// Uninit returns n uninitialized placeholders.
func Uninit(n int) []Value {
	return make([]Value, n) // ValUninit is the zero kind
}

// Numbers returns n copies of the numeric value v.
func Numbers(n int, v int64) []Value {
	out := make([]Value, n)
	for i := range out {
		out[i] = Value{Kind: ValNumber, Num: v}
	}
	return out
}
