// Package cgen renders reconstructed routines and variables as C header and
// source text.
package cgen

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"lstconv/internal/entity"
)

// Header is the content of the header output.
type Header struct {
	Preamble []string
	Coda     []string
	Enums    []entity.Enum
	Routines []*entity.Routine
	Vars     []*entity.Variable
}

// valuesPerLine wraps long initializer lists.
const valuesPerLine = 16

// WriteHeader writes enum defines, routine prototypes and variable
// declarations. main is never declared; dummy variables and variables marked
// omit-from-header are skipped.
func WriteHeader(w io.Writer, h Header) error {
	bw := bufio.NewWriter(w)
	for _, l := range h.Preamble {
		fmt.Fprintln(bw, l)
	}
	for _, e := range h.Enums {
		fmt.Fprintf(bw, "#define %s %s\n", e.Name, hexLit(e.Value))
	}
	for _, r := range h.Routines {
		if r.IsBoundary() {
			fmt.Fprintf(bw, "// ==== module boundary %s:0x%x ====\n", r.Segment, r.Start)
			continue
		}
		if r.Name == "main" {
			continue
		}
		for _, c := range r.Comments {
			fmt.Fprintf(bw, "// %s\n", c)
		}
		fmt.Fprintln(bw, Prototype(r))
	}
	for _, v := range h.Vars {
		if v.Dummy || v.OmitHeader {
			continue
		}
		fmt.Fprintln(bw, Decl(v))
	}
	for _, l := range h.Coda {
		fmt.Fprintln(bw, l)
	}
	return bw.Flush()
}

// WriteSource writes one definition per variable in listing order. A marker
// comment precedes the first uninitialized variable after initialized ones.
func WriteSource(w io.Writer, vars []*entity.Variable) error {
	bw := bufio.NewWriter(w)
	prev := entity.TagUnknown
	for _, v := range vars {
		if len(v.Comments) > 0 {
			fmt.Fprintf(bw, "// %s\n", strings.Join(v.Comments, " "))
		}
		if prev != entity.TagBSS && v.Tag == entity.TagBSS {
			fmt.Fprintln(bw, "// BSS values follow")
		}
		fmt.Fprintln(bw, Def(v))
		prev = v.Tag
	}
	return bw.Flush()
}

// Prototype returns the routine's explicit prototype, or a default void
// signature matching its calling convention.
func Prototype(r *entity.Routine) string {
	if p := strings.TrimSpace(r.Prototype); p != "" {
		if !strings.HasSuffix(p, ";") {
			p += ";"
		}
		return p
	}
	if r.Convention == "far" {
		return "void __far " + r.Name + "(void);"
	}
	return "void " + r.Name + "(void);"
}

// CType returns the C element type of a variable.
func CType(v *entity.Variable) string {
	if v.Struct != nil {
		return "struct " + v.Struct.Name
	}
	switch v.Tag {
	case entity.TagPointer:
		if v.ItemSize == 4 {
			return "void far*"
		}
		return "void*"
	case entity.TagString:
		return "char"
	}
	switch v.ItemSize {
	case 2:
		return "uint16"
	case 4:
		return "uint32"
	}
	return "uint8"
}

func declarator(v *entity.Variable) string {
	if v.Count == 1 && v.Tag != entity.TagString {
		return v.Name
	}
	return v.Name + "[" + strconv.Itoa(v.Count) + "]"
}

// Decl returns the header declaration of v.
func Decl(v *entity.Variable) string {
	if v.Decl != "" {
		return v.Decl
	}
	return "extern " + CType(v) + " " + declarator(v) + ";"
}

// Def returns the source definition of v.
func Def(v *entity.Variable) string {
	head := CType(v) + " " + declarator(v)
	switch {
	case v.Tag == entity.TagBSS:
		return head + ";"
	case v.Tag == entity.TagString:
		return head + " = " + stringLit(v.Values) + ";"
	case v.Struct == nil && v.Count == 1 && len(v.Values) == 1:
		return head + " = " + valueLit(v.Values[0]) + ";"
	}
	return head + " = " + initList(v.Values) + ";"
}

func initList(vals []entity.Value) string {
	if len(vals) <= valuesPerLine {
		return "{" + joinValues(vals) + "}"
	}
	var sb strings.Builder
	sb.WriteString("{\n")
	for i := 0; i < len(vals); i += valuesPerLine {
		end := min(i+valuesPerLine, len(vals))
		sb.WriteString("    ")
		sb.WriteString(joinValues(vals[i:end]))
		if end < len(vals) {
			sb.WriteByte(',')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("}")
	return sb.String()
}

func joinValues(vals []entity.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = valueLit(v)
	}
	return strings.Join(parts, ", ")
}

func valueLit(v entity.Value) string {
	switch v.Kind {
	case entity.ValNumber:
		return hexLit(v.Num)
	case entity.ValChar:
		return "'" + escape(v.Text, '\'') + "'"
	case entity.ValString:
		return `"` + escape(v.Text, '"') + `"`
	case entity.ValPointer:
		return "&" + v.Text
	case entity.ValSegment:
		return "NULL /* seg " + v.Text + " */"
	}
	return "0"
}

// stringLit renders character data as one literal. Embedded strings keep
// their terminators except the last, which C supplies.
func stringLit(vals []entity.Value) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i, v := range vals {
		switch v.Kind {
		case entity.ValString:
			sb.WriteString(escape(v.Text, '"'))
			if i < len(vals)-1 {
				sb.WriteString(`\0`)
			}
		case entity.ValChar:
			sb.WriteString(escape(v.Text, '"'))
		case entity.ValNumber:
			fmt.Fprintf(&sb, `\%03o`, byte(v.Num))
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func escape(s string, quote rune) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == quote:
			sb.WriteByte('\\')
			sb.WriteRune(r)
		case r == '\n':
			sb.WriteString(`\n`)
		case r == '\t':
			sb.WriteString(`\t`)
		case r < 0x20:
			fmt.Fprintf(&sb, `\%03o`, r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func hexLit(n int64) string {
	if n < 0 {
		return "-0x" + strconv.FormatInt(-n, 16)
	}
	return "0x" + strconv.FormatInt(n, 16)
}
