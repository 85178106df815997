// Package diag defines the fatal error kinds reported by listing conversion.
package diag

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal error.
type Kind string

const (
	KindConfig     Kind = "config"     // malformed configuration, unresolved struct
	KindStructural Kind = "structural" // unclosed or mismatched entities, counter disagreement
	KindParse      Kind = "parse"      // operand text matching no known shape
	KindIO         Kind = "io"         // missing input, unwritable output
)

// Error is a fatal conversion error. Loc is "seg:0xoff", "line N" or empty.
type Error struct {
	Kind Kind
	Loc  string
	Msg  string
}

func (e *Error) Error() string {
	if e.Loc == "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Loc, e.Msg)
}

func newf(kind Kind, loc, format string, args ...any) *Error {
	return &Error{Kind: kind, Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

func Configf(loc, format string, args ...any) error {
	return newf(KindConfig, loc, format, args...)
}

func Structuralf(loc, format string, args ...any) error {
	return newf(KindStructural, loc, format, args...)
}

func Parsef(loc, format string, args ...any) error {
	return newf(KindParse, loc, format, args...)
}

func IOf(loc, format string, args ...any) error {
	return newf(KindIO, loc, format, args...)
}

// Is reports whether err, or anything it wraps, is a diag error of the given kind.
func Is(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// At fills in the location of a diag error that does not carry one yet.
// Other errors are returned unchanged.
func At(err error, loc string) error {
	var de *Error
	if errors.As(err, &de) && de.Loc == "" {
		de.Loc = loc
	}
	return err
}

// Loc renders a listing location.
func Loc(segment string, offset int) string {
	if segment == "" {
		return fmt.Sprintf("0x%x", offset)
	}
	return fmt.Sprintf("%s:0x%x", segment, offset)
}
