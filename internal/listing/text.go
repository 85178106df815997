package listing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"lstconv/internal/diag"
)

// Squeeze converts tabs to spaces and collapses runs of spaces outside quoted
// strings, then trims the result.
func Squeeze(s string) string {
	var b strings.Builder
	inQuote := false
	var prev rune
	for _, c := range s {
		if c == '\t' {
			c = ' '
		}
		switch {
		case c == ' ':
			if !inQuote && prev == ' ' {
				continue
			}
		case c == '\'':
			inQuote = !inQuote
		}
		b.WriteRune(c)
		prev = c
	}
	return strings.TrimSpace(b.String())
}

// SplitComment separates the instruction field from the trailing comment.
// A ';' inside a quoted string does not start a comment. The delimiter is
// not part of either result.
func SplitComment(s string) (instr, comment string) {
	inQuote := false
	for i, c := range s {
		switch {
		case c == '\'':
			inQuote = !inQuote
		case c == ';' && !inQuote:
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

// SplitFields splits a directive operand at top-level commas. Commas inside
// quoted strings are not separators. Fields are trimmed.
func SplitFields(s string) []string {
	var out []string
	inQuote := false
	start := 0
	for i, c := range s {
		switch {
		case c == '\'':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// Tokens splits an instruction into symbol-ish pieces on whitespace and
// operand punctuation.
func Tokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ' ', ',', '+', '[', ']', '(', ')', '.':
			return true
		}
		return false
	})
}

// TweakComment drops comments that carry no information for the output:
// very short ones, cross-reference lists and quoted-character echoes.
func TweakComment(c string) string {
	if len(c) <= 3 || strings.Contains(c, "XREF") || strings.HasPrefix(c, "'") {
		return ""
	}
	return c
}

// IsData reports whether w contains a named data directive.
func IsData(w string) bool {
	return strings.Contains(w, " db ") || strings.Contains(w, " dw ") || strings.Contains(w, " dd ")
}

// IsLabel reports whether w is a code label.
func IsLabel(w string) bool {
	return strings.HasSuffix(w, ":")
}

var numberRe = regexp.MustCompile(`^-?(?:0x[0-9a-fA-F]+|[0-9][0-9a-fA-F]*[hH]|[0-9]+)$`)

// IsNumber reports whether s is a numeric literal: decimal, 0x-prefixed hex
// or h-suffixed hex.
func IsNumber(s string) bool {
	return numberRe.MatchString(s)
}

// ParseNum parses a numeric literal as accepted by IsNumber.
func ParseNum(s string) (int64, error) {
	if !IsNumber(s) {
		return 0, diag.Parsef("", "invalid numeric literal %q", s)
	}
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(s, "-")
	base := 10
	switch {
	case strings.HasPrefix(digits, "0x"):
		digits, base = digits[2:], 16
	case strings.HasSuffix(digits, "h"), strings.HasSuffix(digits, "H"):
		digits, base = digits[:len(digits)-1], 16
	}
	v, err := strconv.ParseInt(digits, base, 64)
	if err != nil {
		return 0, diag.Parsef("", "numeric literal %q: %v", s, err)
	}
	if neg {
		v = -v
	}
	return v, nil
}

// ParseCount parses a non-negative numeric literal used as a count or size.
func ParseCount(s string) (int, error) {
	v, err := ParseNum(s)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, diag.Parsef("", "negative count %q", s)
	}
	return int(v), nil
}

// Hex renders n the way byte counts are reported in diagnostics.
func Hex(n int) string {
	return fmt.Sprintf("%d/0x%x", n, n)
}
