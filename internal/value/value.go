// Package value parses data directive operands into typed value sequences.
package value

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"lstconv/internal/diag"
	"lstconv/internal/entity"
	"lstconv/internal/listing"
)

// Result is a parsed operand.
type Result struct {
	Values []entity.Value
	Count  int        // logical element count
	Tag    entity.Tag // merged classification of all fields
	Note   string     // inline annotation, e.g. for segment references
}

var (
	dupRe    = regexp.MustCompile(`^([x0-9a-fA-F]+h?)\s+dup\(\s*([x0-9a-fA-F]+h?|\?)\s*\)$`)
	offsetRe = regexp.MustCompile(`^offset\s+([_a-zA-Z0-9@$]+)$`)
	segRe    = regexp.MustCompile(`^seg\s+([_a-zA-Z0-9@$]+)$`)
)

// Parse expands a data directive operand. structs resolves struct names in
// nested "Struct n dup(<?>)" fields and may be nil when none are expected.
func Parse(operand string, structs entity.Structs) (Result, error) {
	var r Result
	fields := listing.SplitFields(operand)
	for i, f := range fields {
		var (
			vals  []entity.Value
			count int
			tag   entity.Tag
		)
		switch {
		case dupRe.MatchString(f):
			m := dupRe.FindStringSubmatch(f)
			n, err := listing.ParseCount(m[1])
			if err != nil {
				return Result{}, err
			}
			if m[2] == "?" {
				vals, tag = entity.Uninit(n), entity.TagBSS
			} else {
				v, err := listing.ParseNum(m[2])
				if err != nil {
					return Result{}, err
				}
				vals, tag = entity.Numbers(n, v), entity.TagArray
			}
			count = n
		case offsetRe.MatchString(f):
			name := offsetRe.FindStringSubmatch(f)[1]
			vals = []entity.Value{{Kind: entity.ValPointer, Text: name}}
			count, tag = 1, entity.TagPointer
		case segRe.MatchString(f):
			name := segRe.FindStringSubmatch(f)[1]
			vals = []entity.Value{{Kind: entity.ValSegment, Text: name}}
			count, tag = 1, entity.TagPointer
			r.Note = "segment " + name
		case isQuoted(f):
			s := unquote(f)
			if len(fields) == 2 && i == 0 && fields[1] == "0" {
				vals = []entity.Value{{Kind: entity.ValString, Text: s}}
				count, tag = utf8.RuneCountInString(s)+1, entity.TagString
			} else {
				for _, c := range s {
					vals = append(vals, entity.Value{Kind: entity.ValChar, Text: string(c)})
				}
				count, tag = len(vals), entity.TagArray
			}
		case f == "?":
			vals, count, tag = entity.Uninit(1), 1, entity.TagBSS
		case f == "0" && r.Tag == entity.TagString:
			// terminator already folded into the string
			continue
		case listing.IsNumber(f):
			v, err := listing.ParseNum(f)
			if err != nil {
				return Result{}, err
			}
			vals, count, tag = []entity.Value{{Kind: entity.ValNumber, Num: v}}, 1, entity.TagArray
		case listing.StructBSSDupRe.MatchString(f):
			m := listing.StructBSSDupRe.FindStringSubmatch(f)
			st, err := structs.Lookup(m[1])
			if err != nil {
				return Result{}, err
			}
			n, err := listing.ParseCount(m[2])
			if err != nil {
				return Result{}, err
			}
			vals, count, tag = entity.Uninit(n*st.MemberCount()), n, entity.TagBSS
		default:
			return Result{}, diag.Parsef("", "unrecognized value string: %s", f)
		}
		merged, err := entity.Merge(r.Tag, tag)
		if err != nil {
			return Result{}, diag.Parsef("", "%v in %q", err, operand)
		}
		r.Tag = merged
		r.Values = append(r.Values, vals...)
		r.Count += count
	}
	return r, nil
}

func isQuoted(f string) bool {
	return len(f) >= 2 && f[0] == '\'' && f[len(f)-1] == '\''
}

// unquote strips the surrounding quotes and collapses doubled quotes.
func unquote(f string) string {
	return strings.ReplaceAll(f[1:len(f)-1], "''", "'")
}
