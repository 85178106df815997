package listing

import (
	"regexp"
	"strings"

	"lstconv/internal/diag"
)

// ShapeKind identifies a recognized line shape.
type ShapeKind int

const (
	ShapeNone          ShapeKind = iota
	ShapeRoutineStart            // name proc near|far
	ShapeRoutineEnd              // name endp
	ShapeNamedData               // name db|dw|dd values
	ShapeData                    // db|dw|dd values
	ShapeAlign                   // align n
	ShapeStructBSS               // name Struct <?>
	ShapeStructBSSArray          // name Struct n dup(<?>)
	ShapeStructVar               // name Struct <values>
	ShapeStructInit              // Struct <values>
	ShapeStructArray             // name Struct n dup(<values>)
	ShapeFarJump                 // jmp [far] [ptr] target
	ShapeCollapsed               // comment: [n BYTES: COLLAPSED FUNCTION name ...]
	ShapeSecret                  // comment: lst2ch:text
	ShapePrototype               // comment: C prototype
)

var shapeNames = [...]string{
	ShapeNone:           "none",
	ShapeRoutineStart:   "routine-start",
	ShapeRoutineEnd:     "routine-end",
	ShapeNamedData:      "named-data",
	ShapeData:           "data",
	ShapeAlign:          "align",
	ShapeStructBSS:      "struct-bss",
	ShapeStructBSSArray: "struct-bss-array",
	ShapeStructVar:      "struct-var",
	ShapeStructInit:     "struct-init",
	ShapeStructArray:    "struct-array",
	ShapeFarJump:        "far-jump",
	ShapeCollapsed:      "collapsed",
	ShapeSecret:         "secret",
	ShapePrototype:      "prototype",
}

func (k ShapeKind) String() string {
	if int(k) < len(shapeNames) {
		return shapeNames[k]
	}
	return "unknown"
}

// Shape is the result of classifying one item: the kind plus captured fields.
// Which fields are set depends on the kind.
type Shape struct {
	Kind      ShapeKind
	Name      string // routine, variable or jump target name
	Type      string // proc type, data directive or struct name
	Value     string // operand text, struct init values, directive text
	Count     int    // align boundary, repetition factor, collapsed size
	Directive string // the struct dup expression for struct-bss-array
}

// Field selects which part of an item a matcher looks at.
type Field int

const (
	FieldInstr   Field = iota
	FieldComment       // only consulted on comment-only lines
)

// Matcher recognizes one shape.
type Matcher struct {
	Kind  ShapeKind
	Field Field
	re    *regexp.Regexp
	build func(m []string) (Shape, error)
}

const (
	reName   = `[_a-zA-Z0-9@$]+`
	reNum    = `[x0-9a-fA-F]+h?`
	reData   = `db|dw|dd`
	reCType  = `char|int|void|__int32`
	reValues = `[^<>]*`
)

// StructBSSDupRe matches "Struct n dup(<?>)" inside an operand.
var StructBSSDupRe = regexp.MustCompile(`^(` + reName + `)\s+(` + reNum + `)\s+dup\(<\?>\)$`)

// Catalog is the ordered list of shape matchers. The first match wins.
var Catalog = []Matcher{
	{ShapeRoutineStart, FieldInstr, regexp.MustCompile(`^(` + reName + `)\s+proc\s+(near|far)\b`), func(m []string) (Shape, error) {
		return Shape{Name: m[1], Type: m[2]}, nil
	}},
	{ShapeRoutineEnd, FieldInstr, regexp.MustCompile(`^(` + reName + `)\s+endp\b`), func(m []string) (Shape, error) {
		return Shape{Name: m[1]}, nil
	}},
	{ShapeNamedData, FieldInstr, regexp.MustCompile(`^(` + reName + `)\s+(` + reData + `)\s+(.*)$`), func(m []string) (Shape, error) {
		return Shape{Name: m[1], Type: m[2], Value: m[3]}, nil
	}},
	{ShapeData, FieldInstr, regexp.MustCompile(`^(` + reData + `)\s+(.*)$`), func(m []string) (Shape, error) {
		return Shape{Type: m[1], Value: m[2]}, nil
	}},
	{ShapeAlign, FieldInstr, regexp.MustCompile(`^align\s+([0-9a-fA-F]+)h?$`), func(m []string) (Shape, error) {
		n, err := ParseCount(m[1] + "h")
		if err != nil || n == 0 {
			return Shape{}, diag.Parsef("", "bad alignment %q", m[1])
		}
		return Shape{Count: n}, nil
	}},
	{ShapeStructBSS, FieldInstr, regexp.MustCompile(`^(` + reName + `)\s+(` + reName + `)\s+<\?>$`), func(m []string) (Shape, error) {
		return Shape{Name: m[1], Type: m[2]}, nil
	}},
	{ShapeStructBSSArray, FieldInstr, regexp.MustCompile(`^(` + reName + `)\s+((` + reName + `)\s+(` + reNum + `)\s+dup\(<\?>\))$`), func(m []string) (Shape, error) {
		n, err := ParseCount(m[4])
		if err != nil {
			return Shape{}, err
		}
		return Shape{Name: m[1], Type: m[3], Count: n, Directive: m[2]}, nil
	}},
	{ShapeStructVar, FieldInstr, regexp.MustCompile(`^(` + reName + `)\s+(` + reName + `)\s+<(` + reValues + `)>$`), func(m []string) (Shape, error) {
		return Shape{Name: m[1], Type: m[2], Value: m[3]}, nil
	}},
	{ShapeStructInit, FieldInstr, regexp.MustCompile(`^(` + reName + `)\s+<(` + reValues + `)>$`), func(m []string) (Shape, error) {
		return Shape{Type: m[1], Value: m[2]}, nil
	}},
	{ShapeStructArray, FieldInstr, regexp.MustCompile(`^(` + reName + `)\s+(` + reName + `)\s+(` + reNum + `)\s+dup\(<(` + reValues + `)>\)$`), func(m []string) (Shape, error) {
		n, err := ParseCount(m[3])
		if err != nil {
			return Shape{}, err
		}
		return Shape{Name: m[1], Type: m[2], Count: n, Value: m[4]}, nil
	}},
	{ShapeFarJump, FieldInstr, regexp.MustCompile(`^jmp\s+(?:far\s+)?(?:ptr\s+)?(` + reName + `)`), func(m []string) (Shape, error) {
		return Shape{Name: m[1]}, nil
	}},
	{ShapeCollapsed, FieldComment, regexp.MustCompile(`^\[(` + reNum + `) BYTES: COLLAPSED FUNCTION (` + reName + `)`), func(m []string) (Shape, error) {
		n, err := ParseCount(strings.TrimSuffix(m[1], "h") + "h")
		if err != nil {
			return Shape{}, err
		}
		return Shape{Name: m[2], Count: n}, nil
	}},
	{ShapeSecret, FieldComment, regexp.MustCompile(`^lst2ch:(.*)$`), func(m []string) (Shape, error) {
		return Shape{Value: strings.TrimSpace(m[1])}, nil
	}},
	{ShapePrototype, FieldComment, regexp.MustCompile(`^(?:` + reCType + `)\s*\*?\s*(?:__cdecl)?\s*(` + reName + `)\(.*\)`), func(m []string) (Shape, error) {
		return Shape{Name: m[1]}, nil
	}},
}

// Classify returns the first catalog shape matching the item. Comment
// matchers are only tried on lines without an instruction. A line matching
// nothing yields ShapeNone.
func Classify(it Item) (Shape, error) {
	for _, m := range Catalog {
		text := it.Instr
		if m.Field == FieldComment {
			if it.Instr != "" {
				continue
			}
			text = it.Comment
		}
		if text == "" {
			continue
		}
		sm := m.re.FindStringSubmatch(text)
		if sm == nil {
			continue
		}
		s, err := m.build(sm)
		if err != nil {
			return Shape{}, diag.At(err, it.Loc())
		}
		s.Kind = m.Kind
		if m.Kind == ShapePrototype {
			s.Value = text
		}
		return s, nil
	}
	return Shape{Kind: ShapeNone}, nil
}
