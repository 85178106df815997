// Package fixup rewrites the few instruction forms that an assembler encodes
// differently from the original binary into raw data directives.
//
// Every rewrite is checked by encoding its directives and decoding the bytes
// as 16-bit x86 code: the result must be the instruction it replaces.
package fixup

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/arch/x86/x86asm"

	"lstconv/internal/diag"
	"lstconv/internal/listing"
)

// Fix is a matched rewrite.
type Fix struct {
	Rule  string   // rule name
	Lines []string // replacement directives
	want  func(inst x86asm.Inst) bool
}

// Rule is one correction.
type Rule struct {
	Name  string
	match func(instr string) (Fix, bool)
}

var (
	axImmRe = regexp.MustCompile(`^(cmp|add|and|sub|sbb) ax, ([_a-fA-F0-9]{1,5}h?)$`)
	slotRe  = regexp.MustCompile(`^jmp.*(slot|misc)_`)
)

// Opcodes of the short accumulator-immediate forms (op AX, imm16).
var axOpcodes = map[string]struct {
	text string
	op   x86asm.Op
}{
	"add": {"05h", x86asm.ADD},
	"cmp": {"3Dh", x86asm.CMP},
	"and": {"25h", x86asm.AND},
	"sub": {"2Dh", x86asm.SUB},
	"sbb": {"1Dh", x86asm.SBB},
}

// Rules are tried in order; the first match wins.
var Rules = []Rule{
	{"accumulator-immediate", func(instr string) (Fix, bool) {
		m := axImmRe.FindStringSubmatch(instr)
		if m == nil {
			return Fix{}, false
		}
		oc := axOpcodes[m[1]]
		imm, immErr := listing.ParseNum(m[2])
		return Fix{
			Lines: []string{"db " + oc.text, "dw " + m[2]},
			want: func(inst x86asm.Inst) bool {
				if inst.Op != oc.op || inst.Args[0] != x86asm.AX {
					return false
				}
				if immErr != nil {
					return true
				}
				v, ok := inst.Args[1].(x86asm.Imm)
				return ok && uint16(v) == uint16(imm)
			},
		}, true
	}},
	{"far-jump-through-zero", func(instr string) (Fix, bool) {
		if instr != "jmp far ptr 0:0" && !slotRe.MatchString(instr) {
			return Fix{}, false
		}
		return Fix{
			Lines: []string{"db 0EAh", "dd 0"},
			want:  func(inst x86asm.Inst) bool { return inst.Op == x86asm.LJMP },
		}, true
	}},
	{"repne-movsw", func(instr string) (Fix, bool) {
		if instr != "repne movsw" {
			return Fix{}, false
		}
		return Fix{
			Lines: []string{"dw 0A5F2h"},
			want: func(inst x86asm.Inst) bool {
				return inst.Op == x86asm.MOVSW && inst.Prefix[0]&0xFF == x86asm.PrefixREPN
			},
		}, true
	}},
	{"or-di-imm16", func(instr string) (Fix, bool) {
		if instr != "or di, 2" {
			return Fix{}, false
		}
		return Fix{
			Lines: []string{"dd 2CF81h"},
			want: func(inst x86asm.Inst) bool {
				v, ok := inst.Args[1].(x86asm.Imm)
				return inst.Op == x86asm.OR && inst.Args[0] == x86asm.DI && ok && v == 2
			},
		}, true
	}},
}

// Match returns the first rule matching instr.
func Match(instr string) (Fix, bool) {
	for _, r := range Rules {
		if f, ok := r.match(instr); ok {
			f.Rule = r.Name
			return f, true
		}
	}
	return Fix{}, false
}

// Verify encodes the fix directives and checks that they decode to a single
// instruction of the expected form. Directives with symbolic operands cannot
// be encoded and are accepted unchecked.
func (f Fix) Verify() error {
	raw, ok := Encode(f.Lines)
	if !ok {
		return nil
	}
	inst, err := x86asm.Decode(raw, 16)
	if err != nil {
		return diag.Structuralf("", "%s: % x does not decode: %v", f.Rule, raw, err)
	}
	if inst.Len != len(raw) {
		return diag.Structuralf("", "%s: % x decodes to %d bytes of %s", f.Rule, raw, inst.Len, inst)
	}
	if f.want != nil && !f.want(inst) {
		return diag.Structuralf("", "%s: % x decodes to unexpected %s", f.Rule, raw, inst)
	}
	return nil
}

// Apply matches and verifies instr. It reports false when no rule applies.
func Apply(instr string) (Fix, bool, error) {
	f, ok := Match(instr)
	if !ok {
		return Fix{}, false, nil
	}
	if err := f.Verify(); err != nil {
		return Fix{}, true, err
	}
	return f, true, nil
}

// Encode assembles db/dw/dd directives with numeric operands into
// little-endian bytes.
func Encode(lines []string) ([]byte, bool) {
	var out []byte
	for _, l := range lines {
		dir, arg, found := strings.Cut(l, " ")
		if !found {
			return nil, false
		}
		v, err := listing.ParseNum(strings.TrimSpace(arg))
		if err != nil {
			return nil, false
		}
		switch dir {
		case "db":
			out = append(out, byte(v))
		case "dw":
			out = binary.LittleEndian.AppendUint16(out, uint16(v))
		case "dd":
			out = binary.LittleEndian.AppendUint32(out, uint32(v))
		default:
			return nil, false
		}
	}
	return out, true
}

func (f Fix) String() string {
	return fmt.Sprintf("%s: %s", f.Rule, strings.Join(f.Lines, "; "))
}
