package fixup

import (
	"bytes"
	"slices"
	"testing"

	"lstconv/internal/diag"
)

func TestApply(t *testing.T) {
	tests := []struct {
		instr string
		rule  string
		lines []string
	}{
		{"cmp ax, 1234h", "accumulator-immediate", []string{"db 3Dh", "dw 1234h"}},
		{"add ax, 5", "accumulator-immediate", []string{"db 05h", "dw 5"}},
		{"and ax, 0FFF0h", "accumulator-immediate", []string{"db 25h", "dw 0FFF0h"}},
		{"sub ax, 10h", "accumulator-immediate", []string{"db 2Dh", "dw 10h"}},
		{"sbb ax, 0", "accumulator-immediate", []string{"db 1Dh", "dw 0"}},
		{"jmp far ptr 0:0", "far-jump-through-zero", []string{"db 0EAh", "dd 0"}},
		{"jmp cs:slot_4", "far-jump-through-zero", []string{"db 0EAh", "dd 0"}},
		{"jmp far ptr misc_exit", "far-jump-through-zero", []string{"db 0EAh", "dd 0"}},
		{"repne movsw", "repne-movsw", []string{"dw 0A5F2h"}},
		{"or di, 2", "or-di-imm16", []string{"dd 2CF81h"}},
	}
	for _, tt := range tests {
		f, ok, err := Apply(tt.instr)
		if err != nil {
			t.Errorf("Apply(%q): %v", tt.instr, err)
			continue
		}
		if !ok {
			t.Errorf("Apply(%q) did not match", tt.instr)
			continue
		}
		if f.Rule != tt.rule || !slices.Equal(f.Lines, tt.lines) {
			t.Errorf("Apply(%q) = %s %v, want %s %v", tt.instr, f.Rule, f.Lines, tt.rule, tt.lines)
		}
	}
}

func TestApplyNoMatch(t *testing.T) {
	for _, instr := range []string{"cmp bx, 1234h", "mov ax, 1", "or di, 4", "rep movsw", "jmp short loc_10", "cmp ax, [bx]"} {
		if _, ok, err := Apply(instr); ok || err != nil {
			t.Errorf("Apply(%q) = %v, %v, want no match", instr, ok, err)
		}
	}
}

func TestEncode(t *testing.T) {
	raw, ok := Encode([]string{"db 0EAh", "dd 0", "dw 0A5F2h"})
	if !ok {
		t.Fatal("Encode failed")
	}
	want := []byte{0xea, 0, 0, 0, 0, 0xf2, 0xa5}
	if !bytes.Equal(raw, want) {
		t.Errorf("Encode = % x, want % x", raw, want)
	}
	if _, ok := Encode([]string{"dw _sym"}); ok {
		t.Error("symbolic operand encoded")
	}
}

func TestVerifyRejectsWrongEncoding(t *testing.T) {
	f, _ := Match("or di, 2")
	f.Lines = []string{"dd 2CE81h"} // or si, 2
	if err := f.Verify(); !diag.Is(err, diag.KindStructural) {
		t.Errorf("Verify = %v, want structural error", err)
	}
	f, _ = Match("cmp ax, 12h")
	f.Lines = []string{"db 3Dh", "dw 13h"}
	if err := f.Verify(); !diag.Is(err, diag.KindStructural) {
		t.Errorf("Verify = %v, want immediate mismatch", err)
	}
	f.Lines = []string{"db 3Dh"}
	if err := f.Verify(); !diag.Is(err, diag.KindStructural) {
		t.Errorf("Verify = %v, want truncated error", err)
	}
}
