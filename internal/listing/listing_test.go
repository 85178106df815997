package listing

import (
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestSqueeze(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  mov\t\tax,  bx  ", "mov ax, bx"},
		{"db 'a   b',0", "db 'a   b',0"},
		{"\t", ""},
	}
	for _, tt := range tests {
		if got := Squeeze(tt.in); got != tt.want {
			t.Errorf("Squeeze(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitCommentQuoteAware(t *testing.T) {
	instr, comment := SplitComment("db 'a,b;c',0 ; trailing; text")
	if instr != "db 'a,b;c',0 " {
		t.Errorf("instr = %q", instr)
	}
	if comment != " trailing; text" {
		t.Errorf("comment = %q", comment)
	}
	instr, comment = SplitComment("nop")
	if instr != "nop" || comment != "" {
		t.Errorf("SplitComment(nop) = %q, %q", instr, comment)
	}
}

func TestSplitFields(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"'a,b;c',0", []string{"'a,b;c'", "0"}},
		{"1, 2,3", []string{"1", "2", "3"}},
		{"5 dup(?)", []string{"5 dup(?)"}},
	}
	for _, tt := range tests {
		if got := SplitFields(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitFields(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("mov ax, word ptr [bx+foo]")
	want := []string{"mov", "ax", "word", "ptr", "bx", "foo"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens = %q, want %q", got, want)
	}
}

func TestTweakComment(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc", ""},
		{"CODE XREF: foo+3", ""},
		{"'A'", ""},
		{"set video mode", "set video mode"},
	}
	for _, tt := range tests {
		if got := TweakComment(tt.in); got != tt.want {
			t.Errorf("TweakComment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseNum(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"12", 12},
		{"0Ch", 12},
		{"0x1f", 31},
		{"0FFFFh", 0xffff},
		{"-1", -1},
	}
	for _, tt := range tests {
		got, err := ParseNum(tt.in)
		if err != nil {
			t.Errorf("ParseNum(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseNum(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"ax", "FFh", "", "1x"} {
		if _, err := ParseNum(bad); err == nil {
			t.Errorf("ParseNum(%q): expected error", bad)
		}
	}
}

const sampleListing = `; banner without address
seg000:0000                 start           proc near
seg000:0000                 mov     ax, seg dseg ; load data segment
seg000:0003 ; int __cdecl main(int argc)
dseg:0010 aHello          db 'a,b;c',0            ; greeting text
dseg:0016
`

func TestReaderItems(t *testing.T) {
	r := NewReader(strings.NewReader(sampleListing))
	var items []Item
	for {
		it, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		items = append(items, it)
	}
	if len(items) != 5 {
		t.Fatalf("got %d items, want 5", len(items))
	}
	if items[0].Segment != "seg000" || items[0].Offset != 0 || !items[0].HasOffset {
		t.Errorf("item 0 address = %s:%x", items[0].Segment, items[0].Offset)
	}
	if items[0].Instr != "start proc near" {
		t.Errorf("item 0 instr = %q", items[0].Instr)
	}
	if items[1].Comment != "load data segment" {
		t.Errorf("item 1 comment = %q", items[1].Comment)
	}
	if items[2].Instr != "" || items[2].Comment != "int __cdecl main(int argc)" {
		t.Errorf("item 2 = %+v", items[2])
	}
	if items[3].Instr != "aHello db 'a,b;c',0" {
		t.Errorf("item 3 instr = %q", items[3].Instr)
	}
	if items[3].Offset != 0x10 || items[3].Loc() != "dseg:0x10" {
		t.Errorf("item 3 loc = %s", items[3].Loc())
	}
	if items[4].Instr != "" || items[4].Comment != "" {
		t.Errorf("item 4 = %+v", items[4])
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("Next after end = %v, want EOF", err)
	}
}

func TestReaderRewind(t *testing.T) {
	r := NewReader(strings.NewReader(sampleListing))
	first, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	r.Next()
	if err := r.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	again, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Errorf("after rewind got %+v, want %+v", again, first)
	}

	nr := NewReader(io.MultiReader(strings.NewReader(sampleListing)))
	if err := nr.Rewind(); err != ErrNotRewindable {
		t.Errorf("Rewind on pipe = %v, want ErrNotRewindable", err)
	}
}

func TestReaderCP437(t *testing.T) {
	// 0x82 is e-acute in code page 437.
	r := NewReader(strings.NewReader("dseg:0000 aCafe db 'caf\x82',0\n"))
	it, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if it.Instr != "aCafe db 'café',0" {
		t.Errorf("instr = %q", it.Instr)
	}
}

func TestStructReader(t *testing.T) {
	src := `Point struc ; (sizeof=0x4)
x dw ?
; padding note
y dw ?
Point ends
after = 1
`
	lr := NewLineReader(strings.NewReader(src))
	lr.NextLine() // header consumed by the caller
	sr := NewStructReader(lr, "Point")
	var instrs []string
	for {
		it, err := sr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if it.HasOffset {
			t.Errorf("struct member %q has an offset", it.Instr)
		}
		instrs = append(instrs, it.Instr)
	}
	want := []string{"x dw ?", "", "y dw ?"}
	if !reflect.DeepEqual(instrs, want) {
		t.Errorf("members = %q, want %q", instrs, want)
	}
	line, _, err := lr.NextLine()
	if err != nil || line != "after = 1" {
		t.Errorf("line after struct = %q, %v", line, err)
	}
}

func TestStructReaderUnterminated(t *testing.T) {
	lr := NewLineReader(strings.NewReader("x dw ?\n"))
	sr := NewStructReader(lr, "Point")
	if _, err := sr.Next(); err != nil {
		t.Fatalf("first member: %v", err)
	}
	if _, err := sr.Next(); err == nil || err == io.EOF {
		t.Errorf("expected unterminated struct error, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		instr   string
		comment string
		want    Shape
	}{
		{"foo proc far", "", Shape{Kind: ShapeRoutineStart, Name: "foo", Type: "far"}},
		{"foo endp", "", Shape{Kind: ShapeRoutineEnd, Name: "foo"}},
		{"aName db 'x',0", "", Shape{Kind: ShapeNamedData, Name: "aName", Type: "db", Value: "'x',0"}},
		{"dw 5 dup(?)", "", Shape{Kind: ShapeData, Type: "dw", Value: "5 dup(?)"}},
		{"align 10h", "", Shape{Kind: ShapeAlign, Count: 16}},
		{"align 2", "", Shape{Kind: ShapeAlign, Count: 2}},
		{"pt Point <?>", "", Shape{Kind: ShapeStructBSS, Name: "pt", Type: "Point"}},
		{"pts Point 3 dup(<?>)", "", Shape{Kind: ShapeStructBSSArray, Name: "pts", Type: "Point", Count: 3, Directive: "Point 3 dup(<?>)"}},
		{"pt Point <1, 2>", "", Shape{Kind: ShapeStructVar, Name: "pt", Type: "Point", Value: "1, 2"}},
		{"Point <3, 4>", "", Shape{Kind: ShapeStructInit, Type: "Point", Value: "3, 4"}},
		{"pts Point 2 dup(<0>)", "", Shape{Kind: ShapeStructArray, Name: "pts", Type: "Point", Count: 2, Value: "0"}},
		{"jmp far ptr gfx_init", "", Shape{Kind: ShapeFarJump, Name: "gfx_init"}},
		{"", "[00000010 BYTES: COLLAPSED FUNCTION sub_10. PRESS CTRL-NUMPAD+ TO EXPAND]", Shape{Kind: ShapeCollapsed, Name: "sub_10", Count: 16}},
		{"", "lst2ch: ignore", Shape{Kind: ShapeSecret, Value: "ignore"}},
		{"", "int __cdecl main(int argc)", Shape{Kind: ShapePrototype, Name: "main", Value: "int __cdecl main(int argc)"}},
		{"mov ax, bx", "lst2ch: ignore", Shape{Kind: ShapeNone}},
		{"", "just a note", Shape{Kind: ShapeNone}},
	}
	for _, tt := range tests {
		got, err := Classify(Item{Instr: tt.instr, Comment: tt.comment})
		if err != nil {
			t.Errorf("Classify(%q, %q): %v", tt.instr, tt.comment, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Classify(%q, %q) = %+v, want %+v", tt.instr, tt.comment, got, tt.want)
		}
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	// A named struct var also fits the unnamed struct-data shape's tail; the
	// earlier matcher must win.
	got, err := Classify(Item{Instr: "pt Point <1>"})
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != ShapeStructVar {
		t.Errorf("kind = %v, want %v", got.Kind, ShapeStructVar)
	}
}
