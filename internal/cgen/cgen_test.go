package cgen

import (
	"strings"
	"testing"

	"lstconv/internal/entity"
)

func TestWriteHeader(t *testing.T) {
	foo := entity.NewRoutine("foo", "far", "seg000", 0x10)
	foo.Comments = []string{"draws a frame", "==== seg000:0x10 ===="}
	main := entity.NewRoutine("main", "near", "seg000", 0)
	proto := entity.NewRoutine("bar", "near", "seg000", 0x20)
	proto.Prototype = "int bar(int x)"

	count := entity.NewVariable("count", "dseg", 0, 2, nil)
	count.Count = 1
	hidden := entity.NewVariable("hidden", "dseg", 2, 1, nil)
	hidden.Count, hidden.OmitHeader = 1, true
	dummy := entity.NewVariable("dseg_byte_3", "dseg", 3, 1, nil)
	dummy.Count, dummy.Dummy = 1, true
	custom := entity.NewVariable("table", "dseg", 4, 2, nil)
	custom.Count, custom.Decl = 4, "extern const uint16 table[4];"

	var sb strings.Builder
	err := WriteHeader(&sb, Header{
		Preamble: []string{"#pragma once"},
		Coda:     []string{"// end"},
		Enums:    []entity.Enum{{Name: "MAX_LEN", Value: 16}},
		Routines: []*entity.Routine{main, foo, entity.NewRoutine("", "", "seg000", 0x18), proto},
		Vars:     []*entity.Variable{count, hidden, dummy, custom},
	})
	if err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	want := strings.Join([]string{
		"#pragma once",
		"#define MAX_LEN 0x10",
		"// draws a frame",
		"// ==== seg000:0x10 ====",
		"void __far foo(void);",
		"// ==== module boundary seg000:0x18 ====",
		"int bar(int x);",
		"extern uint16 count;",
		"extern const uint16 table[4];",
		"// end",
		"",
	}, "\n")
	if got := sb.String(); got != want {
		t.Errorf("header mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestCType(t *testing.T) {
	st := &entity.Struct{Name: "Point", Size: 4}
	tests := []struct {
		name string
		v    *entity.Variable
		want string
	}{
		{"byte", &entity.Variable{ItemSize: 1, Tag: entity.TagArray}, "uint8"},
		{"word", &entity.Variable{ItemSize: 2, Tag: entity.TagBSS}, "uint16"},
		{"dword", &entity.Variable{ItemSize: 4, Tag: entity.TagArray}, "uint32"},
		{"near pointer", &entity.Variable{ItemSize: 2, Tag: entity.TagPointer}, "void*"},
		{"far pointer", &entity.Variable{ItemSize: 4, Tag: entity.TagPointer}, "void far*"},
		{"string", &entity.Variable{ItemSize: 1, Tag: entity.TagString}, "char"},
		{"struct", &entity.Variable{ItemSize: 4, Struct: st}, "struct Point"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CType(tt.v); got != tt.want {
				t.Errorf("CType = %q, want %q", got, tt.want)
			}
		})
	}
}

func num(n int64) entity.Value { return entity.Value{Kind: entity.ValNumber, Num: n} }

func TestDef(t *testing.T) {
	st := &entity.Struct{Name: "Point", Size: 4}
	tests := []struct {
		name string
		v    *entity.Variable
		want string
	}{
		{
			"scalar",
			&entity.Variable{Name: "count", ItemSize: 2, Count: 1, Tag: entity.TagArray, Values: []entity.Value{num(5)}},
			"uint16 count = 0x5;",
		},
		{
			"array",
			&entity.Variable{Name: "tbl", ItemSize: 1, Count: 3, Tag: entity.TagArray, Values: []entity.Value{num(1), num(2), num(255)}},
			"uint8 tbl[3] = {0x1, 0x2, 0xff};",
		},
		{
			"bss",
			&entity.Variable{Name: "buf", ItemSize: 1, Count: 8, Tag: entity.TagBSS, Values: entity.Uninit(8)},
			"uint8 buf[8];",
		},
		{
			"string",
			&entity.Variable{Name: "aHi", ItemSize: 1, Count: 4, Tag: entity.TagString, Values: []entity.Value{{Kind: entity.ValString, Text: `a"b`}}},
			`char aHi[4] = "a\"b";`,
		},
		{
			"strings",
			&entity.Variable{Name: "aList", ItemSize: 1, Count: 6, Tag: entity.TagString, Values: []entity.Value{
				{Kind: entity.ValString, Text: "ab"}, {Kind: entity.ValString, Text: "cd"},
			}},
			`char aList[6] = "ab\0cd";`,
		},
		{
			"pointers",
			&entity.Variable{Name: "ptrs", ItemSize: 2, Count: 2, Tag: entity.TagPointer, Values: []entity.Value{
				{Kind: entity.ValPointer, Text: "aHi"}, {Kind: entity.ValSegment, Text: "dseg"},
			}},
			"void* ptrs[2] = {&aHi, NULL /* seg dseg */};",
		},
		{
			"chars",
			&entity.Variable{Name: "ch", ItemSize: 1, Count: 2, Tag: entity.TagArray, Values: []entity.Value{
				{Kind: entity.ValChar, Text: "'"}, {Kind: entity.ValChar, Text: "x"},
			}},
			`uint8 ch[2] = {'\'', 'x'};`,
		},
		{
			"struct",
			&entity.Variable{Name: "origin", ItemSize: 4, Count: 1, Struct: st, Tag: entity.TagArray, Values: []entity.Value{num(1), num(2)}},
			"struct Point origin = {0x1, 0x2};",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Def(tt.v); got != tt.want {
				t.Errorf("Def = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefWraps(t *testing.T) {
	v := &entity.Variable{Name: "big", ItemSize: 1, Count: 20, Tag: entity.TagArray, Values: entity.Numbers(20, 0)}
	got := Def(v)
	lines := strings.Split(got, "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), got)
	}
	if lines[0] != "uint8 big[20] = {" || lines[3] != "};" {
		t.Errorf("unexpected framing:\n%s", got)
	}
	if n := strings.Count(lines[1], "0x0"); n != valuesPerLine {
		t.Errorf("first row has %d values, want %d", n, valuesPerLine)
	}
	if !strings.HasSuffix(lines[1], ",") || strings.HasSuffix(lines[2], ",") {
		t.Errorf("row separators wrong:\n%s", got)
	}
}

func TestWriteSource(t *testing.T) {
	a := &entity.Variable{Name: "a", ItemSize: 1, Count: 1, Tag: entity.TagArray, Values: []entity.Value{num(1)}, Comments: []string{"first"}}
	b := &entity.Variable{Name: "b", ItemSize: 2, Count: 2, Tag: entity.TagBSS, Values: entity.Uninit(2)}
	c := &entity.Variable{Name: "c", ItemSize: 1, Count: 1, Tag: entity.TagBSS, Values: entity.Uninit(1), Dummy: true}

	var sb strings.Builder
	if err := WriteSource(&sb, []*entity.Variable{a, b, c}); err != nil {
		t.Fatalf("WriteSource: %v", err)
	}
	want := "// first\nuint8 a = 0x1;\n// BSS values follow\nuint16 b[2];\nuint8 c;\n"
	if got := sb.String(); got != want {
		t.Errorf("source mismatch:\n%q\nwant\n%q", got, want)
	}
}
