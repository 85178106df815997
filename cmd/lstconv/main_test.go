package main

import (
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lstconv/internal/diag"
)

const testConf = `{
	// one code and one data segment
	"in_segments": ["seg000", "dseg"],
	"code_segments": ["seg000"],
	"data_segments": ["dseg"],
	"out_segments": [{"name": "seg000", "class": "CODE"}, {"name": "dseg", "class": "DATA"}],
	"preamble": [".8086"],
	"data_size": "10h",
	"header_preamble": "#include \"types.h\"",
}
`

const testListing = `seg000:0000 seg000 segment byte public 'CODE' use16
seg000:0000 main proc near
seg000:0000 call draw
seg000:0003 retn
seg000:0004 main endp
seg000:0004 draw proc near
seg000:0004 cmp ax, 13h
seg000:0007 retn
seg000:0008 draw endp
seg000:0008 seg000 ends
dseg:0000 aHello db 'Hello',0
dseg:0006 count dw 2 dup(0)
dseg:000A db 1
dseg:000B buf db 5 dup(?)
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func setup(t *testing.T) (dir, lst, conf string) {
	t.Helper()
	dir = t.TempDir()
	lst = filepath.Join(dir, "game.lst")
	conf = filepath.Join(dir, "game.json")
	writeFile(t, lst, testListing)
	writeFile(t, conf, testConf)
	return dir, lst, conf
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []string
		debug   bool
		wantErr bool
	}{
		{"positional only", []string{"a", "b", "c"}, []string{"a", "b", "c"}, false, false},
		{"flag first", []string{"--debug", "a", "b", "c"}, []string{"a", "b", "c"}, true, false},
		{"flag last", []string{"a", "b", "c", "--debug"}, []string{"a", "b", "c"}, true, false},
		{"flag between", []string{"a", "-debug", "b", "c"}, []string{"a", "b", "c"}, true, false},
		{"missing", []string{"a", "b"}, nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			debug := fs.Bool("debug", false, "")
			got, err := parseArgs(fs, tt.args, "<x>", "<y>", "<z>")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("positionals = %v, want %v", got, tt.want)
			}
			if *debug != tt.debug {
				t.Errorf("debug = %v, want %v", *debug, tt.debug)
			}
		})
	}
}

func TestCmdAsm(t *testing.T) {
	dir, lst, conf := setup(t)
	asm := filepath.Join(dir, "game.asm")
	if err := cmdAsm([]string{lst, asm, conf}); err != nil {
		t.Fatalf("cmdAsm: %v", err)
	}
	got := readFile(t, asm)
	for _, want := range []string{".8086", "main proc near", "    call draw", "    db 3Dh", "    dw 13h", "aHello db 'Hello',0"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestCmdAsmStub(t *testing.T) {
	dir, lst, conf := setup(t)
	asm := filepath.Join(dir, "game.asm")
	if err := cmdAsm([]string{"--stub", lst, asm, conf}); err != nil {
		t.Fatalf("cmdAsm: %v", err)
	}
	got := readFile(t, asm)
	if strings.Contains(got, "call draw") {
		t.Errorf("stub mode kept a routine body:\n%s", got)
	}
	if !strings.Contains(got, "    retn\nmain endp") {
		t.Errorf("stub mode lost the near return:\n%s", got)
	}
}

func TestCmdAsmEmptyInput(t *testing.T) {
	dir, lst, conf := setup(t)
	writeFile(t, lst, "")
	asm := filepath.Join(dir, "game.asm")
	if err := cmdAsm([]string{lst, asm, conf}); err != nil {
		t.Fatalf("cmdAsm: %v", err)
	}
	if st, err := os.Stat(asm); err != nil || st.Size() != 0 {
		t.Errorf("empty input should touch an empty output: %v", err)
	}
}

func TestCmdAsmRemovesOutputOnError(t *testing.T) {
	dir, lst, conf := setup(t)
	writeFile(t, lst, "seg000:0000 foo proc near\nseg000:0001 bar endp\n")
	asm := filepath.Join(dir, "game.asm")
	err := cmdAsm([]string{lst, asm, conf})
	if !diag.Is(err, diag.KindStructural) {
		t.Fatalf("err = %v, want structural error", err)
	}
	if _, err := os.Stat(asm); !os.IsNotExist(err) {
		t.Errorf("partial output left behind: %v", err)
	}
}

func TestCmdCh(t *testing.T) {
	dir, lst, conf := setup(t)
	out := filepath.Join(dir, "out")
	if err := os.Mkdir(out, 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "game.inc"), "MAX_LEN = 10h\n")

	if err := cmdCh([]string{lst, out, conf, "--json", "--graph"}); err != nil {
		t.Fatalf("cmdCh: %v", err)
	}

	h := readFile(t, filepath.Join(out, "game.h"))
	for _, want := range []string{`#include "types.h"`, "#define MAX_LEN 0x10", "void draw(void);", "extern char aHello[6];", "extern uint16 count[2];"} {
		if !strings.Contains(h, want) {
			t.Errorf("header missing %q:\n%s", want, h)
		}
	}
	if strings.Contains(h, "main(void)") {
		t.Errorf("header declares main:\n%s", h)
	}
	if strings.Contains(h, "dseg_byte_a") {
		t.Errorf("header declares a dummy variable:\n%s", h)
	}

	c := readFile(t, filepath.Join(out, "game.c"))
	for _, want := range []string{`char aHello[6] = "Hello";`, "uint16 count[2] = {0x0, 0x0};", "// BSS values follow", "uint8 buf[5];"} {
		if !strings.Contains(c, want) {
			t.Errorf("source missing %q:\n%s", want, c)
		}
	}

	if dot := readFile(t, filepath.Join(out, "game.dot")); !strings.Contains(dot, "draw") {
		t.Errorf("call graph missing draw:\n%s", dot)
	}

	var inv struct {
		Routines  []json.RawMessage `json:"routines"`
		Variables []json.RawMessage `json:"variables"`
		DataSize  int               `json:"data_size"`
	}
	if err := json.Unmarshal([]byte(readFile(t, filepath.Join(out, "game.json"))), &inv); err != nil {
		t.Fatal(err)
	}
	if len(inv.Routines) != 2 || len(inv.Variables) != 4 || inv.DataSize != 0x10 {
		t.Errorf("inventory = %d routines, %d variables, %d bytes", len(inv.Routines), len(inv.Variables), inv.DataSize)
	}
}

func TestCmdChNoOutputs(t *testing.T) {
	dir, lst, conf := setup(t)
	if err := cmdCh([]string{"--noh", "--noc", lst, dir, conf}); err != nil {
		t.Fatalf("cmdCh: %v", err)
	}
	for _, name := range []string{"game.h", "game.c", "game.dot"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s written despite flags", name)
		}
	}
}

func TestCmdChDataSizeMismatch(t *testing.T) {
	dir, lst, conf := setup(t)
	writeFile(t, conf, strings.Replace(testConf, `"10h"`, `"12h"`, 1))
	err := cmdCh([]string{lst, dir, conf})
	if !diag.Is(err, diag.KindStructural) {
		t.Fatalf("err = %v, want structural error", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "game.h")); !os.IsNotExist(err) {
		t.Errorf("header written despite failed verification")
	}
}

func TestCmdChEmptyListing(t *testing.T) {
	dir, lst, conf := setup(t)
	writeFile(t, lst, "")
	if err := cmdCh([]string{lst, dir, conf}); err != nil {
		t.Fatalf("cmdCh: %v", err)
	}
	for _, name := range []string{"game.h", "game.c"} {
		if st, err := os.Stat(filepath.Join(dir, name)); err != nil || st.Size() != 0 {
			t.Errorf("%s not touched: %v", name, err)
		}
	}
}
