package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"lstconv/internal/diag"
)

//go:embed schema.cue
var schemaSrc []byte

// Load reads and validates a config file. The file is JSON that may carry
// "//" line comments; it is checked against the embedded #Config schema.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, diag.IOf("", "config file: %v", err)
	}
	return Parse(data, path)
}

// Parse validates and decodes config text. name is used in error positions.
func Parse(data []byte, name string) (*Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileBytes(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config: compiling schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(name))
	if err := v.Err(); err != nil {
		return nil, diag.Configf(name, "%s", cueMessages(err))
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("config: looking up #Config: %w", err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, diag.Configf(name, "schema validation failed: %s", cueMessages(err))
	}

	js, err := unified.MarshalJSON()
	if err != nil {
		return nil, diag.Configf(name, "export: %s", cueMessages(err))
	}
	var cfg Config
	if err := json.Unmarshal(js, &cfg); err != nil {
		return nil, diag.Configf(name, "decode: %v", err)
	}
	if err := cfg.check(); err != nil {
		return nil, diag.At(err, name)
	}
	return &cfg, nil
}

func cueMessages(err error) string {
	var msgs []string
	for _, e := range errors.Errors(err) {
		msgs = append(msgs, errors.Details(e, nil))
	}
	return strings.TrimSpace(strings.Join(msgs, "; "))
}

// check enforces constraints the schema cannot express.
func (c *Config) check() error {
	for _, w := range c.Windows() {
		if w.End < w.Begin {
			return diag.Configf("", "extract window %s:0x%x ends before it begins (0x%x)", w.Segment, w.Begin, w.End)
		}
	}
	for _, r := range c.BSS {
		if r.End < r.Begin {
			return diag.Configf("", "bss region %s:0x%x ends before it begins (0x%x)", r.Segment, int(r.Begin), int(r.End))
		}
	}
	for _, s := range append(append([]string{}, c.CodeSegments...), c.DataSegments...) {
		if !c.IsInput(s) {
			return diag.Configf("", "segment %s is classified but not listed in in_segments", s)
		}
	}
	return nil
}
