package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"lstconv/internal/callgraph"
	"lstconv/internal/cgen"
	"lstconv/internal/config"
	"lstconv/internal/diag"
	"lstconv/internal/entity"
	"lstconv/internal/listing"
	"lstconv/internal/output"
	"lstconv/internal/reconstruct"
)

func cmdCh(args []string) error {
	fs := flag.NewFlagSet("ch", flag.ExitOnError)
	noC := fs.Bool("noc", false, "do not write the C source")
	noH := fs.Bool("noh", false, "do not write the C header")
	debug := fs.Bool("debug", false, "print per-line diagnostics")
	jsonOut := fs.Bool("json", false, "write a JSON inventory of routines and variables")
	graph := fs.Bool("graph", false, "write the routine call graph as DOT")

	pos, err := parseArgs(fs, args, "<lst>", "<outdir>", "<conf>")
	if err != nil {
		return err
	}
	lstPath, outDir, confPath := pos[0], pos[1], pos[2]

	cfg, err := config.Load(confPath)
	if err != nil {
		return err
	}
	opts := reconstruct.Options{Debug: debugSink(*debug)}

	stem := strings.TrimSuffix(lstPath, filepath.Ext(lstPath))
	base := filepath.Base(stem)
	hPath := filepath.Join(outDir, base+".h")
	cPath := filepath.Join(outDir, base+".c")
	var outputs []string
	if !*noH {
		outputs = append(outputs, hPath)
	}
	if !*noC {
		outputs = append(outputs, cPath)
	}

	var (
		structs entity.Structs
		enums   []entity.Enum
	)
	incPath := stem + ".inc"
	if _, err := os.Stat(incPath); err == nil {
		structs, enums, err = parseIncludeFile(incPath, cfg, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "parsed %s (%d structs, %d enums)\n", incPath, len(structs), len(enums))
	}

	res, err := parseListingFile(lstPath, cfg, structs, opts)
	if err != nil {
		return err
	}
	if res.Empty() {
		fmt.Fprintf(os.Stderr, "no routines or variables in %s, touching outputs\n", lstPath)
		return output.Touch(outputs...)
	}

	fmt.Fprintf(os.Stderr, "found %d routines (%d ignored), %d variables (%s bytes)\n",
		len(res.Routines), res.Ignored, len(res.Variables), listing.Hex(res.VarSize()))
	stats := reconstruct.Stats(res, cfg)
	for _, l := range stats.Summary() {
		fmt.Fprintln(os.Stderr, l)
	}
	if err := res.Verify(int(cfg.DataSize)); err != nil {
		return err
	}

	if !*noH {
		err := writeText(hPath, func(w io.Writer) error {
			return cgen.WriteHeader(w, cgen.Header{
				Preamble: cfg.HeaderPreamble,
				Coda:     cfg.HeaderCoda,
				Enums:    enums,
				Routines: res.Routines,
				Vars:     res.Variables,
			})
		})
		if err != nil {
			return err
		}
	}
	if !*noC {
		err := writeText(cPath, func(w io.Writer) error {
			return cgen.WriteSource(w, res.Variables)
		})
		if err != nil {
			return err
		}
	}

	if !*jsonOut && !*graph {
		return nil
	}
	cg := callgraph.Build(res.Routines)
	if *graph {
		dotPath := filepath.Join(outDir, base+".dot")
		if err := output.WriteDOT(dotPath, cg, base); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%d nodes, %d edges, %d entry points)\n",
			dotPath, len(cg.Nodes), len(cg.Edges), len(callgraph.EntryPoints(cg)))
	}
	if *jsonOut {
		jsonPath := filepath.Join(outDir, base+".json")
		inv := &output.Inventory{
			Listing:     filepath.Base(lstPath),
			Routines:    res.Routines,
			Variables:   res.Variables,
			Enums:       enums,
			Ignored:     res.Ignored,
			DataSize:    res.VarSize(),
			Stats:       stats,
			Unreachable: callgraph.Unreachable(cg, "main"),
		}
		if err := output.WriteInventoryJSON(jsonPath, inv); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%d routines, %d variables)\n", jsonPath, len(inv.Routines), len(inv.Variables))
	}
	return nil
}

func parseIncludeFile(path string, cfg *config.Config, opts reconstruct.Options) (entity.Structs, []entity.Enum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, diag.IOf("", "open include: %v", err)
	}
	defer f.Close()
	structs, enums, err := reconstruct.ParseInclude(f, cfg, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return structs, enums, nil
}

func parseListingFile(path string, cfg *config.Config, structs entity.Structs, opts reconstruct.Options) (*reconstruct.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, diag.IOf("", "input file does not exist: %s", path)
	}
	defer f.Close()
	return reconstruct.Parse(listing.NewReader(f), cfg, structs, opts)
}

// writeText writes a cp437 output file, removing it when fn or the close
// fails.
func writeText(path string, fn func(io.Writer) error) error {
	w, err := output.Create(path)
	if err != nil {
		return diag.IOf("", "%v", err)
	}
	err = fn(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return diag.IOf("", "write %s: %v", path, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s\n", path)
	return nil
}
