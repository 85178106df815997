package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"lstconv/internal/asmgen"
	"lstconv/internal/config"
)

func cmdAsm(args []string) error {
	fs := flag.NewFlagSet("asm", flag.ExitOnError)
	debug := fs.Bool("debug", false, "print per-line diagnostics")
	stub := fs.Bool("stub", false, "replace routine bodies with a near return")
	noProc := fs.Bool("noproc", false, "drop routines entirely")
	noPreserve := fs.Bool("nopreserve", false, "ignore the preserve list")

	pos, err := parseArgs(fs, args, "<lst>", "<asm>", "<conf>")
	if err != nil {
		return err
	}
	lstPath, asmPath, confPath := pos[0], pos[1], pos[2]

	cfg, err := config.Load(confPath)
	if err != nil {
		return err
	}

	res, err := asmgen.ConvertFile(lstPath, asmPath, cfg, asmgen.Options{
		Stub:       *stub,
		NoProc:     *noProc,
		NoPreserve: *noPreserve,
		Debug:      debugSink(*debug),
	})
	if errors.Is(err, asmgen.ErrEmptyInput) {
		fmt.Fprintf(os.Stderr, "input file %s is empty, touched %s\n", lstPath, asmPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("asm: %w", err)
	}

	for _, w := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes, %d routines, %d extraction windows, %d fixups)\n",
		asmPath, res.Bytes, len(res.Written), res.Windows, res.Fixups)
	return nil
}
