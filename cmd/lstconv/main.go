package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "asm":
		err = cmdAsm(os.Args[2:])
	case "ch":
		err = cmdCh(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `lstconv - disassembly listing converter

Usage:
  lstconv asm <lst> <asm> <conf> [--debug] [--stub] [--noproc] [--nopreserve]
        Convert a listing into reassemblable assembly source
  lstconv ch  <lst> <outdir> <conf> [--noc] [--noh] [--debug] [--json] [--graph]
        Reconstruct routines and variables into a C header and source

Environment:
  LSTCONV_DEBUG=1   same as --debug (also read from .env)
`)
}
