package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// parseArgs parses flags that may appear before, between or after the
// positional arguments and returns exactly len(names) positionals.
func parseArgs(fs *flag.FlagSet, args []string, names ...string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			break
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
	if len(pos) != len(names) {
		return nil, fmt.Errorf("%s: expected %s, got %d arguments", fs.Name(), strings.Join(names, " "), len(pos))
	}
	return pos, nil
}

// debugSink returns stderr when debug output is requested by flag or by
// LSTCONV_DEBUG, else nil.
func debugSink(flagged bool) io.Writer {
	if flagged {
		return os.Stderr
	}
	if on, err := strconv.ParseBool(os.Getenv("LSTCONV_DEBUG")); err == nil && on {
		return os.Stderr
	}
	return nil
}
