package asmgen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"lstconv/internal/config"
	"lstconv/internal/diag"
	"lstconv/internal/listing"
	"lstconv/internal/output"
)

// ErrEmptyInput is returned by ConvertFile when the listing is empty. The
// output file has been created empty.
var ErrEmptyInput = errors.New("asmgen: input file empty")

// ConvertFile converts the listing at lstPath into asmPath. Extraction files
// are written next to asmPath. On any error the partial asmPath is removed.
func ConvertFile(lstPath, asmPath string, cfg *config.Config, opts Options) (res *Result, err error) {
	st, err := os.Stat(lstPath)
	if err != nil {
		return nil, diag.IOf("", "input file does not exist: %s", lstPath)
	}
	if st.Size() == 0 {
		if err := output.Touch(asmPath); err != nil {
			return nil, diag.IOf("", "%v", err)
		}
		return nil, ErrEmptyInput
	}

	lst, err := os.Open(lstPath)
	if err != nil {
		return nil, diag.IOf("", "open listing: %v", err)
	}
	defer lst.Close()

	if cfg.Include != "" && opts.Include == nil {
		inc, err := os.Open(cfg.Include)
		if err != nil {
			return nil, diag.IOf("", "include file does not exist: %s", cfg.Include)
		}
		defer inc.Close()
		opts.Include = inc
	}

	f, err := os.Create(asmPath)
	if err != nil {
		return nil, diag.IOf("", "create output: %v", err)
	}
	out := output.NewEncoder(f)
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = diag.IOf("", "close output: %v", cerr)
		}
		if err != nil {
			if opts.Debug != nil {
				fmt.Fprintf(opts.Debug, "removing output file %s due to fatal error\n", asmPath)
			}
			os.Remove(asmPath)
			res = nil
		}
	}()

	c := New(out, cfg, DirSinks(filepath.Dir(asmPath)), opts)
	return c.Convert(listing.NewReader(lst))
}
