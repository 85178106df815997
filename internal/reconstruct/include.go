package reconstruct

import (
	"errors"
	"io"
	"regexp"
	"strconv"

	"lstconv/internal/config"
	"lstconv/internal/diag"
	"lstconv/internal/entity"
	"lstconv/internal/listing"
)

var (
	structRe = regexp.MustCompile(`^([_a-zA-Z0-9]+)\s+struc\s*;\s*\(\s*sizeof=([x0-9a-fA-F]+h?)`)
	enumRe   = regexp.MustCompile(`^([_a-zA-Z0-9]+)\s*=\s*([x0-9a-fA-F]+h?)`)
)

// ParseInclude reads struct layouts and enum defines from a definition file.
// Struct members are parsed by a nested pass over the struct's lines; their
// sizes must add up to the declared struct size.
func ParseInclude(r io.Reader, cfg *config.Config, opts Options) (entity.Structs, []entity.Enum, error) {
	structs := entity.Structs{}
	var enums []entity.Enum
	lines := listing.NewLineReader(r)
	for {
		raw, n, err := lines.NextLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		loc := "line " + strconv.Itoa(n)
		instr := listing.Squeeze(raw)
		if m := structRe.FindStringSubmatch(instr); m != nil {
			size, err := listing.ParseCount(m[2])
			if err != nil {
				return nil, nil, diag.At(err, loc)
			}
			if size == 0 {
				continue
			}
			debugf(opts.Debug, "found struct %s, size = %s\n", m[1], listing.Hex(size))
			res, err := Parse(listing.NewStructReader(lines, m[1]), cfg, structs, opts)
			if err != nil {
				return nil, nil, err
			}
			if len(res.Variables) == 0 {
				return nil, nil, diag.Configf(loc, "no members could be identified in struct %s", m[1])
			}
			st := &entity.Struct{Name: m[1], Size: size, Members: res.Variables}
			if got := st.MemberSize(); got != size {
				return nil, nil, diag.Configf(loc, "members of struct %s add up to %s, declared size %s",
					m[1], listing.Hex(got), listing.Hex(size))
			}
			structs[st.Name] = st
			continue
		}
		if m := enumRe.FindStringSubmatch(instr); m != nil {
			v, err := listing.ParseNum(m[2])
			if err != nil {
				return nil, nil, diag.At(err, loc)
			}
			enums = append(enums, entity.Enum{Name: m[1], Value: v})
		}
	}
	return structs, enums, nil
}
