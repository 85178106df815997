package reconstruct

import (
	"fmt"

	"lstconv/internal/config"
	"lstconv/internal/listing"
)

// PortStats summarizes how much of the code has been ported to source via
// extraction windows.
type PortStats struct {
	Total     int `json:"total"`
	Ignored   int `json:"ignored"`
	Remaining int `json:"remaining"`
	Ported    int `json:"ported"`
	Unported  int `json:"unported"`

	RemainingSize int `json:"remaining_size"`
	PortedSize    int `json:"ported_size"`
	UnportedSize  int `json:"unported_size"`
}

// Stats computes porting statistics. Only ported windows in code segments
// count; a window ending at "endp" is one ported routine.
func Stats(res *Result, cfg *config.Config) PortStats {
	var s PortStats
	for _, r := range res.Routines {
		if r.IsBoundary() {
			continue
		}
		s.Remaining++
		s.RemainingSize += r.Size()
	}
	s.Ignored = res.Ignored
	s.Total = s.Remaining + s.Ignored
	for _, w := range cfg.Windows() {
		if !w.Ported || !cfg.IsCode(w.Segment) {
			continue
		}
		if w.EndText == "endp" {
			s.Ported++
		}
		s.PortedSize += w.Size()
	}
	s.Unported = s.Remaining - s.Ported
	s.UnportedSize = s.RemainingSize - s.PortedSize
	return s
}

func percent(part, whole int, empty string) string {
	if whole == 0 {
		return empty
	}
	return fmt.Sprintf("%.2f%%", float64(part)*100/float64(whole))
}

// Summary renders the two report lines printed after a run.
func (s PortStats) Summary() []string {
	return []string{
		fmt.Sprintf("found routines: total: %d, ignored: %d, remaining: %d, ported: %d, unported: %d",
			s.Total, s.Ignored, s.Remaining, s.Ported, s.Unported),
		fmt.Sprintf("accumulated routines' size: remaining: %s/100%%, ported: %s/%s, unported: %s/%s",
			listing.Hex(s.RemainingSize),
			listing.Hex(s.PortedSize), percent(s.PortedSize, s.RemainingSize, "0%"),
			listing.Hex(s.UnportedSize), percent(s.UnportedSize, s.RemainingSize, "100%")),
	}
}
