package layout

import (
	"fmt"
	"sort"
)

// SiteStat accumulates the calls seen at one site.
type SiteStat struct {
	Count int
	Sum   int
}

// Mean returns the fraction of true calls.
func (s *SiteStat) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Count)
}

// Label formats the mean the way it is printed above the site: "0" and "1"
// exactly, two decimals otherwise.
func (s *SiteStat) Label() string {
	switch m := s.Mean(); m {
	case 0:
		return "0"
	case 1:
		return "1"
	default:
		return fmt.Sprintf("%.2f", m)
	}
}

// SiteAggregate maps a genomic display position to its statistics.
type SiteAggregate map[int]*SiteStat

func (a SiteAggregate) add(pos int, call bool) {
	s, ok := a[pos]
	if !ok {
		s = &SiteStat{}
		a[pos] = s
	}
	s.Count++
	if call {
		s.Sum++
	}
}

// Positions returns the aggregated positions in ascending order.
func (a SiteAggregate) Positions() []int {
	pos := make([]int, 0, len(a))
	for p := range a {
		pos = append(pos, p)
	}
	sort.Ints(pos)
	return pos
}
