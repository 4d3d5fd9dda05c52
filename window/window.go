// Package window loads and caches, per viewport, the records and reference
// sequence around the visible genomic span.
//
// A Cache holds one slot per viewport id.  Each Load replaces the slot
// wholesale; nothing is shared between viewports even when their spans
// overlap.
package window

import (
	"github.com/grailbio/hapview/encoding/hap"
)

// Window is the data loaded for one viewport.
type Window struct {
	Chr string
	// ChromLen is the chromosome length reported by the sequence source, or
	// zero when the cache has none.
	ChromLen int
	// QueriedStart and QueriedEnd bound the record query (expanded and
	// margin padded).
	QueriedStart int
	QueriedEnd   int
	// Records overlap (streamed) or lie within (cached) the queried range,
	// in file order.
	Records []hap.Record
	// Sequence is the reference for [SequenceStart, SequenceEnd).
	Sequence      []byte
	SequenceStart int
	SequenceEnd   int
	// Truncated is set when the view was too wide to load records.
	Truncated bool
	// Skipped counts lines that failed to decode.
	Skipped int
}

// Haps returns the haplotype records of the window.
func (w *Window) Haps() []*hap.Hap {
	var haps []*hap.Hap
	for _, r := range w.Records {
		if h, ok := r.(*hap.Hap); ok {
			haps = append(haps, h)
		}
	}
	return haps
}

// Correlations returns the correlation records of the window.
func (w *Window) Correlations() []*hap.Correlation {
	var corrs []*hap.Correlation
	for _, r := range w.Records {
		if c, ok := r.(*hap.Correlation); ok {
			corrs = append(corrs, c)
		}
	}
	return corrs
}

// Contains reports whether the loaded sequence covers [start, end) on chr.
// end is first clamped to the chromosome length, so a view that runs past
// the chromosome end can still be covered.
func (w *Window) Contains(chr string, start, end int) bool {
	if w == nil || w.Chr != chr {
		return false
	}
	if w.ChromLen > 0 && end > w.ChromLen {
		end = w.ChromLen
	}
	if start < 0 {
		start = 0
	}
	return start >= w.SequenceStart && end <= w.SequenceEnd
}
