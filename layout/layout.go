// Package layout assigns overlapping haplotype features to display rows and
// aggregates their per-site calls.
//
// Rows are assigned greedily in input order.  A feature's row is one more
// than the number of already placed features that overlap it, raised to at
// least the row that claimed either of its endpoints.  The result depends on
// the input order: the same order always yields the same rows, a different
// order may not.  Row 0 is reserved for the aggregate band.
//
// In the same pass each feature walks the reference snapshot from one base
// before its start through its end.  Every occurrence of the motif consumes
// the feature's next call and adds it to the site's aggregate.  Positions
// outside the snapshot collapse into a single padding anchor on each side.
package layout

import (
	"bytes"
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hapview/encoding/hap"
	"github.com/grailbio/hapview/window"
)

// Options configures an Engine.
type Options struct {
	// Motif gates call sites; matched case-insensitively.
	Motif string `yaml:"motif"`
	// SiteShift moves reverse-strand sites right by this many bases, onto
	// the G of a CpG.
	SiteShift int `yaml:"site_shift"`
	// ExtentShift moves the row-packing extent of reverse-strand features.
	ExtentShift int `yaml:"extent_shift"`
	// StrictCounts fails features that declare more calls than they cover
	// sites.  By default surplus calls are ignored.
	StrictCounts bool `yaml:"strict_counts"`
}

// DefaultOptions gates on CpG sites.
var DefaultOptions = Options{Motif: "CG", SiteShift: 1}

// Anchor is one point of a feature's track: a gated site carrying a call, or
// a padding point where the feature runs off the reference snapshot.
type Anchor struct {
	// Pos is the genomic display position.  Left padding sits at the
	// snapshot start and right padding at its end.
	Pos  int
	Pad  bool
	Call bool
}

// Placement is the layout of one feature.
type Placement struct {
	// Index of the feature in the input slice.
	Index   int
	Row     int
	Anchors []Anchor
}

// RowAssignment maps input index to row.  Features that failed have row 0.
type RowAssignment []int

// OverflowError reports a feature whose declared calls do not match the gated
// sites it covers.  The feature is left out of the layout.
type OverflowError struct {
	Index int
	Span  hap.Interval
	// Calls is the number of declared calls; Sites the number of gated sites
	// seen before the walk stopped.
	Calls int
	Sites int
}

func (e *OverflowError) Error() string {
	if e.Sites > e.Calls {
		return fmt.Sprintf("layout: feature %d (%s:%d-%d) has %d calls but covers more gated sites",
			e.Index, e.Span.Chr, e.Span.Start, e.Span.End, e.Calls)
	}
	return fmt.Sprintf("layout: feature %d (%s:%d-%d) has %d calls but covers %d gated sites",
		e.Index, e.Span.Chr, e.Span.Start, e.Span.End, e.Calls, e.Sites)
}

// Result is the output of Engine.Layout.
type Result struct {
	// Placements of the features that were laid out, in input order.
	Placements []Placement
	Sites      SiteAggregate
	// Errs holds one *OverflowError per skipped feature.
	Errs   []error
	MaxRow int

	n int
}

// Rows returns the row of every input feature.
func (r *Result) Rows() RowAssignment {
	rows := make(RowAssignment, r.n)
	for _, p := range r.Placements {
		rows[p.Index] = p.Row
	}
	return rows
}

type extent struct{ start, end int }

// packer assigns rows.  claims maps an endpoint to the row that last
// claimed it.
type packer struct {
	placed []extent
	claims map[int]int
}

func newPacker() *packer {
	return &packer{claims: make(map[int]int)}
}

func (p *packer) place(start, end int) int {
	row := 0
	for _, a := range p.placed {
		if a.start <= end && a.end >= start {
			row++
		}
	}
	for _, pos := range [2]int{start, end} {
		if claimed, ok := p.claims[pos]; ok {
			if claimed > row {
				row = claimed
			}
			delete(p.claims, pos)
		}
	}
	row++
	p.claims[start] = row
	p.claims[end] = row
	p.placed = append(p.placed, extent{start, end})
	return row
}

// Engine lays out features.  Stateless between calls, so one Engine may
// serve several goroutines.
type Engine struct {
	opts  Options
	motif []byte
}

// New creates an Engine.  An empty Motif defaults to DefaultOptions.Motif.
func New(opts Options) *Engine {
	if opts.Motif == "" {
		opts.Motif = DefaultOptions.Motif
	}
	return &Engine{opts: opts, motif: []byte(opts.Motif)}
}

// Options returns the options in effect.
func (e *Engine) Options() Options { return e.opts }

func (e *Engine) matchAt(seq []byte, idx int) bool {
	end := idx + len(e.motif)
	return end <= len(seq) && bytes.EqualFold(seq[idx:end], e.motif)
}

// walk appends the anchors of h to buf and returns the number of gated sites
// seen.  It reports false when h runs out of calls, or under StrictCounts
// when calls are left over.
func (e *Engine) walk(h *hap.Hap, seq []byte, seqStart int, buf []Anchor) ([]Anchor, int, bool) {
	first, last := h.Start-1, h.End
	if first < seqStart {
		buf = append(buf, Anchor{Pos: seqStart, Pad: true})
		first = seqStart
	}
	// A site needs the base after it, so indexes from len(seq)-1 on collapse
	// into the right padding anchor.
	padIdx := len(seq) - 1
	if padIdx < 0 {
		padIdx = 0
	}
	rightPad := last-seqStart >= padIdx
	if rightPad {
		last = seqStart + len(seq) - 2
	}
	call := 0
	for loc := first; loc <= last; loc++ {
		if !e.matchAt(seq, loc-seqStart) {
			continue
		}
		if call >= len(h.States) {
			return buf, call + 1, false
		}
		pos := loc
		if h.Strand == hap.Reverse {
			pos += e.opts.SiteShift
		}
		buf = append(buf, Anchor{Pos: pos, Call: h.States[call]})
		call++
	}
	if rightPad {
		buf = append(buf, Anchor{Pos: seqStart + len(seq), Pad: true})
	}
	if e.opts.StrictCounts && call < len(h.States) {
		return buf, call, false
	}
	return buf, call, true
}

// Layout places haps, in order, against the reference snapshot seq, which
// starts at genomic position seqStart.  A feature that fails its site walk
// gets no row and contributes nothing to the aggregates; the others are
// unaffected.
func (e *Engine) Layout(haps []*hap.Hap, seq []byte, seqStart int) *Result {
	res := &Result{Sites: make(SiteAggregate), n: len(haps)}
	p := newPacker()
	var buf []Anchor
	for i, h := range haps {
		var (
			sites int
			ok    bool
		)
		buf, sites, ok = e.walk(h, seq, seqStart, buf[:0])
		if !ok {
			err := &OverflowError{Index: i, Span: h.Span(), Calls: len(h.States), Sites: sites}
			log.Debug.Printf("%v", err)
			res.Errs = append(res.Errs, err)
			continue
		}
		start, end := h.Start, h.End
		if h.Strand == hap.Reverse {
			start += e.opts.ExtentShift
			end += e.opts.ExtentShift
		}
		row := p.place(start, end)
		if row > res.MaxRow {
			res.MaxRow = row
		}
		anchors := make([]Anchor, len(buf))
		copy(anchors, buf)
		for _, a := range anchors {
			if !a.Pad {
				res.Sites.add(a.Pos, a.Call)
			}
		}
		res.Placements = append(res.Placements, Placement{Index: i, Row: row, Anchors: anchors})
	}
	return res
}

// LayoutWindow lays out the haplotype records of w against its sequence.
func (e *Engine) LayoutWindow(w *window.Window) *Result {
	return e.Layout(w.Haps(), w.Sequence, w.SequenceStart)
}

// CorrelationRows packs correlation intervals into rows with the same rule
// used for haplotypes.
func CorrelationRows(corrs []*hap.Correlation) RowAssignment {
	p := newPacker()
	rows := make(RowAssignment, len(corrs))
	for i, c := range corrs {
		rows[i] = p.place(c.Start, c.End)
	}
	return rows
}
