package window

import (
	"fmt"

	"github.com/grailbio/hapview/encoding/hap"
	"github.com/grailbio/hapview/viewport"
)

// Policy controls how much data is loaded around a visible span.
type Policy struct {
	// MaxWidth is the widest visible span, in bases, for which records are
	// loaded.  Wider views get a sequence snapshot but no records.
	MaxWidth int `yaml:"max_width"`
	// Margin pads the record query on both sides, so that features
	// starting just outside the expanded span are still found.
	Margin int `yaml:"margin"`
}

var (
	// HapPolicy is the default for haplotype records.
	HapPolicy = Policy{MaxWidth: 1000, Margin: 50}
	// CorrelationPolicy is the default for correlation records.
	CorrelationPolicy = Policy{MaxWidth: 3000, Margin: 0}
)

// DefaultPolicy returns the policy used for kind when none is configured.
func DefaultPolicy(kind hap.Kind) Policy {
	if kind == hap.CorrelationKind {
		return CorrelationPolicy
	}
	return HapPolicy
}

// Request is the visible span of one viewport, 0-based half-open.
type Request struct {
	Chr   string
	Start int
	End   int
}

// RequestFromFrame returns the span shown by f.
func RequestFromFrame(f viewport.Frame) Request {
	start, end := f.Span()
	return Request{Chr: f.Chr, Start: start, End: end}
}

// Width returns End-Start.
func (r Request) Width() int { return r.End - r.Start }

func (r Request) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chr, r.Start, r.End)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Expand widens the visible span by half its width on each side, pads it by
// margin, and clamps the result to [0, chromLen].  The result always contains
// the (clamped) visible span.
func Expand(req Request, chromLen, margin int) (start, end int) {
	w := req.Width()
	start = clamp(req.Start-w/2, 0, chromLen)
	end = clamp(req.End+w/2, 0, chromLen)
	start = clamp(start-margin, 0, chromLen)
	end = clamp(end+margin, 0, chromLen)
	return
}
