// Package hap decodes the whitespace-delimited record files used for
// per-read methylation haplotypes (.hap) and pairwise CpG correlations.
//
// A haplotype line looks like
//
//   chr1	10468	10487	1101	3	+
//
// i.e. chromosome, 0-based start, end, a call string with one character per
// covered CpG ('1' = methylated), a count column and a strand symbol
// ('*', '+' or '-').  A correlation line is
//
//   chr1	10468	10487	0.82
//
// Both files are expected to be sorted by (chromosome, start), which is what
// tabix requires anyway.
package hap

import (
	"math"
	"strings"

	"github.com/pkg/errors"
)

// Strand is the strand a haplotype was called on.
type Strand int8

const (
	// None means the call is strand-agnostic ('*').
	None Strand = iota
	// Forward is the '+' strand.
	Forward
	// Reverse is the '-' strand.
	Reverse
)

// String returns the strand symbol used in .hap files.
func (s Strand) String() string {
	switch s {
	case Forward:
		return "+"
	case Reverse:
		return "-"
	}
	return "*"
}

// Kind identifies one of the record layouts this package understands.
type Kind int

const (
	// HapKind is a methylation haplotype record.
	HapKind Kind = iota
	// CorrelationKind is a CpG-pair correlation record.
	CorrelationKind
)

// ParseKind parses "hap" or "cor"/"correlation".
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "hap", "haplotype":
		return HapKind, nil
	case "cor", "correlation":
		return CorrelationKind, nil
	}
	return 0, errors.Errorf("hap.ParseKind: unknown record kind %q", name)
}

func (k Kind) String() string {
	if k == CorrelationKind {
		return "correlation"
	}
	return "hap"
}

// Interval is a 0-based half-open genomic range.
type Interval struct {
	Chr   string
	Start int
	End   int
}

// Span implements Record.
func (iv Interval) Span() Interval { return iv }

// Overlaps reports whether iv intersects [start, end) on chr.
func (iv Interval) Overlaps(chr string, start, end int) bool {
	return iv.Chr == chr && iv.Start < end && iv.End > start
}

// Within reports whether iv lies entirely inside [start, end] on chr.
func (iv Interval) Within(chr string, start, end int) bool {
	return iv.Chr == chr && iv.Start >= start && iv.End <= end
}

// Record is implemented by every decoded record type.
type Record interface {
	Span() Interval
}

// Hap is one read (or collapsed group of reads) with its CpG calls.
type Hap struct {
	Interval
	// States holds one call per CpG site covered by the read, in genomic
	// order.  Its length is trusted as written by the producer.
	States []bool
	// Count is the fifth column of the file.  Producers use it for the number
	// of CpG sites or the number of supporting reads; it is carried verbatim.
	Count  int
	Strand Strand
}

// Correlation is a symmetric annotation over a pair of CpG sites.
type Correlation struct {
	Interval
	// Value is roughly in [-1, 1].
	Value float64
}

// Midpoint returns the genomic midpoint of the correlated pair.
func (c *Correlation) Midpoint() float64 {
	return float64(c.Start) + float64(c.End-c.Start)/2
}

// Percent returns the correlation as an integer percentage.  Halves round
// up, toward positive infinity, so -0.125 is -12.
func (c *Correlation) Percent() int {
	return int(math.Floor(100*c.Value + 0.5))
}
