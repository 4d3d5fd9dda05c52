// Package viewport maps genomic coordinates to horizontal pixel offsets
// within a scrolling viewport.  It holds no drawing code; renderers use it to
// place the rows and site aggregates computed by package layout.
package viewport

import (
	"fmt"
	"math"
)

// AllChromosomes is the pseudo-chromosome name of a whole-genome view.
// Nothing is loaded or drawn for it.
const AllChromosomes = "All"

// Project returns the pixel offset of pos in a viewport whose left edge is at
// origin and that shows scale bases per pixel.
func Project(pos, scale, origin float64) float64 {
	return (pos - origin) / scale
}

// Frame is one viewport onto a chromosome.
type Frame struct {
	// Name identifies the viewport.  Window caches are keyed by it.
	Name string
	Chr  string
	// Origin is the genomic position at the left edge.
	Origin float64
	// Scale is in bases per pixel.
	Scale float64
	// WidthPixels is the visible width.
	WidthPixels int
}

// End returns the genomic position at the right edge.
func (f Frame) End() float64 {
	return f.Origin + float64(f.WidthPixels)*f.Scale
}

// Span returns the integer genomic range [start, end) shown by the frame.
func (f Frame) Span() (start, end int) {
	return int(f.Origin), int(f.End())
}

// X returns the pixel offset of pos.
func (f Frame) X(pos float64) float64 {
	return Project(pos, f.Scale, f.Origin)
}

// Visible reports whether any part of [start, end) falls inside the frame.
func (f Frame) Visible(start, end int) bool {
	return f.Chr != AllChromosomes && float64(end) > f.Origin && float64(start) < f.End()
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%s:%.0f-%.0f@%g", f.Name, f.Chr, f.Origin, f.End(), f.Scale)
}

// Diamond returns the placement of the diamond that depicts a correlation
// between the sites at start and end: the pixel offset of the pair's midpoint
// and the depth below the baseline, which grows with the pair's distance.
func Diamond(start, end int, scale, origin float64) (center, depth float64) {
	half := float64(end-start) / 2
	center = Project(float64(start)+half, scale, origin)
	depth = math.Sqrt2 * half / scale
	return
}
