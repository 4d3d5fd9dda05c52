package window

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/hapview/encoding/hap"
	"github.com/grailbio/hapview/encoding/happrovider"
	"github.com/grailbio/hapview/viewport"
)

// DefaultResolutionThreshold is the scale, in bases per pixel, at or above
// which a viewport is too zoomed out to show anything.
const DefaultResolutionThreshold = 2

// SequenceSource gives read-only access to the reference.  fasta.Reference
// satisfies it.
type SequenceSource interface {
	// Sequence returns bases [start, end) of chr.
	Sequence(chr string, start, end int) ([]byte, error)
	// Len returns the length of chr.
	Len(chr string) (int, error)
}

// Opts configures a Cache.  Zero fields take their defaults.
type Opts struct {
	// Policy defaults to DefaultPolicy(kind).
	Policy Policy
	// ResolutionThreshold defaults to DefaultResolutionThreshold.
	ResolutionThreshold float64
}

// Cache keeps the most recently loaded Window of each viewport.  Thread
// safe; concurrent loads of the same id are not supported.
type Cache struct {
	provider happrovider.Provider
	kind     hap.Kind
	ref      SequenceSource
	opts     Opts

	mu      sync.Mutex
	windows map[string]*Window
}

// NewCache creates a cache that reads records of the given kind from
// provider and reference bases from ref.  ref may be nil, in which case
// windows carry no sequence and spans are clamped only at zero.
func NewCache(provider happrovider.Provider, kind hap.Kind, ref SequenceSource, opts Opts) *Cache {
	if opts.Policy == (Policy{}) {
		opts.Policy = DefaultPolicy(kind)
	}
	if opts.ResolutionThreshold <= 0 {
		opts.ResolutionThreshold = DefaultResolutionThreshold
	}
	return &Cache{
		provider: provider,
		kind:     kind,
		ref:      ref,
		opts:     opts,
		windows:  make(map[string]*Window),
	}
}

// Policy returns the policy in effect.
func (c *Cache) Policy() Policy { return c.opts.Policy }

// Load replaces the slot for id with the data around req.  On error the slot
// is cleared and the error returned.
func (c *Cache) Load(ctx context.Context, id string, req Request) (*Window, error) {
	w, err := c.load(ctx, req)
	c.mu.Lock()
	if err != nil {
		delete(c.windows, id)
	} else {
		c.windows[id] = w
	}
	c.mu.Unlock()
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("window %s: load %v", id, req))
	}
	return w, nil
}

func (c *Cache) load(ctx context.Context, req Request) (*Window, error) {
	if req.Chr == "" || req.Start < 0 || req.End <= req.Start {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("invalid request %v", req))
	}
	w := &Window{Chr: req.Chr}
	chromLen := math.MaxInt32
	if c.ref != nil {
		n, err := c.ref.Len(req.Chr)
		if err != nil {
			return nil, err
		}
		chromLen, w.ChromLen = n, n
	}
	w.SequenceStart, w.SequenceEnd = Expand(req, chromLen, 0)
	w.QueriedStart, w.QueriedEnd = Expand(req, chromLen, c.opts.Policy.Margin)
	if c.ref != nil && w.SequenceEnd > w.SequenceStart {
		seq, err := c.ref.Sequence(req.Chr, w.SequenceStart, w.SequenceEnd)
		if err != nil {
			return nil, err
		}
		w.Sequence = seq
	}
	if req.Width() > c.opts.Policy.MaxWidth {
		log.Printf("window %v: view is too large (%d > %d bases), not loading records",
			req, req.Width(), c.opts.Policy.MaxWidth)
		w.Truncated = true
		return w, nil
	}
	iter := c.provider.NewIterator(ctx, req.Chr, w.QueriedStart, w.QueriedEnd)
	for iter.Scan() {
		w.Records = append(w.Records, iter.Record())
	}
	w.Skipped = iter.Skipped()
	if err := iter.Close(); err != nil {
		return nil, err
	}
	log.Debug.Printf("window %v: loaded %d records from %d-%d, skipped %d",
		req, len(w.Records), w.QueriedStart, w.QueriedEnd, w.Skipped)
	return w, nil
}

// LoadAll loads several viewports in parallel.  It returns the first error;
// the slots of viewports that failed are cleared.
func (c *Cache) LoadAll(ctx context.Context, reqs map[string]Request) error {
	ids := make([]string, 0, len(reqs))
	for id := range reqs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return traverse.Each(len(ids), func(i int) error {
		_, err := c.Load(ctx, ids[i], reqs[ids[i]])
		return err
	})
}

// LoadFrames reloads every frame that is zoomed in far enough to be drawn,
// keyed by frame name.
func (c *Cache) LoadFrames(ctx context.Context, frames ...viewport.Frame) error {
	reqs := make(map[string]Request, len(frames))
	for _, f := range frames {
		if c.visible(f) {
			reqs[f.Name] = RequestFromFrame(f)
		}
	}
	return c.LoadAll(ctx, reqs)
}

// Window returns the current window of id, or nil.
func (c *Cache) Window(id string) *Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windows[id]
}

// Remove drops the slot of a destroyed viewport.
func (c *Cache) Remove(id string) {
	c.mu.Lock()
	delete(c.windows, id)
	c.mu.Unlock()
}

// IDs returns the ids with a loaded window, sorted.
func (c *Cache) IDs() []string {
	c.mu.Lock()
	ids := make([]string, 0, len(c.windows))
	for id := range c.windows {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (c *Cache) visible(f viewport.Frame) bool {
	return f.Chr != viewport.AllChromosomes && f.Scale < c.opts.ResolutionThreshold
}

// Ready reports whether frame can be drawn without loading: either it is
// zoomed out too far to show anything, or the window cached under its name
// covers it.
func (c *Cache) Ready(frame viewport.Frame) bool {
	if !c.visible(frame) {
		return true
	}
	start, end := frame.Span()
	return c.Window(frame.Name).Contains(frame.Chr, start, end)
}
