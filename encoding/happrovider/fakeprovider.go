package happrovider

import (
	"context"
	"sync"

	"github.com/grailbio/hapview/encoding/hap"
)

// fakeProvider is only for unittests. It yields the given records.
type fakeProvider struct {
	recs []hap.Record

	mu      sync.Mutex
	queries []hap.Interval
	err     error
}

// FakeProvider is a Provider over a fixed record list that remembers every
// query made to it.
type FakeProvider interface {
	Provider
	// Queries returns the ranges passed to NewIterator so far.
	Queries() []hap.Interval
	// SetErr makes later iterators fail with err, or succeed again if err
	// is nil.
	SetErr(err error)
}

// NewFakeProvider creates a provider that returns the records of recs that
// overlap each query, in the given order.
func NewFakeProvider(recs []hap.Record) FakeProvider {
	return &fakeProvider{recs: recs}
}

func (p *fakeProvider) NewIterator(ctx context.Context, chr string, start, end int) Iterator {
	p.mu.Lock()
	p.queries = append(p.queries, hap.Interval{Chr: chr, Start: start, End: end})
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return NewErrorIterator(err)
	}
	iter := &fakeIterator{}
	for _, r := range p.recs {
		if r.Span().Overlaps(chr, start, end) {
			iter.recs = append(iter.recs, r)
		}
	}
	return iter
}

func (p *fakeProvider) Queries() []hap.Interval {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]hap.Interval(nil), p.queries...)
}

func (p *fakeProvider) SetErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *fakeProvider) Close() error { return nil }

type fakeIterator struct {
	recs []hap.Record
	rec  hap.Record
}

func (i *fakeIterator) Scan() bool {
	if len(i.recs) == 0 {
		return false
	}
	i.rec, i.recs = i.recs[0], i.recs[1:]
	return true
}

func (i *fakeIterator) Record() hap.Record { return i.rec }
func (i *fakeIterator) Err() error         { return nil }
func (i *fakeIterator) Skipped() int       { return 0 }
func (i *fakeIterator) Close() error       { return nil }
