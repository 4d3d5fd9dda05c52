package happrovider

import (
	"bufio"
	"context"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hapview/encoding/hap"
	"github.com/grailbio/hapview/encoding/tabix"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/hts/bgzf/index"
	"v.io/x/lib/vlog"
)

const maxLineBytes = 1 << 20

// StreamedProvider implements Provider for BGZF-compressed, coordinate-sorted
// files with a tabix index.  Only the chunks the index names for a query are
// decompressed.
type StreamedProvider struct {
	// Path of the BGZF data file.
	Path string
	// Index is the pathname of the .tbi file.
	Index string
	// Kind of record stored in the file.
	Kind hap.Kind

	index *tabix.Index
	err   errors.Once

	mu        sync.Mutex
	nActive   int
	freeIters []*streamedIterator
}

// NewStreamedProvider reads the tabix index for path. If indexPath is "", it
// defaults to path + ".tbi".
func NewStreamedProvider(ctx context.Context, path, indexPath string, kind hap.Kind) (*StreamedProvider, error) {
	if indexPath == "" {
		indexPath = path + ".tbi"
	}
	in, err := file.Open(ctx, indexPath)
	if err != nil {
		return nil, errors.E(err, "happrovider: open index", indexPath)
	}
	defer in.Close(ctx) // nolint: errcheck
	idx, err := tabix.ReadFrom(in.Reader(ctx))
	if err != nil {
		return nil, errors.E(err, indexPath)
	}
	// Fail early on a missing data file instead of on the first query.
	data, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "happrovider: open", path)
	}
	p := &StreamedProvider{Path: path, Index: indexPath, Kind: kind, index: idx}
	iter := &streamedIterator{provider: p, in: data}
	if iter.reader, err = bgzf.NewReader(data.Reader(ctx), 1); err != nil {
		data.Close(ctx) // nolint: errcheck
		return nil, errors.E(errors.Invalid, err, "happrovider: not a BGZF file", path)
	}
	p.freeIters = append(p.freeIters, iter)
	return p, nil
}

// TabixIndex returns the parsed index.
func (p *StreamedProvider) TabixIndex() *tabix.Index { return p.index }

type streamedIterator struct {
	provider *StreamedProvider
	in       file.File
	reader   *bgzf.Reader

	chr         string
	start, end  int
	chunks      []tabix.Chunk
	chunkReader *index.ChunkReader
	scanner     *bufio.Scanner
	decoder     hap.Decoder

	active  bool
	err     error
	rec     hap.Record
	skipped int
	done    bool
}

// Return an unused iterator. If p.freeIters is nonempty, this function returns
// one from freeIters. Else, it opens the data file and creates a BGZF reader.
// On error, returns an iterator with non-nil err field.
func (p *StreamedProvider) allocateIterator(ctx context.Context) *streamedIterator {
	p.mu.Lock()
	p.nActive++
	if len(p.freeIters) > 0 {
		iter := p.freeIters[len(p.freeIters)-1]
		p.freeIters = p.freeIters[:len(p.freeIters)-1]
		p.mu.Unlock()
		iter.active = true
		iter.err = nil
		iter.done = false
		iter.rec = nil
		iter.skipped = 0
		return iter
	}
	p.mu.Unlock()

	iter := &streamedIterator{provider: p, active: true}
	if iter.in, iter.err = file.Open(ctx, p.Path); iter.err != nil {
		return iter
	}
	if iter.reader, iter.err = bgzf.NewReader(iter.in.Reader(ctx), 1); iter.err != nil {
		iter.err = errors.E(errors.Invalid, iter.err, p.Path)
	}
	return iter
}

func (p *StreamedProvider) freeIterator(i *streamedIterator) {
	if !i.active {
		vlog.Fatal(i)
	}
	i.active = false
	if i.err != nil {
		// The iter may be invalid. Don't reuse it.
		i.internalClose()
		i = nil
	}
	p.mu.Lock()
	if i != nil {
		p.freeIters = append(p.freeIters, i)
	}
	p.nActive--
	if p.nActive < 0 {
		vlog.Fatalf("Negative active count for %+v", p)
	}
	p.mu.Unlock()
}

// NewIterator implements the Provider interface.
func (p *StreamedProvider) NewIterator(ctx context.Context, chr string, start, end int) Iterator {
	iter := p.allocateIterator(ctx)
	if iter.err != nil {
		return iter
	}
	iter.chr, iter.start, iter.end = chr, start, end
	iter.decoder = hap.Decoder{Kind: p.Kind}
	iter.chunks = p.index.Chunks(chr, start, end)
	if len(iter.chunks) == 0 {
		iter.done = true
		return iter
	}
	cr, err := index.NewChunkReader(iter.reader, iter.chunks)
	if err != nil {
		iter.err = errors.E(err, "happrovider: seek", p.Path)
		return iter
	}
	iter.chunkReader = cr
	iter.scanner = bufio.NewScanner(cr)
	iter.scanner.Buffer(nil, maxLineBytes)
	return iter
}

// Close implements the Provider interface.
func (p *StreamedProvider) Close() error {
	if p.nActive > 0 {
		vlog.Fatalf("%d iterators still active for %+v", p.nActive, p)
	}
	for _, iter := range p.freeIters {
		iter.internalClose()
	}
	p.freeIters = nil
	return p.err.Err()
}

func (i *streamedIterator) internalClose() {
	if i.in == nil {
		return
	}
	if i.reader != nil {
		i.provider.err.Set(i.reader.Close())
		i.reader = nil
	}
	i.provider.err.Set(i.in.Close(context.Background()))
	i.in = nil
}

// Scan implements the Iterator interface.
func (i *streamedIterator) Scan() bool {
	if i.err != nil || i.done {
		return false
	}
	for i.scanner.Scan() {
		rec, err := i.decoder.DecodeLine(i.scanner.Bytes())
		if err == hap.ErrComment {
			continue
		}
		if err != nil {
			i.skipped++
			log.Debug.Printf("%s: skipping line: %v", i.provider.Path, err)
			continue
		}
		span := rec.Span()
		if span.Chr != i.chr {
			continue
		}
		// Lines are sorted by start, so nothing later can overlap.
		if span.Start >= i.end {
			i.done = true
			return false
		}
		if span.End <= i.start {
			continue
		}
		i.rec = rec
		return true
	}
	if err := i.scanner.Err(); err != nil {
		i.err = errors.E(err, "happrovider: read", i.provider.Path)
	}
	i.done = true
	return false
}

// Record implements the Iterator interface.
func (i *streamedIterator) Record() hap.Record { return i.rec }

// Err implements the Iterator interface.
func (i *streamedIterator) Err() error { return i.err }

// Skipped implements the Iterator interface.
func (i *streamedIterator) Skipped() int { return i.skipped }

// Close implements the Iterator interface.
func (i *streamedIterator) Close() error {
	err := i.err
	if i.chunkReader != nil {
		// Restores the reader's blocking mode for the next user.
		i.chunkReader.Close() // nolint: errcheck
		i.chunkReader = nil
	}
	i.scanner = nil
	i.chunks = nil
	i.provider.freeIterator(i)
	return err
}
