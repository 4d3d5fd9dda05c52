package happrovider

import (
	"bufio"
	"context"
	"io"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hapview/encoding/hap"
	"github.com/klauspost/compress/gzip"
)

// CachedProvider implements Provider by decoding the whole file at open
// time.  Queries return records that lie entirely inside the queried range,
// in file order.
type CachedProvider struct {
	// Path of the record file.
	Path string
	// Kind of record stored in the file.
	Kind hap.Kind

	records []hap.Record
	skipped int
}

// NewCachedProvider reads every record of the (optionally gzip compressed)
// text file at path.  Lines that fail to decode are logged and counted.
func NewCachedProvider(ctx context.Context, path string, kind hap.Kind) (_ *CachedProvider, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "happrovider: open", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(in.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		gz, gerr := gzip.NewReader(reader)
		if gerr != nil {
			return nil, errors.E(errors.Invalid, gerr, path)
		}
		defer gz.Close() // nolint: errcheck
		reader = gz
	}
	p := &CachedProvider{Path: path, Kind: kind}
	if err := p.load(reader); err != nil {
		return nil, err
	}
	log.Debug.Printf("%s: loaded %d records, skipped %d lines", path, len(p.records), p.skipped)
	return p, nil
}

// NewCachedProviderFromReader decodes all records from r.  It is used for
// data that does not live in a file.
func NewCachedProviderFromReader(r io.Reader, kind hap.Kind) (*CachedProvider, error) {
	p := &CachedProvider{Kind: kind}
	if err := p.load(r); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *CachedProvider) load(r io.Reader) error {
	decoder := hap.Decoder{Kind: p.Kind}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineBytes)
	lineno := 0
	for scanner.Scan() {
		lineno++
		rec, err := decoder.DecodeLine(scanner.Bytes())
		if err == hap.ErrComment {
			continue
		}
		if err != nil {
			p.skipped++
			log.Debug.Printf("%s:%d: skipping line: %v", p.Path, lineno, err)
			continue
		}
		p.records = append(p.records, rec)
	}
	if err := scanner.Err(); err != nil {
		return errors.E(err, "happrovider: read", p.Path)
	}
	return nil
}

// Len returns the number of records held in memory.
func (p *CachedProvider) Len() int { return len(p.records) }

// Skipped returns the number of lines dropped at load time.
func (p *CachedProvider) Skipped() int { return p.skipped }

// NewIterator implements the Provider interface.
func (p *CachedProvider) NewIterator(ctx context.Context, chr string, start, end int) Iterator {
	return &cachedIterator{records: p.records, chr: chr, start: start, end: end, index: -1}
}

// Close implements the Provider interface.
func (p *CachedProvider) Close() error {
	p.records = nil
	return nil
}

// cachedIterator is a linear filter over the in-memory records.  Decode
// errors were counted when the file was loaded, so Skipped is always zero.
type cachedIterator struct {
	records    []hap.Record
	chr        string
	start, end int
	index      int
}

func (i *cachedIterator) Scan() bool {
	for i.index++; i.index < len(i.records); i.index++ {
		if i.records[i.index].Span().Within(i.chr, i.start, i.end) {
			return true
		}
	}
	return false
}

func (i *cachedIterator) Record() hap.Record { return i.records[i.index] }
func (i *cachedIterator) Err() error         { return nil }
func (i *cachedIterator) Skipped() int       { return 0 }
func (i *cachedIterator) Close() error       { return nil }
