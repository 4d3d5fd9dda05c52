// Package happrovider reads hap and correlation records that overlap a
// genomic range.  Two strategies are supported: StreamedProvider seeks
// through a BGZF file using its tabix index, CachedProvider decodes a whole
// text file once and filters it in memory.  Both are exposed through the
// Provider interface; which one backs a file is decided once, by NewProvider.
package happrovider

import (
	"context"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hapview/encoding/hap"
)

// Strategy selects the Provider implementation used by NewProvider.
type Strategy int

const (
	// Automatic picks Streamed for ".gz" and ".bgz" paths, Cached otherwise.
	Automatic Strategy = iota
	// Streamed reads BGZF data through a tabix index.
	Streamed
	// Cached loads the whole file at open time.
	Cached
)

// ParseStrategy parses "auto", "streamed" or "cached".
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "auto", "automatic":
		return Automatic, nil
	case "streamed", "tabix":
		return Streamed, nil
	case "cached", "memory":
		return Cached, nil
	}
	return Automatic, errors.E(errors.Invalid, "happrovider: unknown strategy "+name)
}

func (s Strategy) String() string {
	switch s {
	case Streamed:
		return "streamed"
	case Cached:
		return "cached"
	}
	return "automatic"
}

// Opts defines options for NewProvider.
type Opts struct {
	// Kind of the records stored in the file.
	Kind hap.Kind
	// Strategy picks the reader. Defaults to Automatic.
	Strategy Strategy
	// Index is the tabix index path used by the Streamed strategy. If "",
	// path + ".tbi".
	Index string
}

// Provider produces iterators over the records of one file. Thread safe.
type Provider interface {
	// NewIterator returns an iterator over the records of chr that fall in
	// [start, end).  Each iterator owns its own file cursor, so a provider
	// may serve several viewports at once, but a single iterator must not be
	// shared between goroutines.
	//
	// REQUIRES: Close has not been called.
	NewIterator(ctx context.Context, chr string, start, end int) Iterator

	// Close must be called exactly once. It returns any error encountered by
	// the provider or by an iterator it created.
	//
	// REQUIRES: All the iterators created by NewIterator have been closed.
	Close() error
}

// Iterator yields records in file order. Thread compatible.
type Iterator interface {
	// Scan advances to the next record. It returns false at the end of the
	// range or on error.
	Scan() bool

	// Record returns the current record. Valid only after Scan returns
	// true.  The record must not be modified.
	Record() hap.Record

	// Err returns the error encountered during iteration, if any.  Lines
	// that fail to decode are not errors; they are counted by Skipped.
	Err() error

	// Skipped returns the number of lines dropped because they could not be
	// decoded.
	Skipped() int

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

// GuessStrategy returns the strategy Automatic resolves to for path.
func GuessStrategy(path string) Strategy {
	if strings.HasSuffix(path, ".gz") || strings.HasSuffix(path, ".bgz") {
		return Streamed
	}
	return Cached
}

// NewProvider opens the record file at path.  A missing or unreadable file
// (or index) is returned as the underlying I/O error; a structurally invalid
// file is an errors.Invalid error (see IsFormatError).
func NewProvider(ctx context.Context, path string, opts Opts) (Provider, error) {
	strategy := opts.Strategy
	if strategy == Automatic {
		strategy = GuessStrategy(path)
	}
	switch strategy {
	case Streamed:
		return NewStreamedProvider(ctx, path, opts.Index, opts.Kind)
	case Cached:
		return NewCachedProvider(ctx, path, opts.Kind)
	}
	panic(strategy)
}

// IsFormatError reports whether err means the data or index is structurally
// invalid, as opposed to unreadable.
func IsFormatError(err error) bool {
	return err != nil && errors.Is(errors.Invalid, err)
}

type errorIterator struct {
	err error
}

func (i *errorIterator) Scan() bool         { return false }
func (i *errorIterator) Record() hap.Record { panic("shall not be called") }
func (i *errorIterator) Err() error         { return i.err }
func (i *errorIterator) Skipped() int       { return 0 }
func (i *errorIterator) Close() error       { return i.err }

// NewErrorIterator creates an Iterator that yields no record and returns "err"
// in Err and Close.
func NewErrorIterator(err error) Iterator {
	return &errorIterator{err: err}
}
