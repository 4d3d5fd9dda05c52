package fasta

import (
	"context"
	"io"
	"os"

	gerrors "github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	"github.com/klauspost/compress/gzip"
)

// fileCloser adapts file.File to io.Closer.
type fileCloser struct {
	ctx context.Context
	f   file.File
}

func (c fileCloser) Close() error { return c.f.Close(c.ctx) }

type indexedFile struct {
	io.ReadSeeker
	io.Closer
}

func notExist(err error) bool {
	return gerrors.Is(gerrors.NotExist, err) || os.IsNotExist(err)
}

// Open opens the FASTA file at path.  If path+".fai" exists the sequences are
// read lazily through the index; otherwise the whole file (optionally gzip
// compressed) is loaded into memory.  The caller must Close the result.
func Open(ctx context.Context, path string) (Reference, error) {
	faiIn, err := file.Open(ctx, path+".fai")
	if err == nil {
		defer faiIn.Close(ctx) // nolint: errcheck
		in, err := file.Open(ctx, path)
		if err != nil {
			return nil, gerrors.E(err, path)
		}
		ref, err := NewIndexed(indexedFile{in.Reader(ctx), fileCloser{ctx, in}}, faiIn.Reader(ctx))
		if err != nil {
			in.Close(ctx) // nolint: errcheck
			return nil, gerrors.E(gerrors.Invalid, err, path+".fai")
		}
		return ref, nil
	}
	if !notExist(err) {
		return nil, gerrors.E(err, path+".fai")
	}
	log.Debug.Printf("fasta: %s has no .fai index, loading into memory", path)

	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, gerrors.E(err, path)
	}
	defer in.Close(ctx) // nolint: errcheck
	reader := io.Reader(in.Reader(ctx))
	if fileio.DetermineType(path) == fileio.Gzip {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, gerrors.E(gerrors.Invalid, err, path)
		}
		defer gz.Close() // nolint: errcheck
		reader = gz
	}
	ref, err := New(reader)
	if err != nil {
		return nil, gerrors.E(gerrors.Invalid, err, path)
	}
	return ref, nil
}
