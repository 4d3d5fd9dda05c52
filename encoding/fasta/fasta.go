// Package fasta provides read-only access to reference sequences stored as
// (optionally faidx-indexed) FASTA.  See http://www.htslib.org/doc/faidx.html.
// Briefly, FASTA files consist of a number of named sequences that may be
// interrupted by newlines:
//
// >chr7
// ACGTAC
// GAGGAC
// >chr8
// ACGT
//
// Sequence names are the characters after '>' up to the first space.
//
// A Reference satisfies window.SequenceSource; it is the sequence accessor the
// window cache snapshots from.
package fasta

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

const maxLineBytes = 1 << 28

// Reference is a set of named sequences.
type Reference interface {
	// Sequence returns a copy of bases [start, end) of the named sequence.
	// The range must satisfy 0 <= start < end <= Len(name).  Thread safe.
	Sequence(name string, start, end int) ([]byte, error)

	// Len returns the length of the named sequence.
	Len(name string) (int, error)

	// Names returns the sequence names in file order.
	Names() []string

	// Close releases any underlying file.
	Close() error
}

func checkRange(name string, start, end, length int) error {
	if end <= start {
		return errors.Errorf("fasta: start %d must be less than end %d", start, end)
	}
	if start < 0 || end > length {
		return errors.Errorf("fasta: invalid range %d - %d for sequence %s with length %d",
			start, end, name, length)
	}
	return nil
}

type memReference struct {
	seqs  map[string][]byte
	names []string
}

// New reads all of r into memory.
func New(r io.Reader) (Reference, error) {
	f := &memReference{seqs: make(map[string][]byte)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, maxLineBytes)
	var (
		name string
		seq  []byte
		seen bool
	)
	flush := func() {
		if seen {
			f.seqs[name] = seq
			f.names = append(f.names, name)
		}
	}
	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			flush()
			fields := bytes.Fields(line[1:])
			if len(fields) == 0 {
				return nil, errors.New("fasta: sequence without a name")
			}
			name, seq, seen = string(fields[0]), nil, true
			continue
		}
		if !seen {
			return nil, errors.New("fasta: bases before the first '>' line")
		}
		seq = append(seq, line...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "fasta: couldn't read FASTA data")
	}
	flush()
	return f, nil
}

func (f *memReference) Sequence(name string, start, end int) ([]byte, error) {
	s, ok := f.seqs[name]
	if !ok {
		return nil, errors.Errorf("fasta: sequence not found: %s", name)
	}
	if err := checkRange(name, start, end, len(s)); err != nil {
		return nil, err
	}
	out := make([]byte, end-start)
	copy(out, s[start:end])
	return out, nil
}

func (f *memReference) Len(name string) (int, error) {
	s, ok := f.seqs[name]
	if !ok {
		return 0, errors.Errorf("fasta: sequence not found: %s", name)
	}
	return len(s), nil
}

func (f *memReference) Names() []string { return f.names }

func (f *memReference) Close() error { return nil }
