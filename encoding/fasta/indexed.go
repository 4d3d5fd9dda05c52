package fasta

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// faiEntry is one line of a .fai index: "<name>\t<length>\t<byte
// offset>\t<bases per line>\t<bytes per line>".
type faiEntry struct {
	length    int64
	offset    int64
	lineBases int64
	lineWidth int64
}

type indexedReference struct {
	entries map[string]faiEntry
	names   []string
	closer  io.Closer

	mu     sync.Mutex
	reader io.ReadSeeker
	buf    []byte
}

func parseFai(r io.Reader) (map[string]faiEntry, []string, error) {
	entries := make(map[string]faiEntry)
	var names []string
	scanner := bufio.NewScanner(r)
	lineno := 0
	for scanner.Scan() {
		lineno++
		cols := strings.Split(strings.TrimRight(scanner.Text(), "\r"), "\t")
		if len(cols) == 1 && cols[0] == "" {
			continue
		}
		if len(cols) < 5 {
			return nil, nil, errors.Errorf("fasta: invalid index line %d: %q", lineno, scanner.Text())
		}
		var (
			ent  faiEntry
			vals = []*int64{&ent.length, &ent.offset, &ent.lineBases, &ent.lineWidth}
		)
		for i, v := range vals {
			n, err := strconv.ParseInt(cols[i+1], 10, 64)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "fasta: index line %d", lineno)
			}
			*v = n
		}
		if ent.lineBases <= 0 || ent.lineWidth < ent.lineBases {
			return nil, nil, errors.Errorf("fasta: index line %d has bad line geometry", lineno)
		}
		entries[cols[0]] = ent
		names = append(names, cols[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "fasta: reading index")
	}
	return entries, names, nil
}

// NewIndexed returns a Reference that seeks into fasta using the faidx index
// read from fai, without loading the sequences into memory.  If fasta also
// implements io.Closer it is closed by Close.
func NewIndexed(fasta io.ReadSeeker, fai io.Reader) (Reference, error) {
	entries, names, err := parseFai(fai)
	if err != nil {
		return nil, err
	}
	f := &indexedReference{entries: entries, names: names, reader: fasta}
	if c, ok := fasta.(io.Closer); ok {
		f.closer = c
	}
	return f, nil
}

// ReadLengths reads only a .fai index and returns the sequence lengths.
func ReadLengths(fai io.Reader) (map[string]int, error) {
	entries, _, err := parseFai(fai)
	if err != nil {
		return nil, err
	}
	lengths := make(map[string]int, len(entries))
	for name, ent := range entries {
		lengths[name] = int(ent.length)
	}
	return lengths, nil
}

func (f *indexedReference) Len(name string) (int, error) {
	ent, ok := f.entries[name]
	if !ok {
		return 0, errors.Errorf("fasta: sequence not found in index: %s", name)
	}
	return int(ent.length), nil
}

func (f *indexedReference) Names() []string { return f.names }

func (f *indexedReference) Sequence(name string, start, end int) ([]byte, error) {
	ent, ok := f.entries[name]
	if !ok {
		return nil, errors.Errorf("fasta: sequence not found in index: %s", name)
	}
	if err := checkRange(name, start, end, int(ent.length)); err != nil {
		return nil, err
	}
	// Byte range covering [start, end) including the embedded newlines.
	eol := ent.lineWidth - ent.lineBases
	first := ent.offset + int64(start) + eol*(int64(start)/ent.lineBases)
	last := ent.offset + int64(end-1) + eol*(int64(end-1)/ent.lineBases)
	n := int(last - first + 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.reader.Seek(first, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "fasta: seek to %d", first)
	}
	if cap(f.buf) < n {
		f.buf = make([]byte, n)
	}
	buf := f.buf[:n]
	if _, err := io.ReadFull(f.reader, buf); err != nil {
		return nil, errors.Wrap(err, "fasta: unexpected end of file (bad index?)")
	}
	out := make([]byte, 0, end-start)
	linePos := (first - ent.offset) % ent.lineWidth
	for _, c := range buf {
		if linePos < ent.lineBases {
			out = append(out, c)
		}
		if linePos++; linePos == ent.lineWidth {
			linePos = 0
		}
	}
	return out, nil
}

func (f *indexedReference) Close() error {
	if f.closer == nil {
		return nil
	}
	return f.closer.Close()
}
