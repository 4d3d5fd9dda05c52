// Package tabix reads tabix (.tbi) indexes of BGZF-compressed, sorted,
// tab-delimited files and translates genomic ranges into the BGZF chunks
// that may hold overlapping lines.
//
// The on-disk format (see http://samtools.github.io/hts-specs/tabix.pdf) is a
// BGZF-compressed stream of little-endian values:
//
//   magic "TBI\1", n_ref, format, col_seq, col_beg, col_end, meta, skip,
//   l_nm, names (NUL terminated, concatenated), then for each reference the
//   binning index (n_bin bins of {bin, n_chunk, chunks}) followed by the
//   linear index (n_intv virtual offsets, one per 16kbp tile).
package tabix

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

const (
	magic = "TBI\x01"

	// Bin 37450 holds per-reference metadata, not real chunks.
	metadataBin = 37450

	// The binning scheme has a 16kbp minimum bin and 6 levels (depth 5).
	minShift = 14
	depth    = 5

	maxPos = 1 << (minShift + depth*3)

	// Guards against absurd allocations from corrupt input.
	maxNameBytes = 1 << 24
	maxCount     = 1 << 28

	// zeroBasedFlag is set in Format for BED-like (UCSC) coordinates.
	zeroBasedFlag = 0x10000
)

// Chunk is a range of virtual offsets [Begin, End) in the BGZF file.  It is
// the bgzf type, so chunks can be handed to bgzf/index.NewChunkReader as is.
type Chunk = bgzf.Chunk

// ToOffset converts a 64-bit virtual file offset to a bgzf.Offset.
func ToOffset(voffset uint64) bgzf.Offset {
	return bgzf.Offset{File: int64(voffset >> 16), Block: uint16(voffset & 0xffff)}
}

// VOffset converts a bgzf.Offset to its 64-bit virtual file offset.
func VOffset(off bgzf.Offset) uint64 {
	return uint64(off.File)<<16 | uint64(off.Block)
}

type bin struct {
	id     uint32
	chunks []Chunk
}

type reference struct {
	bins      []bin // sorted by id
	intervals []uint64
}

// Index is a parsed tabix index.
type Index struct {
	// Format is the preset (0 generic, 1 SAM, 2 VCF) possibly ORed with the
	// zero-based flag.
	Format int32
	// NameColumn, BeginColumn and EndColumn are 1-based column numbers.
	NameColumn  int32
	BeginColumn int32
	EndColumn   int32
	// MetaChar starts comment lines.
	MetaChar byte
	// Skip is the number of leading header lines.
	Skip int32

	names []string
	ids   map[string]int
	refs  []reference
}

// ZeroBased reports whether the indexed file uses 0-based half-open
// coordinates (tabix -p bed / -0).
func (idx *Index) ZeroBased() bool { return idx.Format&zeroBasedFlag != 0 }

// Names returns the reference names in index order.
func (idx *Index) Names() []string { return idx.names }

func formatError(what string, err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = errors.E(errors.Invalid, "truncated tabix index")
	}
	return errors.E(errors.Invalid, err, "tabix: reading "+what)
}

func readCount(r io.Reader, what string) (int, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return 0, formatError(what, err)
	}
	if n < 0 || n > maxCount {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("tabix: invalid %s %d", what, n))
	}
	return int(n), nil
}

// ReadFrom reads a BGZF-compressed tabix index from r.  Any structural problem
// is reported as an errors.Invalid error.
func ReadFrom(r io.Reader) (*Index, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "tabix: index is not BGZF/gzip compressed")
	}
	defer gz.Close() // nolint: errcheck
	return readIndex(gz)
}

func readIndex(r io.Reader) (*Index, error) {
	var m [4]byte
	if _, err := io.ReadFull(r, m[:]); err != nil {
		return nil, formatError("magic", err)
	}
	if string(m[:]) != magic {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("tabix: bad magic %q", m[:]))
	}
	nRef, err := readCount(r, "reference count")
	if err != nil {
		return nil, err
	}
	var header struct {
		Format, NameColumn, BeginColumn, EndColumn, Meta, Skip int32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, formatError("header", err)
	}
	idx := &Index{
		Format:      header.Format,
		NameColumn:  header.NameColumn,
		BeginColumn: header.BeginColumn,
		EndColumn:   header.EndColumn,
		MetaChar:    byte(header.Meta),
		Skip:        header.Skip,
		ids:         make(map[string]int, nRef),
	}
	nameLen, err := readCount(r, "name length")
	if err != nil {
		return nil, err
	}
	if nameLen > maxNameBytes {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("tabix: name block too long (%d bytes)", nameLen))
	}
	nameBuf := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return nil, formatError("names", err)
	}
	for _, name := range bytes.Split(bytes.TrimRight(nameBuf, "\x00"), []byte{0}) {
		idx.ids[string(name)] = len(idx.names)
		idx.names = append(idx.names, string(name))
	}
	if len(idx.names) != nRef {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("tabix: %d names for %d references", len(idx.names), nRef))
	}

	idx.refs = make([]reference, nRef)
	for i := range idx.refs {
		if err := readReference(r, &idx.refs[i]); err != nil {
			return nil, err
		}
	}
	// The trailing n_no_coor count is optional and unused here.
	return idx, nil
}

func readReference(r io.Reader, ref *reference) error {
	nBin, err := readCount(r, "bin count")
	if err != nil {
		return err
	}
	ref.bins = make([]bin, 0, nBin)
	for j := 0; j < nBin; j++ {
		var id uint32
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return formatError("bin", err)
		}
		nChunk, err := readCount(r, "chunk count")
		if err != nil {
			return err
		}
		raw := make([]uint64, 2*nChunk)
		if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
			return formatError("chunks", err)
		}
		if id == metadataBin {
			continue
		}
		b := bin{id: id, chunks: make([]Chunk, nChunk)}
		for k := range b.chunks {
			b.chunks[k] = Chunk{Begin: ToOffset(raw[2*k]), End: ToOffset(raw[2*k+1])}
		}
		ref.bins = append(ref.bins, b)
	}
	sort.Slice(ref.bins, func(a, b int) bool { return ref.bins[a].id < ref.bins[b].id })

	nIntv, err := readCount(r, "interval count")
	if err != nil {
		return err
	}
	ref.intervals = make([]uint64, nIntv)
	if err := binary.Read(r, binary.LittleEndian, ref.intervals); err != nil {
		return formatError("linear index", err)
	}
	return nil
}

// binsForRange lists the bins that may contain records overlapping the
// 0-based half-open range [start, end), like reg2bins in the SAM format
// document.
func binsForRange(start, end int) []uint32 {
	if end > maxPos {
		end = maxPos
	}
	if start < 0 {
		start = 0
	}
	if end <= start {
		return nil
	}
	end--
	var bins []uint32
	for l, t, s := uint(0), uint(0), uint(minShift+depth*3); l <= depth; l++ {
		b := t + (uint(start) >> s)
		e := t + (uint(end) >> s)
		for i := b; i <= e; i++ {
			bins = append(bins, uint32(i))
		}
		s -= 3
		t += 1 << (l * 3)
	}
	return bins
}

// Chunks returns the sorted, merged chunks that may contain lines of chr
// overlapping [start, end).  It returns nil if chr is not indexed or the
// range is empty.
func (idx *Index) Chunks(chr string, start, end int) []Chunk {
	id, ok := idx.ids[chr]
	if !ok {
		return nil
	}
	ref := &idx.refs[id]
	if start < 0 {
		start = 0
	}
	// The linear index gives the smallest offset of any record overlapping
	// the tile that contains start; chunks ending before it can be dropped.
	var minOffset uint64
	if len(ref.intervals) > 0 {
		tile := start >> minShift
		if tile >= len(ref.intervals) {
			tile = len(ref.intervals) - 1
		}
		minOffset = ref.intervals[tile]
	}
	var chunks []Chunk
	for _, b := range binsForRange(start, end) {
		i := sort.Search(len(ref.bins), func(i int) bool { return ref.bins[i].id >= b })
		if i == len(ref.bins) || ref.bins[i].id != b {
			continue
		}
		for _, c := range ref.bins[i].chunks {
			if VOffset(c.End) > minOffset {
				chunks = append(chunks, c)
			}
		}
	}
	return mergeChunks(chunks)
}

func mergeChunks(chunks []Chunk) []Chunk {
	if len(chunks) < 2 {
		return chunks
	}
	sort.Slice(chunks, func(i, j int) bool { return VOffset(chunks[i].Begin) < VOffset(chunks[j].Begin) })
	merged := chunks[:1]
	for _, c := range chunks[1:] {
		last := &merged[len(merged)-1]
		if VOffset(c.Begin) <= VOffset(last.End) {
			if VOffset(c.End) > VOffset(last.End) {
				last.End = c.End
			}
			continue
		}
		merged = append(merged, c)
	}
	return merged
}
