// Package tabixtest builds small BGZF files with matching tabix indexes for
// tests.  Write puts everything in a single BGZF block; WriteBlocks spreads
// the data over many small blocks.
package tabixtest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/grailbio/hts/bgzf"
)

const (
	maxBlockData = 0xff00
	unset        = ^uint64(0)
)

func reg2bin(beg, end int) uint32 {
	end--
	switch {
	case beg>>14 == end>>14:
		return uint32(((1<<15)-1)/7 + (beg >> 14))
	case beg>>17 == end>>17:
		return uint32(((1<<12)-1)/7 + (beg >> 17))
	case beg>>20 == end>>20:
		return uint32(((1<<9)-1)/7 + (beg >> 20))
	case beg>>23 == end>>23:
		return uint32(((1<<6)-1)/7 + (beg >> 23))
	case beg>>26 == end>>26:
		return uint32(((1<<3)-1)/7 + (beg >> 26))
	}
	return 0
}

type refIndex struct {
	name      string
	bins      map[uint32][][2]uint64
	binOrder  []uint32
	intervals []uint64
}

// Write writes lines (sorted by chromosome and start, columns
// chr/start/end, 0-based) as a single BGZF block to data and the
// corresponding tabix index to index.  Lines starting with '#' are kept in the
// data but not indexed.
func Write(data, index io.Writer, lines []string) error {
	var body int
	for _, line := range lines {
		body += len(line) + 1
	}
	if body >= maxBlockData {
		return fmt.Errorf("tabixtest: %d bytes do not fit in one BGZF block", body)
	}
	return WriteBlocks(data, index, lines, maxBlockData)
}

// WriteBlocks is like Write, but cuts the data into BGZF blocks holding
// blockSize uncompressed bytes each, regardless of line boundaries.  Small
// block sizes make lines and index chunks straddle blocks.
func WriteBlocks(data, index io.Writer, lines []string, blockSize int) error {
	if blockSize <= 0 || blockSize > maxBlockData {
		return fmt.Errorf("tabixtest: block size %d out of range (0, %d]", blockSize, maxBlockData)
	}
	var (
		body bytes.Buffer
		refs []*refIndex
		cur  *refIndex
	)
	// Chunks and intervals hold uncompressed byte offsets until the block
	// layout is known.
	for _, line := range lines {
		begin := uint64(body.Len())
		body.WriteString(line)
		body.WriteByte('\n')
		end := uint64(body.Len())
		if strings.HasPrefix(line, "#") {
			continue
		}
		cols := strings.Fields(line)
		if len(cols) < 3 {
			return fmt.Errorf("tabixtest: short line %q", line)
		}
		start, err := strconv.Atoi(cols[1])
		if err != nil {
			return err
		}
		stop, err := strconv.Atoi(cols[2])
		if err != nil {
			return err
		}
		if stop <= start {
			stop = start + 1
		}
		if cur == nil || cur.name != cols[0] {
			cur = &refIndex{name: cols[0], bins: map[uint32][][2]uint64{}}
			refs = append(refs, cur)
		}
		b := reg2bin(start, stop)
		chunks, ok := cur.bins[b]
		if !ok {
			cur.binOrder = append(cur.binOrder, b)
		}
		if n := len(chunks); n > 0 && chunks[n-1][1] == begin {
			chunks[n-1][1] = end
		} else {
			chunks = append(chunks, [2]uint64{begin, end})
		}
		cur.bins[b] = chunks
		for tile := start >> 14; tile <= (stop-1)>>14; tile++ {
			for len(cur.intervals) <= tile {
				cur.intervals = append(cur.intervals, unset)
			}
			if cur.intervals[tile] == unset {
				cur.intervals[tile] = begin
			}
		}
	}

	// Compress one block at a time and remember where each one starts.
	var (
		compressed bytes.Buffer
		starts     []uint64
		raw        = body.Bytes()
	)
	w := bgzf.NewWriter(&compressed, 1)
	for off := 0; off < len(raw); off += blockSize {
		if err := w.Wait(); err != nil {
			return err
		}
		starts = append(starts, uint64(compressed.Len()))
		end := off + blockSize
		if end > len(raw) {
			end = len(raw)
		}
		if _, err := w.Write(raw[off:end]); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	if _, err := data.Write(compressed.Bytes()); err != nil {
		return err
	}

	bs := uint64(blockSize)
	// Begin offsets point into the block holding the first byte; end offsets
	// into the block holding the last byte.
	beginV := func(u uint64) uint64 {
		if len(starts) == 0 {
			return 0
		}
		k := u / bs
		if k >= uint64(len(starts)) {
			k = uint64(len(starts)) - 1
		}
		return starts[k]<<16 | (u - k*bs)
	}
	endV := func(u uint64) uint64 {
		if u == 0 {
			return 0
		}
		k := (u - 1) / bs
		return starts[k]<<16 | (u - k*bs)
	}
	for _, r := range refs {
		for _, b := range r.binOrder {
			for i, c := range r.bins[b] {
				r.bins[b][i] = [2]uint64{beginV(c[0]), endV(c[1])}
			}
		}
		for i, v := range r.intervals {
			if v != unset {
				r.intervals[i] = beginV(v)
			}
		}
	}
	return writeIndex(index, refs)
}

func writeIndex(out io.Writer, refs []*refIndex) error {
	var buf bytes.Buffer
	put := func(v interface{}) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	buf.WriteString("TBI\x01")
	put(int32(len(refs)))
	// format (generic, 0-based), col_seq, col_beg, col_end, meta, skip
	put([]int32{0x10000, 1, 2, 3, '#', 0})
	var names bytes.Buffer
	for _, r := range refs {
		names.WriteString(r.name)
		names.WriteByte(0)
	}
	put(int32(names.Len()))
	buf.Write(names.Bytes())
	for _, r := range refs {
		put(int32(len(r.binOrder)))
		for _, b := range r.binOrder {
			put(b)
			put(int32(len(r.bins[b])))
			for _, c := range r.bins[b] {
				put(c[0])
				put(c[1])
			}
		}
		// Empty tiles inherit the next known offset.
		for i := len(r.intervals) - 2; i >= 0; i-- {
			if r.intervals[i] == unset {
				r.intervals[i] = r.intervals[i+1]
			}
		}
		put(int32(len(r.intervals)))
		put(r.intervals)
	}
	w := bgzf.NewWriter(out, 1)
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	return w.Close()
}

// WriteFiles writes dir/name (BGZF data) and dir/name.tbi and returns the
// data path.
func WriteFiles(dir, name string, lines []string) (string, error) {
	return WriteBlockFiles(dir, name, lines, maxBlockData)
}

// WriteBlockFiles is WriteFiles with WriteBlocks' block layout.
func WriteBlockFiles(dir, name string, lines []string, blockSize int) (string, error) {
	var data, index bytes.Buffer
	if err := WriteBlocks(&data, &index, lines, blockSize); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := ioutil.WriteFile(path, data.Bytes(), 0600); err != nil {
		return "", err
	}
	if err := ioutil.WriteFile(path+".tbi", index.Bytes(), 0600); err != nil {
		return "", err
	}
	return path, nil
}
