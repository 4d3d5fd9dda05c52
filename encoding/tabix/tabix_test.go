package tabix_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hapview/encoding/tabix"
	"github.com/grailbio/hapview/encoding/tabix/tabixtest"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

var lines = []string{
	"#chr\tstart\tend\tcalls\tcount\tstrand",
	"chr1\t100\t120\t11\t2\t+",
	"chr1\t110\t130\t10\t2\t-",
	"chr1\t40000\t40020\t1\t1\t*",
	"chr2\t5\t25\t0\t1\t+",
}

func readIndex(t *testing.T) *tabix.Index {
	var data, index bytes.Buffer
	assert.NoError(t, tabixtest.Write(&data, &index, lines))
	idx, err := tabix.ReadFrom(&index)
	assert.NoError(t, err)
	return idx
}

func TestReadHeader(t *testing.T) {
	idx := readIndex(t)
	expect.EQ(t, idx.Names(), []string{"chr1", "chr2"})
	expect.EQ(t, idx.NameColumn, int32(1))
	expect.EQ(t, idx.BeginColumn, int32(2))
	expect.EQ(t, idx.EndColumn, int32(3))
	expect.EQ(t, idx.MetaChar, byte('#'))
	expect.True(t, idx.ZeroBased())
}

func TestChunks(t *testing.T) {
	idx := readIndex(t)

	chunks := idx.Chunks("chr1", 90, 115)
	assert.EQ(t, len(chunks), 1)
	// The header line is 34 bytes, so the first record starts right after.
	expect.EQ(t, chunks[0].Begin, bgzf.Offset{File: 0, Block: 34})

	far := idx.Chunks("chr1", 39990, 40001)
	assert.EQ(t, len(far), 1)
	expect.True(t, tabix.VOffset(far[0].Begin) > tabix.VOffset(chunks[0].Begin))

	expect.EQ(t, len(idx.Chunks("chr3", 0, 100)), 0)
	expect.EQ(t, len(idx.Chunks("chr1", 50, 50)), 0)
	expect.EQ(t, len(idx.Chunks("chr2", 0, 10)), 1)
}

func TestChunksAcrossBlocks(t *testing.T) {
	var data, index bytes.Buffer
	assert.NoError(t, tabixtest.WriteBlocks(&data, &index, lines, 16))
	idx, err := tabix.ReadFrom(&index)
	assert.NoError(t, err)

	chunks := idx.Chunks("chr1", 90, 115)
	assert.EQ(t, len(chunks), 1)
	// Byte 34 is the third byte of the third 16-byte block.
	expect.EQ(t, chunks[0].Begin.Block, uint16(2))
	expect.True(t, chunks[0].Begin.File > 0)
	expect.True(t, chunks[0].End.File > chunks[0].Begin.File)

	r, err := bgzf.NewReader(&data, 1)
	assert.NoError(t, err)
	var out bytes.Buffer
	_, err = out.ReadFrom(r)
	assert.NoError(t, err)
	expect.EQ(t, out.String(), strings.Join(lines, "\n")+"\n")

	_, err = tabixtest.WriteBlockFiles("", "x", lines, 0)
	expect.NotNil(t, err)
}

func TestOffsets(t *testing.T) {
	off := bgzf.Offset{File: 12345, Block: 678}
	expect.EQ(t, tabix.ToOffset(tabix.VOffset(off)), off)
	expect.EQ(t, tabix.VOffset(off), uint64(12345)<<16|678)
}

func TestBadIndex(t *testing.T) {
	var buf bytes.Buffer
	w := bgzf.NewWriter(&buf, 1)
	_, err := w.Write([]byte("BAI\x01\x00\x00\x00\x00"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	_, err = tabix.ReadFrom(&buf)
	expect.True(t, errors.Is(errors.Invalid, err), "got %v", err)

	_, err = tabix.ReadFrom(bytes.NewReader([]byte("plain text, not gzip")))
	expect.True(t, errors.Is(errors.Invalid, err), "got %v", err)

	// Truncated after the magic.
	buf.Reset()
	w = bgzf.NewWriter(&buf, 1)
	_, err = w.Write([]byte("TBI\x01\x02\x00"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	_, err = tabix.ReadFrom(&buf)
	expect.True(t, errors.Is(errors.Invalid, err), "got %v", err)
}
