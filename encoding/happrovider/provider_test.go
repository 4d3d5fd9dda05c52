package happrovider_test

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hapview/encoding/hap"
	"github.com/grailbio/hapview/encoding/happrovider"
	"github.com/grailbio/hapview/encoding/tabix/tabixtest"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

var hapLines = []string{
	"#chr\tstart\tend\tcalls\tcount\tstrand",
	"chr1\t100\t120\t11\t2\t+",
	"chr1\t110\t130\t10\t2\t-",
	"chr1\t150\t160\t1\t1\t?",
	"chr1\t200\t220\t1\t1\t*",
	"chr1\t40000\t40020\t0\t1\t+",
	"chr2\t5\t25\t01\t2\t+",
}

func collect(t *testing.T, iter happrovider.Iterator) (spans []hap.Interval, skipped int) {
	for iter.Scan() {
		spans = append(spans, iter.Record().Span())
	}
	skipped = iter.Skipped()
	assert.NoError(t, iter.Close())
	return
}

func writeStreamed(t *testing.T, dir string) string {
	path, err := tabixtest.WriteFiles(dir, "test.hap.gz", hapLines)
	assert.NoError(t, err)
	return path
}

func writeCached(t *testing.T, dir string) string {
	path := filepath.Join(dir, "test.hap")
	assert.NoError(t, ioutil.WriteFile(path, []byte(strings.Join(hapLines, "\n")+"\n"), 0600))
	return path
}

func TestStreamedQuery(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	p, err := happrovider.NewProvider(ctx, writeStreamed(t, tmpdir), happrovider.Opts{})
	assert.NoError(t, err)
	_, ok := p.(*happrovider.StreamedProvider)
	expect.True(t, ok)

	spans, skipped := collect(t, p.NewIterator(ctx, "chr1", 105, 205))
	expect.EQ(t, spans, []hap.Interval{
		{Chr: "chr1", Start: 100, End: 120},
		{Chr: "chr1", Start: 110, End: 130},
		{Chr: "chr1", Start: 200, End: 220},
	})
	expect.EQ(t, skipped, 1)

	spans, skipped = collect(t, p.NewIterator(ctx, "chr1", 39000, 41000))
	expect.EQ(t, spans, []hap.Interval{{Chr: "chr1", Start: 40000, End: 40020}})
	expect.EQ(t, skipped, 0)

	spans, _ = collect(t, p.NewIterator(ctx, "chr2", 0, 10))
	expect.EQ(t, spans, []hap.Interval{{Chr: "chr2", Start: 5, End: 25}})

	spans, _ = collect(t, p.NewIterator(ctx, "chr3", 0, 1000))
	expect.EQ(t, len(spans), 0)
	spans, _ = collect(t, p.NewIterator(ctx, "chr1", 500, 600))
	expect.EQ(t, len(spans), 0)
	assert.NoError(t, p.Close())
}

func TestStreamedConcurrentIterators(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	p, err := happrovider.NewStreamedProvider(ctx, writeStreamed(t, tmpdir), "", hap.HapKind)
	assert.NoError(t, err)
	a := p.NewIterator(ctx, "chr1", 0, 1000)
	b := p.NewIterator(ctx, "chr2", 0, 1000)
	require.True(t, a.Scan())
	require.True(t, b.Scan())
	require.True(t, a.Scan())
	require.Equal(t, 110, a.Record().Span().Start)
	require.Equal(t, "chr2", b.Record().Span().Chr)
	require.False(t, b.Scan())
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())
	require.NoError(t, p.Close())
}

// blockLines has a long record whose line straddles the first two BGZF blocks
// and whose bin is read before a run of unrelated lines, followed by two
// records the query must also find.
func blockLines() []string {
	lines := []string{"chr1\t16000\t40000\t1\t1\t+"}
	for i := 0; i < 300; i++ {
		start := 16400 + 50*i
		lines = append(lines, fmt.Sprintf("chr1\t%d\t%d\t0\t1\t+", start, start+20))
	}
	return append(lines,
		"chr1\t33000\t33020\t1\t1\t-",
		"chr1\t33010\t33030\t1\t1\t-",
	)
}

func TestStreamedAcrossBlocks(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	lines := blockLines()
	for _, blockSize := range []int{16, 37, 512, 0xff00} {
		path, err := tabixtest.WriteBlockFiles(tmpdir, fmt.Sprintf("blocks%d.hap.gz", blockSize), lines, blockSize)
		assert.NoError(t, err)
		p, err := happrovider.NewProvider(ctx, path, happrovider.Opts{})
		assert.NoError(t, err)

		spans, skipped := collect(t, p.NewIterator(ctx, "chr1", 33000, 33500))
		expect.EQ(t, spans, []hap.Interval{
			{Chr: "chr1", Start: 16000, End: 40000},
			{Chr: "chr1", Start: 33000, End: 33020},
			{Chr: "chr1", Start: 33010, End: 33030},
		}, "block size %d", blockSize)
		expect.EQ(t, skipped, 0, "block size %d", blockSize)

		// Every query agrees with a linear scan of the input.
		cached, err := happrovider.NewCachedProviderFromReader(strings.NewReader(strings.Join(lines, "\n")), hap.HapKind)
		assert.NoError(t, err)
		r := rand.New(rand.NewSource(int64(blockSize)))
		for i := 0; i < 50; i++ {
			start := 15000 + r.Intn(20000)
			end := start + 1 + r.Intn(3000)
			var want []hap.Interval
			iter := cached.NewIterator(ctx, "chr1", 0, 1<<20)
			for iter.Scan() {
				if span := iter.Record().Span(); span.Overlaps("chr1", start, end) {
					want = append(want, span)
				}
			}
			assert.NoError(t, iter.Close())
			got, skipped := collect(t, p.NewIterator(ctx, "chr1", start, end))
			expect.EQ(t, got, want, "block size %d, query [%d, %d)", blockSize, start, end)
			expect.EQ(t, skipped, 0)
		}
		assert.NoError(t, p.Close())
	}
}

func TestStreamedMatchesCached(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	streamed, err := happrovider.NewProvider(ctx, writeStreamed(t, tmpdir), happrovider.Opts{})
	assert.NoError(t, err)
	cached, err := happrovider.NewProvider(ctx, writeCached(t, tmpdir), happrovider.Opts{})
	assert.NoError(t, err)
	_, ok := cached.(*happrovider.CachedProvider)
	expect.True(t, ok)

	// Ranges that contain every record they touch, so the overlap and
	// containment filters agree.
	for _, q := range []hap.Interval{
		{Chr: "chr1", Start: 0, End: 1000},
		{Chr: "chr1", Start: 0, End: 50000},
		{Chr: "chr2", Start: 0, End: 100},
		{Chr: "chrX", Start: 0, End: 100},
	} {
		want, _ := collect(t, streamed.NewIterator(ctx, q.Chr, q.Start, q.End))
		got, _ := collect(t, cached.NewIterator(ctx, q.Chr, q.Start, q.End))
		expect.EQ(t, got, want, "query %+v", q)
	}
	expect.EQ(t, cached.(*happrovider.CachedProvider).Skipped(), 1)
	expect.EQ(t, cached.(*happrovider.CachedProvider).Len(), 5)
	assert.NoError(t, streamed.Close())
	assert.NoError(t, cached.Close())
}

func TestCachedContainment(t *testing.T) {
	p, err := happrovider.NewCachedProviderFromReader(strings.NewReader(strings.Join(hapLines, "\n")), hap.HapKind)
	assert.NoError(t, err)
	ctx := vcontext.Background()
	spans, _ := collect(t, p.NewIterator(ctx, "chr1", 105, 205))
	expect.EQ(t, spans, []hap.Interval{{Chr: "chr1", Start: 110, End: 130}})

	iter := p.NewIterator(ctx, "chr2", 0, 100)
	assert.True(t, iter.Scan())
	h := iter.Record().(*hap.Hap)
	expect.EQ(t, h.States, []bool{false, true})
	expect.EQ(t, h.Strand, hap.Forward)
	assert.NoError(t, iter.Close())
}

func TestCachedGzip(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte("chr1\t10\t20\t0.826\nchr1\t15\t40\t-0.5\n"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	path := filepath.Join(tmpdir, "corr.txt.gz")
	assert.NoError(t, ioutil.WriteFile(path, buf.Bytes(), 0600))

	p, err := happrovider.NewProvider(ctx, path, happrovider.Opts{
		Kind:     hap.CorrelationKind,
		Strategy: happrovider.Cached,
	})
	assert.NoError(t, err)
	iter := p.NewIterator(ctx, "chr1", 0, 100)
	var percents []int
	for iter.Scan() {
		percents = append(percents, iter.Record().(*hap.Correlation).Percent())
	}
	assert.NoError(t, iter.Close())
	expect.EQ(t, percents, []int{83, -50})
	assert.NoError(t, p.Close())
}

func TestOpenErrors(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	// Missing data and index: an I/O error, not a format error.
	_, err := happrovider.NewProvider(ctx, filepath.Join(tmpdir, "missing.hap.gz"), happrovider.Opts{})
	assert.NotNil(t, err)
	expect.False(t, happrovider.IsFormatError(err))
	_, err = happrovider.NewProvider(ctx, filepath.Join(tmpdir, "missing.hap"), happrovider.Opts{})
	assert.NotNil(t, err)
	expect.False(t, happrovider.IsFormatError(err))

	// Data present but the index is garbage.
	path := writeStreamed(t, tmpdir)
	assert.NoError(t, ioutil.WriteFile(path+".tbi", []byte("not an index"), 0600))
	_, err = happrovider.NewProvider(ctx, path, happrovider.Opts{})
	assert.NotNil(t, err)
	expect.True(t, happrovider.IsFormatError(err), "got %v", err)

	// An explicit index path overrides path + ".tbi".
	other, err := tabixtest.WriteFiles(tmpdir, "other.hap.gz", hapLines)
	assert.NoError(t, err)
	p, err := happrovider.NewProvider(ctx, path, happrovider.Opts{Index: other + ".tbi"})
	assert.NoError(t, err)
	spans, _ := collect(t, p.NewIterator(ctx, "chr2", 0, 100))
	expect.EQ(t, len(spans), 1)
	assert.NoError(t, p.Close())
}

func TestParseStrategy(t *testing.T) {
	for name, want := range map[string]happrovider.Strategy{
		"":         happrovider.Automatic,
		"auto":     happrovider.Automatic,
		"streamed": happrovider.Streamed,
		"cached":   happrovider.Cached,
	} {
		got, err := happrovider.ParseStrategy(name)
		assert.NoError(t, err)
		expect.EQ(t, got, want)
	}
	_, err := happrovider.ParseStrategy("bogus")
	expect.True(t, happrovider.IsFormatError(err))

	expect.EQ(t, happrovider.GuessStrategy("a.hap.gz"), happrovider.Streamed)
	expect.EQ(t, happrovider.GuessStrategy("a.bgz"), happrovider.Streamed)
	expect.EQ(t, happrovider.GuessStrategy("a.hap"), happrovider.Cached)
}

var errBoom = errors.New("boom")

func TestErrorIterator(t *testing.T) {
	iter := happrovider.NewErrorIterator(errBoom)
	expect.False(t, iter.Scan())
	expect.EQ(t, iter.Err(), errBoom)
	expect.EQ(t, iter.Close(), errBoom)
}
