package hap_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/grailbio/hapview/encoding/hap"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/pkg/errors"
)

func tokens(line string) [][]byte {
	var buf [8][]byte
	n := hap.Tokenize(buf[:], []byte(line))
	return buf[:n]
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"chr1\t10\t20", []string{"chr1", "10", "20"}},
		{"  chr1   10 \t 20\r", []string{"chr1", "10", "20"}},
		{"", nil},
		{" \t ", nil},
		{"a b c d e f g h i j", []string{"a", "b", "c", "d", "e", "f", "g", "h"}},
	}
	for _, tt := range tests {
		got := tokens(tt.line)
		var gotStr []string
		for _, tok := range got {
			gotStr = append(gotStr, string(tok))
		}
		expect.EQ(t, gotStr, tt.want, "line %q", tt.line)
	}
}

func TestDecodeHap(t *testing.T) {
	h, err := hap.DecodeHap(tokens("chr1\t10468\t10487\t1101\t3\t-"))
	assert.NoError(t, err)
	expect.EQ(t, h.Interval, hap.Interval{Chr: "chr1", Start: 10468, End: 10487})
	expect.EQ(t, h.States, []bool{true, true, false, true})
	expect.EQ(t, h.Count, 3)
	expect.EQ(t, h.Strand, hap.Reverse)

	for sym, want := range map[string]hap.Strand{"*": hap.None, "+": hap.Forward, "-": hap.Reverse, "(+)": hap.Forward} {
		h, err := hap.DecodeHap(tokens("chr2 1 5 0 1 " + sym))
		assert.NoError(t, err)
		expect.EQ(t, h.Strand, want, "strand %s", sym)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	for _, iv := range []hap.Interval{
		{"chr1", 0, 1},
		{"chrX", 155270560, 155270600},
		{"HLA-A*01:01:01:01", 37, 1009},
	} {
		line := fmt.Sprintf("%s\t%d\t%d\t10\t2\t+", iv.Chr, iv.Start, iv.End)
		rec, err := hap.Decode(hap.HapKind, tokens(line))
		assert.NoError(t, err)
		expect.EQ(t, rec.Span(), iv)

		line = fmt.Sprintf("%s %d %d -0.25", iv.Chr, iv.Start, iv.End)
		rec, err = hap.Decode(hap.CorrelationKind, tokens(line))
		assert.NoError(t, err)
		expect.EQ(t, rec.Span(), iv)
		expect.EQ(t, rec.(*hap.Correlation).Value, -0.25)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		kind   hap.Kind
		line   string
		column int
		field  string
	}{
		{hap.HapKind, "chr1 1x 20 11 2 +", 1, "1x"},
		{hap.HapKind, "chr1 1 twenty 11 2 +", 2, "twenty"},
		{hap.HapKind, "chr1 30 20 11 2 +", 2, "20"},
		{hap.HapKind, "chr1 -4 20 11 2 +", 1, "-4"},
		{hap.HapKind, "chr1 1 20 11 two +", 4, "two"},
		{hap.HapKind, "chr1 1 20 11 2 ?", 5, "?"},
		{hap.HapKind, "chr1 1 20 11", -1, ""},
		{hap.CorrelationKind, "chr1 1 20 high", 3, "high"},
		{hap.CorrelationKind, "chr1 1", -1, ""},
	}
	for _, tt := range tests {
		_, err := hap.Decode(tt.kind, tokens(tt.line))
		assert.NotNil(t, err, "line %q", tt.line)
		derr, ok := errors.Cause(err).(*hap.DecodeError)
		assert.True(t, ok, "line %q: %T", tt.line, err)
		expect.EQ(t, derr.Column, tt.column, "line %q", tt.line)
		expect.EQ(t, derr.Field, tt.field, "line %q", tt.line)
	}
}

func TestDecoderComments(t *testing.T) {
	d := hap.Decoder{Kind: hap.HapKind}
	for _, line := range []string{"", "   ", "#chr\tstart\tend"} {
		_, err := d.DecodeLine([]byte(line))
		expect.EQ(t, err, hap.ErrComment, "line %q", line)
	}
	rec, err := d.DecodeLine([]byte("chr3\t5\t9\t01\t2\t*"))
	assert.NoError(t, err)
	expect.EQ(t, rec.(*hap.Hap).States, []bool{false, true})
}

func TestCorrelationLabels(t *testing.T) {
	c := hap.Correlation{Interval: hap.Interval{"chr1", 100, 111}, Value: 0.826}
	expect.EQ(t, c.Midpoint(), 105.5)
	expect.EQ(t, c.Percent(), 83)
	c.Value = -0.5
	expect.EQ(t, c.Percent(), -50)

	// Halves round toward positive infinity.
	for _, test := range []struct {
		value float64
		want  int
	}{
		{0.125, 13},
		{-0.125, -12},
		{-0.375, -37},
		{0.375, 38},
		{-0.124, -12},
		{-0.126, -13},
	} {
		c.Value = test.value
		expect.EQ(t, c.Percent(), test.want, "value %v", test.value)
	}
}

func TestParseKind(t *testing.T) {
	k, err := hap.ParseKind("COR")
	assert.NoError(t, err)
	expect.EQ(t, k, hap.CorrelationKind)
	k, err = hap.ParseKind("hap")
	assert.NoError(t, err)
	expect.EQ(t, k, hap.HapKind)
	_, err = hap.ParseKind("bam")
	expect.NotNil(t, err)
	expect.True(t, strings.Contains(err.Error(), `unknown record kind "bam"`), "got %v", err)
}
