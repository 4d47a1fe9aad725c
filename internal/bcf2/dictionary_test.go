package bcf2

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

func parseHeader(t *testing.T, text string) *header.Header {
	t.Helper()
	h, err := vcf.NewCodec(vcf.Options{}).ReadHeader(vcf.NewLineSource(strings.NewReader(text)))
	require.NoError(t, err)
	return h
}

func TestStringDictionary(t *testing.T) {
	h := parseHeader(t, testHeaderText)
	d, err := StringDictionary(h)
	require.NoError(t, err)

	want := []string{"PASS", "q10", "AD", "DP", "FT", "GQ", "GT", "HQ", "XF", "ZZ", "AC", "AF", "DB", "END", "TAGS"}
	for i, s := range want {
		got, ok := d.String(i)
		require.True(t, ok, "offset %d", i)
		assert.Equal(t, s, got, "offset %d", i)
		off, ok := d.Offset(s)
		require.True(t, ok)
		assert.Equal(t, i, off)
	}
	assert.Equal(t, len(want), d.Len(), "DP is shared by INFO and FORMAT")
}

func TestStringDictionary_IDX(t *testing.T) {
	h := parseHeader(t, "##fileformat=VCFv4.2\n"+
		"##FILTER=<ID=PASS,Description=\"All filters passed\",IDX=0>\n"+
		"##FILTER=<ID=q10,Description=\"Low quality\",IDX=4>\n"+
		"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Depth\",IDX=1>\n"+
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n")
	d, err := StringDictionary(h)
	require.NoError(t, err)

	off, ok := d.Offset("q10")
	require.True(t, ok)
	assert.Equal(t, 4, off)
	off, ok = d.Offset("DP")
	require.True(t, ok)
	assert.Equal(t, 1, off)
	_, ok = d.String(2)
	assert.False(t, ok, "gap")
	assert.Equal(t, 5, d.Len())
}

func TestStringDictionary_IDXClash(t *testing.T) {
	h := parseHeader(t, "##fileformat=VCFv4.2\n"+
		"##FILTER=<ID=q10,Description=\"Low quality\",IDX=0>\n"+
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n")
	_, err := StringDictionary(h)
	assert.Error(t, err)
}

func TestContigDictionary(t *testing.T) {
	h := parseHeader(t, testHeaderText)
	d, err := ContigDictionary(h)
	require.NoError(t, err)
	for i, want := range []string{"chr1", "chr2"} {
		got, ok := d.String(i)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := d.Offset("chrX")
	assert.False(t, ok)
}
