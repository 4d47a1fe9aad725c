package vcf

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-vcf/internal/variant"
)

func openSample(t *testing.T) *Reader {
	t.Helper()
	f, err := os.Open("testdata/sample.vcf")
	require.NoError(t, err)
	r, err := NewReader(f, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func readAll(t *testing.T, r *Reader) []*variant.VariantContext {
	t.Helper()
	var out []*variant.VariantContext
	for {
		vc, err := r.Next()
		require.NoError(t, err)
		if vc == nil {
			return out
		}
		out = append(out, vc)
	}
}

func TestReader_Sample(t *testing.T) {
	r := openSample(t)
	h := r.Header()
	assert.Equal(t, "VCFv4.1", h.Version())
	assert.Equal(t, []string{"NA00001", "NA00002", "NA00003"}, h.SampleNames())
	assert.Equal(t, 18, r.LineNumber())

	vcs := readAll(t, r)
	require.Len(t, vcs, 6, "the empty line is skipped")
	assert.Equal(t, 25, r.LineNumber(), "the unterminated last line is read")

	first := vcs[0]
	assert.Equal(t, "20", first.Contig())
	assert.Equal(t, 14370, first.Start())
	assert.Equal(t, "rs6054257", first.ID())
	assert.True(t, first.IsSNP())
	assert.True(t, first.Filters().IsPass())
	assert.InDelta(t, 29.0, first.PhredScaledQual(), 1e-9)
	assert.True(t, first.AttributeAsBool("DB"))

	assert.True(t, vcs[1].IsFiltered())
	assert.Equal(t, []string{"q10"}, vcs[1].Filters().Names())
	assert.False(t, vcs[1].HasID())

	multi := vcs[2]
	assert.Equal(t, 3, multi.NumAlleles())
	g, ok := multi.Genotype("NA00001")
	require.True(t, ok)
	assert.Equal(t, []int{0, 3, 3}, g.AD())
	assert.True(t, g.IsPhased())

	noAlt := vcs[3]
	assert.Equal(t, 1, noAlt.NumAlleles())
	assert.False(t, noAlt.IsVariant())

	microsat := vcs[4]
	assert.Equal(t, "microsat1", microsat.ID())
	assert.True(t, microsat.IsIndel())
	assert.Equal(t, 1234569, microsat.End())
	g, ok = microsat.Genotype("NA00003")
	require.True(t, ok)
	assert.True(t, g.IsNoCall())

	del := vcs[5]
	assert.True(t, del.IsSymbolic())
	assert.Equal(t, 2000500, del.End())
	assert.False(t, del.HasLog10PError())
	assert.False(t, del.FiltersWereApplied())
	g, ok = del.Genotype("NA00002")
	require.True(t, ok)
	assert.True(t, g.IsNoCall())
	assert.Equal(t, 1, g.Ploidy())
}

func TestReader_NextAfterEOF(t *testing.T) {
	r := openSample(t)
	readAll(t, r)
	vc, err := r.Next()
	assert.NoError(t, err)
	assert.Nil(t, vc)

	_, _, err = r.NextLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_ErrorLineNumber(t *testing.T) {
	text := headerText() +
		record("chr1", "1", ".", "A", "T", ".", ".", ".") + "\n" +
		"\n" +
		record("chr1", "x", ".", "A", "T", ".", ".", ".") + "\n"
	r, err := NewReader(strings.NewReader(text), Options{})
	require.NoError(t, err)

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, 20, pe.Line)
}

func TestReader_HeaderError(t *testing.T) {
	_, err := NewReader(strings.NewReader("##fileformat=VCFv4.2\n"), Options{})
	assert.Error(t, err)
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestReader_Close(t *testing.T) {
	src := &closeRecorder{Reader: strings.NewReader(headerText())}
	r, err := NewReader(src, Options{})
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.True(t, src.closed)
}

func TestReader_CRLF(t *testing.T) {
	text := strings.ReplaceAll(headerText("NA1")+record("chr1", "7", ".", "A", "C", ".", ".", ".", "GT", "0/1")+"\n", "\n", "\r\n")
	r, err := NewReader(strings.NewReader(text), Options{})
	require.NoError(t, err)
	vc, err := r.Next()
	require.NoError(t, err)
	g, ok := vc.Genotype("NA1")
	require.True(t, ok)
	assert.True(t, g.IsHet())
}

func TestReader_ImplementsVariantReader(t *testing.T) {
	var _ VariantReader = openSample(t)
	var _ VariantWriter = NewWriter(io.Discard, WriterOptions{})
}
