package vcf

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/variant"
)

var (
	refA = variant.MustAllele("A", true)
	altT = variant.MustAllele("T", false)
	altG = variant.MustAllele("G", false)
)

func TestFormatDouble(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "1.00"},
		{123.456, "123.46"},
		{0.5, "0.500"},
		{0.01, "0.010"},
		{0.001, "1.000e-03"},
		{-5, "-5.000e+00"},
		{0, "0.00"},
		{1e-30, "0.00"},
		{variant.MissingFloat, "."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDouble(tt.in), "%v", tt.in)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{nil, ".", true},
		{true, "", true},
		{false, "", false},
		{"x", "x", true},
		{"", ".", true},
		{7, "7", true},
		{variant.MissingInt, ".", true},
		{0.25, "0.250", true},
		{[]int{1, variant.MissingInt}, "1,.", true},
		{[]float64{0.5, 2}, "0.500,2.00", true},
		{[]string{"a", ""}, "a,.", true},
		{[]any{1, "b"}, "1,b", true},
		{[]int{}, ".", true},
	}
	for _, tt := range tests {
		got, ok := FormatValue(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func testHeader(t *testing.T, samples ...string) *header.Header {
	t.Helper()
	return newTestCodec(t, Options{}, samples...).Header()
}

func TestEncoder_Encode(t *testing.T) {
	h := testHeader(t, "NA1", "NA2")
	vc := variant.NewBuilder("chr1", 100, 100, refA, altT).
		ID("rs1").
		PhredQual(29.5).
		FilterNames("q10").
		Attribute("AF", 0.005).
		Attribute("DB", true).
		Attribute("AC", []int{1}).
		GenotypeList(variant.NewGenotypeBuilder("NA1", refA, altT).DP(10).GQ(30).MustMake()).
		MustMake()

	line, err := NewEncoder(h, WriterOptions{}).Encode(vc)
	require.NoError(t, err)
	assert.Equal(t, "chr1\t100\trs1\tA\tT\t29.50\tq10\tAC=1;AF=5.000e-03;DB\tGT:DP:GQ\t0/1:10:30\t./.", line)
}

func TestEncoder_Sentinels(t *testing.T) {
	h := testHeader(t)
	vc := variant.NewBuilder("chr1", 5, 5, refA).MustMake()
	line, err := NewEncoder(h, WriterOptions{}).Encode(vc)
	require.NoError(t, err)
	assert.Equal(t, "chr1\t5\t.\tA\t.\t.\t.\t.", line)

	vc = variant.NewBuilder("chr1", 5, 5, refA, altT, altG).PhredQual(30).Passed().MustMake()
	line, err = NewEncoder(h, WriterOptions{}).Encode(vc)
	require.NoError(t, err)
	assert.Equal(t, "chr1\t5\t.\tA\tT,G\t30\tPASS\t.", line)
}

func TestEncoder_GenotypeFields(t *testing.T) {
	h := testHeader(t, "NA1", "NA2", "NA3")
	vc := variant.NewBuilder("chr1", 100, 100, refA, altT).
		GenotypeList(
			variant.NewGenotypeBuilder("NA1", refA, altT).Phased(true).Attribute("HQ", "10,20").MustMake(),
			variant.NewGenotypeBuilder("NA2", refA, refA).Attribute("ZZ", "a").Filter("q10").MustMake(),
			variant.NewGenotypeBuilder("NA3", altT).AD([]int{0, 5}).MustMake(),
		).
		MustMake()

	line, err := NewEncoder(h, WriterOptions{}).Encode(vc)
	require.NoError(t, err)
	cols := strings.Split(line, "\t")
	require.Len(t, cols, 12)
	assert.Equal(t, "GT:AD:FT:HQ:ZZ", cols[8])
	assert.Equal(t, "0|1:.:PASS:10,20", cols[9])
	assert.Equal(t, "0/0:.:q10:.,.:a", cols[10])
	assert.Equal(t, "1:0,5:PASS", cols[11])
}

func TestEncoder_MissingDeclarations(t *testing.T) {
	h := testHeader(t, "NA1")
	tests := []struct {
		name string
		vc   *variant.VariantContext
		kind string
	}{
		{"filter", variant.NewBuilder("chr1", 1, 1, refA, altT).FilterNames("nope").MustMake(), "FILTER"},
		{"info", variant.NewBuilder("chr1", 1, 1, refA, altT).Attribute("NOPE", 1).MustMake(), "INFO"},
		{"format", variant.NewBuilder("chr1", 1, 1, refA, altT).GenotypeList(
			variant.NewGenotypeBuilder("NA1", refA, altT).Attribute("NOPE", "1").MustMake()).MustMake(), "FORMAT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncoder(h, WriterOptions{}).Encode(tt.vc)
			var me *header.MissingDeclarationError
			require.True(t, errors.As(err, &me), "got %v", err)
			assert.Equal(t, tt.kind, me.Kind)
			assert.Equal(t, "chr1:1", me.Locus)
		})
	}
}

func TestEncoder_Relaxed(t *testing.T) {
	h := testHeader(t)
	core, logs := observer.New(zap.WarnLevel)
	enc := NewEncoder(h, WriterOptions{AllowMissingFieldsInHeader: true})
	enc.SetLogger(zap.New(core))

	vc := variant.NewBuilder("chr1", 1, 1, refA, altT).Attribute("NOPE", 1).FilterNames("bad").MustMake()
	for range 3 {
		line, err := enc.Encode(vc)
		require.NoError(t, err)
		assert.Equal(t, "chr1\t1\t.\tA\tT\t.\tbad\tNOPE=1", line)
	}
	assert.Equal(t, 2, logs.Len(), "one warning per undeclared key")
}

func TestEncoder_DropGenotypes(t *testing.T) {
	h := testHeader(t, "NA1")
	enc := NewEncoder(h, WriterOptions{DropGenotypes: true})
	assert.False(t, enc.Header().HasGenotypingData())
	assert.True(t, h.HasGenotypingData(), "the input header is untouched")

	vc := variant.NewBuilder("chr1", 1, 1, refA, altT).
		GenotypeList(variant.NewGenotypeBuilder("NA1", refA, altT).MustMake()).
		MustMake()
	line, err := enc.Encode(vc)
	require.NoError(t, err)
	assert.Equal(t, "chr1\t1\t.\tA\tT\t.\t.\t.", line)
}

func TestEncoder_GenotypeAlleleNotInRecord(t *testing.T) {
	h := testHeader(t, "NA1")
	c := newTestCodec(t, Options{}, "NA1")
	vc, err := c.Decode(record("chr1", "1", ".", "A", "T,G", ".", ".", ".", "GT", "0/2"))
	require.NoError(t, err)
	require.NoError(t, vc.Genotypes().Force())

	trimmed := variant.BuilderFrom(vc).Alleles(refA, altT).GenotypesNoValidation(vc.Genotypes()).MustMake()
	_, err = NewEncoder(h, WriterOptions{}).Encode(trimmed)
	assert.Error(t, err)
}

func TestFormatHeader(t *testing.T) {
	c := NewCodec(Options{})
	_, err := c.ReadHeader(NewLineSource(strings.NewReader(
		"##fileformat=VCFv4.1\n" +
			"##source=test\n" +
			"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Depth\">\n" +
			"##FILTER=<ID=q10,Description=\"Low quality\">\n" +
			"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tNA1\n")))
	require.NoError(t, err)

	assert.Equal(t, "##fileformat=VCFv4.2\n"+
		"##FILTER=<ID=q10,Description=\"Low quality\">\n"+
		"##INFO=<ID=DP,Number=1,Type=Integer,Description=\"Depth\">\n"+
		"##source=test\n"+
		"#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\tFORMAT\tNA1\n",
		FormatHeader(c.Header()))
}

func TestWriter_RoundTrip(t *testing.T) {
	in := headerText("NA1", "NA2") +
		record("chr1", "100", "rs1", "A", "T,G", "50", "PASS", "AC=1,1;DB;DP=20", "GT:AD:DP:GQ", "0|1:4,6,0:10:35", "1/2:0,3,3:6:.") + "\n" +
		record("chr1", "200", ".", "AC", "A", "3.50", "q10;s50", "DP=4", "GT", "0/0", "./.") + "\n" +
		record("chr1", "300", ".", "N", "<DEL>", ".", ".", "END=450", "GT", "0/1", ".") + "\n"

	read := func(text string) []*variant.VariantContext {
		t.Helper()
		r, err := NewReader(strings.NewReader(text), Options{})
		require.NoError(t, err)
		var out []*variant.VariantContext
		for {
			vc, err := r.Next()
			require.NoError(t, err)
			if vc == nil {
				break
			}
			out = append(out, vc)
		}
		return out
	}

	first := read(in)
	require.Len(t, first, 3)

	var buf bytes.Buffer
	w := NewWriter(&buf, WriterOptions{})
	r, err := NewReader(strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader(r.Header()))
	for _, vc := range first {
		require.NoError(t, w.Write(vc))
	}
	require.NoError(t, w.Close())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "##fileformat=VCFv4.2\n"))
	inRecords := in[strings.Index(in, "chr1\t100"):]
	assert.Equal(t, inRecords, out[strings.Index(out, "chr1\t100"):], "undecoded genotypes are written verbatim")

	second := read(out)
	require.Len(t, second, 3)
	for i := range first {
		require.NoError(t, first[i].Genotypes().Force())
		require.NoError(t, second[i].Genotypes().Force())
		assert.True(t, variant.Equal(first[i], second[i]), "record %d: %s != %s", i, first[i], second[i])
	}
}

func TestWriter_RoundTripDecoded(t *testing.T) {
	h := testHeader(t, "NA1", "NA2")
	vcs := []*variant.VariantContext{
		variant.NewBuilder("chr1", 100, 100, refA, altT, altG).
			ID("rs9").
			PhredQual(12.25).
			Passed().
			Attribute("AC", []string{"1", "2"}).
			Attribute("DB", true).
			GenotypeList(
				variant.NewGenotypeBuilder("NA1", altT, altG).Phased(true).GQ(20).DP(8).AD([]int{0, 4, 4}).MustMake(),
				variant.NewGenotypeBuilder("NA2", refA, refA).Filter("q10").Attribute("HQ", "3,4").MustMake(),
			).
			MustMake(),
		variant.NewBuilder("chr1", 150, 150, refA, altT).
			Unfiltered().
			GenotypeList(variant.NewGenotypeBuilder("NA1", variant.NoCall, variant.NoCall).MustMake()).
			MustMake(),
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, WriterOptions{})
	require.NoError(t, w.WriteHeader(h))
	for _, vc := range vcs {
		require.NoError(t, w.Write(vc))
	}
	require.NoError(t, w.Flush())

	r, err := NewReader(&buf, Options{})
	require.NoError(t, err)
	for i, want := range vcs {
		got, err := r.Next()
		require.NoError(t, err)
		require.NotNil(t, got)
		require.NoError(t, got.Genotypes().Force())

		assert.Equal(t, want.Contig(), got.Contig())
		assert.Equal(t, want.Start(), got.Start())
		assert.Equal(t, want.ID(), got.ID())
		assert.Equal(t, want.Alleles(), got.Alleles(), "record %d", i)
		assert.InDelta(t, want.PhredScaledQual(), got.PhredScaledQual(), 1e-9)
		assert.True(t, want.Filters().Equal(got.Filters()))
		for _, g := range want.Genotypes().Genotypes() {
			gg, ok := got.Genotype(g.SampleName())
			require.True(t, ok)
			assert.True(t, variant.GenotypesEqual(g, gg), "%s != %s", g, gg)
		}
	}
	last, err := r.Next()
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestEncoder_LazyGenotypesUndeclaredFormat(t *testing.T) {
	c := newTestCodec(t, Options{}, "NA1")
	line := record("chr1", "10", ".", "A", "T", ".", ".", ".", "GT:XX", "0/1:7")

	vc, err := c.Decode(line)
	require.NoError(t, err)
	require.True(t, vc.Genotypes().IsLazy())
	_, err = NewEncoder(c.Header(), WriterOptions{}).Encode(vc)
	var me *header.MissingDeclarationError
	require.True(t, errors.As(err, &me), "got %v", err)
	assert.Equal(t, header.KeyFormat, me.Kind)
	assert.Equal(t, "XX", me.Key)

	vc, err = c.Decode(line)
	require.NoError(t, err)
	core, logs := observer.New(zap.WarnLevel)
	enc := NewEncoder(c.Header(), WriterOptions{AllowMissingFieldsInHeader: true})
	enc.SetLogger(zap.New(core))
	out, err := enc.Encode(vc)
	require.NoError(t, err)
	assert.Equal(t, line, out)
	assert.Equal(t, 1, logs.Len())
}

func TestEncoder_LazyGenotypesWrongSampleCount(t *testing.T) {
	c := newTestCodec(t, Options{}, "NA1", "NA2")
	for _, cols := range [][]string{{"GT", "0/1"}, {"GT", "0/1", "0/0", "1/1"}} {
		vc, err := c.Decode(record(append([]string{"chr1", "10", ".", "A", "T", ".", ".", "."}, cols...)...))
		require.NoError(t, err)
		require.True(t, vc.Genotypes().IsLazy())

		_, err = NewEncoder(c.Header(), WriterOptions{}).Encode(vc)
		var pe *ParseError
		assert.True(t, errors.As(err, &pe), "%d sample columns: got %v", len(cols)-1, err)
	}
}

func TestEncoder_LikelihoodsWrittenAsPL(t *testing.T) {
	text := "##fileformat=VCFv4.1\n" +
		"##FORMAT=<ID=GT,Number=1,Type=String,Description=\"Genotype\">\n" +
		"##FORMAT=<ID=GL,Number=G,Type=Float,Description=\"Genotype likelihoods\">\n" +
		headerText("NA1")[strings.Index(headerText("NA1"), "#CHROM"):] +
		record("chr1", "10", ".", "A", "T", ".", ".", ".", "GT:GL", "0/1:-1.0,0,-2.5") + "\n"
	r, err := NewReader(strings.NewReader(text), Options{})
	require.NoError(t, err)
	require.True(t, r.Header().HasFormat(header.PhredLikelihoodsKey))

	vc, err := r.Next()
	require.NoError(t, err)
	enc := NewEncoder(r.Header(), WriterOptions{})
	line, err := enc.Encode(vc)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(line, "\tGT:GL\t0/1:-1.0,0,-2.5"), "undecoded genotypes are written verbatim: %s", line)

	require.NoError(t, vc.Genotypes().Force())
	line, err = enc.Encode(vc)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(line, "\tGT:PL\t0/1:10,0,25"), line)
}
