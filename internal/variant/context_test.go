package variant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snpBuilder() *Builder {
	return NewBuilder("chr1", 100, 100, altT, refA)
}

func TestBuilder_Make(t *testing.T) {
	vc, err := snpBuilder().
		ID("rs1").
		PhredQual(30).
		Passed().
		Attribute("AC", 1).
		Make()
	require.NoError(t, err)

	assert.Equal(t, "chr1", vc.Contig())
	assert.Equal(t, 100, vc.Start())
	assert.Equal(t, 100, vc.End())
	assert.Equal(t, "rs1", vc.ID())
	assert.True(t, vc.HasID())
	assert.Same(t, refA, vc.Reference(), "reference sorts first")
	assert.Equal(t, []*Allele{altT}, vc.AlternateAlleles())
	assert.InDelta(t, 30.0, vc.PhredScaledQual(), 1e-9)
	assert.True(t, vc.Filters().IsPass())
	assert.Equal(t, SNP, vc.Type())
	assert.True(t, vc.IsBiallelic())
	assert.False(t, vc.HasGenotypes())
}

func TestBuilder_MakeIsRepeatable(t *testing.T) {
	b := snpBuilder().Attribute("DP", 10)
	vc1 := b.MustMake()
	b.Attribute("DP", 20)
	vc2 := b.MustMake()

	dp1, _ := vc1.Attribute("DP")
	dp2, _ := vc2.Attribute("DP")
	assert.Equal(t, 10, dp1)
	assert.Equal(t, 20, dp2)
}

func TestBuilder_AttributeOwnership(t *testing.T) {
	attrs := map[string]any{"AF": []float64{0.5}}
	b := snpBuilder().Attributes(attrs)
	attrs["AF"].([]float64)[0] = 0.9
	attrs["NEW"] = "x"

	vc := b.MustMake()
	af, _ := vc.Attribute("AF")
	assert.Equal(t, []float64{0.5}, af)
	assert.False(t, vc.HasAttribute("NEW"))

	from := BuilderFrom(vc).Attribute("NEW", "y").MustMake()
	assert.False(t, vc.HasAttribute("NEW"))
	assert.True(t, from.HasAttribute("NEW"))
}

func TestBuilder_Validation(t *testing.T) {
	refC := MustAllele("C", true)
	tests := []struct {
		name string
		b    *Builder
	}{
		{"no alleles", NewBuilder("chr1", 1, 1)},
		{"two references", NewBuilder("chr1", 1, 1, refA, refC)},
		{"no reference", NewBuilder("chr1", 1, 1, altT, altG)},
		{"duplicate allele", NewBuilder("chr1", 1, 1, refA, altT, MustAllele("T", false))},
		{"duplicate ignoring ref state", NewBuilder("chr1", 1, 1, refA, MustAllele("A", false))},
		{"no-call site allele", NewBuilder("chr1", 1, 1, refA, NoCall)},
		{"stop mismatch", NewBuilder("chr1", 1, 5, refA, altT)},
		{"END mismatch", NewBuilder("chr1", 1, 1, refA, altT).Attribute("END", 7)},
		{"empty contig", NewBuilder("", 1, 1, refA, altT)},
		{"genotype allele not in site", snpBuilder().GenotypeList(
			NewGenotypeBuilder("S1", refA, altG).MustMake())},
		{"duplicate sample", snpBuilder().GenotypeList(
			NewGenotypeBuilder("S1", refA, refA).MustMake(),
			NewGenotypeBuilder("S1", refA, altT).MustMake())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.b.Make()
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestBuilder_StopFromEND(t *testing.T) {
	del := MustAllele("<DEL>", false)
	vc, err := NewBuilder("chr1", 100, 100, refA, del).
		Attribute("END", "500").
		ComputeStop().
		Make()
	require.NoError(t, err)
	assert.Equal(t, 500, vc.End())
	assert.Equal(t, Symbolic, vc.Type())

	// symbolic alleles skip the reference-length check
	_, err = NewBuilder("chr1", 100, 300, refA, del).Make()
	require.NoError(t, err)
}

func TestVariantType(t *testing.T) {
	refAC := MustAllele("AC", true)
	tests := []struct {
		name    string
		alleles []*Allele
		want    VariantType
	}{
		{"no variation", []*Allele{refA}, NoVariation},
		{"snp", []*Allele{refA, altT}, SNP},
		{"multiallelic snp", []*Allele{refA, altT, altG}, SNP},
		{"mnp", []*Allele{refAC, MustAllele("GT", false)}, MNP},
		{"deletion", []*Allele{refAC, MustAllele("A", false)}, Indel},
		{"insertion", []*Allele{refA, MustAllele("AT", false)}, Indel},
		{"symbolic", []*Allele{refA, MustAllele("<DUP>", false)}, Symbolic},
		{"mixed", []*Allele{refA, altT, MustAllele("AT", false)}, Mixed},
		{"spanning deletion", []*Allele{refA, SpanningDeletion}, Symbolic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := tt.alleles[0]
			vc, err := NewBuilder("chr1", 10, 10+ref.Len()-1, tt.alleles...).Make()
			require.NoError(t, err)
			assert.Equal(t, tt.want, vc.Type())
		})
	}
}

func TestVariantContext_GenotypeCounts(t *testing.T) {
	vc := snpBuilder().GenotypeList(
		NewGenotypeBuilder("S1", refA, refA).MustMake(),
		NewGenotypeBuilder("S2", refA, altT).MustMake(),
		NewGenotypeBuilder("S3", NoCall, NoCall).MustMake(),
	).MustMake()

	assert.Equal(t, 1, vc.GenotypeTypeCount(GenotypeHomRef))
	assert.Equal(t, 1, vc.GenotypeTypeCount(GenotypeHet))
	assert.Equal(t, 1, vc.GenotypeTypeCount(GenotypeNoCall))
	assert.Equal(t, 4, vc.CalledChrCount())
	assert.Equal(t, 1, vc.CalledChrCountOf(altT))
	assert.False(t, vc.IsMonomorphicInSamples())
	assert.Equal(t, 2, vc.MaxPloidy(5))

	g, ok := vc.Genotype("S2")
	require.True(t, ok)
	assert.True(t, g.IsHet())
	assert.False(t, vc.Genotypes().IsMutable(), "genotypes are frozen by Make")
}

func TestVariantContext_IsMonomorphicInSamples(t *testing.T) {
	assert.False(t, snpBuilder().MustMake().IsMonomorphicInSamples(), "sites without genotypes")

	homRef := snpBuilder().GenotypeList(
		NewGenotypeBuilder("S1", refA, refA).MustMake(),
		NewGenotypeBuilder("S2", NoCall, NoCall).MustMake(),
	).MustMake()
	assert.True(t, homRef.IsMonomorphicInSamples())
}

func TestVariantContext_AttributeAccessors(t *testing.T) {
	vc := snpBuilder().
		Attribute("DP", "42").
		Attribute("AF", "0.25").
		Attribute("AC", []string{"1", "2"}).
		Attribute("DB", true).
		Attribute("MISS", ".").
		MustMake()

	dp, err := vc.AttributeAsInt("DP", -1)
	require.NoError(t, err)
	assert.Equal(t, 42, dp)

	af, err := vc.AttributeAsFloat("AF", 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, af, 1e-12)

	miss, err := vc.AttributeAsInt("MISS", -1)
	require.NoError(t, err)
	assert.Equal(t, -1, miss)

	_, err = vc.AttributeAsInt("AC", 0)
	assert.Error(t, err)

	assert.Equal(t, "1,2", vc.AttributeAsString("AC", ""))
	assert.True(t, vc.AttributeAsBool("DB"))
	assert.False(t, vc.AttributeAsBool("NOPE"))
	assert.Equal(t, []string{"AC", "AF", "DB", "DP", "MISS"}, vc.AttributeKeys())
}

func TestFilterSet(t *testing.T) {
	var unfiltered *FilterSet
	assert.False(t, unfiltered.IsEvaluated())
	assert.Equal(t, ".", unfiltered.String())

	pass := PassFilters()
	assert.True(t, pass.IsPass())
	assert.Equal(t, "PASS", pass.String())
	assert.Same(t, pass, NewFilterSet())
	assert.Same(t, pass, NewFilterSet("PASS"))

	f := NewFilterSet("q10", "lowDP", "q10")
	assert.Equal(t, []string{"lowDP", "q10"}, f.Names())
	assert.Equal(t, "lowDP;q10", f.String())
	assert.True(t, f.IsFiltered())
	assert.True(t, f.Contains("q10"))

	sub := NewFilterSet("q10")
	assert.True(t, sub.IsSubsetOf(f))
	assert.True(t, sub.IsProperSubsetOf(f))
	assert.True(t, f.IsSubsetOf(f), "a set is a subset of itself")
	assert.False(t, f.IsProperSubsetOf(f))
	assert.False(t, f.IsSubsetOf(sub))
	assert.True(t, pass.IsSubsetOf(sub))

	assert.True(t, f.Equal(NewFilterSet("lowDP", "q10")))
	assert.False(t, pass.Equal(unfiltered))
}
