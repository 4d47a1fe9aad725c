package variant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-vcf/internal/header"
)

// countingPayload records how often it is decoded.
type countingPayload struct {
	genotypes []*Genotype
	err       error
	calls     int
}

func (p *countingPayload) Decode() ([]*Genotype, error) {
	p.calls++
	return p.genotypes, p.err
}

func samplesHeader(t *testing.T, samples ...string) *header.Header {
	t.Helper()
	h, err := header.New(nil, samples)
	require.NoError(t, err)
	return h
}

func TestLazyGenotypes_DecodeOnce(t *testing.T) {
	h := samplesHeader(t, "A", "B")
	p := &countingPayload{genotypes: []*Genotype{
		NewGenotypeBuilder("A", refA, altT).MustMake(),
		NewGenotypeBuilder("B", refA, refA).MustMake(),
	}}
	gc := NewLazyGenotypes(p, h)

	assert.True(t, gc.IsLazy())
	assert.Equal(t, 2, gc.Len())
	assert.True(t, gc.ContainsSample("B"))
	assert.Equal(t, []string{"A", "B"}, gc.SampleNamesSorted())
	_, ok := gc.Payload()
	assert.True(t, ok)
	assert.Equal(t, 0, p.calls, "count and name queries do not decode")

	g, ok := gc.GetByName("B")
	require.True(t, ok)
	assert.True(t, g.IsHomRef())
	assert.Equal(t, 1, p.calls)
	assert.False(t, gc.IsLazy())

	_, ok = gc.Payload()
	assert.False(t, ok)
	require.NoError(t, gc.Force())
	assert.Equal(t, 1, p.calls)
}

func TestLazyGenotypes_Error(t *testing.T) {
	h := samplesHeader(t, "A")
	boom := errors.New("boom")
	p := &countingPayload{err: boom}
	gc := NewLazyGenotypes(p, h)

	assert.ErrorIs(t, gc.Force(), boom)
	assert.Nil(t, gc.Get(0))
	assert.ErrorIs(t, gc.Err(), boom)
	assert.Equal(t, 0, gc.Len())
	assert.ErrorIs(t, gc.Force(), boom)
	assert.Equal(t, 1, p.calls)
}

func TestLazyGenotypes_WrongSampleCount(t *testing.T) {
	h := samplesHeader(t, "A", "B")
	gc := NewLazyGenotypes(&countingPayload{genotypes: []*Genotype{NewMissingGenotype("A", 2)}}, h)
	assert.Error(t, gc.Force())
}

func TestGenotypesContext_Mutation(t *testing.T) {
	gc := NewGenotypes(
		NewGenotypeBuilder("B", refA, refA).MustMake(),
		NewGenotypeBuilder("A", refA, altT).MustMake(),
	)
	assert.Equal(t, []string{"A", "B"}, gc.SampleNamesSorted())

	require.NoError(t, gc.Add(NewGenotypeBuilder("C", altT).MustMake()))
	assert.Equal(t, []string{"A", "B", "C"}, gc.SampleNamesSorted(), "sorted names rebuilt after mutation")
	assert.Equal(t, 2, gc.MaxPloidy(9))

	require.NoError(t, gc.Replace(NewGenotypeBuilder("A", altT, altT).MustMake()))
	g, ok := gc.GetByName("A")
	require.True(t, ok)
	assert.True(t, g.IsHomVar())

	removed, err := gc.Remove("B")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, []string{"A", "C"}, gc.SampleNames())
	_, ok = gc.GetByName("B")
	assert.False(t, ok)

	gc.Immutable()
	assert.ErrorIs(t, gc.Add(NewMissingGenotype("D", 2)), ErrImmutable)
	assert.ErrorIs(t, gc.Set(0, NewMissingGenotype("D", 2)), ErrImmutable)
	_, err = gc.Remove("A")
	assert.ErrorIs(t, err, ErrImmutable)

	cp, err := gc.Copy()
	require.NoError(t, err)
	assert.NoError(t, cp.Add(NewMissingGenotype("D", 2)))
	assert.Equal(t, 2, gc.Len())
}

func TestGenotypesContext_MaxPloidyDefault(t *testing.T) {
	assert.Equal(t, 2, NoGenotypes().MaxPloidy(2))
	gc := NewGenotypes(NewGenotypeBuilder("A").MustMake())
	assert.Equal(t, 3, gc.MaxPloidy(3))
}

func TestGenotypesContext_Subset(t *testing.T) {
	gc := NewGenotypes(
		NewGenotypeBuilder("A", refA).MustMake(),
		NewGenotypeBuilder("B", altT).MustMake(),
	)
	sub, err := gc.Subset("B", "Z")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, sub.SampleNames())
}
