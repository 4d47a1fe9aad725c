package variant

import (
	"fmt"
	"slices"

	"github.com/inodb/vibe-vcf/internal/header"
)

// LazyPayload holds genotype data that has not been decoded yet, such as
// the raw sample columns of a text record or the genotype block of a BCF
// record.
type LazyPayload interface {
	// Decode parses the payload into one genotype per sample, in header
	// sample order.
	Decode() ([]*Genotype, error)
}

// GenotypesContext is the ordered collection of a record's genotypes.
//
// A context is either decoded, holding genotypes, or undecoded, holding a
// LazyPayload for a known number of samples. Force performs the one-time
// transition; every accessor that needs individual genotypes calls it.
// Len and, when the header's samples are sorted, the sample name accessors
// answer without decoding. Decoding is not safe for concurrent use.
//
// Accessors cannot return decode errors; after a failed decode they act
// as if the context were empty and Err reports the failure.
type GenotypesContext struct {
	genotypes []*Genotype

	lazy   LazyPayload
	header *header.Header // sample names of an undecoded context
	nLazy  int
	err    error

	immutable bool

	// rebuilt on demand after mutation
	offsets map[string]int
	sorted  []string
}

// NewGenotypes returns a mutable context holding gs.
func NewGenotypes(gs ...*Genotype) *GenotypesContext {
	return &GenotypesContext{genotypes: slices.Clone(gs)}
}

// NoGenotypes returns an empty immutable context.
func NoGenotypes() *GenotypesContext {
	return &GenotypesContext{immutable: true}
}

// NewLazyGenotypes returns an immutable, undecoded context for the
// samples of h.
func NewLazyGenotypes(p LazyPayload, h *header.Header) *GenotypesContext {
	return &GenotypesContext{lazy: p, header: h, nLazy: h.NumSamples(), immutable: true}
}

// Force decodes a lazy context. It is a no-op on a decoded context and
// returns the same error on every call after a failed decode.
func (c *GenotypesContext) Force() error {
	if c.err != nil || c.lazy == nil {
		return c.err
	}
	gs, err := c.lazy.Decode()
	if err != nil {
		c.err = err
		return err
	}
	if len(gs) != c.nLazy {
		c.err = fmt.Errorf("decode genotypes: got %d genotypes for %d samples", len(gs), c.nLazy)
		return c.err
	}
	c.genotypes = gs
	c.lazy = nil
	c.header = nil
	c.offsets, c.sorted = nil, nil
	return nil
}

// Err returns the error of a failed decode.
func (c *GenotypesContext) Err() error { return c.err }

// IsLazy reports whether the context still holds undecoded data.
func (c *GenotypesContext) IsLazy() bool { return c.lazy != nil && c.err == nil }

// Payload returns the undecoded data of a context that was never decoded,
// and therefore never modified.
func (c *GenotypesContext) Payload() (LazyPayload, bool) {
	if !c.IsLazy() {
		return nil, false
	}
	return c.lazy, true
}

// Len returns the number of samples without decoding.
func (c *GenotypesContext) Len() int {
	if c.IsLazy() {
		return c.nLazy
	}
	return len(c.genotypes)
}

// IsEmpty reports whether there are no genotypes.
func (c *GenotypesContext) IsEmpty() bool { return c.Len() == 0 }

// IsMutable reports whether mutators are allowed.
func (c *GenotypesContext) IsMutable() bool { return !c.immutable }

// Immutable freezes the context and returns it.
func (c *GenotypesContext) Immutable() *GenotypesContext {
	c.immutable = true
	return c
}

func (c *GenotypesContext) decoded() []*Genotype {
	if c.Force() != nil {
		return nil
	}
	return c.genotypes
}

// Get returns the i-th genotype in sample order.
func (c *GenotypesContext) Get(i int) *Genotype {
	gs := c.decoded()
	if i < 0 || i >= len(gs) {
		return nil
	}
	return gs[i]
}

// Genotypes returns the genotypes in sample order.
func (c *GenotypesContext) Genotypes() []*Genotype {
	return slices.Clone(c.decoded())
}

// GetByName returns the genotype of sample.
func (c *GenotypesContext) GetByName(sample string) (*Genotype, bool) {
	gs := c.decoded()
	i, ok := c.sampleOffsets()[sample]
	if !ok || i >= len(gs) {
		return nil, false
	}
	return gs[i], true
}

// ContainsSample reports whether sample has a genotype.
func (c *GenotypesContext) ContainsSample(sample string) bool {
	if c.IsLazy() {
		_, ok := c.header.SampleOffset(sample)
		return ok
	}
	_, ok := c.sampleOffsets()[sample]
	return ok
}

// SampleNames returns the sample names in genotype order.
func (c *GenotypesContext) SampleNames() []string {
	if c.IsLazy() {
		return c.header.SampleNames()
	}
	names := make([]string, len(c.genotypes))
	for i, g := range c.genotypes {
		names[i] = g.sample
	}
	return names
}

// SampleNamesSorted returns the sample names in sorted order.
func (c *GenotypesContext) SampleNamesSorted() []string {
	if c.IsLazy() && c.header.SamplesWereAlreadySorted() {
		return c.header.SampleNames()
	}
	if c.sorted == nil {
		c.sorted = c.SampleNames()
		slices.Sort(c.sorted)
	}
	return slices.Clone(c.sorted)
}

func (c *GenotypesContext) sampleOffsets() map[string]int {
	if c.offsets == nil {
		gs := c.decoded()
		c.offsets = make(map[string]int, len(gs))
		for i, g := range gs {
			c.offsets[g.sample] = i
		}
	}
	return c.offsets
}

// MaxPloidy returns the largest ploidy among the genotypes, or def when
// no genotype has alleles.
func (c *GenotypesContext) MaxPloidy(def int) int {
	m := 0
	for _, g := range c.decoded() {
		m = max(m, g.Ploidy())
	}
	if m == 0 {
		return def
	}
	return m
}

func (c *GenotypesContext) mutate() error {
	if c.immutable {
		return ErrImmutable
	}
	if err := c.Force(); err != nil {
		return err
	}
	c.offsets, c.sorted = nil, nil
	return nil
}

// Add appends a genotype.
func (c *GenotypesContext) Add(g *Genotype) error {
	if err := c.mutate(); err != nil {
		return err
	}
	c.genotypes = append(c.genotypes, g)
	return nil
}

// Set replaces the i-th genotype.
func (c *GenotypesContext) Set(i int, g *Genotype) error {
	if err := c.mutate(); err != nil {
		return err
	}
	if i < 0 || i >= len(c.genotypes) {
		return fmt.Errorf("set genotype: index %d out of range [0,%d)", i, len(c.genotypes))
	}
	c.genotypes[i] = g
	return nil
}

// Replace swaps in g for the genotype of the same sample, or appends it.
func (c *GenotypesContext) Replace(g *Genotype) error {
	if c.immutable {
		return ErrImmutable
	}
	if i, ok := c.sampleOffsets()[g.sample]; ok {
		return c.Set(i, g)
	}
	return c.Add(g)
}

// Remove drops the genotype of sample and reports whether it was present.
func (c *GenotypesContext) Remove(sample string) (bool, error) {
	if c.immutable {
		return false, ErrImmutable
	}
	i, ok := c.sampleOffsets()[sample]
	if !ok {
		return false, nil
	}
	if err := c.mutate(); err != nil {
		return false, err
	}
	c.genotypes = slices.Delete(c.genotypes, i, i+1)
	return true, nil
}

// Subset returns a mutable context holding the genotypes of the named
// samples, in the order given. Unknown samples are skipped.
func (c *GenotypesContext) Subset(samples ...string) (*GenotypesContext, error) {
	if err := c.Force(); err != nil {
		return nil, err
	}
	out := &GenotypesContext{}
	for _, s := range samples {
		if g, ok := c.GetByName(s); ok {
			out.genotypes = append(out.genotypes, g)
		}
	}
	return out, nil
}

// Copy returns a mutable, decoded copy.
func (c *GenotypesContext) Copy() (*GenotypesContext, error) {
	if err := c.Force(); err != nil {
		return nil, err
	}
	return NewGenotypes(c.genotypes...), nil
}
