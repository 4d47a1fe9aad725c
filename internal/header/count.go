package header

// DefaultPloidy is assumed for G-numbered fields when a record has no
// called genotypes.
const DefaultPloidy = 2

// CountContext is the record-level information needed to resolve a
// Number against a record.
type CountContext interface {
	// NumAlleles counts the reference plus all alternate alleles.
	NumAlleles() int
	// MaxPloidy returns the largest genotype ploidy, or def when there
	// are no genotypes.
	MaxPloidy(def int) int
}

// Count returns how many values the field holds for the record described
// by ctx. Unbounded fields return -1; the caller must use the length of
// the value itself.
func (l *CompoundLine) Count(ctx CountContext) int {
	switch l.number.Kind {
	case PerAlt:
		return ctx.NumAlleles() - 1
	case PerAllele:
		return ctx.NumAlleles()
	case PerGenotype:
		return NumLikelihoods(ctx.NumAlleles(), ctx.MaxPloidy(DefaultPloidy))
	case Unbounded:
		return -1
	}
	return l.number.N
}

// NumLikelihoods returns the number of unordered genotypes of the given
// ploidy that can be formed from nAlleles alleles: C(nAlleles+ploidy-1,
// ploidy).
func NumLikelihoods(nAlleles, ploidy int) int {
	if nAlleles <= 0 || ploidy <= 0 {
		return 0
	}
	// Multiply before dividing so every intermediate stays integral.
	n := 1
	for i := 1; i <= ploidy; i++ {
		n = n * (nAlleles - 1 + i) / i
	}
	return n
}
