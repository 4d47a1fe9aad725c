// Package variant holds the in-memory variant data model: alleles,
// genotypes, the lazily decoded genotypes collection, filter sets, and the
// VariantContext record with its validating Builder.
package variant

import (
	"fmt"
	"strings"
)

const (
	// NoCallString is the textual form of a no-call allele.
	NoCallString = "."
	// SpanningDeletionString is the allele overlapping an upstream deletion.
	SpanningDeletionString = "*"
)

// Allele is an immutable reference, alternate, symbolic or no-call allele.
// Single-base alleles and NoCall are shared instances.
type Allele struct {
	bases    string
	ref      bool
	noCall   bool
	symbolic bool
	spanDel  bool
}

// NoCall is the allele of an uncalled genotype position.
var NoCall = &Allele{noCall: true}

// SpanningDeletion is the "*" allele.
var SpanningDeletion = &Allele{bases: SpanningDeletionString, spanDel: true}

// single-base alleles indexed by [isRef][base]
var baseAlleles [2][256]*Allele

func init() {
	for _, b := range []byte("ACGTN") {
		baseAlleles[0][b] = &Allele{bases: string(b)}
		baseAlleles[1][b] = &Allele{bases: string(b), ref: true}
	}
}

// NewAllele returns the allele for bases. Bases are case-insensitive and
// stored uppercase unless the allele is symbolic.
func NewAllele(bases string, isRef bool) (*Allele, error) {
	switch {
	case bases == "":
		return nil, &ValidationError{Message: "empty alleles are not permitted"}
	case bases == NoCallString:
		if isRef {
			return nil, &ValidationError{Message: "cannot tag a no-call allele as the reference allele"}
		}
		return NoCall, nil
	case bases == SpanningDeletionString:
		if isRef {
			return nil, &ValidationError{Message: "cannot tag a spanning deletion as the reference allele"}
		}
		return SpanningDeletion, nil
	}

	if len(bases) == 1 {
		r := 0
		if isRef {
			r = 1
		}
		if a := baseAlleles[r][upper(bases[0])]; a != nil {
			return a, nil
		}
	}

	if IsSymbolicBases(bases) {
		if isRef {
			return nil, &ValidationError{Message: fmt.Sprintf("cannot tag symbolic allele %s as the reference allele", bases)}
		}
		return &Allele{bases: bases, symbolic: true}, nil
	}

	for i := 0; i < len(bases); i++ {
		switch upper(bases[i]) {
		case 'A', 'C', 'G', 'T', 'N':
		default:
			return nil, &ValidationError{Message: fmt.Sprintf("unexpected base in allele bases %q", bases)}
		}
	}
	return &Allele{bases: strings.ToUpper(bases), ref: isRef}, nil
}

// MustAllele is like NewAllele but panics on error.
func MustAllele(bases string, isRef bool) *Allele {
	a, err := NewAllele(bases, isRef)
	if err != nil {
		panic(err)
	}
	return a
}

func upper(b byte) byte {
	if 'a' <= b && b <= 'z' {
		return b - ('a' - 'A')
	}
	return b
}

// IsSymbolicBases reports whether bases would form a symbolic allele: a
// <TAG>, a breakend in bracket notation, or a single breakend.
func IsSymbolicBases(bases string) bool {
	if len(bases) <= 1 {
		return false
	}
	return bases[0] == '<' || bases[len(bases)-1] == '>' ||
		strings.ContainsAny(bases, "[]") ||
		bases[0] == '.' || bases[len(bases)-1] == '.'
}

// Bases returns the allele sequence, empty for NoCall.
func (a *Allele) Bases() string { return a.bases }

// Len returns the number of bases.
func (a *Allele) Len() int { return len(a.bases) }

func (a *Allele) IsReference() bool        { return a.ref }
func (a *Allele) IsNonReference() bool     { return !a.ref }
func (a *Allele) IsNoCall() bool           { return a.noCall }
func (a *Allele) IsCalled() bool           { return !a.noCall }
func (a *Allele) IsSymbolic() bool         { return a.symbolic }
func (a *Allele) IsSpanningDeletion() bool { return a.spanDel }

// DisplayString renders the allele as it appears in a VCF column.
func (a *Allele) DisplayString() string {
	if a.noCall {
		return NoCallString
	}
	return a.bases
}

// String renders the allele with a trailing * when it is the reference.
func (a *Allele) String() string {
	if a.ref {
		return a.DisplayString() + "*"
	}
	return a.DisplayString()
}

// Equals compares alleles by bases and no-call state, and also by
// reference state unless ignoreRefState is set.
func (a *Allele) Equals(o *Allele, ignoreRefState bool) bool {
	if a == o {
		return true
	}
	if a == nil || o == nil {
		return false
	}
	return a.bases == o.bases && a.noCall == o.noCall && (ignoreRefState || a.ref == o.ref)
}
