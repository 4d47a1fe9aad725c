package variant

import (
	"errors"
	"fmt"
)

// ErrImmutable is returned by mutators of a GenotypesContext that has been
// frozen.
var ErrImmutable = errors.New("genotypes context is immutable")

// ValidationError reports a violated record invariant, detected when an
// allele or genotype is created or when a Builder makes a VariantContext.
type ValidationError struct {
	Locus   string // contig:start, empty when not yet known
	Message string
}

func (e *ValidationError) Error() string {
	if e.Locus == "" {
		return "invalid variant: " + e.Message
	}
	return fmt.Sprintf("invalid variant at %s: %s", e.Locus, e.Message)
}

// DecodeError reports a value that cannot be converted to the type or
// count its header declaration requires.
type DecodeError struct {
	Field string
	Value string
	Locus string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s=%q at %s: %v", e.Field, e.Value, e.Locus, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
