package header

import "fmt"

// LineError reports a malformed header line.
type LineError struct {
	Line    string
	Message string
}

func (e *LineError) Error() string {
	return fmt.Sprintf("invalid header line %q: %s", e.Line, e.Message)
}

// MissingDeclarationError is returned by the writers when a record uses
// an INFO, FORMAT or FILTER key that the header does not declare.
type MissingDeclarationError struct {
	Kind  string // INFO, FORMAT, FILTER or contig
	Key   string
	Locus string
}

func (e *MissingDeclarationError) Error() string {
	return fmt.Sprintf("key %s found in %s field at %s is not declared in the header", e.Key, e.Kind, e.Locus)
}

// SampleError reports a problem with the sample columns of a header.
type SampleError struct {
	Sample  string
	Message string
}

func (e *SampleError) Error() string {
	return fmt.Sprintf("sample %q: %s", e.Sample, e.Message)
}
