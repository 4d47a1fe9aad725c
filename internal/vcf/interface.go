package vcf

import (
	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/variant"
)

// VariantReader is the interface for readers that produce variant
// contexts. Both the VCF and BCF readers implement this interface.
type VariantReader interface {
	// Header returns the header of the stream.
	Header() *header.Header

	// Next reads the next variant.
	// Returns nil, nil when there are no more variants.
	Next() (*variant.VariantContext, error)

	// Close closes the reader and releases resources.
	Close() error

	// LineNumber returns the current line (VCF) or record (BCF) number.
	LineNumber() int
}

// VariantWriter is the interface for writers that serialize variant
// contexts. Both the VCF and BCF writers implement this interface.
type VariantWriter interface {
	// WriteHeader writes the header. It must be called before Write.
	WriteHeader(h *header.Header) error

	// Write writes one variant.
	Write(vc *variant.VariantContext) error

	// Close flushes buffered output and releases resources.
	Close() error
}
