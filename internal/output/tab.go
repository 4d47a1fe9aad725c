// Package output provides per-site summary output formatters.
package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/variant"
)

// TabWriter writes one tab-delimited summary row per site.
type TabWriter struct {
	w       *bufio.Writer
	closer  io.Closer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer. Close closes w when it
// is an io.Closer.
func NewTabWriter(w io.Writer) *TabWriter {
	tw := &TabWriter{
		w: bufio.NewWriter(w),
		columns: []string{
			"#CHROM",
			"POS",
			"ID",
			"REF",
			"ALT",
			"QUAL",
			"FILTER",
			"TYPE",
			"N_CALLED",
			"N_HET",
			"N_HOM_VAR",
		},
	}
	if c, ok := w.(io.Closer); ok {
		tw.closer = c
	}
	return tw
}

// WriteHeader writes the column line. The VCF header itself is not
// summarized.
func (tw *TabWriter) WriteHeader(*header.Header) error {
	_, err := tw.w.WriteString(strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single site.
func (tw *TabWriter) Write(vc *variant.VariantContext) error {
	if err := vc.Genotypes().Force(); err != nil {
		return fmt.Errorf("decode genotypes at %s: %w", vc.Locus(), err)
	}

	alt := variant.MissingValue
	if vc.NumAlleles() > 1 {
		alts := make([]string, 0, vc.NumAlleles()-1)
		for _, a := range vc.AlternateAlleles() {
			alts = append(alts, a.DisplayString())
		}
		alt = strings.Join(alts, ",")
	}

	qual := variant.MissingValue
	if vc.HasLog10PError() {
		qual = strings.TrimSuffix(strconv.FormatFloat(vc.PhredScaledQual(), 'f', 2, 64), ".00")
	}

	het := vc.GenotypeTypeCount(variant.GenotypeHet)
	homVar := vc.GenotypeTypeCount(variant.GenotypeHomVar)
	called := het + homVar + vc.GenotypeTypeCount(variant.GenotypeHomRef)

	values := []string{
		vc.Contig(),
		strconv.Itoa(vc.Start()),
		vc.ID(),
		vc.Reference().DisplayString(),
		alt,
		qual,
		vc.Filters().String(),
		vc.Type().String(),
		strconv.Itoa(called),
		strconv.Itoa(het),
		strconv.Itoa(homVar),
	}

	_, err := tw.w.WriteString(strings.Join(values, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// Close flushes and closes the underlying writer.
func (tw *TabWriter) Close() error {
	if err := tw.w.Flush(); err != nil {
		return err
	}
	if tw.closer != nil {
		return tw.closer.Close()
	}
	return nil
}
