package bcf2

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/variant"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	// AllowMissingFieldsInHeader drops INFO, FORMAT and FILTER keys the
	// header does not declare instead of failing. BCF2 refers to keys by
	// dictionary offset, so an undeclared key cannot be written. Each
	// dropped key is logged once.
	AllowMissingFieldsInHeader bool
	// DropGenotypes writes a sites-only file.
	DropGenotypes bool
	// PassThroughGenotypes copies the genotype block of records read by a
	// bcf2.Reader verbatim when they were never decoded and the headers
	// agree on the FORMAT dictionary.
	PassThroughGenotypes bool
}

// Writer writes a BCF2 stream. The output is not BGZF-compressed; wrap
// the destination for that.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	opts   WriterOptions
	logger *zap.Logger
	warned map[string]bool

	header  *header.Header
	strs    *Dictionary
	contigs *Dictionary
	infos   map[string]infoField
	formats map[string]formatField

	// compatible caches, per source header, whether its genotype blocks
	// can be copied.
	compatible map[*header.Header]bool

	site  Encoder
	info  Encoder
	geno  Encoder
	frame [8]byte
}

// NewWriter returns a writer on w. Close closes w when it is an
// io.Closer.
func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	bw := &Writer{
		w:          bufio.NewWriterSize(w, 1<<16),
		opts:       opts,
		logger:     zap.NewNop(),
		warned:     make(map[string]bool),
		compatible: make(map[*header.Header]bool),
	}
	if c, ok := w.(io.Closer); ok {
		bw.closer = c
	}
	return bw
}

// SetLogger sets the logger used for relaxed-mode warnings.
func (w *Writer) SetLogger(l *zap.Logger) { w.logger = l }

// Header returns the header records are encoded against, or nil before
// WriteHeader.
func (w *Writer) Header() *header.Header { return w.header }

// WriteHeader writes the magic and the text header, and builds the
// dictionaries and field encoders used for every record.
func (w *Writer) WriteHeader(h *header.Header) error {
	if w.opts.DropGenotypes && h.HasGenotypingData() {
		h = h.WithoutSamples()
	}
	strs, err := StringDictionary(h)
	if err != nil {
		return err
	}
	contigs, err := ContigDictionary(h)
	if err != nil {
		return err
	}
	w.header, w.strs, w.contigs = h, strs, contigs

	w.infos = make(map[string]infoField)
	for _, l := range h.InfoLines() {
		w.infos[l.ID()] = newInfoField(l)
	}
	w.formats = make(map[string]formatField)
	for _, l := range h.FormatLines() {
		w.formats[l.ID()] = newFormatField(l)
	}

	text := vcf.FormatHeader(h) + "\x00"
	w.w.WriteString(Magic)
	binary.LittleEndian.PutUint32(w.frame[:4], uint32(len(text)))
	w.w.Write(w.frame[:4])
	if _, err := w.w.WriteString(text); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func (w *Writer) missing(kind, key string, vc *variant.VariantContext) error {
	if !w.opts.AllowMissingFieldsInHeader {
		return &header.MissingDeclarationError{Kind: kind, Key: key, Locus: vc.Locus()}
	}
	if id := kind + ":" + key; !w.warned[id] {
		w.warned[id] = true
		w.logger.Warn("dropping key not declared in the header",
			zap.String("kind", kind),
			zap.String("key", key),
			zap.String("locus", vc.Locus()))
	}
	return nil
}

// Write encodes and writes one record.
func (w *Writer) Write(vc *variant.VariantContext) error {
	if w.header == nil {
		return fmt.Errorf("write variant: header not written")
	}
	w.geno.Reset()
	nFormat, err := w.encodeGenotypes(vc)
	if err != nil {
		return fmt.Errorf("encode genotypes at %s: %w", vc.Locus(), err)
	}
	if err := w.encodeSite(vc, nFormat); err != nil {
		return fmt.Errorf("encode site at %s: %w", vc.Locus(), err)
	}

	binary.LittleEndian.PutUint32(w.frame[:4], uint32(w.site.Len()))
	binary.LittleEndian.PutUint32(w.frame[4:], uint32(w.geno.Len()))
	w.w.Write(w.frame[:])
	w.w.Write(w.site.Bytes())
	if _, err := w.w.Write(w.geno.Bytes()); err != nil {
		return fmt.Errorf("write variant: %w", err)
	}
	return nil
}

func (w *Writer) encodeSite(vc *variant.VariantContext, nFormat int) error {
	contig, ok := w.contigs.Offset(vc.Contig())
	if !ok {
		return &header.MissingDeclarationError{Kind: header.KeyContig, Key: vc.Contig(), Locus: vc.Locus()}
	}
	nInfo, err := w.encodeInfo(vc)
	if err != nil {
		return err
	}

	e := &w.site
	e.Reset()
	e.EncodeInt32(int32(contig))
	e.EncodeInt32(int32(vc.Start() - 1))
	e.EncodeInt32(int32(vc.End() - vc.Start() + 1))
	if vc.HasLog10PError() {
		e.EncodeFloat32(vc.PhredScaledQual())
	} else {
		e.EncodeFloat32(variant.MissingFloat)
	}
	e.EncodeUint32(uint32(vc.NumAlleles())<<16 | uint32(nInfo))
	e.EncodeUint32(uint32(nFormat)<<24 | uint32(w.header.NumSamples()))

	if vc.HasID() {
		e.EncodeTypedString(vc.ID())
	} else {
		e.EncodeTypedMissing(Char)
	}
	for _, a := range vc.Alleles() {
		e.EncodeTypedString(a.DisplayString())
	}
	if err := w.encodeFilters(vc); err != nil {
		return err
	}
	e.Write(w.info.Bytes())
	return nil
}

func (w *Writer) encodeFilters(vc *variant.VariantContext) error {
	fs := vc.Filters()
	if !fs.IsEvaluated() {
		w.site.EncodeTypedMissing(Int8)
		return nil
	}
	if fs.IsPass() {
		return w.site.EncodeTypedInts([]int{0})
	}
	offsets := make([]int, 0, fs.Len())
	for _, name := range fs.Names() {
		i, ok := w.strs.Offset(name)
		if !ok || !w.header.HasFilter(name) {
			if err := w.missing(header.KeyFilter, name, vc); err != nil {
				return err
			}
			continue
		}
		offsets = append(offsets, i)
	}
	return w.site.EncodeTypedInts(offsets)
}

// encodeInfo encodes the INFO pairs into w.info and returns their count.
func (w *Writer) encodeInfo(vc *variant.VariantContext) (int, error) {
	e := &w.info
	e.Reset()
	n := 0
	for _, key := range vc.AttributeKeys() {
		v, _ := vc.Attribute(key)
		if b, ok := v.(bool); ok && !b {
			continue
		}
		field, ok := w.infos[key]
		if !ok {
			if err := w.missing(header.KeyInfo, key, vc); err != nil {
				return 0, err
			}
			continue
		}
		offset, _ := w.strs.Offset(key)
		if err := e.EncodeTypedInt(offset); err != nil {
			return 0, err
		}
		if err := field.encode(e, v); err != nil {
			return 0, fmt.Errorf("INFO %s: %w", key, err)
		}
		n++
	}
	return n, nil
}

// encodeGenotypes encodes the genotype block into w.geno and returns the
// number of FORMAT fields.
func (w *Writer) encodeGenotypes(vc *variant.VariantContext) (int, error) {
	if !w.header.HasGenotypingData() {
		return 0, nil
	}
	if p, ok := vc.Genotypes().Payload(); ok && w.opts.PassThroughGenotypes {
		if bp, ok := p.(*bcfGenotypes); ok && w.canCopy(bp, vc) {
			w.geno.Write(bp.raw)
			return bp.nFormat, nil
		}
	}

	keys, err := variant.GenotypeKeys(vc, w.header)
	if err != nil {
		return 0, err
	}
	samples := w.header.SampleNames()
	gs := make([]*variant.Genotype, len(samples))
	ploidy := vc.MaxPloidy(header.DefaultPloidy)
	for i, s := range samples {
		g, ok := vc.Genotype(s)
		if !ok {
			g = variant.NewMissingGenotype(s, ploidy)
		}
		gs[i] = g
	}

	n := 0
	for _, key := range keys {
		field, ok := w.formats[key]
		if !ok {
			if err := w.missing(header.KeyFormat, key, vc); err != nil {
				return 0, err
			}
			continue
		}
		offset, _ := w.strs.Offset(key)
		if err := w.geno.EncodeTypedInt(offset); err != nil {
			return 0, err
		}
		if err := field.encode(&w.geno, vc, gs); err != nil {
			return 0, fmt.Errorf("FORMAT %s: %w", key, err)
		}
		n++
	}
	return n, nil
}

// canCopy reports whether the undecoded genotype block p can be written
// for vc as is.
func (w *Writer) canCopy(p *bcfGenotypes, vc *variant.VariantContext) bool {
	if vc.NumAlleles() != len(p.alleles) {
		return false
	}
	for i, a := range p.alleles {
		if !vc.Allele(i).Equals(a, false) {
			return false
		}
	}
	ok, seen := w.compatible[p.header]
	if !seen {
		ok = w.sameFormatDictionary(p.header, p.strs)
		w.compatible[p.header] = ok
	}
	return ok
}

// sameFormatDictionary reports whether every FORMAT key of src has the
// same declaration and dictionary offset under the output header.
func (w *Writer) sameFormatDictionary(src *header.Header, strs *Dictionary) bool {
	if src == w.header {
		return true
	}
	if !w.header.FormatKeysCompatible(src) {
		return false
	}
	for _, l := range src.FormatLines() {
		theirs, ok := strs.Offset(l.ID())
		if !ok {
			return false
		}
		ours, ok := w.strs.Offset(l.ID())
		if !ok || ours != theirs {
			return false
		}
	}
	return true
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Close flushes and closes the underlying writer.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
