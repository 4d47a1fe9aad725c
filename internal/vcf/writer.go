package vcf

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/variant"
)

// WriterOptions configures an Encoder or Writer.
type WriterOptions struct {
	// AllowMissingFieldsInHeader writes INFO, FORMAT and FILTER keys the
	// header does not declare instead of failing. Each key is logged once.
	AllowMissingFieldsInHeader bool
	// DropGenotypes writes a sites-only file.
	DropGenotypes bool
}

// FormatHeader renders h as header text: the version line, the metadata
// lines in sorted order and the #CHROM line, each newline-terminated.
func FormatHeader(h *header.Header) string {
	var b strings.Builder
	b.WriteString("##" + header.KeyFileFormat + "=" + OutputVersion + "\n")
	for _, l := range h.SortedLines() {
		b.WriteString("##")
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	b.WriteByte('#')
	b.WriteString(h.ColumnLine())
	b.WriteByte('\n')
	return b.String()
}

// Encoder renders variant contexts as VCF record lines.
type Encoder struct {
	header *header.Header
	opts   WriterOptions
	logger *zap.Logger
	warned map[string]bool
	buf    []byte
	attrs  []string

	// declared caches, per raw FORMAT column, whether all its keys are
	// declared in header.
	declared map[string]bool
}

// NewEncoder returns an encoder for records described by h.
func NewEncoder(h *header.Header, opts WriterOptions) *Encoder {
	if opts.DropGenotypes && h.HasGenotypingData() {
		h = h.WithoutSamples()
	}
	return &Encoder{
		header: h,
		opts:   opts,
		logger:   zap.NewNop(),
		warned:   make(map[string]bool),
		declared: make(map[string]bool),
	}
}

// SetLogger sets the logger used for relaxed-mode warnings.
func (e *Encoder) SetLogger(l *zap.Logger) { e.logger = l }

// Header returns the header records are encoded against.
func (e *Encoder) Header() *header.Header { return e.header }

// Encode returns the record line for vc without a trailing newline.
func (e *Encoder) Encode(vc *variant.VariantContext) (string, error) {
	buf, err := e.AppendRecord(e.buf[:0], vc)
	e.buf = buf
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// AppendRecord appends the record line for vc to dst.
func (e *Encoder) AppendRecord(dst []byte, vc *variant.VariantContext) ([]byte, error) {
	dst = append(dst, vc.Contig()...)
	dst = append(dst, '\t')
	dst = strconv.AppendInt(dst, int64(vc.Start()), 10)
	dst = append(dst, '\t')
	dst = append(dst, vc.ID()...)
	dst = append(dst, '\t')
	dst = append(dst, vc.Reference().DisplayString()...)
	dst = append(dst, '\t')
	if vc.NumAlleles() > 1 {
		for i := 1; i < vc.NumAlleles(); i++ {
			if i > 1 {
				dst = append(dst, ',')
			}
			dst = append(dst, vc.Allele(i).DisplayString()...)
		}
	} else {
		dst = append(dst, variant.MissingValue...)
	}
	dst = append(dst, '\t')
	if vc.HasLog10PError() {
		dst = append(dst, formatQual(vc.PhredScaledQual())...)
	} else {
		dst = append(dst, variant.MissingValue...)
	}
	dst = append(dst, '\t')

	filters, err := e.filterString(vc)
	if err != nil {
		return dst, err
	}
	dst = append(dst, filters...)
	dst = append(dst, '\t')

	if dst, err = e.appendInfo(dst, vc); err != nil {
		return dst, err
	}
	if e.header.HasGenotypingData() {
		if dst, err = e.appendGenotypes(dst, vc); err != nil {
			return dst, err
		}
	}
	return dst, nil
}

func (e *Encoder) missing(kind, key string, vc *variant.VariantContext) error {
	if !e.opts.AllowMissingFieldsInHeader {
		return &header.MissingDeclarationError{Kind: kind, Key: key, Locus: vc.Locus()}
	}
	if id := kind + ":" + key; !e.warned[id] {
		e.warned[id] = true
		e.logger.Warn("writing key not declared in the header",
			zap.String("kind", kind),
			zap.String("key", key),
			zap.String("locus", vc.Locus()))
	}
	return nil
}

func (e *Encoder) filterString(vc *variant.VariantContext) (string, error) {
	fs := vc.Filters()
	if !fs.IsEvaluated() {
		return variant.MissingValue, nil
	}
	if fs.IsPass() {
		return header.PassFilter, nil
	}
	for _, name := range fs.Names() {
		if !e.header.HasFilter(name) {
			if err := e.missing(header.KeyFilter, name, vc); err != nil {
				return "", err
			}
		}
	}
	return fs.String(), nil
}

func (e *Encoder) appendInfo(dst []byte, vc *variant.VariantContext) ([]byte, error) {
	wrote := false
	for _, key := range vc.AttributeKeys() {
		line := e.header.Info(key)
		if line == nil {
			if err := e.missing(header.KeyInfo, key, vc); err != nil {
				return dst, err
			}
		}
		v, _ := vc.Attribute(key)
		s, ok := FormatValue(v)
		if !ok {
			continue
		}
		if wrote {
			dst = append(dst, ';')
		}
		wrote = true
		dst = append(dst, key...)
		if s != "" && (line == nil || line.Number() != header.FixedNumber(0)) {
			dst = append(dst, '=')
			dst = append(dst, s...)
		}
	}
	if !wrote {
		dst = append(dst, variant.MissingValue...)
	}
	return dst, nil
}

func (e *Encoder) appendGenotypes(dst []byte, vc *variant.VariantContext) ([]byte, error) {
	gc := vc.Genotypes()
	if p, ok := gc.Payload(); ok {
		if tg, ok := p.(*textGenotypes); ok && tg.reusableUnder(e.header, vc) && e.formatDeclared(tg.formatColumn()) {
			dst = append(dst, '\t')
			return append(dst, tg.raw...), nil
		}
	}
	if err := gc.Force(); err != nil {
		return dst, err
	}

	keys, err := variant.GenotypeKeys(vc, e.header)
	if err != nil {
		return dst, err
	}
	if len(keys) == 0 {
		return dst, nil
	}
	for _, k := range keys {
		if !e.header.HasFormat(k) {
			if err := e.missing(header.KeyFormat, k, vc); err != nil {
				return dst, err
			}
		}
	}
	dst = append(dst, '\t')
	dst = append(dst, strings.Join(keys, ":")...)

	hasGT := keys[0] == header.GenotypeKey
	ploidy := vc.MaxPloidy(header.DefaultPloidy)
	for _, sample := range e.header.SampleNames() {
		dst = append(dst, '\t')
		g, ok := vc.Genotype(sample)
		if !ok {
			g = variant.NewMissingGenotype(sample, ploidy)
		}
		mark := len(dst)
		if hasGT {
			if !g.IsAvailable() {
				return dst, fmt.Errorf("encode genotypes at %s: GT of sample %s is missing while other samples have one", vc.Locus(), sample)
			}
			if dst, err = appendGT(dst, vc, g); err != nil {
				return dst, err
			}
		}
		attrs := e.sampleValues(vc, g, keys)
		for len(attrs) > 0 && isMissingValue(attrs[len(attrs)-1]) {
			attrs = attrs[:len(attrs)-1]
		}
		for i, a := range attrs {
			if i > 0 || hasGT {
				dst = append(dst, ':')
			}
			dst = append(dst, a...)
		}
		if len(dst) == mark {
			dst = append(dst, variant.MissingValue...)
		}
	}
	return dst, nil
}

// formatDeclared reports whether every key of a raw FORMAT column is
// declared in the header. Undeclared keys send the record through the
// decoding path, which rejects or warns about them.
func (e *Encoder) formatDeclared(format string) bool {
	ok, seen := e.declared[format]
	if seen {
		return ok
	}
	ok = true
	for key := range strings.SplitSeq(format, ":") {
		if !e.header.HasFormat(key) {
			ok = false
			break
		}
	}
	e.declared[format] = ok
	return ok
}

// sampleValues formats every key but GT for one genotype.
func (e *Encoder) sampleValues(vc *variant.VariantContext, g *variant.Genotype, keys []string) []string {
	attrs := e.attrs[:0]
	for _, k := range keys {
		switch k {
		case header.GenotypeKey:
			continue
		case header.GenotypeFilterKey:
			if g.IsFiltered() {
				attrs = append(attrs, g.Filter())
			} else {
				attrs = append(attrs, header.PassFilter)
			}
		case header.GenotypeQualityKey:
			attrs = append(attrs, optionalInt(g.HasGQ(), g.GQ()))
		case header.DepthKey:
			attrs = append(attrs, optionalInt(g.HasDP(), g.DP()))
		case header.AlleleDepthsKey:
			attrs = append(attrs, optionalInts(g.HasAD(), g.AD()))
		case header.PhredLikelihoodsKey:
			attrs = append(attrs, optionalInts(g.HasPL(), g.PL()))
		default:
			v, ok := g.ExtendedAttribute(k)
			if !ok {
				v = variant.MissingValue
				if line := e.header.Format(k); line != nil {
					if n := line.Count(vc); n > 1 {
						v = strings.Repeat(variant.MissingValue+",", n-1) + variant.MissingValue
					}
				}
			}
			if s, ok := FormatValue(v); ok {
				attrs = append(attrs, s)
			}
		}
	}
	e.attrs = attrs
	return attrs
}

func appendGT(dst []byte, vc *variant.VariantContext, g *variant.Genotype) ([]byte, error) {
	sep := byte('/')
	if g.IsPhased() {
		sep = '|'
	}
	for i := range g.Ploidy() {
		if i > 0 {
			dst = append(dst, sep)
		}
		a := g.Allele(i)
		if a.IsNoCall() {
			dst = append(dst, variant.NoCallString...)
			continue
		}
		idx := vc.AlleleIndex(a)
		if idx < 0 {
			return dst, fmt.Errorf("encode genotypes at %s: allele %s of sample %s is not an allele of the record", vc.Locus(), a, g.SampleName())
		}
		dst = strconv.AppendInt(dst, int64(idx), 10)
	}
	return dst, nil
}

// isMissingValue reports whether s holds only missing values, such as
// "." or ".,.".
func isMissingValue(s string) bool {
	return strings.Count(s, variant.MissingValue)+strings.Count(s, ",") == len(s)
}

func optionalInt(ok bool, v int) string {
	if !ok {
		return variant.MissingValue
	}
	return strconv.Itoa(v)
}

func optionalInts(ok bool, vs []int) string {
	if !ok || len(vs) == 0 {
		return variant.MissingValue
	}
	s, _ := FormatValue(vs)
	return s
}

// FormatValue renders an attribute value as VCF text. It returns false
// for a false flag, which is not written at all.
func FormatValue(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return variant.MissingValue, true
	case bool:
		return "", x
	case string:
		if x == "" {
			return variant.MissingValue, true
		}
		return x, true
	case int:
		if x == variant.MissingInt {
			return variant.MissingValue, true
		}
		return strconv.Itoa(x), true
	case float64:
		return FormatDouble(x), true
	case []string:
		return joinValues(x), true
	case []int:
		return joinValues(x), true
	case []float64:
		return joinValues(x), true
	case []any:
		return joinValues(x), true
	}
	return fmt.Sprint(v), true
}

func joinValues[T any](vs []T) string {
	if len(vs) == 0 {
		return variant.MissingValue
	}
	var b strings.Builder
	for i, v := range vs {
		if i > 0 {
			b.WriteByte(',')
		}
		s, _ := FormatValue(v)
		b.WriteString(s)
	}
	return b.String()
}

// FormatDouble renders a float the way VCF tools conventionally do:
// two decimals from 1 up, three below, scientific notation below 0.01.
func FormatDouble(d float64) string {
	switch {
	case variant.IsMissingFloat(d):
		return variant.MissingValue
	case math.IsNaN(d):
		return "NaN"
	case d >= 1:
		return strconv.FormatFloat(d, 'f', 2, 64)
	case d >= 0.01:
		return strconv.FormatFloat(d, 'f', 3, 64)
	case math.Abs(d) >= 1e-20:
		return strconv.FormatFloat(d, 'e', 3, 64)
	}
	return "0.00"
}

func formatQual(q float64) string {
	return strings.TrimSuffix(strconv.FormatFloat(q, 'f', 2, 64), ".00")
}

// Writer writes a VCF stream.
type Writer struct {
	w      *bufio.Writer
	closer io.Closer
	opts   WriterOptions
	logger *zap.Logger
	enc    *Encoder
	buf    []byte
}

// NewWriter returns a writer on w. Close closes w when it is an
// io.Closer.
func NewWriter(w io.Writer, opts WriterOptions) *Writer {
	vw := &Writer{
		w:      bufio.NewWriterSize(w, 1<<16),
		opts:   opts,
		logger: zap.NewNop(),
	}
	if c, ok := w.(io.Closer); ok {
		vw.closer = c
	}
	return vw
}

// SetLogger sets the logger used for relaxed-mode warnings.
func (w *Writer) SetLogger(l *zap.Logger) {
	w.logger = l
	if w.enc != nil {
		w.enc.SetLogger(l)
	}
}

// WriteHeader writes the header and fixes the header records are
// checked against.
func (w *Writer) WriteHeader(h *header.Header) error {
	w.enc = NewEncoder(h, w.opts)
	w.enc.SetLogger(w.logger)
	if _, err := w.w.WriteString(FormatHeader(w.enc.Header())); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Write writes one record.
func (w *Writer) Write(vc *variant.VariantContext) error {
	if w.enc == nil {
		return fmt.Errorf("write variant: header not written")
	}
	buf, err := w.enc.AppendRecord(w.buf[:0], vc)
	w.buf = buf
	if err != nil {
		return err
	}
	w.buf = append(w.buf, '\n')
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("write variant: %w", err)
	}
	return nil
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
