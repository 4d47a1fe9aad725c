// Package vcf reads and writes the VCF text format.
package vcf

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/intern"
	"github.com/inodb/vibe-vcf/internal/split"
	"github.com/inodb/vibe-vcf/internal/variant"
)

// OutputVersion is the version written by every writer, whatever the
// version of the input.
const OutputVersion = "VCFv4.2"

// DefaultAlleleWarnLength is the allele length above which the codec
// logs a warning unless Options says otherwise.
const DefaultAlleleWarnLength = 1 << 20

var supportedVersions = map[string]bool{
	"VCFv4.0": true,
	"VCFv4.1": true,
	"VCFv4.2": true,
	"VCFv4.3": true,
}

const (
	missingQuality  = -1.0
	qualityEpsilon  = 0.00005
	legacyPassToken = "0"
)

// Options configures a Codec or Reader.
type Options struct {
	// AlleleWarnLength is the allele length above which a warning is
	// logged. Zero selects DefaultAlleleWarnLength, negative disables it.
	AlleleWarnLength int
	// SkipHeaderRepair keeps nonstandard declarations of reserved keys
	// as written instead of replacing them with the standard ones.
	SkipHeaderRepair bool
	// Lenient reads a bare INFO key declared as a non-flag as a missing
	// value, and keeps undeclared keys raw when FullyDecode is set.
	Lenient bool
	// FullyDecode converts attribute values to their declared types.
	FullyDecode bool
	// Interner deduplicates contig names and field keys. A private pool
	// is created when nil.
	Interner *intern.Pool
	// Logger receives warnings. Nil discards them.
	Logger *zap.Logger
}

// LineSource yields successive lines without their terminators and
// returns io.EOF when the input is exhausted.
type LineSource interface {
	ReadLine() (string, error)
}

type headerState int

const (
	awaitingFormatLine headerState = iota
	awaitingMoreMetadataOrColumns
	headerDone
)

// Codec turns header lines and record lines into a Header and variant
// contexts. A Codec is not safe for concurrent use; run one per goroutine.
type Codec struct {
	opts     Options
	logger   *zap.Logger
	interner *intern.Pool
	warnLen  int

	state      headerState
	version    string
	lines      []header.Line
	header     *header.Header
	lineNumber int

	filters *filterCache
	gts     *gtCache
	fields  [header.NumFixedColumns + 1]string
	info    *split.Splitter
	warned  map[string]bool
}

// NewCodec returns a codec that expects header lines first.
func NewCodec(opts Options) *Codec {
	c := &Codec{
		opts:     opts,
		logger:   opts.Logger,
		interner: opts.Interner,
		warnLen:  opts.AlleleWarnLength,
		filters:  &filterCache{},
		gts:      &gtCache{},
		info:     split.NewSplitter(16),
		warned:   make(map[string]bool),
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.interner == nil {
		c.interner = intern.New()
	}
	if c.warnLen == 0 {
		c.warnLen = DefaultAlleleWarnLength
	}
	return c
}

// NewCodecForHeader returns a codec that decodes records against an
// already parsed header.
func NewCodecForHeader(h *header.Header, opts Options) *Codec {
	c := NewCodec(opts)
	c.header = h
	c.version = h.Version()
	c.state = headerDone
	return c
}

// SetLogger sets the logger used for warnings.
func (c *Codec) SetLogger(l *zap.Logger) { c.logger = l }

// Header returns the parsed header, or nil before ReadHeader completes.
func (c *Codec) Header() *header.Header { return c.header }

// Version returns the declared format version.
func (c *Codec) Version() string { return c.version }

// LineNumber returns the number of the last line consumed.
func (c *Codec) LineNumber() int { return c.lineNumber }

func (c *Codec) fail(msg string) *ParseError {
	return &ParseError{Line: c.lineNumber, Message: msg}
}

func (c *Codec) wrap(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	return &ParseError{Line: c.lineNumber, Message: err.Error(), Err: err}
}

// ReadHeader consumes header lines from src up to and including the
// #CHROM line.
func (c *Codec) ReadHeader(src LineSource) (*header.Header, error) {
	for c.state != headerDone {
		line, err := src.ReadLine()
		if err == io.EOF {
			return nil, c.fail("no #CHROM header line found")
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		c.lineNumber++
		if err := c.headerLine(line); err != nil {
			return nil, err
		}
	}
	return c.header, nil
}

func (c *Codec) headerLine(line string) error {
	switch {
	case strings.HasPrefix(line, "##"):
		return c.metadataLine(line[2:])
	case strings.HasPrefix(line, "#"):
		if c.state == awaitingFormatLine {
			return c.fail("no ##fileformat line declaring the VCF version before the #CHROM line")
		}
		return c.columnLine(line[1:])
	}
	return c.fail("expected #CHROM header line")
}

func (c *Codec) metadataLine(text string) error {
	key, value, ok := strings.Cut(text, "=")
	if !ok {
		c.lines = append(c.lines, header.NewGenericLine(text, ""))
		return nil
	}
	if key == header.KeyFileFormat || key == header.KeyFormatV3 {
		if !supportedVersions[value] {
			return c.fail(fmt.Sprintf("unsupported version %q", value))
		}
		c.version = value
		c.state = awaitingMoreMetadataOrColumns
		return nil
	}
	line, err := header.ParseLine(key, value)
	if err != nil {
		return c.wrap(err)
	}
	c.lines = append(c.lines, line)
	return nil
}

func (c *Codec) columnLine(text string) error {
	cols := strings.Split(text, "\t")
	if len(cols) < header.NumFixedColumns {
		return c.fail(fmt.Sprintf("expected %d fixed columns in the #CHROM line, found %d", header.NumFixedColumns, len(cols)))
	}
	for i, name := range header.FixedColumns {
		if cols[i] != name {
			return c.fail(fmt.Sprintf("column %d is %q, expected %q", i+1, cols[i], name))
		}
	}
	var samples []string
	if len(cols) > header.NumFixedColumns {
		if cols[header.NumFixedColumns] != header.FormatColumn {
			return c.fail(fmt.Sprintf("expected FORMAT after INFO, found %q", cols[header.NumFixedColumns]))
		}
		samples = cols[header.NumFixedColumns+1:]
		if len(samples) == 0 {
			return c.fail("FORMAT column without sample columns")
		}
	}

	h, err := header.New(c.lines, samples)
	if err != nil {
		return c.wrap(err)
	}
	h.SetVersion(c.version)
	if !c.opts.SkipHeaderRepair {
		for _, l := range header.Repair(h) {
			c.logger.Info("repaired header line", zap.String("line", l))
		}
	}
	c.header = h
	c.lines = nil
	c.state = headerDone
	return nil
}

// Decode parses one record line. The genotype columns stay undecoded
// until first accessed, unless the header's samples are out of order.
func (c *Codec) Decode(line string) (*variant.VariantContext, error) {
	c.lineNumber++
	return c.decode(line)
}

// decodeAt decodes a line whose number is known to the caller.
func (c *Codec) decodeAt(line string, lineNumber int) (*variant.VariantContext, error) {
	c.lineNumber = lineNumber
	return c.decode(line)
}

func (c *Codec) decode(line string) (*variant.VariantContext, error) {
	if c.header == nil {
		return nil, errors.New("vcf: decode called before the header was read")
	}
	want := header.NumFixedColumns
	if c.header.HasGenotypingData() {
		want++
	}
	n := split.Bounded(line, '\t', c.fields[:], split.Condense)
	if n != want {
		return nil, c.fail(fmt.Sprintf("the line has %d tab-delimited fields, the header declares %d",
			split.Count(line, '\t'), c.header.ColumnCount()))
	}
	f := c.fields[:n]

	contig := c.interner.Intern(f[0])
	pos, err := strconv.Atoi(f[1])
	if err != nil {
		return nil, c.fail(fmt.Sprintf("invalid position: %s", f[1]))
	}
	if f[2] == "" {
		return nil, c.fail("the ID field cannot be empty, use . for a missing ID")
	}
	ref := c.interner.Intern(strings.ToUpper(f[3]))
	alts := c.interner.Intern(f[4])

	qual, err := parseQual(f[5])
	if err != nil {
		return nil, c.wrap(err)
	}
	filters, err := c.filters.parse(f[6])
	if err != nil {
		return nil, c.wrap(err)
	}
	attrs, err := c.parseInfo(f[7])
	if err != nil {
		return nil, err
	}

	stop := pos + len(ref) - 1
	if v, ok := attrs[header.EndKey]; ok {
		s, _ := v.(string)
		end, err := strconv.Atoi(s)
		if err != nil {
			return nil, c.fail(fmt.Sprintf("the END value %v in the INFO field is not valid", v))
		}
		stop = end
	}

	alleles, err := c.parseAlleles(ref, alts)
	if err != nil {
		return nil, err
	}

	b := variant.NewBuilder(contig, pos, stop, alleles...).
		ID(f[2]).
		Log10PError(qual).
		Filters(filters).
		Attributes(attrs)

	if n > header.NumFixedColumns {
		p := &textGenotypes{
			raw:       f[header.NumFixedColumns],
			header:    c.header,
			alleles:   alleles,
			line:      c.lineNumber,
			requireGT: c.version == "VCFv4.0",
			filters:   c.filters,
			gts:       c.gts,
			interner:  c.interner,
		}
		gc := variant.NewLazyGenotypes(p, c.header)
		if !c.header.SamplesWereAlreadySorted() {
			if err := gc.Force(); err != nil {
				return nil, c.wrap(err)
			}
		}
		b.GenotypesNoValidation(gc)
	}

	vc, err := b.Make()
	if err != nil {
		return nil, c.wrap(err)
	}
	if c.opts.FullyDecode {
		if vc, err = vc.FullyDecode(c.header, c.opts.Lenient); err != nil {
			return nil, c.wrap(err)
		}
	}
	return vc, nil
}

func parseQual(s string) (float64, error) {
	if s == variant.MissingValue {
		return variant.NoLog10PError, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid QUAL %q", s)
	}
	if math.Abs(v-missingQuality) < qualityEpsilon {
		return variant.NoLog10PError, nil
	}
	return v / -10.0, nil
}

func (c *Codec) parseInfo(s string) (map[string]any, error) {
	if s == "" {
		return nil, c.fail("the INFO field cannot be empty, use . for no annotations")
	}
	if s == variant.MissingValue {
		return nil, nil
	}
	attrs := make(map[string]any, split.Count(s, ';'))
	for _, tok := range c.info.Split(s, ';') {
		if tok == "" {
			continue
		}
		key, value, hasValue := strings.Cut(tok, "=")
		key = c.interner.Intern(key)
		line := c.header.Info(key)

		if !hasValue {
			if line != nil && !line.IsFlag() {
				if !c.opts.Lenient {
					return nil, c.fail(fmt.Sprintf("INFO key %s is declared as %s but has no value", key, line.Type()))
				}
				c.warnOnce("info-no-value:"+key, "INFO key declared as non-flag has no value", zap.String("key", key))
				attrs[key] = variant.MissingValue
				continue
			}
			attrs[key] = true
			continue
		}

		if strings.IndexByte(value, ',') < 0 {
			if value == "0" && line != nil && line.IsFlag() {
				continue
			}
			if value == "" {
				value = variant.MissingValue
			}
			attrs[key] = value
			continue
		}
		attrs[key] = split.Split(value, ',')
	}
	return attrs, nil
}

func (c *Codec) parseAlleles(ref, alts string) ([]*variant.Allele, error) {
	if err := c.checkAllele(ref, true); err != nil {
		return nil, err
	}
	r, err := variant.NewAllele(ref, true)
	if err != nil {
		return nil, c.wrap(err)
	}
	alleles := make([]*variant.Allele, 1, 1+split.Count(alts, ','))
	alleles[0] = r

	rest := alts
	for {
		alt, tail, more := strings.Cut(rest, ",")
		if err := c.checkAllele(alt, false); err != nil {
			return nil, err
		}
		a, err := variant.NewAllele(alt, false)
		if err != nil {
			return nil, c.wrap(err)
		}
		if !a.IsNoCall() {
			alleles = append(alleles, a)
		}
		if !more {
			break
		}
		rest = tail
	}
	return alleles, nil
}

func (c *Codec) checkAllele(allele string, isRef bool) error {
	if allele == "" {
		return c.fail("empty allele")
	}
	if c.warnLen > 0 && len(allele) > c.warnLen {
		c.logger.Warn("allele length exceeds warning threshold, processing may be slow",
			zap.Int("length", len(allele)),
			zap.Int("threshold", c.warnLen),
			zap.Int("line", c.lineNumber))
	}
	if variant.IsSymbolicBases(allele) {
		if isRef {
			return c.fail(fmt.Sprintf("symbolic alleles are not allowed as the reference allele: %s", allele))
		}
		return nil
	}
	if allele[0] == 'D' || allele[0] == 'I' {
		return c.fail(fmt.Sprintf("VCF3 insertion/deletion allele %q is not supported", allele))
	}
	if isRef && allele == variant.NoCallString {
		return c.fail("the reference allele cannot be missing")
	}
	return nil
}

func (c *Codec) warnOnce(key, msg string, fields ...zap.Field) {
	if c.warned[key] {
		return
	}
	c.warned[key] = true
	c.logger.Warn(msg, fields...)
}
