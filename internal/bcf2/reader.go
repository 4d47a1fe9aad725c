package bcf2

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/intern"
	"github.com/inodb/vibe-vcf/internal/variant"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

// Reader reads variants from an uncompressed BCF2 stream.
type Reader struct {
	r       *bufio.Reader
	closer  io.Closer
	lenient bool

	header   *header.Header
	strs     *Dictionary
	contigs  *Dictionary
	interner *intern.Pool
	filters  map[string]*variant.FilterSet

	dec     Decoder
	frame   [8]byte
	offset  int64
	records int
}

// NewReader reads the magic and header from r and returns a reader
// positioned at the first record. The text header is parsed with the VCF
// header rules; opts.Lenient also admits INFO keys without a declaration.
// Close closes r when it is an io.Closer.
func NewReader(r io.Reader, opts vcf.Options) (*Reader, error) {
	br := &Reader{
		r:        bufio.NewReaderSize(r, 1<<16),
		lenient:  opts.Lenient,
		interner: opts.Interner,
		filters:  make(map[string]*variant.FilterSet),
	}
	if br.interner == nil {
		br.interner = intern.New()
	}
	if c, ok := r.(io.Closer); ok {
		br.closer = c
	}

	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(br.r, magic); err != nil {
		return nil, fmt.Errorf("read bcf2 magic: %w", err)
	}
	if string(magic) != Magic {
		return nil, &FormatError{Offset: 0, Message: fmt.Sprintf("bad magic %q", magic)}
	}
	if _, err := io.ReadFull(br.r, br.frame[:4]); err != nil {
		return nil, fmt.Errorf("read bcf2 header length: %w", err)
	}
	n := binary.LittleEndian.Uint32(br.frame[:4])
	text := make([]byte, n)
	if _, err := io.ReadFull(br.r, text); err != nil {
		return nil, fmt.Errorf("read bcf2 header: %w", err)
	}
	br.offset = int64(len(Magic)) + 4 + int64(n)
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}

	// The dictionaries index the header as written.
	opts.Interner = br.interner
	opts.SkipHeaderRepair = true
	codec := vcf.NewCodec(opts)
	h, err := codec.ReadHeader(vcf.NewLineSource(strings.NewReader(string(text))))
	if err != nil {
		return nil, fmt.Errorf("parse bcf2 header: %w", err)
	}
	if br.strs, err = StringDictionary(h); err != nil {
		return nil, err
	}
	if br.contigs, err = ContigDictionary(h); err != nil {
		return nil, err
	}
	br.header = h
	return br, nil
}

// Header returns the parsed header.
func (r *Reader) Header() *header.Header { return r.header }

// LineNumber returns the number of records read.
func (r *Reader) LineNumber() int { return r.records }

// Close closes the underlying stream.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// Next reads the next variant. Site fields are decoded to their declared
// types; genotypes stay undecoded until first accessed.
// Returns nil, nil when there are no more variants.
func (r *Reader) Next() (*variant.VariantContext, error) {
	if _, err := io.ReadFull(r.r, r.frame[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, &FormatError{Offset: r.offset, Message: "truncated record length"}
		}
		return nil, fmt.Errorf("read bcf2 record: %w", err)
	}
	lShared := binary.LittleEndian.Uint32(r.frame[:4])
	lIndiv := binary.LittleEndian.Uint32(r.frame[4:])
	block := make([]byte, int(lShared)+int(lIndiv))
	if _, err := io.ReadFull(r.r, block); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, &FormatError{Offset: r.offset, Message: "truncated record"}
		}
		return nil, fmt.Errorf("read bcf2 record: %w", err)
	}
	base := r.offset + 8
	r.offset = base + int64(len(block))
	r.records++

	vc, err := r.decodeSite(block[:lShared], block[lShared:], base)
	if err != nil {
		return nil, err
	}
	return vc, nil
}

func (r *Reader) decodeSite(site, geno []byte, base int64) (*variant.VariantContext, error) {
	d := &r.dec
	d.SetBlock(site, base)

	contigIndex, err := d.DecodeInt32()
	if err != nil {
		return nil, err
	}
	contig, ok := r.contigs.String(int(contigIndex))
	if !ok {
		return nil, d.fail("contig offset %d is not in the header", contigIndex)
	}
	pos, err := d.DecodeInt32()
	if err != nil {
		return nil, err
	}
	rlen, err := d.DecodeInt32()
	if err != nil {
		return nil, err
	}
	qual, err := d.DecodeFloat32()
	if err != nil {
		return nil, err
	}
	alleleInfo, err := d.DecodeUint32()
	if err != nil {
		return nil, err
	}
	fmtSample, err := d.DecodeUint32()
	if err != nil {
		return nil, err
	}
	nAlleles, nInfo := int(alleleInfo>>16), int(alleleInfo&0xffff)
	nFormat, nSamples := int(fmtSample>>24), int(fmtSample&0xffffff)
	if nSamples != r.header.NumSamples() {
		return nil, d.fail("record has %d samples, the header declares %d", nSamples, r.header.NumSamples())
	}

	start := int(pos) + 1
	b := variant.NewBuilder(contig, start, start+int(rlen)-1).FullyDecoded(true)

	id, err := d.DecodeTypedString()
	if err != nil {
		return nil, err
	}
	if id != "" {
		b.ID(r.interner.Intern(id))
	}
	if nAlleles == 0 {
		return nil, d.fail("record has no alleles")
	}
	alleles := make([]*variant.Allele, nAlleles)
	for i := range alleles {
		s, err := d.DecodeTypedString()
		if err != nil {
			return nil, err
		}
		if alleles[i], err = variant.NewAllele(r.interner.Intern(s), i == 0); err != nil {
			return nil, d.fail("allele %d: %v", i, err)
		}
	}
	b.Alleles(alleles...)
	if !variant.IsMissingFloat(qual) {
		b.PhredQual(qual)
	}

	filters, err := r.decodeFilters()
	if err != nil {
		return nil, err
	}
	b.Filters(filters)

	if nInfo > 0 {
		attrs := make(map[string]any, nInfo)
		for range nInfo {
			key, v, err := r.decodeInfo()
			if err != nil {
				return nil, err
			}
			attrs[key] = v
		}
		b.Attributes(attrs)
	}
	if d.Remaining() != 0 {
		return nil, d.fail("%d bytes left over in the site block", d.Remaining())
	}

	if nSamples > 0 && nFormat > 0 {
		b.GenotypesNoValidation(variant.NewLazyGenotypes(&bcfGenotypes{
			raw:     geno,
			header:  r.header,
			strs:    r.strs,
			alleles: alleles,
			nFormat: nFormat,
			base:    base + int64(len(site)),
		}, r.header))
	}
	vc, err := b.Make()
	if err != nil {
		return nil, fmt.Errorf("bcf2 record %d: %w", r.records, err)
	}
	return vc, nil
}

func (r *Reader) decodeFilters() (*variant.FilterSet, error) {
	d := &r.dec
	count, t, err := d.DecodeTypeDescriptor()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	if !t.IsInteger() {
		return nil, d.fail("FILTER offsets have type %s", t)
	}
	offsets, err := d.DecodeInts(count, t)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(offsets))
	for _, o := range offsets {
		if o == 0 {
			continue
		}
		name, ok := r.strs.String(o)
		if !ok {
			return nil, d.fail("filter offset %d is not in the dictionary", o)
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return variant.PassFilters(), nil
	}
	key := strings.Join(names, ";")
	fs, ok := r.filters[key]
	if !ok {
		fs = variant.NewFilterSet(names...)
		r.filters[key] = fs
	}
	return fs, nil
}

func (r *Reader) decodeInfo() (string, any, error) {
	d := &r.dec
	offset, err := d.DecodeTypedInt()
	if err != nil {
		return "", nil, err
	}
	key, ok := r.strs.String(offset)
	if !ok {
		return "", nil, d.fail("INFO offset %d is not in the dictionary", offset)
	}
	line := r.header.Info(key)
	if line == nil && !r.lenient {
		return "", nil, d.fail("INFO key %s is not declared", key)
	}
	v, err := d.DecodeTypedValue()
	if err != nil {
		return "", nil, err
	}
	if line == nil {
		if v == nil {
			v = variant.MissingValue
		}
		return key, v, nil
	}
	v, err = typedValue(line.Type(), v)
	if err != nil {
		return "", nil, d.fail("INFO %s: %v", key, err)
	}
	return key, v, nil
}

// typedValue converts a decoded BCF2 value to the representation a fully
// decoded text record has for the declared type.
func typedValue(t header.Type, v any) (any, error) {
	switch t {
	case header.Flag:
		return true, nil
	case header.Integer:
		if v == nil {
			return variant.MissingInt, nil
		}
	case header.Float:
		if v == nil {
			return variant.MissingFloat, nil
		}
	default:
		if v == nil {
			return variant.MissingValue, nil
		}
	}
	if s, ok := v.(string); ok {
		return variant.DecodeValue(t, s)
	}
	return v, nil
}
