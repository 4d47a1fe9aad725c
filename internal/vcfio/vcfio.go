// Package vcfio opens and creates VCF and BCF files, handling gzip and
// BGZF compression and picking the codec from the file contents.
package vcfio

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/inodb/vibe-vcf/internal/bcf2"
	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/vcf"
)

// Stdio is the path naming stdin or stdout.
const Stdio = "-"

// Format is a variant file format.
type Format int

const (
	FormatVCF Format = iota
	FormatBCF
)

func (f Format) String() string {
	if f == FormatBCF {
		return "bcf"
	}
	return "vcf"
}

var gzipMagic = []byte{0x1f, 0x8b}

// File is an opened input with compression removed.
type File struct {
	*bufio.Reader
	closers []io.Closer
}

// Close closes the decompressor and the file. Stdin is left open.
func (f *File) Close() error {
	var errs []error
	for i := len(f.closers) - 1; i >= 0; i-- {
		errs = append(errs, f.closers[i].Close())
	}
	return errors.Join(errs...)
}

// Open opens path for reading, transparently decompressing gzip and BGZF
// input. Path "-" reads stdin.
func Open(path string) (*File, error) {
	if path == Stdio {
		return NewFile(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open variant file: %w", err)
	}
	vf, err := NewFile(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	vf.closers = append([]io.Closer{f}, vf.closers...)
	return vf, nil
}

// NewFile wraps r, sniffing the gzip magic bytes. Closing the result does
// not close r.
func NewFile(r io.Reader) (*File, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read variant file: %w", err)
	}
	if !bytes.Equal(magic, gzipMagic) {
		return &File{Reader: br}, nil
	}
	gz, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	return &File{Reader: bufio.NewReaderSize(gz, 1<<16), closers: []io.Closer{gz}}, nil
}

// DetectFormat peeks at the start of r and reports BCF when it holds the
// BCF2 magic.
func DetectFormat(r *bufio.Reader) (Format, error) {
	magic, err := r.Peek(len(bcf2.Magic))
	if err != nil && err != io.EOF {
		return FormatVCF, fmt.Errorf("detect format: %w", err)
	}
	if string(magic) == bcf2.Magic {
		return FormatBCF, nil
	}
	return FormatVCF, nil
}

// OpenVariants opens path and returns a reader for its format. Closing
// the reader closes the file.
func OpenVariants(path string, opts vcf.Options) (vcf.VariantReader, error) {
	f, err := Open(path)
	if err != nil {
		return nil, err
	}
	format, err := DetectFormat(f.Reader)
	if err != nil {
		f.Close()
		return nil, err
	}

	var r vcf.VariantReader
	if format == FormatBCF {
		r, err = bcf2.NewReader(f, opts)
	} else {
		r, err = vcf.NewReader(f, opts)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return r, nil
}

// Create opens path for writing, BGZF-compressed with the given number
// of compression workers when compress is set. Path "-" writes stdout,
// which Close leaves open.
func Create(path string, compress bool, threads int) (io.WriteCloser, error) {
	var (
		w      io.Writer
		closer io.Closer
	)
	if path == Stdio {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("create output file: %w", err)
		}
		w, closer = f, f
	}
	if !compress {
		return &output{Writer: w, closers: closers(closer)}, nil
	}
	bw := bgzf.NewWriter(w, max(threads, 1))
	return &output{Writer: bw, closers: append([]io.Closer{bw}, closers(closer)...)}, nil
}

func closers(c io.Closer) []io.Closer {
	if c == nil {
		return nil
	}
	return []io.Closer{c}
}

type output struct {
	io.Writer
	closers []io.Closer
}

func (o *output) Close() error {
	var errs []error
	for _, c := range o.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// OutputFormat names a writer by the single-letter codes of bcftools -O:
// v plain VCF, z BGZF VCF, u plain BCF, b BGZF BCF.
type OutputFormat string

const (
	OutputVCF           OutputFormat = "v"
	OutputCompressedVCF OutputFormat = "z"
	OutputBCF           OutputFormat = "u"
	OutputCompressedBCF OutputFormat = "b"
)

// ParseOutputFormat validates an -O value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputVCF, OutputCompressedVCF, OutputBCF, OutputCompressedBCF:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (use v, z, u or b)", s)
}

// Format returns the codec of the output format.
func (f OutputFormat) Format() Format {
	if f == OutputBCF || f == OutputCompressedBCF {
		return FormatBCF
	}
	return FormatVCF
}

// Compressed reports whether the output is BGZF-compressed.
func (f OutputFormat) Compressed() bool {
	return f == OutputCompressedVCF || f == OutputCompressedBCF
}

// WriterOptions configures CreateVariants.
type WriterOptions struct {
	AllowMissingFieldsInHeader bool
	DropGenotypes              bool
	// PassThroughGenotypes copies undecoded BCF genotype blocks. BCF
	// output only.
	PassThroughGenotypes bool
	// Threads is the number of BGZF compression workers.
	Threads int
	Logger  *zap.Logger
}

// CreateVariants creates path, writes h and returns a writer for the
// records.
func CreateVariants(path string, h *header.Header, format OutputFormat, opts WriterOptions) (vcf.VariantWriter, error) {
	out, err := Create(path, format.Compressed(), opts.Threads)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var w vcf.VariantWriter
	if format.Format() == FormatBCF {
		bw := bcf2.NewWriter(out, bcf2.WriterOptions{
			AllowMissingFieldsInHeader: opts.AllowMissingFieldsInHeader,
			DropGenotypes:              opts.DropGenotypes,
			PassThroughGenotypes:       opts.PassThroughGenotypes,
		})
		bw.SetLogger(logger)
		w = bw
	} else {
		vw := vcf.NewWriter(out, vcf.WriterOptions{
			AllowMissingFieldsInHeader: opts.AllowMissingFieldsInHeader,
			DropGenotypes:              opts.DropGenotypes,
		})
		vw.SetLogger(logger)
		w = vw
	}
	if err := w.WriteHeader(h); err != nil {
		out.Close()
		return nil, err
	}
	return w, nil
}
