package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/variant"
)

const readBufferSize = 1 << 16

type lineReader struct {
	r *bufio.Reader
}

// NewLineSource returns a LineSource reading newline-terminated lines
// from r. A final line without a terminator is still returned.
func NewLineSource(r io.Reader) LineSource {
	return &lineReader{r: bufio.NewReaderSize(r, readBufferSize)}
}

func (l *lineReader) ReadLine() (string, error) {
	line, err := l.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Reader reads variants from a VCF stream.
type Reader struct {
	lines  LineSource
	closer io.Closer
	codec  *Codec
	header *header.Header
}

// NewReader reads the header from r and returns a reader positioned at
// the first record. Close closes r when it is an io.Closer.
func NewReader(r io.Reader, opts Options) (*Reader, error) {
	rd := &Reader{
		lines: NewLineSource(r),
		codec: NewCodec(opts),
	}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	h, err := rd.codec.ReadHeader(rd.lines)
	if err != nil {
		return nil, err
	}
	rd.header = h
	return rd, nil
}

// Header returns the parsed header.
func (r *Reader) Header() *header.Header { return r.header }

// Codec returns the codec decoding the records.
func (r *Reader) Codec() *Codec { return r.codec }

// NextLine returns the next non-empty record line and its line number
// without decoding it. It returns io.EOF at the end of the input.
func (r *Reader) NextLine() (string, int, error) {
	for {
		line, err := r.lines.ReadLine()
		if err == io.EOF {
			return "", r.codec.lineNumber, io.EOF
		}
		if err != nil {
			return "", r.codec.lineNumber, fmt.Errorf("read variant line: %w", err)
		}
		r.codec.lineNumber++
		if line != "" {
			return line, r.codec.lineNumber, nil
		}
	}
}

// Next reads the next variant.
// Returns nil, nil when there are no more variants.
func (r *Reader) Next() (*variant.VariantContext, error) {
	line, _, err := r.NextLine()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.codec.decode(line)
}

// LineNumber returns the current line number being processed.
func (r *Reader) LineNumber() int { return r.codec.lineNumber }

// Close closes the underlying stream.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
