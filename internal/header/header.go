package header

import (
	"slices"
	"strings"
)

// NumFixedColumns is the count of mandatory columns, CHROM through INFO.
const NumFixedColumns = 8

// FixedColumns are the mandatory column names in order.
var FixedColumns = [NumFixedColumns]string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER", "INFO"}

// FormatColumn introduces the genotype columns.
const FormatColumn = "FORMAT"

// Header is the parsed header of a VCF or BCF file.
type Header struct {
	version string

	lines   []Line
	seen    map[string]struct{}
	infos   map[string]*CompoundLine
	formats map[string]*CompoundLine
	filters map[string]*SimpleLine
	contigs []*ContigLine
	others  map[string][]Line

	samples       []string
	sampleOffsets map[string]int
	samplesSorted bool
}

// New builds a Header from metadata lines and sample names. Sample names
// must be unique.
func New(lines []Line, samples []string) (*Header, error) {
	h := &Header{
		seen:    make(map[string]struct{}),
		infos:   make(map[string]*CompoundLine),
		formats: make(map[string]*CompoundLine),
		filters: make(map[string]*SimpleLine),
		others:  make(map[string][]Line),
	}
	for _, l := range lines {
		h.AddLine(l)
	}
	if err := h.setSamples(samples); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Header) setSamples(samples []string) error {
	offsets := make(map[string]int, len(samples))
	for i, s := range samples {
		if _, dup := offsets[s]; dup {
			return &SampleError{Sample: s, Message: "duplicate sample name"}
		}
		offsets[s] = i
	}
	h.samples = slices.Clone(samples)
	h.sampleOffsets = offsets
	h.samplesSorted = slices.IsSorted(samples)
	return nil
}

// AddLine adds a metadata line. Exact duplicates are ignored, as are
// later INFO/FORMAT/FILTER/contig declarations of an ID already present.
// Version lines set the header version instead of being stored.
func (h *Header) AddLine(l Line) {
	if g, ok := l.(*GenericLine); ok && isVersionKey(g.key) {
		h.version = g.value
		return
	}
	text := l.String()
	if _, dup := h.seen[text]; dup {
		return
	}

	switch l := l.(type) {
	case *CompoundLine:
		index := h.infos
		if l.kind == Format {
			index = h.formats
		}
		if _, dup := index[l.id]; dup {
			return
		}
		index[l.id] = l
	case *ContigLine:
		if h.Contig(l.id) != nil {
			return
		}
		if l.index < 0 {
			l = &ContigLine{id: l.id, fields: l.fields, index: h.nextContigIndex()}
		}
		h.contigs = append(h.contigs, l)
		slices.SortStableFunc(h.contigs, func(a, b *ContigLine) int { return a.index - b.index })
		h.seen[l.String()] = struct{}{}
		h.lines = append(h.lines, l)
		return
	case *SimpleLine:
		if l.key == KeyFilter {
			if _, dup := h.filters[l.id]; dup {
				return
			}
			h.filters[l.id] = l
		} else {
			h.others[l.key] = append(h.others[l.key], l)
		}
	case *GenericLine:
		h.others[l.key] = append(h.others[l.key], l)
	}
	h.seen[text] = struct{}{}
	h.lines = append(h.lines, l)
}

func (h *Header) nextContigIndex() int {
	next := 0
	for _, c := range h.contigs {
		if c.index >= next {
			next = c.index + 1
		}
	}
	return next
}

// replaceCompound swaps a declaration for another with the same kind and
// ID, keeping its position among the lines.
func (h *Header) replaceCompound(old, repl *CompoundLine) {
	for i, l := range h.lines {
		if l == Line(old) {
			h.lines[i] = repl
			break
		}
	}
	delete(h.seen, old.String())
	h.seen[repl.String()] = struct{}{}
	if old.kind == Format {
		h.formats[old.id] = repl
	} else {
		h.infos[old.id] = repl
	}
}

func isVersionKey(key string) bool {
	return key == KeyFileFormat || key == KeyFormatV3
}

// Version returns the declared format version, e.g. "VCFv4.2".
func (h *Header) Version() string { return h.version }

// SetVersion records the declared format version.
func (h *Header) SetVersion(v string) { h.version = v }

// Lines returns the metadata lines in insertion order.
func (h *Header) Lines() []Line {
	return slices.Clone(h.lines)
}

// SortedLines returns the metadata lines in output order: by rendered
// text, except that contig lines compare by ordinal.
func (h *Header) SortedLines() []Line {
	out := slices.Clone(h.lines)
	slices.SortStableFunc(out, compareLines)
	return out
}

func compareLines(a, b Line) int {
	ca, aok := a.(*ContigLine)
	cb, bok := b.(*ContigLine)
	if aok && bok {
		return ca.index - cb.index
	}
	return strings.Compare(a.String(), b.String())
}

// Info returns the INFO declaration for id, or nil.
func (h *Header) Info(id string) *CompoundLine { return h.infos[id] }

// Format returns the FORMAT declaration for id, or nil.
func (h *Header) Format(id string) *CompoundLine { return h.formats[id] }

// Filter returns the FILTER declaration for id, or nil.
func (h *Header) Filter(id string) *SimpleLine { return h.filters[id] }

// HasInfo reports whether id is declared as an INFO field.
func (h *Header) HasInfo(id string) bool { return h.infos[id] != nil }

// HasFormat reports whether id is declared as a FORMAT field.
func (h *Header) HasFormat(id string) bool { return h.formats[id] != nil }

// HasFilter reports whether id is declared as a FILTER.
func (h *Header) HasFilter(id string) bool { return h.filters[id] != nil }

// InfoLines returns the INFO declarations in insertion order.
func (h *Header) InfoLines() []*CompoundLine {
	return compoundLines(h.lines, Info)
}

// FormatLines returns the FORMAT declarations in insertion order.
func (h *Header) FormatLines() []*CompoundLine {
	return compoundLines(h.lines, Format)
}

func compoundLines(lines []Line, kind CompoundKind) []*CompoundLine {
	var out []*CompoundLine
	for _, l := range lines {
		if c, ok := l.(*CompoundLine); ok && c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// FilterLines returns the FILTER declarations in insertion order.
func (h *Header) FilterLines() []*SimpleLine {
	var out []*SimpleLine
	for _, l := range h.lines {
		if s, ok := l.(*SimpleLine); ok && s.key == KeyFilter {
			out = append(out, s)
		}
	}
	return out
}

// Contigs returns the contig lines sorted by ordinal.
func (h *Header) Contigs() []*ContigLine {
	return slices.Clone(h.contigs)
}

// Contig returns the contig line for id, or nil.
func (h *Header) Contig(id string) *ContigLine {
	for _, c := range h.contigs {
		if c.id == id {
			return c
		}
	}
	return nil
}

// OtherLines returns generic and structured lines stored under key.
func (h *Header) OtherLines(key string) []Line {
	return slices.Clone(h.others[key])
}

// SampleNames returns the sample names in column order.
func (h *Header) SampleNames() []string {
	return slices.Clone(h.samples)
}

// NumSamples returns the number of sample columns.
func (h *Header) NumSamples() int { return len(h.samples) }

// SampleOffset returns the column offset of sample among the samples.
func (h *Header) SampleOffset(sample string) (int, bool) {
	i, ok := h.sampleOffsets[sample]
	return i, ok
}

// SamplesWereAlreadySorted reports whether the sample columns appear in
// sorted order.
func (h *Header) SamplesWereAlreadySorted() bool { return h.samplesSorted }

// HasGenotypingData reports whether the header has FORMAT and sample
// columns.
func (h *Header) HasGenotypingData() bool { return len(h.samples) > 0 }

// ColumnCount returns the number of tab-separated columns per record.
func (h *Header) ColumnCount() int {
	if !h.HasGenotypingData() {
		return NumFixedColumns
	}
	return NumFixedColumns + 1 + len(h.samples)
}

// ColumnLine renders the #CHROM line without the leading #.
func (h *Header) ColumnLine() string {
	var b strings.Builder
	b.WriteString(strings.Join(FixedColumns[:], "\t"))
	if h.HasGenotypingData() {
		b.WriteByte('\t')
		b.WriteString(FormatColumn)
		for _, s := range h.samples {
			b.WriteByte('\t')
			b.WriteString(s)
		}
	}
	return b.String()
}

// WithoutSamples returns a copy of the header with no sample columns.
func (h *Header) WithoutSamples() *Header {
	c := h.clone()
	c.samples = nil
	c.sampleOffsets = map[string]int{}
	c.samplesSorted = true
	return c
}

func (h *Header) clone() *Header {
	c, _ := New(h.lines, h.samples)
	c.version = h.version
	return c
}

// FormatKeysCompatible reports whether genotype data encoded against
// other can be reused verbatim under h: same samples in the same order
// and identical declarations for every FORMAT field of other.
func (h *Header) FormatKeysCompatible(other *Header) bool {
	if !slices.Equal(h.samples, other.samples) {
		return false
	}
	for id, theirs := range other.formats {
		ours := h.formats[id]
		if ours == nil || !sameDeclaration(ours, theirs) {
			return false
		}
	}
	return true
}
