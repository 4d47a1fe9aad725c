package bcf2

import (
	"fmt"
	"strconv"

	"github.com/inodb/vibe-vcf/internal/header"
)

// idxField pins a dictionary entry to an explicit offset.
const idxField = "IDX"

// Dictionary maps strings to the offsets records refer to them by.
type Dictionary struct {
	strings []string // by offset; gaps left by IDX are ""
	offsets map[string]int
}

func newDictionary() *Dictionary {
	return &Dictionary{offsets: make(map[string]int)}
}

// add places s at idx, or at the next free offset when idx is negative.
// A string already present keeps its first offset.
func (d *Dictionary) add(s string, idx int) error {
	if _, ok := d.offsets[s]; ok {
		return nil
	}
	if idx < 0 {
		idx = len(d.strings)
	}
	for len(d.strings) <= idx {
		d.strings = append(d.strings, "")
	}
	if d.strings[idx] != "" {
		return fmt.Errorf("dictionary offset %d is taken by %s and %s", idx, d.strings[idx], s)
	}
	d.strings[idx] = s
	d.offsets[s] = idx
	return nil
}

// Offset returns the offset of s.
func (d *Dictionary) Offset(s string) (int, bool) {
	i, ok := d.offsets[s]
	return i, ok
}

// String returns the string at offset i.
func (d *Dictionary) String(i int) (string, bool) {
	if i < 0 || i >= len(d.strings) || d.strings[i] == "" {
		return "", false
	}
	return d.strings[i], true
}

// Len returns the number of offsets, gaps included.
func (d *Dictionary) Len() int { return len(d.strings) }

func explicitIndex(value string, ok bool) (int, error) {
	if !ok {
		return -1, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s value %q", idxField, value)
	}
	return n, nil
}

// StringDictionary builds the dictionary of FILTER, INFO and FORMAT IDs:
// PASS at offset 0, then the IDs in the order of the header's sorted
// lines, each placed at its IDX offset when one is declared.
func StringDictionary(h *header.Header) (*Dictionary, error) {
	d := newDictionary()
	if err := d.add(header.PassFilter, 0); err != nil {
		return nil, err
	}
	for _, l := range h.SortedLines() {
		var (
			id       string
			idx      string
			hasIndex bool
		)
		switch l := l.(type) {
		case *header.SimpleLine:
			if l.Key() != header.KeyFilter {
				continue
			}
			id = l.ID()
			idx, hasIndex = l.Field(idxField)
		case *header.CompoundLine:
			id = l.ID()
			idx, hasIndex = l.Field(idxField)
		default:
			continue
		}
		at, err := explicitIndex(idx, hasIndex)
		if err != nil {
			return nil, fmt.Errorf("build string dictionary: %w", err)
		}
		if err := d.add(id, at); err != nil {
			return nil, fmt.Errorf("build string dictionary: %w", err)
		}
	}
	return d, nil
}

// ContigDictionary builds the dictionary of contig names in ordinal
// order, honoring IDX.
func ContigDictionary(h *header.Header) (*Dictionary, error) {
	d := newDictionary()
	for _, c := range h.Contigs() {
		idx, hasIndex := c.Field(idxField)
		at, err := explicitIndex(idx, hasIndex)
		if err != nil {
			return nil, fmt.Errorf("build contig dictionary: %w", err)
		}
		if err := d.add(c.ID(), at); err != nil {
			return nil, fmt.Errorf("build contig dictionary: %w", err)
		}
	}
	return d, nil
}
