// Package header models VCF header metadata: the typed header lines and
// the Header aggregate that indexes them together with the sample names.
package header

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known header keys.
const (
	KeyInfo       = "INFO"
	KeyFormat     = "FORMAT"
	KeyFilter     = "FILTER"
	KeyAlt        = "ALT"
	KeyContig     = "contig"
	KeyFileFormat = "fileformat"
	KeyFormatV3   = "format"
)

// Line is a single ## header line. The set of implementations is closed:
// *GenericLine, *SimpleLine, *CompoundLine and *ContigLine. Callers
// dispatch with a type switch.
type Line interface {
	// Key is the text between ## and the first =.
	Key() string
	// String renders the line without the leading ##.
	String() string

	isLine()
}

// Field is one key=value pair inside a structured <...> header value.
type Field struct {
	Key   string
	Value string
}

// GenericLine is a free-form ##key=value line.
type GenericLine struct {
	key   string
	value string
}

// NewGenericLine returns a key=value line.
func NewGenericLine(key, value string) *GenericLine {
	return &GenericLine{key: key, value: value}
}

func (l *GenericLine) isLine()        {}
func (l *GenericLine) Key() string    { return l.key }
func (l *GenericLine) Value() string  { return l.value }
func (l *GenericLine) String() string { return l.key + "=" + l.value }

// SimpleLine is a structured line carrying an ID, such as FILTER or ALT,
// or any other ##KEY=<ID=...> line.
type SimpleLine struct {
	key    string
	id     string
	fields []Field // in input order, ID included
}

// NewSimpleLine builds a structured line from its fields. An ID field is
// required.
func NewSimpleLine(key string, fields []Field) (*SimpleLine, error) {
	l := &SimpleLine{key: key, fields: append([]Field(nil), fields...)}
	for _, f := range fields {
		if f.Key == "ID" {
			l.id = f.Value
			break
		}
	}
	if l.id == "" {
		return nil, &LineError{Line: renderStructured(key, fields), Message: "missing ID"}
	}
	return l, nil
}

// NewFilterLine returns a ##FILTER line.
func NewFilterLine(id, description string) *SimpleLine {
	return &SimpleLine{key: KeyFilter, id: id, fields: []Field{{"ID", id}, {"Description", description}}}
}

// NewAltLine returns a ##ALT line declaring a symbolic allele.
func NewAltLine(id, description string) *SimpleLine {
	return &SimpleLine{key: KeyAlt, id: id, fields: []Field{{"ID", id}, {"Description", description}}}
}

func (l *SimpleLine) isLine()     {}
func (l *SimpleLine) Key() string { return l.key }
func (l *SimpleLine) ID() string  { return l.id }

// Field returns the value of the named field.
func (l *SimpleLine) Field(key string) (string, bool) {
	return lookupField(l.fields, key)
}

// Fields returns a copy of the line's fields in input order.
func (l *SimpleLine) Fields() []Field {
	return append([]Field(nil), l.fields...)
}

// Description returns the Description field, or "".
func (l *SimpleLine) Description() string {
	d, _ := l.Field("Description")
	return d
}

func (l *SimpleLine) String() string {
	return renderStructured(l.key, l.fields)
}

// ContigLine is a ##contig line. Index is its ordinal among the header's
// contigs and defines sort order.
type ContigLine struct {
	id     string
	fields []Field
	index  int
}

// NewContigLine returns a contig line. Pass a negative index to have the
// Header assign the next ordinal when the line is added.
func NewContigLine(id string, index int, fields ...Field) *ContigLine {
	all := append([]Field{{"ID", id}}, fields...)
	return &ContigLine{id: id, fields: all, index: index}
}

func (l *ContigLine) isLine()     {}
func (l *ContigLine) Key() string { return KeyContig }
func (l *ContigLine) ID() string  { return l.id }
func (l *ContigLine) Index() int  { return l.index }

// Field returns the value of the named field.
func (l *ContigLine) Field(key string) (string, bool) {
	return lookupField(l.fields, key)
}

// Length returns the declared contig length.
func (l *ContigLine) Length() (int64, bool) {
	v, ok := l.Field("length")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (l *ContigLine) String() string {
	return renderStructured(KeyContig, l.fields)
}

// CompoundKind distinguishes INFO from FORMAT declarations.
type CompoundKind uint8

const (
	Info CompoundKind = iota
	Format
)

func (k CompoundKind) String() string {
	if k == Format {
		return KeyFormat
	}
	return KeyInfo
}

// CompoundLine is an INFO or FORMAT declaration.
type CompoundLine struct {
	kind        CompoundKind
	id          string
	number      Number
	typ         Type
	description string
	extra       []Field // Source, Version and anything else, in input order
}

// NewInfoLine declares an INFO field.
func NewInfoLine(id string, number Number, typ Type, description string) (*CompoundLine, error) {
	return newCompoundLine(Info, id, number, typ, description, nil)
}

// NewFormatLine declares a FORMAT field.
func NewFormatLine(id string, number Number, typ Type, description string) (*CompoundLine, error) {
	return newCompoundLine(Format, id, number, typ, description, nil)
}

func newCompoundLine(kind CompoundKind, id string, number Number, typ Type, description string, extra []Field) (*CompoundLine, error) {
	l := &CompoundLine{kind: kind, id: id, number: number, typ: typ, description: description, extra: extra}
	if id == "" {
		return nil, &LineError{Line: l.String(), Message: "missing ID"}
	}
	if strings.ContainsAny(id, "<>=") {
		return nil, &LineError{Line: l.String(), Message: fmt.Sprintf("ID %q contains one of the reserved characters <, > or =", id)}
	}
	if typ == Flag {
		if kind == Format {
			return nil, &LineError{Line: l.String(), Message: "Flag is not a legal type for FORMAT fields"}
		}
		switch {
		case number.Kind == Unbounded, number.Kind == Fixed && number.N == 0:
			l.number = Number{Kind: Fixed}
		default:
			return nil, &LineError{Line: l.String(), Message: "Flag fields must declare Number=0"}
		}
	}
	return l, nil
}

func (l *CompoundLine) isLine()             {}
func (l *CompoundLine) Key() string         { return l.kind.String() }
func (l *CompoundLine) Kind() CompoundKind  { return l.kind }
func (l *CompoundLine) ID() string          { return l.id }
func (l *CompoundLine) Number() Number      { return l.number }
func (l *CompoundLine) Type() Type          { return l.typ }
func (l *CompoundLine) Description() string { return l.description }

// Field returns the value of an extra field such as Source or Version.
func (l *CompoundLine) Field(key string) (string, bool) {
	return lookupField(l.extra, key)
}

// IsFlag reports whether the line declares a Flag field.
func (l *CompoundLine) IsFlag() bool {
	return l.typ == Flag
}

func (l *CompoundLine) String() string {
	fields := make([]Field, 0, 4+len(l.extra))
	fields = append(fields,
		Field{"ID", l.id},
		Field{"Number", l.number.String()},
		Field{"Type", l.typ.String()},
		Field{"Description", l.description},
	)
	fields = append(fields, l.extra...)
	return renderStructured(l.Key(), fields)
}

// sameDeclaration reports whether two compound lines agree on everything
// that affects encoding.
func sameDeclaration(a, b *CompoundLine) bool {
	return a.kind == b.kind && a.id == b.id && a.number == b.number && a.typ == b.typ
}

func lookupField(fields []Field, key string) (string, bool) {
	for _, f := range fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

func renderStructured(key string, fields []Field) string {
	var b strings.Builder
	b.WriteString(key)
	b.WriteString("=<")
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		if needsQuotes(f) {
			b.WriteByte('"')
			escapeQuoted(&b, f.Value)
			b.WriteByte('"')
		} else {
			b.WriteString(f.Value)
		}
	}
	b.WriteByte('>')
	return b.String()
}

func needsQuotes(f Field) bool {
	switch f.Key {
	case "Description", "Source", "Version":
		return true
	}
	return f.Value == "" || strings.ContainsAny(f.Value, ",\"<>= ")
}

func escapeQuoted(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
}
