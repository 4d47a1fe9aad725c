package header

import (
	"fmt"
	"strings"
)

// ParseStructured parses a <key=value,...> header value into its fields.
// Values may be double-quoted, in which case backslash escapes the next
// character.
func ParseStructured(value string) ([]Field, error) {
	if len(value) < 2 || value[0] != '<' || value[len(value)-1] != '>' {
		return nil, fmt.Errorf("structured value must be enclosed in <>: %s", value)
	}
	s := value[1 : len(value)-1]
	var fields []Field
	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		start := i
		for i < len(s) && s[i] != '=' && s[i] != ',' {
			i++
		}
		key := strings.TrimSpace(s[start:i])
		if i >= len(s) || s[i] != '=' {
			return nil, fmt.Errorf("invalid key=value pair %q in %s", key, value)
		}
		i++ // '='

		var val string
		if i < len(s) && s[i] == '"' {
			i++
			var b strings.Builder
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, fmt.Errorf("missing closing quote in %s", value)
			}
			val = b.String()
		} else {
			start = i
			for i < len(s) && s[i] != ',' {
				i++
			}
			val = s[start:i]
		}

		for _, f := range fields {
			if f.Key == key {
				return nil, fmt.Errorf("duplicate field %s in %s", key, value)
			}
		}
		fields = append(fields, Field{Key: key, Value: val})

		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i < len(s) {
			if s[i] != ',' {
				return nil, fmt.Errorf("invalid syntax in %s", value)
			}
			i++
		}
	}
	return fields, nil
}

// ParseLine parses the text of one ## header line (without the ##) split
// into key and value. INFO, FORMAT, FILTER, ALT and contig lines have
// dedicated parsers; other structured lines with an ID become
// SimpleLines and everything else a GenericLine. Contig lines get a
// negative index; the Header assigns ordinals as lines are added.
func ParseLine(key, value string) (Line, error) {
	switch key {
	case KeyInfo, KeyFormat:
		return parseCompound(key, value)
	case KeyFilter, KeyAlt:
		fields, err := ParseStructured(value)
		if err != nil {
			return nil, &LineError{Line: key + "=" + value, Message: err.Error()}
		}
		return NewSimpleLine(key, fields)
	case KeyContig:
		fields, err := ParseStructured(value)
		if err != nil {
			return nil, &LineError{Line: key + "=" + value, Message: err.Error()}
		}
		id, ok := lookupField(fields, "ID")
		if !ok || id == "" {
			return nil, &LineError{Line: key + "=" + value, Message: "missing ID"}
		}
		return &ContigLine{id: id, fields: fields, index: -1}, nil
	}

	if strings.HasPrefix(value, "<") && strings.HasSuffix(value, ">") {
		if fields, err := ParseStructured(value); err == nil {
			if l, err := NewSimpleLine(key, fields); err == nil {
				return l, nil
			}
		}
	}
	return NewGenericLine(key, value), nil
}

func parseCompound(key, value string) (*CompoundLine, error) {
	fail := func(msg string) error {
		return &LineError{Line: key + "=" + value, Message: msg}
	}

	fields, err := ParseStructured(value)
	if err != nil {
		return nil, fail(err.Error())
	}

	kind := Info
	if key == KeyFormat {
		kind = Format
	}

	var (
		id, description      string
		number               Number
		typ                  Type
		haveNumber, haveType bool
		extra                []Field
	)
	for _, f := range fields {
		switch f.Key {
		case "ID":
			id = f.Value
		case "Number":
			if number, err = ParseNumber(f.Value); err != nil {
				return nil, fail(err.Error())
			}
			haveNumber = true
		case "Type":
			if typ, err = ParseType(f.Value); err != nil {
				return nil, fail(err.Error())
			}
			haveType = true
		case "Description":
			description = f.Value
		default:
			extra = append(extra, f)
		}
	}

	if !haveType {
		return nil, fail("missing Type")
	}
	if !haveNumber {
		if typ != Flag {
			return nil, fail("missing Number")
		}
		number = NumberDot
	}
	return newCompoundLine(kind, id, number, typ, description, extra)
}
