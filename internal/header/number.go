package header

import (
	"fmt"
	"strconv"
)

// CountKind is how an INFO/FORMAT Number is resolved against a record.
type CountKind uint8

const (
	Fixed       CountKind = iota // an explicit integer
	PerAlt                       // A: one value per alternate allele
	PerAllele                    // R: one value per allele, reference included
	PerGenotype                  // G: one value per possible genotype
	Unbounded                    // .: any number of values
)

// Number is the declared arity of an INFO or FORMAT field.
type Number struct {
	Kind CountKind
	N    int // only meaningful for Fixed
}

// Common Number values.
var (
	NumberA   = Number{Kind: PerAlt}
	NumberR   = Number{Kind: PerAllele}
	NumberG   = Number{Kind: PerGenotype}
	NumberDot = Number{Kind: Unbounded}
)

// FixedNumber returns a Number declaring exactly n values.
func FixedNumber(n int) Number {
	return Number{Kind: Fixed, N: n}
}

// ParseNumber parses the Number attribute of an INFO/FORMAT line.
func ParseNumber(s string) (Number, error) {
	switch s {
	case "A", "a":
		return NumberA, nil
	case "R", "r":
		return NumberR, nil
	case "G", "g":
		return NumberG, nil
	case ".":
		return NumberDot, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Number{}, fmt.Errorf("invalid Number %q", s)
	}
	return FixedNumber(n), nil
}

func (n Number) String() string {
	switch n.Kind {
	case PerAlt:
		return "A"
	case PerAllele:
		return "R"
	case PerGenotype:
		return "G"
	case Unbounded:
		return "."
	}
	return strconv.Itoa(n.N)
}

// Type is the declared value type of an INFO or FORMAT field.
type Type uint8

const (
	Integer Type = iota + 1
	Float
	Flag
	Character
	String
)

// ParseType parses the Type attribute of an INFO/FORMAT line.
func ParseType(s string) (Type, error) {
	switch s {
	case "Integer":
		return Integer, nil
	case "Float":
		return Float, nil
	case "Flag":
		return Flag, nil
	case "Character":
		return Character, nil
	case "String":
		return String, nil
	}
	return 0, fmt.Errorf("unknown Type %q", s)
}

func (t Type) String() string {
	switch t {
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case Flag:
		return "Flag"
	case Character:
		return "Character"
	case String:
		return "String"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}
