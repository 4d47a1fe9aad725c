package variant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAllele_Interning(t *testing.T) {
	a1, err := NewAllele("A", true)
	require.NoError(t, err)
	a2, err := NewAllele("a", true)
	require.NoError(t, err)
	assert.Same(t, a1, a2)
	assert.Equal(t, "A", a1.Bases())

	alt := MustAllele("A", false)
	assert.NotSame(t, a1, alt)
	assert.True(t, a1.Equals(alt, true))
	assert.False(t, a1.Equals(alt, false))

	ac1 := MustAllele("AC", false)
	ac2 := MustAllele("ac", false)
	assert.True(t, ac1.Equals(ac2, false))
	assert.Equal(t, "AC", ac2.Bases())

	assert.Same(t, NoCall, MustAllele(".", false))
	assert.Same(t, SpanningDeletion, MustAllele("*", false))
}

func TestNewAllele_Kinds(t *testing.T) {
	tests := []struct {
		bases    string
		symbolic bool
	}{
		{"<DEL>", true},
		{"<INS:ME:ALU>", true},
		{"G]17:198982]", true},
		{"]13:123456]T", true},
		{".A", true},
		{"G.", true},
		{"ACGTN", false},
	}
	for _, tt := range tests {
		t.Run(tt.bases, func(t *testing.T) {
			a, err := NewAllele(tt.bases, false)
			require.NoError(t, err)
			assert.Equal(t, tt.symbolic, a.IsSymbolic())
			assert.Equal(t, tt.bases, a.DisplayString())
		})
	}
}

func TestNewAllele_Errors(t *testing.T) {
	tests := []struct {
		name  string
		bases string
		ref   bool
	}{
		{"empty", "", false},
		{"symbolic reference", "<DEL>", true},
		{"breakend reference", "G]17:198982]", true},
		{"no-call reference", ".", true},
		{"spanning deletion reference", "*", true},
		{"bad base", "AXG", false},
		{"legacy indel code", "I", false},
		{"dash", "-", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAllele(tt.bases, tt.ref)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}

func TestAllele_Strings(t *testing.T) {
	assert.Equal(t, "A*", MustAllele("A", true).String())
	assert.Equal(t, "T", MustAllele("T", false).String())
	assert.Equal(t, ".", NoCall.DisplayString())
	assert.Equal(t, 0, NoCall.Len())
	assert.True(t, NoCall.IsNoCall())
	assert.False(t, NoCall.IsCalled())
}
