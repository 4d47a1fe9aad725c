package split

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExact(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		n       int
		want    []string
		wantErr bool
	}{
		{"three fields", "a\tb\tc", 3, []string{"a", "b", "c"}, false},
		{"empty middle", "a\t\tc", 3, []string{"a", "", "c"}, false},
		{"trailing empty", "a\tb\t", 3, []string{"a", "b", ""}, false},
		{"single", "abc", 1, []string{"abc"}, false},
		{"too few", "a\tb", 3, nil, true},
		{"too many", "a\tb\tc\td", 3, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]string, tt.n)
			err := Exact(tt.input, '\t', dst)
			if tt.wantErr {
				var ce *CountError
				require.True(t, errors.As(err, &ce))
				assert.Equal(t, tt.n, ce.Want)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dst)
		})
	}
}

func TestExact_CountErrorReportsTotal(t *testing.T) {
	dst := make([]string, 2)
	err := Exact("a:b:c:d", ':', dst)
	var ce *CountError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 4, ce.Got)
	assert.Equal(t, "expected 2 tokens, found 4", ce.Error())
}

func TestBounded_Condense(t *testing.T) {
	dst := make([]string, 9)
	line := "1\t100\t.\tA\tT\t50\tPASS\t.\tGT\t0/1\t1/1"
	n := Bounded(line, '\t', dst, Condense)
	require.Equal(t, 9, n)
	assert.Equal(t, "1", dst[0])
	assert.Equal(t, ".", dst[7])
	assert.Equal(t, "GT\t0/1\t1/1", dst[8])
}

func TestBounded_FewerTokens(t *testing.T) {
	dst := make([]string, 9)
	n := Bounded("1\t100\t.\tA\tT\t50\tPASS\t.", '\t', dst, Condense)
	assert.Equal(t, 8, n)
	assert.Equal(t, ".", dst[7])
}

func TestBounded_TruncateDropsOverflow(t *testing.T) {
	dst := make([]string, 2)
	n := Bounded("a,b,c", ',', dst, 0)
	require.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, dst)
}

func TestBounded_DropTrailingEmpty(t *testing.T) {
	dst := make([]string, 5)
	n := Bounded("a:b::", ':', dst, DropTrailingEmpty)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a", "b"}, dst[:n])
}

func TestBounded_EmptyBuffer(t *testing.T) {
	assert.Equal(t, 0, Bounded("a,b", ',', nil, Condense))
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"A", "C", "G"}, Split("A,C,G", ','))
	assert.Equal(t, []string{""}, Split("", ','))
	assert.Equal(t, []string{"", ""}, Split(",", ','))
	assert.Equal(t, 3, Count("x;y;z", ';'))
}

func TestSplitter_ReusesBuffer(t *testing.T) {
	sp := NewSplitter(4)

	got := sp.Split("GT:DP:AD", ':')
	assert.Equal(t, []string{"GT", "DP", "AD"}, got)

	got = sp.Split("0/1:10", ':')
	assert.Equal(t, []string{"0/1", "10"}, got)
	assert.Equal(t, 4, cap(sp.buf))
}

func BenchmarkSplitter(b *testing.B) {
	sp := NewSplitter(16)
	line := "GT:AD:DP:GQ:PL\t0/1:10,5:15:99:255,0,255"
	for i := 0; i < b.N; i++ {
		sp.Split(line, ':')
	}
}
