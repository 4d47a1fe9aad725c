package vcf

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParallelDecode_Ordered(t *testing.T) {
	var b strings.Builder
	b.WriteString(headerText("NA1", "NA2"))
	const n = 500
	for i := range n {
		b.WriteString(record("chr1", strconv.Itoa(i+1), ".", "A", "T", ".", ".", "DP="+strconv.Itoa(i), "GT:DP", "0/1:3", "1/1:"+strconv.Itoa(i)))
		b.WriteByte('\n')
	}

	r, err := NewReader(strings.NewReader(b.String()), Options{})
	require.NoError(t, err)
	items, errc := FeedLines(r)
	results := ParallelDecode(r.Header(), items, 4, Options{})

	next := 0
	err = OrderedCollect(results, func(res WorkResult) error {
		require.NoError(t, res.Err)
		assert.Equal(t, next, res.Seq)
		assert.Equal(t, next+1, res.Variant.Start())
		assert.False(t, res.Variant.Genotypes().IsLazy(), "workers decode genotypes")
		g, ok := res.Variant.Genotype("NA2")
		require.True(t, ok)
		assert.Equal(t, next, g.DP())
		next++
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, <-errc)
	assert.Equal(t, n, next)
}

func TestParallelDecode_Errors(t *testing.T) {
	text := headerText("NA1") +
		record("chr1", "1", ".", "A", "T", ".", ".", ".", "GT", "0/1") + "\n" +
		record("chr1", "2", ".", "A", "T", ".", ".", ".", "GT", "0/7") + "\n" +
		record("chr1", "3", ".", "A", "T", ".", ".", ".", "GT", "0/1") + "\n"

	r, err := NewReader(strings.NewReader(text), Options{})
	require.NoError(t, err)
	items, _ := FeedLines(r)
	results := ParallelDecode(r.Header(), items, 2, Options{})

	var seen []int
	err = OrderedCollect(results, func(res WorkResult) error {
		seen = append(seen, res.Seq)
		return res.Err
	})
	var pe *ParseError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, 19, pe.Line, "genotype errors carry the record line")
	assert.Equal(t, []int{0, 1}, seen)
}

func TestOrderedCollect_OutOfOrder(t *testing.T) {
	results := make(chan WorkResult, 4)
	for _, seq := range []int{2, 0, 3, 1} {
		results <- WorkResult{Seq: seq}
	}
	close(results)

	var got []int
	err := OrderedCollect(results, func(r WorkResult) error {
		got = append(got, r.Seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, got)
}
