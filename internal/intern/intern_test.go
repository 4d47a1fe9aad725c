package intern

import (
	"fmt"
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestPool_ReturnsCanonicalInstance(t *testing.T) {
	p := New()
	line := "chr1\t100"

	a := p.Intern(line[:4])
	b := p.Intern("chr" + "1")

	assert.Equal(t, "chr1", a)
	assert.Equal(t, unsafe.StringData(a), unsafe.StringData(b))
	assert.Equal(t, 1, p.Len())
}

func TestPool_DoesNotPinInput(t *testing.T) {
	p := New()
	line := "chr2\tlots of trailing data"
	got := p.Intern(line[:4])
	assert.NotEqual(t, unsafe.StringData(line), unsafe.StringData(got))
}

func TestPool_Concurrent(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				p.Intern(fmt.Sprintf("chr%d", (i+w)%25))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 25, p.Len())
}
