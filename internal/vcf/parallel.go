package vcf

import (
	"io"
	"runtime"
	"sync"

	"github.com/inodb/vibe-vcf/internal/header"
	"github.com/inodb/vibe-vcf/internal/intern"
	"github.com/inodb/vibe-vcf/internal/variant"
)

// WorkItem holds a raw record line ready for decoding.
type WorkItem struct {
	Seq        int
	Line       string
	LineNumber int
}

// WorkResult holds the decoded variant for a single line.
type WorkResult struct {
	Seq     int
	Variant *variant.VariantContext
	Err     error
}

// FeedLines reads the remaining record lines of r and sends them,
// numbered in file order, to the returned channel. The read error, if
// any, is sent on the error channel after the items channel is closed.
func FeedLines(r *Reader) (<-chan WorkItem, <-chan error) {
	items := make(chan WorkItem, 256)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(items)
		for seq := 0; ; seq++ {
			line, n, err := r.NextLine()
			if err == io.EOF {
				return
			}
			if err != nil {
				errc <- err
				return
			}
			items <- WorkItem{Seq: seq, Line: line, LineNumber: n}
		}
	}()
	return items, errc
}

// ParallelDecode decodes items against h on a pool of workers, each
// owning a Codec that shares one interner with the others. Workers also
// force the genotypes, so results carry no lazy payload. Results arrive
// in completion order; OrderedCollect restores file order. workers <= 0
// means runtime.NumCPU().
func ParallelDecode(h *header.Header, items <-chan WorkItem, workers int, opts Options) <-chan WorkResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if opts.Interner == nil {
		opts.Interner = intern.New()
	}

	results := make(chan WorkResult, 2*workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			codec := NewCodecForHeader(h, opts)
			for item := range items {
				vc, err := codec.decodeAt(item.Line, item.LineNumber)
				if err == nil {
					err = vc.Genotypes().Force()
				}
				results <- WorkResult{Seq: item.Seq, Variant: vc, Err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

// OrderedCollect calls fn for each result in file order, holding back
// results that arrive early. When fn fails the remaining results are
// drained so the workers can exit, and the error is returned.
func OrderedCollect(results <-chan WorkResult, fn func(WorkResult) error) error {
	held := make(map[int]WorkResult)
	next := 0
	for res := range results {
		held[res.Seq] = res
		for r, ok := held[next]; ok; r, ok = held[next] {
			delete(held, next)
			next++
			if err := fn(r); err != nil {
				for range results {
				}
				return err
			}
		}
	}
	return nil
}
