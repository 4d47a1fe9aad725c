// Package intern provides an explicitly scoped string interner. A Pool is
// created for a decoding session and handed to every codec taking part in
// it; when the session ends the pool is dropped with it.
package intern

import (
	"strings"
	"sync"
)

// Pool deduplicates strings. It is safe for concurrent use and only ever
// grows.
type Pool struct {
	mu      sync.RWMutex
	strings map[string]string
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{strings: make(map[string]string)}
}

// Intern returns the canonical instance of s. The first time a value is
// seen it is cloned so that the pool never pins a larger backing string
// (such as a whole input line).
func (p *Pool) Intern(s string) string {
	p.mu.RLock()
	v, ok := p.strings[s]
	p.mu.RUnlock()
	if ok {
		return v
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.strings[s]; ok {
		return v
	}
	v = strings.Clone(s)
	p.strings[v] = v
	return v
}

// Len returns the number of distinct strings held.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.strings)
}
