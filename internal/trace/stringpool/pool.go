// Package stringpool interns strings decoded from trace data. Handles are
// stable for the lifetime of the pool and outlive any per-bundle table that
// references them.
package stringpool

import "sync"

// ID is a stable handle to an interned string.
type ID uint32

// Pool is an insert-only string store. Equal byte sequences always intern to
// the same ID.
type Pool struct {
	mu   sync.RWMutex
	ids  map[string]ID
	strs []string
}

func New() *Pool {
	return &Pool{ids: make(map[string]ID)}
}

// Intern registers b and returns its handle. The bytes are copied; callers
// may reuse b afterwards.
func (p *Pool) Intern(b []byte) ID {
	p.mu.RLock()
	id, ok := p.ids[string(b)]
	p.mu.RUnlock()
	if ok {
		return id
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.ids[string(b)]; ok {
		return id
	}
	s := string(b)
	id = ID(len(p.strs))
	p.strs = append(p.strs, s)
	p.ids[s] = id
	return id
}

// Get returns the string for a handle.
func (p *Pool) Get(id ID) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if int(id) >= len(p.strs) {
		return "", false
	}
	return p.strs[id], true
}

// Len returns the number of distinct interned strings.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.strs)
}
