// Package strpool interns symbol names so that two handles denoting the same
// string always compare equal by value, letting the engine use plain map
// lookups and == instead of string comparison on a hot path.
package strpool

import (
	"sync"

	"fortio.org/safecast"
)

// ID is an interned string handle. The zero value denotes no string.
type ID uint32

// NoID is the handle of the empty, unset name.
const NoID ID = 0

// Pool interns strings under a shared lock. Safe for concurrent use from
// multiple dynamic libraries and lookup goroutines at once.
type Pool struct {
	mu    sync.RWMutex
	byID  []string
	index map[string]ID
}

// New builds an empty pool with an optional capacity hint.
func New(hint uint) *Pool {
	cap32, err := safecast.Conv[uint32](hint)
	if err != nil {
		cap32 = 0
	}
	p := &Pool{
		byID:  make([]string, 1, cap32+1),
		index: make(map[string]ID, cap32),
	}
	p.byID[0] = ""
	p.index[""] = NoID
	return p
}

// Intern returns the handle for s, allocating one if s was not seen before.
func (p *Pool) Intern(s string) ID {
	p.mu.RLock()
	if id, ok := p.index[s]; ok {
		p.mu.RUnlock()
		return id
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.index[s]; ok {
		return id
	}
	cpy := string([]byte(s))
	id, err := safecast.Conv[ID](len(p.byID))
	if err != nil {
		panic("strpool: interned string count overflow")
	}
	p.byID = append(p.byID, cpy)
	p.index[cpy] = id
	return id
}

// Lookup returns the string for id, if any.
func (p *Pool) Lookup(id ID) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if int(id) < 0 || int(id) >= len(p.byID) {
		return "", false
	}
	return p.byID[id], true
}

// MustLookup returns the string for id, panicking if id is not valid.
func (p *Pool) MustLookup(id ID) string {
	s, ok := p.Lookup(id)
	if !ok {
		panic("strpool: invalid id")
	}
	return s
}

// Len returns the number of distinct interned strings, including NoID.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byID)
}
