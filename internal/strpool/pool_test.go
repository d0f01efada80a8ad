package strpool

import (
	"sync"
	"testing"
)

func TestInternReturnsSameID(t *testing.T) {
	p := New(0)
	a := p.Intern("Foo")
	b := p.Intern("Foo")
	if a != b {
		t.Fatalf("expected same id for repeated intern, got %v and %v", a, b)
	}
	c := p.Intern("Bar")
	if a == c {
		t.Fatalf("expected distinct ids for distinct strings")
	}
}

func TestLookupRoundTrip(t *testing.T) {
	p := New(0)
	id := p.Intern("Baz")
	s, ok := p.Lookup(id)
	if !ok || s != "Baz" {
		t.Fatalf("lookup(%v) = %q, %v; want Baz, true", id, s, ok)
	}
	if _, ok := p.Lookup(ID(999)); ok {
		t.Fatalf("expected invalid id to report not found")
	}
}

func TestInternConcurrentSafe(t *testing.T) {
	p := New(0)
	var wg sync.WaitGroup
	names := []string{"Foo", "Bar", "Baz", "Qux"}
	ids := make([][]ID, len(names))
	for i := range names {
		ids[i] = make([]ID, 50)
	}
	for i, name := range names {
		for j := range 50 {
			wg.Add(1)
			go func(i, j int, name string) {
				defer wg.Done()
				ids[i][j] = p.Intern(name)
			}(i, j, name)
		}
	}
	wg.Wait()
	for i := range names {
		for j := 1; j < len(ids[i]); j++ {
			if ids[i][j] != ids[i][0] {
				t.Fatalf("inconsistent id for %q: %v vs %v", names[i], ids[i][j], ids[i][0])
			}
		}
	}
}
