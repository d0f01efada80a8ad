// Package orcjit implements a JIT symbol-resolution core: interned names,
// dynamic libraries, lazy materialization, asynchronous lookup, and a
// dependency/readiness engine that delivers Resolved and Ready notifications
// even across circular cross-symbol dependencies. It does not generate
// code, load objects, or move bytes across a process boundary — addresses
// and flags are opaque values the caller's own compile/link backend
// supplies through a MaterializationUnit.
package orcjit

import (
	"fmt"
	"sync"

	"orcjit/internal/readygraph"
	"orcjit/internal/strpool"
)

// ExecutionSession is the root object: it owns the string pool and every
// DynamicLibrary created against it, and is the entry point for lookups. A
// single coarse lock serializes all state transitions; completion callbacks
// and MU dispatch always run after the lock is released.
type ExecutionSession struct {
	mu         sync.Mutex
	pool       *strpool.Pool
	libs       map[string]*DynamicLibrary
	libsByID   map[LibraryID]*DynamicLibrary
	nextLibID  LibraryID
	graph      *readygraph.Graph[nodeKey]
	dispatcher Dispatcher
}

// NewExecutionSession builds an empty session with the inline dispatcher.
func NewExecutionSession() *ExecutionSession {
	return &ExecutionSession{
		pool:       strpool.New(0),
		libs:       make(map[string]*DynamicLibrary),
		libsByID:   make(map[LibraryID]*DynamicLibrary),
		graph:      readygraph.New[nodeKey](),
		dispatcher: InlineDispatcher,
	}
}

// SetDispatcher installs the function that runs a claimed MU's Materialize
// call, either inline (the default) or handed off to a worker.
func (s *ExecutionSession) SetDispatcher(d Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d == nil {
		d = InlineDispatcher
	}
	s.dispatcher = d
}

// CreateLibrary creates and returns a new, empty DynamicLibrary. It fails if
// name is already in use within this session.
func (s *ExecutionSession) CreateLibrary(name string) (*DynamicLibrary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.libs[name]; exists {
		return nil, fmt.Errorf("orcjit: library %q already exists", name)
	}
	lib := &DynamicLibrary{
		session: s,
		id:      s.nextLibID,
		name:    name,
		symbols: make(map[strpool.ID]*symbolRecord),
	}
	s.libs[name] = lib
	s.libsByID[lib.id] = lib
	s.nextLibID++
	return lib, nil
}

// Library looks up a previously created library by name.
func (s *ExecutionSession) Library(name string) (*DynamicLibrary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lib, ok := s.libs[name]
	return lib, ok
}

// LibraryNames returns the name of every library created in this session,
// in no particular order. Intended for introspection (the CLI's table
// rendering); the engine itself never iterates libraries this way.
func (s *ExecutionSession) LibraryNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.libs))
	for name := range s.libs {
		out = append(out, name)
	}
	return out
}

type delivery struct {
	q   *Query
	err error
}

func (s *ExecutionSession) flush(list []delivery) {
	for _, d := range list {
		if d.q.done {
			continue
		}
		d.q.done = true
		if d.err != nil {
			d.q.onComplete(nil, d.err)
		} else {
			d.q.onComplete(d.q.results, nil)
		}
	}
}

type dispatchJob struct {
	lib *DynamicLibrary
	mu  MaterializationUnit
	mr  *MaterializationResponsibility
}

// Lookup asynchronously resolves names against searchList, in order, to
// required (or beyond). onComplete fires exactly once, outside the session
// lock, either with every requested name mapped to its EvaluatedSymbol, or
// with a *Error.
func (s *ExecutionSession) Lookup(searchList []SearchEntry, names []string, required Stage, onComplete CompletionCallback) {
	s.mu.Lock()

	remaining := make(map[string]struct{}, len(names))
	for _, n := range names {
		remaining[n] = struct{}{}
	}
	claimed := make(map[string]*DynamicLibrary, len(names))

	for _, entry := range searchList {
		if len(remaining) == 0 {
			break
		}
		lib := entry.Lib
		for n := range remaining {
			id := s.pool.Intern(n)
			rec, exists := lib.symbols[id]
			if !exists {
				continue
			}
			if !entry.MatchNonExported && !rec.flags.Has(FlagExported) {
				continue
			}
			claimed[n] = lib
			delete(remaining, n)
		}

		for _, g := range lib.generators {
			if len(remaining) == 0 {
				break
			}
			ask := make([]string, 0, len(remaining))
			for n := range remaining {
				ask = append(ask, n)
			}

			s.mu.Unlock()
			got, err := g.TryGenerate(lib, ask)
			s.mu.Lock()

			if err != nil {
				s.mu.Unlock()
				onComplete(nil, errGenerator(err))
				return
			}
			for _, n := range got {
				if _, stillWanted := remaining[n]; !stillWanted {
					continue
				}
				id := s.pool.Intern(n)
				if _, defined := lib.symbols[id]; !defined {
					continue
				}
				claimed[n] = lib
				delete(remaining, n)
			}
		}
	}

	if len(remaining) > 0 {
		unmatched := make([]string, 0, len(remaining))
		for n := range remaining {
			unmatched = append(unmatched, n)
		}
		s.mu.Unlock()
		onComplete(nil, errSymbolsNotFound(unmatched))
		return
	}

	byKey := make(map[nodeKey]string, len(names))
	for n, lib := range claimed {
		byKey[nodeKey{lib.id, s.pool.Intern(n)}] = n
	}
	q := newQuery(required, byKey, onComplete)

	var failedNames []string
	toStart := make(map[*materializerGroup]struct{})
	for n, lib := range claimed {
		id := s.pool.Intern(n)
		rec := lib.symbols[id]
		key := nodeKey{lib.id, id}

		if rec.stage == StageFailed {
			failedNames = append(failedNames, n)
			continue
		}
		if rec.stage.atLeast(required) {
			q.satisfy(key, EvaluatedSymbol{Address: rec.addr, Flags: rec.flags})
			continue
		}
		if required == StageReady {
			rec.waitReady = append(rec.waitReady, q)
		} else {
			rec.waitResolved = append(rec.waitResolved, q)
		}
		if rec.stage == StageNeverSearched && rec.owner != nil {
			toStart[rec.owner] = struct{}{}
		}
	}

	var jobs []dispatchJob
	for group := range toStart {
		mr := s.startMaterialization(group)
		jobs = append(jobs, dispatchJob{lib: group.lib, mu: group.mu, mr: mr})
	}

	var toDeliver []delivery
	if len(failedNames) > 0 {
		err := q.fail(errFailedToMaterialize(failedNames))
		toDeliver = append(toDeliver, delivery{q: q, err: err})
	} else if q.readyToFire() {
		toDeliver = append(toDeliver, delivery{q: q})
	}

	s.mu.Unlock()

	for _, j := range jobs {
		job := j
		s.dispatcher(job.lib, func() { job.mu.Materialize(job.mr) })
	}
	s.flush(toDeliver)
}

// startMaterialization claims group's entire declared name set and returns
// the MR that now exclusively owns publish rights for it. Call with the
// session lock held.
func (s *ExecutionSession) startMaterialization(group *materializerGroup) *MaterializationResponsibility {
	group.started = true
	names := make(map[strpool.ID]SymbolFlags, len(group.remaining))
	for id := range group.remaining {
		names[id] = group.lib.symbols[id].flags
	}
	mr := &MaterializationResponsibility{
		session:  s,
		lib:      group.lib,
		names:    names,
		resolved: make(map[strpool.ID]struct{}),
	}
	for id := range names {
		rec := group.lib.symbols[id]
		rec.stage = StageMaterializing
		rec.owner = nil
		rec.mr = mr
	}
	return mr
}

// LookupFlags reports the declared flags of names in lib, without
// materializing anything: a symbol whose MU has not yet run still reports
// the flags it declared at construction. Generators may run and define new
// symbols, but those definitions are never claimed for materialization
// here (spec.md §8, property 5: "Generator laziness").
func (s *ExecutionSession) LookupFlags(lib *DynamicLibrary, names []string) (map[string]SymbolFlags, error) {
	s.mu.Lock()

	remaining := make(map[string]struct{}, len(names))
	for _, n := range names {
		remaining[n] = struct{}{}
	}
	out := make(map[string]SymbolFlags, len(names))

	for n := range remaining {
		id := s.pool.Intern(n)
		if rec, ok := lib.symbols[id]; ok {
			out[n] = rec.flags
			delete(remaining, n)
		}
	}

	for _, g := range lib.generators {
		if len(remaining) == 0 {
			break
		}
		ask := make([]string, 0, len(remaining))
		for n := range remaining {
			ask = append(ask, n)
		}

		s.mu.Unlock()
		got, err := g.TryGenerate(lib, ask)
		s.mu.Lock()

		if err != nil {
			s.mu.Unlock()
			return nil, errGenerator(err)
		}
		for _, n := range got {
			if _, stillWanted := remaining[n]; !stillWanted {
				continue
			}
			id := s.pool.Intern(n)
			rec, defined := lib.symbols[id]
			if !defined {
				continue
			}
			out[n] = rec.flags
			delete(remaining, n)
		}
	}

	s.mu.Unlock()

	if len(remaining) > 0 {
		missing := make([]string, 0, len(remaining))
		for n := range remaining {
			missing = append(missing, n)
		}
		return nil, errSymbolsNotFound(missing)
	}
	return out, nil
}

// BlockingLookup is sugar for Lookup at required stage, waiting for the
// callback on the calling goroutine.
func (s *ExecutionSession) BlockingLookup(searchList []SearchEntry, names []string, required Stage) (map[string]EvaluatedSymbol, error) {
	type outcome struct {
		results map[string]EvaluatedSymbol
		err     error
	}
	ch := make(chan outcome, 1)
	s.Lookup(searchList, names, required, func(results map[string]EvaluatedSymbol, err error) {
		ch <- outcome{results, err}
	})
	o := <-ch
	return o.results, o.err
}
