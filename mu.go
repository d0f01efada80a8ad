package orcjit

import "orcjit/internal/strpool"

// MaterializationUnit is a lazy producer of one or more symbol definitions.
// The engine invokes Materialize at most once, after the MU has been
// claimed by a lookup; it must own the names it returns from Names()
// exclusively until then.
type MaterializationUnit interface {
	// Names declares, once, the names this MU will produce and their
	// flags. The engine calls this exactly once, when the MU is added to a
	// DynamicLibrary.
	Names() map[string]SymbolFlags
	// Materialize runs on whatever goroutine the session's Dispatcher
	// chooses. It must eventually call exactly one of mr.NotifyResolved
	// (followed by mr.NotifyEmitted) or mr.FailMaterialization — or hand
	// its names off entirely via mr.Delegate/mr.Replace.
	Materialize(mr *MaterializationResponsibility)
	// Discard is invoked when name (one of this MU's declared names) is
	// superseded by a stronger definition or removed before materialization.
	Discard(lib *DynamicLibrary, name string)
	// OnDestroy is invoked once every declared name has been claimed away
	// via Discard, without Materialize ever having run.
	OnDestroy()
}

// NopLifecycle is embeddable by simple MUs that have no Discard/OnDestroy
// side effects of their own.
type NopLifecycle struct{}

func (NopLifecycle) Discard(*DynamicLibrary, string) {}
func (NopLifecycle) OnDestroy()                      {}

// MaterializationResponsibility is the handle a running MU uses to publish
// results. Every method acquires the owning session's lock internally and
// is safe to call from whatever goroutine is running Materialize.
type MaterializationResponsibility struct {
	session *ExecutionSession
	lib     *DynamicLibrary
	names   map[strpool.ID]SymbolFlags
	resolved map[strpool.ID]struct{}
	emitted bool
	failed  bool
	done    bool // emitted, failed, delegated-away-entirely, or replaced
}

// GetRequestedSymbols returns the subset of this MR's declared names that
// currently have at least one live query attached, for partial
// materialization: an MU can resolve only what's actually wanted and
// Delegate the rest.
func (mr *MaterializationResponsibility) GetRequestedSymbols() []string {
	s := mr.session
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for id := range mr.names {
		rec := mr.lib.symbols[id]
		if rec == nil {
			continue
		}
		if len(rec.waitResolved) > 0 || len(rec.waitReady) > 0 {
			out = append(out, s.pool.MustLookup(id))
		}
	}
	return out
}

// NotifyResolved publishes addresses for every name this MR still owns.
// Every declared name must be covered in one call; partial resolution is
// achieved by first calling Delegate to shed names this MR doesn't want to
// resolve yet.
func (mr *MaterializationResponsibility) NotifyResolved(addrs map[string]uint64) error {
	s := mr.session
	s.mu.Lock()

	if mr.done || mr.failed {
		s.mu.Unlock()
		return &Error{Kind: KindFailedToMaterialize, Names: mr.declaredNames()}
	}

	resolved := make(map[strpool.ID]uint64, len(mr.names))
	var missing []string
	for id := range mr.names {
		if _, already := mr.resolved[id]; already {
			continue
		}
		name := s.pool.MustLookup(id)
		addr, ok := addrs[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		resolved[id] = addr
	}
	if len(missing) > 0 {
		s.mu.Unlock()
		return &Error{Kind: KindSymbolsNotFound, Names: missing}
	}

	var toDeliver []delivery
	for id, addr := range resolved {
		rec := mr.lib.symbols[id]
		rec.addr = addr
		rec.stage = StageResolved
		mr.resolved[id] = struct{}{}
		s.graph.Resolved(nodeKey{mr.lib.id, id})

		sym := EvaluatedSymbol{Address: addr, Flags: rec.flags}
		for _, q := range rec.waitResolved {
			q.satisfy(nodeKey{mr.lib.id, id}, sym)
			if q.readyToFire() {
				toDeliver = append(toDeliver, delivery{q: q})
			}
		}
		rec.waitResolved = nil
	}

	s.mu.Unlock()
	s.flush(toDeliver)
	return nil
}

// NotifyEmitted marks every declared name Emitted, which may promote this
// MR's symbols (and any dependents already emitted) to Ready.
func (mr *MaterializationResponsibility) NotifyEmitted() error {
	s := mr.session
	s.mu.Lock()

	if mr.done || mr.failed {
		s.mu.Unlock()
		return &Error{Kind: KindFailedToMaterialize, Names: mr.declaredNames()}
	}
	if len(mr.resolved) != len(mr.names) {
		s.mu.Unlock()
		return &Error{Kind: KindSymbolsNotFound, Names: mr.unresolvedNames(s)}
	}

	mr.emitted = true
	mr.done = true

	var toDeliver []delivery
	for id := range mr.names {
		promoted := s.graph.Emit(nodeKey{mr.lib.id, id})
		for _, key := range promoted {
			rec := s.libsByID[key.lib].symbols[key.name]
			rec.stage = StageReady
			sym := EvaluatedSymbol{Address: rec.addr, Flags: rec.flags}
			for _, q := range rec.waitReady {
				q.satisfy(key, sym)
				if q.readyToFire() {
					toDeliver = append(toDeliver, delivery{q: q})
				}
			}
			rec.waitReady = nil
		}
	}

	s.mu.Unlock()
	s.flush(toDeliver)
	return nil
}

// FailMaterialization moves every declared name to StageFailed and fails
// every query waiting on any of them with KindFailedToMaterialize, carrying
// this MR's full declared name set.
func (mr *MaterializationResponsibility) FailMaterialization() {
	s := mr.session
	s.mu.Lock()

	if mr.done || mr.failed {
		s.mu.Unlock()
		return
	}
	mr.failed = true
	mr.done = true
	names := mr.declaredNames()
	failErr := &Error{Kind: KindFailedToMaterialize, Names: names}

	var toDeliver []delivery
	for id := range mr.names {
		rec := mr.lib.symbols[id]
		rec.stage = StageFailed
		for _, q := range rec.waitResolved {
			toDeliver = append(toDeliver, delivery{q: q, err: failErr})
		}
		for _, q := range rec.waitReady {
			toDeliver = append(toDeliver, delivery{q: q, err: failErr})
		}
		rec.waitResolved = nil
		rec.waitReady = nil
		s.graph.Remove(nodeKey{mr.lib.id, id})
	}

	s.mu.Unlock()
	s.flush(toDeliver)
}

// DefineMaterializing adds new names to this MR's declared set mid-flight.
// The names must not collide with any existing definition in the DL.
func (mr *MaterializationResponsibility) DefineMaterializing(additions map[string]SymbolFlags) error {
	s := mr.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if mr.done || mr.failed {
		return &Error{Kind: KindFailedToMaterialize, Names: mr.declaredNames()}
	}

	var dup []string
	for name := range additions {
		if _, exists := mr.lib.symbols[s.pool.Intern(name)]; exists {
			dup = append(dup, name)
		}
	}
	if len(dup) > 0 {
		return errDuplicateDefinition(dup)
	}

	for name, flags := range additions {
		id := s.pool.Intern(name)
		mr.lib.symbols[id] = &symbolRecord{
			name:  id,
			stage: StageMaterializing,
			flags: flags,
			mr:    mr,
		}
		mr.names[id] = flags
		s.graph.AddNode(nodeKey{mr.lib.id, id})
	}
	return nil
}

// Delegate splits names off this MR into a new, independent MR for the same
// library. The original MR no longer owns them.
func (mr *MaterializationResponsibility) Delegate(names []string) (*MaterializationResponsibility, error) {
	s := mr.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if mr.done || mr.failed {
		return nil, &Error{Kind: KindFailedToMaterialize, Names: mr.declaredNames()}
	}

	child := &MaterializationResponsibility{
		session:  s,
		lib:      mr.lib,
		names:    make(map[strpool.ID]SymbolFlags, len(names)),
		resolved: make(map[strpool.ID]struct{}),
	}

	var unknown []string
	for _, name := range names {
		id := s.pool.Intern(name)
		flags, ok := mr.names[id]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		child.names[id] = flags
		if _, wasResolved := mr.resolved[id]; wasResolved {
			child.resolved[id] = struct{}{}
			delete(mr.resolved, id)
		}
		delete(mr.names, id)
		mr.lib.symbols[id].mr = child
	}
	if len(unknown) > 0 {
		return nil, errSymbolsNotFound(unknown)
	}
	return child, nil
}

// Replace hands responsibility for this MR's not-yet-resolved names back to
// the DL as a fresh lazy MU; already-resolved names remain with this MR.
func (mr *MaterializationResponsibility) Replace(newMU MaterializationUnit) error {
	s := mr.session
	s.mu.Lock()
	defer s.mu.Unlock()

	if mr.done || mr.failed {
		return &Error{Kind: KindFailedToMaterialize, Names: mr.declaredNames()}
	}

	declared := newMU.Names()
	group := &materializerGroup{mu: newMU, lib: mr.lib, remaining: make(map[strpool.ID]struct{}, len(declared))}

	var mismatch []string
	for name := range declared {
		id := s.pool.Intern(name)
		if _, owned := mr.names[id]; !owned {
			mismatch = append(mismatch, name)
			continue
		}
		if _, already := mr.resolved[id]; already {
			mismatch = append(mismatch, name)
		}
	}
	for id := range mr.names {
		if _, already := mr.resolved[id]; already {
			continue
		}
		if _, declared := declared[s.pool.MustLookup(id)]; !declared {
			mismatch = append(mismatch, s.pool.MustLookup(id))
		}
	}
	if len(mismatch) > 0 {
		return &Error{Kind: KindDuplicateDefinition, Names: mismatch}
	}

	for name, flags := range declared {
		id := s.pool.Intern(name)
		rec := mr.lib.symbols[id]
		rec.stage = StageNeverSearched
		rec.flags = flags
		rec.owner = group
		rec.mr = nil
		group.remaining[id] = struct{}{}
		delete(mr.names, id)
	}
	return nil
}

// AddDependencies declares that name (one of this MR's declared names)
// depends on the listed (library, names) pairs. Self-dependencies and
// dependencies already Ready are filtered out, per spec.md §4.5.
func (mr *MaterializationResponsibility) AddDependencies(name string, deps map[*DynamicLibrary][]string) error {
	s := mr.session
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.pool.Intern(name)
	if _, owned := mr.names[id]; !owned {
		return errSymbolsNotFound([]string{name})
	}
	from := nodeKey{mr.lib.id, id}
	for lib, names := range deps {
		for _, dn := range names {
			did := s.pool.Intern(dn)
			to := nodeKey{lib.id, did}
			if to == from {
				continue
			}
			if s.graph.IsReady(to) {
				continue
			}
			s.graph.AddDependency(from, to)
		}
	}
	return nil
}

// AddDependenciesForAll applies AddDependencies to every name this MR
// currently declares.
func (mr *MaterializationResponsibility) AddDependenciesForAll(deps map[*DynamicLibrary][]string) error {
	for id := range mr.names {
		name := mr.session.pool.MustLookup(id)
		if err := mr.AddDependencies(name, deps); err != nil {
			return err
		}
	}
	return nil
}

func (mr *MaterializationResponsibility) declaredNames() []string {
	out := make([]string, 0, len(mr.names))
	for id := range mr.names {
		out = append(out, mr.session.pool.MustLookup(id))
	}
	return out
}

func (mr *MaterializationResponsibility) unresolvedNames(s *ExecutionSession) []string {
	var out []string
	for id := range mr.names {
		if _, ok := mr.resolved[id]; !ok {
			out = append(out, s.pool.MustLookup(id))
		}
	}
	return out
}
