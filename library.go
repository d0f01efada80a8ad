package orcjit

import "orcjit/internal/strpool"

// AliasTarget names the existing symbol an alias or re-export should mirror,
// plus the flags the new name should carry.
type AliasTarget struct {
	Source string
	Flags  SymbolFlags
}

// DynamicLibrary is a named symbol namespace: a symbol table plus an
// ordered chain of generators consulted when a lookup finds no existing
// definition.
type DynamicLibrary struct {
	session    *ExecutionSession
	id         LibraryID
	name       string
	symbols    map[strpool.ID]*symbolRecord
	generators []Generator
}

// Name returns the library's name, fixed at CreateLibrary time.
func (lib *DynamicLibrary) Name() string { return lib.name }

// DefineAbsolute installs concrete, already-resolved definitions. Each name
// has no owning MU and is Ready as soon as it is defined, so a lookup at any
// stage is satisfied without a materialization step.
func (lib *DynamicLibrary) DefineAbsolute(defs map[string]EvaluatedSymbol) error {
	s := lib.session
	s.mu.Lock()
	var toDeliver []delivery
	defer func() { s.mu.Unlock(); s.flush(toDeliver) }()

	ids := make(map[strpool.ID]EvaluatedSymbol, len(defs))
	for name, sym := range defs {
		ids[s.pool.Intern(name)] = sym
	}
	if dup := lib.checkCollisions(ids); len(dup) > 0 {
		return errDuplicateDefinition(dup)
	}
	for id, sym := range ids {
		lib.supersede(id)
		lib.symbols[id] = &symbolRecord{
			name:  id,
			stage: StageResolved,
			flags: sym.Flags,
			addr:  sym.Address,
		}
		s.graph.AddNode(nodeKey{lib.id, id})
		s.graph.Resolved(nodeKey{lib.id, id})
		for _, key := range s.graph.Emit(nodeKey{lib.id, id}) {
			rec := s.libsByID[key.lib].symbols[key.name]
			rec.stage = StageReady
			for _, q := range rec.waitReady {
				q.satisfy(key, EvaluatedSymbol{Address: rec.addr, Flags: rec.flags})
				if q.readyToFire() {
					toDeliver = append(toDeliver, delivery{q: q})
				}
			}
			rec.waitReady = nil
		}
	}
	return nil
}

// DefineMaterializer installs a lazy producer: mu.Materialize runs only
// once a lookup actually claims one of its declared names.
func (lib *DynamicLibrary) DefineMaterializer(mu MaterializationUnit) error {
	s := lib.session
	s.mu.Lock()
	defer s.mu.Unlock()
	return lib.installMU(mu)
}

func (lib *DynamicLibrary) installMU(mu MaterializationUnit) error {
	s := lib.session
	declared := mu.Names()
	ids := make(map[strpool.ID]SymbolFlags, len(declared))
	for name, flags := range declared {
		ids[s.pool.Intern(name)] = flags
	}
	evalIDs := make(map[strpool.ID]EvaluatedSymbol, len(ids))
	for id := range ids {
		evalIDs[id] = EvaluatedSymbol{}
	}
	if dup := lib.checkCollisions(evalIDs); len(dup) > 0 {
		return errDuplicateDefinition(dup)
	}

	group := &materializerGroup{mu: mu, lib: lib, remaining: make(map[strpool.ID]struct{}, len(ids))}
	for id := range ids {
		group.remaining[id] = struct{}{}
	}
	for id, flags := range ids {
		lib.supersede(id)
		lib.symbols[id] = &symbolRecord{
			name:  id,
			stage: StageNeverSearched,
			flags: flags,
			owner: group,
		}
		s.graph.AddNode(nodeKey{lib.id, id})
	}
	return nil
}

// DefineAliases installs names that mirror an existing (or not-yet-defined)
// symbol in this same library under possibly different flags.
func (lib *DynamicLibrary) DefineAliases(aliases map[string]AliasTarget) error {
	s := lib.session
	s.mu.Lock()
	defer s.mu.Unlock()
	return lib.installAliasMU(lib, aliases, true)
}

// defineReexports installs names that mirror symbols in another library.
// Exported by the generator adapter; callers needing re-exports directly
// should use DefineReexports.
func (lib *DynamicLibrary) defineReexports(from *DynamicLibrary, aliases map[string]AliasTarget) error {
	s := lib.session
	s.mu.Lock()
	defer s.mu.Unlock()
	return lib.installAliasMU(from, aliases, false)
}

// DefineReexports installs names in lib that mirror exported symbols of
// from. Unlike DefineAliases, only symbols from currently marks Exported are
// visible to the re-export, matching ordinary cross-DL lookup rules.
func (lib *DynamicLibrary) DefineReexports(from *DynamicLibrary, aliases map[string]AliasTarget) error {
	return lib.defineReexports(from, aliases)
}

func (lib *DynamicLibrary) installAliasMU(source *DynamicLibrary, aliases map[string]AliasTarget, matchNonExported bool) error {
	s := lib.session
	ids := make(map[strpool.ID]EvaluatedSymbol, len(aliases))
	for name := range aliases {
		ids[s.pool.Intern(name)] = EvaluatedSymbol{}
	}
	if dup := lib.checkCollisions(ids); len(dup) > 0 {
		return errDuplicateDefinition(dup)
	}

	// Each alias gets its own MU and materializer group: a call that
	// installs several aliases at once must not let materializing one drag
	// the others along (spec.md §8, "Re-exports laziness").
	for name, target := range aliases {
		id := s.pool.Intern(name)
		mu := &aliasMU{sourceLib: source, name: name, target: target, matchNonExported: matchNonExported}
		group := &materializerGroup{mu: mu, lib: lib, remaining: map[strpool.ID]struct{}{id: {}}}
		lib.supersede(id)
		lib.symbols[id] = &symbolRecord{
			name:  id,
			stage: StageNeverSearched,
			flags: target.Flags,
			owner: group,
		}
		s.graph.AddNode(nodeKey{lib.id, id})
	}
	return nil
}

// checkCollisions reports which of ids are already defined by a definition
// that is not a not-yet-materializing Weak one.
func (lib *DynamicLibrary) checkCollisions(ids map[strpool.ID]EvaluatedSymbol) []string {
	var dup []string
	for id := range ids {
		rec, exists := lib.symbols[id]
		if !exists {
			continue
		}
		if rec.flags.Has(FlagWeak) && rec.stage == StageNeverSearched {
			continue // superseded below
		}
		dup = append(dup, lib.session.pool.MustLookup(id))
	}
	return dup
}

// supersede discards id's existing NeverSearched+Weak definition, if any,
// notifying its owning MU and destroying it if it thereby loses its last
// name. No-op if id has no existing definition.
func (lib *DynamicLibrary) supersede(id strpool.ID) {
	rec, exists := lib.symbols[id]
	if !exists {
		return
	}
	name := lib.session.pool.MustLookup(id)
	lib.discardFromOwner(rec, name)
}

func (lib *DynamicLibrary) discardFromOwner(rec *symbolRecord, name string) {
	if rec.owner == nil {
		return
	}
	group := rec.owner
	delete(group.remaining, rec.name)
	group.mu.Discard(lib, name)
	if len(group.remaining) == 0 && !group.started {
		group.mu.OnDestroy()
	}
}

// AddGenerator appends g to the ordered generator chain consulted when a
// lookup finds no existing definition for a requested name.
func (lib *DynamicLibrary) AddGenerator(g Generator) {
	s := lib.session
	s.mu.Lock()
	defer s.mu.Unlock()
	lib.generators = append(lib.generators, g)
}

// Remove erases definitions per spec.md §4.2: unknown names fail the whole
// call with SymbolsNotFound; any name currently Materializing fails the
// whole call with SymbolsCouldNotBeRemoved; otherwise every named symbol is
// erased, any not-yet-materialized owning MU is notified via Discard, and
// any query still waiting on a removed name's Resolved/Ready transition is
// failed rather than stranded (spec.md §5: removal surfaces to a query as
// failure).
func (lib *DynamicLibrary) Remove(names []string) error {
	s := lib.session
	s.mu.Lock()

	ids := make([]strpool.ID, 0, len(names))
	var unknown []string
	for _, name := range names {
		id := s.pool.Intern(name)
		if _, ok := lib.symbols[id]; !ok {
			unknown = append(unknown, name)
			continue
		}
		ids = append(ids, id)
	}
	if len(unknown) > 0 {
		s.mu.Unlock()
		return errSymbolsNotFound(unknown)
	}

	var materializing []string
	for _, id := range ids {
		if lib.symbols[id].stage == StageMaterializing {
			materializing = append(materializing, s.pool.MustLookup(id))
		}
	}
	if len(materializing) > 0 {
		s.mu.Unlock()
		return errCouldNotBeRemoved(materializing)
	}

	removedErr := errFailedToMaterialize(names)
	var toDeliver []delivery
	for _, id := range ids {
		rec := lib.symbols[id]
		name := s.pool.MustLookup(id)
		lib.discardFromOwner(rec, name)
		for _, q := range rec.waitResolved {
			toDeliver = append(toDeliver, delivery{q: q, err: removedErr})
		}
		for _, q := range rec.waitReady {
			toDeliver = append(toDeliver, delivery{q: q, err: removedErr})
		}
		rec.waitResolved = nil
		rec.waitReady = nil
		s.graph.Remove(nodeKey{lib.id, id})
		delete(lib.symbols, id)
	}

	s.mu.Unlock()
	s.flush(toDeliver)
	return nil
}

// SymbolInfo is a read-only view of one symbol's current state, returned by
// Snapshot for introspection and by the CLI for rendering.
type SymbolInfo struct {
	Name    string
	Stage   Stage
	Flags   SymbolFlags
	Address uint64
}

// Snapshot returns a read-only copy of every symbol currently defined in
// lib, for tests and the CLI's run/watch/snapshot commands.
func (lib *DynamicLibrary) Snapshot() []SymbolInfo {
	s := lib.session
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SymbolInfo, 0, len(lib.symbols))
	for id, rec := range lib.symbols {
		out = append(out, SymbolInfo{
			Name:    s.pool.MustLookup(id),
			Stage:   rec.stage,
			Flags:   rec.flags,
			Address: rec.addr,
		})
	}
	return out
}
