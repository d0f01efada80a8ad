package orcjit

// aliasMU is the MU installed by DefineAliases/DefineReexports, one per
// declared name. Each alias gets its own MU and materializer group so that
// claiming one name for materialization never pulls its siblings along:
// Materialize only runs once something actually looks up this specific
// name, so an alias whose source is never requested never forces the
// source's own MU to run (spec.md §8, "Re-exports laziness").
type aliasMU struct {
	NopLifecycle
	sourceLib        *DynamicLibrary
	name             string
	target           AliasTarget
	matchNonExported bool
}

func (a *aliasMU) Names() map[string]SymbolFlags {
	return map[string]SymbolFlags{a.name: a.target.Flags}
}

func (a *aliasMU) Materialize(mr *MaterializationResponsibility) {
	results, err := mr.session.BlockingLookup(
		[]SearchEntry{{Lib: a.sourceLib, MatchNonExported: a.matchNonExported}},
		[]string{a.target.Source},
		StageResolved,
	)
	if err != nil {
		mr.FailMaterialization()
		return
	}
	if err := mr.NotifyResolved(map[string]uint64{a.name: results[a.target.Source].Address}); err != nil {
		mr.FailMaterialization()
		return
	}
	_ = mr.NotifyEmitted()
}
