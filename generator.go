package orcjit

// Generator is consulted during lookup for names not yet defined in a DL.
// TryGenerate receives the subset of the lookup's names still unclaimed; it
// must install any definitions it wants to supply via the DL's Define
// before returning, and report back the names it claimed. The engine never
// invokes the same generator reentrantly for the same name.
type Generator interface {
	TryGenerate(lib *DynamicLibrary, names []string) (claimed []string, err error)
}

// ReexportFilter decides whether a re-exports generator should handle name.
type ReexportFilter func(name string) bool

// MatchAll accepts every name; useful for a ReexportsGenerator that mirrors
// an entire target library.
func MatchAll(string) bool { return true }

// reexportsGenerator installs re-exports from Target for every requested
// name Filter accepts, under the same name (no renaming). It is exported via
// NewReexportsGenerator below.
type reexportsGenerator struct {
	target *DynamicLibrary
	filter ReexportFilter
	flags  SymbolFlags
}

// NewReexportsGenerator builds a Generator that, for any unclaimed lookup
// name accepted by filter, re-exports that name from target. Re-exported
// names materialize target's underlying definition only if something
// actually looks the alias up (spec.md §8, "Re-exports laziness").
func NewReexportsGenerator(target *DynamicLibrary, filter ReexportFilter, flags SymbolFlags) Generator {
	if filter == nil {
		filter = MatchAll
	}
	return &reexportsGenerator{target: target, filter: filter, flags: flags}
}

func (g *reexportsGenerator) TryGenerate(lib *DynamicLibrary, names []string) ([]string, error) {
	aliases := make(map[string]AliasTarget)
	for _, n := range names {
		if g.filter(n) {
			aliases[n] = AliasTarget{Source: n, Flags: g.flags}
		}
	}
	if len(aliases) == 0 {
		return nil, nil
	}
	if err := lib.defineReexports(g.target, aliases); err != nil {
		return nil, err
	}
	claimed := make([]string, 0, len(aliases))
	for n := range aliases {
		claimed = append(claimed, n)
	}
	return claimed, nil
}

// funcGenerator adapts a plain function to the Generator interface, for
// simple user-defined generators that don't need their own state.
type funcGenerator struct {
	fn func(lib *DynamicLibrary, names []string) ([]string, error)
}

// GeneratorFunc adapts fn to a Generator.
func GeneratorFunc(fn func(lib *DynamicLibrary, names []string) ([]string, error)) Generator {
	return &funcGenerator{fn: fn}
}

func (g *funcGenerator) TryGenerate(lib *DynamicLibrary, names []string) ([]string, error) {
	return g.fn(lib, names)
}
