package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"orcjit"
)

// scenarioConfig is the TOML shape of a session description: an ordered
// list of libraries, each with absolute symbols, lazily-materialized
// symbols, and aliases/re-exports, mirroring the teacher's [package]/[run]
// manifest sections in internal/project/root.go but for a JIT session
// instead of a build.
type scenarioConfig struct {
	Session   sessionConfig     `toml:"session"`
	Libraries []libraryConfig   `toml:"library"`
}

type sessionConfig struct {
	Name    string `toml:"name"`
	Workers int    `toml:"workers"` // 0 = inline dispatcher
}

type libraryConfig struct {
	Name          string              `toml:"name"`
	Symbols       []absoluteSymbol    `toml:"symbol"`
	Materializers []materializerEntry `toml:"materializer"`
	Reexports     []reexportEntry     `toml:"reexport"`
}

type absoluteSymbol struct {
	Name    string   `toml:"name"`
	Address string   `toml:"address"`
	Flags   []string `toml:"flags"`
}

type materializerEntry struct {
	Name       string   `toml:"name"`
	Address    string   `toml:"address"`
	Flags      []string `toml:"flags"`
	DependsOn  []string `toml:"depends_on"` // "Library:Name" pairs
}

type reexportEntry struct {
	Name         string `toml:"name"`
	SourceLib    string `toml:"source_library"`
	SourceSymbol string `toml:"source_symbol"`
	Flags        []string `toml:"flags"`
}

// loadScenario parses path as a TOML scenario description.
func loadScenario(path string) (*scenarioConfig, error) {
	var cfg scenarioConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to parse scenario TOML: %w", path, err)
	}
	if len(cfg.Libraries) == 0 {
		return nil, fmt.Errorf("%s: scenario defines no [[library]] entries", path)
	}
	return &cfg, nil
}

func parseFlags(names []string) orcjit.SymbolFlags {
	var f orcjit.SymbolFlags
	for _, n := range names {
		switch strings.ToLower(n) {
		case "exported":
			f |= orcjit.FlagExported
		case "weak":
			f |= orcjit.FlagWeak
		case "callable":
			f |= orcjit.FlagCallable
		}
	}
	return f
}

func parseAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return v, nil
}

// buildSession materializes cfg into a running *orcjit.ExecutionSession. A
// threaded dispatcher is installed if cfg.Session.Workers > 0.
func buildSession(cfg *scenarioConfig) (*orcjit.ExecutionSession, error) {
	s := orcjit.NewExecutionSession()
	if cfg.Session.Workers > 0 {
		s.SetDispatcher(orcjit.NewThreadedDispatcher(cfg.Session.Workers))
	}

	libs := make(map[string]*orcjit.DynamicLibrary, len(cfg.Libraries))
	for _, lc := range cfg.Libraries {
		if lc.Name == "" {
			return nil, fmt.Errorf("scenario: a [[library]] entry is missing a name")
		}
		lib, err := s.CreateLibrary(lc.Name)
		if err != nil {
			return nil, err
		}
		libs[lc.Name] = lib
	}

	for _, lc := range cfg.Libraries {
		lib := libs[lc.Name]

		absDefs := make(map[string]orcjit.EvaluatedSymbol, len(lc.Symbols))
		for _, sym := range lc.Symbols {
			addr, err := parseAddress(sym.Address)
			if err != nil {
				return nil, fmt.Errorf("library %s, symbol %s: %w", lc.Name, sym.Name, err)
			}
			absDefs[sym.Name] = orcjit.EvaluatedSymbol{Address: addr, Flags: parseFlags(sym.Flags)}
		}
		if len(absDefs) > 0 {
			if err := lib.DefineAbsolute(absDefs); err != nil {
				return nil, fmt.Errorf("library %s: %w", lc.Name, err)
			}
		}

		for _, mzr := range lc.Materializers {
			addr, err := parseAddress(mzr.Address)
			if err != nil {
				return nil, fmt.Errorf("library %s, materializer %s: %w", lc.Name, mzr.Name, err)
			}
			deps, err := resolveDeps(libs, mzr.DependsOn)
			if err != nil {
				return nil, fmt.Errorf("library %s, materializer %s: %w", lc.Name, mzr.Name, err)
			}
			mu := newScenarioMU(mzr.Name, parseFlags(mzr.Flags), addr, deps)
			if err := lib.DefineMaterializer(mu); err != nil {
				return nil, fmt.Errorf("library %s: %w", lc.Name, err)
			}
		}

		for _, re := range lc.Reexports {
			source, ok := libs[re.SourceLib]
			if !ok {
				return nil, fmt.Errorf("library %s, reexport %s: unknown source library %q", lc.Name, re.Name, re.SourceLib)
			}
			err := lib.DefineReexports(source, map[string]orcjit.AliasTarget{
				re.Name: {Source: re.SourceSymbol, Flags: parseFlags(re.Flags)},
			})
			if err != nil {
				return nil, fmt.Errorf("library %s: %w", lc.Name, err)
			}
		}
	}

	return s, nil
}

// LibraryNames returns the library names declared in cfg, in file order.
func (cfg *scenarioConfig) LibraryNames() []string {
	out := make([]string, 0, len(cfg.Libraries))
	for _, lc := range cfg.Libraries {
		out = append(out, lc.Name)
	}
	return out
}

type scenarioDep struct {
	lib  *orcjit.DynamicLibrary
	name string
}

func resolveDeps(libs map[string]*orcjit.DynamicLibrary, entries []string) ([]scenarioDep, error) {
	out := make([]scenarioDep, 0, len(entries))
	for _, e := range entries {
		parts := strings.SplitN(e, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid depends_on entry %q, want Library:Name", e)
		}
		lib, ok := libs[parts[0]]
		if !ok {
			return nil, fmt.Errorf("depends_on %q: unknown library %q", e, parts[0])
		}
		out = append(out, scenarioDep{lib: lib, name: parts[1]})
	}
	return out, nil
}
