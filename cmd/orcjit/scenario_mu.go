package main

import "orcjit"

// scenarioMU is the materializer the CLI installs for every
// [[library.materializer]] entry: it has no real compile/link backend, so it
// simply declares its dependencies and publishes the address given in the
// scenario file the moment it is claimed. The readiness engine still holds
// back its Ready notification until every declared dependency (and its own
// SCC) is itself Resolved and Emitted.
type scenarioMU struct {
	orcjit.NopLifecycle
	name  string
	flags orcjit.SymbolFlags
	addr  uint64
	deps  []scenarioDep
}

func newScenarioMU(name string, flags orcjit.SymbolFlags, addr uint64, deps []scenarioDep) *scenarioMU {
	return &scenarioMU{name: name, flags: flags, addr: addr, deps: deps}
}

func (m *scenarioMU) Names() map[string]orcjit.SymbolFlags {
	return map[string]orcjit.SymbolFlags{m.name: m.flags}
}

func (m *scenarioMU) Materialize(mr *orcjit.MaterializationResponsibility) {
	byLib := make(map[*orcjit.DynamicLibrary][]string, len(m.deps))
	for _, d := range m.deps {
		byLib[d.lib] = append(byLib[d.lib], d.name)
	}
	if len(byLib) > 0 {
		if err := mr.AddDependencies(m.name, byLib); err != nil {
			mr.FailMaterialization()
			return
		}
	}
	if err := mr.NotifyResolved(map[string]uint64{m.name: m.addr}); err != nil {
		mr.FailMaterialization()
		return
	}
	_ = mr.NotifyEmitted()
}
