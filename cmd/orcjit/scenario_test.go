package main

import (
	"os"
	"path/filepath"
	"testing"

	"orcjit"
)

func TestParseFlags(t *testing.T) {
	f := parseFlags([]string{"Exported", "weak"})
	if !f.Has(orcjit.FlagExported) || !f.Has(orcjit.FlagWeak) {
		t.Fatalf("parseFlags(%v) = %v, want Exported|Weak", []string{"Exported", "weak"}, f)
	}
}

func TestParseAddress(t *testing.T) {
	cases := map[string]uint64{
		"":       0,
		"0x1000": 0x1000,
		"4096":   4096,
	}
	for in, want := range cases {
		got, err := parseAddress(in)
		if err != nil {
			t.Fatalf("parseAddress(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("parseAddress(%q) = %#x, want %#x", in, got, want)
		}
	}
	if _, err := parseAddress("not-a-number"); err == nil {
		t.Fatalf("expected an error for a malformed address")
	}
}

const sampleScenario = `
[session]
name = "demo"

[[library]]
name = "JD"

[[library.symbol]]
name = "Foo"
address = "0x1000"
flags = ["Exported"]

[[library.materializer]]
name = "Bar"
address = "0x2000"
flags = ["Exported"]

[[library]]
name = "JD2"

[[library.reexport]]
name = "Baz"
source_library = "JD"
source_symbol = "Foo"
flags = ["Exported"]
`

func TestLoadScenarioAndBuildSession(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.toml")
	if err := os.WriteFile(path, []byte(sampleScenario), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}

	cfg, err := loadScenario(path)
	if err != nil {
		t.Fatalf("loadScenario: %v", err)
	}
	if len(cfg.Libraries) != 2 {
		t.Fatalf("expected 2 libraries, got %d", len(cfg.Libraries))
	}

	s, err := buildSession(cfg)
	if err != nil {
		t.Fatalf("buildSession: %v", err)
	}

	results, err := s.BlockingLookup([]orcjit.SearchEntry{{Lib: mustLib(t, s, "JD2")}}, []string{"Baz"}, orcjit.StageResolved)
	if err != nil {
		t.Fatalf("lookup Baz: %v", err)
	}
	if results["Baz"].Address != 0x1000 {
		t.Fatalf("Baz address = %#x, want 0x1000", results["Baz"].Address)
	}

	jd, ok := s.Library("JD")
	if !ok {
		t.Fatalf("library JD not found")
	}
	results, err = s.BlockingLookup([]orcjit.SearchEntry{{Lib: jd, MatchNonExported: true}}, []string{"Bar"}, orcjit.StageReady)
	if err != nil {
		t.Fatalf("lookup Bar: %v", err)
	}
	if results["Bar"].Address != 0x2000 {
		t.Fatalf("Bar address = %#x, want 0x2000", results["Bar"].Address)
	}
}

func mustLib(t *testing.T, s *orcjit.ExecutionSession, name string) *orcjit.DynamicLibrary {
	t.Helper()
	lib, ok := s.Library(name)
	if !ok {
		t.Fatalf("library %s not found", name)
	}
	return lib
}
