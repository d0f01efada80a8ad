package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"orcjit"
)

var (
	stageColors = map[orcjit.Stage]*color.Color{
		orcjit.StageNeverSearched: color.New(color.FgHiBlack),
		orcjit.StageMaterializing: color.New(color.FgYellow),
		orcjit.StageResolved:      color.New(color.FgCyan),
		orcjit.StageReady:         color.New(color.FgGreen, color.Bold),
		orcjit.StageFailed:        color.New(color.FgRed, color.Bold),
	}
	collator = collate.New(language.English)
)

// sortedSnapshot returns lib's symbols ordered by name, under a
// locale-stable collation rather than raw byte comparison, matching the
// teacher's render.go dual pretty/JSON split convention (version.go) but
// producing a readiness table instead of build metadata.
func sortedSnapshot(lib *orcjit.DynamicLibrary) []orcjit.SymbolInfo {
	rows := lib.Snapshot()
	sort.Slice(rows, func(i, j int) bool {
		return collator.CompareString(rows[i].Name, rows[j].Name) < 0
	})
	return rows
}

// renderLibraryTable writes lib's current readiness table to out, colorized
// per-stage when useColor is true.
func renderLibraryTable(out io.Writer, lib *orcjit.DynamicLibrary, useColor bool) {
	rows := sortedSnapshot(lib)
	fmt.Fprintf(out, "%s (%d symbols)\n", lib.Name(), len(rows))
	if len(rows) == 0 {
		fmt.Fprintln(out, "  (empty)")
		return
	}
	for _, r := range rows {
		stage := r.Stage.String()
		if useColor {
			if c, ok := stageColors[r.Stage]; ok {
				stage = c.Sprint(stage)
			}
		}
		fmt.Fprintf(out, "  %-24s %-14s flags=%-16s addr=%#x\n", r.Name, stage, r.Flags, r.Address)
	}
}

// renderSession writes every library in s, in a stable order by name.
func renderSession(out io.Writer, s *orcjit.ExecutionSession, useColor bool) {
	names := s.LibraryNames()
	sort.Slice(names, func(i, j int) bool { return collator.CompareString(names[i], names[j]) < 0 })
	for _, name := range names {
		lib, ok := s.Library(name)
		if !ok {
			continue
		}
		renderLibraryTable(out, lib, useColor)
	}
}
