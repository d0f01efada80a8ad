package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"orcjit"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.toml>",
	Short: "Build a session from a scenario file and drive every symbol to Ready",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario(args[0])
	if err != nil {
		return err
	}
	s, err := buildSession(cfg)
	if err != nil {
		return err
	}

	for _, libName := range cfg.LibraryNames() {
		lib, ok := s.Library(libName)
		if !ok {
			continue
		}
		names := make([]string, 0)
		for _, info := range lib.Snapshot() {
			names = append(names, info.Name)
		}
		if len(names) == 0 {
			continue
		}
		if _, err := s.BlockingLookup([]orcjit.SearchEntry{{Lib: lib, MatchNonExported: true}}, names, orcjit.StageReady); err != nil {
			return fmt.Errorf("library %s: %w", libName, err)
		}
	}

	renderSession(cmd.OutOrStdout(), s, colorEnabled(cmd))
	return nil
}
