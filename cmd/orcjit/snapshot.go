package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vmihailenco/msgpack/v5"

	"orcjit"
)

// snapshotPayload is the on-disk shape of one exported session: every
// library's symbol table, flattened, for later offline inspection or diff.
// Mirrors the teacher's DiskPayload in internal/driver/dcache.go: a small
// versioned struct encoded with msgpack.
type snapshotPayload struct {
	Schema    uint16              `msgpack:"schema"`
	Libraries []librarySnapshot   `msgpack:"libraries"`
}

const snapshotSchemaVersion uint16 = 1

type librarySnapshot struct {
	Name    string              `msgpack:"name"`
	Symbols []symbolSnapshotRow `msgpack:"symbols"`
}

type symbolSnapshotRow struct {
	Name    string `msgpack:"name"`
	Stage   uint8  `msgpack:"stage"`
	Flags   uint8  `msgpack:"flags"`
	Address uint64 `msgpack:"address"`
}

var snapshotOut string

func init() {
	snapshotCmd.Flags().StringVarP(&snapshotOut, "output", "o", "session.mp", "path to write the snapshot to")
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <scenario.toml>",
	Short: "Run a scenario to Ready and export the resulting session as a msgpack snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshot,
}

func runSnapshot(cmd *cobra.Command, args []string) error {
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
		var names []string
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

	payload := snapshotPayload{Schema: snapshotSchemaVersion}
	for _, libName := range cfg.LibraryNames() {
		lib, ok := s.Library(libName)
		if !ok {
			continue
		}
		ls := librarySnapshot{Name: libName}
		for _, info := range lib.Snapshot() {
			ls.Symbols = append(ls.Symbols, symbolSnapshotRow{
				Name:    info.Name,
				Stage:   uint8(info.Stage),
				Flags:   uint8(info.Flags),
				Address: info.Address,
			})
		}
		payload.Libraries = append(payload.Libraries, ls)
	}

	f, err := os.Create(snapshotOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", snapshotOut, err)
	}
	defer f.Close()
	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(&payload); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", snapshotOut)
	return nil
}

// loadSnapshot reads back a snapshot written by runSnapshot, for tooling
// that wants to diff two session exports without re-running a scenario.
func loadSnapshot(path string) (*snapshotPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	var payload snapshotPayload
	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return &payload, nil
}
