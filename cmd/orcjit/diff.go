package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff <a.mp> <b.mp>",
	Short: "Compare two msgpack session snapshots and report stage/address changes",
	Args:  cobra.ExactArgs(2),
	RunE:  runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	a, err := loadSnapshot(args[0])
	if err != nil {
		return err
	}
	b, err := loadSnapshot(args[1])
	if err != nil {
		return err
	}

	bRows := make(map[string]symbolSnapshotRow)
	for _, lib := range b.Libraries {
		for _, row := range lib.Symbols {
			bRows[lib.Name+":"+row.Name] = row
		}
	}

	out := cmd.OutOrStdout()
	changed := 0
	for _, lib := range a.Libraries {
		for _, arow := range lib.Symbols {
			key := lib.Name + ":" + arow.Name
			brow, ok := bRows[key]
			if !ok {
				fmt.Fprintf(out, "- %s (removed in %s)\n", key, args[1])
				changed++
				continue
			}
			delete(bRows, key)
			if arow.Stage != brow.Stage || arow.Address != brow.Address {
				fmt.Fprintf(out, "~ %s: stage %d->%d addr %#x->%#x\n", key, arow.Stage, brow.Stage, arow.Address, brow.Address)
				changed++
			}
		}
	}
	for key := range bRows {
		fmt.Fprintf(out, "+ %s (added in %s)\n", key, args[1])
		changed++
	}
	if changed == 0 {
		fmt.Fprintln(out, "no differences")
	}
	return nil
}
