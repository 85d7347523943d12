package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kraklabs/scint/internal/errs"
)

var removeCmd = &cobra.Command{
	Use:   "remove NAME",
	Short: "drop a dependency record from the manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		lines, err := readManifestLines()
		if err != nil {
			return err
		}

		out := lines[:0]
		found := false
		for _, l := range lines {
			if manifestEntryName(l) == name {
				found = true
				continue
			}
			out = append(out, l)
		}
		if !found {
			return errs.New(errs.KindManifest, "remove", name, fmt.Errorf("not found"))
		}

		return writeManifestLines(out)
	},
}
