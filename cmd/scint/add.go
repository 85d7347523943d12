package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kraklabs/scint/internal/errs"
)

var addGroups []string
var addVersion string

var addCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "append a dependency record to the manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]

		lines, err := readManifestLines()
		if err != nil {
			return err
		}
		for _, l := range lines {
			if manifestEntryName(l) == name {
				return errs.New(errs.KindManifest, "add", name, fmt.Errorf("already present"))
			}
		}

		lines = append(lines, formatManifestLine(name, addVersion, addGroups))
		return writeManifestLines(lines)
	},
}

func init() {
	addCmd.Flags().StringVar(&addVersion, "version", "", "version constraint")
	addCmd.Flags().StringSliceVar(&addGroups, "group", nil, "dependency groups")
}
