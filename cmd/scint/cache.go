package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kraklabs/scint/internal/cache"
	"github.com/kraklabs/scint/internal/resolve"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "inspect and maintain the shared cache",
}

var gcDryRun bool

var cacheGCCmd = &cobra.Command{
	Use:   "gc",
	Short: "sweep cached artifacts the current lock no longer references",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		layout := cache.NewLayout(cfg.Cache.Root)
		abi := hostABI()

		resolver := resolve.LockResolver{}
		specs, err := resolver.Resolve("scint.manifest", "scint.lock")
		if err != nil {
			return err
		}

		live := make(map[string]struct{}, len(specs))
		for _, spec := range specs {
			live[spec.PackageId().FullName()] = struct{}{}
		}

		result, err := cache.Sweep(layout, abi, live, gcDryRun)
		if err != nil {
			return err
		}

		for _, name := range result.Swept {
			if gcDryRun {
				fmt.Printf("would remove %s\n", name)
			} else {
				fmt.Printf("removed %s\n", name)
			}
		}
		fmt.Printf("%d removed, %d kept\n", len(result.Swept), len(result.Kept))
		return nil
	},
}

func init() {
	cacheGCCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "report what would be removed without deleting anything")
	cacheCmd.AddCommand(cacheGCCmd)
}
