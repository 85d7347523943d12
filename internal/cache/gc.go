package cache

import (
	"os"
	"path/filepath"

	"github.com/kraklabs/scint/internal/errs"
)

// SweepResult reports what a Sweep pass removed (or would remove).
type SweepResult struct {
	Swept []string // full names removed (or eligible, under DryRun)
	Kept  []string // full names left alone because they're still live
}

// Sweep implements the mark-and-sweep cache GC named in the
// `bundle clean` supplement: live is the set of full names the current
// lock still references under abi; every other `cached/<abi>/*` entry
// (and its sibling .spec/.manifest files) is removed, mirroring how
// registry/storage's Vacuum deletes blobs the mark phase didn't visit.
// DryRun reports what would be removed without touching the
// filesystem.
func Sweep(layout *Layout, abi ABIKey, live map[string]struct{}, dryRun bool) (SweepResult, error) {
	abiDir := filepath.Join(layout.Root(), "cached", string(abi))

	entries, err := os.ReadDir(abiDir)
	if err != nil {
		if os.IsNotExist(err) {
			return SweepResult{}, nil
		}
		return SweepResult{}, errs.New(errs.KindCache, "cache.Sweep", abiDir, err)
	}

	var result SweepResult
	for _, e := range entries {
		if !e.IsDir() {
			continue // .spec/.manifest siblings are removed alongside their directory
		}
		fullName := e.Name()
		if _, ok := live[fullName]; ok {
			result.Kept = append(result.Kept, fullName)
			continue
		}

		result.Swept = append(result.Swept, fullName)
		if dryRun {
			continue
		}

		if err := os.RemoveAll(filepath.Join(abiDir, fullName)); err != nil {
			return result, errs.New(errs.KindCache, "cache.Sweep", fullName, err)
		}
		os.Remove(filepath.Join(abiDir, fullName+".spec"))
		os.Remove(filepath.Join(abiDir, fullName+".manifest"))
	}

	return result, nil
}
