package preparer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kraklabs/scint/internal/errs"
	"github.com/kraklabs/scint/internal/fsutil"
)

// binstubTemplate is a minimal shim: it re-execs the gem's real
// executable out of the cached gem directory with the runtime's
// adjusted load path already in the environment (internal/runtimesetup
// writes that before any binstub runs).
const binstubTemplate = `#!/usr/bin/env bash
set -e
exec %q "$@"
`

// WriteBinstubs writes an executable shim into destBin for each
// executable name, pointing at the real executable under gemDir/exe
// (or gemDir/bin, the other convention gems use). This backs the
// `type: binstub` scheduler job.
func WriteBinstubs(destBin, gemDir string, executables []string) error {
	if err := fsutil.MkdirP(destBin); err != nil {
		return errs.New(errs.KindInstall, "preparer.WriteBinstubs", destBin, err)
	}

	for _, name := range executables {
		real := findExecutable(gemDir, name)
		if real == "" {
			return errs.New(errs.KindInstall, "preparer.WriteBinstubs", name, os.ErrNotExist)
		}

		shim := filepath.Join(destBin, name)
		content := fmt.Sprintf(binstubTemplate, real)
		if err := fsutil.AtomicWrite(shim, []byte(content)); err != nil {
			return errs.New(errs.KindInstall, "preparer.WriteBinstubs", name, err)
		}
		if err := os.Chmod(shim, 0o755); err != nil {
			return errs.New(errs.KindInstall, "preparer.WriteBinstubs", name, err)
		}
	}
	return nil
}

// findExecutable looks for name under the two directories gems
// conventionally ship executables in.
func findExecutable(gemDir, name string) string {
	for _, sub := range []string{"exe", "bin"} {
		candidate := filepath.Join(gemDir, sub, name)
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate
		}
	}
	return ""
}
