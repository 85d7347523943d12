// Command scint installs Ruby-style dependency packages into a
// project destination directory, backed by a content-addressed,
// ABI-keyed shared cache.
package main

import (
	"fmt"
	"os"

	"github.com/kraklabs/scint/internal/errs"
)

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errs.ExitCode(err))
	}
}
