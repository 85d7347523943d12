package main

import (
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kraklabs/scint/internal/cache"
	"github.com/kraklabs/scint/internal/errs"
	"github.com/kraklabs/scint/internal/runtimesetup"
)

var execCmd = &cobra.Command{
	Use:                "exec -- CMD [ARGS...]",
	Short:              "run a command with the installed load path applied",
	Args:               cobra.MinimumNArgs(1),
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		layout := cache.NewLayout(cfg.Cache.Root)
		env, err := runtimesetup.Read(layout.InstallEnv())
		if err != nil {
			return err
		}

		child := exec.Command(args[0], args[1:]...)
		child.Stdin = os.Stdin
		child.Stdout = os.Stdout
		child.Stderr = os.Stderr
		child.Env = append(os.Environ(), "SCINT_LOAD_PATH="+strings.Join(env.LoadPaths(), string(os.PathListSeparator)))

		if err := child.Run(); err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				os.Exit(exitErr.ExitCode())
			}
			return errs.New(errs.KindInstall, "exec", args[0], err)
		}
		return nil
	},
}
