package main

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kraklabs/scint/internal/config"
)

var flags config.FlagOverlay

var configPath string

// RootCmd is scint's entry point, modeled on registry/root.go's
// version/flag/subcommand wiring.
var RootCmd = &cobra.Command{
	Use:   "scint",
	Short: "scint installs and materializes dependency packages",
	Long:  "scint resolves, fetches, builds, and installs dependency packages into a project destination, backed by a shared content-addressed cache.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return installCmd.RunE(cmd, args)
	},
}

func init() {
	RootCmd.PersistentFlags().IntVar(&flags.Jobs, "jobs", 0, "override max_workers")
	RootCmd.PersistentFlags().StringVar(&flags.Path, "path", "", "override destination directory")
	RootCmd.PersistentFlags().BoolVar(&flags.Force, "force", false, "purge cached artifacts for each plan entry before acting")
	RootCmd.PersistentFlags().StringSliceVar(&flags.Without, "without", nil, "exclude dependency groups")
	RootCmd.PersistentFlags().StringSliceVar(&flags.With, "with", nil, "include only these dependency groups")
	RootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "verbose logging")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "scint.yml", "path to the scint config file")

	RootCmd.AddCommand(installCmd)
	RootCmd.AddCommand(addCmd)
	RootCmd.AddCommand(removeCmd)
	RootCmd.AddCommand(execCmd)
	RootCmd.AddCommand(cacheCmd)
	RootCmd.AddCommand(versionCmd)
}

// loadConfig applies the YAML → env → flags overlay chain
// and configures logging verbosity and color per --verbose / TTY
// detection.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	cfg = flags.Apply(cfg)

	if cfg.Debug.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors: !isatty.IsTerminal(os.Stdout.Fd()),
		FullTimestamp: true,
	})

	return cfg, nil
}
