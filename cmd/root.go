// Package cmd provides the command-line interface for zsim.
package cmd

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/czhu95/zsim/config"
	"github.com/czhu95/zsim/internal/simlog"
)

const (
	envLogLevel = "ZSIM_LOG_LEVEL"
	envConfig   = "ZSIM_CONFIG"
)

// Execute loads .env, runs the command named on the command line and exits
// through atexit so that registered dumpers are flushed.
func Execute() {
	// A missing .env is fine; the environment still applies.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zsim",
		Short: "zsim simulates TLBs that take part in a coherent memory hierarchy.",
		Long: `zsim simulates TLBs that take part in a coherent memory ` +
			`hierarchy. It replays translation traces on cores, TLBs, ` +
			`MESI caches and memory built from a YAML configuration.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			if level == "" {
				level = os.Getenv(envLogLevel)
			}

			lvl, err := simlog.ParseLevel(level)
			if err != nil {
				return err
			}
			simlog.Default().SetLevel(lvl)

			return nil
		},
	}

	root.PersistentFlags().String("log-level", "",
		"error, warn, info, debug or trace (default $"+envLogLevel+" or info)")
	root.PersistentFlags().String("config", "",
		"system configuration file (default $"+envConfig+" or built-in)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newBenchCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// loadConfig reads the configuration named by --config or $ZSIM_CONFIG, or
// returns the defaults when neither is set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv(envConfig)
	}

	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}
