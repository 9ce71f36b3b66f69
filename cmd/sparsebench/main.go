// Command sparsebench drives a sparsecs registry through a synthetic
// movement simulation and reports timings as JSON.
//
// Usage:
//
//	sparsebench run --entities 100000 --frames 1000 --workers 7 --parallel
//	SPARSECS_FRAMES=500 sparsebench run --config bench.yaml
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "sparsebench",
		Short: "Benchmark harness for the sparsecs entity registry",
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sparsebench v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newRunCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("sparsebench failed")
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var configFile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the movement simulation",
		Long: `Run creates a registry, populates it with moving entities and steps the
simulation for the requested number of frames. Settings come from flags,
SPARSECS_* environment variables and an optional config file, in that order
of precedence.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			setupLogger(cfg.LogLevel)
			return run(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to a config file (yaml, json or toml)")
	flags.Int("entities", defaultConfig().Registry.MaxEntities, "Number of entities to simulate")
	flags.Int("frames", defaultConfig().Frames, "Number of frames to step")
	flags.Int("workers", runtime.NumCPU()-1, "Worker goroutines for parallel queries")
	flags.Bool("parallel", false, "Run the movement system on the worker pool")
	flags.String("profile", "", "Profile mode: cpu, mem or empty for none")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	return cmd
}
