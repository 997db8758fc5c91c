// Package cmd wires the formdex CLI.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/formdex/internal/config"
)

var (
	configPath string
	verbose    bool
	jsonOutput bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "formdex",
	Short: "formdex indexes game-content records into a per-game SQLite table",
	Long: `formdex extracts (plugin, formid, label) triples from a Bethesda-style
plugin load order or from a plugin|formid|label text export and stores them
in one SQLite table per game release.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		slog.SetDefault(slog.New(handler))

		var err error
		cfg, err = config.Load(configPath, cmd.Flags().Changed("config"))
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "formdex.hcl", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit the final report as JSON")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
