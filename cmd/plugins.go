package cmd

import (
	"fmt"
	"log/slog"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentic-research/formdex/internal/gamedef"
	"github.com/agentic-research/formdex/internal/loadorder"
	"github.com/agentic-research/formdex/internal/scan"
)

var (
	pluginsGame        string
	pluginsDataDir     string
	pluginsIncludeBase bool
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List the installed plugins eligible for ingestion",
	RunE: func(_ *cobra.Command, _ []string) error {
		gameName := pluginsGame
		if gameName == "" {
			gameName = cfg.Game
		}
		release, err := gamedef.ParseRelease(gameName)
		if err != nil {
			return err
		}
		dataDir := pluginsDataDir
		if dataDir == "" {
			dataDir = cfg.DataDir
		}
		if dataDir == "" {
			return fmt.Errorf("--data is required")
		}

		fsys := osfs.New("/")
		scanner := &scan.Scanner{
			Resolver: loadorder.NewResolver(&loadorder.FileProvider{FS: fsys}, fsys, nil),
			FS:       fsys,
		}

		var target scan.List
		failed := false
		scanner.Refresh(dataDir, release, &target, pluginsIncludeBase,
			func(msg string, _ int) { slog.Debug(msg) },
			func(msg string, actionable bool) {
				if actionable {
					failed = true
					slog.Error(msg)
				} else {
					slog.Warn(msg)
				}
			},
		)
		if failed {
			return fmt.Errorf("plugin scan failed")
		}

		items := target.Items()
		if jsonOutput {
			fmt.Println(oj.JSON(items, 2))
			return nil
		}
		for _, name := range items {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	pluginsCmd.Flags().StringVar(&pluginsGame, "game", "", "game release (skyrim, skyrimse, fallout4, starfield)")
	pluginsCmd.Flags().StringVarP(&pluginsDataDir, "data", "d", "", "game data directory")
	pluginsCmd.Flags().BoolVar(&pluginsIncludeBase, "include-base", false, "include the official master files")
	rootCmd.AddCommand(pluginsCmd)
}
