package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/agentic-research/formdex/internal/gamedef"
	"github.com/agentic-research/formdex/internal/loadorder"
	"github.com/agentic-research/formdex/internal/plugin"
	"github.com/agentic-research/formdex/internal/run"
)

var (
	ingestDB      string
	ingestGame    string
	ingestDataDir string
	ingestList    string
	ingestPlugins []string
	ingestUpdate  bool
	ingestDryRun  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Extract records from selected plugins or a text list into the database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		req, err := buildRequest()
		if err != nil {
			return err
		}

		fsys := osfs.New("/")
		orch := &run.Orchestrator{
			FS:              fsys,
			Provider:        &loadorder.FileProvider{FS: fsys},
			RecordBatchSize: cfg.RecordBatchSize,
			TextBatchSize:   cfg.TextBatchSize,
		}
		if req.TextListPath == "" && !req.DryRun {
			dec, err := plugin.Default()
			if err != nil {
				return err
			}
			orch.Decoder = dec
		}

		// Ctrl-C cancels the run cooperatively; the run itself rolls back
		// any in-flight transaction.
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		start := time.Now()
		report, err := orch.Run(ctx, req,
			func(msg string, pct int) {
				if pct >= 0 {
					slog.Info(msg, "pct", pct)
				} else {
					slog.Info(msg)
				}
			},
			func(msg string, actionable bool) {
				if actionable {
					slog.Error(msg)
				} else {
					slog.Warn(msg)
				}
			},
		)
		if report != nil {
			emitReport(report)
		}
		if err != nil {
			return err
		}
		slog.Debug("run finished", "elapsed", time.Since(start))
		return nil
	},
}

func buildRequest() (run.Request, error) {
	gameName := ingestGame
	if gameName == "" {
		gameName = cfg.Game
	}
	release, err := gamedef.ParseRelease(gameName)
	if err != nil {
		return run.Request{}, err
	}
	db := ingestDB
	if db == "" {
		db = cfg.Database
	}
	dataDir := ingestDataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if ingestList == "" && dataDir == "" {
		return run.Request{}, fmt.Errorf("either --data or --list is required")
	}
	return run.Request{
		GameDir:      dataDir,
		TextListPath: ingestList,
		DBPath:       db,
		Release:      release,
		Plugins:      ingestPlugins,
		UpdateMode:   ingestUpdate,
		DryRun:       ingestDryRun,
	}, nil
}

func emitReport(r *run.Report) {
	if jsonOutput {
		fmt.Println(oj.JSON(r, 2))
		return
	}
	switch r.Outcome {
	case run.OutcomeCancelled:
		fmt.Printf("cancelled after %d rows\n", r.Inserted)
	case run.OutcomePartial:
		fmt.Printf("%d succeeded / %d failed, %d rows\n", r.Succeeded, r.Failed, r.Inserted)
	default:
		if r.DryRun {
			for _, line := range r.Planned {
				fmt.Println(line)
			}
		} else {
			fmt.Printf("all %d succeeded, %d rows\n", r.Succeeded, r.Inserted)
		}
	}
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDB, "db", "", "database file (default from config)")
	ingestCmd.Flags().StringVar(&ingestGame, "game", "", "game release (skyrim, skyrimse, fallout4, starfield)")
	ingestCmd.Flags().StringVarP(&ingestDataDir, "data", "d", "", "game data directory")
	ingestCmd.Flags().StringVarP(&ingestList, "list", "l", "", "plugin|formid|label text export to ingest instead of plugins")
	ingestCmd.Flags().StringSliceVarP(&ingestPlugins, "plugins", "p", nil, "plugin file names to process, in order")
	ingestCmd.Flags().BoolVarP(&ingestUpdate, "update", "u", false, "clear each plugin's existing rows before inserting")
	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "report what would be done without touching anything")
	rootCmd.AddCommand(ingestCmd)
}
