// Package run sequences an ingestion run end to end: schema setup, one
// writer connection, per-plugin or text-list extraction, failure counting,
// and the single-active-run cancellation contract.
package run

import (
	"context"
	"errors"
	"fmt"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/formdex/internal/extract"
	"github.com/agentic-research/formdex/internal/feedback"
	"github.com/agentic-research/formdex/internal/gamedef"
	"github.com/agentic-research/formdex/internal/loadorder"
	"github.com/agentic-research/formdex/internal/plugin"
	"github.com/agentic-research/formdex/internal/store"
)

// Request describes one run. It is immutable once built.
type Request struct {
	GameDir      string
	TextListPath string // when set, the run ingests the text list instead of plugins
	DBPath       string
	Release      gamedef.Release
	Plugins      []string // selected subset, in the order to process
	UpdateMode   bool
	DryRun       bool
}

// Outcome is one of the three mutually exclusive terminal states.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomePartial   Outcome = "partial"
	OutcomeCancelled Outcome = "cancelled"
)

// Report is the final accounting for a run.
type Report struct {
	Outcome   Outcome            `json:"outcome"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Inserted  int                `json:"inserted"`
	Plugins   []*extract.Stats   `json:"plugins,omitempty"`
	TextList  *extract.TextStats `json:"text_list,omitempty"`
	DryRun    bool               `json:"dry_run,omitempty"`
	Planned   []string           `json:"planned,omitempty"`
}

// Orchestrator drives runs. One orchestrator serves the whole process; its
// supervisor guarantees a single active run.
type Orchestrator struct {
	Decoder         plugin.Decoder
	Provider        loadorder.Provider
	FS              billy.Filesystem
	RecordBatchSize int
	TextBatchSize   int

	supervisor Supervisor
}

// Cancel aborts the active run, if any.
func (o *Orchestrator) Cancel() { o.supervisor.CancelActive() }

// Run executes one request. Starting a run cancels any run still in flight.
// Fatal problems (missing text list, schema failure, cancellation) return an
// error; per-plugin failures are reported, counted, and skipped. The returned
// report is non-nil whenever processing started, including cancelled runs.
func (o *Orchestrator) Run(
	ctx context.Context,
	req Request,
	progress feedback.ProgressFunc,
	errs feedback.ErrorFunc,
) (*Report, error) {
	progress = progress.OrNop()
	errs = errs.OrNop()

	handle := o.supervisor.Begin(ctx)
	defer handle.Cancel()
	ctx = handle.Context()

	if req.DryRun {
		return o.plan(req, progress), nil
	}

	st, err := store.Open(req.DBPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()
	if err := st.InitSchema(ctx, req.Release); err != nil {
		if errors.Is(err, context.Canceled) {
			return &Report{Outcome: OutcomeCancelled}, context.Canceled
		}
		return nil, err
	}

	if req.TextListPath != "" {
		return o.runTextList(ctx, st, req, progress, errs)
	}
	return o.runPlugins(ctx, st, req, progress, errs)
}

func (o *Orchestrator) runTextList(
	ctx context.Context,
	st *store.Store,
	req Request,
	progress feedback.ProgressFunc,
	errs feedback.ErrorFunc,
) (*Report, error) {
	ex := &extract.TextListExtractor{
		FS:        o.FS,
		BatchSize: o.TextBatchSize,
		Progress:  progress,
		Errors:    errs,
	}
	stats, err := ex.ProcessList(ctx, st, req.Release, req.TextListPath, req.UpdateMode)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			report := &Report{Outcome: OutcomeCancelled, TextList: stats}
			if stats != nil {
				report.Inserted = stats.Inserted
			}
			return report, err
		}
		return nil, err
	}
	if err := st.Optimize(ctx); err != nil {
		errs(fmt.Sprintf("post-run optimize failed: %v", err), false)
	}
	progress(fmt.Sprintf("Text list done, %d entries", stats.Inserted), 100)
	return &Report{
		Outcome:   OutcomeSucceeded,
		Succeeded: len(stats.Plugins),
		Inserted:  stats.Inserted,
		TextList:  stats,
	}, nil
}

func (o *Orchestrator) runPlugins(
	ctx context.Context,
	st *store.Store,
	req Request,
	progress feedback.ProgressFunc,
	errs feedback.ErrorFunc,
) (*Report, error) {
	resolver := loadorder.NewResolver(o.Provider, o.FS, o.Decoder)
	snap, err := resolver.BuildSnapshot(req.Release, req.GameDir, false)
	if err != nil {
		return nil, fmt.Errorf("resolve load order: %w", err)
	}

	ex := &extract.RecordExtractor{
		Decoder:   o.Decoder,
		FS:        o.FS,
		BatchSize: o.RecordBatchSize,
		Progress:  progress,
		Errors:    errs,
	}

	report := &Report{}
	total := len(req.Plugins)
	for i, name := range req.Plugins {
		progress(fmt.Sprintf("Processing %s (%d/%d)", name, i+1, total), percent(i, total))
		stats, err := ex.ProcessPlugin(ctx, st, req.Release, req.GameDir, name, snap, req.UpdateMode)
		report.Plugins = append(report.Plugins, stats)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				report.Outcome = OutcomeCancelled
				return report, err
			}
			report.Failed++
			errs(fmt.Sprintf("plugin failed: %v", err), true)
			continue
		}
		report.Succeeded++
		report.Inserted += stats.Inserted
	}

	if err := st.Optimize(ctx); err != nil {
		errs(fmt.Sprintf("post-run optimize failed: %v", err), false)
	}

	if report.Failed > 0 {
		report.Outcome = OutcomePartial
		progress(fmt.Sprintf("Done: %d succeeded, %d failed", report.Succeeded, report.Failed), 100)
	} else {
		report.Outcome = OutcomeSucceeded
		progress(fmt.Sprintf("Done: all %d succeeded", report.Succeeded), 100)
	}
	return report, nil
}

// plan renders what a real run would do without touching the filesystem or
// the database.
func (o *Orchestrator) plan(req Request, progress feedback.ProgressFunc) *Report {
	report := &Report{Outcome: OutcomeSucceeded, DryRun: true}
	table, err := gamedef.TableName(req.Release)
	if err != nil {
		table = "?"
	}

	if req.TextListPath != "" {
		if req.UpdateMode {
			report.Planned = append(report.Planned,
				fmt.Sprintf("would clear existing entries for each plugin named in %s", req.TextListPath))
		}
		report.Planned = append(report.Planned,
			fmt.Sprintf("would ingest text list %s into table %s of %s", req.TextListPath, table, req.DBPath))
	} else {
		for _, name := range req.Plugins {
			if req.UpdateMode {
				report.Planned = append(report.Planned,
					fmt.Sprintf("would clear existing entries for %s", name))
			}
			report.Planned = append(report.Planned,
				fmt.Sprintf("would extract records from %s into table %s of %s", name, table, req.DBPath))
		}
	}
	for _, line := range report.Planned {
		progress(line, feedback.IndeterminatePercent)
	}
	return report
}

func percent(done, total int) int {
	if total <= 0 {
		return feedback.IndeterminatePercent
	}
	return done * 100 / total
}
