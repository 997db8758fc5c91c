package extract

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/formdex/internal/feedback"
	"github.com/agentic-research/formdex/internal/gamedef"
	"github.com/agentic-research/formdex/internal/store"
)

// textProgressInterval is how many accepted rows pass between progress
// reports. Reporting per line would dominate runtime on large exports.
const textProgressInterval = 1000

// countingReader tracks bytes consumed from the underlying file, so progress
// percentages reflect the true stream position regardless of line endings.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// TextStats summarizes one text-list run.
type TextStats struct {
	Lines    int      `json:"lines"`
	Inserted int      `json:"inserted"`
	Skipped  int      `json:"skipped_lines"`
	Plugins  []string `json:"plugins"`
}

// TextListExtractor streams a "plugin|formid|label" export into the store.
// Each flushed batch commits in its own transaction, so an interrupted run
// keeps exactly the rows of the batches committed before the interruption.
type TextListExtractor struct {
	FS        billy.Filesystem
	BatchSize int
	Progress  feedback.ProgressFunc
	Errors    feedback.ErrorFunc
}

// ProcessList ingests the file at path. A missing file is fatal; malformed
// lines are skipped silently. Batches never span a plugin boundary: on a
// plugin-column change the pending batch flushes first, and in update mode
// the new plugin's existing rows are cleared the first time it is seen.
func (e *TextListExtractor) ProcessList(
	ctx context.Context,
	st *store.Store,
	release gamedef.Release,
	path string,
	updateMode bool,
) (*TextStats, error) {
	e.Progress = e.Progress.OrNop()
	e.Errors = e.Errors.OrNop()
	if e.BatchSize <= 0 {
		e.BatchSize = DefaultTextBatchSize
	}

	info, err := e.FS.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("text list %s does not exist: %w", path, err)
		}
		return nil, fmt.Errorf("stat text list %s: %w", path, err)
	}
	totalSize := info.Size()

	f, err := e.FS.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open text list %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	stats := &TextStats{}
	buf := NewBatchBuffer(e.BatchSize)
	cr := &countingReader{r: f}
	var (
		currentPlugin string
		seen          = make(map[string]bool)
	)

	flush := func() error {
		rows := buf.Drain()
		if len(rows) == 0 {
			return nil
		}
		tx, err := st.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin batch: %w", err)
		}
		if err := store.InsertBatch(ctx, tx, release, rows); err != nil {
			_ = tx.Rollback()
			e.Errors(fmt.Sprintf("batch write failed, %d rows dropped: %v", len(rows), err), true)
			stats.Inserted -= len(rows)
			return nil
		}
		if err := tx.Commit(); err != nil {
			_ = tx.Rollback()
			e.Errors(fmt.Sprintf("batch commit failed, %d rows dropped: %v", len(rows), err), true)
			stats.Inserted -= len(rows)
		}
		return nil
	}

	sc := bufio.NewScanner(cr)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := sc.Text()
		stats.Lines++

		if strings.TrimSpace(line) == "" {
			stats.Skipped++
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 3 {
			stats.Skipped++
			continue
		}
		pluginName := strings.TrimSpace(parts[0])
		formID := strings.TrimSpace(parts[1])
		entry := strings.TrimSpace(parts[2])

		if pluginName != currentPlugin {
			if err := flush(); err != nil {
				return stats, err
			}
			currentPlugin = pluginName
			if !seen[pluginName] {
				seen[pluginName] = true
				stats.Plugins = append(stats.Plugins, pluginName)
				if updateMode {
					if err := store.ClearPluginEntries(ctx, st.DB(), release, pluginName); err != nil {
						return stats, err
					}
				}
			}
		}

		buf.Append(store.Row{Plugin: pluginName, FormID: formID, Entry: entry})
		stats.Inserted++
		if buf.Full() {
			if err := flush(); err != nil {
				return stats, err
			}
		}

		if stats.Inserted > 0 && stats.Inserted%textProgressInterval == 0 {
			pct := feedback.IndeterminatePercent
			if totalSize > 0 {
				pct = int(cr.n * 100 / totalSize)
				if pct > 100 {
					pct = 100
				}
			}
			e.Progress(fmt.Sprintf("Imported %d entries", stats.Inserted), pct)
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read text list: %w", err)
	}
	if err := flush(); err != nil {
		return stats, err
	}
	e.Progress(fmt.Sprintf("Imported %d entries from %d lines", stats.Inserted, stats.Lines), 100)
	return stats, nil
}
