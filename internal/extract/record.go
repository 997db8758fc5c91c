// Package extract turns record streams and text exports into batched rows in
// the store. Processing is strictly sequential; cancellation is cooperative
// at record and line granularity.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/RoaringBitmap/roaring"
	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/formdex/internal/feedback"
	"github.com/agentic-research/formdex/internal/gamedef"
	"github.com/agentic-research/formdex/internal/loadorder"
	"github.com/agentic-research/formdex/internal/plugin"
	"github.com/agentic-research/formdex/internal/store"
)

// recordProgressInterval is how many extracted records pass between progress
// reports. The decoder gives no record count up front, so these reports carry
// no percentage.
const recordProgressInterval = 1000

// benignNoise lists error fragments produced by expectedly malformed
// subrecords. Matching record-level errors are skipped without reporting.
var benignNoise = []string{
	"unexpected subrecord",
	"unknown subrecord",
	"truncated subrecord",
	"zero-length string",
}

func isBenign(err error) bool {
	msg := err.Error()
	for _, frag := range benignNoise {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}

// Stats summarizes one plugin's extraction.
type Stats struct {
	Plugin   string `json:"plugin"`
	Inserted int    `json:"inserted"`
	Distinct uint64 `json:"distinct_formids"`
	Skipped  bool   `json:"skipped,omitempty"`

	distinct *roaring.Bitmap
}

func newStats(pluginName string) *Stats {
	return &Stats{Plugin: pluginName, distinct: roaring.New()}
}

func (s *Stats) add(formID uint32) {
	s.Inserted++
	s.distinct.Add(formID & 0xFFFFFF)
	s.Distinct = s.distinct.GetCardinality()
}

// RecordExtractor decodes one plugin at a time into (formid, label) rows.
type RecordExtractor struct {
	Decoder   plugin.Decoder
	FS        billy.Filesystem
	BatchSize int
	Progress  feedback.ProgressFunc
	Errors    feedback.ErrorFunc

	labels *LabelResolver
}

func (e *RecordExtractor) init() {
	if e.labels == nil {
		e.labels = NewLabelResolver()
	}
	if e.BatchSize <= 0 {
		e.BatchSize = DefaultRecordBatchSize
	}
	e.Progress = e.Progress.OrNop()
	e.Errors = e.Errors.OrNop()
}

// ProcessPlugin extracts one plugin's records into the store inside a single
// transaction. A plugin absent from the load order or from disk is a warning,
// not an error; any failure that escapes the record loop rolls the
// transaction back and is returned with the plugin name attached.
func (e *RecordExtractor) ProcessPlugin(
	ctx context.Context,
	st *store.Store,
	release gamedef.Release,
	gameDir, pluginName string,
	snap *loadorder.Snapshot,
	updateMode bool,
) (*Stats, error) {
	e.init()
	stats := newStats(pluginName)

	listed, ok := snap.Lookup(pluginName)
	if !ok {
		e.Errors(fmt.Sprintf("%s is not in the load order, skipping", pluginName), false)
		stats.Skipped = true
		return stats, nil
	}
	path := filepath.Join(gameDir, listed)
	if _, err := e.FS.Stat(path); err != nil {
		e.Errors(fmt.Sprintf("%s is listed but not on disk, skipping", listed), false)
		stats.Skipped = true
		return stats, nil
	}

	if updateMode {
		if err := store.ClearPluginEntries(ctx, st.DB(), release, listed); err != nil {
			return stats, fmt.Errorf("%s: %w", listed, err)
		}
	}

	tx, err := st.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("%s: begin transaction: %w", listed, err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback() }()

	stream, err := e.Decoder.Open(path, release)
	if err != nil {
		return stats, fmt.Errorf("%s: decode: %w", listed, err)
	}
	defer func() { _ = stream.Close() }()

	buf := NewBatchBuffer(e.BatchSize)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		rec, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Record-level noise never aborts the plugin.
			if !isBenign(err) {
				e.Errors(fmt.Sprintf("%s: bad record: %v", listed, err), false)
			}
			continue
		}
		raw, err := rec.FormID()
		if err != nil {
			if !isBenign(err) {
				e.Errors(fmt.Sprintf("%s: unreadable formid: %v", listed, err), false)
			}
			continue
		}
		formID := plugin.FormatFormID(raw)
		buf.Append(store.Row{
			Plugin: listed,
			FormID: formID,
			Entry:  e.labels.Resolve(rec, formID),
		})
		stats.add(raw)
		if stats.Inserted%recordProgressInterval == 0 {
			e.Progress(fmt.Sprintf("Extracted %d records from %s", stats.Inserted, listed),
				feedback.IndeterminatePercent)
		}
		if buf.Full() {
			e.flush(ctx, tx, release, listed, buf, stats)
		}
	}
	e.flush(ctx, tx, release, listed, buf, stats)

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("%s: commit: %w", listed, err)
	}
	return stats, nil
}

// flush writes the buffer through the plugin's transaction. A failed flush is
// reported and its rows dropped; the plugin keeps processing.
func (e *RecordExtractor) flush(ctx context.Context, tx store.DBTX, release gamedef.Release, pluginName string, buf *BatchBuffer, stats *Stats) {
	rows := buf.Drain()
	if len(rows) == 0 {
		return
	}
	if err := store.InsertBatch(ctx, tx, release, rows); err != nil {
		e.Errors(fmt.Sprintf("%s: batch write failed, %d rows dropped: %v", pluginName, len(rows), err), true)
		stats.Inserted -= len(rows)
	}
}
