package extract

import "github.com/agentic-research/formdex/internal/store"

// Default flush thresholds. The record path keeps a smaller buffer because
// decoded records share the same memory budget.
const (
	DefaultRecordBatchSize = 200
	DefaultTextBatchSize   = 500
)

// BatchBuffer accumulates rows until the flush threshold. Rows keep their
// append order; the buffer never spans a plugin boundary in update mode — the
// extractors flush on plugin transitions.
type BatchBuffer struct {
	rows      []store.Row
	threshold int
}

func NewBatchBuffer(threshold int) *BatchBuffer {
	if threshold <= 0 {
		threshold = DefaultRecordBatchSize
	}
	return &BatchBuffer{
		rows:      make([]store.Row, 0, threshold),
		threshold: threshold,
	}
}

func (b *BatchBuffer) Append(row store.Row) {
	b.rows = append(b.rows, row)
}

func (b *BatchBuffer) Len() int { return len(b.rows) }

// Full reports whether the buffer reached its flush threshold.
func (b *BatchBuffer) Full() bool { return len(b.rows) >= b.threshold }

// Drain returns the buffered rows and resets the buffer.
func (b *BatchBuffer) Drain() []store.Row {
	rows := b.rows
	b.rows = make([]store.Row, 0, b.threshold)
	return rows
}
