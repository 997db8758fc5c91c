// Package feedback defines the callback types the ingestion pipeline uses to
// report progress and problems to whatever front end is driving it. Pipeline
// packages never log directly; they emit through these and let the caller
// decide how to surface them.
package feedback

// IndeterminatePercent marks a progress report with no meaningful percentage.
const IndeterminatePercent = -1

// ProgressFunc receives a human-readable message and a 0-100 percentage, or
// IndeterminatePercent when no percentage applies.
type ProgressFunc func(message string, percent int)

// ErrorFunc receives a problem description. actionable is false for
// informational noise the user can ignore and true for problems that need
// attention.
type ErrorFunc func(message string, actionable bool)

// NopProgress discards progress reports.
func NopProgress(string, int) {}

// NopError discards error reports.
func NopError(string, bool) {}

// OrNop returns fn, or the no-op progress sink when fn is nil.
func (fn ProgressFunc) OrNop() ProgressFunc {
	if fn == nil {
		return NopProgress
	}
	return fn
}

// OrNop returns fn, or the no-op error sink when fn is nil.
func (fn ErrorFunc) OrNop() ErrorFunc {
	if fn == nil {
		return NopError
	}
	return fn
}
