// Package plugin defines the boundary to the external binary plugin decoder.
// formdex never parses the plugin format itself; a decoder implementation is
// registered at program start (the same shape as database/sql drivers) and
// everything downstream consumes the Record stream it yields.
package plugin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/agentic-research/formdex/internal/gamedef"
)

// Record is one decoded game-content record.
type Record interface {
	// FormID returns the record's raw identifier. Callers keep only the low
	// 24 bits (the part that is stable across load orders).
	FormID() (uint32, error)

	// EditorID returns the record's short text identifier, if it has one.
	EditorID() (string, bool)

	// Type returns the record's four-character signature (e.g. "WEAP").
	Type() string
}

// Named is the capability interface for record types that carry a display
// name. Label extraction queries it before falling back to per-type
// strategies.
type Named interface {
	DisplayName() (string, bool)
}

// RecordStream yields one plugin's records in file order.
type RecordStream interface {
	// Next returns the next record, or io.EOF when the stream is exhausted.
	Next() (Record, error)
	Close() error
}

// Decoder opens plugin files and probes their headers.
type Decoder interface {
	// Open decodes the plugin at path and returns its record stream.
	Open(path string, release gamedef.Release) (RecordStream, error)

	// MasterStyle reads the plugin's header flags and reports its
	// master-addressing style.
	MasterStyle(path string, release gamedef.Release) (gamedef.MasterStyle, error)
}

// ErrNoDecoder is returned by Default when no decoder implementation has
// registered itself.
var ErrNoDecoder = errors.New("no plugin decoder registered; link a decoder implementation or use the text-list path")

var (
	decoderMu sync.RWMutex
	decoder   Decoder
)

// Register installs the process-wide decoder. Decoder implementations call it
// from an init function; registering twice panics, same as database/sql.
func Register(d Decoder) {
	decoderMu.Lock()
	defer decoderMu.Unlock()
	if d == nil {
		panic("plugin: Register called with nil decoder")
	}
	if decoder != nil {
		panic("plugin: decoder already registered")
	}
	decoder = d
}

// Default returns the registered decoder.
func Default() (Decoder, error) {
	decoderMu.RLock()
	defer decoderMu.RUnlock()
	if decoder == nil {
		return nil, ErrNoDecoder
	}
	return decoder, nil
}

// FormatFormID renders the low 24 bits of id as a fixed-width uppercase hex
// string, the form stored in the database and used in text exports.
func FormatFormID(id uint32) string {
	return fmt.Sprintf("%06X", id&0xFFFFFF)
}
