package extract

import (
	"fmt"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agentic-research/formdex/internal/plugin"
)

// Optional capabilities a decoder's concrete record types may expose beyond
// plugin.Named. Discovery of which one a type supports happens once per
// concrete type and is cached.
type (
	// Titled records carry a title-like label (books, notes, quests).
	Titled interface {
		Title() (string, bool)
	}
	// Described records carry descriptive text usable as a label of last
	// resort before the synthetic fallback.
	Described interface {
		Description() (string, bool)
	}
)

type labelStrategy func(plugin.Record) (string, bool)

// labelCacheSize bounds the per-type strategy cache. Real plugins use a few
// dozen record types, so this never evicts in practice.
const labelCacheSize = 256

// LabelResolver resolves a display label for a record through a fixed
// priority chain: editor id, the Named capability, a per-concrete-type
// strategy resolved once and memoized, then a deterministic fallback of
// "[Type_id]".
type LabelResolver struct {
	cache *lru.Cache[reflect.Type, labelStrategy]
}

func NewLabelResolver() *LabelResolver {
	cache, err := lru.New[reflect.Type, labelStrategy](labelCacheSize)
	if err != nil {
		panic(err) // only fails for size <= 0
	}
	return &LabelResolver{cache: cache}
}

// Resolve returns the label for rec. formID is the already-rendered
// 6-hex-char identifier, used by the fallback.
func (lr *LabelResolver) Resolve(rec plugin.Record, formID string) string {
	if eid, ok := rec.EditorID(); ok && eid != "" {
		return eid
	}
	if named, ok := rec.(plugin.Named); ok {
		if name, ok := named.DisplayName(); ok && name != "" {
			return name
		}
	}
	if label, ok := lr.strategyFor(rec)(rec); ok && label != "" {
		return label
	}
	return fmt.Sprintf("[%s_%s]", rec.Type(), formID)
}

// strategyFor resolves the extraction strategy for rec's concrete type,
// computing it at most once per type.
func (lr *LabelResolver) strategyFor(rec plugin.Record) labelStrategy {
	t := reflect.TypeOf(rec)
	if s, ok := lr.cache.Get(t); ok {
		return s
	}
	s := discoverStrategy(rec)
	lr.cache.Add(t, s)
	return s
}

func discoverStrategy(rec plugin.Record) labelStrategy {
	if _, ok := rec.(Titled); ok {
		return func(r plugin.Record) (string, bool) {
			return r.(Titled).Title()
		}
	}
	if _, ok := rec.(Described); ok {
		return func(r plugin.Record) (string, bool) {
			return r.(Described).Description()
		}
	}
	return func(plugin.Record) (string, bool) { return "", false }
}
