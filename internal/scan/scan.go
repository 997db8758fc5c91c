// Package scan builds the user-selectable candidate plugin list: the load
// order filtered down to files that actually exist on disk. Refreshes are
// expected to run off the interactive path; a refresh that has been
// superseded by a newer one discards its results instead of publishing.
package scan

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/formdex/internal/feedback"
	"github.com/agentic-research/formdex/internal/gamedef"
	"github.com/agentic-research/formdex/internal/loadorder"
)

// progressStride is how many probed files pass between progress reports.
const progressStride = 10

// List is the scanner's publish target: a guarded snapshot of candidate
// names. It is only ever replaced wholesale, never partially merged.
type List struct {
	mu    sync.Mutex
	items []string
}

// Items returns a copy of the current candidates.
func (l *List) Items() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}

func (l *List) replace(items []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = items
}

func (l *List) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}

// Scanner probes the load order against the filesystem. The generation
// counter implements supersession: every Refresh captures a sequence number
// at start and publishes only if no newer Refresh has started since, so the
// most recently started call always wins regardless of completion order.
type Scanner struct {
	Resolver *loadorder.Resolver
	FS       billy.Filesystem

	generation atomic.Uint64
}

// Refresh rebuilds target for the given game directory. It blocks while
// probing, so interactive callers run it on a background goroutine. When
// includeBasePlugins is false the release's official masters are filtered
// out. On error the target is cleared and two reports are emitted: the
// failure and a remediation hint.
func (s *Scanner) Refresh(
	gameDir string,
	release gamedef.Release,
	target *List,
	includeBasePlugins bool,
	progress feedback.ProgressFunc,
	errs feedback.ErrorFunc,
) {
	progress = progress.OrNop()
	errs = errs.OrNop()
	gen := s.generation.Add(1)

	names, err := s.Resolver.ListedPluginNames(release, gameDir)
	if err != nil {
		// A superseded call discards everything, including its clear; the
		// newer call owns the target now.
		if s.generation.Load() != gen {
			return
		}
		target.clear()
		errs(fmt.Sprintf("could not read the load order for %s: %v", release, err), true)
		errs("check that the game directory is correct and the load order file is readable", false)
		return
	}

	var candidates []string
	dedup := make(map[string]bool, len(names))
	probed := 0
	for _, name := range names {
		if !includeBasePlugins && gamedef.IsBasePlugin(release, name) {
			continue
		}
		key := strings.ToLower(name)
		if dedup[key] {
			continue
		}
		dedup[key] = true

		// Existence probing against slow storage is the expensive part.
		if _, err := s.FS.Stat(filepath.Join(gameDir, name)); err == nil {
			candidates = append(candidates, name)
		}
		probed++
		if probed%progressStride == 0 {
			progress(fmt.Sprintf("Verified %d plugins", probed), feedback.IndeterminatePercent)
		}
	}

	// Compare-then-publish: a newer refresh owns the target now.
	if s.generation.Load() != gen {
		return
	}
	target.replace(candidates)
	progress(fmt.Sprintf("Found %d plugins", len(candidates)), 100)
}
