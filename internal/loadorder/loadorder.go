// Package loadorder resolves the ordered plugin list for a game installation.
// The ordering itself comes from an external provider; this package keeps the
// listing verbatim and optionally decorates it with per-plugin
// master-addressing metadata.
package loadorder

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/formdex/internal/gamedef"
	"github.com/agentic-research/formdex/internal/plugin"
)

// Provider is the external load-order source. Given a release and its data
// directory it returns plugin file names in load order.
type Provider interface {
	ListPlugins(release gamedef.Release, dataDir string) ([]string, error)
}

// Snapshot is one resolved load order: the provider's listing in its exact
// order, a case-insensitive membership index, and (when requested) the
// master-addressing style of each installed plugin.
type Snapshot struct {
	// Names is the provider listing verbatim: original order, duplicates
	// included. Callers de-duplicate if they need to.
	Names []string

	// Styles maps listed plugin names to their master-addressing style.
	// Only populated when the snapshot was built with master info for a
	// release that separates master addressing; plugins listed but not
	// installed are absent from the map.
	Styles map[string]gamedef.MasterStyle

	lower map[string]string // lower-cased name → first listed spelling
}

// Lookup finds name in the load order by case-insensitive exact match and
// returns the listed spelling.
func (s *Snapshot) Lookup(name string) (string, bool) {
	listed, ok := s.lower[strings.ToLower(name)]
	return listed, ok
}

// Resolver builds snapshots from a Provider. The filesystem is injected so
// tests can run against an in-memory tree.
type Resolver struct {
	provider Provider
	fs       billy.Filesystem
	decoder  plugin.Decoder
}

// NewResolver wires a resolver. decoder may be nil when master-style metadata
// will never be requested.
func NewResolver(p Provider, fsys billy.Filesystem, dec plugin.Decoder) *Resolver {
	return &Resolver{provider: p, fs: fsys, decoder: dec}
}

// BuildSnapshot fetches the provider's listing and builds the membership
// index. When includeMasterInfo is set and the release separates master
// addressing, each installed plugin's header is probed for its style; listed
// plugins with no file on disk are skipped, not errors — the plugin may
// simply not be installed. Provider failures propagate unmodified.
func (r *Resolver) BuildSnapshot(release gamedef.Release, dataDir string, includeMasterInfo bool) (*Snapshot, error) {
	names, err := r.provider.ListPlugins(release, dataDir)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Names: names,
		lower: make(map[string]string, len(names)),
	}
	for _, n := range names {
		key := strings.ToLower(n)
		if _, seen := snap.lower[key]; !seen {
			snap.lower[key] = n
		}
	}

	if includeMasterInfo && gamedef.UsesSeparatedMasters(release) {
		if r.decoder == nil {
			return nil, fmt.Errorf("master info requested for %s but no decoder available", release)
		}
		snap.Styles = make(map[string]gamedef.MasterStyle, len(names))
		for _, n := range names {
			path := filepath.Join(dataDir, n)
			if _, err := r.fs.Stat(path); err != nil {
				continue // not installed
			}
			style, err := r.decoder.MasterStyle(path, release)
			if err != nil {
				return nil, fmt.Errorf("probe master style of %s: %w", n, err)
			}
			snap.Styles[n] = style
		}
	}

	return snap, nil
}

// ListedPluginNames returns only the ordered names, without master metadata.
func (r *Resolver) ListedPluginNames(release gamedef.Release, dataDir string) ([]string, error) {
	snap, err := r.BuildSnapshot(release, dataDir, false)
	if err != nil {
		return nil, err
	}
	return snap.Names, nil
}

// FileProvider reads the load order from a plain text file inside the data
// directory, one plugin per line. Lines starting with '#' are comments; a
// leading '*' (active-plugin marker) is stripped.
type FileProvider struct {
	FS       billy.Filesystem
	FileName string // defaults to "plugins.txt"
}

func (p *FileProvider) ListPlugins(_ gamedef.Release, dataDir string) ([]string, error) {
	name := p.FileName
	if name == "" {
		name = "plugins.txt"
	}
	f, err := p.FS.Open(filepath.Join(dataDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("load order file %s not found in %s: %w", name, dataDir, err)
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "*")
		names = append(names, strings.TrimSpace(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read load order file: %w", err)
	}
	return names, nil
}
