package scan

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/formdex/internal/gamedef"
	"github.com/agentic-research/formdex/internal/loadorder"
)

type listProvider struct {
	names []string
	err   error
}

func (p *listProvider) ListPlugins(gamedef.Release, string) ([]string, error) {
	return p.names, p.err
}

func scannerFor(t *testing.T, p loadorder.Provider, installed ...string) *Scanner {
	t.Helper()
	fs := memfs.New()
	for _, name := range installed {
		require.NoError(t, util.WriteFile(fs, filepath.Join("/data", name), []byte("x"), 0o644))
	}
	return &Scanner{
		Resolver: loadorder.NewResolver(p, fs, nil),
		FS:       fs,
	}
}

func TestRefreshFiltersAndProbes(t *testing.T) {
	p := &listProvider{names: []string{
		"Skyrim.esm",   // base, filtered
		"Alpha.esp",    // installed
		"alpha.esp",    // duplicate, first-seen spelling wins
		"Missing.esp",  // listed but not on disk
		"Beta.esp",     // installed
	}}
	s := scannerFor(t, p, "Alpha.esp", "Beta.esp")

	var target List
	s.Refresh("/data", gamedef.SkyrimSE, &target, false, nil, nil)

	assert.Equal(t, []string{"Alpha.esp", "Beta.esp"}, target.Items())
}

func TestRefreshIncludeBasePlugins(t *testing.T) {
	p := &listProvider{names: []string{"Skyrim.esm", "Alpha.esp"}}
	s := scannerFor(t, p, "Skyrim.esm", "Alpha.esp")

	var target List
	s.Refresh("/data", gamedef.SkyrimSE, &target, true, nil, nil)

	assert.Equal(t, []string{"Skyrim.esm", "Alpha.esp"}, target.Items())
}

func TestRefreshErrorClearsTarget(t *testing.T) {
	good := &listProvider{names: []string{"Alpha.esp"}}
	s := scannerFor(t, good, "Alpha.esp")

	var target List
	s.Refresh("/data", gamedef.SkyrimSE, &target, false, nil, nil)
	require.NotEmpty(t, target.Items())

	var messages []string
	s.Resolver = loadorder.NewResolver(&listProvider{err: assert.AnError}, s.FS, nil)
	s.Refresh("/data", gamedef.SkyrimSE, &target, false, nil,
		func(msg string, actionable bool) { messages = append(messages, msg) })

	assert.Empty(t, target.Items(), "a failed refresh never leaves a partial list")
	assert.Len(t, messages, 2, "one error and one remediation hint")
}

// seqProvider stalls its first call until released; later calls return
// immediately with a different listing.
type seqProvider struct {
	mu       sync.Mutex
	calls    int
	started  chan struct{}
	gate     chan struct{}
	firstErr error // when set, the first call fails after the stall
}

func (p *seqProvider) ListPlugins(gamedef.Release, string) ([]string, error) {
	p.mu.Lock()
	p.calls++
	first := p.calls == 1
	p.mu.Unlock()
	if first {
		close(p.started)
		<-p.gate
		if p.firstErr != nil {
			return nil, p.firstErr
		}
		return []string{"Old.esp"}, nil
	}
	return []string{"New.esp"}, nil
}

func TestRefreshSupersession(t *testing.T) {
	p := &seqProvider{
		started: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	fs := memfs.New()
	for _, name := range []string{"Old.esp", "New.esp"} {
		require.NoError(t, util.WriteFile(fs, filepath.Join("/data", name), []byte("x"), 0o644))
	}
	s := &Scanner{Resolver: loadorder.NewResolver(p, fs, nil), FS: fs}

	var target List
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Refresh A starts first and stalls inside the provider.
		s.Refresh("/data", gamedef.SkyrimSE, &target, false, nil, nil)
	}()

	// Wait until A is inside ListPlugins, then run B to completion.
	<-p.started
	s.Refresh("/data", gamedef.SkyrimSE, &target, false, nil, nil)
	require.Equal(t, []string{"New.esp"}, target.Items())

	// Release A; its results must be dropped, not merged.
	close(p.gate)
	wg.Wait()
	assert.Equal(t, []string{"New.esp"}, target.Items())
}

func TestRefreshSupersededFailureKeepsNewerResults(t *testing.T) {
	p := &seqProvider{
		started:  make(chan struct{}),
		gate:     make(chan struct{}),
		firstErr: assert.AnError,
	}
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, filepath.Join("/data", "New.esp"), []byte("x"), 0o644))
	s := &Scanner{Resolver: loadorder.NewResolver(p, fs, nil), FS: fs}

	var mu sync.Mutex
	var messages []string
	collect := func(msg string, _ bool) {
		mu.Lock()
		messages = append(messages, msg)
		mu.Unlock()
	}

	var target List
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Refresh A stalls inside the provider and will fail once released.
		s.Refresh("/data", gamedef.SkyrimSE, &target, false, nil, collect)
	}()

	<-p.started
	s.Refresh("/data", gamedef.SkyrimSE, &target, false, nil, collect)
	require.Equal(t, []string{"New.esp"}, target.Items())

	// A fails after being superseded: it must not clear B's published list,
	// and it stays silent.
	close(p.gate)
	wg.Wait()
	assert.Equal(t, []string{"New.esp"}, target.Items(),
		"a superseded refresh discards its results entirely, including its clear")
	assert.Empty(t, messages)
}
