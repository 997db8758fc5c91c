package extract

import (
	"context"
	"strings"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/formdex/internal/gamedef"
	"github.com/agentic-research/formdex/internal/store"
)

func listFS(t *testing.T, lines ...string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/export.txt", []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return fs
}

func TestProcessListWellFormed(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	ex := &TextListExtractor{FS: listFS(t,
		"Skyrim.esm|000001|Sword",
		"  Skyrim.esm | 00000F | Padded ",
		"Other.esp|0ABCDE|Thing",
	)}

	stats, err := ex.ProcessList(ctx, st, gamedef.SkyrimSE, "/export.txt", false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Inserted)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, []string{"Skyrim.esm", "Other.esp"}, stats.Plugins)

	rows := selectRows(t, st, "Skyrim.esm")
	require.Len(t, rows, 2)
	assert.Equal(t, store.Row{Plugin: "Skyrim.esm", FormID: "00000F", Entry: "Padded"}, rows[1], "fields are trimmed")
}

func TestProcessListSkipsMalformed(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	ex := &TextListExtractor{FS: listFS(t,
		"",
		"   ",
		"no delimiters here",
		"one|delimiter",
		"three|del|imi|ters",
		"Good.esp|000001|Kept",
	)}

	stats, err := ex.ProcessList(ctx, st, gamedef.SkyrimSE, "/export.txt", false)
	require.NoError(t, err, "malformed lines are ignored without error")
	assert.Equal(t, 1, stats.Inserted)
	assert.Equal(t, 5, stats.Skipped)
}

func TestProcessListMissingFileIsFatal(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	ex := &TextListExtractor{FS: memfs.New()}

	_, err := ex.ProcessList(ctx, st, gamedef.SkyrimSE, "/missing.txt", false)
	require.Error(t, err)
}

func TestProcessListDuplicateThenUpdate(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)

	// Two rows with the same plugin+formid and different labels coexist.
	ex := &TextListExtractor{FS: listFS(t,
		"Skyrim.esm|000001|Sword",
		"Skyrim.esm|000001|Blade",
	)}
	_, err := ex.ProcessList(ctx, st, gamedef.SkyrimSE, "/export.txt", false)
	require.NoError(t, err)
	rows := selectRows(t, st, "Skyrim.esm")
	require.Len(t, rows, 2)
	assert.Equal(t, "Sword", rows[0].Entry)
	assert.Equal(t, "Blade", rows[1].Entry)

	// An update-mode run with only the Blade line replaces both.
	ex2 := &TextListExtractor{FS: listFS(t, "Skyrim.esm|000001|Blade")}
	_, err = ex2.ProcessList(ctx, st, gamedef.SkyrimSE, "/export.txt", true)
	require.NoError(t, err)
	rows = selectRows(t, st, "Skyrim.esm")
	require.Len(t, rows, 1)
	assert.Equal(t, "Blade", rows[0].Entry)
}

func TestProcessListUpdateModeIdempotent(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)
	lines := []string{
		"A.esp|000001|One",
		"A.esp|000002|Two",
		"B.esp|000001|Three",
	}

	for i := 0; i < 2; i++ {
		ex := &TextListExtractor{FS: listFS(t, lines...)}
		_, err := ex.ProcessList(ctx, st, gamedef.SkyrimSE, "/export.txt", true)
		require.NoError(t, err)
	}

	assert.Len(t, selectRows(t, st, "A.esp"), 2, "running twice equals running once")
	assert.Len(t, selectRows(t, st, "B.esp"), 1)
}

func TestProcessListInterleavedPluginFlushes(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)

	// A.esp appears again after B.esp; the clear must only happen on first
	// sight or the second segment would wipe the first.
	ex := &TextListExtractor{FS: listFS(t,
		"A.esp|000001|One",
		"B.esp|000001|Two",
		"A.esp|000002|Three",
	), BatchSize: 1}
	_, err := ex.ProcessList(ctx, st, gamedef.SkyrimSE, "/export.txt", true)
	require.NoError(t, err)

	assert.Len(t, selectRows(t, st, "A.esp"), 2)
	assert.Len(t, selectRows(t, st, "B.esp"), 1)
}

func TestProcessListCancellation(t *testing.T) {
	st := testStore(t)
	var lines []string
	for i := 0; i < 50; i++ {
		lines = append(lines, "A.esp|000001|Entry")
	}
	ex := &TextListExtractor{FS: listFS(t, lines...), BatchSize: 10}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ex.ProcessList(ctx, st, gamedef.SkyrimSE, "/export.txt", false)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, selectRows(t, st, "A.esp"))
}

func TestProcessListProgressUsesBytePosition(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)

	var lines []string
	for i := 0; i < 2500; i++ {
		lines = append(lines, "A.esp|000001|Entry")
	}
	var percents []int
	ex := &TextListExtractor{
		FS:       listFS(t, lines...),
		Progress: func(_ string, pct int) { percents = append(percents, pct) },
	}
	_, err := ex.ProcessList(ctx, st, gamedef.SkyrimSE, "/export.txt", false)
	require.NoError(t, err)

	require.NotEmpty(t, percents)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1], "progress never goes backwards")
	}
	assert.Equal(t, 100, percents[len(percents)-1])
}

func TestProcessListProgressCountsCRLFBytes(t *testing.T) {
	ctx := context.Background()
	st := testStore(t)

	// The whole file fits in the scanner's buffer, so every report sees the
	// full file consumed. Counting stripped line lengths instead of consumed
	// bytes would undercount the \r\n terminators and report < 100 here.
	var sb strings.Builder
	for i := 0; i < 2500; i++ {
		sb.WriteString("A.esp|000001|Entry\r\n")
	}
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/export.txt", []byte(sb.String()), 0o644))

	var percents []int
	ex := &TextListExtractor{
		FS:       fs,
		Progress: func(_ string, pct int) { percents = append(percents, pct) },
	}
	_, err := ex.ProcessList(ctx, st, gamedef.SkyrimSE, "/export.txt", false)
	require.NoError(t, err)

	require.NotEmpty(t, percents)
	for _, pct := range percents {
		assert.Equal(t, 100, pct)
	}
}
