package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogsCmd_FiltersEntries(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	path := filepath.Join(dir, "grampsindex.log")
	lines := []string{
		`{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"reindex_started","tree":"smith"}`,
		`{"time":"2026-01-02T10:00:01Z","level":"INFO","msg":"reindex_started","tree":"jones"}`,
		`{"time":"2026-01-02T10:00:02Z","level":"ERROR","msg":"reindex_failed","tree":"smith"}`,
		`{"time":"2026-01-02T10:00:03Z","level":"DEBUG","msg":"indexer_opened","tree":"smith"}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))

	out := mustRun(t, "logs", "--file", path, "--no-color", "--tree", "smith", "--level", "info")
	assert.Contains(t, out, "reindex_started")
	assert.Contains(t, out, "reindex_failed")
	assert.NotContains(t, out, "jones")
	assert.NotContains(t, out, "indexer_opened")

	out = mustRun(t, "logs", "--file", path, "--no-color", "--grep", "failed", "-n", "2")
	assert.Contains(t, out, "reindex_failed")
	assert.NotContains(t, out, "reindex_started")
}

func TestLogsCmd_MissingFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	_, err := run(t, "logs", "--file", filepath.Join(t.TempDir(), "none.log"))
	assert.ErrorContains(t, err, "log file not found")
}
