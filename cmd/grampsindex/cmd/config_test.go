package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gramps-project/grampsindex/internal/config"
	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/pkg/version"
)

func TestConfigInit_BackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	// Given: a fresh directory
	out := mustRun(t, "config", "init")
	assert.Contains(t, out, "Created grampsindex.yaml")

	var written config.Config
	data, err := os.ReadFile(config.FileName)
	require.NoError(t, err)
	require.NoError(t, yaml.Unmarshal(data, &written))
	assert.Equal(t, 20, written.Search.PageSize)

	// When: running init again without and with --force
	out = mustRun(t, "config", "init")
	assert.Contains(t, out, "already exists")
	require.NoError(t, os.WriteFile(config.FileName, []byte("search:\n  page_size: 7\n"), 0o600))
	mustRun(t, "config", "init", "--force")

	// Then: the replaced file was backed up and can be restored
	list := strings.TrimSpace(mustRun(t, "config", "restore", "--list"))
	require.NotEmpty(t, list)
	mustRun(t, "config", "restore")
	data, err = os.ReadFile(config.FileName)
	require.NoError(t, err)
	assert.Contains(t, string(data), "page_size: 7")
}

func TestConfigShow_HidesAPIKey(t *testing.T) {
	newWorkspace(t)
	t.Setenv("VECTOR_EMBEDDING_API_KEY", "sk-secret")

	out := mustRun(t, "config", "show")
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "********")

	out = mustRun(t, "config", "show", "--json")
	assert.NotContains(t, out, "sk-secret")
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Contains(t, shown, "database")
}

func TestConfig_ExplicitFileMustExist(t *testing.T) {
	newWorkspace(t)

	_, err := run(t, "--config", "nope.yaml", "status")

	assert.Equal(t, gerrors.ErrCodeConfigNotFound, gerrors.GetCode(err))
}

func TestResolveTrees_NoneConfigured(t *testing.T) {
	cfg := config.NewConfig()

	_, err := resolveTrees(cfg, nil)
	assert.Equal(t, gerrors.ErrCodeInvalidTree, gerrors.GetCode(err))

	cfg.Database.Trees = map[string]string{"b": "b.db", "a": "a.db"}
	trees, err := resolveTrees(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, trees)

	_, err = singleTree(cfg, "")
	assert.Equal(t, gerrors.ErrCodeInvalidTree, gerrors.GetCode(err))
	tree, err := singleTree(cfg, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", tree)
}

func TestVersionCmd(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, out string)
	}{
		{"default", []string{"version"}, func(t *testing.T, out string) {
			assert.True(t, strings.HasPrefix(out, version.String()+"\n"))
			assert.Contains(t, out, "index backends: memory, bleve, sqlite")
		}},
		{"short", []string{"version", "--short"}, func(t *testing.T, out string) {
			assert.Equal(t, version.Version+"\n", out)
		}},
		{"json", []string{"version", "--json"}, func(t *testing.T, out string) {
			var report buildReport
			require.NoError(t, json.Unmarshal([]byte(out), &report))
			assert.Equal(t, version.Version, report.Version)
			assert.Len(t, report.Backends, 3)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mustRun(t, tt.args...))
		})
	}
}
