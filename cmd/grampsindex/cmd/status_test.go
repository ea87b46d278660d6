package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
	"github.com/gramps-project/grampsindex/internal/ui"
)

func statusJSON(t *testing.T, args ...string) ui.StatusInfo {
	t.Helper()
	out := mustRun(t, args...)
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info), out)
	return info
}

func TestStatus_CountsCollections(t *testing.T) {
	newWorkspace(t)
	mustRun(t, "reindex", "--plain")

	info := statusJSON(t, "status", "--json")

	assert.Equal(t, "disabled", info.EmbedderStatus)
	require.Len(t, info.Collections, 1)
	assert.Equal(t, ui.CollectionStatus{Tree: "smith", Flavour: "keyword", Full: 3, Public: 2, Objects: 3}, info.Collections[0])
}

func TestStatus_TextOutput(t *testing.T) {
	newWorkspace(t)
	t.Setenv("VECTOR_EMBEDDING_MODEL", "static")

	out := mustRun(t, "status")

	assert.Contains(t, out, "Semantic search: ready (static)")
	assert.Contains(t, out, "smith")
	assert.Contains(t, out, "semantic")
}

func TestCheck_DetectsAndRepairs(t *testing.T) {
	w := newWorkspace(t)
	mustRun(t, "reindex", "--plain")

	// Given: a consistent index
	info := statusJSON(t, "check", "--json")
	require.Len(t, info.Checks, 1)
	assert.Equal(t, 3, info.Checks[0].Checked)

	// When: the database changes behind the index's back
	w.remove(t, "note", "n1")
	w.put(t, "person", "p1", personJSON("p1", "I0001", "Johnny", "Smith", 1700000500, false))

	// Then: check fails and names the issues
	out, err := run(t, "check")
	require.Error(t, err)
	assert.Equal(t, gerrors.ErrCodeIndexInconsistent, gerrors.GetCode(err))
	assert.Contains(t, out, "orphan:")
	assert.Contains(t, out, "stale:")

	// And: --repair fixes them
	repaired := statusJSON(t, "check", "--repair", "--json")
	assert.True(t, repaired.Checks[0].Repaired)
	assert.Equal(t, 1, repaired.Checks[0].Counts["orphan"])
	assert.Equal(t, 1, repaired.Checks[0].Counts["stale"])

	_, err = run(t, "check")
	assert.NoError(t, err)
	assert.Equal(t, []string{"p1"}, handles(searchJSON(t, "--tree", "smith", "Johnny")))
}

func TestObjectCommands(t *testing.T) {
	w := newWorkspace(t)
	mustRun(t, "reindex", "--plain")

	// Given: a note removed from the index only
	out := mustRun(t, "delete-object", "--tree", "smith", "Note", "n1")
	assert.Contains(t, out, "Deleted note n1 in tree smith (keyword)")
	assert.Equal(t, "2\n", mustRun(t, "count", "--tree", "smith", "--private"))

	// When: the note changes and is indexed again
	w.put(t, "note", "n1", noteJSON("n1", "N0001", "Baptism register", 1700000300))
	out = mustRun(t, "index-object", "--tree", "smith", "note", "n1")

	// Then: it is searchable with the new text
	assert.Contains(t, out, "Indexed note n1")
	assert.Equal(t, []string{"n1"}, handles(searchJSON(t, "--tree", "smith", "Baptism")))
	assert.Equal(t, "3\n", mustRun(t, "count", "--tree", "smith", "--private"))
}

func TestObjectCommands_PrivateObjectLeavesPublicCollection(t *testing.T) {
	w := newWorkspace(t)
	mustRun(t, "reindex", "--plain")
	require.Equal(t, []string{"p1"}, handles(searchJSON(t, "--tree", "smith", "John")))

	w.put(t, "person", "p1", personJSON("p1", "I0001", "John", "Smith", 1700000400, true))
	mustRun(t, "index-object", "--tree", "smith", "person", "p1")

	assert.Empty(t, searchJSON(t, "--tree", "smith", "John").Hits)
	assert.Equal(t, []string{"p1"}, handles(searchJSON(t, "--tree", "smith", "--private", "John")))
}
