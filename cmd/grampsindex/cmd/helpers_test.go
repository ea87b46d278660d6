package cmd

import (
	"bytes"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gramps-project/grampsindex/internal/gramps"
)

func personJSON(handle, id, first, surname string, change int64, private bool) string {
	return fmt.Sprintf(`{
  "_class": "Person", "handle": %q, "gramps_id": %q, "change": %d,
  "private": %t, "tag_list": [], "gender": 1,
  "primary_name": {
    "_class": "Name", "first_name": %q, "suffix": "", "private": false,
    "type": {"_class": "NameType", "value": 2, "string": ""},
    "surname_list": [{"_class": "Surname", "surname": %q, "prefix": "", "primary": true,
                      "origintype": {"_class": "NameOriginType", "value": 1, "string": ""}}]
  },
  "alternate_names": [], "event_ref_list": [],
  "birth_ref_index": -1, "death_ref_index": -1, "person_ref_list": []
}`, handle, id, change, private, first, surname)
}

func noteJSON(handle, id, text string, change int64) string {
	return fmt.Sprintf(`{
  "_class": "Note", "handle": %q, "gramps_id": %q, "change": %d, "private": false,
  "text": {"_class": "StyledText", "string": %q, "tags": []},
  "type": {"_class": "NoteType", "value": 1, "string": ""}
}`, handle, id, change, text)
}

// workspace is a temp directory with a Gramps database of tree "smith",
// a sqlite index and a config file naming both.
type workspace struct {
	dir    string
	dbPath string
	index  string
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	dir := t.TempDir()
	w := &workspace{
		dir:    dir,
		dbPath: filepath.Join(dir, "smith.db"),
		index:  filepath.Join(dir, "index", "search.db"),
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(w.index), 0o755))

	db, err := sql.Open("sqlite", w.dbPath)
	require.NoError(t, err)
	defer db.Close()
	for _, c := range gramps.Classes {
		_, err := db.Exec("CREATE TABLE " + c.Table() + " (handle VARCHAR(50) PRIMARY KEY NOT NULL, json_data TEXT)")
		require.NoError(t, err)
	}
	_, err = db.Exec(`CREATE TABLE reference (obj_handle VARCHAR(50), obj_class TEXT, ref_handle VARCHAR(50), ref_class TEXT)`)
	require.NoError(t, err)

	w.put(t, "person", "p1", personJSON("p1", "I0001", "John", "Smith", 1700000000, false))
	w.put(t, "person", "p2", personJSON("p2", "I0002", "Jane", "Smith", 1700000001, true))
	w.put(t, "note", "n1", noteJSON("n1", "N0001", "Parish records of Springfield", 1700000002))

	cfg := fmt.Sprintf("database:\n  trees:\n    smith: %s\nindex:\n  uri: sqlite://%s\n", w.dbPath, w.index)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grampsindex.yaml"), []byte(cfg), 0o600))

	t.Chdir(dir)
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("GRAMPSINDEX_CONFIG", "")
	t.Setenv("SEARCH_INDEX_DB_URI", "sqlite://"+w.index)
	t.Setenv("VECTOR_EMBEDDING_MODEL", "")
	t.Setenv("VECTOR_EMBEDDING_BASE_URL", "")
	t.Setenv("NO_COLOR", "1")
	return w
}

// put inserts or replaces one object row.
func (w *workspace) put(t *testing.T, table, handle, data string) {
	t.Helper()
	db, err := sql.Open("sqlite", w.dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("INSERT OR REPLACE INTO "+table+" (handle, json_data) VALUES (?, ?)", handle, data)
	require.NoError(t, err)
}

func (w *workspace) remove(t *testing.T, table, handle string) {
	t.Helper()
	db, err := sql.Open("sqlite", w.dbPath)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec("DELETE FROM "+table+" WHERE handle = ?", handle)
	require.NoError(t, err)
}

// run executes the CLI with args and returns its combined output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	return out
}
