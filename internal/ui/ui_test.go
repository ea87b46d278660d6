package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_StringAndIcon(t *testing.T) {
	assert.Equal(t, "Indexing", StageIndexing.String())
	assert.Equal(t, "DONE", StageComplete.Icon())
	assert.Equal(t, "???", Stage(42).Icon())
}

func TestNewRenderer_NonTTYIsPlain(t *testing.T) {
	// Given output that is not a terminal
	var buf bytes.Buffer

	// When a renderer is created
	r := NewRenderer(NewConfig(&buf))

	// Then it falls back to plain output
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestPlainRenderer_ThrottlesByPercent(t *testing.T) {
	// Given a plain renderer
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	// When 1000 objects report progress one by one
	for i := 1; i <= 1000; i++ {
		r.UpdateProgress(ProgressEvent{Job: "tree/keyword", Stage: StageIndexing, Current: i, Total: 1000})
	}

	// Then at most one line per percent is written and the last one is final
	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	assert.LessOrEqual(t, lines, 101)
	assert.Contains(t, buf.String(), "[INDEX] tree/keyword 1000/1000\n")
}

func TestPlainRenderer_CompleteAndErrors(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.AddError(ErrorEvent{Job: "b/semantic", Err: errors.New("boom")})
	r.Complete(CompletionStats{
		JobID:    "job-1",
		Duration: 2 * time.Second,
		Jobs: []JobStats{
			{Job: "a/keyword", Mode: "full", Objects: 12},
			{Job: "b/semantic", Mode: "incremental", Added: 1, Updated: 2, Deleted: 3, Err: errors.New("boom")},
		},
		Embedder: EmbedderInfo{Model: "static", Dimensions: 256},
	})

	out := buf.String()
	assert.Contains(t, out, "ERROR: b/semantic: boom")
	assert.Contains(t, out, "Complete: 2 jobs in 2s (1 failed) [job-1]")
	assert.Contains(t, out, "a/keyword: 12 objects")
	assert.Contains(t, out, "b/semantic: 1 added, 2 updated, 3 deleted")
	assert.Contains(t, out, "FAILED: boom")
	assert.Contains(t, out, "Embedding model: static (256 dims)")
}

func TestProgressTracker_JobsAndOverall(t *testing.T) {
	// Given a tracker with a fixed clock
	now := time.Unix(1000, 0)
	p := NewProgressTracker()
	p.now = func() time.Time { return now }

	// When two jobs report progress
	p.Update(ProgressEvent{Job: "b", Stage: StageIndexing, Current: 0, Total: 100})
	p.Update(ProgressEvent{Job: "a", Stage: StageIndexing, Current: 0, Total: 300})
	now = now.Add(10 * time.Second)
	p.Update(ProgressEvent{Job: "b", Stage: StageIndexing, Current: 50, Total: 100})
	p.Update(ProgressEvent{Job: "a", Stage: StageIndexing, Current: 150, Total: 300})

	// Then snapshots are sorted and ETAs derived from the rate
	jobs := p.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].Job)
	assert.InDelta(t, 0.5, jobs[0].Fraction(), 1e-9)
	assert.Equal(t, 10*time.Second, jobs[1].ETA)
	assert.InDelta(t, 0.5, p.Overall(), 1e-9)

	// And finishing a job clears its ETA
	p.Finish("a")
	assert.Equal(t, StageComplete, p.Jobs()[0].Stage)
	assert.Zero(t, p.Jobs()[0].ETA)
}

func TestProgressTracker_Counts(t *testing.T) {
	p := NewProgressTracker()
	p.AddError(ErrorEvent{Err: errors.New("a")})
	p.AddError(ErrorEvent{Err: errors.New("b"), IsWarn: true})
	p.AddError(ErrorEvent{Err: errors.New("c")})

	errs, warns := p.Counts()
	assert.Equal(t, 2, errs)
	assert.Equal(t, 1, warns)
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		42 * time.Second:              "42s",
		3 * time.Minute:               "3m",
		3*time.Minute + 5*time.Second: "3m 5s",
		time.Hour + 2*time.Minute:     "1h 2m",
	}
	for d, want := range tests {
		assert.Equal(t, want, formatDuration(d))
	}
}

func TestStatusRenderer_Render(t *testing.T) {
	// Given status with one inconsistent check
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)
	info := StatusInfo{
		EmbedderStatus: "disabled",
		Collections: []CollectionStatus{
			{Tree: "smith", Flavour: "keyword", Objects: 10, Full: 9, Public: 7},
		},
		Checks: []CheckStatus{
			{Tree: "smith", Flavour: "keyword", Checked: 10, Counts: map[string]int{"stale": 2, "missing": 1}},
		},
	}

	// When rendered
	require.NoError(t, r.Render(info))

	// Then counts and the verdict appear; missing objects are not problems
	out := buf.String()
	assert.Contains(t, out, "Search index: in memory")
	assert.Contains(t, out, "Semantic search: disabled")
	assert.Contains(t, out, "smith")
	assert.Contains(t, out, "2 inconsistencies")
	assert.Contains(t, out, "stale:")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewStatusRenderer(&buf, true)
	require.NoError(t, r.RenderJSON(StatusInfo{IndexURI: "sqlite:///tmp/x.db", EmbedderStatus: "enabled"}))
	assert.Contains(t, buf.String(), `"index_uri": "sqlite:///tmp/x.db"`)
}
