package embed

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// countingEmbedder returns vector {len(text), 1} and counts inner calls.
type countingEmbedder struct {
	calls  atomic.Int64
	texts  atomic.Int64
	closed atomic.Bool
}

func (m *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.calls.Add(1)
	m.texts.Add(int64(len(texts)))
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (m *countingEmbedder) Dimensions() int   { return 2 }
func (m *countingEmbedder) ModelName() string { return "counting" }
func (m *countingEmbedder) Close() error      { m.closed.Store(true); return nil }

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestStaticEmbedder_UnitVectorsInInputOrder(t *testing.T) {
	// Given
	e := NewStaticEmbedder()
	texts := []string{"Birth of John Doe in Springfield", "", "Marriage record"}

	// When
	vecs, err := e.Embed(context.Background(), texts)

	// Then: one unit vector per text, none zero
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Len(t, v, StaticDimensions)
		assert.InDelta(t, 1.0, math.Sqrt(dot(v, v)), 1e-5, "vector %d", i)
	}
	assert.NotEqual(t, vecs[0], vecs[2])
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	a, err := NewStaticEmbedder().Embed(context.Background(), []string{"Parish register of St. Mary"})
	require.NoError(t, err)
	b, err := NewStaticEmbedder().Embed(context.Background(), []string{"Parish register of St. Mary"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestStaticEmbedder_RelatedTextsAreCloser(t *testing.T) {
	// Given
	vecs, err := NewStaticEmbedder().Embed(context.Background(), []string{
		"John Doe was born in Springfield",
		"Birth of John Doe, Springfield",
		"Photograph of the harbour at night",
	})
	require.NoError(t, err)

	// Then
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestStaticEmbedder_FoldsDiacritics(t *testing.T) {
	vecs, err := NewStaticEmbedder().Embed(context.Background(), []string{"Jürgen Müller", "jurgen muller"})
	require.NoError(t, err)

	assert.InDelta(t, 1.0, dot(vecs[0], vecs[1]), 1e-5)
}

func TestTokenize_DropsStopWordsAndPunctuation(t *testing.T) {
	assert.Equal(t, []string{"john", "doe", "person", "i0001", "born", "1850"},
		tokenize("The [John Doe](/person/I0001) was born in 1850."))
}

func TestStaticEmbedder_ClosedFails(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), []string{"x"})
	assert.True(t, gerrors.HasCode(err, gerrors.ErrCodeEmbeddingFailed))
}

func TestCachedEmbedder_OnlyMissesReachInner(t *testing.T) {
	// Given: a cache warmed with "a"
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 10)
	_, err := c.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)

	// When: embedding a batch with one cached and two new texts
	vecs, err := c.Embed(context.Background(), []string{"bb", "a", "ccc"})

	// Then: one inner call for the two misses, order preserved
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.calls.Load())
	assert.Equal(t, int64(3), inner.texts.Load())
	assert.Equal(t, [][]float32{{2, 1}, {1, 1}, {3, 1}}, vecs)
	assert.Equal(t, 3, c.Len())
}

// shortEmbedder drops the last vector of every batch.
type shortEmbedder struct{ countingEmbedder }

func (m *shortEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out, err := m.countingEmbedder.Embed(ctx, texts)
	if err != nil || len(out) == 0 {
		return out, err
	}
	return out[:len(out)-1], nil
}

func TestCachedEmbedder_ShortInnerResultFails(t *testing.T) {
	// Given: an inner embedder that loses a vector
	c := NewCachedEmbedder(&shortEmbedder{}, 10)

	// When: embedding two uncached texts
	vecs, err := c.Embed(context.Background(), []string{"a", "bb"})

	// Then: a coded error instead of a panic, and nothing is cached
	require.Error(t, err)
	assert.Nil(t, vecs)
	assert.Equal(t, gerrors.ErrCodeEmbeddingFailed, gerrors.GetCode(err))
	assert.Equal(t, 0, c.Len())
}

func TestCachedEmbedder_AllHitsSkipInner(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 0)
	_, _ = c.Embed(context.Background(), []string{"query"})
	_, _ = c.Embed(context.Background(), []string{"query"})

	assert.Equal(t, int64(1), inner.calls.Load())
}

func TestCachedEmbedder_EvictsOldest(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 2)
	for _, s := range []string{"a", "b", "c"} {
		_, err := c.Embed(context.Background(), []string{s})
		require.NoError(t, err)
	}

	// "a" was evicted
	_, err := c.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), inner.calls.Load())
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 1)

	assert.Equal(t, 2, c.Dimensions())
	assert.Equal(t, "counting", c.ModelName())
	require.NoError(t, c.Close())
	assert.True(t, inner.closed.Load())
}

func TestNew_EmptyModelDisablesSemantic(t *testing.T) {
	_, err := New(context.Background(), Config{Model: "  "})

	assert.ErrorIs(t, err, ErrSemanticDisabled)
	assert.True(t, gerrors.HasCode(err, gerrors.ErrCodeSemanticDisabled))
}

func TestNew_StaticModel(t *testing.T) {
	e, err := New(context.Background(), Config{Model: StaticModelName})

	require.NoError(t, err)
	assert.IsType(t, &StaticEmbedder{}, e)
	assert.Equal(t, StaticDimensions, e.Dimensions())
}

func TestNew_UnknownLocalModel(t *testing.T) {
	_, err := New(context.Background(), Config{Model: "no-such-model"})

	require.Error(t, err)
	assert.True(t, gerrors.HasCode(err, gerrors.ErrCodeEmbeddingModel))
}

func TestLocalModelDimensions(t *testing.T) {
	dims, ok := LocalModelDimensions("BAAI/bge-small-en-v1.5")
	assert.True(t, ok)
	assert.Equal(t, 384, dims)

	_, ok = LocalModelDimensions("gpt")
	assert.False(t, ok)
}
