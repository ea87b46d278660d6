package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

func indexedFamily(t *testing.T) *Indexer {
	t.Helper()
	ix := newKeywordIndexer(t, familyDB())
	require.NoError(t, ix.ReindexFull(context.Background(), nil))
	return ix
}

func TestSearch_PagingContinuesRanks(t *testing.T) {
	ctx := context.Background()
	ix := indexedFamily(t)
	req := SearchRequest{Query: "", Page: 1, PageSize: 2, IncludePrivate: true, Sort: []string{"handle"}}

	first, err := ix.Search(ctx, req)
	require.NoError(t, err)
	req.Page = 2
	second, err := ix.Search(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, 4, first.Total)
	assert.Equal(t, []string{"f1", "n1"}, handles(first))
	assert.Equal(t, []string{"p1", "p2"}, handles(second))
	assert.Equal(t, 0, first.Hits[0].Rank)
	assert.Equal(t, 3, second.Hits[1].Rank)
	assert.Empty(t, first.Hits[0].Content)
}

func TestSearch_KeywordQuery(t *testing.T) {
	ctx := context.Background()
	ix := indexedFamily(t)

	res, err := ix.Search(ctx, SearchRequest{Query: "springfield", Page: 1, PageSize: 10})

	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "n1", res.Hits[0].Handle)
	assert.Equal(t, "note", res.Hits[0].ObjectType)
	assert.Greater(t, res.Hits[0].Score, 0.0)
}

func TestSearch_Filters(t *testing.T) {
	ctx := context.Background()
	ix := indexedFamily(t)
	after := int64(101)

	tests := []struct {
		name string
		req  SearchRequest
		want []string
	}{
		{
			name: "object type in any casing",
			req:  SearchRequest{ObjectTypes: []string{"PERSON"}, IncludePrivate: true},
			want: []string{"p1", "p2"},
		},
		{
			name: "change after",
			req:  SearchRequest{ChangeOp: ">", ChangeValue: &after, IncludePrivate: true},
			want: []string{"f1", "n1"},
		},
		{
			name: "public person only",
			req:  SearchRequest{ObjectTypes: []string{"person"}},
			want: []string{"p1"},
		},
		{
			name: "operator without value is ignored",
			req:  SearchRequest{ChangeOp: ">", ObjectTypes: []string{"family"}},
			want: []string{"f1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Page, tt.req.PageSize, tt.req.Sort = 1, 10, []string{"handle"}

			res, err := ix.Search(ctx, tt.req)

			require.NoError(t, err)
			assert.Equal(t, tt.want, handles(res))
			assert.Equal(t, len(tt.want), res.Total)
		})
	}
}

func TestSearch_Validation(t *testing.T) {
	ctx := context.Background()
	ix := indexedFamily(t)
	v := int64(1)

	tests := []struct {
		name string
		req  SearchRequest
		code string
	}{
		{"page zero", SearchRequest{Page: 0, PageSize: 10}, gerrors.ErrCodeInvalidInput},
		{"pagesize zero", SearchRequest{Page: 1, PageSize: 0}, gerrors.ErrCodeInvalidInput},
		{"unknown class", SearchRequest{Page: 1, PageSize: 10, ObjectTypes: []string{"Spaceship"}}, gerrors.ErrCodeUnknownClass},
		{"bad operator", SearchRequest{Page: 1, PageSize: 10, ChangeOp: "!=", ChangeValue: &v}, gerrors.ErrCodeInvalidFilter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ix.Search(ctx, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.code, gerrors.GetCode(err))
		})
	}
}

func TestSearch_BackendFailureIsSearchFailed(t *testing.T) {
	ix, _, public := newFlakyIndexer(t, familyDB())
	public.failQuery = true

	_, err := ix.Search(context.Background(), SearchRequest{Query: "doe", Page: 1, PageSize: 10})

	require.Error(t, err)
	assert.Equal(t, gerrors.ErrCodeSearchFailed, gerrors.GetCode(err))
}

func TestSearch_Semantic(t *testing.T) {
	// Given a semantic index of the tree
	ctx := context.Background()
	ix := newSemanticIndexer(t, familyDB())
	require.NoError(t, ix.ReindexFull(ctx, nil))

	// When searching for the note's subject
	res, err := ix.Search(ctx, SearchRequest{Query: "parish records Springfield", Page: 1, PageSize: 1, IncludePrivate: true})

	// Then the note ranks first
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "n1", res.Hits[0].Handle)

	// And the public semantic collection omits only the private person
	full, public := counts(t, ix)
	assert.Equal(t, 1, full-public)
}
