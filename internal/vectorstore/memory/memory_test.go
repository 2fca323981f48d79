package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentrag/internal/domain"
)

func entry(id string, vec ...float32) domain.IndexedEntry {
	return domain.IndexedEntry{
		PassageID: id,
		Vector:    vec,
		Text:      "text of " + id,
		Metadata:  domain.PassageMetadata{DocumentID: "doc", PageNumber: 1, Kind: domain.PassageKindText},
	}
}

func TestStorage_QueryOrdersBySimilarity(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{
		entry("far", 0, 1),
		entry("near", 1, 0),
		entry("opposite", -1, 0),
		entry("mid", 0.6, 0.8),
	}))

	res, err := s.Query(ctx, domain.Vector{1, 0}, 3)

	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "near", res[0].PassageID)
	assert.Equal(t, "mid", res[1].PassageID)
	assert.Equal(t, "far", res[2].PassageID)
	assert.InDelta(t, 0.6, res[1].Similarity, 1e-6)
	assert.Equal(t, "text of near", res[0].Text)
}

func TestStorage_QueryKeepsNegativeSimilarity(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("opposite", -1, 0)}))

	res, err := s.Query(ctx, domain.Vector{1, 0}, 5)

	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.InDelta(t, -1.0, res[0].Similarity, 1e-6)
}

func TestStorage_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("a", 1, 0), entry("b", 1, 0), entry("c", 1, 0)}))

	res, err := s.Query(ctx, domain.Vector{1, 0}, 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, []string{res[0].PassageID, res[1].PassageID, res[2].PassageID})
}

func TestStorage_GetByIDAndStats(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("a", 1, 0), entry("b", 0, 1)}))

	got, ok, err := s.GetByID(ctx, "b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "text of b", got.Text)

	_, ok, err = s.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestStorage_RejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("a", 1, 0)}))

	assert.Error(t, s.Ingest(ctx, []domain.IndexedEntry{entry("b", 1, 0, 0)}))
	_, err := s.Query(ctx, domain.Vector{1, 0, 0}, 1)
	assert.Error(t, err)
}

func TestStorage_EmptyQuery(t *testing.T) {
	res, err := NewStorage().Query(context.Background(), domain.Vector{1}, 5)

	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestStorage_DeleteDocumentKeepsOthers(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	other := entry("b", 0, 1)
	other.Metadata.DocumentID = "other"
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("a", 1, 0), other, entry("c", 0.6, 0.8)}))

	n, err := s.DeleteDocument(ctx, "doc")

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	count, _ := s.Stats(ctx)
	assert.Equal(t, 1, count)
	_, ok, _ := s.GetByID(ctx, "a")
	assert.False(t, ok)
	got, ok, _ := s.GetByID(ctx, "b")
	require.True(t, ok)
	assert.Equal(t, "other", got.Metadata.DocumentID)

	n, err = s.DeleteDocument(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStorage_ResetForgetsDimension(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("a", 1, 0)}))

	require.NoError(t, s.Reset(ctx))

	count, _ := s.Stats(ctx)
	assert.Zero(t, count)
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("a", 1, 0, 0)}))
	res, err := s.Query(ctx, domain.Vector{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Len(t, res, 1)
}
