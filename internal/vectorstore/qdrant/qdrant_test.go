package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patentrag/internal/domain"
)

// fakeQdrant serves the handful of REST routes the client uses.
type fakeQdrant struct {
	mu       sync.Mutex
	created  bool
	distance string
	points   map[string]point
	order    []string
	apiKeys  []string
	scores   map[string]float64
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{points: map[string]point{}, scores: map[string]float64{}}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	const base = "/collections/patents"
	path := r.URL.Path
	switch {
	case path == base && r.Method == http.MethodGet:
		if !f.created {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{"result": map[string]any{"points_count": len(f.points)}})
	case path == base && r.Method == http.MethodDelete:
		f.created = false
		f.points = map[string]point{}
		f.order = nil
		writeJSON(w, map[string]any{"result": true})
	case path == base && r.Method == http.MethodPut:
		var body struct {
			Vectors struct {
				Distance string `json:"distance"`
			} `json:"vectors"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.created = true
		f.distance = body.Vectors.Distance
		writeJSON(w, map[string]any{"result": true})
	case path == base+"/points" && r.Method == http.MethodPut:
		var body struct {
			Points []point `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			if _, ok := f.points[p.ID]; !ok {
				f.order = append(f.order, p.ID)
			}
			f.points[p.ID] = p
		}
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	case path == base+"/points/search" && r.Method == http.MethodPost:
		if !f.created {
			http.NotFound(w, r)
			return
		}
		res := make([]point, 0, len(f.order))
		for _, id := range f.order {
			p := f.points[id]
			p.Vector = nil
			p.Score = f.scores[id]
			res = append(res, p)
		}
		writeJSON(w, map[string]any{"result": res})
	case (path == base+"/points/count" || path == base+"/points/delete") && r.Method == http.MethodPost:
		if !f.created {
			http.NotFound(w, r)
			return
		}
		var body struct {
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Value string `json:"value"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		doc := body.Filter.Must[0].Match.Value
		var matched []string
		for _, id := range f.order {
			if f.points[id].Payload.DocumentID == doc {
				matched = append(matched, id)
			}
		}
		if strings.HasSuffix(path, "/count") {
			writeJSON(w, map[string]any{"result": map[string]any{"count": len(matched)}})
			return
		}
		for _, id := range matched {
			delete(f.points, id)
		}
		kept := f.order[:0]
		for _, id := range f.order {
			if _, ok := f.points[id]; ok {
				kept = append(kept, id)
			}
		}
		f.order = kept
		writeJSON(w, map[string]any{"result": map[string]any{"status": "completed"}})
	case strings.HasPrefix(path, base+"/points/") && r.Method == http.MethodGet:
		p, ok := f.points[strings.TrimPrefix(path, base+"/points/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, map[string]any{"result": p})
	default:
		http.Error(w, "unexpected route", http.StatusBadRequest)
	}
}

func (f *fakeQdrant) setScore(id string, score float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[id] = score
}

func (f *fakeQdrant) snapshot() (string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.distance, append([]string(nil), f.apiKeys...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestStorage(t *testing.T, distance string) (*Storage, *fakeQdrant) {
	t.Helper()
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s, err := NewStorage(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "patents", Distance: distance})
	require.NoError(t, err)
	return s, fake
}

func entry(id string, vec ...float32) domain.IndexedEntry {
	return domain.IndexedEntry{
		PassageID: id,
		Vector:    vec,
		Text:      "text " + id,
		Metadata:  domain.PassageMetadata{DocumentID: "doc.pdf", PageNumber: 3, SectionTitle: "Abstract", Kind: domain.PassageKindText},
	}
}

func TestNewStorage_Validates(t *testing.T) {
	_, err := NewStorage(Config{Collection: "x"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestStorage_EmptyCollection(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t, "cosine")

	n, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	res, err := s.Query(ctx, domain.Vector{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestStorage_IngestCreatesCollectionAndRoundTrips(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStorage(t, "euclid")
	id := "0b7c3b8e-4c1e-4f5e-9a3f-2f6a1d9c7e10"

	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry(id, 0.6, 0.8)}))
	distance, keys := fake.snapshot()
	assert.Equal(t, "Euclid", distance)
	assert.Contains(t, keys, "secret")

	got, ok, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.Vector{0.6, 0.8}, got.Vector)
	assert.Equal(t, "text "+id, got.Text)
	assert.Equal(t, 3, got.Metadata.PageNumber)
	assert.Equal(t, "Abstract", got.Metadata.SectionTitle)

	_, ok, err = s.GetByID(ctx, "4e7f0f4a-0000-4000-8000-000000000000")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStorage_QueryConvertsScores(t *testing.T) {
	ctx := context.Background()
	s, fake := newTestStorage(t, "euclid")
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("a", 1, 0), entry("b", 0, 1)}))
	fake.setScore("a", 0)
	fake.setScore("b", 1)

	res, err := s.Query(ctx, domain.Vector{1, 0}, 2)

	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].PassageID)
	assert.InDelta(t, 1.0, res[0].Similarity, 1e-9)
	assert.InDelta(t, 0.5, res[1].Similarity, 1e-9)
	assert.Equal(t, "doc.pdf", res[1].Metadata.DocumentID)
}

func TestStorage_ReingestReplaces(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t, "cosine")
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("a", 1, 0)}))
	replacement := entry("a", 0, 1)
	replacement.Text = "updated"
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{replacement}))

	n, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Text)
}

func TestStorage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	s, err := NewStorage(Config{URL: srv.URL, Collection: "patents"})
	require.NoError(t, err)

	_, err = s.Query(context.Background(), domain.Vector{1}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestStorage_DeleteDocument(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t, "cosine")

	n, err := s.DeleteDocument(ctx, "doc.pdf")
	require.NoError(t, err)
	assert.Zero(t, n)

	other := entry("b", 0, 1)
	other.Metadata.DocumentID = "other.pdf"
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("a", 1, 0), other}))

	n, err = s.DeleteDocument(ctx, "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	count, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, ok, err := s.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorage_ResetDropsCollection(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStorage(t, "dot")
	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("a", 1, 0)}))

	require.NoError(t, s.Reset(ctx))
	n, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Ingest(ctx, []domain.IndexedEntry{entry("b", 0, 1)}))
	n, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
