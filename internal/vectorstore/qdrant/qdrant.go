package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"patentrag/internal/domain"
	"patentrag/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant. The collection is created on
// the first ingest with the configured distance.
type Storage struct {
	url        string
	apiKey     string
	collection string
	metric     vectorstore.Metric
	client     *http.Client

	mu    sync.Mutex
	ready bool
}

// Config locates the Qdrant collection backing the index.
type Config struct {
	URL        string
	APIKey     string
	Collection string
	// Distance is one of "cosine", "dot" or "euclid".
	Distance string
	Timeout  time.Duration
}

// NewStorage validates cfg and returns a store. The collection is created on
// first ingest.
func NewStorage(cfg Config) (*Storage, error) {
	if cfg.URL == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: qdrant url and collection are required", domain.ErrInvalidConfig)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		metric:     vectorstore.ParseMetric(cfg.Distance),
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// errNotFound marks a 404 from the server.
var errNotFound = errors.New("qdrant: not found")

func distanceName(m vectorstore.Metric) string {
	switch m {
	case vectorstore.Dot:
		return "Dot"
	case vectorstore.Euclidean:
		return "Euclid"
	default:
		return "Cosine"
	}
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
	if errors.Is(err, errNotFound) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": distanceName(s.metric),
			},
		}
		err = s.do(ctx, http.MethodPut, s.collectionURL(), body, nil)
	}
	if err != nil {
		return err
	}
	s.ready = true
	return nil
}

type payload struct {
	DocumentID   string `json:"document_id"`
	PageNumber   int    `json:"page_number"`
	SectionTitle string `json:"section_title"`
	Kind         string `json:"passage_kind"`
	Text         string `json:"text"`
}

func (p payload) metadata() domain.PassageMetadata {
	return domain.PassageMetadata{
		DocumentID:   p.DocumentID,
		PageNumber:   p.PageNumber,
		SectionTitle: p.SectionTitle,
		Kind:         p.Kind,
	}
}

type point struct {
	ID      string        `json:"id"`
	Vector  domain.Vector `json:"vector,omitempty"`
	Payload payload       `json:"payload"`
	Score   float64       `json:"score,omitempty"`
}

// Ingest upserts points keyed by passage id; an existing id is overwritten.
func (s *Storage) Ingest(ctx context.Context, entries []domain.IndexedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(entries[0].Vector)); err != nil {
		return err
	}
	points := make([]point, len(entries))
	for i, e := range entries {
		points[i] = point{
			ID:     e.PassageID,
			Vector: e.Vector,
			Payload: payload{
				DocumentID:   e.Metadata.DocumentID,
				PageNumber:   e.Metadata.PageNumber,
				SectionTitle: e.Metadata.SectionTitle,
				Kind:         e.Metadata.Kind,
				Text:         e.Text,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil)
}

// Query searches the collection and converts scores into similarities.
// A collection that does not exist yet yields no results.
func (s *Storage) Query(ctx context.Context, vector domain.Vector, k int) ([]domain.RetrievalResult, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	results := make([]domain.RetrievalResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.RetrievalResult{
			PassageID:  r.ID,
			Text:       r.Payload.Text,
			Similarity: vectorstore.Similarity(s.metric, r.Score),
			Metadata:   r.Payload.metadata(),
		})
	}
	return results, nil
}

// GetByID fetches a single point with its vector.
func (s *Storage) GetByID(ctx context.Context, passageID string) (domain.IndexedEntry, bool, error) {
	var resp struct {
		Result point `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL()+"/points/"+passageID, nil, &resp)
	if errors.Is(err, errNotFound) {
		return domain.IndexedEntry{}, false, nil
	}
	if err != nil {
		return domain.IndexedEntry{}, false, err
	}
	p := resp.Result
	return domain.IndexedEntry{
		PassageID: p.ID,
		Vector:    p.Vector,
		Text:      p.Payload.Text,
		Metadata:  p.Payload.metadata(),
	}, true, nil
}

// Stats returns the collection's point count, 0 when it does not exist.
func (s *Storage) Stats(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			PointsCount int `json:"points_count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(), nil, &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return resp.Result.PointsCount, nil
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{
		"must": []any{
			map[string]any{"key": "document_id", "match": map[string]any{"value": documentID}},
		},
	}
}

// DeleteDocument counts the points of documentID and deletes them by payload
// filter.
func (s *Storage) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	filter := documentFilter(documentID)
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/count", map[string]any{"filter": filter, "exact": true}, &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if resp.Result.Count == 0 {
		return 0, nil
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/delete?wait=true", map[string]any{"filter": filter}, nil); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// Reset drops the collection. The next ingest creates it again.
func (s *Storage) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil); err != nil && !errors.Is(err, errNotFound) {
		return err
	}
	s.ready = false
	return nil
}

// Close releases idle connections.
func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("qdrant: encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("qdrant: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("qdrant: decoding response: %w", err)
		}
	}
	return nil
}

var _ vectorstore.Storage = (*Storage)(nil)
