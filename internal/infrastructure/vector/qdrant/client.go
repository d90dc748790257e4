package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

const (
	denseVectorName  = "dense"
	sparseVectorName = "sparse"
	collectionPrefix = "kb_"
)

// Client talks to Qdrant over its HTTP API. Each knowledge base maps to one
// collection carrying a named dense vector and a named sparse vector, so both
// retrieval channels hit the same points.
type Client struct {
	baseURL    string
	httpClient *http.Client

	ensureMu sync.Mutex
	ensured  map[string]int // collection name -> ensured vector size
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		ensured:    make(map[string]int),
	}
}

func collectionName(kb string) string {
	return collectionPrefix + kb
}

func (c *Client) EnsureCollection(ctx context.Context, kb string, vectorSize int) error {
	name := collectionName(kb)

	c.ensureMu.Lock()
	if size, ok := c.ensured[name]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			denseVectorName: map[string]any{
				"size":     vectorSize,
				"distance": "Cosine",
			},
		},
		"sparse_vectors": map[string]any{
			sparseVectorName: map[string]any{},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 200/201 for create, 409 if already exists (depends on version/config).
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return fmt.Errorf("qdrant ensure collection status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("qdrant ensure collection status: %s", resp.Status)
	}

	c.ensureMu.Lock()
	c.ensured[name] = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) DropCollection(ctx context.Context, kb string) error {
	name := collectionName(kb)

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create drop collection request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant drop collection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("qdrant drop collection status: %s", resp.Status)
	}

	c.ensureMu.Lock()
	delete(c.ensured, name)
	c.ensureMu.Unlock()
	return nil
}

func (c *Client) UpsertChunks(ctx context.Context, kb string, chunks []ports.IndexableChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if err := c.EnsureCollection(ctx, kb, len(chunks[0].Vector)); err != nil {
		return err
	}

	type point struct {
		ID      string         `json:"id"`
		Vector  map[string]any `json:"vector"`
		Payload map[string]any `json:"payload"`
	}

	points := make([]point, 0, len(chunks))
	for _, chunk := range chunks {
		points = append(points, point{
			ID: chunk.ChunkID,
			Vector: map[string]any{
				denseVectorName:  chunk.Vector,
				sparseVectorName: encodeSparseDocument(chunk.Text, chunk.Source.File),
			},
			Payload: map[string]any{
				"chunk_id": chunk.ChunkID,
				"text":     chunk.Text,
				"file":     chunk.Source.File,
				"page":     chunk.Source.Page,
				"section":  chunk.Source.Section,
			},
		})
	}

	body, err := json.Marshal(map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, collectionName(kb))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant upsert status: %s", resp.Status)
	}
	return nil
}

func (c *Client) SearchDense(ctx context.Context, kb string, queryVector []float32, limit int) ([]domain.SearchHit, error) {
	points, err := c.queryPoints(ctx, kb, map[string]any{
		"query":        queryVector,
		"using":        denseVectorName,
		"limit":        limit,
		"with_payload": true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.SearchHit, 0, len(points))
	for _, p := range points {
		hit := pointToHit(p)
		score := p.Score
		hit.DenseScore = &score
		out = append(out, hit)
	}
	return out, nil
}

func (c *Client) SearchSparse(ctx context.Context, kb string, queryText string, limit int) ([]domain.SearchHit, error) {
	sparse := encodeSparseQuery(queryText)
	if len(sparse.Indices) == 0 {
		return nil, nil
	}

	points, err := c.queryPoints(ctx, kb, map[string]any{
		"query":        sparse,
		"using":        sparseVectorName,
		"limit":        limit,
		"with_payload": true,
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.SearchHit, 0, len(points))
	for _, p := range points {
		hit := pointToHit(p)
		score := p.Score
		hit.SparseScore = &score
		out = append(out, hit)
	}
	return out, nil
}

type queryPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) queryPoints(ctx context.Context, kb string, reqBody map[string]any) ([]queryPoint, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal query body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, collectionName(kb))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant query request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(body)); msg != "" {
			return nil, fmt.Errorf("qdrant query status: %s: %s", resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant query status: %s", resp.Status)
	}

	return decodeQueryPoints(resp.Body)
}

func decodeQueryPoints(r io.Reader) ([]queryPoint, error) {
	var queryResp struct {
		Result struct {
			Points []queryPoint `json:"points"`
		} `json:"result"`
	}
	if err := json.NewDecoder(r).Decode(&queryResp); err != nil {
		return nil, fmt.Errorf("decode query response: %w", err)
	}
	return queryResp.Result.Points, nil
}

func pointToHit(p queryPoint) domain.SearchHit {
	return domain.SearchHit{
		ChunkID: getStringPayload(p.Payload, "chunk_id"),
		Text:    getStringPayload(p.Payload, "text"),
		Source: domain.ChunkSource{
			File:    getStringPayload(p.Payload, "file"),
			Page:    getIntPayload(p.Payload, "page"),
			Section: getStringPayload(p.Payload, "section"),
		},
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getIntPayload(payload map[string]any, key string) int {
	v, ok := payload[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
