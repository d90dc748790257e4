package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

type embedderFake struct{}

func (embedderFake) Embed(context.Context, []string) ([][]float32, error) { return nil, nil }
func (embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type storeFake struct {
	mu        sync.Mutex
	denseByKB map[string][]domain.SearchHit
	sparseBy  map[string][]domain.SearchHit
	denseErr  error
	sparseErr error
	kbsSeen   []string
}

func (f *storeFake) EnsureCollection(context.Context, string, int) error { return nil }
func (f *storeFake) DropCollection(context.Context, string) error        { return nil }
func (f *storeFake) UpsertChunks(context.Context, string, []ports.IndexableChunk) error {
	return nil
}

func (f *storeFake) SearchDense(_ context.Context, kb string, _ []float32, _ int) ([]domain.SearchHit, error) {
	f.mu.Lock()
	f.kbsSeen = append(f.kbsSeen, kb)
	f.mu.Unlock()
	if f.denseErr != nil {
		return nil, f.denseErr
	}
	return f.denseByKB[kb], nil
}

func (f *storeFake) SearchSparse(_ context.Context, kb string, _ string, _ int) ([]domain.SearchHit, error) {
	if f.sparseErr != nil {
		return nil, f.sparseErr
	}
	return f.sparseBy[kb], nil
}

type rerankerFake struct {
	scores []float64
	err    error
	calls  int
}

func (f *rerankerFake) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.scores) >= len(texts) {
		return f.scores[:len(texts)], nil
	}
	return f.scores, nil
}

func mkHits(ids ...string) []domain.SearchHit {
	out := make([]domain.SearchHit, 0, len(ids))
	for i, id := range ids {
		score := 1.0 - float64(i)*0.1
		out = append(out, domain.SearchHit{
			ChunkID:    id,
			Text:       "passage about topic " + id + " with enough distinct words to avoid dedup",
			Source:     domain.ChunkSource{File: id + ".pdf", Page: i + 1},
			RRFScore:   0,
			DenseScore: &score,
		})
	}
	return out
}

func newTestRetriever(store *storeFake, reranker ports.RerankScorer) *Retriever {
	return NewRetriever(embedderFake{}, store, reranker, DefaultConfig(), nil)
}

func TestSearchFusedOrderAndTruncation(t *testing.T) {
	// Dense [X,Y,Z], sparse [Y,Z,W]: Y appears at ranks 1 and 2 and must win;
	// result truncated to top_k=3.
	store := &storeFake{
		denseByKB: map[string][]domain.SearchHit{"kb": mkHits("X", "Y", "Z")},
		sparseBy:  map[string][]domain.SearchHit{"kb": mkHits("Y", "Z", "W")},
	}
	r := newTestRetriever(store, nil)

	result, err := r.Search(context.Background(), "kb", "query", ports.SearchOptions{TopK: 3})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(result.Hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(result.Hits))
	}
	if result.Hits[0].ChunkID != "Y" {
		t.Fatalf("expected Y first, got %s", result.Hits[0].ChunkID)
	}
	for _, h := range result.Hits {
		if h.ChunkID == "W" && result.Hits[1].ChunkID != "Z" {
			break
		}
	}
	if result.RerankApplied {
		t.Fatalf("rerank must not be applied when not requested")
	}
}

func TestSearchEmptyQueryYieldsEmptySet(t *testing.T) {
	r := newTestRetriever(&storeFake{}, nil)
	result, err := r.Search(context.Background(), "kb", "   ", ports.SearchOptions{TopK: 3})
	if err != nil {
		t.Fatalf("empty query must not error, got %v", err)
	}
	if len(result.Hits) != 0 {
		t.Fatalf("expected empty result, got %d hits", len(result.Hits))
	}
}

func TestSearchEmptyIndexYieldsEmptySet(t *testing.T) {
	r := newTestRetriever(&storeFake{denseByKB: map[string][]domain.SearchHit{}, sparseBy: map[string][]domain.SearchHit{}}, nil)
	result, err := r.Search(context.Background(), "kb", "query", ports.SearchOptions{TopK: 3})
	if err != nil {
		t.Fatalf("empty index must not error, got %v", err)
	}
	if len(result.Hits) != 0 {
		t.Fatalf("expected no hits, got %d", len(result.Hits))
	}
}

func TestSearchRerankReordersAndTiesFallBackToRRF(t *testing.T) {
	store := &storeFake{
		denseByKB: map[string][]domain.SearchHit{"kb": mkHits("A", "B")},
		sparseBy:  map[string][]domain.SearchHit{},
	}
	reranker := &rerankerFake{scores: []float64{0.1, 0.9}}
	r := newTestRetriever(store, reranker)

	result, err := r.Search(context.Background(), "kb", "query", ports.SearchOptions{TopK: 2, UseRerank: true})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !result.RerankApplied {
		t.Fatalf("expected rerank applied")
	}
	if result.Hits[0].ChunkID != "B" {
		t.Fatalf("expected rerank to promote B, got %s", result.Hits[0].ChunkID)
	}
	if reranker.calls != 1 {
		t.Fatalf("reranker must be called once (batched), called %d times", reranker.calls)
	}
}

func TestSearchRerankerFailureFallsBackToRRF(t *testing.T) {
	store := &storeFake{
		denseByKB: map[string][]domain.SearchHit{"kb": mkHits("A", "B")},
		sparseBy:  map[string][]domain.SearchHit{},
	}
	r := newTestRetriever(store, &rerankerFake{err: errors.New("timeout")})

	result, err := r.Search(context.Background(), "kb", "query", ports.SearchOptions{TopK: 2, UseRerank: true})
	if err != nil {
		t.Fatalf("reranker failure must not fail the search, got %v", err)
	}
	if result.RerankApplied {
		t.Fatalf("rerank must be reported as not applied")
	}
	if len(result.Notes) == 0 || !strings.Contains(result.Notes[0], "reranking skipped") {
		t.Fatalf("expected degradation note, got %v", result.Notes)
	}
	if result.Hits[0].ChunkID != "A" {
		t.Fatalf("expected RRF order preserved, got %s first", result.Hits[0].ChunkID)
	}
}

func TestSearchSingleChannelFailureDegrades(t *testing.T) {
	store := &storeFake{
		denseErr: errors.New("dense backend down"),
		sparseBy: map[string][]domain.SearchHit{"kb": mkHits("A", "B")},
	}
	r := newTestRetriever(store, nil)

	result, err := r.Search(context.Background(), "kb", "query", ports.SearchOptions{TopK: 2})
	if err != nil {
		t.Fatalf("single channel failure must degrade, not fail: %v", err)
	}
	if len(result.Hits) != 2 {
		t.Fatalf("expected sparse-only results, got %d", len(result.Hits))
	}
	if len(result.Notes) == 0 {
		t.Fatalf("expected a degradation note")
	}
}

func TestSearchBothChannelsFailingIsError(t *testing.T) {
	store := &storeFake{
		denseErr:  errors.New("dense down"),
		sparseErr: errors.New("sparse down"),
	}
	r := newTestRetriever(store, nil)

	_, err := r.Search(context.Background(), "kb", "query", ports.SearchOptions{TopK: 2})
	if err == nil {
		t.Fatalf("expected error when both channels fail")
	}
	if !domain.IsKind(err, domain.ErrSearchBackend) {
		t.Fatalf("expected ErrSearchBackend, got %v", err)
	}
}

func TestSearchNoCrossRequestLeakage(t *testing.T) {
	store := &storeFake{
		denseByKB: map[string][]domain.SearchHit{
			"kb-one": mkHits("one-a", "one-b"),
			"kb-two": mkHits("two-a", "two-b"),
		},
		sparseBy: map[string][]domain.SearchHit{},
	}
	r := newTestRetriever(store, nil)

	var wg sync.WaitGroup
	results := make([]domain.FusedResultSet, 2)
	for i, kb := range []string{"kb-one", "kb-two"} {
		wg.Add(1)
		go func(i int, kb string) {
			defer wg.Done()
			res, err := r.Search(context.Background(), kb, "query", ports.SearchOptions{TopK: 2})
			if err != nil {
				t.Errorf("Search(%s) error = %v", kb, err)
				return
			}
			results[i] = res
		}(i, kb)
	}
	wg.Wait()

	for _, h := range results[0].Hits {
		if !strings.HasPrefix(h.ChunkID, "one-") {
			t.Fatalf("kb-one result leaked foreign chunk %s", h.ChunkID)
		}
	}
	for _, h := range results[1].Hits {
		if !strings.HasPrefix(h.ChunkID, "two-") {
			t.Fatalf("kb-two result leaked foreign chunk %s", h.ChunkID)
		}
	}
}

func TestSearchFormattedContextCarriesAttribution(t *testing.T) {
	store := &storeFake{
		denseByKB: map[string][]domain.SearchHit{"kb": mkHits("A")},
		sparseBy:  map[string][]domain.SearchHit{},
	}
	r := newTestRetriever(store, nil)

	result, err := r.Search(context.Background(), "kb", "query", ports.SearchOptions{TopK: 1})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !strings.Contains(result.FormattedContext, "[1] (Source: A.pdf, Page 1") {
		t.Fatalf("missing attribution block:\n%s", result.FormattedContext)
	}
	if len(result.SourceSummary) != 1 || result.SourceSummary[0].File != "A.pdf" || result.SourceSummary[0].Chunks != 1 {
		t.Fatalf("unexpected source summary: %v", result.SourceSummary)
	}
}
