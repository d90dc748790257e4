package router

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

// DefaultSimilarityFloor is the minimum cosine similarity for a route match.
const DefaultSimilarityFloor = 0.5

// Router selects a knowledge base for a query embedding by cosine similarity
// against the stored descriptor embeddings. The in-memory index is a
// copy-on-write snapshot: lookups share a read lock on the snapshot pointer,
// while rebuilds (triggered by KB create/delete via Invalidate) swap in a
// fresh slice so a reader never observes a half-updated index.
type Router struct {
	store ports.DescriptorStore
	floor float64

	mu       sync.RWMutex
	snapshot []domain.KnowledgeBaseDescriptor // nil until first use
	loaded   bool
}

func New(store ports.DescriptorStore, floor float64) *Router {
	if floor <= 0 {
		floor = DefaultSimilarityFloor
	}
	return &Router{store: store, floor: floor}
}

// Route returns the best-matching knowledge base for the query embedding, or
// an unmatched decision when no descriptor clears the similarity floor. Ties
// are broken by descriptor insertion order: first registered wins. Routing
// never mutates the index.
func (r *Router) Route(ctx context.Context, queryVector []float32) (domain.RouteDecision, error) {
	descriptors, err := r.index(ctx)
	if err != nil {
		return domain.RouteDecision{}, err
	}
	if len(descriptors) == 0 {
		return domain.RouteDecision{}, nil
	}

	best := domain.RouteDecision{Score: -1}
	for _, desc := range descriptors {
		score := cosineSimilarity(queryVector, desc.Embedding)
		if score > best.Score {
			best = domain.RouteDecision{KnowledgeBase: desc.Name, Score: score}
		}
	}

	if best.Score < r.floor {
		return domain.RouteDecision{Score: best.Score}, nil
	}
	best.Matched = true
	return best, nil
}

// Invalidate drops the snapshot so the next route rebuilds from the backing
// store. Called on knowledge base create/delete.
func (r *Router) Invalidate() {
	r.mu.Lock()
	r.snapshot = nil
	r.loaded = false
	r.mu.Unlock()
}

func (r *Router) index(ctx context.Context) ([]domain.KnowledgeBaseDescriptor, error) {
	r.mu.RLock()
	if r.loaded {
		snap := r.snapshot
		r.mu.RUnlock()
		return snap, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.snapshot, nil
	}

	descriptors, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("rebuild routing index: %w", err)
	}
	r.snapshot = descriptors
	r.loaded = true
	return r.snapshot, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
