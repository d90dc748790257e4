package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

type Config struct {
	TopK            int
	LimitMultiplier int
	RRFK            int
}

func DefaultConfig() Config {
	return Config{
		TopK:            5,
		LimitMultiplier: 2,
		RRFK:            DefaultRRFK,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()
	if out.TopK <= 0 {
		out.TopK = def.TopK
	}
	if out.LimitMultiplier <= 0 {
		out.LimitMultiplier = def.LimitMultiplier
	}
	if out.RRFK <= 0 {
		out.RRFK = def.RRFK
	}
	return out
}

// Retriever performs hybrid search: concurrent dense and sparse similarity
// searches fused by RRF, optionally reranked by a cross-encoder scorer, then
// deduplicated and formatted into an attributed context block. All state is
// request-scoped; one Retriever is safe for concurrent use.
type Retriever struct {
	embedder ports.Embedder
	store    ports.VectorStore
	reranker ports.RerankScorer // nil disables reranking entirely
	cfg      Config
	logger   *slog.Logger
}

func NewRetriever(
	embedder ports.Embedder,
	store ports.VectorStore,
	reranker ports.RerankScorer,
	cfg Config,
	logger *slog.Logger,
) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		reranker: reranker,
		cfg:      cfg.normalize(),
		logger:   logger,
	}
}

func (r *Retriever) Search(
	ctx context.Context,
	kb, query string,
	opts ports.SearchOptions,
) (domain.FusedResultSet, error) {
	if strings.TrimSpace(query) == "" {
		return emptyResultSet(), nil
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	candidateLimit := topK * r.cfg.LimitMultiplier

	queryVector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.FusedResultSet{}, domain.WrapError(domain.ErrSearchBackend, "embed query", err)
	}

	dense, sparse, notes, err := r.searchBothChannels(ctx, kb, query, queryVector, candidateLimit)
	if err != nil {
		return domain.FusedResultSet{}, err
	}

	fused := fuseRRF(dense, sparse, r.cfg.RRFK)
	fused = truncate(fused, candidateLimit)

	rerankApplied := false
	if opts.UseRerank && r.reranker != nil && len(fused) > 0 {
		reranked, rerankErr := r.rerank(ctx, query, fused)
		if rerankErr != nil {
			// Reranker failure has a well-defined fallback: RRF-only order.
			notes = append(notes, fmt.Sprintf("reranking skipped: %v", rerankErr))
			r.logger.Warn("reranking skipped", "kb", kb, "error", rerankErr)
		} else {
			fused = reranked
			rerankApplied = true
		}
	}

	if opts.Deduplicate {
		fused = deduplicate(fused)
	}
	fused = truncate(fused, topK)

	return domain.FusedResultSet{
		Hits:             fused,
		FormattedContext: formatContext(fused),
		SourceSummary:    summarizeSources(fused),
		RerankApplied:    rerankApplied,
		Notes:            notes,
	}, nil
}

// searchBothChannels issues the dense and sparse searches concurrently and
// joins before fusion. A single failed channel degrades to one-list fusion
// with a note; only both failing is an error.
func (r *Retriever) searchBothChannels(
	ctx context.Context,
	kb, query string,
	queryVector []float32,
	limit int,
) (dense, sparse []domain.SearchHit, notes []string, err error) {
	var (
		wg        sync.WaitGroup
		denseErr  error
		sparseErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		dense, denseErr = r.store.SearchDense(ctx, kb, queryVector, limit)
	}()
	go func() {
		defer wg.Done()
		sparse, sparseErr = r.store.SearchSparse(ctx, kb, query, limit)
	}()
	wg.Wait()

	if denseErr != nil && sparseErr != nil {
		return nil, nil, nil, domain.WrapError(
			domain.ErrSearchBackend, "hybrid search",
			fmt.Errorf("dense: %v; sparse: %v", denseErr, sparseErr))
	}
	if denseErr != nil {
		notes = append(notes, fmt.Sprintf("dense search skipped: %v", denseErr))
		r.logger.Warn("dense search failed, continuing sparse-only", "kb", kb, "error", denseErr)
		dense = nil
	}
	if sparseErr != nil {
		notes = append(notes, fmt.Sprintf("sparse search skipped: %v", sparseErr))
		r.logger.Warn("sparse search failed, continuing dense-only", "kb", kb, "error", sparseErr)
		sparse = nil
	}
	return dense, sparse, notes, nil
}

// rerank scores every (query, text) pair in one batched call and re-sorts by
// that score, ties falling back to the incoming RRF order.
func (r *Retriever) rerank(ctx context.Context, query string, fused []domain.SearchHit) ([]domain.SearchHit, error) {
	texts := make([]string, len(fused))
	for i, hit := range fused {
		texts[i] = hit.Text
	}

	scores, err := r.reranker.Score(ctx, query, texts)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(fused) {
		return nil, fmt.Errorf("reranker returned %d scores for %d texts", len(scores), len(fused))
	}

	out := make([]domain.SearchHit, len(fused))
	copy(out, fused)
	for i := range out {
		score := scores[i]
		out[i].RerankScore = &score
	}
	sortByFinalScore(out)
	return out, nil
}

func emptyResultSet() domain.FusedResultSet {
	return domain.FusedResultSet{
		Hits:             []domain.SearchHit{},
		FormattedContext: formatContext(nil),
		SourceSummary:    []domain.SourceCount{},
	}
}
