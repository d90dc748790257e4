package domain

// ChunkSource is the attribution metadata carried by an indexed chunk.
type ChunkSource struct {
	File    string `json:"file"`
	Page    int    `json:"page,omitempty"`
	Section string `json:"section,omitempty"`
}

// SearchHit is one retrieved chunk with per-channel scores. DenseScore and
// SparseScore are nil when the chunk did not appear in that channel's list.
// RerankScore is nil unless cross-encoder reranking was applied.
type SearchHit struct {
	ChunkID     string      `json:"chunk_id"`
	Text        string      `json:"text"`
	Source      ChunkSource `json:"source"`
	DenseScore  *float64    `json:"dense_score,omitempty"`
	SparseScore *float64    `json:"sparse_score,omitempty"`
	RRFScore    float64     `json:"rrf_score"`
	RerankScore *float64    `json:"rerank_score,omitempty"`
}

// FinalScore is the primary sort key: rerank score if present, else RRF.
func (h SearchHit) FinalScore() float64 {
	if h.RerankScore != nil {
		return *h.RerankScore
	}
	return h.RRFScore
}

// SourceCount groups retained hits by source file.
type SourceCount struct {
	File   string `json:"source_file"`
	Chunks int    `json:"chunk_count"`
}

// FusedResultSet is the final ordered result of a hybrid search: deduplicated
// hits, a ready-to-use context block with attribution, and a per-file summary.
type FusedResultSet struct {
	Hits             []SearchHit   `json:"hits"`
	FormattedContext string        `json:"formatted_context"`
	SourceSummary    []SourceCount `json:"source_summary"`
	RerankApplied    bool          `json:"rerank_applied"`
	// Notes records degradations absorbed during the search, e.g.
	// "reranking skipped: backend timeout".
	Notes []string `json:"notes,omitempty"`
}

type Answer struct {
	Text          string      `json:"text"`
	KnowledgeBase string      `json:"knowledge_base"`
	RoutingScore  float64     `json:"routing_score,omitempty"`
	Sources       []SearchHit `json:"sources"`
	SessionID     string      `json:"session_id,omitempty"`
}
