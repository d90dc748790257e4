package retrieval

import (
	"sort"

	"github.com/Pond500/rag-mcp/internal/core/domain"
)

// DefaultRRFK is the reciprocal rank fusion constant.
const DefaultRRFK = 60

// fuseRRF merges the dense and sparse candidate lists by Reciprocal Rank
// Fusion. Scores derive from 1-based rank position only, never from raw
// channel score magnitudes, which makes fusion invariant to the differing
// score scales of the two retrieval modes. A chunk absent from one list
// contributes 0 for that channel.
func fuseRRF(dense, sparse []domain.SearchHit, rrfK int) []domain.SearchHit {
	if rrfK <= 0 {
		rrfK = DefaultRRFK
	}

	type candidate struct {
		hit        domain.SearchHit
		denseRank  int // 0 when absent
		sparseRank int
	}

	acc := make(map[string]*candidate, len(dense)+len(sparse))
	order := make([]string, 0, len(dense)+len(sparse))

	for rank, hit := range dense {
		c := &candidate{hit: hit, denseRank: rank + 1}
		acc[hit.ChunkID] = c
		order = append(order, hit.ChunkID)
	}
	for rank, hit := range sparse {
		if c, ok := acc[hit.ChunkID]; ok {
			c.sparseRank = rank + 1
			c.hit.SparseScore = hit.SparseScore
			if c.hit.Text == "" {
				c.hit.Text = hit.Text
			}
			if c.hit.Source.File == "" {
				c.hit.Source = hit.Source
			}
			continue
		}
		acc[hit.ChunkID] = &candidate{hit: hit, sparseRank: rank + 1}
		order = append(order, hit.ChunkID)
	}

	out := make([]domain.SearchHit, 0, len(order))
	for _, id := range order {
		c := acc[id]
		score := 0.0
		if c.denseRank > 0 {
			score += 1.0 / float64(rrfK+c.denseRank)
		}
		if c.sparseRank > 0 {
			score += 1.0 / float64(rrfK+c.sparseRank)
		}
		hit := c.hit
		hit.RRFScore = score
		out = append(out, hit)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}

// sortByFinalScore re-sorts hits by rerank score where present, falling back
// to RRF score; ties keep the pre-rerank RRF order (the input order).
func sortByFinalScore(hits []domain.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].FinalScore() > hits[j].FinalScore()
	})
}

func truncate(hits []domain.SearchHit, limit int) []domain.SearchHit {
	if limit <= 0 || len(hits) <= limit {
		return hits
	}
	return hits[:limit]
}
