package retrieval

import (
	"strings"

	"github.com/Pond500/rag-mcp/internal/core/domain"
)

// dedupThreshold is the shingle overlap above which two passages are treated
// as the same content.
const dedupThreshold = 0.9

const shingleSize = 3

// deduplicate greedily walks the sorted list and drops any hit whose
// normalized text is identical, or near-identical by word-shingle overlap, to
// a hit already kept. The list arrives sorted by final score, so the
// highest-scored instance always survives. Idempotent: a second pass over its
// own output removes nothing.
func deduplicate(hits []domain.SearchHit) []domain.SearchHit {
	if len(hits) < 2 {
		return hits
	}

	kept := make([]domain.SearchHit, 0, len(hits))
	keptNorm := make([]string, 0, len(hits))
	keptShingles := make([]map[string]struct{}, 0, len(hits))

	for _, hit := range hits {
		norm := normalizeText(hit.Text)
		if norm == "" {
			continue
		}
		shingles := wordShingles(norm, shingleSize)

		duplicate := false
		for i := range keptNorm {
			if norm == keptNorm[i] || shingleOverlap(shingles, keptShingles[i]) >= dedupThreshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, hit)
		keptNorm = append(keptNorm, norm)
		keptShingles = append(keptShingles, shingles)
	}
	return kept
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func wordShingles(normalized string, size int) map[string]struct{} {
	words := strings.Fields(normalized)
	out := make(map[string]struct{}, len(words))
	if len(words) < size {
		if len(words) > 0 {
			out[strings.Join(words, " ")] = struct{}{}
		}
		return out
	}
	for i := 0; i+size <= len(words); i++ {
		out[strings.Join(words[i:i+size], " ")] = struct{}{}
	}
	return out
}

// shingleOverlap is Jaccard similarity over word shingles.
func shingleOverlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	shared := 0
	for s := range small {
		if _, ok := large[s]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
