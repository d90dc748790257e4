package quality

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/Pond500/rag-mcp/internal/core/domain"
)

// Dimension names, in report order.
const (
	DimCleanliness = "text_cleanliness"
	DimWordShape   = "word_integrity"
	DimConsistency = "page_consistency"
	DimStructure   = "structural_richness"
	DimDensity     = "content_density"
)

// DimensionOrder fixes the evaluation order so reports are reproducible.
var DimensionOrder = []string{DimCleanliness, DimWordShape, DimConsistency, DimStructure, DimDensity}

const (
	// badCharMultiplier floors the cleanliness score once roughly 20% of the
	// text is corrupted.
	badCharMultiplier = 5.0

	// Average word length outside this band signals OCR glue or shredding.
	wordLenBandLow  = 4.0
	wordLenBandHigh = 10.0
	longWordRunes   = 20

	// Density floors per page; saturates at 1.0 above them.
	densityCharFloor = 500.0
	densityWordFloor = 80.0
)

type Weights struct {
	Cleanliness float64
	WordShape   float64
	Consistency float64
	Structure   float64
	Density     float64
}

func DefaultWeights() Weights {
	return Weights{
		Cleanliness: 0.25,
		WordShape:   0.20,
		Consistency: 0.15,
		Structure:   0.20,
		Density:     0.20,
	}
}

func (w Weights) validate() error {
	sum := w.Cleanliness + w.WordShape + w.Consistency + w.Structure + w.Density
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("quality weights must sum to 1.0, got %v", sum)
	}
	return nil
}

// Scorer computes a reproducible quality score for extracted pages without
// ground truth. Score is a pure function of its input: no I/O, no randomness,
// no time dependence.
type Scorer struct {
	weights Weights
}

func NewScorer(weights Weights) (*Scorer, error) {
	if err := weights.validate(); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "quality scorer", err)
	}
	return &Scorer{weights: weights}, nil
}

func NewDefaultScorer() *Scorer {
	s, err := NewScorer(DefaultWeights())
	if err != nil {
		panic(err) // default weights sum to 1.0
	}
	return s
}

func (s *Scorer) Score(pages []string) domain.QualityReport {
	if len(pages) == 0 {
		return emptyReport(s.weights)
	}

	all := strings.Join(pages, "\n")
	dims := map[string]domain.DimensionScore{
		DimCleanliness: scoreCleanliness(all, s.weights.Cleanliness),
		DimWordShape:   scoreWordIntegrity(all, s.weights.WordShape),
		DimConsistency: scoreConsistency(pages, s.weights.Consistency),
		DimStructure:   scoreStructure(all, s.weights.Structure),
		DimDensity:     scoreDensity(pages, s.weights.Density),
	}

	overall := 0.0
	for _, name := range DimensionOrder {
		dim := dims[name]
		overall += dim.Score * dim.Weight
	}
	overall = clamp01(overall)

	return domain.QualityReport{
		OverallScore:   overall,
		Dimensions:     dims,
		Recommendation: recommendation(overall),
	}
}

func emptyReport(w Weights) domain.QualityReport {
	dims := make(map[string]domain.DimensionScore, len(DimensionOrder))
	weights := []float64{w.Cleanliness, w.WordShape, w.Consistency, w.Structure, w.Density}
	for i, name := range DimensionOrder {
		dim := domain.DimensionScore{Score: 0, Weight: weights[i]}
		if name == DimCleanliness {
			dim.Issues = []string{"no pages extracted"}
		}
		dims[name] = dim
	}
	return domain.QualityReport{
		OverallScore:   0,
		Dimensions:     dims,
		Recommendation: "poor",
	}
}

func scoreCleanliness(text string, weight float64) domain.DimensionScore {
	total := 0
	bad := 0
	for _, r := range text {
		total++
		if isBadRune(r) {
			bad++
		}
	}

	score := 1.0
	ratio := 0.0
	if total > 0 {
		ratio = float64(bad) / float64(total)
		score = 1.0 - math.Min(1.0, ratio*badCharMultiplier)
	}

	dim := domain.DimensionScore{
		Score:  score,
		Weight: weight,
		Signals: map[string]float64{
			"total_chars":    float64(total),
			"bad_chars":      float64(bad),
			"bad_char_ratio": ratio,
		},
	}
	if ratio > 0.05 {
		dim.Issues = append(dim.Issues, fmt.Sprintf("%.1f%% non-printable or replacement characters", ratio*100))
	}
	return dim
}

func isBadRune(r rune) bool {
	if r == '\n' || r == '\t' || r == '\r' {
		return false
	}
	return r == unicode.ReplacementChar || unicode.IsControl(r) || !unicode.IsPrint(r)
}

func scoreWordIntegrity(text string, weight float64) domain.DimensionScore {
	words := strings.Fields(text)
	if len(words) == 0 {
		return domain.DimensionScore{
			Score:   0,
			Weight:  weight,
			Signals: map[string]float64{"word_count": 0},
			Issues:  []string{"no words found"},
		}
	}

	totalLen := 0
	long := 0
	for _, w := range words {
		n := len([]rune(w))
		totalLen += n
		if n > longWordRunes {
			long++
		}
	}
	avgLen := float64(totalLen) / float64(len(words))
	longRatio := float64(long) / float64(len(words))

	// Distance from the plausible average-length band, normalized so that an
	// average 6 runes outside the band zeroes the length component.
	deviation := 0.0
	switch {
	case avgLen < wordLenBandLow:
		deviation = wordLenBandLow - avgLen
	case avgLen > wordLenBandHigh:
		deviation = avgLen - wordLenBandHigh
	}
	lengthScore := 1.0 - math.Min(1.0, deviation/6.0)
	longScore := 1.0 - math.Min(1.0, longRatio*10.0)

	score := clamp01(0.6*lengthScore + 0.4*longScore)

	dim := domain.DimensionScore{
		Score:  score,
		Weight: weight,
		Signals: map[string]float64{
			"word_count":      float64(len(words)),
			"avg_word_length": avgLen,
			"long_word_ratio": longRatio,
		},
	}
	if deviation > 0 {
		dim.Issues = append(dim.Issues, fmt.Sprintf("abnormal average word length %.1f", avgLen))
	}
	if longRatio > 0.02 {
		dim.Issues = append(dim.Issues, fmt.Sprintf("%.1f%% overlong words, possible glued tokens", longRatio*100))
	}
	return dim
}

func scoreConsistency(pages []string, weight float64) domain.DimensionScore {
	lengths := make([]float64, len(pages))
	empty := 0
	sum := 0.0
	for i, p := range pages {
		n := float64(len([]rune(p)))
		lengths[i] = n
		sum += n
		if strings.TrimSpace(p) == "" {
			empty++
		}
	}
	mean := sum / float64(len(pages))
	emptyRatio := float64(empty) / float64(len(pages))

	cv := 0.0
	if mean > 0 {
		variance := 0.0
		for _, n := range lengths {
			d := n - mean
			variance += d * d
		}
		variance /= float64(len(pages))
		cv = math.Sqrt(variance) / mean
	} else {
		cv = 1.0
	}

	score := clamp01(clamp01(1.0-cv) - emptyRatio)

	dim := domain.DimensionScore{
		Score:  score,
		Weight: weight,
		Signals: map[string]float64{
			"page_count":           float64(len(pages)),
			"mean_page_length":     mean,
			"length_cv":            cv,
			"empty_page_ratio":     emptyRatio,
			"shortest_page_length": minOf(lengths),
		},
	}
	if cv > 0.8 {
		dim.Issues = append(dim.Issues, "wildly uneven page lengths, possible partial extraction")
	}
	if empty > 0 {
		dim.Issues = append(dim.Issues, fmt.Sprintf("%d empty pages", empty))
	}
	return dim
}

func scoreStructure(text string, weight float64) domain.DimensionScore {
	lines := strings.Split(text, "\n")
	headers, lists, tables := 0, 0, 0
	nonEmpty := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		nonEmpty++
		switch {
		case strings.HasPrefix(trimmed, "#"):
			headers++
		case isListLine(trimmed):
			lists++
		case strings.Count(trimmed, "|") >= 2 || strings.Count(line, "\t") >= 2:
			tables++
		}
	}

	score := 0.0
	if nonEmpty > 0 {
		weighted := float64(2*headers + lists + tables)
		// Saturates once ~20% of lines carry layout signal.
		score = math.Min(1.0, weighted/math.Max(1.0, 0.2*float64(nonEmpty)))
	}

	dim := domain.DimensionScore{
		Score:  score,
		Weight: weight,
		Signals: map[string]float64{
			"lines":        float64(nonEmpty),
			"header_lines": float64(headers),
			"list_lines":   float64(lists),
			"table_lines":  float64(tables),
		},
	}
	if score == 0 && nonEmpty > 0 {
		dim.Issues = append(dim.Issues, "no layout signal retained")
	}
	return dim
}

func isListLine(line string) bool {
	if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "• ") {
		return true
	}
	// Numbered list: "1. ", "12) ".
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i > 3 || i >= len(line) {
		return false
	}
	return (line[i] == '.' || line[i] == ')') && i+1 < len(line) && line[i+1] == ' '
}

func scoreDensity(pages []string, weight float64) domain.DimensionScore {
	chars := 0
	words := 0
	for _, p := range pages {
		chars += len([]rune(p))
		words += len(strings.Fields(p))
	}
	charsPerPage := float64(chars) / float64(len(pages))
	wordsPerPage := float64(words) / float64(len(pages))

	charScore := math.Min(1.0, charsPerPage/densityCharFloor)
	wordScore := math.Min(1.0, wordsPerPage/densityWordFloor)
	score := (charScore + wordScore) / 2.0

	dim := domain.DimensionScore{
		Score:  score,
		Weight: weight,
		Signals: map[string]float64{
			"chars_per_page": charsPerPage,
			"words_per_page": wordsPerPage,
		},
	}
	if score < 0.5 {
		dim.Issues = append(dim.Issues, fmt.Sprintf("sparse content: %.0f chars/page", charsPerPage))
	}
	return dim
}

func recommendation(overall float64) string {
	switch {
	case overall >= 0.85:
		return "excellent"
	case overall >= 0.70:
		return "good"
	case overall >= 0.50:
		return "fair"
	default:
		return "poor"
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minOf(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	min := vs[0]
	for _, v := range vs[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
