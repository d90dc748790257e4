package domain

import "time"

// ExtractionTier identifies one extraction strategy. Tiers are tried in
// ascending cost order; escalation stops as soon as the target quality is met.
type ExtractionTier string

const (
	TierFast    ExtractionTier = "fast"
	TierPremium ExtractionTier = "premium"
)

// TierOrder returns all known tiers in ascending cost order.
func TierOrder() []ExtractionTier {
	return []ExtractionTier{TierFast, TierPremium}
}

// TierConfig carries tier-specific parameters as data. There is one extractor
// interface; behavior differences between tiers live here, not in types.
type TierConfig struct {
	Tier        ExtractionTier `json:"tier"`
	CostPerPage float64        `json:"cost_per_page"`
	// QualityCeiling is the score this tier is realistically capable of.
	// Used only for logging; escalation decisions use measured quality.
	QualityCeiling float64       `json:"quality_ceiling"`
	Model          string        `json:"model,omitempty"`
	ImageDPI       int           `json:"image_dpi,omitempty"`
	Timeout        time.Duration `json:"timeout,omitempty"`
}

// ExtractionAttempt is one completed tier invocation. Immutable once produced.
type ExtractionAttempt struct {
	Tier     ExtractionTier `json:"tier"`
	Pages    []string       `json:"pages"`
	Duration time.Duration  `json:"duration"`
	Cost     float64        `json:"cost"`
	Quality  QualityReport  `json:"quality"`
}

// ExtractionResult is the attempt selected by the controller, plus the full
// trail of attempts actually tried.
type ExtractionResult struct {
	Selected         ExtractionAttempt   `json:"selected"`
	Attempts         []ExtractionAttempt `json:"attempts"`
	EscalationReason string              `json:"escalation_reason"`
	TotalCost        float64             `json:"total_cost"`
}

// DimensionScore is one quality dimension of a QualityReport.
type DimensionScore struct {
	Score   float64            `json:"score"`
	Weight  float64            `json:"weight"`
	Signals map[string]float64 `json:"signals,omitempty"`
	Issues  []string           `json:"issues,omitempty"`
}

// QualityReport is a deterministic, ground-truth-free assessment of extracted
// pages. OverallScore is the weighted sum of dimension scores; weights sum to 1.
type QualityReport struct {
	OverallScore   float64                   `json:"overall_score"`
	Dimensions     map[string]DimensionScore `json:"dimensions"`
	Recommendation string                    `json:"recommendation"`
}

// Issues flattens per-dimension issues in fixed dimension order.
func (r QualityReport) Issues(order []string) []string {
	var out []string
	for _, name := range order {
		dim, ok := r.Dimensions[name]
		if !ok {
			continue
		}
		out = append(out, dim.Issues...)
	}
	return out
}
