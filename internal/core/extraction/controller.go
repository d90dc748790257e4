package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

// QualityScorer scores extracted pages. Must be deterministic: escalation
// decisions replay from identical input in tests.
type QualityScorer interface {
	Score(pages []string) domain.QualityReport
}

// Controller drives a bounded sequence of extraction tier attempts, scoring
// each and escalating to the next (more expensive) tier until the target
// quality is met or tiers run out. Attempts are strictly sequential: the
// escalation decision depends on the previous tier's measured quality.
type Controller struct {
	extractors map[domain.ExtractionTier]ports.TierExtractor
	configs    map[domain.ExtractionTier]domain.TierConfig
	scorer     QualityScorer
	logger     *slog.Logger
}

func NewController(
	extractors []ports.TierExtractor,
	configs map[domain.ExtractionTier]domain.TierConfig,
	scorer QualityScorer,
	logger *slog.Logger,
) *Controller {
	byTier := make(map[domain.ExtractionTier]ports.TierExtractor, len(extractors))
	for _, ex := range extractors {
		byTier[ex.Tier()] = ex
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		extractors: byTier,
		configs:    configs,
		scorer:     scorer,
		logger:     logger,
	}
}

// Extract runs enabled tiers in ascending cost order. A low quality score is
// never an error: the best attempt found is always returned. Only when every
// tier fails outright does Extract fail, with per-tier reasons.
func (c *Controller) Extract(
	ctx context.Context,
	filename string,
	data []byte,
	targetQuality float64,
	tiers []domain.ExtractionTier,
) (domain.ExtractionResult, error) {
	if len(tiers) == 0 {
		tiers = domain.TierOrder()
	}
	ordered := c.orderByCost(tiers)
	if len(ordered) == 0 {
		return domain.ExtractionResult{}, domain.WrapError(
			domain.ErrInvalidInput, "extract", fmt.Errorf("no enabled tiers"))
	}

	var (
		best      *domain.ExtractionAttempt
		attempts  []domain.ExtractionAttempt
		failures  []string
		totalCost float64
		reason    string
	)

	for _, tier := range ordered {
		if err := ctx.Err(); err != nil {
			if best != nil {
				reason = fmt.Sprintf("cancelled after tier %s, returning best of %d", best.Tier, len(attempts))
				return c.result(*best, attempts, reason, totalCost), nil
			}
			return domain.ExtractionResult{}, err
		}

		attempt, err := c.attemptTier(ctx, tier, filename, data)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", tier, err))
			c.logger.Warn("extraction tier failed",
				"tier", tier, "filename", filename, "error", err,
				"rate_limited", domain.IsKind(err, domain.ErrRateLimited))
			// Rate limits escalate immediately instead of retrying in place so
			// total ingestion latency stays bounded.
			continue
		}

		totalCost += attempt.Cost
		attempts = append(attempts, attempt)
		c.logger.Info("extraction tier scored",
			"tier", tier, "filename", filename,
			"pages", len(attempt.Pages),
			"quality", attempt.Quality.OverallScore,
			"cost", attempt.Cost)

		if best == nil || attempt.Quality.OverallScore > best.Quality.OverallScore {
			best = &attempts[len(attempts)-1]
		}

		if attempt.Quality.OverallScore >= targetQuality {
			reason = fmt.Sprintf("met target %.2f at tier %s", targetQuality, tier)
			break
		}
	}

	if best == nil {
		return domain.ExtractionResult{}, domain.WrapError(
			domain.ErrAllTiersExhausted, "extract",
			fmt.Errorf("tried %d tiers: %s", len(ordered), strings.Join(failures, "; ")))
	}
	// Reason stays empty when the target was never met, including when a later
	// tier failed outright after an earlier below-target success.
	if reason == "" {
		reason = fmt.Sprintf("exhausted all tiers, returning best of %d", len(attempts))
	}
	if len(failures) > 0 {
		reason = fmt.Sprintf("%s (failed tiers: %s)", reason, strings.Join(failures, "; "))
	}
	return c.result(*best, attempts, reason, totalCost), nil
}

func (c *Controller) attemptTier(
	ctx context.Context,
	tier domain.ExtractionTier,
	filename string,
	data []byte,
) (domain.ExtractionAttempt, error) {
	extractor, ok := c.extractors[tier]
	if !ok {
		return domain.ExtractionAttempt{}, domain.WrapError(
			domain.ErrTierUnavailable, "attempt tier", fmt.Errorf("no extractor registered for tier %s", tier))
	}
	cfg := c.configs[tier]
	cfg.Tier = tier

	attemptCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	pages, err := extractor.Extract(attemptCtx, ports.TierExtractRequest{
		Filename: filename,
		Data:     data,
		Config:   cfg,
	})
	elapsed := time.Since(start)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return domain.ExtractionAttempt{}, domain.WrapError(
				domain.ErrTierUnavailable, "attempt tier", fmt.Errorf("tier %s timed out after %s", tier, cfg.Timeout))
		}
		return domain.ExtractionAttempt{}, err
	}
	if !hasText(pages.Pages) {
		return domain.ExtractionAttempt{}, domain.WrapError(
			domain.ErrExtractionEmpty, "attempt tier", fmt.Errorf("tier %s returned no usable text", tier))
	}

	return domain.ExtractionAttempt{
		Tier:     tier,
		Pages:    pages.Pages,
		Duration: elapsed,
		Cost:     pages.Cost,
		Quality:  c.scorer.Score(pages.Pages),
	}, nil
}

func (c *Controller) orderByCost(tiers []domain.ExtractionTier) []domain.ExtractionTier {
	enabled := make([]domain.ExtractionTier, 0, len(tiers))
	seen := make(map[domain.ExtractionTier]struct{}, len(tiers))
	for _, t := range tiers {
		if _, dup := seen[t]; dup {
			continue
		}
		if _, ok := c.extractors[t]; !ok {
			continue
		}
		seen[t] = struct{}{}
		enabled = append(enabled, t)
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		return c.configs[enabled[i]].CostPerPage < c.configs[enabled[j]].CostPerPage
	})
	return enabled
}

func (c *Controller) result(
	best domain.ExtractionAttempt,
	attempts []domain.ExtractionAttempt,
	reason string,
	totalCost float64,
) domain.ExtractionResult {
	return domain.ExtractionResult{
		Selected:         best,
		Attempts:         attempts,
		EscalationReason: reason,
		TotalCost:        totalCost,
	}
}

func hasText(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return true
		}
	}
	return false
}
