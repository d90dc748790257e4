package rerank

import (
	"context"
	"testing"
)

func TestLexicalScorerOrdersByOverlap(t *testing.T) {
	scorer := NewLexicalScorer()
	scores, err := scorer.Score(context.Background(), "bearing tolerance table", []string{
		"lubrication schedule for the gearbox",
		"bearing tolerance table, grade 5",
		"tolerance bands for shaft fits",
	})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(scores))
	}
	if !(scores[1] > scores[2] && scores[2] > scores[0]) {
		t.Fatalf("expected overlap ordering, got %v", scores)
	}
}

func TestLexicalScorerEmptyQuery(t *testing.T) {
	scorer := NewLexicalScorer()
	scores, err := scorer.Score(context.Background(), "", []string{"anything"})
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scores[0] != 0 {
		t.Fatalf("expected zero score for empty query, got %v", scores[0])
	}
}

func TestLexicalScorerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewLexicalScorer().Score(ctx, "q", []string{"t"}); err == nil {
		t.Fatalf("expected context error")
	}
}
