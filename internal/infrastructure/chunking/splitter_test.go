package chunking

import (
	"strings"
	"testing"
)

func TestSplitPagesKeepsPageAttribution(t *testing.T) {
	s := NewSplitter(10, 0)
	chunks := s.SplitPages([]string{"first page text", "second page"})
	if len(chunks) == 0 {
		t.Fatalf("expected chunks")
	}
	for _, c := range chunks {
		if c.Page != 1 && c.Page != 2 {
			t.Fatalf("unexpected page %d", c.Page)
		}
		if c.Page == 2 && !strings.Contains("second page", c.Text) {
			t.Fatalf("chunk crossed page boundary: %q", c.Text)
		}
	}
}

func TestSplitPagesSkipsEmptyPages(t *testing.T) {
	s := NewSplitter(100, 0)
	chunks := s.SplitPages([]string{"", "   ", "content"})
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Page != 3 {
		t.Fatalf("expected page 3, got %d", chunks[0].Page)
	}
}

func TestSplitOverlap(t *testing.T) {
	s := NewSplitter(6, 2)
	chunks := s.SplitPages([]string{"abcdefghij"})
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if chunks[0].Text != "abcdef" {
		t.Fatalf("unexpected first chunk %q", chunks[0].Text)
	}
	if !strings.HasPrefix(chunks[1].Text, "ef") {
		t.Fatalf("expected overlap prefix ef, got %q", chunks[1].Text)
	}
}
