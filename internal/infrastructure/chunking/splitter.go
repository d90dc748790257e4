package chunking

import (
	"strings"

	"github.com/Pond500/rag-mcp/internal/core/ports"
)

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// SplitPages chunks each page independently so every chunk keeps an exact
// 1-based page attribution. Chunks never span page boundaries.
func (s *Splitter) SplitPages(pages []string) []ports.PageChunk {
	out := make([]ports.PageChunk, 0, len(pages))
	for i, page := range pages {
		for _, chunk := range s.split(page) {
			out = append(out, ports.PageChunk{Text: chunk, Page: i + 1})
		}
	}
	return out
}

func (s *Splitter) split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.ChunkSize - s.Overlap
	if step <= 0 {
		step = s.ChunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
