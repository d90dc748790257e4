package domain

import "time"

// KnowledgeBaseDescriptor is one entry of the routing index. The embedding is
// computed from Description when the knowledge base is created and recomputed
// only if the description changes.
type KnowledgeBaseDescriptor struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Embedding   []float32 `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// RouteDecision is the outcome of semantic routing. Matched is false when no
// descriptor scored above the similarity floor.
type RouteDecision struct {
	KnowledgeBase string  `json:"knowledge_base,omitempty"`
	Score         float64 `json:"score"`
	Matched       bool    `json:"matched"`
}
