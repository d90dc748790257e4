package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID            string         `json:"id"`
	KnowledgeBase string         `json:"knowledge_base"`
	Filename      string         `json:"filename"`
	MimeType      string         `json:"mime_type"`
	StoragePath   string         `json:"storage_path"`
	Status        DocumentStatus `json:"status"`
	Error         string         `json:"error,omitempty"`

	// Extraction metadata, filled by the worker once processing completes.
	TierUsed         ExtractionTier `json:"tier_used,omitempty"`
	QualityScore     float64        `json:"quality_score,omitempty"`
	ExtractionCost   float64        `json:"extraction_cost,omitempty"`
	TiersAttempted   int            `json:"tiers_attempted,omitempty"`
	EscalationReason string         `json:"escalation_reason,omitempty"`
	PageCount        int            `json:"page_count,omitempty"`
	ChunkCount       int            `json:"chunk_count,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
