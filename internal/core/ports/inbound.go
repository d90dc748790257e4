package ports

import (
	"context"
	"io"

	"github.com/Pond500/rag-mcp/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, kb, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByKnowledgeBase(ctx context.Context, kb string) ([]domain.Document, error)
}

// SearchOptions controls hybrid retrieval behavior.
type SearchOptions struct {
	TopK        int
	UseRerank   bool
	Deduplicate bool
}

// SearchService is the inbound contract for hybrid retrieval.
type SearchService interface {
	Search(ctx context.Context, kb, query string, opts SearchOptions) (domain.FusedResultSet, error)
}

// RouteService selects a knowledge base for a query, or reports no match.
type RouteService interface {
	Route(ctx context.Context, query string) (domain.RouteDecision, error)
}

// ChatService answers a question against a knowledge base, routing first when
// kb is empty, and threads opaque session history into generation.
type ChatService interface {
	Answer(ctx context.Context, kb, sessionID, question string, opts SearchOptions) (*domain.Answer, error)
	ClearSession(ctx context.Context, sessionID string) error
}

// KnowledgeBaseManager is the inbound contract for KB lifecycle.
type KnowledgeBaseManager interface {
	Create(ctx context.Context, name, description, category string) (*domain.KnowledgeBaseDescriptor, error)
	Delete(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (*domain.KnowledgeBaseDescriptor, error)
	List(ctx context.Context) ([]domain.KnowledgeBaseDescriptor, error)
}
