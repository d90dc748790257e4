package ports

import (
	"context"
	"io"

	"github.com/Pond500/rag-mcp/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByKnowledgeBase(ctx context.Context, kb string) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveExtractionMetadata(ctx context.Context, id string, result domain.ExtractionResult, chunkCount int) error
}

// DescriptorStore persists knowledge-base descriptors, the backing store of
// the routing index.
type DescriptorStore interface {
	Save(ctx context.Context, desc domain.KnowledgeBaseDescriptor) error
	Delete(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (*domain.KnowledgeBaseDescriptor, error)
	List(ctx context.Context) ([]domain.KnowledgeBaseDescriptor, error)
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TierExtractRequest is one extraction attempt's input.
type TierExtractRequest struct {
	Filename string
	Data     []byte
	Config   domain.TierConfig
}

// TierPages is the raw outcome of one extraction attempt, before scoring.
type TierPages struct {
	Pages    []string
	Cost     float64
	Duration float64 // seconds of backend-reported time, 0 if unknown
}

// TierExtractor performs one extraction attempt at a given tier. Failures are
// reported as ErrTierUnavailable, ErrRateLimited or ErrExtractionEmpty kinds;
// the extraction controller recovers from all three by moving on.
type TierExtractor interface {
	Tier() domain.ExtractionTier
	Extract(ctx context.Context, req TierExtractRequest) (TierPages, error)
}

// Embedder builds vectors for chunks, queries and KB descriptions.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits extracted pages into indexable chunks with page attribution.
type Chunker interface {
	SplitPages(pages []string) []PageChunk
}

// PageChunk is one chunk of text with its 1-based source page.
type PageChunk struct {
	Text string
	Page int
}

// IndexableChunk is one chunk ready for upsert into a vector store.
type IndexableChunk struct {
	ChunkID string
	Text    string
	Source  domain.ChunkSource
	Vector  []float32
}

// VectorStore indexes chunks and performs dense and sparse similarity search,
// scoped to one knowledge base per call. Returned hits carry the channel score
// in DenseScore or SparseScore respectively.
type VectorStore interface {
	EnsureCollection(ctx context.Context, kb string, vectorSize int) error
	DropCollection(ctx context.Context, kb string) error
	UpsertChunks(ctx context.Context, kb string, chunks []IndexableChunk) error
	SearchDense(ctx context.Context, kb string, queryVector []float32, limit int) ([]domain.SearchHit, error)
	SearchSparse(ctx context.Context, kb string, queryText string, limit int) ([]domain.SearchHit, error)
}

// RerankScorer assigns a cross-encoder style relevance score to each
// (query, text) pair in one batched call, same order as the input.
type RerankScorer interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// AnswerGenerator creates the final user-facing answer from the formatted
// retrieval context and opaque session history.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question, context string, history []domain.SessionMessage) (string, error)
}

// SessionStore persists chat history. History is an opaque input to answer
// generation; this core never interprets it.
type SessionStore interface {
	AppendMessage(ctx context.Context, msg domain.SessionMessage) error
	ListRecentMessages(ctx context.Context, sessionID string, limit int) ([]domain.SessionMessage, error)
	ClearSession(ctx context.Context, sessionID string) error
}
