package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

// ProgressiveExtractor drives the tiered extraction for one document.
type ProgressiveExtractor interface {
	Extract(ctx context.Context, filename string, data []byte, targetQuality float64, tiers []domain.ExtractionTier) (domain.ExtractionResult, error)
}

type ProcessDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	extractor ProgressiveExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
	vectorDB  ports.VectorStore

	targetQuality float64
	enabledTiers  []domain.ExtractionTier
	observer      ExtractionObserver
}

// ExtractionObserver receives the tier trail of each completed extraction,
// typically to feed worker metrics. Nil disables observation.
type ExtractionObserver interface {
	ObserveExtraction(result domain.ExtractionResult)
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	extractor ProgressiveExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	targetQuality float64,
	enabledTiers []domain.ExtractionTier,
) *ProcessDocumentUseCase {
	if targetQuality <= 0 || targetQuality > 1 {
		targetQuality = 0.70
	}
	if len(enabledTiers) == 0 {
		enabledTiers = domain.TierOrder()
	}
	return &ProcessDocumentUseCase{
		repo:          repo,
		storage:       storage,
		extractor:     extractor,
		chunker:       chunker,
		embedder:      embedder,
		vectorDB:      vectorDB,
		targetQuality: targetQuality,
		enabledTiers:  enabledTiers,
	}
}

// SetExtractionObserver installs an optional observer. Must be called before
// the first ProcessByID.
func (uc *ProcessDocumentUseCase) SetExtractionObserver(observer ExtractionObserver) {
	uc.observer = observer
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.processPipeline(ctx, documentID); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	data, err := uc.readSource(ctx, doc)
	if err != nil {
		return err
	}

	// A low-quality result is a valid result; only total tier exhaustion
	// fails the pipeline.
	result, err := uc.extractor.Extract(ctx, doc.Filename, data, uc.targetQuality, uc.enabledTiers)
	if err != nil {
		return fmt.Errorf("progressive extraction: %w", err)
	}
	if uc.observer != nil {
		uc.observer.ObserveExtraction(result)
	}

	chunks := uc.chunker.SplitPages(result.Selected.Pages)
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}

	indexable := make([]ports.IndexableChunk, len(chunks))
	for i, c := range chunks {
		indexable[i] = ports.IndexableChunk{
			ChunkID: uuid.NewString(),
			Text:    c.Text,
			Source: domain.ChunkSource{
				File: doc.Filename,
				Page: c.Page,
			},
			Vector: vectors[i],
		}
	}
	if err := uc.vectorDB.UpsertChunks(ctx, doc.KnowledgeBase, indexable); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}

	if err := uc.repo.SaveExtractionMetadata(ctx, doc.ID, result, len(chunks)); err != nil {
		return fmt.Errorf("save extraction metadata: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) readSource(ctx context.Context, doc *domain.Document) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read source document: %w", err)
	}
	return data, nil
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}
