package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

// RouterIndex is notified when the set of knowledge bases changes so the
// routing snapshot can be rebuilt on the next lookup.
type RouterIndex interface {
	Invalidate()
}

type KnowledgeBaseUseCase struct {
	descriptors ports.DescriptorStore
	vectors     ports.VectorStore
	embedder    ports.Embedder
	router      RouterIndex
}

func NewKnowledgeBaseUseCase(
	descriptors ports.DescriptorStore,
	vectors ports.VectorStore,
	embedder ports.Embedder,
	router RouterIndex,
) *KnowledgeBaseUseCase {
	return &KnowledgeBaseUseCase{
		descriptors: descriptors,
		vectors:     vectors,
		embedder:    embedder,
		router:      router,
	}
}

// Create registers a knowledge base: the description is embedded once at
// registration time and stored alongside the descriptor for routing.
func (uc *KnowledgeBaseUseCase) Create(ctx context.Context, name, description, category string) (*domain.KnowledgeBaseDescriptor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create knowledge base", fmt.Errorf("name is required"))
	}
	if strings.TrimSpace(description) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "create knowledge base", fmt.Errorf("description is required"))
	}

	if _, err := uc.descriptors.Get(ctx, name); err == nil {
		return nil, domain.WrapError(domain.ErrKnowledgeBaseExists, "create knowledge base", fmt.Errorf("knowledge base %q already registered", name))
	} else if !domain.IsKind(err, domain.ErrKnowledgeBaseNotFound) {
		return nil, fmt.Errorf("check existing descriptor: %w", err)
	}

	embedding, err := uc.embedder.EmbedQuery(ctx, description)
	if err != nil {
		return nil, fmt.Errorf("embed description: %w", err)
	}

	descriptor := domain.KnowledgeBaseDescriptor{
		Name:        name,
		Description: description,
		Category:    category,
		Embedding:   embedding,
		CreatedAt:   time.Now().UTC(),
	}

	if err := uc.vectors.EnsureCollection(ctx, name, len(embedding)); err != nil {
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	if err := uc.descriptors.Save(ctx, descriptor); err != nil {
		return nil, fmt.Errorf("save descriptor: %w", err)
	}

	uc.router.Invalidate()
	return &descriptor, nil
}

func (uc *KnowledgeBaseUseCase) Delete(ctx context.Context, name string) error {
	if _, err := uc.descriptors.Get(ctx, name); err != nil {
		return err
	}
	if err := uc.vectors.DropCollection(ctx, name); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	if err := uc.descriptors.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete descriptor: %w", err)
	}
	uc.router.Invalidate()
	return nil
}

func (uc *KnowledgeBaseUseCase) Get(ctx context.Context, name string) (*domain.KnowledgeBaseDescriptor, error) {
	return uc.descriptors.Get(ctx, name)
}

func (uc *KnowledgeBaseUseCase) List(ctx context.Context) ([]domain.KnowledgeBaseDescriptor, error) {
	return uc.descriptors.List(ctx)
}
