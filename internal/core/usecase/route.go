package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

// RouteUseCase exposes knowledge base selection as a standalone operation.
type RouteUseCase struct {
	embedder ports.Embedder
	router   SemanticRouter
}

func NewRouteUseCase(embedder ports.Embedder, router SemanticRouter) *RouteUseCase {
	return &RouteUseCase{embedder: embedder, router: router}
}

func (uc *RouteUseCase) Route(ctx context.Context, query string) (domain.RouteDecision, error) {
	if strings.TrimSpace(query) == "" {
		return domain.RouteDecision{}, domain.WrapError(domain.ErrInvalidInput, "route", fmt.Errorf("query is required"))
	}
	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return domain.RouteDecision{}, fmt.Errorf("embed query: %w", err)
	}
	decision, err := uc.router.Route(ctx, queryVector)
	if err != nil {
		return domain.RouteDecision{}, fmt.Errorf("route query: %w", err)
	}
	return decision, nil
}
