package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

// HybridSearcher is the retrieval engine consumed by the chat flow.
type HybridSearcher interface {
	Search(ctx context.Context, kb, query string, opts ports.SearchOptions) (domain.FusedResultSet, error)
}

// SemanticRouter selects a knowledge base from a query embedding.
type SemanticRouter interface {
	Route(ctx context.Context, queryVector []float32) (domain.RouteDecision, error)
}

type QueryUseCase struct {
	embedder  ports.Embedder
	searcher  HybridSearcher
	router    SemanticRouter
	generator ports.AnswerGenerator
	sessions  ports.SessionStore

	historyLimit int
}

func NewQueryUseCase(
	embedder ports.Embedder,
	searcher HybridSearcher,
	router SemanticRouter,
	generator ports.AnswerGenerator,
	sessions ports.SessionStore,
	historyLimit int,
) *QueryUseCase {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &QueryUseCase{
		embedder:     embedder,
		searcher:     searcher,
		router:       router,
		generator:    generator,
		sessions:     sessions,
		historyLimit: historyLimit,
	}
}

// Answer retrieves context from the given knowledge base (routing first when
// kb is empty) and generates an answer. Session history is threaded through
// as an opaque input; retrieval never reads it.
func (uc *QueryUseCase) Answer(
	ctx context.Context,
	kb, sessionID, question string,
	opts ports.SearchOptions,
) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("question is required"))
	}

	routingScore := 0.0
	if kb == "" {
		decision, err := uc.route(ctx, question)
		if err != nil {
			return nil, err
		}
		if !decision.Matched {
			// No KB cleared the floor; answer without retrieval so the caller
			// sees an explicit empty knowledge base instead of a guess.
			return uc.generate(ctx, "", sessionID, question, domain.FusedResultSet{
				FormattedContext: "No relevant information found.",
			}, decision.Score)
		}
		kb = decision.KnowledgeBase
		routingScore = decision.Score
	}

	results, err := uc.searcher.Search(ctx, kb, question, opts)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	return uc.generate(ctx, kb, sessionID, question, results, routingScore)
}

func (uc *QueryUseCase) ClearSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "clear session", fmt.Errorf("session id is required"))
	}
	return uc.sessions.ClearSession(ctx, sessionID)
}

func (uc *QueryUseCase) route(ctx context.Context, question string) (domain.RouteDecision, error) {
	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return domain.RouteDecision{}, fmt.Errorf("embed query for routing: %w", err)
	}
	decision, err := uc.router.Route(ctx, queryVector)
	if err != nil {
		return domain.RouteDecision{}, fmt.Errorf("route query: %w", err)
	}
	return decision, nil
}

func (uc *QueryUseCase) generate(
	ctx context.Context,
	kb, sessionID, question string,
	results domain.FusedResultSet,
	routingScore float64,
) (*domain.Answer, error) {
	var history []domain.SessionMessage
	if sessionID != "" {
		recent, err := uc.sessions.ListRecentMessages(ctx, sessionID, uc.historyLimit)
		if err != nil {
			return nil, fmt.Errorf("load session history: %w", err)
		}
		history = recent
	}

	answerText, err := uc.generator.GenerateAnswer(ctx, question, results.FormattedContext, history)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	if sessionID != "" {
		now := time.Now().UTC()
		turns := []domain.SessionMessage{
			{ID: uuid.NewString(), SessionID: sessionID, Role: "user", Content: question, CreatedAt: now},
			{ID: uuid.NewString(), SessionID: sessionID, Role: "assistant", Content: answerText, CreatedAt: now},
		}
		for _, msg := range turns {
			if err := uc.sessions.AppendMessage(ctx, msg); err != nil {
				return nil, fmt.Errorf("persist session turn: %w", err)
			}
		}
	}

	return &domain.Answer{
		Text:          answerText,
		KnowledgeBase: kb,
		RoutingScore:  routingScore,
		Sources:       results.Hits,
		SessionID:     sessionID,
	}, nil
}
