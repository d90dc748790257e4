package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

type searcherFake struct {
	results map[string]domain.FusedResultSet
	err     error

	gotKB    string
	gotQuery string
	gotOpts  ports.SearchOptions
}

func (f *searcherFake) Search(_ context.Context, kb, query string, opts ports.SearchOptions) (domain.FusedResultSet, error) {
	f.gotKB = kb
	f.gotQuery = query
	f.gotOpts = opts
	if f.err != nil {
		return domain.FusedResultSet{}, f.err
	}
	return f.results[kb], nil
}

type routerFake struct {
	decision domain.RouteDecision
	err      error
	calls    int
}

func (f *routerFake) Route(context.Context, []float32) (domain.RouteDecision, error) {
	f.calls++
	if f.err != nil {
		return domain.RouteDecision{}, f.err
	}
	return f.decision, nil
}

type generatorFake struct {
	answer string
	err    error

	gotQuestion string
	gotContext  string
	gotHistory  []domain.SessionMessage
}

func (f *generatorFake) GenerateAnswer(_ context.Context, question, context string, history []domain.SessionMessage) (string, error) {
	f.gotQuestion = question
	f.gotContext = context
	f.gotHistory = history
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type sessionStoreFake struct {
	messages map[string][]domain.SessionMessage
	cleared  []string
	err      error
}

func newSessionStoreFake() *sessionStoreFake {
	return &sessionStoreFake{messages: map[string][]domain.SessionMessage{}}
}

func (f *sessionStoreFake) AppendMessage(_ context.Context, msg domain.SessionMessage) error {
	if f.err != nil {
		return f.err
	}
	f.messages[msg.SessionID] = append(f.messages[msg.SessionID], msg)
	return nil
}

func (f *sessionStoreFake) ListRecentMessages(_ context.Context, sessionID string, limit int) ([]domain.SessionMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	msgs := f.messages[sessionID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (f *sessionStoreFake) ClearSession(_ context.Context, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	delete(f.messages, sessionID)
	f.cleared = append(f.cleared, sessionID)
	return nil
}

func resultSetFixture(kb string) domain.FusedResultSet {
	return domain.FusedResultSet{
		Hits: []domain.SearchHit{
			{ChunkID: kb + "-chunk-1", Text: "ball bearing tolerances", RRFScore: 0.032},
		},
		FormattedContext: "Retrieved context (1 passages):\n[1] ball bearing tolerances",
		SourceSummary:    []domain.SourceCount{{File: "guide.pdf", Chunks: 1}},
	}
}

func TestAnswerWithExplicitKnowledgeBase(t *testing.T) {
	searcher := &searcherFake{results: map[string]domain.FusedResultSet{"manuals": resultSetFixture("manuals")}}
	router := &routerFake{}
	generator := &generatorFake{answer: "tolerance is 5 micron"}
	uc := NewQueryUseCase(&embedderFake{}, searcher, router, generator, newSessionStoreFake(), 10)

	answer, err := uc.Answer(context.Background(), "manuals", "", "what is the tolerance?", ports.SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if router.calls != 0 {
		t.Fatalf("routing must be skipped when a knowledge base is given, got %d calls", router.calls)
	}
	if searcher.gotKB != "manuals" {
		t.Fatalf("expected search in manuals, got %s", searcher.gotKB)
	}
	if answer.Text != "tolerance is 5 micron" {
		t.Fatalf("unexpected answer text %q", answer.Text)
	}
	if answer.KnowledgeBase != "manuals" {
		t.Fatalf("expected knowledge base manuals, got %s", answer.KnowledgeBase)
	}
	if len(answer.Sources) != 1 {
		t.Fatalf("expected 1 source hit, got %d", len(answer.Sources))
	}
	if !strings.Contains(generator.gotContext, "ball bearing tolerances") {
		t.Fatalf("expected retrieval context passed to generator, got %q", generator.gotContext)
	}
}

func TestAnswerRoutesWhenKnowledgeBaseOmitted(t *testing.T) {
	searcher := &searcherFake{results: map[string]domain.FusedResultSet{"hr": resultSetFixture("hr")}}
	router := &routerFake{decision: domain.RouteDecision{KnowledgeBase: "hr", Score: 0.81, Matched: true}}
	generator := &generatorFake{answer: "15 days"}
	uc := NewQueryUseCase(&embedderFake{}, searcher, router, generator, newSessionStoreFake(), 10)

	answer, err := uc.Answer(context.Background(), "", "", "how many vacation days?", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if router.calls != 1 {
		t.Fatalf("expected one routing call, got %d", router.calls)
	}
	if answer.KnowledgeBase != "hr" {
		t.Fatalf("expected routed knowledge base hr, got %s", answer.KnowledgeBase)
	}
	if answer.RoutingScore != 0.81 {
		t.Fatalf("expected routing score 0.81, got %.2f", answer.RoutingScore)
	}
}

func TestAnswerUnroutedQueryAnswersWithoutRetrieval(t *testing.T) {
	searcher := &searcherFake{}
	router := &routerFake{decision: domain.RouteDecision{Score: 0.31, Matched: false}}
	generator := &generatorFake{answer: "I have no documentation on that."}
	uc := NewQueryUseCase(&embedderFake{}, searcher, router, generator, newSessionStoreFake(), 10)

	answer, err := uc.Answer(context.Background(), "", "", "what is the meaning of life?", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if searcher.gotQuery != "" {
		t.Fatalf("search must be skipped when no knowledge base matches")
	}
	if answer.KnowledgeBase != "" {
		t.Fatalf("expected empty knowledge base, got %s", answer.KnowledgeBase)
	}
	if !strings.Contains(generator.gotContext, "No relevant information found.") {
		t.Fatalf("expected empty-context marker, got %q", generator.gotContext)
	}
}

func TestAnswerPersistsSessionTurns(t *testing.T) {
	searcher := &searcherFake{results: map[string]domain.FusedResultSet{"manuals": resultSetFixture("manuals")}}
	sessions := newSessionStoreFake()
	generator := &generatorFake{answer: "use grade 5"}
	uc := NewQueryUseCase(&embedderFake{}, searcher, &routerFake{}, generator, sessions, 10)

	answer, err := uc.Answer(context.Background(), "manuals", "sess-1", "which bolt grade?", ports.SearchOptions{})
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.SessionID != "sess-1" {
		t.Fatalf("expected session id echoed, got %s", answer.SessionID)
	}
	turns := sessions.messages["sess-1"]
	if len(turns) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(turns))
	}
	if turns[0].Role != "user" || turns[0].Content != "which bolt grade?" {
		t.Fatalf("unexpected first turn %+v", turns[0])
	}
	if turns[1].Role != "assistant" || turns[1].Content != "use grade 5" {
		t.Fatalf("unexpected second turn %+v", turns[1])
	}
}

func TestAnswerThreadsHistoryToGenerator(t *testing.T) {
	searcher := &searcherFake{results: map[string]domain.FusedResultSet{"manuals": resultSetFixture("manuals")}}
	sessions := newSessionStoreFake()
	sessions.messages["sess-1"] = []domain.SessionMessage{
		{SessionID: "sess-1", Role: "user", Content: "earlier question"},
		{SessionID: "sess-1", Role: "assistant", Content: "earlier answer"},
	}
	generator := &generatorFake{answer: "ok"}
	uc := NewQueryUseCase(&embedderFake{}, searcher, &routerFake{}, generator, sessions, 10)

	if _, err := uc.Answer(context.Background(), "manuals", "sess-1", "follow-up?", ports.SearchOptions{}); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(generator.gotHistory) != 2 {
		t.Fatalf("expected 2 history messages, got %d", len(generator.gotHistory))
	}
	if generator.gotHistory[0].Content != "earlier question" {
		t.Fatalf("unexpected history order %+v", generator.gotHistory)
	}
}

func TestAnswerWithoutSessionSkipsHistory(t *testing.T) {
	searcher := &searcherFake{results: map[string]domain.FusedResultSet{"manuals": resultSetFixture("manuals")}}
	sessions := newSessionStoreFake()
	generator := &generatorFake{answer: "ok"}
	uc := NewQueryUseCase(&embedderFake{}, searcher, &routerFake{}, generator, sessions, 10)

	if _, err := uc.Answer(context.Background(), "manuals", "", "one shot", ports.SearchOptions{}); err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if len(generator.gotHistory) != 0 {
		t.Fatalf("expected no history, got %d messages", len(generator.gotHistory))
	}
	if len(sessions.messages) != 0 {
		t.Fatalf("expected nothing persisted without session id")
	}
}

func TestAnswerEmptyQuestion(t *testing.T) {
	uc := NewQueryUseCase(&embedderFake{}, &searcherFake{}, &routerFake{}, &generatorFake{}, newSessionStoreFake(), 10)

	_, err := uc.Answer(context.Background(), "manuals", "", "   ", ports.SearchOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestAnswerSearchError(t *testing.T) {
	searcher := &searcherFake{err: domain.WrapError(domain.ErrSearchBackend, "search", errors.New("both channels down"))}
	uc := NewQueryUseCase(&embedderFake{}, searcher, &routerFake{}, &generatorFake{}, newSessionStoreFake(), 10)

	_, err := uc.Answer(context.Background(), "manuals", "", "anything", ports.SearchOptions{})
	if !domain.IsKind(err, domain.ErrSearchBackend) {
		t.Fatalf("expected search backend kind, got %v", err)
	}
}

func TestClearSession(t *testing.T) {
	sessions := newSessionStoreFake()
	sessions.messages["sess-1"] = []domain.SessionMessage{{SessionID: "sess-1", Role: "user", Content: "hi"}}
	uc := NewQueryUseCase(&embedderFake{}, &searcherFake{}, &routerFake{}, &generatorFake{}, sessions, 10)

	if err := uc.ClearSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("ClearSession() error = %v", err)
	}
	if len(sessions.messages["sess-1"]) != 0 {
		t.Fatalf("expected session cleared")
	}
	if err := uc.ClearSession(context.Background(), ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty session id, got %v", err)
	}
}
