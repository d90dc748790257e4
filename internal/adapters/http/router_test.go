package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/core/ports"
)

type ingestorFake struct {
	err error
}

func (f ingestorFake) Upload(_ context.Context, kb, filename, mimeType string, body io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &domain.Document{
		ID:            "doc-1",
		KnowledgeBase: kb,
		Filename:      filename,
		MimeType:      mimeType,
		StoragePath:   "doc-1_file.txt",
		Status:        domain.StatusUploaded,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

type docsFake struct {
	err error
}

func (f docsFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-1", KnowledgeBase: "manuals", Filename: "a.pdf", Status: domain.StatusReady}, nil
}

func (f docsFake) ListByKnowledgeBase(context.Context, string) ([]domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Document{{ID: "doc-1", KnowledgeBase: "manuals"}}, nil
}

type kbManagerFake struct {
	err error
}

func (f kbManagerFake) Create(_ context.Context, name, description, category string) (*domain.KnowledgeBaseDescriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.KnowledgeBaseDescriptor{Name: name, Description: description, Category: category}, nil
}

func (f kbManagerFake) Delete(context.Context, string) error { return f.err }

func (f kbManagerFake) Get(_ context.Context, name string) (*domain.KnowledgeBaseDescriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.KnowledgeBaseDescriptor{Name: name, Description: "hardware manuals"}, nil
}

func (f kbManagerFake) List(context.Context) ([]domain.KnowledgeBaseDescriptor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.KnowledgeBaseDescriptor{{Name: "manuals"}, {Name: "policies"}}, nil
}

type searchServiceFake struct {
	err      error
	gotKB    string
	gotOpts  ports.SearchOptions
	received bool
}

func (f *searchServiceFake) Search(_ context.Context, kb, _ string, opts ports.SearchOptions) (domain.FusedResultSet, error) {
	f.received = true
	f.gotKB = kb
	f.gotOpts = opts
	if f.err != nil {
		return domain.FusedResultSet{}, f.err
	}
	return domain.FusedResultSet{
		Hits:             []domain.SearchHit{{ChunkID: "c1", Text: "reset the device", RRFScore: 0.03}},
		FormattedContext: "[1] reset the device",
	}, nil
}

type routeServiceFake struct {
	decision domain.RouteDecision
	err      error
}

func (f routeServiceFake) Route(context.Context, string) (domain.RouteDecision, error) {
	return f.decision, f.err
}

type chatServiceFake struct {
	answer     *domain.Answer
	err        error
	clearedID  string
	clearError error
}

func (f *chatServiceFake) Answer(_ context.Context, kb, sessionID, _ string, _ ports.SearchOptions) (*domain.Answer, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.answer != nil {
		return f.answer, nil
	}
	return &domain.Answer{Text: "ok", KnowledgeBase: kb, SessionID: sessionID}, nil
}

func (f *chatServiceFake) ClearSession(_ context.Context, sessionID string) error {
	if f.clearError != nil {
		return f.clearError
	}
	f.clearedID = sessionID
	return nil
}

type routerFakes struct {
	ingestor ingestorFake
	docs     docsFake
	kbs      kbManagerFake
	search   *searchServiceFake
	routes   routeServiceFake
	chat     *chatServiceFake
	opts     Options
}

func newTestHandler(f routerFakes) http.Handler {
	if f.search == nil {
		f.search = &searchServiceFake{}
	}
	if f.chat == nil {
		f.chat = &chatServiceFake{}
	}
	return NewRouter(f.ingestor, f.docs, f.kbs, f.search, f.routes, f.chat, nil, f.opts).Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestHealthzEndpoint(t *testing.T) {
	res := doJSON(t, newTestHandler(routerFakes{}), http.MethodGet, "/healthz", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestCreateKnowledgeBase(t *testing.T) {
	handler := newTestHandler(routerFakes{})
	res := doJSON(t, handler, http.MethodPost, "/v1/kb", map[string]string{
		"name":        "manuals",
		"description": "hardware manuals and datasheets",
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}

	var descriptor domain.KnowledgeBaseDescriptor
	if err := json.NewDecoder(res.Body).Decode(&descriptor); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if descriptor.Name != "manuals" {
		t.Fatalf("expected name manuals, got %q", descriptor.Name)
	}
}

func TestCreateKnowledgeBaseConflictMapsTo409(t *testing.T) {
	handler := newTestHandler(routerFakes{
		kbs: kbManagerFake{err: domain.WrapError(domain.ErrKnowledgeBaseExists, "create", errors.New("manuals"))},
	})
	res := doJSON(t, handler, http.MethodPost, "/v1/kb", map[string]string{"name": "manuals", "description": "d"})
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
}

func TestListKnowledgeBases(t *testing.T) {
	res := doJSON(t, newTestHandler(routerFakes{}), http.MethodGet, "/v1/kb", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		KnowledgeBases []domain.KnowledgeBaseDescriptor `json:"knowledge_bases"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.KnowledgeBases) != 2 {
		t.Fatalf("expected 2 knowledge bases, got %d", len(body.KnowledgeBases))
	}
}

func TestDeleteUnknownKnowledgeBaseMapsTo404(t *testing.T) {
	handler := newTestHandler(routerFakes{
		kbs: kbManagerFake{err: domain.WrapError(domain.ErrKnowledgeBaseNotFound, "delete", errors.New("ghost"))},
	})
	res := doJSON(t, handler, http.MethodDelete, "/v1/kb/ghost", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestListDocumentsForKnowledgeBase(t *testing.T) {
	res := doJSON(t, newTestHandler(routerFakes{}), http.MethodGet, "/v1/kb/manuals/documents", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Documents []domain.Document `json:"documents"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Documents) != 1 || body.Documents[0].KnowledgeBase != "manuals" {
		t.Fatalf("unexpected documents payload: %+v", body.Documents)
	}
}

func TestUploadDocument(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("kb", "manuals"); err != nil {
		t.Fatalf("write kb field: %v", err)
	}
	part, err := mw.CreateFormFile("file", "report.txt")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("device reset procedure")); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	newTestHandler(routerFakes{}).ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	var doc domain.Document
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.KnowledgeBase != "manuals" || doc.Filename != "report.txt" {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestUploadWithoutFileReturns400(t *testing.T) {
	res := doJSON(t, newTestHandler(routerFakes{}), http.MethodPost, "/v1/documents", map[string]string{"kb": "manuals"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadToUnknownKnowledgeBaseMapsTo404(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", "report.txt")
	part.Write([]byte("content"))
	mw.Close()

	handler := newTestHandler(routerFakes{
		ingestor: ingestorFake{err: domain.WrapError(domain.ErrKnowledgeBaseNotFound, "upload", errors.New("ghost"))},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetDocumentByID(t *testing.T) {
	res := doJSON(t, newTestHandler(routerFakes{}), http.MethodGet, "/v1/documents/doc-1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestGetUnknownDocumentMapsTo404(t *testing.T) {
	handler := newTestHandler(routerFakes{
		docs: docsFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("missing"))},
	})
	res := doJSON(t, handler, http.MethodGet, "/v1/documents/ghost", nil)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestSearchEndpointPassesOptions(t *testing.T) {
	search := &searchServiceFake{}
	handler := newTestHandler(routerFakes{search: search})
	res := doJSON(t, handler, http.MethodPost, "/v1/search", map[string]any{
		"knowledge_base": "manuals",
		"query":          "how to reset",
		"top_k":          3,
		"rerank":         true,
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if search.gotKB != "manuals" {
		t.Fatalf("expected kb manuals, got %q", search.gotKB)
	}
	if search.gotOpts.TopK != 3 || !search.gotOpts.UseRerank || !search.gotOpts.Deduplicate {
		t.Fatalf("unexpected search options: %+v", search.gotOpts)
	}
}

func TestSearchDefaultsTopK(t *testing.T) {
	search := &searchServiceFake{}
	handler := newTestHandler(routerFakes{search: search, opts: Options{DefaultTopK: 7}})
	res := doJSON(t, handler, http.MethodPost, "/v1/search", map[string]any{
		"knowledge_base": "manuals",
		"query":          "reset",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if search.gotOpts.TopK != 7 {
		t.Fatalf("expected default top k 7, got %d", search.gotOpts.TopK)
	}
}

func TestSearchWithoutKnowledgeBaseReturns400(t *testing.T) {
	res := doJSON(t, newTestHandler(routerFakes{}), http.MethodPost, "/v1/search", map[string]any{"query": "reset"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchBackendFailureMapsTo502(t *testing.T) {
	handler := newTestHandler(routerFakes{
		search: &searchServiceFake{err: domain.WrapError(domain.ErrSearchBackend, "dense search", errors.New("qdrant down"))},
	})
	res := doJSON(t, handler, http.MethodPost, "/v1/search", map[string]any{
		"knowledge_base": "manuals",
		"query":          "reset",
	})
	if res.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", res.Code)
	}
}

func TestRouteEndpoint(t *testing.T) {
	handler := newTestHandler(routerFakes{
		routes: routeServiceFake{decision: domain.RouteDecision{KnowledgeBase: "manuals", Score: 0.82, Matched: true}},
	})
	res := doJSON(t, handler, http.MethodPost, "/v1/route", map[string]string{"query": "how do I reset the router"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var decision domain.RouteDecision
	if err := json.NewDecoder(res.Body).Decode(&decision); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !decision.Matched || decision.KnowledgeBase != "manuals" {
		t.Fatalf("unexpected decision: %+v", decision)
	}
}

func TestRouteEmptyQueryMapsTo400(t *testing.T) {
	handler := newTestHandler(routerFakes{
		routes: routeServiceFake{err: domain.WrapError(domain.ErrInvalidInput, "route", errors.New("query is required"))},
	})
	res := doJSON(t, handler, http.MethodPost, "/v1/route", map[string]string{"query": ""})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestChatEndpoint(t *testing.T) {
	chat := &chatServiceFake{answer: &domain.Answer{Text: "hold the button for 10 seconds", KnowledgeBase: "manuals", SessionID: "s1"}}
	handler := newTestHandler(routerFakes{chat: chat})
	res := doJSON(t, handler, http.MethodPost, "/v1/chat", map[string]string{
		"question":   "how do I reset",
		"session_id": "s1",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var answer domain.Answer
	if err := json.NewDecoder(res.Body).Decode(&answer); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(answer.Text, "hold the button") {
		t.Fatalf("unexpected answer text: %q", answer.Text)
	}
}

func TestChatInvalidInputMapsTo400(t *testing.T) {
	handler := newTestHandler(routerFakes{
		chat: &chatServiceFake{err: domain.WrapError(domain.ErrInvalidInput, "answer", errors.New("question is required"))},
	})
	res := doJSON(t, handler, http.MethodPost, "/v1/chat", map[string]string{"question": ""})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestClearSessionEndpoint(t *testing.T) {
	chat := &chatServiceFake{}
	handler := newTestHandler(routerFakes{chat: chat})
	res := doJSON(t, handler, http.MethodDelete, "/v1/sessions/s1", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if chat.clearedID != "s1" {
		t.Fatalf("expected session s1 cleared, got %q", chat.clearedID)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	res := doJSON(t, newTestHandler(routerFakes{}), http.MethodGet, "/v1/chat", nil)
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
