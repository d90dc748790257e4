package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Pond500/rag-mcp/internal/core/ports"
	"github.com/Pond500/rag-mcp/internal/observability/metrics"
)

// Options tunes the transport layer; zero values disable the optional gates.
type Options struct {
	RateLimitRPS   float64
	RateLimitBurst int
	MaxInFlight    int
	DefaultTopK    int
}

type Router struct {
	ingestor ports.DocumentIngestor
	docs     ports.DocumentReader
	kbs      ports.KnowledgeBaseManager
	search   ports.SearchService
	routes   ports.RouteService
	chat     ports.ChatService

	metrics *metrics.HTTPServerMetrics
	opts    Options
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	docs ports.DocumentReader,
	kbs ports.KnowledgeBaseManager,
	search ports.SearchService,
	routes ports.RouteService,
	chat ports.ChatService,
	serverMetrics *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	return &Router{
		ingestor: ingestor,
		docs:     docs,
		kbs:      kbs,
		search:   search,
		routes:   routes,
		chat:     chat,
		metrics:  serverMetrics,
		opts:     opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/kb", rt.knowledgeBases)
	mux.HandleFunc("/v1/kb/", rt.knowledgeBaseByName)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/search", rt.searchKnowledgeBase)
	mux.HandleFunc("/v1/route", rt.routeQuery)
	mux.HandleFunc("/v1/chat", rt.answerChat)
	mux.HandleFunc("/v1/sessions/", rt.clearSession)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.opts.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.opts.MaxInFlight, 100*time.Millisecond)
	}
	if rt.opts.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) knowledgeBases(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Category    string `json:"category"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
			return
		}
		descriptor, err := rt.kbs.Create(r.Context(), req.Name, req.Description, req.Category)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, descriptor)
	case http.MethodGet:
		descriptors, err := rt.kbs.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"knowledge_bases": descriptors})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
	}
}

func (rt *Router) knowledgeBaseByName(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/kb/")
	name, sub, _ := strings.Cut(rest, "/")
	if name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("knowledge base name is required"))
		return
	}

	switch {
	case sub == "documents" && r.Method == http.MethodGet:
		docs, err := rt.docs.ListByKnowledgeBase(r.Context(), name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
	case sub == "" && r.Method == http.MethodGet:
		descriptor, err := rt.kbs.Get(r.Context(), name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, descriptor)
	case sub == "" && r.Method == http.MethodDelete:
		if err := rt.kbs.Delete(r.Context(), name); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "name": name})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	kb := r.FormValue("kb")
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("multipart field 'file' is required"))
		return
	}
	defer file.Close()

	doc, err := rt.ingestor.Upload(
		r.Context(),
		kb,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("document id is required"))
		return
	}

	doc, err := rt.docs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) searchKnowledgeBase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	var req struct {
		KnowledgeBase string `json:"knowledge_base"`
		Query         string `json:"query"`
		TopK          int    `json:"top_k"`
		Rerank        bool   `json:"rerank"`
		Dedup         *bool  `json:"dedup"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if strings.TrimSpace(req.KnowledgeBase) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("knowledge_base is required"))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query is required"))
		return
	}

	opts := ports.SearchOptions{
		TopK:        req.TopK,
		UseRerank:   req.Rerank,
		Deduplicate: req.Dedup == nil || *req.Dedup,
	}
	if opts.TopK <= 0 {
		opts.TopK = rt.opts.DefaultTopK
	}

	start := time.Now()
	results, err := rt.search.Search(r.Context(), req.KnowledgeBase, req.Query, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordSearchObservation("api", "/v1/search", len(results.Hits), len(results.Notes) > 0, time.Since(start))
	}
	writeJSON(w, http.StatusOK, results)
}

func (rt *Router) routeQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	decision, err := rt.routes.Route(r.Context(), req.Query)
	if err != nil {
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRouteDecision("api", decision.Matched)
	}
	writeJSON(w, http.StatusOK, decision)
}

func (rt *Router) answerChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	var req struct {
		KnowledgeBase string `json:"knowledge_base"`
		SessionID     string `json:"session_id"`
		Question      string `json:"question"`
		TopK          int    `json:"top_k"`
		Rerank        bool   `json:"rerank"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}

	opts := ports.SearchOptions{
		TopK:        req.TopK,
		UseRerank:   req.Rerank,
		Deduplicate: true,
	}
	if opts.TopK <= 0 {
		opts.TopK = rt.opts.DefaultTopK
	}

	answer, err := rt.chat.Answer(r.Context(), req.KnowledgeBase, req.SessionID, req.Question, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) clearSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("method not allowed"))
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("session id is required"))
		return
	}

	if err := rt.chat.ClearSession(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared", "session_id": id})
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), errorBody(err.Error()))
}

func errorBody(message string) map[string]string {
	return map[string]string{"error": message}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
