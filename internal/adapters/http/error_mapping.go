package httpadapter

import (
	"net/http"

	"github.com/Pond500/rag-mcp/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrKnowledgeBaseNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrKnowledgeBaseExists):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrSearchBackend):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
