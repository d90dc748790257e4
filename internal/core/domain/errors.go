package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound      = errors.New("document not found")
	ErrKnowledgeBaseNotFound = errors.New("knowledge base not found")
	ErrKnowledgeBaseExists   = errors.New("knowledge base already exists")
	ErrInvalidInput          = errors.New("invalid input")
	ErrTemporary             = errors.New("temporary failure")

	// Per-tier extraction failures. Recovered locally by the extraction
	// controller; only ErrAllTiersExhausted reaches callers.
	ErrTierUnavailable   = errors.New("extraction tier unavailable")
	ErrRateLimited       = errors.New("extraction tier rate limited")
	ErrExtractionEmpty   = errors.New("extraction produced no text")
	ErrAllTiersExhausted = errors.New("all extraction tiers failed")

	ErrSearchBackend = errors.New("search backend unavailable")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
