package nats

import (
	"context"
	"errors"

	"github.com/Pond500/rag-mcp/internal/core/domain"
	"github.com/Pond500/rag-mcp/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

// classifyNATSError marks connection-level faults retryable so a publish of a
// document-ingested event survives a broker restart. Caller cancellation is
// neither retried nor counted against the breaker.
func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}

	retryable := resilience.IsCircuitOpen(err) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected)

	return resilience.ErrorClassification{
		Retryable:     retryable,
		RecordFailure: true,
	}
}

// wrapTemporaryIfNeeded maps transient publish failures onto ErrTemporary so
// the HTTP layer answers 503 and the client can re-submit the upload.
func wrapTemporaryIfNeeded(err error) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifyNATSError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, "nats publish", err)
	}
	return err
}
