package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/Pond500/rag-mcp/internal/adapters/mcp"
	"github.com/Pond500/rag-mcp/internal/bootstrap"
	"github.com/Pond500/rag-mcp/internal/config"
	"github.com/Pond500/rag-mcp/internal/observability/logging"
)

func main() {
	cfg := config.Load()
	// stdout carries the MCP stream; all logging goes to stderr.
	logger := logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.RoleMCP, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	srv := mcpadapter.NewServer(app.SearchSvc, app.RouteUC, app.KBUC, cfg.RAGTopK, logger)

	logger.Info("mcp server serving on stdio")
	if err := srv.ServeStdio(); err != nil {
		logger.Error("mcp server failed", "error", err)
		os.Exit(1)
	}
}
