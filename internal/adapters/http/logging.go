package http

import (
	"context"
	"log/slog"
	"net/http"
)

func logHTTPOperationError(ctx context.Context, logger *slog.Logger, operation string, status int, err error) {
	level := slog.LevelWarn
	outcome := "rejected"
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
		outcome = "failure"
	}
	logger.Log(ctx, level, "http operation failed",
		"module", "http",
		"layer", "adapter",
		"operation", operation,
		"outcome", outcome,
		"status", status,
		"request_id", requestIDFromContext(ctx),
		"error", err,
	)
}
