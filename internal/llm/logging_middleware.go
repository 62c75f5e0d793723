package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	llmerrors "github.com/ahrav/go-scriptbench/internal/llm/errors"
	"github.com/ahrav/go-scriptbench/internal/llm/transport"
)

// NewLoggingMiddleware logs the lifecycle of every query with latency and
// attempts. Stages log unit outcomes, so success stays at Debug here.
// Prompt text is never logged.
func NewLoggingMiddleware(logger *slog.Logger) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "llm")

	return func(next transport.Handler) transport.Handler {
		return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
			requestID := uuid.NewString()
			fields := []any{
				"request_id", requestID,
				"provider", req.Provider(),
				"model", req.Model.ID,
				"model_name", req.Model.ModelName,
				"prompt_chars", len(req.Prompt),
			}
			logger.DebugContext(ctx, "query started", fields...)

			start := time.Now()
			resp, err := next.Handle(ctx, req)
			fields = append(fields,
				"latency_ms", time.Since(start).Milliseconds(),
				"attempts", req.Attempts,
			)

			if err != nil {
				kind := llmerrors.Classify(err)
				logger.InfoContext(ctx, "query failed",
					append(fields, "error_kind", kind, "retryable", kind.Retryable(), "error", err)...)
				return nil, err
			}

			logger.DebugContext(ctx, "query succeeded", append(fields, "response_chars", len(resp.Text))...)
			return resp, nil
		})
	}
}
