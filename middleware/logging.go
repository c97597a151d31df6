package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/airlift"
)

// Logging returns middleware that logs task start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *airlift.Task, next Handler) error {
		logger.Info("task started",
			slog.String("operation", t.Operation),
			slog.String("task_id", t.ID),
			slog.String("queue", t.Queue),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("task failed",
				slog.String("operation", t.Operation),
				slog.String("task_id", t.ID),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("task completed",
				slog.String("operation", t.Operation),
				slog.String("task_id", t.ID),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
