package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/airlift"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace, so a broken
// handler surfaces through the normal error-reporting path instead of taking
// the whole queue down.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *airlift.Task, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("task handler panicked",
					slog.String("operation", t.Operation),
					slog.String("task_id", t.ID),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic in operation %s: %v", t.Operation, r)
			}
		}()
		return next(ctx)
	}
}
