// Package cleanup holds the individual cleanup operations. Each one runs on
// its own goroutine and reports every outcome, success or failure, through a
// monitor.Publisher.
package cleanup

import (
	"context"

	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/pkg/action"
)

// Step is one cleanup operation. The engine does not need to know what is
// behind it.
type Step interface {
	Name() string
	Run(ctx context.Context, pub monitor.Publisher) error
}

// Eraser securely deletes one file and publishes the outcome itself.
type Eraser interface {
	Erase(ctx context.Context, path string) error
}

// publish reports a and logs, rather than returns, a failure to do so: the
// step's own result is what the caller needs to see. Cancellation of ctx does
// not stop the report.
func publish(ctx context.Context, pub monitor.Publisher, log *zap.Logger, a action.Action) {
	if err := pub.Publish(context.WithoutCancel(ctx), a); err != nil {
		log.Warn("Failed to publish action", zap.Stringer("action", a), zap.Error(err))
	}
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
