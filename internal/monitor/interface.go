package monitor

import (
	"context"

	"github.com/Hara602/opsclean/pkg/action"
)

// Publisher is the only thing a cleanup operation needs to report its outcome.
// The core does not care what kind of work sits behind a producer.
type Publisher interface {
	Publish(ctx context.Context, a action.Action) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, a action.Action) error

func (f PublisherFunc) Publish(ctx context.Context, a action.Action) error { return f(ctx, a) }
