package cleanup

import (
	"context"
	"os"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/pkg/action"
)

// Timestamps sets access and modification times of Files to a single instant.
type Timestamps struct {
	Files []string
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
}

func (s *Timestamps) Name() string { return "timestamps" }

func (s *Timestamps) Run(ctx context.Context, pub monitor.Publisher) error {
	log := nopIfNil(s.Logger).Named(s.Name())
	log.Info("Updating file timestamps...", zap.Int("files", len(s.Files)))

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	at := now()

	var result error
	for _, f := range s.Files {
		if _, err := os.Stat(f); err != nil {
			err = cerr.Wrapf(err, "file not found: %s", f)
			publish(ctx, pub, log, action.Errorf("Failed to update timestamp for %s: %v", f, err))
			result = multierror.Append(result, err)
			continue
		}
		if err := os.Chtimes(f, at, at); err != nil {
			publish(ctx, pub, log, action.Errorf("Failed to update timestamp for %s: %v", f, err))
			result = multierror.Append(result, cerr.Wrapf(err, "chtimes %s", f))
			continue
		}
		log.Debug("Updated timestamp", zap.String("file", f))
		publish(ctx, pub, log, action.TimestampUpdated(f))
	}
	return result
}
