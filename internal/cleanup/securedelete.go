package cleanup

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/monitor"
)

// SecureDelete erases each listed file concurrently. Paths are cleaned and
// de-duplicated first so the same file is never erased twice at once.
type SecureDelete struct {
	Paths  []string
	Eraser Eraser
	Logger *zap.Logger
}

func (s *SecureDelete) Name() string { return "secure-delete" }

func (s *SecureDelete) Run(ctx context.Context, _ monitor.Publisher) error {
	log := nopIfNil(s.Logger).Named(s.Name())
	paths := uniquePaths(s.Paths)
	log.Info("Securely deleting files", zap.Int("files", len(paths)))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result error
	)
	for _, p := range paths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			if err := s.Eraser.Erase(ctx, p); err != nil {
				mu.Lock()
				result = multierror.Append(result, err)
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	return result
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]bool, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		key := filepath.Clean(p)
		if abs, err := filepath.Abs(key); err == nil {
			key = abs
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
