package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/opserr"
	"github.com/Hara602/opsclean/pkg/action"
)

// ReportTimeLayout is the timestamp suffix of persisted snapshot files.
const ReportTimeLayout = "20060102_150405"

// ReportFileName returns "<prefix>_<YYYYMMDD_HHMMSS>.json".
func ReportFileName(prefix string, at time.Time) string {
	return fmt.Sprintf("%s_%s.json", prefix, at.Format(ReportTimeLayout))
}

// WriteJSON persists a snapshot of the log as pretty-printed JSON under dir
// and returns the file path. An existing report is never overwritten; a
// second save in the same second gets a "_1" suffix. The log itself is never
// touched, whatever the outcome.
func (m *Monitor) WriteJSON(dir, prefix string) (string, error) {
	records := m.Snapshot()

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", cerr.Mark(cerr.Wrap(err, "marshal action log"), opserr.ErrSerialization)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", cerr.Wrapf(err, "create report dir %s", dir)
	}

	path, err := writeFileAtomic(filepath.Join(dir, ReportFileName(prefix, m.now())), data, 0o644)
	if err != nil {
		return "", err
	}

	m.logger.Info("Action log saved", zap.String("path", path), zap.Int("records", len(records)))
	return path, nil
}

// ReadJSON parses a file written by WriteJSON.
func ReadJSON(path string) ([]action.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerr.Wrapf(err, "read report %s", path)
	}
	var records []action.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, cerr.Mark(cerr.Wrapf(err, "decode report %s", path), opserr.ErrSerialization)
	}
	return records, nil
}

// maxNameAttempts bounds the "_N" suffixes tried when a report name is taken.
const maxNameAttempts = 1000

// writeFileAtomic writes data to a temp file in the target directory, fsyncs
// it, links it into place and fsyncs the directory. An existing file is never
// replaced: if path is taken, "_1", "_2", ... is inserted before the
// extension. It returns the path actually written.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (string, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".opsclean-tmp-*")
	if err != nil {
		return "", cerr.Wrap(err, "atomic write create tmp")
	}
	tmpPath := tmp.Name()
	// The temp name goes away whatever happens; on success the data lives on
	// under the linked name.
	defer os.Remove(tmpPath)

	closed := false
	defer func() {
		if !closed {
			tmp.Close()
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", cerr.Wrap(err, "atomic write")
	}
	if err := tmp.Chmod(perm); err != nil {
		return "", cerr.Wrap(err, "atomic write chmod")
	}
	if err := tmp.Sync(); err != nil {
		return "", cerr.Wrap(err, "atomic write fsync")
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return "", cerr.Wrap(err, "atomic write close")
	}

	final, err := linkNoClobber(tmpPath, path)
	if err != nil {
		return "", err
	}

	d, err := os.Open(dir)
	if err != nil {
		return "", cerr.Wrap(err, "fsync dir open")
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return "", cerr.Wrap(err, "fsync dir")
	}
	return final, nil
}

// linkNoClobber links src to path, or to the first free suffixed variant.
func linkNoClobber(src, path string) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	candidate := path
	for n := 1; n <= maxNameAttempts; n++ {
		err := os.Link(src, candidate)
		if err == nil {
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", cerr.Wrap(err, "atomic write link")
		}
		candidate = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	return "", cerr.Newf("atomic write: no free name for %s", path)
}
