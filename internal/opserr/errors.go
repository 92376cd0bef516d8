// Package opserr holds the error kinds shared by the monitor, the eraser and
// snapshot persistence.
package opserr

import (
	"fmt"

	cerr "github.com/cockroachdb/errors"
)

var (
	ErrFileNotFound   = cerr.New("file not found")
	ErrChannelClosed  = cerr.New("action bus closed")
	ErrTimeoutExpired = cerr.New("wait expired")
	ErrSerialization  = cerr.New("snapshot serialization failed")
	ErrAlreadyStarted = cerr.New("monitor already started")
	ErrWaiterBusy     = cerr.New("another caller is already waiting for an action")
)

// Phase identifies the step of a file operation that failed.
type Phase string

const (
	PhaseMetadata Phase = "metadata"
	PhaseOpen     Phase = "open"
	PhaseSeek     Phase = "seek"
	PhaseWrite    Phase = "write"
	PhaseRandom   Phase = "random"
	PhaseFlush    Phase = "flush"
	PhaseSync     Phase = "sync"
	PhaseClose    Phase = "close"
	PhaseUnlink   Phase = "unlink"
)

// IOError is an I/O failure tagged with the phase it happened in.
type IOError struct {
	Phase Phase
	Path  string
	Err   error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Phase, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NewIOError wraps err with its phase and a stack trace.
func NewIOError(phase Phase, path string, err error) error {
	return cerr.WithStack(&IOError{Phase: phase, Path: path, Err: err})
}

// PhaseOf returns the phase of the first IOError in err's chain.
func PhaseOf(err error) (Phase, bool) {
	var ioErr *IOError
	if cerr.As(err, &ioErr) {
		return ioErr.Phase, true
	}
	return "", false
}

// NotFound marks a missing-path failure so errors.Is(err, ErrFileNotFound) holds.
func NotFound(path string) error {
	return cerr.WithHint(
		cerr.Wrapf(ErrFileNotFound, "%s", path),
		"the path must name an existing regular file",
	)
}
