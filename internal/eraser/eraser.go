// Package eraser overwrites a file in fixed passes and then unlinks it.
//
// The passes are 0x00, 0xFF, 0xAA and a final pass of bytes from crypto/rand.
// Every pass is flushed and fsynced before the next one starts. Erasure is not
// atomic: if any step fails the file is left in whatever state it reached and
// the error says which phase broke. Nothing is retried.
//
// Two concurrent erasures of the same path are not supported; callers
// serialize per path.
package eraser

import (
	"bufio"
	"context"
	"crypto/rand"
	"io"
	"io/fs"
	"os"

	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/internal/opserr"
	"github.com/Hara602/opsclean/pkg/action"
)

// BufferSize is the size of the reused overwrite buffer.
const BufferSize = 4096

// Patterns are the deterministic fill bytes, in pass order.
var Patterns = [...]byte{0x00, 0xFF, 0xAA}

// Passes is the total number of overwrite passes, random pass included.
const Passes = len(Patterns) + 1

// File is what the eraser needs from an open file. *os.File satisfies it.
type File interface {
	io.Writer
	io.Seeker
	Sync() error
	Close() error
}

type Options struct {
	Logger *zap.Logger
	Tracer trace.Tracer
	// Open opens path for writing without truncation. Defaults to os.OpenFile.
	Open func(path string) (File, error)
	// Remove unlinks path. Defaults to os.Remove.
	Remove func(path string) error
}

type Eraser struct {
	pub    monitor.Publisher
	logger *zap.Logger
	tracer trace.Tracer
	open   func(path string) (File, error)
	remove func(path string) error
	random io.Reader
}

func New(pub monitor.Publisher, opts Options) *Eraser {
	e := &Eraser{
		pub:    pub,
		logger: opts.Logger,
		tracer: opts.Tracer,
		open:   opts.Open,
		remove: opts.Remove,
		random: rand.Reader,
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("eraser")
	if e.tracer == nil {
		e.tracer = noop.NewTracerProvider().Tracer("eraser")
	}
	if e.open == nil {
		e.open = openFile
	}
	if e.remove == nil {
		e.remove = os.Remove
	}
	return e
}

func openFile(path string) (File, error) {
	return os.OpenFile(path, os.O_WRONLY, 0)
}

// Erase destroys the contents of path and removes it. The outcome is both
// returned and published: FileDeleted on success, one Error action otherwise.
func (e *Eraser) Erase(ctx context.Context, path string) (err error) {
	ctx, span := e.tracer.Start(ctx, "eraser.Erase", trace.WithAttributes(attribute.String("path", path)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := e.logger.With(zap.String("path", path))
	log.Info("Initiating secure deletion")

	// The outcome is recorded even when ctx is what stopped the erase.
	pubCtx := context.WithoutCancel(ctx)

	if err := e.erase(ctx, path, log); err != nil {
		log.Error("Secure deletion failed", zap.Error(err))
		if pubErr := e.pub.Publish(pubCtx, action.Errorf("secure delete %s: %v", path, err)); pubErr != nil {
			log.Warn("Failed to publish error action", zap.Error(pubErr))
		}
		return err
	}

	log.Info("File securely deleted")
	if err := e.pub.Publish(pubCtx, action.FileDeleted(path)); err != nil {
		return cerr.Wrapf(err, "publish deletion of %s", path)
	}
	return nil
}

func (e *Eraser) erase(ctx context.Context, path string, log *zap.Logger) error {
	info, err := os.Lstat(path)
	if err != nil {
		if cerr.Is(err, fs.ErrNotExist) {
			return opserr.NotFound(path)
		}
		return opserr.NewIOError(opserr.PhaseMetadata, path, err)
	}
	if !info.Mode().IsRegular() {
		return opserr.NotFound(path)
	}
	size := info.Size()

	f, err := e.open(path)
	if err != nil {
		if cerr.Is(err, fs.ErrNotExist) {
			return opserr.NotFound(path)
		}
		return opserr.NewIOError(opserr.PhaseOpen, path, err)
	}
	closed := false
	defer func() {
		if !closed {
			f.Close()
		}
	}()

	buf := make([]byte, BufferSize)
	w := bufio.NewWriterSize(f, BufferSize)

	for i, pattern := range Patterns {
		log.Debug("Starting overwrite pass", zap.Int("pass", i+1), zap.Uint8("pattern", pattern))
		fill(buf, pattern)
		if err := e.pass(ctx, f, w, buf, path, size, nil); err != nil {
			return err
		}
	}

	log.Debug("Starting final random overwrite pass", zap.Int("pass", Passes))
	if err := e.pass(ctx, f, w, buf, path, size, e.random); err != nil {
		return err
	}

	closed = true
	if err := f.Close(); err != nil {
		return opserr.NewIOError(opserr.PhaseClose, path, err)
	}
	if err := e.remove(path); err != nil {
		return opserr.NewIOError(opserr.PhaseUnlink, path, err)
	}
	return nil
}

// pass overwrites the first size bytes of f. With a nil src the buffer
// contents are written as-is; otherwise every chunk is refilled from src.
func (e *Eraser) pass(ctx context.Context, f File, w *bufio.Writer, buf []byte, path string, size int64, src io.Reader) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return opserr.NewIOError(opserr.PhaseSeek, path, err)
	}
	w.Reset(f)

	for written := int64(0); written < size; {
		if err := ctx.Err(); err != nil {
			return cerr.Wrapf(err, "overwrite of %s interrupted", path)
		}
		n := int64(len(buf))
		if rest := size - written; rest < n {
			n = rest
		}
		chunk := buf[:n]
		if src != nil {
			if _, err := io.ReadFull(src, chunk); err != nil {
				return opserr.NewIOError(opserr.PhaseRandom, path, err)
			}
		}
		if _, err := w.Write(chunk); err != nil {
			return opserr.NewIOError(opserr.PhaseWrite, path, err)
		}
		written += n
	}

	if err := w.Flush(); err != nil {
		return opserr.NewIOError(opserr.PhaseFlush, path, err)
	}
	if err := f.Sync(); err != nil {
		return opserr.NewIOError(opserr.PhaseSync, path, err)
	}
	return nil
}

func fill(buf []byte, b byte) {
	for i := range buf {
		buf[i] = b
	}
}
