package eraser

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Hara602/opsclean/internal/monitor"
	"github.com/Hara602/opsclean/internal/opserr"
	"github.com/Hara602/opsclean/pkg/action"
)

type recorder struct {
	mu      sync.Mutex
	actions []action.Action
}

func (r *recorder) Publish(_ context.Context, a action.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions = append(r.actions, a)
	return nil
}

func (r *recorder) all() []action.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]action.Action(nil), r.actions...)
}

// tracingFile wraps a real file and records what every pass wrote.
type tracingFile struct {
	*os.File
	passes    [][]byte
	syncs     int
	failSync  int // 1-based sync call that fails; 0 never
	failWrite int // 1-based write call that fails; 0 never
	writes    int
}

func (f *tracingFile) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekStart {
		f.passes = append(f.passes, nil)
	}
	return f.File.Seek(offset, whence)
}

func (f *tracingFile) Write(p []byte) (int, error) {
	f.writes++
	if f.failWrite == f.writes {
		return 0, errors.New("disk on fire")
	}
	last := len(f.passes) - 1
	f.passes[last] = append(f.passes[last], p...)
	return f.File.Write(p)
}

func (f *tracingFile) Sync() error {
	f.syncs++
	if f.failSync == f.syncs {
		return errors.New("sync failed")
	}
	return f.File.Sync()
}

func writeFile(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensitive_data.txt")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("secret!"), size/7+1)[:size], 0o600))
	return path
}

func newTraced(t *testing.T, pub *recorder, tf **tracingFile, setup func(*tracingFile)) *Eraser {
	return New(pub, Options{
		Logger: zaptest.NewLogger(t),
		Open: func(path string) (File, error) {
			f, err := os.OpenFile(path, os.O_WRONLY, 0)
			if err != nil {
				return nil, err
			}
			*tf = &tracingFile{File: f}
			if setup != nil {
				setup(*tf)
			}
			return *tf, nil
		},
	})
}

func TestEraseFourFullPasses(t *testing.T) {
	const size = 10000
	path := writeFile(t, size)
	pub := &recorder{}
	var tf *tracingFile
	e := newTraced(t, pub, &tf, nil)

	require.NoError(t, e.Erase(context.Background(), path))

	require.Len(t, tf.passes, Passes)
	for i, written := range tf.passes {
		assert.Len(t, written, size, "pass %d", i+1)
	}
	for i, pattern := range Patterns {
		assert.Equal(t, bytes.Repeat([]byte{pattern}, size), tf.passes[i], "pattern pass %d", i+1)
	}
	random := tf.passes[Passes-1]
	assert.NotEqual(t, bytes.Repeat([]byte{0xAA}, size), random)
	assert.Equal(t, Passes, tf.syncs, "one sync per pass")

	assert.NoFileExists(t, path)
	assert.Equal(t, []action.Action{action.FileDeleted(path)}, pub.all())
}

func TestEraseRealFile(t *testing.T) {
	path := writeFile(t, 3*BufferSize+17)
	pub := &recorder{}
	e := New(pub, Options{Logger: zaptest.NewLogger(t)})

	require.NoError(t, e.Erase(context.Background(), path))
	assert.NoFileExists(t, path)
	assert.Equal(t, []action.Action{action.FileDeleted(path)}, pub.all())
}

func TestEraseEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	pub := &recorder{}
	var tf *tracingFile
	e := newTraced(t, pub, &tf, nil)

	require.NoError(t, e.Erase(context.Background(), path))
	assert.Len(t, tf.passes, Passes)
	assert.NoFileExists(t, path)
}

func TestEraseMissingFile(t *testing.T) {
	pub := &recorder{}
	e := New(pub, Options{Logger: zaptest.NewLogger(t)})

	err := e.Erase(context.Background(), "/does/not/exist")
	require.Error(t, err)
	assert.True(t, cerr.Is(err, opserr.ErrFileNotFound))

	got := pub.all()
	require.Len(t, got, 1)
	assert.Equal(t, action.KindError, got[0].Kind)
	assert.Contains(t, got[0].Detail, "/does/not/exist")
}

func TestEraseDirectoryIsNotAFile(t *testing.T) {
	pub := &recorder{}
	e := New(pub, Options{})

	err := e.Erase(context.Background(), t.TempDir())
	assert.True(t, cerr.Is(err, opserr.ErrFileNotFound))
	assert.Len(t, pub.all(), 1)
}

func TestEraseSyncFailureLeavesPartialFile(t *testing.T) {
	const size = 5000
	path := writeFile(t, size)
	pub := &recorder{}
	var tf *tracingFile
	e := newTraced(t, pub, &tf, func(f *tracingFile) { f.failSync = 2 })

	err := e.Erase(context.Background(), path)
	require.Error(t, err)

	phase, ok := opserr.PhaseOf(err)
	require.True(t, ok)
	assert.Equal(t, opserr.PhaseSync, phase)

	// The file survives, holding at least the first completed pass.
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Len(t, data, size)
	assert.NotContains(t, string(data), "secret!")

	got := pub.all()
	require.Len(t, got, 1)
	assert.True(t, got[0].IsError())
	assert.Contains(t, got[0].Detail, "sync")
}

func TestEraseWriteFailure(t *testing.T) {
	path := writeFile(t, 100)
	pub := &recorder{}
	var tf *tracingFile
	e := newTraced(t, pub, &tf, func(f *tracingFile) { f.failWrite = 1 })

	err := e.Erase(context.Background(), path)
	phase, ok := opserr.PhaseOf(err)
	require.True(t, ok)
	// Short chunks sit in the bufio buffer, so the first real write happens on flush.
	assert.Contains(t, []opserr.Phase{opserr.PhaseWrite, opserr.PhaseFlush}, phase)
	assert.FileExists(t, path)
	assert.Len(t, pub.all(), 1)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestEraseRandomSourceFailure(t *testing.T) {
	path := writeFile(t, 10)
	pub := &recorder{}
	e := New(pub, Options{})
	e.random = failingReader{}

	err := e.Erase(context.Background(), path)
	phase, ok := opserr.PhaseOf(err)
	require.True(t, ok)
	assert.Equal(t, opserr.PhaseRandom, phase)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 10), data, "three pattern passes completed")
}

func TestEraseUnlinkFailure(t *testing.T) {
	path := writeFile(t, 10)
	pub := &recorder{}
	e := New(pub, Options{Remove: func(string) error { return os.ErrPermission }})

	err := e.Erase(context.Background(), path)
	phase, ok := opserr.PhaseOf(err)
	require.True(t, ok)
	assert.Equal(t, opserr.PhaseUnlink, phase)
	assert.True(t, cerr.Is(err, os.ErrPermission))
	assert.Len(t, pub.all(), 1)
}

func TestEraseCancelled(t *testing.T) {
	path := writeFile(t, 10)
	pub := &recorder{}
	e := New(pub, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Erase(ctx, path)
	assert.True(t, cerr.Is(err, context.Canceled))
	assert.FileExists(t, path)
}

func TestEraseRecordsDeletionInMonitor(t *testing.T) {
	const size = 10000
	path := writeFile(t, size)
	mon := monitor.New(monitor.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, mon.Start())
	e := New(mon, Options{Logger: zaptest.NewLogger(t)})

	require.NoError(t, e.Erase(context.Background(), path))
	mon.Close()

	assert.NoFileExists(t, path)
	records := mon.Snapshot()
	require.Len(t, records, 1)
	assert.Equal(t, action.FileDeleted(path), records[0].Action)
}

func TestEraseCancelledStillRecordsError(t *testing.T) {
	for i := 0; i < 100; i++ {
		path := writeFile(t, 10)
		mon := monitor.New(monitor.Options{})
		require.NoError(t, mon.Start())
		e := New(mon, Options{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.Error(t, e.Erase(ctx, path))
		mon.Close()

		records := mon.Snapshot()
		require.Len(t, records, 1, "iteration %d", i)
		assert.True(t, records[0].Action.IsError())
		assert.Contains(t, records[0].Action.Detail, path)
	}
}
