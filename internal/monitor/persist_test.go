package monitor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Hara602/opsclean/internal/opserr"
	"github.com/Hara602/opsclean/pkg/action"
)

func TestWriteJSONRoundTrip(t *testing.T) {
	m := New(Options{Capacity: 8, Logger: zaptest.NewLogger(t)})
	require.NoError(t, m.Start())
	ctx := context.Background()

	for _, a := range []action.Action{
		action.FileDeleted("/tmp/a"),
		action.BashHistoryCleared(),
		action.Error("iptables: permission denied"),
		action.NetworkTraceRemoved("dns cache flushed"),
	} {
		require.NoError(t, m.Publish(ctx, a))
	}
	m.Close()

	dir := filepath.Join(t.TempDir(), "reports", "json")
	before := m.Snapshot()

	path, err := m.WriteJSON(dir, "cleanup_actions")
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Regexp(t, `cleanup_actions_\d{8}_\d{6}\.json$`, filepath.Base(path))

	after, err := ReadJSON(path)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Action, after[i].Action)
		assert.True(t, before[i].Timestamp.Equal(after[i].Timestamp))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteJSONEmptyLog(t *testing.T) {
	m := New(Options{})
	path, err := m.WriteJSON(t.TempDir(), "empty")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestWriteJSONFailureLeavesLogIntact(t *testing.T) {
	m := New(Options{Capacity: 2})
	require.NoError(t, m.Publish(context.Background(), action.FileDeleted("a")))
	m.Close()

	// A regular file where the directory should be.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := m.WriteJSON(filepath.Join(blocker, "reports"), "x")
	require.Error(t, err)
	assert.Len(t, m.Snapshot(), 1)
}

func TestWriteJSONSameSecondKeepsBoth(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	m := New(Options{Capacity: 4, Now: func() time.Time { return at }})
	require.NoError(t, m.Start())
	dir := t.TempDir()

	require.NoError(t, m.Publish(context.Background(), action.FileDeleted("first")))
	require.Eventually(t, func() bool { return m.Len() == 1 }, time.Second, time.Millisecond)
	first, err := m.WriteJSON(dir, "run")
	require.NoError(t, err)

	require.NoError(t, m.Publish(context.Background(), action.FileDeleted("second")))
	m.Close()
	second, err := m.WriteJSON(dir, "run")
	require.NoError(t, err)

	assert.Equal(t, "run_20240115_103000.json", filepath.Base(first))
	assert.Equal(t, "run_20240115_103000_1.json", filepath.Base(second))

	older, err := ReadJSON(first)
	require.NoError(t, err)
	assert.Len(t, older, 1)
	newer, err := ReadJSON(second)
	require.NoError(t, err)
	assert.Len(t, newer, 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestReadJSONMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"timestamp":"now","action":{"Nope":1}}]`), 0o644))

	_, err := ReadJSON(path)
	require.Error(t, err)
	assert.True(t, cerr.Is(err, opserr.ErrSerialization))
}

func TestReportFileName(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	assert.Equal(t, "run_20240309_070501.json", ReportFileName("run", at))
}
