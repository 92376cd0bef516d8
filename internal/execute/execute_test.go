package execute

import (
	"context"
	"os/exec"
	"testing"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func requireProgram(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestRunSuccessCapturesOutput(t *testing.T) {
	requireProgram(t, "sh")
	r := NewCommandRunner(Options{Logger: zaptest.NewLogger(t)})

	res, err := r.Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Zero(t, res.ExitCode)
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	requireProgram(t, "sh")
	r := NewCommandRunner(Options{})

	res, err := r.Run(context.Background(), "sh", "-c", "echo nope >&2; exit 3")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "nope\n", res.Stderr)
}

func TestRunMissingProgram(t *testing.T) {
	r := NewCommandRunner(Options{})
	_, err := r.Run(context.Background(), "definitely-not-a-real-program-xyz")
	require.Error(t, err)
	assert.True(t, cerr.Is(err, exec.ErrNotFound))
}

func TestRunTimeout(t *testing.T) {
	requireProgram(t, "sleep")
	r := NewCommandRunner(Options{Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := r.Run(context.Background(), "sleep", "5")
	require.Error(t, err)
	assert.True(t, cerr.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestRunDryRun(t *testing.T) {
	r := NewCommandRunner(Options{DryRun: true})
	res, err := r.Run(context.Background(), "iptables", "-F")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestBuildCommandString(t *testing.T) {
	assert.Equal(t, "iptables -F", buildCommandString("iptables", "-F"))
	assert.Equal(t, "true", buildCommandString("true"))
}
