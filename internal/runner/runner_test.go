package runner

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("test relies on POSIX shell utilities")
	}
}

func TestRun_CapturesStdoutAndExitZero(t *testing.T) {
	skipOnWindows(t)
	res, err := Run(context.Background(), "echo", "/bin/echo", []string{"hello"}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "hello")
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	skipOnWindows(t)
	res, err := Run(context.Background(), "false", "/bin/false", nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}

func TestRun_SpawnErrorReturnsToolError(t *testing.T) {
	_, err := Run(context.Background(), "ghost", "/no/such/binary", nil, time.Second)
	require.Error(t, err)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "ghost", te.Tool)
	assert.Equal(t, -1, te.ExitCode)
}

func TestRun_TimeoutKillsProcess(t *testing.T) {
	skipOnWindows(t)
	start := time.Now()
	_, err := Run(context.Background(), "sleep", "/bin/sleep", []string{"30"}, 200*time.Millisecond)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestToolError_MessageUsesStderr(t *testing.T) {
	e := &ToolError{Tool: "gs", ExitCode: 1, Stderr: "invalid file\n"}
	assert.Equal(t, "gs failed: invalid file", e.Error())

	empty := &ToolError{Tool: "qpdf", ExitCode: 2}
	assert.Equal(t, "qpdf failed: exit code 2", empty.Error())
}

func TestTruncateArgs(t *testing.T) {
	long := make([]string, 50)
	for i := range long {
		long[i] = "/some/very/long/path/segment"
	}
	out := truncateArgs(long)
	assert.LessOrEqual(t, len(out), 203)
	assert.Contains(t, out, "...")
}
