// Package runner executes external conversion tools with output capture and
// a hard timeout. Timeout expiry force-kills the child; there is no
// cooperative cancellation.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	u "omniconvert/internal/utils"
)

// DefaultTimeout applies when a caller passes a non-positive timeout.
const DefaultTimeout = 5 * time.Minute

// MaxTimeout caps per-call overrides; video jobs use the ceiling.
const MaxTimeout = 10 * time.Minute

// Result carries the captured output of one finished process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ToolError is returned when a tool exits non-zero or cannot be spawned.
// It carries the tool identity so the route layer can generate install
// hints without parsing free-form error text.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = fmt.Sprintf("exit code %d", e.ExitCode)
	}
	return fmt.Sprintf("%s failed: %s", e.Tool, msg)
}

func (e *ToolError) Unwrap() error { return e.Err }

// ErrTimeout is wrapped into the ToolError when the deadline kills the child.
var ErrTimeout = errors.New("process timed out")

// Run spawns path with args, streaming stdout/stderr into buffers, and waits
// up to timeout before force-killing. The tool name is only used for logs and
// error reporting. A non-zero exit is NOT an error at this level; callers
// inspect Result.ExitCode because some tools (qpdf) use warning exit codes.
func Run(ctx context.Context, tool, path string, args []string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode(cmd, err)}

	if ctx.Err() == context.DeadlineExceeded {
		u.Warn("External tool timed out", "tool", tool, "timeout", timeout.String())
		return res, &ToolError{Tool: tool, ExitCode: res.ExitCode, Stderr: res.Stderr, Err: ErrTimeout}
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Spawn-level failure: binary missing, permission denied.
			return res, &ToolError{Tool: tool, ExitCode: -1, Err: err}
		}
	}

	if res.ExitCode != 0 {
		u.Warn("External tool exited non-zero",
			"tool", tool,
			"exit_code", res.ExitCode,
			"args", truncateArgs(args),
		)
	}
	return res, nil
}

// exitCode normalizes abnormal termination (no exit code) to 1.
func exitCode(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState == nil {
		if err != nil {
			return -1
		}
		return 1
	}
	code := cmd.ProcessState.ExitCode()
	if code < 0 {
		return 1
	}
	return code
}

// truncateArgs keeps logs readable and avoids dumping long file paths.
func truncateArgs(args []string) string {
	joined := strings.Join(args, " ")
	if len(joined) > 200 {
		return joined[:200] + "..."
	}
	return joined
}
