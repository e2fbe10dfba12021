// SPDX-License-Identifier: MPL-2.0

package smoke

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/jadnohra/tapkit/internal/keg"
	"github.com/jadnohra/tapkit/pkg/formula"
)

// DefaultTimeout bounds a smoke test when no WithTimeout option is given.
const DefaultTimeout = 30 * time.Second

// maxReportedOutput caps the output quoted in a FailureError.
const maxReportedOutput = 2048

// ErrSmokeTestFailed is wrapped by every FailureError.
var ErrSmokeTestFailed = errors.New("smoke test failed")

type (
	// Runner executes smoke tests.
	Runner struct {
		timeout time.Duration
		echo    io.Writer
	}

	// Option configures a Runner.
	Option func(*Runner)

	// Result describes a completed smoke test run.
	Result struct {
		Command  string
		ExitCode int
		Output   string
		Duration time.Duration
	}

	// FailureError reports a smoke test whose exit code or output did not
	// meet expectations.
	FailureError struct {
		Name         string
		Command      string
		ExitCode     int
		WantExitCode int
		Match        string
		Output       string
		TimedOut     bool
	}
)

func (e *FailureError) Error() string {
	var reason string
	switch {
	case e.TimedOut:
		reason = "timed out"
	case e.ExitCode != e.WantExitCode:
		reason = fmt.Sprintf("exited with status %d, want %d", e.ExitCode, e.WantExitCode)
	default:
		reason = fmt.Sprintf("output does not contain %q", e.Match)
	}
	msg := fmt.Sprintf("%s: test command %s %s", e.Name, e.Command, reason)
	if out := strings.TrimSpace(e.Output); out != "" {
		if len(out) > maxReportedOutput {
			out = out[:maxReportedOutput] + "..."
		}
		msg += "\noutput:\n" + out
	}
	return msg
}

// Unwrap returns ErrSmokeTestFailed.
func (e *FailureError) Unwrap() error { return ErrSmokeTestFailed }

// WithTimeout limits how long a test may run. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

// WithEcho copies the test's output to w as it runs.
func WithEcho(w io.Writer) Option {
	return func(r *Runner) { r.echo = w }
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the smoke test of f against k. The test passes when the exit
// code equals the expected one and the combined stdout and stderr contain
// the expected text. A failing test returns its Result together with a
// *FailureError.
func (r *Runner) Run(ctx context.Context, f *formula.Formula, k keg.Keg) (*Result, error) {
	test := f.SmokeTest()

	home, err := os.MkdirTemp("", "tapkit-test-"+f.Name+"-")
	if err != nil {
		return nil, fmt.Errorf("creating test home: %w", err)
	}
	defer func() { _ = os.RemoveAll(home) }()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	env := testEnv(k, home)
	slog.Debug("running smoke test", "formula", f.Name, "command", test.Command, "tty", test.TTY)

	var buf bytes.Buffer
	var out io.Writer = &buf
	if r.echo != nil {
		out = io.MultiWriter(&buf, r.echo)
	}

	start := time.Now()
	var code int
	if test.TTY {
		code, err = runPTY(ctx, test.Command, env, home, out)
	} else {
		code, err = runInterp(ctx, test.Command, env, home, out)
	}
	res := &Result{Command: test.Command, ExitCode: code, Output: buf.String(), Duration: time.Since(start)}
	if err != nil {
		return res, err
	}

	fail := &FailureError{
		Name:         f.Name,
		Command:      test.Command,
		ExitCode:     code,
		WantExitCode: test.ExitCode,
		Match:        test.Match,
		Output:       res.Output,
		TimedOut:     errors.Is(ctx.Err(), context.DeadlineExceeded),
	}
	if fail.TimedOut || code != test.ExitCode || !strings.Contains(res.Output, test.Match) {
		return res, fail
	}

	slog.Debug("smoke test passed", "formula", f.Name, "duration", res.Duration)
	return res, nil
}

// testEnv gives the test a clean HOME, the keg's bin directory first on
// PATH, and BIN and PREFIX pointing into the keg.
func testEnv(k keg.Keg, home string) []string {
	env := []string{
		"BIN=" + k.BinDir(),
		"PREFIX=" + k.Path,
		"HOME=" + home,
		"TMPDIR=" + home,
		"PATH=" + k.BinDir() + string(os.PathListSeparator) + os.Getenv("PATH"),
		"LC_ALL=C",
		"TERM=xterm",
	}
	for _, name := range []string{"SYSTEMROOT", "USER", "LOGNAME"} {
		if v, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+v)
		}
	}
	return env
}

// runInterp runs command in the embedded shell and returns its exit status.
// Only setup problems are returned as errors.
func runInterp(ctx context.Context, command string, env []string, dir string, out io.Writer) (int, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(command), "test")
	if err != nil {
		return 0, fmt.Errorf("parsing test command: %w", err)
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, out, out),
	)
	if err != nil {
		return 0, fmt.Errorf("creating interpreter: %w", err)
	}

	err = runner.Run(ctx, prog)
	if err == nil {
		return 0, nil
	}
	var status interp.ExitStatus
	if errors.As(err, &status) {
		return int(status), nil
	}
	if ctx.Err() != nil {
		return -1, nil
	}
	return 0, fmt.Errorf("running test command: %w", err)
}
