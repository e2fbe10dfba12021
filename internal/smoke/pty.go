// SPDX-License-Identifier: MPL-2.0

package smoke

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/creack/pty"
)

// ptyDrainTimeout bounds how long output is read after the shell exits.
const ptyDrainTimeout = 250 * time.Millisecond

// runPTY runs command with sh -c attached to a pseudo-terminal, for tools
// that only print help when stdout is a terminal.
func runPTY(ctx context.Context, command string, env []string, dir string, out io.Writer) (int, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Env = env
	cmd.Dir = dir

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 40, Cols: 120})
	if err != nil {
		return 0, fmt.Errorf("starting test under a pseudo-terminal: %w", err)
	}
	defer func() { _ = ptmx.Close() }()

	copied := make(chan struct{})
	go func() {
		// Reading the master fails with EIO once the child side closes.
		_, _ = io.Copy(out, ptmx)
		close(copied)
	}()

	waitErr := cmd.Wait()
	drain := time.NewTimer(ptyDrainTimeout)
	defer drain.Stop()
	select {
	case <-copied:
	case <-drain.C:
		// A background child still holds the terminal open.
		_ = ptmx.Close()
		<-copied
	}

	if waitErr == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, fmt.Errorf("running test command: %w", waitErr)
}
