// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"io"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/exec"

	"github.com/jadnohra/tapkit/internal/testutil"
)

// checkTestcontainersAvailable reports whether a Docker-compatible engine is
// reachable. Provider detection can panic on broken setups.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

// TestInstall_RunsInCleanContainer copies an installed executable into a
// bare Alpine container and runs its --help there, checking that the keg
// does not depend on anything left behind on the host.
func TestInstall_RunsInCleanContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if runtime.GOOS != "linux" {
		t.Skip("container tests run on Linux hosts only")
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping container integration tests: testcontainers provider not available")
	}

	sem := testutil.ContainerSemaphore()
	sem <- struct{}{}
	defer func() { <-sem }()

	data := testutil.ToolArchive(t, "safe-squash", "1.0.0")
	srv := newArchiveServer(t, map[string][]byte{"1.0.0": data})
	inst, _ := newInstaller(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := inst.Install(ctx, srv.formula(t, "1.0.0", data), Options{})
	if err != nil {
		t.Fatalf("Install() unexpected error: %v", err)
	}

	ctr, err := testcontainers.Run(ctx, "alpine:3.20",
		testcontainers.WithFiles(testcontainers.ContainerFile{
			HostFilePath:      filepath.Join(res.Keg.BinDir(), "safe-squash"),
			ContainerFilePath: "/usr/local/bin/safe-squash",
			FileMode:          0o755,
		}),
		testcontainers.WithCmd("sleep", "300"),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("starting container: %v", err)
	}

	code, reader, err := ctr.Exec(ctx, []string{"safe-squash", "--help"}, exec.Multiplexed())
	if err != nil {
		t.Fatalf("exec in container: %v", err)
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		t.Fatal(err)
	}
	if code != 0 {
		t.Errorf("safe-squash --help exited %d in container, want 0; output:\n%s", code, out)
	}
	if !strings.Contains(string(out), "safe-squash") {
		t.Errorf("--help output %q does not contain %q", out, "safe-squash")
	}
}
