// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/jadnohra/tapkit/internal/checksum"
	"github.com/jadnohra/tapkit/internal/config"
	"github.com/jadnohra/tapkit/internal/testutil"
	"github.com/jadnohra/tapkit/pkg/formula"
	"github.com/jadnohra/tapkit/pkg/types"
)

const archivePath = "/jadnohra/safe-squash/archive/refs/tags/v1.0.0.tar.gz"

type staticConfig struct {
	cfg *config.Config
}

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	c := *s.cfg
	return &c, nil
}

func (s staticConfig) LoadWithSource(ctx context.Context, opts config.LoadOptions) (*config.Config, string, error) {
	cfg, err := s.Load(ctx, opts)
	return cfg, "", err
}

// cliEnv is a prefix, a cache and an archive server shared by the commands
// of one test.
type cliEnv struct {
	t       *testing.T
	srv     *httptest.Server
	prefix  string
	workDir string
	archive []byte
	stdout  bytes.Buffer
	stderr  bytes.Buffer
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are POSIX shell scripts")
	}

	e := &cliEnv{t: t, archive: testutil.ToolArchive(t, "safe-squash", "1.0.0")}
	e.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case archivePath:
			_, _ = w.Write(e.archive)
		case "/jadnohra/safe-squash/releases/download/v1.0.0/SHA256SUMS":
			sum, _ := checksum.ComputeHash(bytes.NewReader(e.archive))
			_, _ = w.Write([]byte(sum + "  v1.0.0.tar.gz\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(e.srv.Close)

	root := t.TempDir()
	e.prefix = filepath.Join(root, "prefix")
	e.workDir = filepath.Join(root, "work")
	testutil.MustMkdirAll(t, e.workDir, 0o755)
	return e
}

// run executes the command line and returns the error from RunE.
func (e *cliEnv) run(args ...string) error {
	e.t.Helper()
	e.stdout.Reset()
	e.stderr.Reset()

	cfg := config.DefaultConfig()
	cfg.CacheDir = filepath.Join(filepath.Dir(e.prefix), "cache")
	cfg.UI.Progress = false

	app := NewApp(Dependencies{
		Config:     staticConfig{cfg: cfg},
		HTTPClient: e.srv.Client(),
		Environ:    []string{},
		Stdout:     &e.stdout,
		Stderr:     &e.stderr,
	})
	root := NewRootCommand(app)
	root.SetArgs(append([]string{"--prefix", e.prefix}, args...))
	return root.ExecuteContext(context.Background())
}

// writeFormula writes a formula for the served archive and returns its path.
func (e *cliEnv) writeFormula(sha256 string) string {
	e.t.Helper()
	f := &formula.Formula{
		Name:     "safe-squash",
		Desc:     "Simple, robust tool to squash all commits on your branch into one",
		Homepage: "https://github.com/jadnohra/safe-squash",
		URL:      e.srv.URL + archivePath,
		SHA256:   sha256,
		License:  "MIT",
		Install:  &formula.Install{Bin: []string{"safe-squash"}},
		Test:     &formula.Test{Command: `"$BIN/safe-squash" --help`, Match: "safe-squash"},
	}
	return testutil.WriteFile(e.t, e.workDir, "safe-squash.cue", []byte(formula.GenerateCUE(f)))
}

func (e *cliEnv) archiveSum() string {
	e.t.Helper()
	sum, err := checksum.ComputeHash(bytes.NewReader(e.archive))
	if err != nil {
		e.t.Fatal(err)
	}
	return sum
}

func exitCode(t *testing.T, err error) types.ExitCode {
	t.Helper()
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error %v is not an ExitError", err)
	}
	return exitErr.Code
}

func TestInstallCommand(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	path := e.writeFormula(e.archiveSum())

	if err := e.run("install", "--test", path); err != nil {
		t.Fatalf("install failed: %v\nstderr:\n%s", err, e.stderr.String())
	}
	out := e.stdout.String()
	if !strings.Contains(out, "installed") || !strings.Contains(out, "test passed") {
		t.Errorf("install output = %q, want install and test confirmation", out)
	}

	bin := filepath.Join(e.prefix, "bin", "safe-squash")
	info, err := os.Stat(bin)
	if err != nil {
		t.Fatalf("%s missing: %v", bin, err)
	}
	if info.Mode().Perm()&0o111 == 0 {
		t.Errorf("%s mode = %v, want executable", bin, info.Mode().Perm())
	}
}

func TestInstallCommand_Reinstall(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	path := e.writeFormula(e.archiveSum())

	if err := e.run("install", path); err != nil {
		t.Fatalf("first install failed: %v", err)
	}
	if err := e.run("install", path); err != nil {
		t.Fatalf("second install failed: %v\nstderr:\n%s", err, e.stderr.String())
	}
	if !strings.Contains(e.stdout.String(), "already installed") {
		t.Errorf("second install output = %q, want %q", e.stdout.String(), "already installed")
	}

	if err := e.run("list"); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(e.stdout.String(), "1.0.0"); got != 1 {
		t.Errorf("list shows 1.0.0 %d times, want 1:\n%s", got, e.stdout.String())
	}
}

func TestInstallCommand_ChecksumMismatch(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	path := e.writeFormula(strings.Repeat("0", 64))

	err := e.run("install", path)
	if err == nil {
		t.Fatal("install succeeded with a wrong checksum")
	}
	if got := exitCode(t, err); got != types.ExitUserError {
		t.Errorf("exit code = %d, want %d", got, types.ExitUserError)
	}
	if !errors.Is(err, checksum.ErrChecksumMismatch) {
		t.Errorf("error = %v, want checksum mismatch", err)
	}
	if !strings.Contains(e.stderr.String(), "checksum verification failed") {
		t.Errorf("stderr does not explain the mismatch:\n%s", e.stderr.String())
	}

	for _, dir := range []string{"bin", "Cellar"} {
		entries, err := os.ReadDir(filepath.Join(e.prefix, dir))
		if err != nil && !os.IsNotExist(err) {
			t.Fatal(err)
		}
		if len(entries) != 0 {
			t.Errorf("%s/ has %d entries after a failed install, want 0", dir, len(entries))
		}
	}
}

func TestInstallCommand_RepositoryFormulaPlaceholder(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	err := e.run("install", filepath.Join("..", "..", "Formula", "safe-squash.cue"))
	if err == nil {
		t.Fatal("install succeeded with the placeholder checksum")
	}
	if got := exitCode(t, err); got != types.ExitUserError {
		t.Errorf("exit code = %d, want %d", got, types.ExitUserError)
	}
	if !errors.Is(err, formula.ErrInvalidChecksum) {
		t.Errorf("error = %v, want ErrInvalidChecksum", err)
	}
	if !strings.Contains(e.stderr.String(), "checksum has not been filled in") {
		t.Errorf("stderr does not name the placeholder:\n%s", e.stderr.String())
	}
}

func TestTestCommand(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	path := e.writeFormula(e.archiveSum())
	if err := e.run("install", path); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		ref  string
	}{
		{"by name", "safe-squash"},
		{"by path", path},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := e.run("test", tt.ref); err != nil {
				t.Fatalf("test %s failed: %v\nstderr:\n%s", tt.ref, err, e.stderr.String())
			}
			if !strings.Contains(e.stdout.String(), "test passed") {
				t.Errorf("output = %q, want %q", e.stdout.String(), "test passed")
			}
		})
	}
}

func TestTestCommand_NotInstalled(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	err := e.run("test", "safe-squash")
	if err == nil {
		t.Fatal("test succeeded without an installed keg")
	}
	if got := exitCode(t, err); got != types.ExitUserError {
		t.Errorf("exit code = %d, want %d", got, types.ExitUserError)
	}
}

func TestTestCommand_Failure(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	path := e.writeFormula(e.archiveSum())
	if err := e.run("install", path); err != nil {
		t.Fatal(err)
	}

	// Replace the stored formula's expectation with text the tool never prints.
	k := filepath.Join(e.prefix, "Cellar", "safe-squash", "1.0.0", ".tapkit", "formula.cue")
	data, err := os.ReadFile(k)
	if err != nil {
		t.Fatal(err)
	}
	data = bytes.Replace(data, []byte(`match:   "safe-squash"`), []byte(`match:   "definitely not printed"`), 1)
	if err := os.WriteFile(k, data, 0o644); err != nil {
		t.Fatal(err)
	}

	err = e.run("test", "safe-squash")
	if err == nil {
		t.Fatal("test passed with an unmatched expectation")
	}
	if got := exitCode(t, err); got != types.ExitSmokeTestFailed {
		t.Errorf("exit code = %d, want %d", got, types.ExitSmokeTestFailed)
	}
}

func TestFetchCommand(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	sum := e.archiveSum()
	path := e.writeFormula(sum)

	if err := e.run("fetch", path); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	fields := strings.Fields(e.stdout.String())
	if len(fields) != 2 || fields[0] != sum {
		t.Fatalf("fetch output = %q, want %q followed by a path", e.stdout.String(), sum)
	}
	if _, err := os.Stat(fields[1]); err != nil {
		t.Errorf("cached archive missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(e.prefix, "bin")); !os.IsNotExist(err) {
		t.Error("fetch wrote into the prefix")
	}
}

func TestAuditCommand(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)

	t.Run("placeholder checksum", func(t *testing.T) {
		path := e.writeFormula(formula.ChecksumPlaceholder)
		err := e.run("audit", path)
		if err == nil {
			t.Fatal("audit passed a placeholder checksum")
		}
		if got := exitCode(t, err); got != types.ExitUserError {
			t.Errorf("exit code = %d, want %d", got, types.ExitUserError)
		}
		if !strings.Contains(e.stdout.String(), "sha256") {
			t.Errorf("audit output does not name the sha256 field:\n%s", e.stdout.String())
		}
	})

	t.Run("strict", func(t *testing.T) {
		path := e.writeFormula(e.archiveSum())
		if err := e.run("audit", "--strict", path); err != nil {
			t.Fatalf("strict audit failed: %v\nstdout:\n%s", err, e.stdout.String())
		}
	})
}

func TestUninstallCommand(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	path := e.writeFormula(e.archiveSum())
	if err := e.run("install", path); err != nil {
		t.Fatal(err)
	}

	if err := e.run("uninstall", "safe-squash"); err != nil {
		t.Fatalf("uninstall failed: %v", err)
	}
	if _, err := os.Lstat(filepath.Join(e.prefix, "bin", "safe-squash")); !os.IsNotExist(err) {
		t.Error("bin link survived uninstall")
	}

	err := e.run("uninstall", "safe-squash")
	if err == nil {
		t.Fatal("second uninstall succeeded")
	}
	if got := exitCode(t, err); got != types.ExitUserError {
		t.Errorf("exit code = %d, want %d", got, types.ExitUserError)
	}
}

func TestCreateCommand(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	out := filepath.Join(e.workDir, "created.cue")

	err := e.run("create",
		"--name", "safe-squash",
		"--homepage", "https://github.com/jadnohra/safe-squash",
		"--checksums", e.srv.URL+"/jadnohra/safe-squash/releases/download/v1.0.0/SHA256SUMS",
		"-o", out,
		e.srv.URL+archivePath,
	)
	if err != nil {
		t.Fatalf("create failed: %v\nstderr:\n%s", err, e.stderr.String())
	}

	f, err := formula.Load(out)
	if err != nil {
		t.Fatalf("created formula does not load: %v", err)
	}
	if f.SHA256 != e.archiveSum() {
		t.Errorf("sha256 = %q, want %q", f.SHA256, e.archiveSum())
	}
	if f.License != "MIT" {
		t.Errorf("license = %q, want detected %q", f.License, "MIT")
	}
	if err := f.Validate(); err != nil {
		t.Errorf("created formula is invalid: %v", err)
	}

	if err := e.run("create", "--name", "safe-squash", "-o", out, e.srv.URL+archivePath); err == nil {
		t.Error("create replaced an existing file")
	}
}

func TestGithubRepo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url    string
		want   string
		wantOK bool
	}{
		{"https://github.com/jadnohra/safe-squash/archive/refs/tags/v1.0.0.tar.gz", "jadnohra/safe-squash", true},
		{"https://github.com/org/tool/releases/download/v2.1.0/tool-linux.tar.gz", "org/tool", true},
		{"https://github.com/org/tool", "", false},
		{"https://example.com/org/tool/archive/v1.tar.gz", "", false},
	}
	for _, tt := range tests {
		got, ok := githubRepo(tt.url)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("githubRepo(%q) = %q, %v; want %q, %v", tt.url, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestInfoCommand(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	path := e.writeFormula(e.archiveSum())
	if err := e.run("install", path); err != nil {
		t.Fatal(err)
	}

	for _, ref := range []string{path, "safe-squash"} {
		if err := e.run("info", ref); err != nil {
			t.Fatalf("info %s failed: %v\nstderr:\n%s", ref, err, e.stderr.String())
		}
		out := e.stdout.String()
		for _, want := range []string{"safe-squash", "MIT", "1.0.0"} {
			if !strings.Contains(out, want) {
				t.Errorf("info %s output does not contain %q:\n%s", ref, want, out)
			}
		}
	}
}

func TestConfigShowCommand(t *testing.T) {
	// Not parallel: each run installs the process-wide slog default.

	e := newCLIEnv(t)
	if err := e.run("config", "show"); err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	out := e.stdout.String()
	for _, want := range []string{e.prefix, "(using defaults)", "timeout: 10m0s"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show output does not contain %q:\n%s", want, out)
		}
	}
}
