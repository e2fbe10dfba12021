// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestProvider_LoadWithSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(path, []byte(`smoke: timeout: "5s"`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewProvider()
	cfg, source, err := p.LoadWithSource(context.Background(), LoadOptions{ConfigDirPath: dir, Environ: []string{}})
	if err != nil {
		t.Fatalf("LoadWithSource() error = %v", err)
	}
	if source != path {
		t.Errorf("source = %q, want %q", source, path)
	}
	if cfg.Smoke.Timeout != 5*time.Second {
		t.Errorf("Smoke.Timeout = %s, want 5s", cfg.Smoke.Timeout)
	}
}

func TestProvider_Load_NoFile(t *testing.T) {
	t.Parallel()

	p := NewProvider()
	cfg, source, err := p.LoadWithSource(context.Background(), LoadOptions{ConfigDirPath: t.TempDir(), Environ: []string{}})
	if err != nil {
		t.Fatalf("LoadWithSource() error = %v", err)
	}
	if source != "" {
		t.Errorf("source = %q, want empty", source)
	}
	if cfg.HTTP.Timeout != DefaultHTTPTimeout {
		t.Errorf("HTTP.Timeout = %s, want %s", cfg.HTTP.Timeout, DefaultHTTPTimeout)
	}
}

func TestProvider_Load_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewProvider().Load(ctx, LoadOptions{ConfigDirPath: t.TempDir()}); err == nil {
		t.Fatal("Load() with canceled context should fail")
	}
}
