package config

import (
	"bytes"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vango-dev/atom/internal/errors"
	"github.com/vango-dev/atom/internal/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Serve.Addr != DefaultAddr {
		t.Errorf("Serve.Addr = %q, want %q", cfg.Serve.Addr, DefaultAddr)
	}
	if cfg.Serve.ReadTimeout.Duration() != DefaultReadTimeout {
		t.Errorf("Serve.ReadTimeout = %v, want %v", cfg.Serve.ReadTimeout.Duration(), DefaultReadTimeout)
	}
	if cfg.IdleTimeout() != DefaultIdleTimeout {
		t.Errorf("IdleTimeout() = %v, want %v", cfg.IdleTimeout(), DefaultIdleTimeout)
	}
	if cfg.Metrics.Namespace != DefaultNamespace || cfg.Metrics.Subsystem != DefaultSubsystem {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Snapshot.Enabled() {
		t.Error("snapshots should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Path() != "" || cfg.Dir() != "" {
		t.Errorf("defaults should have no path, got %q", cfg.Path())
	}
	if cfg.Serve.Addr != DefaultAddr {
		t.Errorf("Serve.Addr = %q", cfg.Serve.Addr)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: json
metrics:
  namespace: demo
registry:
  idleTimeout: 0s
serve:
  addr: ":9090"
  readTimeout: 2s
snapshot:
  dir: snaps
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
	if cfg.Metrics.Namespace != "demo" {
		t.Errorf("Metrics.Namespace = %q", cfg.Metrics.Namespace)
	}
	if cfg.Metrics.Subsystem != DefaultSubsystem {
		t.Errorf("Metrics.Subsystem = %q, want default", cfg.Metrics.Subsystem)
	}
	if cfg.IdleTimeout() != 0 {
		t.Errorf("IdleTimeout() = %v, want 0", cfg.IdleTimeout())
	}
	if cfg.Serve.Addr != ":9090" || cfg.Serve.ReadTimeout.Duration() != 2*time.Second {
		t.Errorf("Serve = %+v", cfg.Serve)
	}
	if got, want := cfg.SnapshotDir(), filepath.Join(filepath.Dir(path), "snaps"); got != want {
		t.Errorf("SnapshotDir() = %q, want %q", got, want)
	}

	lc := cfg.Logging(&bytes.Buffer{})
	if lc.Level != logging.LevelDebug || lc.Format != logging.FormatJSON {
		t.Errorf("Logging() = %+v", lc)
	}
}

func TestLoadFileS3(t *testing.T) {
	path := writeConfig(t, `
snapshot:
  s3:
    bucket: atom-snapshots
    prefix: dev/
    region: eu-west-1
    endpoint: http://localhost:9000
    pathStyle: true
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	s3 := cfg.Snapshot.S3
	if s3.Bucket != "atom-snapshots" || s3.Prefix != "dev/" || !s3.PathStyle {
		t.Errorf("S3 = %+v", s3)
	}
	if !cfg.Snapshot.Enabled() {
		t.Error("Enabled() = false")
	}
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		code    string
	}{
		{
			name:    "not yaml",
			content: "log: [",
			code:    "A002",
		},
		{
			name:    "bad duration",
			content: "serve:\n  readTimeout: soon\n",
			code:    "A002",
		},
		{
			name:    "bad level",
			content: "log:\n  level: loud\n",
			code:    "A003",
		},
		{
			name:    "bad format",
			content: "log:\n  format: xml\n",
			code:    "A003",
		},
		{
			name:    "two snapshot backends",
			content: "snapshot:\n  dir: snaps\n  s3:\n    bucket: b\n",
			code:    "A004",
		},
		{
			name:    "bad addr",
			content: "serve:\n  addr: nowhere\n",
			code:    "A005",
		},
		{
			name:    "negative read timeout",
			content: "serve:\n  readTimeout: -1s\n",
			code:    "A005",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.HasCode(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestLoadFileUnreadable(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.HasCode(err, "A001") {
		t.Errorf("error = %v, want A001", err)
	}
	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Errorf("error should wrap the not-exist error: %v", err)
	}
}

func TestSnapshotDirAbsolute(t *testing.T) {
	cfg := New()
	abs := filepath.Join(t.TempDir(), "snaps")
	cfg.Snapshot.Dir = abs
	if cfg.SnapshotDir() != abs {
		t.Errorf("SnapshotDir() = %q, want %q", cfg.SnapshotDir(), abs)
	}
}
