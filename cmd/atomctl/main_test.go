package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/atom/internal/errors"
)

const tally = `
name: tally
atoms:
  - name: count
    value: 0
    key: count
watch: [count]
steps:
  - update: {atom: count, expr: prev + 1}
`

type workspace struct {
	dir      string
	config   string
	scenario string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	ws := workspace{
		dir:      dir,
		config:   filepath.Join(dir, "atomctl.yaml"),
		scenario: filepath.Join(dir, "tally.yaml"),
	}
	require.NoError(t, os.WriteFile(ws.config, []byte("log:\n  level: warn\nsnapshot:\n  dir: snaps\n"), 0o644))
	require.NoError(t, os.WriteFile(ws.scenario, []byte(tally), 0o644))
	return ws
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRun(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "run", ws.scenario, "--config", ws.config)
	require.NoError(t, err)
	assert.Equal(t, "count = 0\ncount = 1\n", out)
}

func TestSnapshotAndRestore(t *testing.T) {
	ws := newWorkspace(t)

	out, err := execute(t, "snapshot", ws.scenario, "--config", ws.config, "--name", "first")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "snapshot first\n"), out)
	assert.FileExists(t, filepath.Join(ws.dir, "snaps", "first.json"))

	out, err = execute(t, "run", ws.scenario, "--config", ws.config, "--restore", "first")
	require.NoError(t, err)
	assert.Equal(t, "count = 1\ncount = 2\n", out)

	_, err = execute(t, "run", ws.scenario, "--config", ws.config, "--restore", "missing")
	assert.True(t, errors.HasCode(err, "A201"), "got %v", err)
}

func TestSnapshotNeedsBackend(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, os.WriteFile(ws.config, []byte("log:\n  level: warn\n"), 0o644))

	_, err := execute(t, "snapshot", ws.scenario, "--config", ws.config)
	assert.True(t, errors.HasCode(err, "A203"), "got %v", err)
}

func TestArgumentErrors(t *testing.T) {
	ws := newWorkspace(t)

	_, err := execute(t, "run")
	assert.True(t, errors.HasCode(err, "A400"), "got %v", err)

	_, err = execute(t, "run", ws.scenario, "--config", ws.config, "--log-level", "loud")
	assert.True(t, errors.HasCode(err, "A400"), "got %v", err)

	_, err = execute(t, "run", filepath.Join(ws.dir, "missing.yaml"), "--config", ws.config)
	assert.True(t, errors.HasCode(err, "A100"), "got %v", err)

	_, err = execute(t, "run", ws.scenario, "--config", filepath.Join(ws.dir, "nope.yaml"))
	assert.True(t, errors.HasCode(err, "A001"), "got %v", err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, "dev\n", out)

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "atomctl dev")
}
