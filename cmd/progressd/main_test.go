package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/taskprogress/internal/pipeline"
)

// TestRunCommandPrintsSummary runs a small build end to end through cobra.
func TestRunCommandPrintsSummary(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	configYAML := `
logging:
  development: false
  level: error
listeners:
  bar: true
  metrics: false
pipeline:
  workers: 2
  units: 2
  noise_ratio: 1
  seed: 9
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", path, "run", "--name", "nightly"})
	require.NoError(t, cmd.Execute())

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	require.Equal(t, "nightly", res.Name)
	require.Equal(t, 2, res.Units)
	require.Equal(t, 6, res.Artifacts)
	require.Equal(t, 6, res.Scratch)
	require.Contains(t, stderr.String(), "nightly")
}

// TestRootCommandRejectsBadConfig surfaces config validation errors.
func TestRootCommandRejectsBadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  workers: 0\n"), 0o600))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "run"})
	require.ErrorContains(t, cmd.Execute(), "pipeline.workers")
}
