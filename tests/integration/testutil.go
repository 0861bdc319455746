// Package integration provides end-to-end tests for bindery: the CLI
// driven as a built binary, and the store stack over the SQLite engine.
package integration

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

var (
	// binderyBin is the path to the built bindery binary.
	binderyBin string
	// buildErr captures any build error.
	buildErr error
)

// BuildError wraps a build error with output.
type BuildError struct {
	Err    error
	Output string
}

func (e *BuildError) Error() string {
	return e.Err.Error() + ": " + e.Output
}

// FindProjectRoot finds the project root by walking up and looking for go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// testSchemaJSON is the schema every CLI test environment starts with.
// Person links to itself through partner and to Pet through pets; Pet
// sees its owners through a backlink.
const testSchemaJSON = `{
  "schemas": [
    {
      "name": "Person",
      "properties": [
        {"name": "name", "kind": "string", "primaryKey": true},
        {"name": "age", "kind": "int"},
        {"name": "nickname", "kind": "string", "optional": true},
        {"name": "partner", "kind": "object", "target": "Person"},
        {"name": "pets", "kind": "list", "target": "Pet"}
      ]
    },
    {
      "name": "Pet",
      "properties": [
        {"name": "name", "kind": "string", "primaryKey": true},
        {"name": "owners", "kind": "backlink", "target": "Person", "origin": "pets"}
      ]
    }
  ]
}
`

// TestEnv provides an isolated test environment with its own config and
// data directory.
type TestEnv struct {
	t         *testing.T
	TempDir   string
	ConfigDir string
	DataDir   string
}

// NewTestEnv creates a new isolated test environment with the standard
// Person/Pet schema already in place.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	if buildErr != nil {
		t.Fatalf("failed to build bindery: %v", buildErr)
	}
	if binderyBin == "" {
		t.Fatal("bindery binary not built (binderyBin is empty)")
	}

	tempDir := t.TempDir()
	dataDir := filepath.Join(tempDir, "data")
	configDir := filepath.Join(tempDir, "config")

	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configContent := "data_dir: " + dataDir + "\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "schema.json"), []byte(testSchemaJSON), 0o644); err != nil {
		t.Fatalf("failed to write schema: %v", err)
	}

	return &TestEnv{
		t:         t,
		TempDir:   tempDir,
		ConfigDir: configDir,
		DataDir:   dataDir,
	}
}

// CmdResult holds the result of a bindery command execution.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunBindery executes the bindery CLI with the given arguments.
func (e *TestEnv) RunBindery(args ...string) CmdResult {
	e.t.Helper()

	allArgs := append([]string{"--config-dir", e.ConfigDir, "--data-dir", e.DataDir}, args...)
	cmd := exec.Command(binderyBin, allArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			e.t.Fatalf("failed to run bindery: %v", err)
		}
	}

	return CmdResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

// MustRunBindery executes the bindery CLI and fails the test if it
// returns non-zero.
func (e *TestEnv) MustRunBindery(args ...string) CmdResult {
	e.t.Helper()
	result := e.RunBindery(args...)
	if result.ExitCode != 0 {
		e.t.Fatalf("bindery %v failed with exit code %d:\nstdout: %s\nstderr: %s",
			args, result.ExitCode, result.Stdout, result.Stderr)
	}
	return result
}

// ParseJSON parses JSON output into the target type.
func ParseJSON[T any](t *testing.T, jsonStr string) T {
	t.Helper()
	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", jsonStr, err)
	}
	return result
}
