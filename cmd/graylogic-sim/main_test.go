package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-sim/internal/infrastructure/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestRun_Version(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--version"}, &out); err != nil {
		t.Fatalf("run(--version) error = %v", err)
	}
	if !strings.Contains(out.String(), "graylogic-sim "+version) {
		t.Errorf("output = %q, want version line", out.String())
	}
}

func TestRun_BadFlag(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"--no-such-flag"}, &out); err == nil {
		t.Fatal("run() with unknown flag: expected error")
	}
}

func TestRun_MissingExplicitConfig(t *testing.T) {
	var out bytes.Buffer
	err := run(context.Background(), []string{"-c", "/nonexistent/config.yaml"}, &out)
	if !errors.Is(err, config.ErrNoConfigFile) {
		t.Fatalf("run() error = %v, want ErrNoConfigFile", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfig(t, "simulation:\n  tick_interval: 0s\n")

	var out bytes.Buffer
	err := run(context.Background(), []string{"--config", path}, &out)
	if err == nil || !strings.Contains(err.Error(), "tick_interval") {
		t.Fatalf("run() error = %v, want tick_interval validation error", err)
	}
}

// TestRun_EmbeddedLifecycle starts the whole simulator on the in-process
// broker and shuts it down when the context expires.
func TestRun_EmbeddedLifecycle(t *testing.T) {
	path := writeConfig(t, `
site:
  id: test-site
simulation:
  tick_interval: 10ms
  devices:
    - kind: led
      id: LED000000001
    - kind: sensor
      id: SENSOR000001
    - kind: blind
  groups:
    - id: 1
      members: [LED000000001, SENSOR000001]
      rules:
        brightness: 50
database:
  path: ":memory:"
api:
  enabled: false
logging:
  level: error
  format: text
`)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	if err := run(ctx, []string{"-c", path, "--embedded"}, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

func TestRun_UnknownGroupMember(t *testing.T) {
	path := writeConfig(t, `
simulation:
  groups:
    - id: 1
      members: [MISSING00000]
mqtt:
  embedded: true
api:
  enabled: false
logging:
  level: error
`)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out bytes.Buffer
	err := run(ctx, []string{"-c", path}, &out)
	if err == nil || !strings.Contains(err.Error(), "provisioning") {
		t.Fatalf("run() error = %v, want provisioning error", err)
	}
}
