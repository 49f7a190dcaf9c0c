package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

const testConfig = `
server:
  listen_address: "127.0.0.1:18090"

throttle:
  categories:
    text_query:
      max_requests: 3
      window: 1h
    document_analysis:
      max_requests: 1
      window: 24h
      description: "one document a day"
  gc:
    schedule: "@every 30m"
    max_age: 24h
`

// writeTestConfig writes content to a temporary config file and points the
// global --config flag at it for the duration of the test.
func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	orig := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = orig })
	return path
}

// newTestCommand returns a bare command whose output is captured.
func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	return cmd, &buf
}
