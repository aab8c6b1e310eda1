// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package clitest

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tombee/audionote/internal/cli"
	"github.com/tombee/audionote/internal/commands/shared"
)

// env lists every variable the configuration and credential layers read.
var env = []string{
	"AUDIONOTE_CONFIG_DIR",
	"AUDIONOTE_API_BASE_URL",
	"AUDIONOTE_TIMEOUT",
	"AUDIONOTE_USER_AGENT",
	"AUDIONOTE_CREDENTIALS_BACKEND",
	"AUDIONOTE_CREDENTIALS_PATH",
	"AUDIONOTE_UPLOAD_STRATEGY",
	"AUDIONOTE_UPLOAD_ORIGIN",
	"AUDIONOTE_TRACING_EXPORTER",
	"AUDIONOTE_DEVSERVER_ADDR",
	"AUDIONOTE_MASTER_KEY",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"WEB_ACCESS_PASSWORD",
	"STORAGE_ENDPOINT",
	"STORAGE_REGION",
	"STORAGE_BUCKET",
	"STORAGE_ACCESS_KEY",
	"STORAGE_SECRET_KEY",
}

// Isolate clears the environment the CLI reads and points the config
// directory at a fresh temp dir, which it returns.
func Isolate(t *testing.T) string {
	t.Helper()
	for _, name := range env {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("AUDIONOTE_NON_INTERACTIVE", "true")
	t.Cleanup(shared.ResetFlagsForTest)
	return dir
}

// Backend starts a fake backend and points the CLI at it.
func Backend(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("AUDIONOTE_API_BASE_URL", srv.URL)
	return srv
}

// Envelope writes a successful backend envelope around data.
func Envelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

// Result is the captured output of one CLI invocation.
type Result struct {
	Stdout string
	Stderr string
	Err    error
}

// Run executes sub under a fresh root command with args and stdin.
func Run(t *testing.T, sub *cobra.Command, stdin string, args ...string) Result {
	t.Helper()
	return RunContext(t, context.Background(), sub, stdin, args...)
}

// RunContext is Run with a caller-controlled context, for long-running
// commands.
func RunContext(t *testing.T, ctx context.Context, sub *cobra.Command, stdin string, args ...string) Result {
	t.Helper()

	root := cli.NewRootCommand()
	root.AddCommand(sub)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	var in io.Reader = strings.NewReader(stdin)
	root.SetIn(in)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return Result{Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
}
