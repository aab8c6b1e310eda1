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

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnv = []string{
	DirEnv,
	"AUDIONOTE_API_BASE_URL",
	"AUDIONOTE_TIMEOUT",
	"AUDIONOTE_USER_AGENT",
	"AUDIONOTE_CREDENTIALS_BACKEND",
	"AUDIONOTE_CREDENTIALS_PATH",
	"AUDIONOTE_UPLOAD_STRATEGY",
	"AUDIONOTE_UPLOAD_ORIGIN",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"AUDIONOTE_TRACING_EXPORTER",
	"OTEL_EXPORTER_OTLP_ENDPOINT",
	"AUDIONOTE_DEVSERVER_ADDR",
	"WEB_ACCESS_PASSWORD",
	"STORAGE_ENDPOINT",
	"STORAGE_REGION",
	"STORAGE_BUCKET",
	"STORAGE_ACCESS_KEY",
	"STORAGE_SECRET_KEY",
}

// isolate clears config env vars and points XDG_CONFIG_HOME at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, name := range configEnv {
		t.Setenv(name, "")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.APIBaseURL != "http://localhost:20201" {
		t.Errorf("expected base URL http://localhost:20201, got %q", cfg.APIBaseURL)
	}
	if cfg.Timeout != 240*time.Second {
		t.Errorf("expected timeout 240s, got %v", cfg.Timeout)
	}
	if cfg.Credentials.Backend != "file" {
		t.Errorf("expected credentials backend 'file', got %q", cfg.Credentials.Backend)
	}
	if cfg.Upload.Strategy != UploadDirect {
		t.Errorf("expected upload strategy 'direct', got %q", cfg.Upload.Strategy)
	}
	if cfg.DevServer.Addr != ":20201" {
		t.Errorf("expected devserver addr :20201, got %q", cfg.DevServer.Addr)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		changed bool
	}{
		{in: "http://localhost:8080", want: "http://localhost:20201", changed: true},
		{in: "http://10.0.0.5:8080/", want: "http://10.0.0.5:20201", changed: true},
		{in: "https://notes.example.com:8080/base", want: "https://notes.example.com:20201/base", changed: true},
		{in: "http://[::1]:8080", want: "http://[::1]:20201", changed: true},
		{in: "http://localhost:20201/", want: "http://localhost:20201", changed: false},
		{in: "http://localhost:18080", want: "http://localhost:18080", changed: false},
		{in: "https://api.example.com", want: "https://api.example.com", changed: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, changed := NormalizeBaseURL(tt.in)
			if got != tt.want || changed != tt.changed {
				t.Errorf("NormalizeBaseURL(%q) = (%q, %v), want (%q, %v)", tt.in, got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		errText string
	}{
		{
			name:   "valid default config",
			modify: func(c *Config) {},
		},
		{
			name:    "base url without scheme",
			modify:  func(c *Config) { c.APIBaseURL = "localhost:20201" },
			errText: "api_base_url must use http or https",
		},
		{
			name:    "base url without host",
			modify:  func(c *Config) { c.APIBaseURL = "http://" },
			errText: "api_base_url must include a host",
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.Timeout = -time.Second },
			errText: "timeout must not be negative",
		},
		{
			name:   "zero timeout disables it",
			modify: func(c *Config) { c.Timeout = 0 },
		},
		{
			name:    "unknown credentials backend",
			modify:  func(c *Config) { c.Credentials.Backend = "vault" },
			errText: "credentials.backend must be one of",
		},
		{
			name:    "unknown upload strategy",
			modify:  func(c *Config) { c.Upload.Strategy = "ftp" },
			errText: "upload.strategy must be one of [direct, proxy]",
		},
		{
			name:    "bad upload origin",
			modify:  func(c *Config) { c.Upload.Origin = "app.local" },
			errText: "upload.origin must be scheme://host",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Log.Level = "loud" },
			errText: "log.level must be one of",
		},
		{
			name:    "otlp without endpoint",
			modify:  func(c *Config) { c.Tracing.Exporter = "otlp-http" },
			errText: "tracing.endpoint is required",
		},
		{
			name:    "presign expiry too long",
			modify:  func(c *Config) { c.DevServer.PresignExpiry = 8 * 24 * time.Hour },
			errText: "devserver.presign_expiry",
		},
		{
			name:    "negative rate limit",
			modify:  func(c *Config) { c.DevServer.RateLimit = -1 },
			errText: "devserver.rate_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.errText == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.errText)
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.errText) {
				t.Errorf("expected error containing %q, got %q", tt.errText, err.Error())
			}
		})
	}
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.APIBaseURL = "ftp://x"
	cfg.Upload.Strategy = "ftp"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "api_base_url") || !strings.Contains(err.Error(), "upload.strategy") {
		t.Errorf("expected both problems reported, got %q", err.Error())
	}
}

func TestLoadWithoutFile(t *testing.T) {
	isolate(t)

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if cfg.APIBaseURL != DefaultBaseURL {
		t.Errorf("expected default base URL, got %q", cfg.APIBaseURL)
	}
}

func TestLoadFromFile(t *testing.T) {
	isolate(t)
	path := writeConfig(t, `
api_base_url: https://notes.example.com/
timeout: 30s
credentials:
  backend: keychain
upload:
  strategy: proxy
  origin: http://app.local
log:
  level: debug
devserver:
  allowed_origins: ["http://app.local"]
  storage:
    bucket: audio
    region: us-east-1
`)

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIBaseURL != "https://notes.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("expected timeout 30s, got %v", cfg.Timeout)
	}
	if cfg.Credentials.Backend != "keychain" {
		t.Errorf("expected keychain backend, got %q", cfg.Credentials.Backend)
	}
	if cfg.Upload.Strategy != UploadProxy || cfg.Upload.Origin != "http://app.local" {
		t.Errorf("unexpected upload config %+v", cfg.Upload)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	if cfg.DevServer.Storage.Bucket != "audio" || cfg.DevServer.PresignExpiry != time.Hour {
		t.Errorf("unexpected devserver config %+v", cfg.DevServer)
	}
	if cfg.UserAgent == "" {
		t.Error("expected user agent default applied")
	}
}

func TestLoadFromEnv(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "api_base_url: https://file.example.com\nupload:\n  strategy: direct\n")

	t.Setenv("AUDIONOTE_API_BASE_URL", "http://env.example.com")
	t.Setenv("AUDIONOTE_TIMEOUT", "90")
	t.Setenv("AUDIONOTE_UPLOAD_STRATEGY", "PROXY")
	t.Setenv("AUDIONOTE_CREDENTIALS_BACKEND", "env")
	t.Setenv("STORAGE_BUCKET", "env-bucket")
	t.Setenv("WEB_ACCESS_PASSWORD", "hunter2")

	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIBaseURL != "http://env.example.com" {
		t.Errorf("expected env to override file, got %q", cfg.APIBaseURL)
	}
	if cfg.Timeout != 90*time.Second {
		t.Errorf("expected bare seconds parsed, got %v", cfg.Timeout)
	}
	if cfg.Upload.Strategy != UploadProxy {
		t.Errorf("expected proxy strategy, got %q", cfg.Upload.Strategy)
	}
	if cfg.Credentials.Backend != "env" {
		t.Errorf("expected env backend, got %q", cfg.Credentials.Backend)
	}
	if cfg.DevServer.Storage.Bucket != "env-bucket" || cfg.DevServer.Password != "hunter2" {
		t.Errorf("unexpected devserver config %+v", cfg.DevServer)
	}
}

func TestLoadRewritesLegacyPort(t *testing.T) {
	isolate(t)
	t.Setenv("AUDIONOTE_API_BASE_URL", "http://localhost:8080")

	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:20201" {
		t.Errorf("expected port rewritten, got %q", cfg.APIBaseURL)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "8080") {
		t.Errorf("expected one warning about port 8080, got %v", warnings)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)

	_, _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "api_base_url: [unclosed\n")

	_, _, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("expected YAML parse error, got %v", err)
	}
}

func TestLoadValidationFailure(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "upload:\n  strategy: carrier-pigeon\n")

	_, _, err := Load(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestConfigDir(t *testing.T) {
	base := isolate(t)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir failed: %v", err)
	}
	if dir != filepath.Join(base, "audionote") {
		t.Errorf("expected %s, got %s", filepath.Join(base, "audionote"), dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("expected directory to be created: %v", err)
	}
}

func TestConfigDirOverride(t *testing.T) {
	isolate(t)
	want := filepath.Join(t.TempDir(), "custom")
	t.Setenv(DirEnv, want)

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath failed: %v", err)
	}
	if path != filepath.Join(want, "config.yaml") {
		t.Errorf("expected %s, got %s", filepath.Join(want, "config.yaml"), path)
	}
	if info, err := os.Stat(want); err != nil || !info.IsDir() {
		t.Errorf("expected override directory to be created: %v", err)
	}
}
