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

// Package config loads the audionote client configuration from a YAML file
// overlaid by environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/audionote/internal/tracing"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

const (
	// DefaultBaseURL is the backend address used when none is configured.
	DefaultBaseURL = "http://localhost:20201"

	// DefaultTimeout bounds every backend call except uploads.
	DefaultTimeout = 240 * time.Second

	// LegacyPort is the backend's old port; it is rewritten to BackendPort.
	LegacyPort = "8080"

	// BackendPort is the port the backend listens on.
	BackendPort = "20201"
)

// Upload strategies.
const (
	UploadDirect = "direct"
	UploadProxy  = "proxy"
)

// Credential store backends. These mirror the names accepted by
// credentials.Open.
var credentialBackends = []string{"file", "encrypted-file", "keychain", "env", "memory"}

// Config is the complete client configuration.
type Config struct {
	// APIBaseURL is the backend address.
	// Environment: AUDIONOTE_API_BASE_URL
	APIBaseURL string `yaml:"api_base_url"`

	// Timeout bounds each backend call. Uploads are never bounded.
	// Environment: AUDIONOTE_TIMEOUT
	Timeout time.Duration `yaml:"timeout"`

	// UserAgent is sent on every request.
	UserAgent string `yaml:"user_agent,omitempty"`

	Credentials CredentialsConfig `yaml:"credentials"`
	Upload      UploadConfig      `yaml:"upload"`
	Log         LogConfig         `yaml:"log"`
	Tracing     tracing.Config    `yaml:"tracing,omitempty"`
	DevServer   DevServerConfig   `yaml:"devserver,omitempty"`
}

// CredentialsConfig selects where the per-request credentials live.
type CredentialsConfig struct {
	// Backend is one of file, encrypted-file, keychain, env or memory.
	// Environment: AUDIONOTE_CREDENTIALS_BACKEND
	Backend string `yaml:"backend"`

	// Path overrides the credentials file location (file backends only).
	// Environment: AUDIONOTE_CREDENTIALS_PATH
	Path string `yaml:"path,omitempty"`
}

// UploadConfig controls how audio reaches storage.
type UploadConfig struct {
	// Strategy is direct (presigned PUT) or proxy (through the backend).
	// Environment: AUDIONOTE_UPLOAD_STRATEGY
	Strategy string `yaml:"strategy"`

	// Origin, when set, makes direct uploads send a CORS preflight as this
	// origin and require the storage response to allow it.
	// Environment: AUDIONOTE_UPLOAD_ORIGIN
	Origin string `yaml:"origin,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// DevServerConfig configures the local backend stand-in.
type DevServerConfig struct {
	// Addr is the listen address.
	// Environment: AUDIONOTE_DEVSERVER_ADDR
	Addr string `yaml:"addr"`

	// Password, when set, is required in the request-web-access-password header.
	// Environment: WEB_ACCESS_PASSWORD
	Password string `yaml:"password,omitempty"`

	// AllowedOrigins lists the CORS origins allowed to call the server.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`

	// PresignExpiry is how long issued upload URLs stay valid.
	PresignExpiry time.Duration `yaml:"presign_expiry"`

	// RateLimit caps /api/v1 requests per second across all clients.
	// Zero disables the limit.
	RateLimit float64 `yaml:"rate_limit,omitempty"`

	// Storage holds fallbacks for requests without x-storage-* headers.
	Storage StorageConfig `yaml:"storage,omitempty"`
}

// StorageConfig describes an S3-compatible bucket.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`

	// UsePathStyle addresses the bucket in the path instead of the host.
	UsePathStyle bool `yaml:"use_path_style,omitempty"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		APIBaseURL: DefaultBaseURL,
		Timeout:    DefaultTimeout,
		UserAgent:  "audionote-client/1.0",
		Credentials: CredentialsConfig{
			Backend: "file",
		},
		Upload: UploadConfig{
			Strategy: UploadDirect,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tracing: tracing.Config{
			Exporter:    tracing.ExporterNone,
			ServiceName: "audionote",
		},
		DevServer: DevServerConfig{
			Addr:          ":" + BackendPort,
			PresignExpiry: time.Hour,
		},
	}
}

// Load reads configuration from configPath, then environment variables, and
// validates the result. Environment variables take precedence over the file.
//
// An empty configPath uses ConfigPath() and tolerates a missing file; an
// explicit path must exist. The returned warnings describe values that were
// corrected rather than rejected.
func Load(configPath string) (*Config, []string, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		p, err := ConfigPath()
		if err == nil {
			configPath = p
		}
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		}
	}

	cfg.applyDefaults()
	cfg.loadFromEnv()

	var warnings []string
	fixed, changed := NormalizeBaseURL(cfg.APIBaseURL)
	if changed {
		warnings = append(warnings, fmt.Sprintf("api_base_url uses legacy port %s, using %s instead", LegacyPort, fixed))
	}
	cfg.APIBaseURL = fixed

	if err := cfg.Validate(); err != nil {
		return nil, warnings, err
	}
	return cfg, warnings, nil
}

// NormalizeBaseURL trims trailing slashes and rewrites the legacy backend
// port. It reports whether the port was rewritten.
func NormalizeBaseURL(raw string) (string, bool) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Port() != LegacyPort {
		return raw, false
	}
	u.Host = net.JoinHostPort(u.Hostname(), BackendPort)
	return u.String(), true
}

// applyDefaults fills zero values so minimal files work.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.APIBaseURL == "" {
		c.APIBaseURL = defaults.APIBaseURL
	}
	if c.UserAgent == "" {
		c.UserAgent = defaults.UserAgent
	}
	if c.Credentials.Backend == "" {
		c.Credentials.Backend = defaults.Credentials.Backend
	}
	if c.Upload.Strategy == "" {
		c.Upload.Strategy = defaults.Upload.Strategy
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = defaults.Tracing.Exporter
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
	if c.DevServer.Addr == "" {
		c.DevServer.Addr = defaults.DevServer.Addr
	}
	if c.DevServer.PresignExpiry == 0 {
		c.DevServer.PresignExpiry = defaults.DevServer.PresignExpiry
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// loadFromEnv overlays environment variables. Unparseable values are ignored.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("AUDIONOTE_API_BASE_URL"); val != "" {
		c.APIBaseURL = val
	}
	if val := os.Getenv("AUDIONOTE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Timeout = d
		} else if secs, err := strconv.Atoi(val); err == nil {
			c.Timeout = time.Duration(secs) * time.Second
		}
	}
	if val := os.Getenv("AUDIONOTE_USER_AGENT"); val != "" {
		c.UserAgent = val
	}

	if val := os.Getenv("AUDIONOTE_CREDENTIALS_BACKEND"); val != "" {
		c.Credentials.Backend = strings.ToLower(val)
	}
	if val := os.Getenv("AUDIONOTE_CREDENTIALS_PATH"); val != "" {
		c.Credentials.Path = val
	}

	if val := os.Getenv("AUDIONOTE_UPLOAD_STRATEGY"); val != "" {
		c.Upload.Strategy = strings.ToLower(val)
	}
	if val := os.Getenv("AUDIONOTE_UPLOAD_ORIGIN"); val != "" {
		c.Upload.Origin = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}

	if val := os.Getenv("AUDIONOTE_TRACING_EXPORTER"); val != "" {
		c.Tracing.Exporter = strings.ToLower(val)
	}
	if val := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); val != "" {
		c.Tracing.Endpoint = val
	}

	if val := os.Getenv("AUDIONOTE_DEVSERVER_ADDR"); val != "" {
		c.DevServer.Addr = val
	}
	if val := os.Getenv("WEB_ACCESS_PASSWORD"); val != "" {
		c.DevServer.Password = val
	}
	if val := os.Getenv("STORAGE_ENDPOINT"); val != "" {
		c.DevServer.Storage.Endpoint = val
	}
	if val := os.Getenv("STORAGE_REGION"); val != "" {
		c.DevServer.Storage.Region = val
	}
	if val := os.Getenv("STORAGE_BUCKET"); val != "" {
		c.DevServer.Storage.Bucket = val
	}
	if val := os.Getenv("STORAGE_ACCESS_KEY"); val != "" {
		c.DevServer.Storage.AccessKey = val
	}
	if val := os.Getenv("STORAGE_SECRET_KEY"); val != "" {
		c.DevServer.Storage.SecretKey = val
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	u, err := url.Parse(c.APIBaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Sprintf("api_base_url is not a valid URL: %v", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Sprintf("api_base_url must use http or https, got %q", c.APIBaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Sprintf("api_base_url must include a host, got %q", c.APIBaseURL))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Sprintf("timeout must not be negative, got %v", c.Timeout))
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		errs = append(errs, "user_agent is required")
	}

	if !contains(credentialBackends, c.Credentials.Backend) {
		errs = append(errs, fmt.Sprintf("credentials.backend must be one of [%s], got %q",
			strings.Join(credentialBackends, ", "), c.Credentials.Backend))
	}

	if c.Upload.Strategy != UploadDirect && c.Upload.Strategy != UploadProxy {
		errs = append(errs, fmt.Sprintf("upload.strategy must be one of [direct, proxy], got %q", c.Upload.Strategy))
	}
	if c.Upload.Origin != "" {
		if o, err := url.Parse(c.Upload.Origin); err != nil || o.Scheme == "" || o.Host == "" {
			errs = append(errs, fmt.Sprintf("upload.origin must be scheme://host, got %q", c.Upload.Origin))
		}
	}

	validLevels := []string{"trace", "debug", "info", "warn", "warning", "error"}
	if !contains(validLevels, c.Log.Level) {
		errs = append(errs, fmt.Sprintf("log.level must be one of [%s], got %q", strings.Join(validLevels, ", "), c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.DevServer.Addr == "" {
		errs = append(errs, "devserver.addr is required")
	}
	if c.DevServer.PresignExpiry <= 0 || c.DevServer.PresignExpiry > 7*24*time.Hour {
		errs = append(errs, fmt.Sprintf("devserver.presign_expiry must be between 1s and 168h, got %v", c.DevServer.PresignExpiry))
	}
	if c.DevServer.RateLimit < 0 {
		errs = append(errs, fmt.Sprintf("devserver.rate_limit must be >= 0, got %v", c.DevServer.RateLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
