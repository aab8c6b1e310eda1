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

// Package pipeline executes one logical backend request and guarantees either
// a success value or a single *errors.APIError.
//
// A request passes through two pure stages composed around one transport
// call: prepare builds the outbound headers (multipart content-type removal,
// then credential injection) and interpret classifies the response (envelope
// unwrapping, business failures, message extraction). Every failure is
// reported to the notification sink exactly once before it is returned.
// Nothing is retried, cached or deduplicated.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tombee/audionote/internal/jq"
	"github.com/tombee/audionote/internal/log"
	"github.com/tombee/audionote/internal/metrics"
	"github.com/tombee/audionote/internal/notify"
	apierrors "github.com/tombee/audionote/pkg/errors"
)

// DefaultTimeout bounds every request that does not set NoTimeout.
const DefaultTimeout = 240 * time.Second

// Config configures a Pipeline.
type Config struct {
	// BaseURL is prepended to relative request paths.
	BaseURL string

	// Timeout is the per-request deadline. 0 disables it.
	Timeout time.Duration
}

// DefaultConfig returns a Config pointing at a local backend.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:20201",
		Timeout: DefaultTimeout,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", c.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url must be http or https, got %q", c.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base url %q has no host", c.BaseURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}
	return nil
}

// HeaderInjector adds headers to an outbound request without overriding
// headers already present. *credentials.Injector implements it.
type HeaderInjector interface {
	Inject(ctx context.Context, h http.Header)
}

// Pipeline is safe for concurrent use; it holds no per-request state.
type Pipeline struct {
	baseURL  string
	timeout  time.Duration
	client   *http.Client
	injector HeaderInjector
	sink     notify.Sink
	logger   *slog.Logger
	metrics  *metrics.Metrics
	jq       *jq.Executor
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHTTPClient sets the transport. Default: http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) {
		p.client = c
	}
}

// WithInjector sets the credential injector. Default: none.
func WithInjector(i HeaderInjector) Option {
	return func(p *Pipeline) {
		p.injector = i
	}
}

// WithSink sets the failure notification sink. Default: notify.Nop.
func WithSink(s notify.Sink) Option {
	return func(p *Pipeline) {
		p.sink = s
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithMetrics sets the metrics collectors. Default: none.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New creates a Pipeline. Returns an error if cfg is invalid.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pipeline{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		jq:      jq.NewExecutor(jq.DefaultTimeout),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		p.client = http.DefaultClient
	}
	if p.sink == nil {
		p.sink = notify.Nop
	}
	p.logger = log.WithComponent(log.OrDefault(p.logger), "pipeline")

	return p, nil
}

// BaseURL returns the configured base URL without a trailing slash.
func (p *Pipeline) BaseURL() string {
	return p.baseURL
}

// Do runs req and decodes the success value into T.
// A nil success value yields the zero T.
func Do[T any](ctx context.Context, p *Pipeline, req *Request) (T, error) {
	var out T

	v, err := p.Request(ctx, req)
	if err != nil {
		return out, err
	}
	if v == nil {
		return out, nil
	}

	raw, err := json.Marshal(v)
	if err == nil {
		err = json.Unmarshal(raw, &out)
	}
	if err != nil {
		apiErr := apierrors.NewAPIError(apierrors.KindLocal, http.StatusInternalServerError,
			fmt.Sprintf("unexpected response shape: %v", err), v).WithCause(err)
		return out, p.fail(ctx, req.Method, p.resolve(req.Path), apiErr)
	}
	return out, nil
}
