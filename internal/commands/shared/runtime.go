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

package shared

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/audionote/internal/api"
	"github.com/tombee/audionote/internal/config"
	"github.com/tombee/audionote/internal/credentials"
	"github.com/tombee/audionote/internal/log"
	"github.com/tombee/audionote/internal/metrics"
	"github.com/tombee/audionote/internal/pipeline"
	"github.com/tombee/audionote/internal/tracing"
	"github.com/tombee/audionote/internal/upload"
	"github.com/tombee/audionote/pkg/httpclient"
)

// Runtime holds everything a command needs to talk to the backend.
type Runtime struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    credentials.Store
	Pipeline *pipeline.Pipeline
	API      *api.Client
	Uploader *upload.Coordinator

	tracer *tracing.Provider
}

// LoadConfig loads the configuration named by --config, applies --api-url
// and prints any warnings to the command's error stream.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, warnings, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	if u := GetAPIURL(); u != "" {
		cfg.APIBaseURL, _ = config.NormalizeBaseURL(u)
		if err := cfg.Validate(); err != nil {
			return nil, NewInvalidInputError("invalid --api-url", err)
		}
	}
	if !GetQuiet() {
		for _, w := range warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), RenderWarn(w))
		}
	}
	return cfg, nil
}

// NewLogger builds the command logger from cfg and the verbosity flags.
func NewLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := cfg.Log.Level
	switch {
	case GetVerbose():
		level = "debug"
	case GetQuiet():
		level = "error"
	}

	return log.New(&log.Config{
		Level:  level,
		Format: log.Format(cfg.Log.Format),
		Output: cmd.ErrOrStderr(),
	})
}

// OpenStore opens the credential store selected in cfg.
func OpenStore(cfg *config.Config) (credentials.Store, error) {
	store, err := credentials.Open(cfg.Credentials.Backend, cfg.Credentials.Path)
	if err != nil {
		return nil, NewConfigError("failed to open credential store", err)
	}
	return store, nil
}

// NewRuntime loads configuration and wires the request pipeline, the API
// client and the upload coordinator. Callers must Close the runtime.
func NewRuntime(cmd *cobra.Command) (*Runtime, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := LoadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cmd, cfg)

	store, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Tracing.ServiceVersion == "" {
		cfg.Tracing.ServiceVersion = version
	}
	tracer, err := tracing.Setup(ctx, cfg.Tracing, cmd.ErrOrStderr())
	if err != nil {
		return nil, NewConfigError("failed to set up tracing", err)
	}

	httpCfg := httpclient.DefaultConfig()
	httpCfg.UserAgent = cfg.UserAgent
	httpCfg.Logger = logger
	client, err := httpclient.New(httpCfg)
	if err != nil {
		return nil, NewConfigError("failed to create HTTP client", err)
	}

	errorReporter.reset(cmd.ErrOrStderr())
	m := metrics.New(nil)

	p, err := pipeline.New(
		pipeline.Config{BaseURL: cfg.APIBaseURL, Timeout: cfg.Timeout},
		pipeline.WithHTTPClient(client),
		pipeline.WithInjector(credentials.NewInjector(store, logger)),
		pipeline.WithSink(errorReporter),
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
	)
	if err != nil {
		return nil, NewConfigError("failed to create request pipeline", err)
	}

	uploader := upload.New(p, client, logger,
		upload.WithOrigin(cfg.Upload.Origin),
		upload.WithSink(errorReporter),
		upload.WithMetrics(m),
	)

	return &Runtime{
		Config:   cfg,
		Logger:   logger,
		Store:    store,
		Pipeline: p,
		API:      api.New(p),
		Uploader: uploader,
		tracer:   tracer,
	}, nil
}

// Close flushes pending spans.
func (r *Runtime) Close() {
	if r == nil || r.tracer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.tracer.Shutdown(ctx); err != nil {
		r.Logger.Warn("failed to flush traces", log.Error(err))
	}
}
