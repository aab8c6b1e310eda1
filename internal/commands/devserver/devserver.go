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

// Package devserver implements the devserver command.
package devserver

import (
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/audionote/internal/commands/shared"
	"github.com/tombee/audionote/internal/devserver"
)

// NewCommand creates the devserver command.
func NewCommand() *cobra.Command {
	var (
		addr           string
		allowedOrigins []string
		presignExpiry  time.Duration
		rateLimit      float64
	)

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local backend for the upload endpoints",
		Long: `Run a local implementation of the upload endpoints backed by any
S3-compatible bucket:

  POST /api/v1/files/upload-urls   issue a presigned PUT URL
  POST /api/v1/files/upload        accept a multipart upload and store it
  GET  /health, /metrics

Storage settings come from the x-storage-* request headers, falling back to
devserver.storage in the configuration (or STORAGE_* variables). When
WEB_ACCESS_PASSWORD is set, /api/v1 requires it.`,
		Example: `  STORAGE_BUCKET=notes STORAGE_ENDPOINT=http://localhost:9000 audionote devserver
  audionote devserver --addr 127.0.0.1:20201 --allowed-origin http://localhost:3000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, addr, allowedOrigins, presignExpiry, rateLimit)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: devserver.addr)")
	cmd.Flags().StringSliceVar(&allowedOrigins, "allowed-origin", nil, "CORS origin allowed to call the server (repeatable)")
	cmd.Flags().DurationVar(&presignExpiry, "presign-expiry", 0, "Lifetime of issued upload URLs (default: devserver.presign_expiry)")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 0, "Maximum /api/v1 requests per second (default: devserver.rate_limit; 0 is unlimited)")

	return cmd
}

func run(cmd *cobra.Command, addr string, allowedOrigins []string, presignExpiry time.Duration, rateLimit float64) error {
	if presignExpiry < 0 || rateLimit < 0 {
		return shared.NewInvalidInputError("--presign-expiry and --rate-limit must be >= 0", nil)
	}

	cfg, err := shared.LoadConfig(cmd)
	if err != nil {
		return err
	}
	logger := shared.NewLogger(cmd, cfg)

	serverCfg := cfg.DevServer
	if addr != "" {
		serverCfg.Addr = addr
	}
	if len(allowedOrigins) > 0 {
		serverCfg.AllowedOrigins = allowedOrigins
	}
	if presignExpiry > 0 {
		serverCfg.PresignExpiry = presignExpiry
	}
	if rateLimit > 0 {
		serverCfg.RateLimit = rateLimit
	}

	ln, err := net.Listen("tcp", serverCfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", serverCfg.Addr, err)
	}

	if !shared.GetQuiet() {
		fmt.Fprintln(cmd.ErrOrStderr(), shared.RenderOK("dev server listening on http://"+ln.Addr().String()))
		if serverCfg.Password == "" {
			fmt.Fprintln(cmd.ErrOrStderr(), shared.RenderWarn("WEB_ACCESS_PASSWORD is not set; /api/v1 is open"))
		}
	}

	srv := devserver.New(serverCfg, devserver.WithLogger(logger))
	return srv.Serve(cmd.Context(), ln)
}
