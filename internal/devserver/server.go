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

// Package devserver is a local stand-in for the audio-note backend's file
// endpoints. It issues presigned S3 upload URLs and stores files posted to
// the proxy endpoint, using storage settings from the x-storage-* request
// headers or its own configuration.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path"
	"math"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/tombee/audionote/internal/config"
	"github.com/tombee/audionote/internal/log"
	"github.com/tombee/audionote/internal/metrics"
	"github.com/tombee/audionote/internal/upload"
)

// PasswordHeader carries the web access password.
const PasswordHeader = "request-web-access-password"

const (
	// maxUploadMemory is how much of a multipart upload is held in memory
	// before spilling to a temp file.
	maxUploadMemory = 32 << 20

	shutdownTimeout = 10 * time.Second
)

// Server serves the file endpoints.
type Server struct {
	cfg      config.DevServerConfig
	logger   *slog.Logger
	storage  StorageFactory
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	handler  http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithStorage replaces the S3 store factory.
func WithStorage(f StorageFactory) Option {
	return func(s *Server) {
		s.storage = f
	}
}

// New creates a Server.
func New(cfg config.DevServerConfig, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		storage:  NewS3Store,
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.WithComponent(log.OrDefault(s.logger), "devserver")
	s.metrics = metrics.New(s.registry)
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), int(math.Ceil(cfg.RateLimit)))
	}
	s.handler = s.routes()
	return s
}

// Handler returns the root handler, including CORS.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(s.logger))

	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimit)
	api.Use(s.requirePassword)
	api.HandleFunc("/files/upload-urls", s.handleUploadURL).Methods(http.MethodPost)
	api.HandleFunc("/files/upload", s.handleUpload).Methods(http.MethodPost)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(router)
}

// ListenAndServe serves on the configured address until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("dev server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("dev server shutdown error", log.Error(err))
		return err
	}
	return nil
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeFailure(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requirePassword(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Password != "" && r.Header.Get(PasswordHeader) != s.cfg.Password {
			writeFailure(w, http.StatusUnauthorized, "invalid web access password")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type fileNameRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	var req fileNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "request body must be JSON with a filename")
		return
	}
	key, err := objectKey(req.Filename)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	store, err := s.storage(r.Context(), storageSettings(r, s.cfg.Storage))
	if err != nil {
		s.storageFailure(w, r, "failed to generate upload URL", err)
		return
	}

	url, err := store.PresignPut(r.Context(), key, contentTypeFor(key), s.cfg.PresignExpiry)
	if err != nil {
		s.storageFailure(w, r, "failed to generate upload URL", err)
		return
	}

	s.metrics.Upload(string(upload.StrategyDirect), "issued", 0)
	s.logger.Info("upload URL created", log.FilenameKey, key)
	writeSuccess(w, map[string]string{"upload_url": url}, "Upload URL created successfully")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "request must be multipart form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	key, err := objectKey(r.FormValue("filename"))
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "file is required")
		return
	}
	defer file.Close()

	store, err := s.storage(r.Context(), storageSettings(r, s.cfg.Storage))
	if err != nil {
		s.storageFailure(w, r, "failed to upload file", err)
		return
	}

	if err := store.Put(r.Context(), key, contentTypeFor(key), file, header.Size); err != nil {
		s.metrics.Upload(string(upload.StrategyProxy), "failure", 0)
		s.storageFailure(w, r, "failed to upload file", err)
		return
	}

	s.metrics.Upload(string(upload.StrategyProxy), "success", header.Size)
	s.logger.Info("file uploaded", log.FilenameKey, key, "size", header.Size)
	writeSuccess(w, map[string]string{"filename": key}, "File uploaded successfully")
}

func (s *Server) storageFailure(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.ErrorContext(r.Context(), msg, log.Error(err))
	writeFailure(w, http.StatusBadGateway, fmt.Sprintf("%s: %v", msg, err))
}

// objectKey validates a client-supplied file name for use as an object key.
func objectKey(filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", errors.New("filename is required")
	}
	if strings.Contains(filename, "..") || strings.HasPrefix(filename, "/") {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return path.Clean(filename), nil
}

// contentTypeFor mirrors the type the client declares for the same name, so
// presigned URLs verify.
func contentTypeFor(key string) string {
	if ct := upload.ContentTypeFor(key); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
