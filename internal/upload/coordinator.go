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

// Package upload moves audio payloads to storage, either directly to a
// presigned URL or through the backend's multipart proxy endpoint.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tombee/audionote/internal/log"
	"github.com/tombee/audionote/internal/metrics"
	"github.com/tombee/audionote/internal/notify"
	"github.com/tombee/audionote/internal/pipeline"
	"github.com/tombee/audionote/internal/tracing"
	apierrors "github.com/tombee/audionote/pkg/errors"
)

// ProxyPath is the backend endpoint that accepts multipart uploads.
const ProxyPath = "/api/v1/files/upload"

// CORSMessage is returned when storage refuses a direct upload before any
// response could be read.
const CORSMessage = "upload failed: CORS error. Check the storage bucket's CORS configuration and make sure the allowed origins, methods (PUT) and request headers (content-type) include this client."

// Strategy selects how a payload reaches storage.
type Strategy string

const (
	// StrategyDirect PUTs the payload to a presigned storage URL.
	StrategyDirect Strategy = "direct"

	// StrategyProxy posts the payload to the backend, which stores it.
	StrategyProxy Strategy = "proxy"
)

// ProgressFunc receives upload progress as a percentage in [0,100].
type ProgressFunc func(percent int)

// Result is the outcome of a successful upload.
type Result struct {
	Success  bool     `json:"success"`
	Status   int      `json:"status,omitempty"`
	Strategy Strategy `json:"strategy"`
}

// URLIssuer issues presigned upload URLs. *api.Files implements it.
type URLIssuer interface {
	GetAudioUploadURL(ctx context.Context, filename string) (string, error)
}

// Coordinator runs uploads. It is safe for concurrent use.
type Coordinator struct {
	pipeline *pipeline.Pipeline
	client   *http.Client
	logger   *slog.Logger
	sink     notify.Sink
	metrics  *metrics.Metrics
	origin   string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithOrigin makes direct uploads behave like a browser on origin: a CORS
// preflight is sent first and the response must allow the origin.
func WithOrigin(origin string) Option {
	return func(c *Coordinator) {
		c.origin = strings.TrimRight(origin, "/")
	}
}

// WithSink sets where direct-upload failures are reported. Proxied uploads
// report through the pipeline's own sink.
func WithSink(s notify.Sink) Option {
	return func(c *Coordinator) {
		c.sink = s
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// New creates a Coordinator. Direct uploads use client, which should carry no
// total timeout; proxied uploads go through p.
func New(p *pipeline.Pipeline, client *http.Client, logger *slog.Logger, opts ...Option) *Coordinator {
	if client == nil {
		client = http.DefaultClient
	}
	c := &Coordinator{
		pipeline: p,
		client:   client,
		logger:   log.WithComponent(log.OrDefault(logger), "upload"),
		sink:     notify.Nop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends blob with strategy. Direct uploads first ask issuer for a
// presigned URL for blob.Name.
func (c *Coordinator) Upload(ctx context.Context, issuer URLIssuer, strategy Strategy, blob *Blob, onProgress ProgressFunc) (*Result, error) {
	switch strategy {
	case StrategyProxy:
		return c.UploadViaProxy(ctx, blob.Name, blob, onProgress)
	case StrategyDirect, "":
		uploadURL, err := issuer.GetAudioUploadURL(ctx, blob.Name)
		if err != nil {
			return nil, err
		}
		return c.UploadDirect(ctx, uploadURL, blob, onProgress)
	default:
		msg := fmt.Sprintf("unknown upload strategy %q", strategy)
		return nil, apierrors.NewAPIError(apierrors.KindLocal, http.StatusInternalServerError, msg, nil)
	}
}

// UploadDirect PUTs blob to uploadURL. No timeout applies; cancel ctx to abort.
func (c *Coordinator) UploadDirect(ctx context.Context, uploadURL string, blob *Blob, onProgress ProgressFunc) (*Result, error) {
	ctx, span := tracing.Start(ctx, "upload.direct",
		attribute.String("upload.filename", blob.Name),
		attribute.Int64("upload.size", blob.Size))
	start := time.Now()

	result, sent, apiErr := c.putDirect(ctx, uploadURL, blob, onProgress)

	if apiErr != nil {
		tracing.End(span, apiErr)
		c.metrics.Upload(string(StrategyDirect), "failure", sent)
		c.metrics.Failure(string(apiErr.Kind))
		c.logger.ErrorContext(ctx, "direct upload failed",
			log.FilenameKey, blob.Name,
			log.StatusKey, apiErr.Status,
			"kind", apiErr.Kind,
			"message", apiErr.Message)
		c.sink.Error(apiErr.Message)
		return nil, apiErr
	}

	tracing.End(span, nil)
	c.metrics.Upload(string(StrategyDirect), "success", sent)
	c.logger.Info("direct upload complete",
		log.FilenameKey, blob.Name,
		log.StatusKey, result.Status,
		log.DurationKey, time.Since(start).Milliseconds())
	return result, nil
}

func (c *Coordinator) putDirect(ctx context.Context, uploadURL string, blob *Blob, onProgress ProgressFunc) (*Result, int64, *apierrors.APIError) {
	contentType := blob.contentType()

	if c.origin != "" {
		if err := c.preflight(ctx, uploadURL); err != nil {
			if ctx.Err() != nil {
				return nil, 0, cancelled(ctx.Err())
			}
			return nil, 0, corsError(err)
		}
	}

	body := &countingReader{r: blob.Reader, total: blob.Size, onProgress: onProgress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return nil, 0, apierrors.NewAPIError(apierrors.KindLocal, http.StatusInternalServerError, err.Error(), nil).WithCause(err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = blob.Size
	if blob.Size == 0 {
		req.Body = http.NoBody
	}
	if c.origin != "" {
		req.Header.Set("Origin", c.origin)
	}

	c.logger.Debug("starting direct upload",
		log.FilenameKey, blob.Name,
		"content_type", contentType,
		"size", blob.Size)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, body.loaded.Load(), cancelled(err)
		}
		return nil, body.loaded.Load(), corsError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, body.loaded.Load(), cancelled(err)
		}
		msg := "network error, upload failed: " + statusText(resp)
		return nil, body.loaded.Load(), apierrors.NewAPIError(apierrors.KindTransport, resp.StatusCode, msg, nil).WithCause(err)
	}

	if c.origin != "" && !allowsOrigin(resp.Header, c.origin) {
		return nil, body.loaded.Load(), corsError(fmt.Errorf("response from %s does not allow origin %s", resp.Request.URL.Host, c.origin))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(raw))
		if detail == "" {
			detail = statusText(resp)
		}
		msg := fmt.Sprintf("upload failed: %d - %s", resp.StatusCode, detail)
		return nil, body.loaded.Load(), apierrors.NewAPIError(apierrors.KindStorage, resp.StatusCode, msg, string(raw))
	}

	return &Result{Success: true, Status: resp.StatusCode, Strategy: StrategyDirect}, body.loaded.Load(), nil
}

// UploadViaProxy posts blob as multipart form data to the backend. The file
// part carries filename and the same name is repeated as a plain field.
// Failures come back unchanged from the pipeline.
func (c *Coordinator) UploadViaProxy(ctx context.Context, filename string, blob *Blob, onProgress ProgressFunc) (*Result, error) {
	ctx, span := tracing.Start(ctx, "upload.proxy",
		attribute.String("upload.filename", filename),
		attribute.Int64("upload.size", blob.Size))

	size := blob.Size
	if size < 0 {
		size = -1
	}
	form := pipeline.NewForm().
		AddFile("file", filename, blob.Type, blob.Reader, size).
		AddField("filename", filename)

	var sent atomic.Int64
	_, err := c.pipeline.Request(ctx, &pipeline.Request{
		Method:    http.MethodPost,
		Path:      ProxyPath,
		Body:      form,
		NoTimeout: true,
		OnUploadProgress: func(loaded, total int64) {
			sent.Store(loaded)
			if pct, ok := pipeline.Percent(loaded, total); ok && onProgress != nil {
				onProgress(pct)
			}
		},
	})
	tracing.End(span, err)

	if err != nil {
		c.metrics.Upload(string(StrategyProxy), "failure", sent.Load())
		return nil, err
	}

	c.metrics.Upload(string(StrategyProxy), "success", sent.Load())
	c.logger.Info("proxy upload complete", log.FilenameKey, filename)
	return &Result{Success: true, Status: http.StatusOK, Strategy: StrategyProxy}, nil
}

// preflight sends the CORS preflight a browser would send before the PUT.
func (c *Coordinator) preflight(ctx context.Context, uploadURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, uploadURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Origin", c.origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	req.Header.Set("Access-Control-Request-Headers", "content-type")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("preflight returned %d", resp.StatusCode)
	}
	if !allowsOrigin(resp.Header, c.origin) {
		return fmt.Errorf("preflight does not allow origin %s", c.origin)
	}
	if !allowsMethod(resp.Header, http.MethodPut) {
		return fmt.Errorf("preflight does not allow method PUT")
	}
	return nil
}

func allowsOrigin(h http.Header, origin string) bool {
	allowed := h.Get("Access-Control-Allow-Origin")
	return allowed == "*" || strings.EqualFold(allowed, origin)
}

func allowsMethod(h http.Header, method string) bool {
	for _, v := range h.Values("Access-Control-Allow-Methods") {
		for _, m := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(m), method) {
				return true
			}
		}
	}
	return false
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "unknown error"
}

func corsError(cause error) *apierrors.APIError {
	return apierrors.NewAPIError(apierrors.KindCORS, 0, CORSMessage, nil).WithCause(cause)
}

func cancelled(cause error) *apierrors.APIError {
	return apierrors.NewAPIError(apierrors.KindCancelled, 0, "upload cancelled", nil).WithCause(cause)
}

// countingReader reports percent progress against a known total.
type countingReader struct {
	r          io.Reader
	total      int64
	loaded     atomic.Int64
	onProgress ProgressFunc
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		loaded := c.loaded.Add(int64(n))
		if c.onProgress != nil {
			if pct, ok := pipeline.Percent(loaded, c.total); ok {
				c.onProgress(pct)
			}
		}
	}
	return n, err
}
