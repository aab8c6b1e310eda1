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

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tombee/audionote/internal/log"
	"github.com/tombee/audionote/internal/tracing"
	apierrors "github.com/tombee/audionote/pkg/errors"
)

// Request describes one backend call.
type Request struct {
	// Method is the HTTP method. Empty means GET.
	Method string

	// Path is joined to the base URL. Absolute URLs are used as-is.
	Path string

	// Body is encoded as JSON, or as multipart/form-data when it is a *Form.
	Body any

	// Header holds caller headers. They win over defaults and injected credentials.
	Header http.Header

	// OnUploadProgress receives the bytes sent so far and the body size.
	// It is only called when the size is known.
	OnUploadProgress func(loaded, total int64)

	// NoTimeout disables the pipeline's per-request timeout.
	NoTimeout bool
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// prepare builds the outbound headers for req.
// Defaults come first, then caller headers. For multipart bodies the
// content-type is dropped before anything else touches the headers, leaving
// the encoder to supply the boundary-bearing value. Credential injection runs
// last and only fills headers that are still absent.
func prepare(ctx context.Context, req *Request, inj HeaderInjector) http.Header {
	h := http.Header{}
	h.Set("Accept", "application/json, text/plain, */*")
	if req.Body != nil {
		h.Set("Content-Type", "application/json")
	}
	for name, values := range req.Header {
		h[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}

	if _, ok := req.Body.(*Form); ok {
		h.Del("Content-Type")
	}

	if inj != nil {
		inj.Inject(ctx, h)
	}
	return h
}

// resolve joins path to the base URL unless it is already absolute.
func (p *Pipeline) resolve(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if path == "" {
		return p.baseURL
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return p.baseURL + path
}

// encodeBody returns the request body, its length (-1 when unknown) and the
// content-type the encoder requires, if any.
func encodeBody(body any) (io.Reader, int64, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, 0, "", nil
	case *Form:
		return b.encode()
	case []byte:
		return bytes.NewReader(b), int64(len(b)), "", nil
	case string:
		return strings.NewReader(b), int64(len(b)), "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, 0, "", fmt.Errorf("encode request body: %w", err)
		}
		return bytes.NewReader(data), int64(len(data)), "", nil
	}
}

// newHTTPRequest wraps http.NewRequestWithContext, closing body when the
// request cannot be built so a multipart encoder goroutine is released.
func newHTTPRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		if c, ok := body.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	return req, nil
}

// Request executes req and returns the success value: the envelope's data
// field for enveloped responses, the decoded body otherwise.
// Every failure is an *errors.APIError that has already reached the sink.
func (p *Pipeline) Request(ctx context.Context, req *Request) (any, error) {
	method := req.method()
	target := p.resolve(req.Path)
	start := time.Now()

	ctx, span := tracing.Start(ctx, "pipeline.request",
		attribute.String("http.method", method),
		attribute.String("http.route", req.Path),
	)

	value, apiErr := p.execute(ctx, method, target, req)

	outcome := "success"
	if apiErr != nil {
		outcome = "failure"
		span.SetAttributes(attribute.Int("http.status_code", apiErr.Status))
	}
	p.metrics.ObserveRequest(method, outcome, time.Since(start))

	if apiErr != nil {
		tracing.End(span, apiErr)
		return nil, p.fail(ctx, method, target, apiErr)
	}
	tracing.End(span, nil)
	return value, nil
}

func (p *Pipeline) execute(ctx context.Context, method, target string, req *Request) (any, *apierrors.APIError) {
	header := prepare(ctx, req, p.injector)

	body, length, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, apierrors.From(err)
	}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	if body != nil && req.OnUploadProgress != nil && length > 0 {
		body = newProgressReader(body, length, req.OnUploadProgress)
	}

	timeout := p.timeout
	if req.NoTimeout {
		timeout = 0
	}
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	httpReq, err := newHTTPRequest(callCtx, method, target, body)
	if err != nil {
		return nil, apierrors.From(err)
	}
	httpReq.Header = header
	if body != nil {
		httpReq.ContentLength = length
	}

	p.logger.Debug("sending request",
		log.MethodKey, method,
		log.URLKey, target,
		"multipart", contentType != "")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, noResponse(err, timeout)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, noResponse(err, timeout)
		}
		return nil, apierrors.NewAPIError(apierrors.KindTransport, resp.StatusCode,
			transportMessage(err), nil).WithCause(err)
	}

	log.Trace(ctx, p.logger, "received response",
		slog.Int(log.StatusKey, resp.StatusCode),
		slog.Int("bytes", len(raw)))

	return p.interpret(ctx, resp.StatusCode, raw)
}

// noResponse classifies a failure where no response was received.
func noResponse(err error, timeout time.Duration) *apierrors.APIError {
	switch {
	case errors.Is(err, context.Canceled):
		return apierrors.NewAPIError(apierrors.KindCancelled, 0, "request cancelled", nil).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		msg := "timeout exceeded"
		if timeout > 0 {
			msg = fmt.Sprintf("timeout of %dms exceeded", timeout.Milliseconds())
		}
		return apierrors.NewAPIError(apierrors.KindTransport, http.StatusInternalServerError, msg, nil).WithCause(err)
	default:
		return apierrors.NewAPIError(apierrors.KindTransport, http.StatusInternalServerError, transportMessage(err), nil).WithCause(err)
	}
}

// transportMessage strips net/http's "Method URL:" prefix from err.
func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if err == nil || err.Error() == "" {
		return apierrors.DefaultNetworkMessage
	}
	return err.Error()
}

// fail reports apiErr to the sink and the log, then returns it.
func (p *Pipeline) fail(ctx context.Context, method, target string, apiErr *apierrors.APIError) error {
	p.metrics.Failure(string(apiErr.Kind))
	p.logger.ErrorContext(ctx, "request failed",
		log.MethodKey, method,
		log.URLKey, target,
		log.StatusKey, apiErr.Status,
		"kind", apiErr.Kind,
		"message", apiErr.Message)
	p.sink.Error(apiErr.Message)
	return apiErr
}
