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

package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/cors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/audionote/internal/metrics"
	"github.com/tombee/audionote/internal/notify"
	"github.com/tombee/audionote/internal/pipeline"
	apierrors "github.com/tombee/audionote/pkg/errors"
)

const testOrigin = "http://app.local"

// storageServer records what a presigned PUT delivered.
type storageServer struct {
	mu          sync.Mutex
	method      string
	contentType string
	origin      string
	body        []byte
}

func (s *storageServer) handler(status int, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.method = r.Method
		s.contentType = r.Header.Get("Content-Type")
		s.origin = r.Header.Get("Origin")
		s.body = body
		s.mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}
}

// chunkReader yields at most size bytes per Read.
type chunkReader struct {
	r    io.Reader
	size int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(p) > c.size {
		p = p[:c.size]
	}
	return c.r.Read(p)
}

type progressLog struct {
	mu     sync.Mutex
	values []int
}

func (p *progressLog) record(pct int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, pct)
}

func (p *progressLog) all() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.values...)
}

func newCoordinator(t *testing.T, backend http.Handler, opts ...Option) (*Coordinator, *notify.Recorder, *notify.Recorder) {
	t.Helper()
	if backend == nil {
		backend = http.NotFoundHandler()
	}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	pipelineSink := &notify.Recorder{}
	cfg := pipeline.DefaultConfig()
	cfg.BaseURL = server.URL
	p, err := pipeline.New(cfg, pipeline.WithSink(pipelineSink))
	require.NoError(t, err)

	uploadSink := &notify.Recorder{}
	opts = append([]Option{WithSink(uploadSink), WithMetrics(metrics.New(nil))}, opts...)
	return New(p, &http.Client{}, nil, opts...), uploadSink, pipelineSink
}

func requireAPIError(t *testing.T, err error) *apierrors.APIError {
	t.Helper()
	require.Error(t, err)
	var apiErr *apierrors.APIError
	require.True(t, errors.As(err, &apiErr), "expected *APIError, got %T", err)
	return apiErr
}

func TestUploadDirect_Success(t *testing.T) {
	store := &storageServer{}
	server := httptest.NewServer(store.handler(http.StatusOK, ""))
	defer server.Close()

	c, sink, _ := newCoordinator(t, nil)
	payload := strings.Repeat("a", 200)
	blob := &Blob{
		Name:   "meeting.wav",
		Type:   "audio/wav",
		Size:   200,
		Reader: &chunkReader{r: strings.NewReader(payload), size: 50},
	}

	progress := &progressLog{}
	result, err := c.UploadDirect(context.Background(), server.URL+"/audio/meeting.wav?X-Amz-Signature=abc", blob, progress.record)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.Status)
	assert.Equal(t, StrategyDirect, result.Strategy)
	assert.Equal(t, http.MethodPut, store.method)
	assert.Equal(t, "audio/wav", store.contentType)
	assert.Equal(t, payload, string(store.body))
	assert.Equal(t, []int{25, 50, 75, 100}, progress.all())
	assert.Empty(t, sink.Messages())
}

func TestUploadDirect_DefaultContentType(t *testing.T) {
	store := &storageServer{}
	server := httptest.NewServer(store.handler(http.StatusOK, ""))
	defer server.Close()

	c, _, _ := newCoordinator(t, nil)
	_, err := c.UploadDirect(context.Background(), server.URL, NewBlob("memo", "", []byte("abc")), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultContentType, store.contentType)
}

func TestUploadDirect_StorageRejects(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		reply   string
		wantMsg string
	}{
		{name: "body text", status: http.StatusForbidden, reply: "Forbidden", wantMsg: "upload failed: 403 - Forbidden"},
		{name: "xml body", status: http.StatusForbidden, reply: "<Error><Code>SignatureDoesNotMatch</Code></Error>", wantMsg: "upload failed: 403 - <Error><Code>SignatureDoesNotMatch</Code></Error>"},
		{name: "empty body uses status text", status: http.StatusBadRequest, reply: "", wantMsg: "upload failed: 400 - Bad Request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &storageServer{}
			server := httptest.NewServer(store.handler(tt.status, tt.reply))
			defer server.Close()

			c, sink, _ := newCoordinator(t, nil)
			result, err := c.UploadDirect(context.Background(), server.URL, NewBlob("a.mp3", "audio/mpeg", []byte("abc")), nil)
			assert.Nil(t, result)

			apiErr := requireAPIError(t, err)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, apierrors.KindStorage, apiErr.Kind)
			assert.Equal(t, []string{tt.wantMsg}, sink.Messages())
		})
	}
}

func TestUploadDirect_NetworkFailureReportsCORS(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL
	server.Close()

	c, sink, _ := newCoordinator(t, nil)
	_, err := c.UploadDirect(context.Background(), target, NewBlob("a.mp3", "", []byte("abc")), nil)

	apiErr := requireAPIError(t, err)
	assert.Equal(t, CORSMessage, apiErr.Message)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, apierrors.KindCORS, apiErr.Kind)
	assert.Contains(t, apiErr.Suggestion(), "CORS")
	assert.Equal(t, []string{CORSMessage}, sink.Messages())
}

func TestUploadDirect_Cancelled(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		close(started)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	c, _, _ := newCoordinator(t, nil)
	_, err := c.UploadDirect(ctx, server.URL, NewBlob("a.mp3", "", []byte("abc")), nil)

	apiErr := requireAPIError(t, err)
	assert.Equal(t, "upload cancelled", apiErr.Message)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, apierrors.KindCancelled, apiErr.Kind)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestUploadDirect_CORSPreflight(t *testing.T) {
	newStorage := func(allowed string) (*storageServer, *httptest.Server) {
		store := &storageServer{}
		policy := cors.New(cors.Options{
			AllowedOrigins: []string{allowed},
			AllowedMethods: []string{http.MethodPut},
			AllowedHeaders: []string{"Content-Type"},
		})
		server := httptest.NewServer(policy.Handler(store.handler(http.StatusOK, "")))
		t.Cleanup(server.Close)
		return store, server
	}

	t.Run("allowed origin", func(t *testing.T) {
		store, server := newStorage(testOrigin)
		c, _, _ := newCoordinator(t, nil, WithOrigin(testOrigin+"/"))

		result, err := c.UploadDirect(context.Background(), server.URL, NewBlob("a.mp3", "audio/mpeg", []byte("abc")), nil)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, http.MethodPut, store.method)
		assert.Equal(t, testOrigin, store.origin)
	})

	t.Run("origin not allowed", func(t *testing.T) {
		store, server := newStorage("https://elsewhere.example")
		c, sink, _ := newCoordinator(t, nil, WithOrigin(testOrigin))

		_, err := c.UploadDirect(context.Background(), server.URL, NewBlob("a.mp3", "audio/mpeg", []byte("abc")), nil)
		apiErr := requireAPIError(t, err)
		assert.Equal(t, CORSMessage, apiErr.Message)
		assert.Equal(t, 0, apiErr.Status)
		assert.Empty(t, store.method, "PUT must not be sent after a failed preflight")
		assert.Len(t, sink.Messages(), 1)
	})
}

func TestUploadViaProxy(t *testing.T) {
	var gotFilename, gotPartName, gotContent string
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ProxyPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotFilename = r.FormValue("filename")
		f, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		content, _ := io.ReadAll(f)
		gotPartName = header.Filename
		gotContent = string(content)
		io.WriteString(w, `{"success":true}`)
	})

	c, sink, pipelineSink := newCoordinator(t, backend)
	progress := &progressLog{}
	result, err := c.UploadViaProxy(context.Background(), "standup.m4a", NewBlob("ignored.m4a", "audio/mp4", []byte("voice data")), progress.record)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, StrategyProxy, result.Strategy)
	assert.Equal(t, "standup.m4a", gotFilename)
	assert.Equal(t, "standup.m4a", gotPartName)
	assert.Equal(t, "voice data", gotContent)

	values := progress.all()
	require.NotEmpty(t, values)
	assert.Equal(t, 100, values[len(values)-1])
	assert.Empty(t, sink.Messages())
	assert.Empty(t, pipelineSink.Messages())
}

func TestUploadViaProxy_FailureComesFromPipeline(t *testing.T) {
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		io.WriteString(w, `{"success":false,"error":{"message":"file too large"}}`)
	})

	c, sink, pipelineSink := newCoordinator(t, backend)
	_, err := c.UploadViaProxy(context.Background(), "a.mp3", NewBlob("a.mp3", "audio/mpeg", []byte("abc")), nil)

	apiErr := requireAPIError(t, err)
	assert.Equal(t, "file too large", apiErr.Message)
	assert.Equal(t, apierrors.KindBusiness, apiErr.Kind)
	assert.Empty(t, sink.Messages())
	assert.Equal(t, []string{"file too large"}, pipelineSink.Messages())
}

type stubIssuer struct {
	url   string
	err   error
	asked string
}

func (s *stubIssuer) GetAudioUploadURL(ctx context.Context, filename string) (string, error) {
	s.asked = filename
	return s.url, s.err
}

func TestUpload_Strategies(t *testing.T) {
	store := &storageServer{}
	storage := httptest.NewServer(store.handler(http.StatusOK, ""))
	defer storage.Close()

	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		io.WriteString(w, `{"success":true}`)
	})
	c, _, _ := newCoordinator(t, backend)

	t.Run("direct asks the issuer", func(t *testing.T) {
		issuer := &stubIssuer{url: storage.URL + "/a.mp3"}
		result, err := c.Upload(context.Background(), issuer, StrategyDirect, NewBlob("a.mp3", "audio/mpeg", []byte("abc")), nil)
		require.NoError(t, err)
		assert.Equal(t, StrategyDirect, result.Strategy)
		assert.Equal(t, "a.mp3", issuer.asked)
		assert.Equal(t, "abc", string(store.body))
	})

	t.Run("issuer failure stops the upload", func(t *testing.T) {
		issuer := &stubIssuer{err: errors.New("failed to get upload url")}
		_, err := c.Upload(context.Background(), issuer, StrategyDirect, NewBlob("b.mp3", "", []byte("x")), nil)
		assert.EqualError(t, err, "failed to get upload url")
	})

	t.Run("proxy skips the issuer", func(t *testing.T) {
		issuer := &stubIssuer{}
		result, err := c.Upload(context.Background(), issuer, StrategyProxy, NewBlob("c.mp3", "", []byte("x")), nil)
		require.NoError(t, err)
		assert.Equal(t, StrategyProxy, result.Strategy)
		assert.Empty(t, issuer.asked)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := c.Upload(context.Background(), &stubIssuer{}, Strategy("carrier-pigeon"), NewBlob("d.mp3", "", nil), nil)
		apiErr := requireAPIError(t, err)
		assert.Equal(t, apierrors.KindLocal, apiErr.Kind)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
		assert.Contains(t, apiErr.Message, "unknown upload strategy")
	})
}

func TestContentTypeFor(t *testing.T) {
	assert.Equal(t, "audio/mpeg", ContentTypeFor("a.mp3"))
	assert.Equal(t, "audio/wav", ContentTypeFor("dir/B.WAV"))
	assert.Equal(t, "audio/mp4", ContentTypeFor("c.m4a"))
	assert.Empty(t, ContentTypeFor("notes.txt"))
}

func TestOpenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "interview.m4a")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o600))

	blob, err := OpenFile(path)
	require.NoError(t, err)
	defer blob.Close()

	assert.Equal(t, "interview.m4a", blob.Name)
	assert.Equal(t, "audio/mp4", blob.Type)
	assert.Equal(t, int64(10), blob.Size)

	_, err = OpenFile(dir)
	assert.ErrorContains(t, err, "is a directory")

	_, err = OpenFile(filepath.Join(dir, "missing.mp3"))
	assert.Error(t, err)
}

func TestCountingReader_LoadedReadFromAnotherGoroutine(t *testing.T) {
	var pcts []int
	body := &countingReader{
		r:          strings.NewReader("0123456789"),
		total:      10,
		onProgress: func(pct int) { pcts = append(pcts, pct) },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(io.Discard, io.LimitReader(body, 5))
		_, _ = io.Copy(io.Discard, body)
	}()
	<-done

	assert.Equal(t, int64(10), body.loaded.Load())
	assert.Equal(t, 100, pcts[len(pcts)-1])
}
