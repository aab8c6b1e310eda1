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

package devserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/audionote/internal/config"
)

func isolateAWS(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", dir+"/config")
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", dir+"/credentials")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_REGION", "")
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		bucket   string
		want     string
	}{
		{name: "adds scheme", endpoint: "s3.us-east-1.amazonaws.com", want: "https://s3.us-east-1.amazonaws.com"},
		{name: "keeps http", endpoint: "http://127.0.0.1:9000/", bucket: "audio", want: "http://127.0.0.1:9000"},
		{name: "strips bucket", endpoint: "https://notes-1370.cos.ap-beijing.myqcloud.com", bucket: "notes-1370", want: "https://cos.ap-beijing.myqcloud.com"},
		{name: "strips repeated bucket", endpoint: "notes.notes.cos.ap-beijing.myqcloud.com", bucket: "notes", want: "https://cos.ap-beijing.myqcloud.com"},
		{name: "other bucket untouched", endpoint: "https://other.cos.ap-beijing.myqcloud.com", bucket: "notes", want: "https://other.cos.ap-beijing.myqcloud.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeEndpoint(tt.endpoint, tt.bucket))
		})
	}
}

func TestStorageSettings(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set(HeaderStorageBucket, "header-bucket")
	r.Header.Set(HeaderStorageSecretKey, "header-secret")

	got := storageSettings(r, testStorage())

	assert.Equal(t, "header-bucket", got.Bucket)
	assert.Equal(t, "header-secret", got.SecretKey)
	assert.Equal(t, "AKIDSERVER", got.AccessKey)
	assert.Equal(t, "http://storage.test", got.Endpoint)
}

func TestNewS3Store_RequiresSettings(t *testing.T) {
	_, err := NewS3Store(context.Background(), config.StorageConfig{Endpoint: "http://x"})
	assert.ErrorContains(t, err, "access key, secret key, bucket not configured")
}

func TestS3Store_PresignPut(t *testing.T) {
	isolateAWS(t)

	store, err := NewS3Store(context.Background(), config.StorageConfig{
		Endpoint:     "http://127.0.0.1:9000",
		Bucket:       "audio",
		AccessKey:    "AKIDEXAMPLE",
		SecretKey:    "secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	raw, err := store.PresignPut(context.Background(), "memo.mp3", "audio/mpeg", 15*time.Minute)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()

	assert.Equal(t, "127.0.0.1:9000", u.Host)
	assert.Equal(t, "/audio/memo.mp3", u.Path)
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.Equal(t, "900", q.Get("X-Amz-Expires"))
	assert.Contains(t, q.Get("X-Amz-SignedHeaders"), "content-type")
	assert.True(t, strings.HasPrefix(q.Get("X-Amz-Credential"), "AKIDEXAMPLE/"))
}

func TestS3Store_Put(t *testing.T) {
	isolateAWS(t)

	var (
		mu          sync.Mutex
		gotMethod   string
		gotPath     string
		gotType     string
		gotBody     string
		gotSignedBy string
	)
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		gotBody = string(body)
		gotSignedBy = r.Header.Get("Authorization")
		mu.Unlock()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer fake.Close()

	store, err := NewS3Store(context.Background(), config.StorageConfig{
		Endpoint:     fake.URL,
		Region:       "eu-west-1",
		Bucket:       "audio",
		AccessKey:    "AKIDEXAMPLE",
		SecretKey:    "secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)

	err = store.Put(context.Background(), "notes/memo.wav", "audio/wav", strings.NewReader("hello"), 5)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/audio/notes/memo.wav", gotPath)
	assert.Equal(t, "audio/wav", gotType)
	assert.Equal(t, "hello", gotBody)
	assert.Contains(t, gotSignedBy, "AKIDEXAMPLE/")
	assert.Contains(t, gotSignedBy, "eu-west-1/s3/aws4_request")
}
