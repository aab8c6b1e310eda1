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

package credentials

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingStore returns err for every key listed in fail.
type failingStore struct {
	*MemoryStore
	fail map[string]error
}

func (f *failingStore) Get(ctx context.Context, key string) (string, error) {
	if err, ok := f.fail[key]; ok {
		return "", err
	}
	return f.MemoryStore.Get(ctx, key)
}

func seed(t *testing.T, values map[string]string) *MemoryStore {
	t.Helper()
	store := NewMemoryStore()
	for k, v := range values {
		require.NoError(t, store.Set(context.Background(), k, v))
	}
	return store
}

func TestInjector_AllCategories(t *testing.T) {
	store := seed(t, map[string]string{
		KeyWebAccessPassword: "hunter2",
		KeyLLMConfig:         `{"baseUrl":"https://llm.example.com","modelId":"m-1","apiKey":"sk-1"}`,
		KeyStorageConfig:     `{"accessKey":"AK","secretKey":"SK","endpoint":"https://s3.example.com","region":"us-east-1","bucket":"notes"}`,
		KeyASRConfig:         `{"appId":"app","accessToken":"tok","clusterId":"c1"}`,
	})

	h := http.Header{}
	NewInjector(store, nil).Inject(context.Background(), h)

	want := map[string]string{
		"request-web-access-password": "hunter2",
		"x-llm-base-url":              "https://llm.example.com",
		"x-llm-model-id":              "m-1",
		"x-llm-api-key":               "sk-1",
		"x-storage-access-key":        "AK",
		"x-storage-secret-key":        "SK",
		"x-storage-endpoint":          "https://s3.example.com",
		"x-storage-region":            "us-east-1",
		"x-storage-bucket":            "notes",
		"x-asr-app-id":                "app",
		"x-asr-access-token":          "tok",
		"x-asr-cluster-id":            "c1",
	}
	assert.Len(t, h, len(want))
	for name, value := range want {
		assert.Equal(t, value, h.Get(name), name)
	}
}

func TestInjector_PartialRecord(t *testing.T) {
	store := seed(t, map[string]string{
		KeyLLMConfig: `{"apiKey":"sk-1","modelId":""}`,
	})

	h := http.Header{}
	NewInjector(store, nil).Inject(context.Background(), h)

	assert.Equal(t, http.Header{"X-Llm-Api-Key": {"sk-1"}}, h)
}

func TestInjector_MixedTypeFieldsKeepValidOnes(t *testing.T) {
	store := seed(t, map[string]string{
		KeyLLMConfig:     `{"baseUrl":"https://llm.example.com","modelId":42,"apiKey":"sk-1"}`,
		KeyStorageConfig: `{"bucket":"notes","region":null,"endpoint":["x"]}`,
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := http.Header{}
	NewInjector(store, logger).Inject(context.Background(), h)

	assert.Equal(t, http.Header{
		"X-Llm-Base-Url":   {"https://llm.example.com"},
		"X-Llm-Api-Key":    {"sk-1"},
		"X-Storage-Bucket": {"notes"},
	}, h)
	assert.NotContains(t, buf.String(), "failed to parse credentials")
}

func TestInjector_EmptyStore(t *testing.T) {
	h := http.Header{"Accept": {"application/json"}}
	NewInjector(NewMemoryStore(), nil).Inject(context.Background(), h)

	assert.Equal(t, http.Header{"Accept": {"application/json"}}, h)
}

func TestInjector_DoesNotOverrideCallerHeaders(t *testing.T) {
	store := seed(t, map[string]string{
		KeyWebAccessPassword: "stored",
		KeyStorageConfig:     `{"bucket":"stored-bucket","region":"eu-west-1"}`,
	})

	h := http.Header{}
	h.Set("request-web-access-password", "explicit")
	h.Set("x-storage-bucket", "explicit-bucket")
	NewInjector(store, nil).Inject(context.Background(), h)

	assert.Equal(t, "explicit", h.Get("request-web-access-password"))
	assert.Equal(t, "explicit-bucket", h.Get("x-storage-bucket"))
	assert.Equal(t, "eu-west-1", h.Get("x-storage-region"))
}

func TestInjector_MalformedCategoryIsSkipped(t *testing.T) {
	store := seed(t, map[string]string{
		KeyLLMConfig:     `{not json`,
		KeyStorageConfig: `{"bucket":"notes"}`,
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := http.Header{}
	NewInjector(store, logger).Inject(context.Background(), h)

	assert.Empty(t, h.Get("x-llm-api-key"))
	assert.Equal(t, "notes", h.Get("x-storage-bucket"))
	assert.Contains(t, buf.String(), "failed to parse credentials")
	assert.Contains(t, buf.String(), "key=llmConfig")
}

func TestInjector_StoreErrorIsSkipped(t *testing.T) {
	store := &failingStore{
		MemoryStore: seed(t, map[string]string{KeyASRConfig: `{"appId":"app"}`}),
		fail:        map[string]error{KeyWebAccessPassword: errors.New("disk on fire")},
	}

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := http.Header{}
	NewInjector(store, logger).Inject(context.Background(), h)

	assert.Equal(t, "app", h.Get("x-asr-app-id"))
	assert.Empty(t, h.Get("request-web-access-password"))
	assert.Contains(t, buf.String(), "disk on fire")
}

func TestInjector_NotFoundIsSilent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewInjector(NewMemoryStore(), logger).Inject(context.Background(), http.Header{})

	assert.Empty(t, strings.TrimSpace(buf.String()))
}

func TestInjector_ReadsFreshEachCall(t *testing.T) {
	store := NewMemoryStore()
	inj := NewInjector(store, nil)

	h := http.Header{}
	inj.Inject(context.Background(), h)
	assert.Empty(t, h.Get("request-web-access-password"))

	require.NoError(t, store.Set(context.Background(), KeyWebAccessPassword, "now-set"))

	h = http.Header{}
	inj.Inject(context.Background(), h)
	assert.Equal(t, "now-set", h.Get("request-web-access-password"))
}

func TestInjector_Nil(t *testing.T) {
	var inj *Injector
	h := http.Header{}
	inj.Inject(context.Background(), h)
	assert.Empty(t, h)
}
