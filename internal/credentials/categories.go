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
	"context"
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
)

// Keys under which the four credential categories are persisted.
const (
	KeyWebAccessPassword = "webAccessPassword"
	KeyLLMConfig         = "llmConfig"
	KeyStorageConfig     = "storageConfig"
	KeyASRConfig         = "asrConfig"
)

// Keys returns every credential key in injection order.
func Keys() []string {
	return []string{KeyWebAccessPassword, KeyLLMConfig, KeyStorageConfig, KeyASRConfig}
}

// LLMConfig selects the language model the backend calls on the user's behalf.
type LLMConfig struct {
	BaseURL string `json:"baseUrl,omitempty"`
	ModelID string `json:"modelId,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
}

// StorageConfig points the backend at the user's S3-compatible bucket.
type StorageConfig struct {
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	Region    string `json:"region,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
}

// ASRConfig holds the speech recognition service credentials.
type ASRConfig struct {
	AppID       string `json:"appId,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
	ClusterID   string `json:"clusterId,omitempty"`
}

// headerField maps one blob field to one outbound header.
type headerField struct {
	field  string
	header string
}

var categoryHeaders = map[string][]headerField{
	KeyLLMConfig: {
		{"baseUrl", "x-llm-base-url"},
		{"modelId", "x-llm-model-id"},
		{"apiKey", "x-llm-api-key"},
	},
	KeyStorageConfig: {
		{"accessKey", "x-storage-access-key"},
		{"secretKey", "x-storage-secret-key"},
		{"endpoint", "x-storage-endpoint"},
		{"region", "x-storage-region"},
		{"bucket", "x-storage-bucket"},
	},
	KeyASRConfig: {
		{"appId", "x-asr-app-id"},
		{"accessToken", "x-asr-access-token"},
		{"clusterId", "x-asr-cluster-id"},
	},
}

// Load reads the blob stored under key and decodes it into a T.
func Load[T any](ctx context.Context, store Store, key string) (*T, error) {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &v, nil
}

// Save encodes v as JSON and stores it under key.
func Save(ctx context.Context, store Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Set(ctx, key, string(data))
}

// Decode parses a JSON blob for key into its typed value, rejecting unknown keys.
// It backs the CLI's "credentials set" command.
func Decode(key, raw string) (any, error) {
	var v any
	switch key {
	case KeyWebAccessPassword:
		return raw, nil
	case KeyLLMConfig:
		v = &LLMConfig{}
	case KeyStorageConfig:
		v = &StorageConfig{}
	case KeyASRConfig:
		v = &ASRConfig{}
	default:
		return nil, fmt.Errorf("unknown credential key %q (want one of %s)", key, strings.Join(Keys(), ", "))
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
