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

// Package credentials stores the client-side credential blobs and attaches them
// to outbound backend requests as headers.
//
// Four categories are persisted under fixed keys. The web access password is a
// raw string; the other three are JSON objects with optional string fields:
//
//	webAccessPassword  -> request-web-access-password
//	llmConfig          -> x-llm-base-url, x-llm-model-id, x-llm-api-key
//	storageConfig      -> x-storage-access-key, x-storage-secret-key,
//	                      x-storage-endpoint, x-storage-region, x-storage-bucket
//	asrConfig          -> x-asr-app-id, x-asr-access-token, x-asr-cluster-id
//
// Blobs are read from the Store on every request; nothing is cached.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNotFound is returned when a key does not exist in the store.
	ErrNotFound = errors.New("credential not found")

	// ErrReadOnly is returned when attempting to modify a read-only store.
	ErrReadOnly = errors.New("store is read-only")

	// ErrUnavailable is returned when a store cannot be used in the current environment.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is an opaque key-value store of credential blobs.
type Store interface {
	// Name returns the backend identifier (e.g., "file", "keychain", "env").
	Name() string

	// Get retrieves a blob by key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a blob. Returns ErrReadOnly if not supported.
	Set(ctx context.Context, key string, value string) error

	// Delete removes a blob. Returns ErrNotFound if not present.
	Delete(ctx context.Context, key string) error
}

// Store kinds accepted by Open.
const (
	KindFile          = "file"
	KindEncryptedFile = "encrypted-file"
	KindKeychain      = "keychain"
	KindEnv           = "env"
	KindMemory        = "memory"
)

// Kinds returns the store kinds accepted by Open, sorted.
func Kinds() []string {
	kinds := []string{KindFile, KindEncryptedFile, KindKeychain, KindEnv, KindMemory}
	sort.Strings(kinds)
	return kinds
}

// Open returns the store named by kind. An empty kind selects the file store.
// path is only used by the file stores; empty means the default location.
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", KindFile:
		return NewFileStore(path)
	case KindEncryptedFile:
		return NewEncryptedFileStore(path, "")
	case KindKeychain:
		return NewKeychainStore(), nil
	case KindEnv:
		return NewEnvStore(), nil
	case KindMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown credential store %q (want one of %v)", kind, Kinds())
	}
}
