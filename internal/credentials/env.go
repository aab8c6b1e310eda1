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
	"os"
	"strings"
	"unicode"
)

// envPrefix is prepended to every normalized key.
const envPrefix = "AUDIONOTE_"

// EnvStore provides read-only access to blobs via environment variables.
// Keys are normalized from camelCase: "storageConfig" -> AUDIONOTE_STORAGE_CONFIG.
type EnvStore struct {
	lookup func(string) (string, bool)
}

// NewEnvStore creates an environment variable store.
func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

// Name returns the backend identifier.
func (e *EnvStore) Name() string {
	return KindEnv
}

// Get retrieves a blob from the environment. Empty variables count as unset.
func (e *EnvStore) Get(ctx context.Context, key string) (string, error) {
	name := EnvName(key)
	if value, ok := e.lookup(name); ok && value != "" {
		return value, nil
	}
	return "", fmt.Errorf("%w: %s not set", ErrNotFound, name)
}

// Set returns ErrReadOnly.
func (e *EnvStore) Set(ctx context.Context, key string, value string) error {
	return ErrReadOnly
}

// Delete returns ErrReadOnly.
func (e *EnvStore) Delete(ctx context.Context, key string) error {
	return ErrReadOnly
}

// EnvName converts a credential key to its environment variable name.
// Example: "webAccessPassword" -> "AUDIONOTE_WEB_ACCESS_PASSWORD"
func EnvName(key string) string {
	var b strings.Builder
	b.WriteString(envPrefix)
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
