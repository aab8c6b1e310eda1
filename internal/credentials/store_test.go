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
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// storeContract exercises the behavior every writable Store shares.
func storeContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, KeyLLMConfig)
	assert.True(t, errors.Is(err, ErrNotFound), "Get on empty store: %v", err)

	require.NoError(t, store.Set(ctx, KeyLLMConfig, `{"apiKey":"sk-1"}`))

	got, err := store.Get(ctx, KeyLLMConfig)
	require.NoError(t, err)
	assert.Equal(t, `{"apiKey":"sk-1"}`, got)

	require.NoError(t, store.Set(ctx, KeyLLMConfig, `{"apiKey":"sk-2"}`))
	got, err = store.Get(ctx, KeyLLMConfig)
	require.NoError(t, err)
	assert.Equal(t, `{"apiKey":"sk-2"}`, got)

	require.NoError(t, store.Delete(ctx, KeyLLMConfig))
	_, err = store.Get(ctx, KeyLLMConfig)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = store.Delete(ctx, KeyLLMConfig)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	assert.Equal(t, KindFile, store.Name())

	storeContract(t, store)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileStore_SeesExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{"webAccessPassword":"from-disk"}`), 0600))

	got, err := store.Get(context.Background(), KeyWebAccessPassword)
	require.NoError(t, err)
	assert.Equal(t, "from-disk", got)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`[1,2`), 0600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), KeyASRConfig)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")
	store, err := NewEncryptedFileStore(path, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, KindEncryptedFile, store.Name())

	storeContract(t, store)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, KeyStorageConfig, `{"secretKey":"SK-PLAIN"}`))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "SK-PLAIN")

	wrong, err := NewEncryptedFileStore(path, "battery staple")
	require.NoError(t, err)
	_, err = wrong.Get(ctx, KeyStorageConfig)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestEncryptedFileStore_RequiresKey(t *testing.T) {
	t.Setenv(MasterKeyEnv, "")

	_, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "c.enc"), "")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestKeychainStore(t *testing.T) {
	keyring.MockInit()

	store := NewKeychainStore()
	assert.Equal(t, KindKeychain, store.Name())
	storeContract(t, store)
}

func TestKeychainStore_Unavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: connection refused"))
	defer keyring.MockInit()

	_, err := NewKeychainStore().Get(context.Background(), KeyLLMConfig)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestEnvStore(t *testing.T) {
	t.Setenv("AUDIONOTE_STORAGE_CONFIG", `{"bucket":"env-bucket"}`)
	t.Setenv("AUDIONOTE_ASR_CONFIG", "")

	store := NewEnvStore()
	ctx := context.Background()

	got, err := store.Get(ctx, KeyStorageConfig)
	require.NoError(t, err)
	assert.Equal(t, `{"bucket":"env-bucket"}`, got)

	_, err = store.Get(ctx, KeyASRConfig)
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.True(t, errors.Is(store.Set(ctx, KeyASRConfig, "{}"), ErrReadOnly))
	assert.True(t, errors.Is(store.Delete(ctx, KeyASRConfig), ErrReadOnly))
}

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		KeyWebAccessPassword: "AUDIONOTE_WEB_ACCESS_PASSWORD",
		KeyLLMConfig:         "AUDIONOTE_LLM_CONFIG",
		KeyStorageConfig:     "AUDIONOTE_STORAGE_CONFIG",
		KeyASRConfig:         "AUDIONOTE_ASR_CONFIG",
	}
	for key, want := range tests {
		assert.Equal(t, want, EnvName(key), key)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		kind    string
		want    string
		wantErr string
	}{
		{kind: "", want: KindFile},
		{kind: KindFile, want: KindFile},
		{kind: KindMemory, want: KindMemory},
		{kind: KindEnv, want: KindEnv},
		{kind: KindKeychain, want: KindKeychain},
		{kind: "vault", wantErr: "unknown credential store"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			store, err := Open(tt.kind, filepath.Join(dir, "credentials.json"))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, strings.Contains(err.Error(), tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, store.Name())
		})
	}
}

func TestSaveLoad(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, Save(ctx, store, KeyStorageConfig, StorageConfig{Bucket: "notes", Region: "us-east-1"}))

	raw, err := store.Get(ctx, KeyStorageConfig)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bucket":"notes","region":"us-east-1"}`, raw)

	cfg, err := Load[StorageConfig](ctx, store, KeyStorageConfig)
	require.NoError(t, err)
	assert.Equal(t, "notes", cfg.Bucket)
}

func TestDecode(t *testing.T) {
	v, err := Decode(KeyWebAccessPassword, "pw")
	require.NoError(t, err)
	assert.Equal(t, "pw", v)

	v, err = Decode(KeyASRConfig, `{"appId":"a"}`)
	require.NoError(t, err)
	assert.Equal(t, &ASRConfig{AppID: "a"}, v)

	_, err = Decode(KeyLLMConfig, `nope`)
	assert.Error(t, err)

	_, err = Decode("tokens", `{}`)
	assert.Error(t, err)
}
