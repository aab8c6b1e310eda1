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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"
	"golang.org/x/crypto/argon2"

	"github.com/tombee/audionote/internal/config"
)

const (
	// Argon2id parameters for deriving the file encryption key.
	argon2Time        = 3
	argon2Memory      = 64 * 1024 // 64MB in KB
	argon2Parallelism = 4
	argon2KeyLength   = 32

	gcmNonceSize = 12

	// MasterKeyEnv holds the passphrase for the encrypted file store.
	MasterKeyEnv = "AUDIONOTE_MASTER_KEY"
)

// FileStore keeps all blobs in one JSON object file.
// The file is re-read on every Get so edits made by other processes are seen
// by the next request. With a master key the file is sealed with AES-256-GCM.
type FileStore struct {
	path      string
	masterKey []byte
	mu        sync.RWMutex
}

// encryptedFile is the on-disk shape of an encrypted store.
type encryptedFile struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

// DefaultFilePath returns the credentials file location under the config dir.
func DefaultFilePath(name string) (string, error) {
	path, err := config.Path(name)
	if err != nil {
		return "", fmt.Errorf("failed to get config directory: %w", err)
	}
	return path, nil
}

// NewFileStore creates a plaintext file store. Empty path uses
// <config dir>/credentials.json.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := DefaultFilePath("credentials.json")
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &FileStore{path: path}, nil
}

// NewEncryptedFileStore creates an encrypted file store. The master key falls
// back to $AUDIONOTE_MASTER_KEY; without one the store is unavailable.
func NewEncryptedFileStore(path, masterKey string) (*FileStore, error) {
	if masterKey == "" {
		masterKey = os.Getenv(MasterKeyEnv)
	}
	if masterKey == "" {
		return nil, fmt.Errorf("%w: set %s to use the encrypted file store", ErrUnavailable, MasterKeyEnv)
	}

	if path == "" {
		p, err := DefaultFilePath("credentials.enc")
		if err != nil {
			return nil, err
		}
		path = p
	}
	return &FileStore{path: path, masterKey: []byte(masterKey)}, nil
}

// Name returns the backend identifier.
func (f *FileStore) Name() string {
	if f.masterKey != nil {
		return KindEncryptedFile
	}
	return KindFile
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Get retrieves a blob from the file.
func (f *FileStore) Get(ctx context.Context, key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	values, err := f.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("failed to load credentials: %w", err)
	}

	value, ok := values[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return value, nil
}

// Set stores a blob in the file.
func (f *FileStore) Set(ctx context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load credentials: %w", err)
	}
	if values == nil {
		values = make(map[string]string)
	}

	values[key] = value
	if err := f.save(values); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// Delete removes a blob from the file.
func (f *FileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if _, ok := values[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	delete(values, key)
	if err := f.save(values); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

func (f *FileStore) load() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}

	if f.masterKey != nil {
		data, err = f.open(data)
		if err != nil {
			return nil, err
		}
		defer zeroBytes(data)
	}

	var values map[string]string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("invalid credentials file %s: %w", f.path, err)
	}
	return values, nil
}

func (f *FileStore) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if f.masterKey != nil {
		plaintext := data
		data, err = f.seal(plaintext)
		zeroBytes(plaintext)
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temp file first (atomic write)
	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (f *FileStore) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := f.cipher(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return json.Marshal(encryptedFile{
		Salt:  salt,
		Nonce: nonce,
		Data:  gcm.Seal(nil, nonce, plaintext, nil),
	})
}

func (f *FileStore) open(data []byte) ([]byte, error) {
	var enc encryptedFile
	if err := json.Unmarshal(data, &enc); err != nil {
		return nil, fmt.Errorf("invalid encrypted data format: %w", err)
	}

	gcm, err := f.cipher(enc.Salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, enc.Nonce, enc.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong master key or corrupted data): %w", err)
	}
	return plaintext, nil
}

func (f *FileStore) cipher(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(f.masterKey, salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLength)
	defer zeroBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
