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
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DefaultContentType is sent on direct uploads when the blob declares no type.
// Presigned URLs are signed over the content-type, so the issuer must sign
// with the same value.
const DefaultContentType = "audio/mpeg"

// contentTypes maps audio extensions to the media types the backend signs with.
var contentTypes = map[string]string{
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
	".m4a": "audio/mp4",
}

// ContentTypeFor returns the declared media type for filename, or "" when the
// extension is not a known audio format.
func ContentTypeFor(filename string) string {
	return contentTypes[strings.ToLower(filepath.Ext(filename))]
}

// Blob is a named binary payload.
type Blob struct {
	// Name is the file name sent to the backend.
	Name string

	// Type is the declared media type; empty when unknown.
	Type string

	// Size is the number of bytes Reader yields, or -1 when unknown.
	// Progress is only reported for a positive size.
	Size int64

	// Reader yields the content. It is consumed by one upload.
	Reader io.Reader
}

// NewBlob wraps an in-memory payload.
func NewBlob(name, contentType string, data []byte) *Blob {
	return &Blob{
		Name:   name,
		Type:   contentType,
		Size:   int64(len(data)),
		Reader: bytes.NewReader(data),
	}
}

// OpenFile opens path as a Blob, declaring its type from the extension.
// The caller must Close the blob.
func OpenFile(path string) (*Blob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	return &Blob{
		Name:   name,
		Type:   ContentTypeFor(name),
		Size:   info.Size(),
		Reader: f,
	}, nil
}

// Close closes the underlying reader when it is closable.
func (b *Blob) Close() error {
	if c, ok := b.Reader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// contentType returns the header value for a direct upload.
func (b *Blob) contentType() string {
	if b.Type != "" {
		return b.Type
	}
	return DefaultContentType
}
