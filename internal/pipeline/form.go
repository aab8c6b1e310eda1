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
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// Form is a multipart/form-data body. A Form is single-use: its file readers
// are consumed when the request is sent.
type Form struct {
	parts []formPart
}

type formPart struct {
	name        string
	value       string
	filename    string
	contentType string
	reader      io.Reader
	size        int64
}

// NewForm returns an empty Form.
func NewForm() *Form {
	return &Form{}
}

// AddField appends a plain text field.
func (f *Form) AddField(name, value string) *Form {
	f.parts = append(f.parts, formPart{name: name, value: value})
	return f
}

// AddFile appends a file part. size is the number of bytes r will yield, or -1
// when unknown; an unknown size disables upload progress.
func (f *Form) AddFile(name, filename, contentType string, r io.Reader, size int64) *Form {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	f.parts = append(f.parts, formPart{
		name:        name,
		filename:    filename,
		contentType: contentType,
		reader:      r,
		size:        size,
	})
	return f
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (p formPart) header() textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	if p.reader == nil {
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(p.name)))
		return h
	}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(p.name), quoteEscaper.Replace(p.filename)))
	h.Set("Content-Type", p.contentType)
	return h
}

// encode streams the form through a pipe. The length is computed up front by
// laying out the part headers with the same boundary, so progress can be
// reported against an exact total.
func (f *Form) encode() (io.Reader, int64, string, error) {
	boundary := multipart.NewWriter(io.Discard).Boundary()

	length, err := f.length(boundary)
	if err != nil {
		return nil, 0, "", err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	if err := mw.SetBoundary(boundary); err != nil {
		return nil, 0, "", err
	}

	go func() {
		pw.CloseWithError(f.write(mw))
	}()

	return pr, length, mw.FormDataContentType(), nil
}

func (f *Form) write(mw *multipart.Writer) error {
	for _, p := range f.parts {
		w, err := mw.CreatePart(p.header())
		if err != nil {
			return err
		}
		if p.reader == nil {
			if _, err := io.WriteString(w, p.value); err != nil {
				return err
			}
			continue
		}
		if _, err := io.Copy(w, p.reader); err != nil {
			return fmt.Errorf("read %s: %w", p.filename, err)
		}
	}
	return mw.Close()
}

// length returns the encoded size, or -1 if any file size is unknown.
func (f *Form) length(boundary string) (int64, error) {
	var cw countingWriter
	mw := multipart.NewWriter(&cw)
	if err := mw.SetBoundary(boundary); err != nil {
		return 0, err
	}

	var files int64
	for _, p := range f.parts {
		w, err := mw.CreatePart(p.header())
		if err != nil {
			return 0, err
		}
		if p.reader == nil {
			io.WriteString(w, p.value)
			continue
		}
		if p.size < 0 {
			return -1, nil
		}
		files += p.size
	}
	if err := mw.Close(); err != nil {
		return 0, err
	}
	return cw.n + files, nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
