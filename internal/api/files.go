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

package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/tombee/audionote/internal/pipeline"
	apierrors "github.com/tombee/audionote/pkg/errors"
)

// MissingUploadURLMessage is returned when the backend answers without a URL.
const MissingUploadURLMessage = "failed to get upload url"

// FileNameRequest is the body of file and transcription calls.
type FileNameRequest struct {
	Filename string `json:"filename"`
}

// UploadURLResponse is the data of a successful upload-url call.
type UploadURLResponse struct {
	UploadURL string `json:"upload_url"`
}

// Files covers the storage endpoints.
type Files struct {
	p *pipeline.Pipeline
}

// GetAudioUploadURL asks the backend for a presigned PUT URL for filename.
// The URL is signed for the content type derived from the file extension.
func (f *Files) GetAudioUploadURL(ctx context.Context, filename string) (string, error) {
	resp, err := pipeline.Do[*UploadURLResponse](ctx, f.p, &pipeline.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/files/upload-urls",
		Body:   FileNameRequest{Filename: filename},
	})
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.UploadURL) == "" {
		return "", apierrors.NewAPIError(apierrors.KindLocal, http.StatusInternalServerError, MissingUploadURLMessage, resp)
	}
	return resp.UploadURL, nil
}
