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

package shared

import (
	"errors"
	"io"

	json "github.com/goccy/go-json"

	pkgerrors "github.com/tombee/audionote/pkg/errors"
)

// JSONVersion is the envelope version written by every command.
const JSONVersion = "1.0"

// JSONResponse is the base envelope for all JSON output
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
}

// JSONError is the structured form of a failed command.
type JSONError struct {
	Kind       string `json:"kind,omitempty"`
	Status     int    `json:"status,omitempty"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// EmitJSON writes a successful envelope around data.
func EmitJSON(w io.Writer, command string, data any) error {
	return emitJSON(w, JSONResponse{
		Version: JSONVersion,
		Command: command,
		Success: true,
		Data:    data,
	})
}

// EmitJSONError writes a failed envelope describing err.
func EmitJSONError(w io.Writer, command string, err error) error {
	type errorResponse struct {
		JSONResponse
		Error JSONError `json:"error"`
	}

	return emitJSON(w, errorResponse{
		JSONResponse: JSONResponse{
			Version: JSONVersion,
			Command: command,
			Success: false,
		},
		Error: toJSONError(err),
	})
}

func toJSONError(err error) JSONError {
	var apiErr *pkgerrors.APIError
	if errors.As(err, &apiErr) {
		return JSONError{
			Kind:       string(apiErr.Kind),
			Status:     apiErr.Status,
			Message:    apiErr.Message,
			Suggestion: apiErr.Suggestion(),
		}
	}
	return JSONError{Message: err.Error()}
}

// emitJSON marshals a response to JSON and outputs it to w
func emitJSON(w io.Writer, response any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// Fail returns err unchanged. In JSON mode it first writes err to w as a
// failed envelope so scripts always get a document on stdout.
func Fail(w io.Writer, command string, err error) error {
	if err != nil && GetJSON() {
		_ = EmitJSONError(w, command, err)
	}
	return err
}
