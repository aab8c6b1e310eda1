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

package errors

import (
	"fmt"
	"net/http"
)

// Kind classifies where an APIError originated.
// It is diagnostic only: callers handle every APIError the same way.
type Kind string

const (
	// KindTransport means no response was received (connection, DNS, timeout).
	KindTransport Kind = "transport"

	// KindHTTP means a response was received with a non-2xx status.
	KindHTTP Kind = "http"

	// KindBusiness means a 2xx response carried an envelope with success=false.
	KindBusiness Kind = "business"

	// KindCORS means the storage backend refused the cross-origin upload.
	KindCORS Kind = "cors"

	// KindCancelled means the caller cancelled the operation.
	KindCancelled Kind = "cancelled"

	// KindStorage means the storage backend rejected a direct upload.
	KindStorage Kind = "storage"

	// KindLocal covers failures raised before anything was sent.
	KindLocal Kind = "local"
)

// Default messages used when nothing better is available.
const (
	DefaultMessage        = "request failed"
	DefaultNetworkMessage = "network error"
)

// APIError is the single error shape returned by the request pipeline and the
// upload coordinator. Message is never empty.
type APIError struct {
	// Message is the human-readable description shown to users
	Message string

	// Status is the HTTP status code, 0 for network/CORS/cancel failures,
	// or 500 for unclassified local errors
	Status int

	// Data is the raw backend response body, when one was received
	Data any

	// Kind records which failure path produced the error
	Kind Kind

	// Cause is the underlying error, if any
	Cause error
}

// NewAPIError creates an APIError. An empty message is replaced by DefaultMessage.
func NewAPIError(kind Kind, status int, message string, data any) *APIError {
	if message == "" {
		message = DefaultMessage
	}
	return &APIError{
		Message: message,
		Status:  status,
		Data:    data,
		Kind:    kind,
	}
}

// WithCause attaches the underlying error and returns e.
func (e *APIError) WithCause(err error) *APIError {
	e.Cause = err
	return e
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsUserVisible reports true: every APIError is meant for the UI.
func (e *APIError) IsUserVisible() bool {
	return true
}

// UserMessage returns the message without status decoration.
func (e *APIError) UserMessage() string {
	return e.Message
}

// Suggestion returns actionable guidance for the failures that have one.
func (e *APIError) Suggestion() string {
	switch {
	case e.Kind == KindCORS:
		return "Allow this origin, the PUT method and the content-type header in the bucket CORS rules, or upload through the backend proxy"
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return "Check the web access password and the credentials stored for this client"
	default:
		return ""
	}
}

// ErrorType returns the failure kind as a string.
func (e *APIError) ErrorType() string {
	return string(e.Kind)
}

// IsRetryable always reports false; nothing in this client retries.
func (e *APIError) IsRetryable() bool {
	return false
}

// HTTPStatusCode returns Status, or 500 when the error carries no status.
func (e *APIError) HTTPStatusCode() int {
	if e.Status > 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}
