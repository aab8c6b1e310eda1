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

// Package api provides typed calls to the audio-note backend.
//
// Every call goes through a pipeline.Pipeline, so responses are already
// unwrapped from the backend envelope and failures arrive as *errors.APIError
// after being reported to the pipeline's sink.
package api

import (
	"github.com/tombee/audionote/internal/pipeline"
)

// Client groups the backend endpoints by resource.
type Client struct {
	Files *Files
	Audio *Audio
	LLM   *LLM
}

// New creates a Client that sends every call through p.
func New(p *pipeline.Pipeline) *Client {
	return &Client{
		Files: &Files{p: p},
		Audio: &Audio{p: p},
		LLM:   &LLM{p: p},
	}
}
