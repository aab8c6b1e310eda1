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

	"github.com/tombee/audionote/internal/pipeline"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is sent to the completion endpoints. Timeout is in seconds and
// is forwarded to the model provider by the backend.
type ChatRequest struct {
	Messages  []ChatMessage `json:"messages"`
	Timeout   int           `json:"timeout,omitempty"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

// Choice is one completion candidate.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
}

// ChatResponse is the data of a completion call.
type ChatResponse struct {
	Choices []Choice `json:"choices"`
}

// Content returns the first choice's text, or "" when there is none.
func (r *ChatResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// LLM covers the language-model endpoints.
type LLM struct {
	p *pipeline.Pipeline
}

// ChatCompletion runs a chat completion with the model from the llmConfig
// credentials.
func (l *LLM) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return l.complete(ctx, "/api/v1/llm/completions", req)
}

// GenerateMarkdown asks the model to produce a Markdown document, typically a
// summary of a transcript.
func (l *LLM) GenerateMarkdown(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return l.complete(ctx, "/api/v1/llm/markdown-generation", req)
}

func (l *LLM) complete(ctx context.Context, path string, req ChatRequest) (*ChatResponse, error) {
	resp, err := pipeline.Do[*ChatResponse](ctx, l.p, &pipeline.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   req,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &ChatResponse{}
	}
	return resp, nil
}
