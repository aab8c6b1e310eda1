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

// Package llm implements the chat command.
package llm

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/audionote/internal/api"
	"github.com/tombee/audionote/internal/cli/format"
	"github.com/tombee/audionote/internal/commands/shared"
)

type chatOptions struct {
	system    string
	markdown  bool
	maxTokens int
	timeout   int
}

// NewChatCommand creates the chat command.
func NewChatCommand() *cobra.Command {
	var opts chatOptions

	cmd := &cobra.Command{
		Use:   "chat [prompt...]",
		Short: "Ask the language model",
		Long: `Send a prompt to the language model configured in the llmConfig
credentials. With no arguments, or "-", the prompt is read from standard input.

--markdown uses the markdown generation endpoint and renders the reply.`,
		Example: `  audionote chat "Summarize the key decisions"
  audionote task task-42 --raw | audionote chat --markdown --system "Write meeting minutes"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.system, "system", "", "System prompt")
	cmd.Flags().BoolVar(&opts.markdown, "markdown", false, "Generate and render a Markdown document")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "Maximum tokens in the reply (0 uses the backend default)")
	cmd.Flags().IntVar(&opts.timeout, "timeout", 0, "Model timeout in seconds forwarded to the backend")

	return cmd
}

func readPrompt(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 && !(len(args) == 1 && args[0] == "-") {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func runChat(cmd *cobra.Command, args []string, opts chatOptions) error {
	if opts.maxTokens < 0 || opts.timeout < 0 {
		return shared.NewInvalidInputError("--max-tokens and --timeout must be >= 0", nil)
	}

	prompt, err := readPrompt(cmd, args)
	if err != nil {
		return err
	}
	if prompt == "" {
		return shared.NewInvalidInputError("prompt cannot be empty", nil)
	}

	rt, err := shared.NewRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	req := api.ChatRequest{MaxTokens: opts.maxTokens, Timeout: opts.timeout}
	if opts.system != "" {
		req.Messages = append(req.Messages, api.ChatMessage{Role: api.RoleSystem, Content: opts.system})
	}
	req.Messages = append(req.Messages, api.ChatMessage{Role: api.RoleUser, Content: prompt})

	call := rt.API.LLM.ChatCompletion
	if opts.markdown {
		call = rt.API.LLM.GenerateMarkdown
	}

	resp, err := call(cmd.Context(), req)
	if err != nil {
		return shared.Fail(cmd.OutOrStdout(), "chat", err)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), "chat", resp)
	}

	content := resp.Content()
	if opts.markdown {
		content, err = format.Markdown(content, format.IsTTY(cmd.OutOrStdout()))
		if err != nil {
			return err
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(content, "\n"))
	return nil
}
