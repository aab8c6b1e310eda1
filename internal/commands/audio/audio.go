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

// Package audio implements the transcribe and task commands.
package audio

import (
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tombee/audionote/internal/api"
	"github.com/tombee/audionote/internal/cli/format"
	"github.com/tombee/audionote/internal/commands/shared"
)

// NewTranscribeCommand creates the transcribe command.
func NewTranscribeCommand() *cobra.Command {
	var (
		wait     bool
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "transcribe <filename>",
		Short: "Start a transcription task",
		Long: `Start transcribing a file that was already uploaded and print the task ID.
With --wait, poll until the task finishes and print the transcript.`,
		Example: `  audionote upload meeting.mp3 && audionote transcribe meeting.mp3 --wait`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, args[0], wait, interval)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the transcript")
	cmd.Flags().DurationVar(&interval, "interval", api.DefaultPollInterval, "Polling interval with --wait")

	return cmd
}

// NewTaskCommand creates the task command.
func NewTaskCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "task <task-id>",
		Short: "Show a transcription task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, args[0], raw)
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print the task as indented JSON")

	return cmd
}

func runTranscribe(cmd *cobra.Command, filename string, wait bool, interval time.Duration) error {
	if interval <= 0 {
		return shared.NewInvalidInputError("--interval must be > 0", nil)
	}

	rt, err := shared.NewRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	taskID, err := rt.API.Audio.CreateTranscriptionTask(ctx, filename)
	if err != nil {
		return shared.Fail(cmd.OutOrStdout(), "transcribe", err)
	}

	if !wait {
		if shared.GetJSON() {
			return shared.EmitJSON(cmd.OutOrStdout(), "transcribe", map[string]string{"task_id": taskID})
		}
		fmt.Fprintln(cmd.OutOrStdout(), taskID)
		return nil
	}

	if !shared.GetQuiet() && !shared.GetJSON() {
		fmt.Fprintln(cmd.ErrOrStderr(), shared.RenderLabel("task "+taskID+" started, waiting for the transcript"))
	}

	task, err := rt.API.Audio.WaitForTranscription(ctx, taskID, interval)
	if err != nil {
		return shared.Fail(cmd.OutOrStdout(), "transcribe", err)
	}
	return printTask(cmd, "transcribe", taskID, task, false)
}

func runTask(cmd *cobra.Command, taskID string, raw bool) error {
	rt, err := shared.NewRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.Close()

	task, err := rt.API.Audio.GetTranscriptionTask(cmd.Context(), taskID)
	if err != nil {
		return shared.Fail(cmd.OutOrStdout(), "task", err)
	}
	return printTask(cmd, "task", taskID, task, raw)
}

func printTask(cmd *cobra.Command, command, taskID string, task *api.TranscriptionTask, raw bool) error {
	out := cmd.OutOrStdout()

	if shared.GetJSON() {
		return shared.EmitJSON(out, command, map[string]any{
			"task_id": taskID,
			"status":  task.Status,
			"result":  task.Result,
		})
	}

	if raw {
		data, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("failed to encode task: %w", err)
		}
		text, err := format.JSON(data, format.IsTTY(out))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		return nil
	}

	fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("status:"), shared.RenderTaskStatus(task.Status))
	writeTranscript(out, task.Result)
	return nil
}

// writeTranscript prints one "[start - end] text" line per utterance.
func writeTranscript(w io.Writer, utterances []api.Utterance) {
	for _, u := range utterances {
		fmt.Fprintf(w, "[%s - %s] %s\n", timestamp(u.StartTime), timestamp(u.EndTime), u.Text)
	}
}

// timestamp formats milliseconds as mm:ss.mmm, or h:mm:ss.mmm past an hour.
func timestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	frac := ms % 1000
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, frac)
	}
	return fmt.Sprintf("%02d:%02d.%03d", m, s, frac)
}
