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
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tombee/audionote/internal/pipeline"
	apierrors "github.com/tombee/audionote/pkg/errors"
)

// TaskStatus is the state of a transcription task.
type TaskStatus string

const (
	TaskRunning  TaskStatus = "running"
	TaskFinished TaskStatus = "finished"
	TaskFailed   TaskStatus = "failed"
)

// DefaultPollInterval is the wait between status checks in WaitForTranscription.
const DefaultPollInterval = 3 * time.Second

// Utterance is one recognized segment. Times are in milliseconds.
type Utterance struct {
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Text      string `json:"text"`
}

// TranscriptionTask is the state of a transcription. Result is set once the
// task has finished.
type TranscriptionTask struct {
	Status TaskStatus  `json:"status"`
	Result []Utterance `json:"result"`
}

// Done reports whether the task reached a terminal state.
func (t *TranscriptionTask) Done() bool {
	return t.Status == TaskFinished || t.Status == TaskFailed
}

type createTaskResponse struct {
	TaskID string `json:"task_id"`
}

// Audio covers the transcription endpoints.
type Audio struct {
	p *pipeline.Pipeline
}

// CreateTranscriptionTask starts transcribing a previously uploaded file and
// returns the task ID.
func (a *Audio) CreateTranscriptionTask(ctx context.Context, filename string) (string, error) {
	resp, err := pipeline.Do[createTaskResponse](ctx, a.p, &pipeline.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/audio/transcription-tasks",
		Body:   FileNameRequest{Filename: filename},
	})
	if err != nil {
		return "", err
	}
	if resp.TaskID == "" {
		return "", apierrors.NewAPIError(apierrors.KindLocal, http.StatusInternalServerError, "failed to create transcription task", nil)
	}
	return resp.TaskID, nil
}

// GetTranscriptionTask returns the current state of taskID.
func (a *Audio) GetTranscriptionTask(ctx context.Context, taskID string) (*TranscriptionTask, error) {
	task, err := pipeline.Do[*TranscriptionTask](ctx, a.p, &pipeline.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/audio/transcription-tasks/" + url.PathEscape(taskID),
	})
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, apierrors.NewAPIError(apierrors.KindLocal, http.StatusInternalServerError, "empty transcription task", nil)
	}
	return task, nil
}

// WaitForTranscription polls taskID every interval until it finishes, fails,
// or ctx is done. A failed task is returned together with an error.
func (a *Audio) WaitForTranscription(ctx context.Context, taskID string, interval time.Duration) (*TranscriptionTask, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		task, err := a.GetTranscriptionTask(ctx, taskID)
		if err != nil {
			return nil, err
		}
		switch task.Status {
		case TaskFinished:
			return task, nil
		case TaskFailed:
			return task, fmt.Errorf("transcription task %s failed", taskID)
		}

		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}
