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

package audio

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/audionote/internal/api"
	"github.com/tombee/audionote/internal/commands/shared"
	"github.com/tombee/audionote/internal/testing/clitest"
)

var transcript = []api.Utterance{
	{StartTime: 0, EndTime: 1500, Text: "Good morning."},
	{StartTime: 61_250, EndTime: 3_725_004, Text: "Let's begin."},
}

// tasks fakes the transcription endpoints. The task reports running for the
// first pending polls, then finalStatus.
func tasks(t *testing.T, pending int32, finalStatus api.TaskStatus) *int32 {
	t.Helper()
	var polls int32

	clitest.Backend(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/audio/transcription-tasks":
			var req api.FileNameRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.Filename != "meeting.mp3" {
				http.Error(w, `{"detail":"unknown file"}`, http.StatusNotFound)
				return
			}
			clitest.Envelope(w, map[string]string{"task_id": "task-42"})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/audio/transcription-tasks/task-42":
			if atomic.AddInt32(&polls, 1) <= pending {
				clitest.Envelope(w, api.TranscriptionTask{Status: api.TaskRunning})
				return
			}
			task := api.TranscriptionTask{Status: finalStatus}
			if finalStatus == api.TaskFinished {
				task.Result = transcript
			}
			clitest.Envelope(w, task)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"task not found"}`))
		}
	})
	return &polls
}

func TestTranscribe(t *testing.T) {
	clitest.Isolate(t)
	polls := tasks(t, 0, api.TaskFinished)

	res := clitest.Run(t, NewTranscribeCommand(), "", "transcribe", "meeting.mp3")
	require.NoError(t, res.Err)
	assert.Equal(t, "task-42", strings.TrimSpace(res.Stdout))
	assert.Zero(t, atomic.LoadInt32(polls))
}

func TestTranscribe_Wait(t *testing.T) {
	clitest.Isolate(t)
	polls := tasks(t, 2, api.TaskFinished)

	res := clitest.Run(t, NewTranscribeCommand(), "", "transcribe", "meeting.mp3", "--wait", "--interval", "10ms")
	require.NoError(t, res.Err)

	assert.Equal(t, int32(3), atomic.LoadInt32(polls))
	assert.Contains(t, res.Stdout, "finished")
	assert.Contains(t, res.Stdout, "[00:00.000 - 00:01.500] Good morning.")
	assert.Contains(t, res.Stdout, "[01:01.250 - 1:02:05.004] Let's begin.")
}

func TestTranscribe_WaitFailed(t *testing.T) {
	clitest.Isolate(t)
	tasks(t, 1, api.TaskFailed)

	res := clitest.Run(t, NewTranscribeCommand(), "", "transcribe", "meeting.mp3", "--wait", "--interval", "10ms", "--json")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "transcription task task-42 failed")
	assert.Contains(t, res.Stdout, `"success": false`)
}

func TestTranscribe_BackendError(t *testing.T) {
	clitest.Isolate(t)
	tasks(t, 0, api.TaskFinished)

	res := clitest.Run(t, NewTranscribeCommand(), "", "transcribe", "other.mp3")
	require.Error(t, res.Err)
	assert.Equal(t, "unknown file (status 404)", res.Err.Error())
	assert.Equal(t, shared.ExitFailed, shared.ExitCode(res.Err))
}

func TestTranscribe_InvalidInterval(t *testing.T) {
	clitest.Isolate(t)

	res := clitest.Run(t, NewTranscribeCommand(), "", "transcribe", "meeting.mp3", "--interval", "0s")
	require.Error(t, res.Err)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(res.Err))
}

func TestTask(t *testing.T) {
	clitest.Isolate(t)
	tasks(t, 0, api.TaskFinished)

	res := clitest.Run(t, NewTaskCommand(), "", "task", "task-42", "--json")
	require.NoError(t, res.Err)

	var resp struct {
		Data struct {
			TaskID string          `json:"task_id"`
			Status api.TaskStatus  `json:"status"`
			Result []api.Utterance `json:"result"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Stdout), &resp))
	assert.Equal(t, "task-42", resp.Data.TaskID)
	assert.Equal(t, api.TaskFinished, resp.Data.Status)
	assert.Equal(t, transcript, resp.Data.Result)
}

func TestTask_Raw(t *testing.T) {
	clitest.Isolate(t)
	tasks(t, 0, api.TaskFinished)

	res := clitest.Run(t, NewTaskCommand(), "", "task", "task-42", "--raw")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, `"status": "finished"`)
	assert.Contains(t, res.Stdout, `"text": "Good morning."`)
}

func TestTask_NotFound(t *testing.T) {
	clitest.Isolate(t)
	tasks(t, 0, api.TaskFinished)

	res := clitest.Run(t, NewTaskCommand(), "", "task", "missing")
	require.Error(t, res.Err)
	assert.Equal(t, "task not found (status 404)", res.Err.Error())
	assert.Contains(t, res.Stderr, "task not found")
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00.000"},
		{1500, "00:01.500"},
		{61_250, "01:01.250"},
		{3_600_000, "1:00:00.000"},
		{-5, "00:00.000"},
	}
	for _, tt := range tests {
		if got := timestamp(tt.ms); got != tt.want {
			t.Errorf("timestamp(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
