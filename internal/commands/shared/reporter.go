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
	"io"
	"sync"

	"github.com/tombee/audionote/internal/notify"
)

// errorReporter is the notification sink shared by every command. It shows
// failures on the terminal and remembers them so HandleExitError does not
// print the same message twice.
var errorReporter = newReporter(nil)

// Reporter is a notify.Sink that renders to a terminal and records what it showed.
type Reporter struct {
	mu    sync.Mutex
	term  *notify.Terminal
	shown map[string]bool
}

func newReporter(out io.Writer) *Reporter {
	return &Reporter{
		term:  notify.NewTerminal(out),
		shown: make(map[string]bool),
	}
}

// Error implements notify.Sink.
func (r *Reporter) Error(msg string) {
	r.mu.Lock()
	r.shown[msg] = true
	term := r.term
	r.mu.Unlock()

	term.Error(msg)
}

// Reported reports whether msg has already been shown.
func (r *Reporter) Reported(msg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.shown[msg]
}

// reset points the reporter at out and forgets earlier messages.
func (r *Reporter) reset(out io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.term = notify.NewTerminal(out)
	r.shown = make(map[string]bool)
}

// ErrorReporter returns the shared sink.
func ErrorReporter() *Reporter {
	return errorReporter
}
