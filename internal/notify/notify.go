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

// Package notify delivers human-readable failure messages to the user.
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Sink accepts one human-readable message per failure.
type Sink interface {
	Error(msg string)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(msg string)

// Error calls f(msg).
func (f SinkFunc) Error(msg string) { f(msg) }

// Nop discards every message.
var Nop Sink = SinkFunc(func(string) {})

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")) // gray
)

const symbolError = "✗"

// Terminal writes styled messages to a terminal stream.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminal returns a Terminal writing to out, or os.Stderr when out is nil.
func NewTerminal(out io.Writer) *Terminal {
	if out == nil {
		out = os.Stderr
	}
	return &Terminal{out: out}
}

// Error renders msg with a red cross.
func (t *Terminal) Error(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, errorStyle.Render(symbolError)+" "+msg)
}

// Hint renders a secondary line, used for error suggestions.
func (t *Terminal) Hint(msg string) {
	if msg == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, "  "+mutedStyle.Render(msg))
}

// Recorder keeps every message it receives. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

// Error records msg.
func (r *Recorder) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

// Messages returns a copy of the recorded messages in arrival order.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
