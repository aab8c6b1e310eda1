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
	"github.com/charmbracelet/lipgloss"

	"github.com/tombee/audionote/internal/api"
)

var (
	StatusOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	StatusWarn  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	StatusError = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red

	// Muted is for labels and secondary text.
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// Header styles section headers.
	Header = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
)

const (
	SymbolOK    = "✓"
	SymbolWarn  = "⚠"
	SymbolError = "✗"
)

// RenderOK prefixes msg with a green check mark.
func RenderOK(msg string) string {
	return StatusOK.Render(SymbolOK) + " " + msg
}

// RenderWarn prefixes msg with an orange warning sign.
func RenderWarn(msg string) string {
	return StatusWarn.Render(SymbolWarn) + " " + msg
}

// RenderLabel renders a dim label for key: value output.
func RenderLabel(label string) string {
	return Muted.Render(label)
}

// RenderTaskStatus colors a transcription task status: finished green,
// failed red, anything still in progress orange.
func RenderTaskStatus(status api.TaskStatus) string {
	switch status {
	case api.TaskFinished:
		return StatusOK.Render(SymbolOK + " " + string(status))
	case api.TaskFailed:
		return StatusError.Render(SymbolError + " " + string(status))
	default:
		return StatusWarn.Render(string(status))
	}
}
