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

package notify

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

const barWidth = 20

var (
	barLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Progress redraws a single-line upload progress bar on out.
// Repeated percentages are not redrawn.
type Progress struct {
	mu    sync.Mutex
	out   io.Writer
	label string
	last  int
}

// NewProgress creates a Progress bar labelled with label.
func NewProgress(out io.Writer, label string) *Progress {
	return &Progress{out: out, label: label, last: -1}
}

// Update redraws the bar at percent, clamped to [0,100].
func (p *Progress) Update(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if percent == p.last {
		return
	}
	p.last = percent
	fmt.Fprintf(p.out, "\r%s %s", barLabelStyle.Render(p.label), barStyle.Render(RenderBar(percent)))
}

// Done terminates the progress line.
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last >= 0 {
		fmt.Fprintln(p.out)
	}
}

// RenderBar formats percent as "[=====>    ] NN%".
func RenderBar(percent int) string {
	filled := percent * barWidth / 100

	var bar strings.Builder
	bar.WriteString("[")
	for i := 0; i < barWidth; i++ {
		switch {
		case i < filled-1:
			bar.WriteString("=")
		case i == filled-1:
			bar.WriteString(">")
		default:
			bar.WriteString(" ")
		}
	}
	bar.WriteString("]")

	return fmt.Sprintf("%s %3d%%", bar.String(), percent)
}
