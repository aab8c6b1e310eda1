// Package format renders backend content for the terminal.
package format

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/glamour"
	"github.com/goccy/go-json"
)

const (
	maxJSONSize     = 10 * 1024 * 1024 // 10MB
	maxMarkdownSize = 5 * 1024 * 1024  // 5MB
)

// ansiEscapeRegex matches ANSI escape sequences for sanitization.
var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// sanitizeANSI removes ANSI escape sequences from a string.
func sanitizeANSI(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

// enforceSize checks if content exceeds the maximum size for its format.
func enforceSize(content []byte, format string, maxSize int) error {
	if len(content) > maxSize {
		return fmt.Errorf("output size (%d bytes) exceeds maximum for %s format (%d bytes)", len(content), format, maxSize)
	}
	return nil
}

// Markdown renders model-generated markdown. Escape sequences in the input
// are stripped first; a TTY then gets glamour styling, anything else the
// plain text.
func Markdown(content string, isTTY bool) (string, error) {
	if err := enforceSize([]byte(content), "markdown", maxMarkdownSize); err != nil {
		return "", err
	}

	content = sanitizeANSI(content)
	if !isTTY {
		return content, nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Fallback to plain text if glamour fails
		return content, nil
	}

	rendered, err := renderer.Render(content)
	if err != nil {
		return content, nil
	}
	return rendered, nil
}

// JSON pretty-prints raw JSON with 2-space indentation and, on a TTY,
// highlights it with chroma.
func JSON(content []byte, isTTY bool) (string, error) {
	if err := enforceSize(content, "json", maxJSONSize); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, content, "", "  "); err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}
	formatted := sanitizeANSI(buf.String())

	if !isTTY {
		return formatted, nil
	}

	var out bytes.Buffer
	if err := quick.Highlight(&out, formatted, "json", "terminal256", "monokai"); err != nil {
		return formatted, nil
	}
	return out.String(), nil
}
