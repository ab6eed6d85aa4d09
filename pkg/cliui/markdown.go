package cliui

import (
	"bytes"
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// DefaultWrap is the word wrap used when no terminal width is known.
const DefaultWrap = 80

// GlamourStyle picks a glamour style for the terminal background. Call it
// before starting a bubbletea program so the background query does not race
// the program's input reader.
func GlamourStyle() string {
	if termenv.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

// NewMarkdownRenderer returns a glamour renderer wrapping at width.
func NewMarkdownRenderer(style string, width int) (*glamour.TermRenderer, error) {
	if width <= 0 {
		width = DefaultWrap
	}
	if style == "" {
		return glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
	}
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// On failure the raw content is returned alongside the error.
func RenderMarkdown(content string) (string, error) {
	r, err := NewMarkdownRenderer("", DefaultWrap)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

var htmlMarkdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderHTML converts markdown to an HTML fragment. Single newlines become
// line breaks, matching how streamed replies are written.
func RenderHTML(content string) (string, error) {
	var buf bytes.Buffer
	if err := htmlMarkdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}
