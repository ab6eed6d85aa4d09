// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// markdown rendering) for trickle CLI commands.
package cliui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	UserStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	AssistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	DimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	KeyStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	ValueStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	WarnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	ErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// spinnerFrames matches bubbletea's spinner.Dot pattern used in the chat TUI.
var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	stopped := make(chan struct{})
	var mu sync.Mutex

	go func() {
		defer close(stopped)
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)
	<-stopped

	// Clear the spinner line and print final result
	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// keyColumn is the default width of the key column in KeyValue.
const keyColumn = 18

// KeyValue renders an aligned "key  value" line.
func KeyValue(key, value string) string {
	return KeyValueWidth(key, value, keyColumn)
}

// KeyValueWidth renders a "key  value" line with the key padded to width.
// A key that does not fit is never wrapped; the column grows to hold it.
func KeyValueWidth(key, value string, width int) string {
	width = max(width, lipgloss.Width(key)+2)
	return KeyStyle.Width(width).Render(key) + ValueStyle.Render(value)
}
