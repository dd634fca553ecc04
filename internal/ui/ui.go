// Package ui renders the janitor's console banners.
package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	skippedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

var noColor = os.Getenv("NO_COLOR") != ""

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}

func render(s lipgloss.Style, text string) string {
	if noColor {
		return text
	}
	return s.Render(text)
}

// Success prints a green SUCCESS banner followed by msg.
func Success(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", render(successStyle, "SUCCESS"), msg)
}

// Failure prints a red FAILED banner followed by the error.
func Failure(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %v\n", render(failureStyle, "FAILED"), err)
}

// Skipped prints a yellow SKIPPED banner followed by msg.
func Skipped(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", render(skippedStyle, "SKIPPED"), msg)
}

// Status prints a dimmed progress line.
func Status(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", render(mutedStyle, "›"), msg)
}
