// Package ui renders styled glyphs and accents for CLI output.
package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// styled reports whether output should carry color at all.
func styled() bool {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return false
	}
	return termenv.ColorProfile() != termenv.Ascii
}

func render(style lipgloss.Style, s string) string {
	if !styled() {
		return s
	}
	return style.Render(s)
}

// RenderAccent renders s in the accent style.
func RenderAccent(s string) string { return render(accentStyle, s) }

// RenderPass renders s in the success style.
func RenderPass(s string) string { return render(passStyle, s) }

// RenderWarn renders s in the warning style.
func RenderWarn(s string) string { return render(warnStyle, s) }

// RenderFail renders s in the failure style.
func RenderFail(s string) string { return render(failStyle, s) }
