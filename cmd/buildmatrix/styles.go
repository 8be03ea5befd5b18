// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/invowk/buildmatrix/pkg/matrix"

	"github.com/charmbracelet/lipgloss"
)

// Color palette shared by every command.
const (
	// ColorPrimary is purple - used for titles and headers.
	ColorPrimary = lipgloss.Color("#7C3AED")

	// ColorMuted is gray - used for secondary text.
	ColorMuted = lipgloss.Color("#6B7280")

	// ColorSuccess is green - stable variants and positive outcomes.
	ColorSuccess = lipgloss.Color("#10B981")

	// ColorError is red - failed variants and errors.
	ColorError = lipgloss.Color("#EF4444")

	// ColorWarning is amber - unstable variants and warnings.
	ColorWarning = lipgloss.Color("#F59E0B")

	// ColorHighlight is blue - commands and names.
	ColorHighlight = lipgloss.Color("#3B82F6")
)

var (
	// TitleStyle is for primary headers and section titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary)

	// SubtitleStyle is for secondary headers and descriptions.
	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	// SuccessStyle is for success messages and positive indicators.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	// ErrorStyle is for error messages and failure indicators.
	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	// WarningStyle is for warning messages and caution indicators.
	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	// CmdStyle is for command and variant names.
	CmdStyle = lipgloss.NewStyle().
			Foreground(ColorHighlight)

	tableHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(ColorPrimary).
				Padding(0, 1)

	tableCellStyle = lipgloss.NewStyle().
			Padding(0, 1)
)

// statusStyle returns the style a status is rendered with.
func statusStyle(s matrix.Status) lipgloss.Style {
	switch s {
	case matrix.StatusStable:
		return SuccessStyle
	case matrix.StatusUnstable:
		return WarningStyle
	default:
		return ErrorStyle
	}
}

// statusIcon returns the single-character marker printed before a variant.
func statusIcon(s matrix.Status) string {
	switch s {
	case matrix.StatusStable:
		return SuccessStyle.Render("✓")
	case matrix.StatusUnstable:
		return WarningStyle.Render("!")
	default:
		return ErrorStyle.Render("✗")
	}
}
