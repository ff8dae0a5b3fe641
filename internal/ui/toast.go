package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const toastMaxWidth = 48

// renderToast returns the highest-priority visible toast, or "".
// Copy confirmation wins over errors, errors over status messages.
func (m *App) renderToast() string {
	switch {
	case m.showCopyToast:
		return m.renderCopyToast()
	case m.showErrorToast && m.lastError != "":
		return m.renderErrorToast()
	case m.statusToastVisible && m.statusToastMessage != "":
		return m.renderStatusToast()
	}
	return ""
}

// renderStatusToast shows the orchestrator's latest status message.
func (m *App) renderStatusToast() string {
	remaining := countdown(m.statusToastStart, statusToastDuration)
	icon, iconStyle := statusIcon(m.statusToastMessage)
	hero := iconStyle.Render(icon) + " " + styleVal.Render(m.statusToastMessage)
	return styleSuccessToast.Render(withCountdown(hero, remaining, 24))
}

func (m *App) renderErrorToast() string {
	remaining := countdown(m.errorToastStart, errorToastDuration)
	msg := wordwrap.String(m.lastError, toastMaxWidth)
	content := "⚠ Error\n" + msg
	return styleErrorToast.Render(withCountdown(content, remaining, 30))
}

func (m *App) renderCopyToast() string {
	remaining := countdown(m.copyToastStart, copyToastDuration)
	return styleSuccessToast.Render(withCountdown("Copied status to clipboard.", remaining, 30))
}

// statusIcon picks an icon for a status message.
func statusIcon(message string) (string, lipgloss.Style) {
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "failed"):
		return "✘", styleBad
	case strings.Contains(lower, "canceled"):
		return "○", styleStatsDim
	default:
		return "✔", styleGood
	}
}

func countdown(start time.Time, total time.Duration) int {
	remaining := int((total - time.Since(start)).Seconds())
	return max(remaining, 0)
}

// withCountdown appends a right-aligned "[Ns]" line below content.
func withCountdown(content string, remaining, minWidth int) string {
	countdownStr := styleStatsDim.Render(fmt.Sprintf("[%ds]", remaining))
	width := max(lipgloss.Width(content), minWidth)
	padding := max(width-lipgloss.Width(countdownStr), 0)
	return content + "\n" + strings.Repeat(" ", padding) + countdownStr
}
