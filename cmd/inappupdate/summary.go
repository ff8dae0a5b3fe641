package main

import (
	"fmt"
	"io"
	"time"

	"inappupdate/internal/appupdate"
	"inappupdate/internal/fakeupdate"

	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor = lipgloss.Color("#7D56F4")
	dimColor     = lipgloss.Color("#6272A4")
	textColor    = lipgloss.Color("#F8F8F2")
)

// ExitSummary holds data for the summary printed after the TUI exits.
type ExitSummary struct {
	Version    string
	Mode       appupdate.UpdateMode
	StartTime  time.Time
	Final      fakeupdate.State
	LastStatus string
}

// printExitSummary prints a short session report after the alt screen closes.
func printExitSummary(w io.Writer, summary ExitSummary) {
	appStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(primaryColor)

	dimStyle := lipgloss.NewStyle().
		Foreground(dimColor)

	textStyle := lipgloss.NewStyle().
		Foreground(textColor)

	versionStr := ""
	if summary.Version != "" {
		versionStr = dimStyle.Render(" " + summary.Version)
	}
	sessionStr := dimStyle.Render(fmt.Sprintf(" • %s session • %s mode",
		formatDuration(time.Since(summary.StartTime)), summary.Mode))

	_, _ = fmt.Fprintln(w, appStyle.Render("inappupdate")+versionStr+sessionStr)
	_, _ = fmt.Fprintln(w, textStyle.Render(describeOutcome(summary.Final)))
	if summary.LastStatus != "" {
		_, _ = fmt.Fprintln(w, dimStyle.Render("Last status: "+summary.LastStatus))
	}
}

// describeOutcome summarizes where the simulated update ended up.
func describeOutcome(st fakeupdate.State) string {
	switch {
	case st.InstalledVersion != "":
		return fmt.Sprintf("Installed %s", st.InstalledVersion)
	case st.InstallStatus == appupdate.StatusDownloading && st.TotalBytes > 0:
		return fmt.Sprintf("Update %s downloading (%d%%)", st.AvailableVersion, st.BytesDownloaded*100/st.TotalBytes)
	case st.InstallStatus != appupdate.StatusUnknown:
		return fmt.Sprintf("Update %s %s", st.AvailableVersion, st.InstallStatus)
	case st.Availability == appupdate.AvailabilityAvailable:
		return fmt.Sprintf("Update %s available, not started", st.AvailableVersion)
	default:
		return "No update available"
	}
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}
