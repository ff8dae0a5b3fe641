package ui

import (
	"fmt"
	"strings"

	"inappupdate/internal/appupdate"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// View renders the host screen.
func (m *App) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.renderHeader()
	footer := m.help.View(m.keys)
	bodyHeight := max(m.height-lipgloss.Height(header)-lipgloss.Height(footer), minBodyHeight)

	if m.showHelp {
		return fmt.Sprintf("%s\n%s\n%s", header, renderHelpOverlay(m.keys, m.width, bodyHeight), footer)
	}

	paneWidth := max(m.width-2, 1)
	panel := stylePane.Width(paneWidth).Height(bodyHeight - 2).Render(m.renderStatePanel())

	canvas := NewCanvas(m.width, bodyHeight)
	canvas.DrawStringAt(0, 0, panel)
	switch {
	case m.state.DialogVisible && m.state.FlowAccepted:
		canvas.centerOverlay(m.renderBlockingUpdate())
	case m.state.DialogVisible:
		canvas.centerOverlay(m.renderDialog())
	}
	if toast := m.renderToast(); toast != "" {
		canvas.bottomRightOverlay(toast, 1)
	}
	body := canvas.Render()
	return fmt.Sprintf("%s\n%s\n%s", header, body, footer)
}

func (m *App) renderHeader() string {
	title := "IN-APP UPDATE"
	if m.version != "" {
		title = fmt.Sprintf("IN-APP UPDATE %s", m.version)
	}

	listener := "detached"
	if m.orch.Attached() {
		listener = "attached"
	}
	info := styleStatsDim.Render(fmt.Sprintf("mode: %s • listener: %s", m.orch.Mode(), listener))
	left := styleAppHeader.Render(title) + " " + info

	if m.lastError == "" {
		return left
	}
	right := styleErrorIndicator.Render("⚠ " + truncate(m.lastError, 40))
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 1
	if gap < 1 {
		return left + " " + right
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m *App) renderStatePanel() string {
	st := m.state
	var b strings.Builder

	field := func(name, value string) {
		b.WriteString(styleField.Render(name))
		b.WriteString(value)
		b.WriteString("\n")
	}

	availability := styleVal.Render(st.Availability.String())
	if st.AvailableVersion != "" {
		availability += " " + styleVersion.Render(st.AvailableVersion)
	}
	field("Availability", availability)
	field("Allowed", fmt.Sprintf("flexible %s  immediate %s", checkMark(st.FlexibleAllowed), checkMark(st.ImmediateAllowed)))
	field("Install", m.renderInstallStatus())
	if st.TotalBytes > 0 && showsProgress(st.InstallStatus) {
		field("Download", m.renderProgress())
	}
	if st.ErrorCode != 0 {
		field("Error code", styleBad.Render(fmt.Sprintf("%d", st.ErrorCode)))
	}
	if st.InstalledVersion != "" {
		field("Installed", styleVersion.Render(st.InstalledVersion))
	}
	if m.orch.CompletionPending() {
		field("Completion", styleBusy.Render("scheduled"))
	}

	check := m.lastEvent
	if m.checksInFlight > 0 {
		check = m.spinner.View() + " checking for updates"
	}
	if check != "" {
		field("Last check", styleStatsDim.Render(check))
	}
	if status := m.orch.Status().Get(); status != "" {
		field("Status", styleVal.Render(status))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (m *App) renderInstallStatus() string {
	status := m.state.InstallStatus
	switch status {
	case appupdate.StatusPending, appupdate.StatusInstalling:
		return m.spinner.View() + " " + styleBusy.Render(status.String())
	case appupdate.StatusInstalled, appupdate.StatusDownloaded:
		return styleGood.Render(status.String())
	case appupdate.StatusFailed, appupdate.StatusCanceled:
		return styleBad.Render(status.String())
	default:
		return styleStatsDim.Render(status.String())
	}
}

func showsProgress(status appupdate.InstallStatus) bool {
	return status == appupdate.StatusDownloading || status == appupdate.StatusDownloaded
}

func (m *App) renderProgress() string {
	st := m.state
	percent := 0.0
	if st.TotalBytes > 0 {
		percent = float64(st.BytesDownloaded) / float64(st.TotalBytes)
	}
	return m.progress.ViewAs(percent) + " " +
		styleStatsDim.Render(fmt.Sprintf("%s / %s", humanize.IBytes(uint64(st.BytesDownloaded)), humanize.IBytes(uint64(st.TotalBytes))))
}

// renderDialog renders the service's confirmation dialog.
func (m *App) renderDialog() string {
	st := m.state
	lines := []string{
		styleDialogTitle.Render("Update available"),
		"",
		fmt.Sprintf("Version %s is ready to install (%s update).", styleVersion.Render(st.AvailableVersion), st.FlowMode),
	}
	if notes := strings.TrimSpace(st.ReleaseNotes); notes != "" {
		lines = append(lines, "", m.renderNotes(notes))
	}
	lines = append(lines, "",
		keyHint(m.keys.Accept)+"   "+keyHint(m.keys.Reject)+"   "+keyHint(m.keys.Interrupt))
	return styleDialog.Render(strings.Join(lines, "\n"))
}

// renderBlockingUpdate renders the full-screen immediate update.
func (m *App) renderBlockingUpdate() string {
	st := m.state
	lines := []string{
		styleDialogTitle.Render("Updating to " + st.AvailableVersion),
		"",
		m.renderInstallStatus(),
	}
	if st.TotalBytes > 0 && showsProgress(st.InstallStatus) {
		lines = append(lines, "", m.renderProgress())
	}
	lines = append(lines, "",
		styleStatsDim.Render("The app is unavailable until the update finishes."),
		keyHint(m.keys.Download)+"   "+keyHint(m.keys.Install)+"   "+keyHint(m.keys.Interrupt))
	return styleDialog.Render(strings.Join(lines, "\n"))
}

func keyHint(b key.Binding) string {
	h := b.Help()
	return styleHelpKey.Render(h.Key) + " " + styleHelpDesc.Render(h.Desc)
}

func checkMark(ok bool) string {
	if ok {
		return styleGood.Render("✔")
	}
	return styleBad.Render("✘")
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
