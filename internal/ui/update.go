package ui

import (
	"fmt"
	"time"

	"inappupdate/internal/appupdate"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles lifecycle, status, and key messages.
func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.help.Width = msg.Width
		m.progress.Width = clampDimension(msg.Width-24, 10, 60)
		return m, nil

	case tea.FocusMsg:
		if m.closed {
			return m, nil
		}
		return m, m.lifecycleCmd(eventResume)

	case tea.BlurMsg:
		if !m.closed {
			m.orch.Detach()
		}
		return m, nil

	case lifecycleDoneMsg:
		m.checksInFlight = max(m.checksInFlight-1, 0)
		m.lastEvent = describeCheck(msg)
		m.refreshState()
		return m, nil

	case statusMsg:
		m.displayStatusToast(string(msg))
		m.refreshState()
		return m, tea.Batch(m.waitForStatus(), scheduleStatusToastTick())

	case statusToastTickMsg:
		if !m.statusToastVisible {
			return m, nil
		}
		if time.Since(m.statusToastStart) >= statusToastDuration {
			m.statusToastVisible = false
			return m, nil
		}
		return m, scheduleStatusToastTick()

	case copyToastTickMsg:
		if !m.showCopyToast {
			return m, nil
		}
		if time.Since(m.copyToastStart) >= copyToastDuration {
			m.showCopyToast = false
			return m, nil
		}
		return m, scheduleCopyToastTick()

	case errorToastTickMsg:
		if !m.showErrorToast {
			return m, nil
		}
		if time.Since(m.errorToastStart) >= errorToastDuration {
			m.showErrorToast = false
			return m, nil
		}
		return m, scheduleErrorToastTick()

	case stateTickMsg:
		m.refreshState()
		if m.closed {
			return m, nil
		}
		return m, scheduleStateTick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func describeCheck(msg lifecycleDoneMsg) string {
	if msg.started {
		return fmt.Sprintf("%s: update flow started", msg.event)
	}
	return fmt.Sprintf("%s: no flow started", msg.event)
}

func (m *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.shutdown()
		return m, tea.Quit
	}
	if m.showHelp {
		if key.Matches(msg, m.keys.Help, m.keys.Escape) {
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.Accept):
		return m, m.act("accept", m.svc.UserAcceptsUpdate())
	case key.Matches(msg, m.keys.Reject):
		return m, m.act("reject", m.svc.UserRejectsUpdate())
	case key.Matches(msg, m.keys.Interrupt):
		return m, m.act("interrupt", m.svc.InterruptFlow())
	case key.Matches(msg, m.keys.Download):
		return m, m.act("download", m.svc.AdvanceDownload())
	case key.Matches(msg, m.keys.FailDownload):
		return m, m.act("fail download", m.svc.DownloadFails(simulatedDownloadError))
	case key.Matches(msg, m.keys.Install):
		return m, m.act("install", m.svc.InstallCompletes())
	case key.Matches(msg, m.keys.Availability):
		m.toggleAvailability()
		return m, nil
	case key.Matches(msg, m.keys.Resume):
		if m.closed {
			return m, nil
		}
		return m, m.lifecycleCmd(eventResume)
	case key.Matches(msg, m.keys.Copy):
		return m.handleCopyKey()
	}
	return m, nil
}

// act records the outcome of a simulated user or system action.
func (m *App) act(name string, err error) tea.Cmd {
	m.refreshState()
	if err == nil {
		return nil
	}
	m.log.Logf("%s: %v", name, err)
	m.lastError = fmt.Sprintf("%s: %v", name, err)
	m.showErrorToast = true
	m.errorToastStart = time.Now()
	return scheduleErrorToastTick()
}

func (m *App) toggleAvailability() {
	if m.state.Availability == appupdate.AvailabilityAvailable {
		m.svc.SetUpdateNotAvailable()
	} else {
		m.svc.SetUpdateAvailable(m.offerVersion)
	}
	m.refreshState()
}

// handleCopyKey copies the current status message to the clipboard.
func (m *App) handleCopyKey() (tea.Model, tea.Cmd) {
	status := m.orch.Status().Get()
	if status == "" {
		return m, nil
	}
	if err := clipboard.WriteAll(status); err != nil {
		return m, m.act("copy", err)
	}
	m.showCopyToast = true
	m.copyToastStart = time.Now()
	return m, scheduleCopyToastTick()
}

func (m *App) displayStatusToast(message string) {
	m.statusToastMessage = message
	m.statusToastVisible = true
	m.statusToastStart = time.Now()
}

func clampDimension(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return min(max(v, lo), hi)
}
