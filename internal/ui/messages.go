package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// lifecycleEvent is a host lifecycle callback forwarded to the orchestrator.
type lifecycleEvent int

const (
	eventLaunch lifecycleEvent = iota
	eventResume
)

func (e lifecycleEvent) String() string {
	if e == eventLaunch {
		return "launch"
	}
	return "resume"
}

// lifecycleDoneMsg reports a finished launch or resume check.
type lifecycleDoneMsg struct {
	event   lifecycleEvent
	started bool
}

// statusMsg carries a new status message from the orchestrator.
type statusMsg string

type statusToastTickMsg struct{}

type copyToastTickMsg struct{}

type errorToastTickMsg struct{}

// stateTickMsg polls the service for changes made off the UI goroutine,
// such as a completion request firing.
type stateTickMsg struct{}

const (
	statusToastDuration = 5 * time.Second
	copyToastDuration   = 3 * time.Second
	errorToastDuration  = 5 * time.Second
	toastTickInterval   = 200 * time.Millisecond
	stateTickInterval   = 250 * time.Millisecond
)

func scheduleStatusToastTick() tea.Cmd {
	return tea.Tick(toastTickInterval, func(time.Time) tea.Msg {
		return statusToastTickMsg{}
	})
}

func scheduleCopyToastTick() tea.Cmd {
	return tea.Tick(toastTickInterval, func(time.Time) tea.Msg {
		return copyToastTickMsg{}
	})
}

func scheduleErrorToastTick() tea.Cmd {
	return tea.Tick(toastTickInterval, func(time.Time) tea.Msg {
		return errorToastTickMsg{}
	})
}

func scheduleStateTick() tea.Cmd {
	return tea.Tick(stateTickInterval, func(time.Time) tea.Msg {
		return stateTickMsg{}
	})
}
