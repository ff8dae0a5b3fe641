package ui

import (
	"context"
	"fmt"
	"time"

	"inappupdate/internal/appupdate"
	"inappupdate/internal/debug"
	"inappupdate/internal/fakeupdate"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	defaultOfferVersion = "v1.1.0"
	minBodyHeight       = 6
	dialogNotesWidth    = 60

	// simulatedDownloadError is the error code reported by the fail key.
	simulatedDownloadError = -100
)

// Simulator is the subset of the in-process update service the UI drives.
// *fakeupdate.Service implements it.
type Simulator interface {
	State() fakeupdate.State
	UserAcceptsUpdate() error
	UserRejectsUpdate() error
	InterruptFlow() error
	AdvanceDownload() error
	DownloadFails(code int) error
	InstallCompletes() error
	SetUpdateAvailable(version string, allowed ...appupdate.UpdateMode)
	SetUpdateNotAvailable()
}

// Config configures the UI application.
type Config struct {
	Orchestrator *appupdate.Orchestrator
	Service      Simulator
	Version      string // Version string to display in header
	// OfferVersion is offered when availability is toggled on.
	OfferVersion string
	// NotesFormat selects release-notes rendering: "rich", "light" or "plain".
	NotesFormat string
}

// App implements the Bubble Tea model hosting the update orchestrator.
type App struct {
	orch *appupdate.Orchestrator
	svc  Simulator

	ctx    context.Context
	cancel context.CancelFunc

	keys     KeyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model

	state        fakeupdate.State
	renderNotes  func(string) string
	notesFormat  string
	version      string
	offerVersion string

	width    int
	height   int
	ready    bool
	showHelp bool
	closed   bool

	checksInFlight int
	lastEvent      string

	statusToastVisible bool
	statusToastMessage string
	statusToastStart   time.Time

	showCopyToast  bool
	copyToastStart time.Time

	lastError       string
	showErrorToast  bool
	errorToastStart time.Time

	log debug.Logger
}

// NewApp creates the UI for an already constructed orchestrator and service.
func NewApp(cfg Config) (*App, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("ui: orchestrator is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("ui: service is required")
	}
	offer := cfg.OfferVersion
	if offer == "" {
		offer = defaultOfferVersion
	}

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = styleBusy

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
	)

	ctx, cancel := context.WithCancel(context.Background())
	m := &App{
		orch:         cfg.Orchestrator,
		svc:          cfg.Service,
		ctx:          ctx,
		cancel:       cancel,
		keys:         DefaultKeyMap(),
		help:         help.New(),
		spinner:      s,
		progress:     p,
		notesFormat:  cfg.NotesFormat,
		renderNotes:  buildMarkdownRenderer(cfg.NotesFormat, dialogNotesWidth),
		version:      cfg.Version,
		offerVersion: offer,
		log:          debug.For("ui"),
	}
	m.refreshState()
	return m, nil
}

// Init runs the launch check and starts watching for status messages.
func (m *App) Init() tea.Cmd {
	return tea.Batch(
		m.lifecycleCmd(eventLaunch),
		m.waitForStatus(),
		m.spinner.Tick,
		scheduleStateTick(),
	)
}

// lifecycleCmd runs a launch or resume check off the UI goroutine; the
// query may reach the network.
func (m *App) lifecycleCmd(event lifecycleEvent) tea.Cmd {
	m.checksInFlight++
	orch, ctx := m.orch, m.ctx
	return func() tea.Msg {
		var started bool
		switch event {
		case eventLaunch:
			started = orch.Launch(ctx)
		default:
			orch.Attach()
			started = orch.Resume(ctx)
		}
		return lifecycleDoneMsg{event: event, started: started}
	}
}

// waitForStatus blocks on the status holder and delivers the latest message.
func (m *App) waitForStatus() tea.Cmd {
	updates := m.orch.Status().Updates()
	return func() tea.Msg {
		return statusMsg(<-updates)
	}
}

func (m *App) refreshState() {
	m.state = m.svc.State()
}

// shutdown is the destroy callback. Safe to call more than once.
func (m *App) shutdown() {
	if m.closed {
		return
	}
	m.closed = true
	m.orch.Close()
	m.cancel()
}

// Close releases the orchestrator. The program's owner calls it after the
// Bubble Tea loop exits, covering exits that bypass the quit key.
func (m *App) Close() {
	m.shutdown()
}
