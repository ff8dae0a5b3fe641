package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"inappupdate/internal/appupdate"
	"inappupdate/internal/config"
	"inappupdate/internal/debug"
	"inappupdate/internal/fakeupdate"
	"inappupdate/internal/ui"
	"inappupdate/internal/update"

	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing config: %v\n", err)
		os.Exit(1)
	}

	versionFlag := flag.Bool("version", false, "Print version information and exit")
	modeFlag := flag.String("mode", config.GetString(config.KeyUpdateMode), "Update mode (flexible or immediate)")
	delayFlag := flag.Duration("complete-delay", config.GetDuration(config.KeyUpdateCompleteDelay), "Delay before asking the service to complete a downloaded update")
	releaseCheckFlag := flag.Bool("release-check", config.GetBool(config.KeyReleaseCheck), "Seed update availability from the latest GitHub release")
	ownerFlag := flag.String("owner", config.GetString(config.KeyReleaseOwner), "GitHub owner for the release check")
	repoFlag := flag.String("repo", config.GetString(config.KeyReleaseRepo), "GitHub repository for the release check")
	availableFlag := flag.String("available-version", config.GetString(config.KeyFakeAvailableVersion), "Offer this version from the simulated service at startup")
	notesFormatFlag := flag.String("notes-format", config.GetString(config.KeyNotesFormat), "Release notes style (rich, light, plain)")
	chooseModeFlag := flag.Bool("choose-mode", false, "Pick the update mode interactively before starting")
	debugFlag := flag.Bool("debug", config.GetBool(config.KeyDebug), "Write a debug log to ~/.inappupdate/debug.log")
	flag.Parse()

	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	visited := map[string]struct{}{}
	flag.CommandLine.Visit(func(f *flag.Flag) {
		visited[f.Name] = struct{}{}
	})

	overrides := computeOverrides(runtimeFlags{
		mode:             modeFlag,
		completeDelay:    delayFlag,
		releaseCheck:     releaseCheckFlag,
		owner:            ownerFlag,
		repo:             repoFlag,
		availableVersion: availableFlag,
		notesFormat:      notesFormatFlag,
		debug:            debugFlag,
	}, visited)
	if err := config.ApplyOverrides(overrides); err != nil {
		fmt.Fprintf(os.Stderr, "Error applying flags: %v\n", err)
		os.Exit(1)
	}

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *chooseModeFlag {
		settings.Mode = chooseMode(settings.Mode)
	}

	if err := debug.Init(settings.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: debug log unavailable: %v\n", err)
	}
	defer debug.Close()
	debug.Logf("starting %s mode=%s delay=%s release-check=%t", Version, settings.Mode, settings.CompleteDelay, settings.ReleaseCheck)

	start := time.Now()
	appCfg := buildAppConfig(settings, Version)
	if err := runProgram(appCfg, ui.NewApp, func(app *ui.App) programRunner {
		return tea.NewProgram(app, tea.WithAltScreen(), tea.WithReportFocus())
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		debug.Close()
		os.Exit(1)
	}

	printExitSummary(os.Stdout, ExitSummary{
		Version:    Version,
		Mode:       settings.Mode,
		StartTime:  start,
		Final:      appCfg.Service.State(),
		LastStatus: appCfg.Orchestrator.Status().Get(),
	})
}

// buildAppConfig wires the service, the status holder and the orchestrator.
// Each is built once here and shared by reference.
func buildAppConfig(settings config.Settings, version string) ui.Config {
	var opts []fakeupdate.Option
	if settings.ReleaseCheck {
		checker := update.NewChecker(settings.ReleaseOwner, settings.ReleaseRepo)
		opts = append(opts, fakeupdate.WithReleaseSource(checker, version))
	}
	svc := fakeupdate.New(opts...)
	if settings.FakeAvailableVersion != "" {
		svc.SetUpdateAvailable(settings.FakeAvailableVersion)
	}

	status := appupdate.NewStatus()
	orch := appupdate.New(svc, settings.Mode,
		appupdate.WithStatus(status),
		appupdate.WithCompleteDelay(settings.CompleteDelay),
	)

	return ui.Config{
		Orchestrator: orch,
		Service:      svc,
		Version:      version,
		OfferVersion: settings.FakeAvailableVersion,
		NotesFormat:  settings.NotesFormat,
	}
}

type programRunner interface {
	Run() (tea.Model, error)
}

type programFactory func(*ui.App) programRunner

func runProgram(cfg ui.Config, builder func(ui.Config) (*ui.App, error), factory programFactory) error {
	app, err := builder(cfg)
	if err != nil {
		return fmt.Errorf("initialize UI: %w", err)
	}
	defer app.Close()
	if factory == nil {
		return fmt.Errorf("program factory is nil")
	}
	prog := factory(app)
	if prog == nil {
		return fmt.Errorf("program is nil")
	}
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("run UI: %w", err)
	}
	return nil
}

type runtimeFlags struct {
	mode             *string
	completeDelay    *time.Duration
	releaseCheck     *bool
	owner            *string
	repo             *string
	availableVersion *string
	notesFormat      *string
	debug            *bool
}

// computeOverrides returns config overrides for flags set on the command line.
// Flags left at their config-derived defaults do not override anything.
func computeOverrides(flags runtimeFlags, visited map[string]struct{}) map[string]any {
	overrides := map[string]any{}
	if flagWasExplicitlySet("mode", visited) {
		overrides[config.KeyUpdateMode] = strings.TrimSpace(*flags.mode)
	}
	if flagWasExplicitlySet("complete-delay", visited) {
		overrides[config.KeyUpdateCompleteDelay] = flags.completeDelay.String()
	}
	if flagWasExplicitlySet("release-check", visited) {
		overrides[config.KeyReleaseCheck] = *flags.releaseCheck
	}
	if flagWasExplicitlySet("owner", visited) {
		overrides[config.KeyReleaseOwner] = strings.TrimSpace(*flags.owner)
	}
	if flagWasExplicitlySet("repo", visited) {
		overrides[config.KeyReleaseRepo] = strings.TrimSpace(*flags.repo)
	}
	if flagWasExplicitlySet("available-version", visited) {
		overrides[config.KeyFakeAvailableVersion] = strings.TrimSpace(*flags.availableVersion)
	}
	if flagWasExplicitlySet("notes-format", visited) {
		overrides[config.KeyNotesFormat] = strings.TrimSpace(*flags.notesFormat)
	}
	if flagWasExplicitlySet("debug", visited) {
		overrides[config.KeyDebug] = *flags.debug
	}
	return overrides
}

func flagWasExplicitlySet(name string, visited map[string]struct{}) bool {
	_, ok := visited[name]
	return ok
}
