package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"sync"
	"testing"
	"time"

	"inappupdate/internal/appupdate"
	"inappupdate/internal/config"
	"inappupdate/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

var configInitOnce sync.Once

func ensureTestConfig(t *testing.T) {
	t.Helper()
	configInitOnce.Do(func() {
		dir := t.TempDir()
		if err := config.Initialize(
			config.WithProjectConfig(""),
			config.WithUserConfig(dir+"/user.yaml"),
			config.WithWorkingDir(dir),
		); err != nil {
			t.Fatalf("init config: %v", err)
		}
	})
	overrides := map[string]any{
		config.KeyUpdateMode:           "flexible",
		config.KeyUpdateCompleteDelay:  "5s",
		config.KeyReleaseCheck:         false,
		config.KeyFakeAvailableVersion: "",
		config.KeyDebug:                false,
	}
	if err := config.ApplyOverrides(overrides); err != nil {
		t.Fatalf("apply overrides: %v", err)
	}
}

func overridesForArgs(t *testing.T, args []string) map[string]any {
	t.Helper()
	ensureTestConfig(t)

	fs := flag.NewFlagSet("inappupdate-test", flag.ContinueOnError)
	flags := runtimeFlags{
		mode:             fs.String("mode", config.GetString(config.KeyUpdateMode), "mode"),
		completeDelay:    fs.Duration("complete-delay", config.GetDuration(config.KeyUpdateCompleteDelay), "delay"),
		releaseCheck:     fs.Bool("release-check", false, "release check"),
		owner:            fs.String("owner", "", "owner"),
		repo:             fs.String("repo", "", "repo"),
		availableVersion: fs.String("available-version", "", "version"),
		notesFormat:      fs.String("notes-format", "rich", "notes"),
		debug:            fs.Bool("debug", false, "debug"),
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse args: %v", err)
	}
	visited := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) {
		visited[f.Name] = struct{}{}
	})
	return computeOverrides(flags, visited)
}

func TestComputeOverrides_OnlyExplicitFlags(t *testing.T) {
	got := overridesForArgs(t, []string{"--mode", " immediate ", "--complete-delay=2s"})
	if len(got) != 2 {
		t.Fatalf("expected 2 overrides, got %v", got)
	}
	if got[config.KeyUpdateMode] != "immediate" {
		t.Fatalf("expected trimmed mode override, got %v", got[config.KeyUpdateMode])
	}
	if got[config.KeyUpdateCompleteDelay] != "2s" {
		t.Fatalf("expected delay override 2s, got %v", got[config.KeyUpdateCompleteDelay])
	}
}

func TestComputeOverrides_NoFlags(t *testing.T) {
	if got := overridesForArgs(t, nil); len(got) != 0 {
		t.Fatalf("expected no overrides, got %v", got)
	}
}

func TestComputeOverrides_FlagsFeedLoad(t *testing.T) {
	overrides := overridesForArgs(t, []string{"--mode=immediate", "--available-version=v3.0.0", "--debug"})
	t.Cleanup(func() { ensureTestConfig(t) })
	if err := config.ApplyOverrides(overrides); err != nil {
		t.Fatalf("apply overrides: %v", err)
	}
	settings, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.Mode != appupdate.ModeImmediate || settings.FakeAvailableVersion != "v3.0.0" || !settings.Debug {
		t.Fatalf("settings = %+v", settings)
	}
}

func TestBuildAppConfig(t *testing.T) {
	cfg := buildAppConfig(config.Settings{
		Mode:                 appupdate.ModeImmediate,
		CompleteDelay:        time.Second,
		FakeAvailableVersion: "v2.0.0",
		NotesFormat:          "plain",
	}, "v1.0.0")

	if cfg.Orchestrator == nil || cfg.Service == nil {
		t.Fatal("expected orchestrator and service")
	}
	if cfg.Orchestrator.Mode() != appupdate.ModeImmediate {
		t.Fatalf("mode = %s", cfg.Orchestrator.Mode())
	}
	st := cfg.Service.State()
	if st.Availability != appupdate.AvailabilityAvailable || st.AvailableVersion != "v2.0.0" {
		t.Fatalf("service state = %+v", st)
	}
	if cfg.Version != "v1.0.0" || cfg.OfferVersion != "v2.0.0" {
		t.Fatalf("config = %+v", cfg)
	}
}

type stubProgram struct {
	ran bool
	err error
}

func (p *stubProgram) Run() (tea.Model, error) {
	p.ran = true
	return nil, p.err
}

func testAppConfig() ui.Config {
	return buildAppConfig(config.Settings{Mode: appupdate.ModeFlexible, CompleteDelay: time.Second}, "dev")
}

func TestRunProgram(t *testing.T) {
	prog := &stubProgram{}
	var built *ui.App
	err := runProgram(testAppConfig(), func(cfg ui.Config) (*ui.App, error) {
		app, err := ui.NewApp(cfg)
		built = app
		return app, err
	}, func(app *ui.App) programRunner {
		if app != built {
			t.Fatal("factory received a different app")
		}
		return prog
	})
	if err != nil {
		t.Fatalf("runProgram: %v", err)
	}
	if !prog.ran {
		t.Fatal("program was not run")
	}
}

func TestRunProgramErrors(t *testing.T) {
	builderErr := errors.New("boom")
	err := runProgram(testAppConfig(), func(ui.Config) (*ui.App, error) {
		return nil, builderErr
	}, nil)
	if !errors.Is(err, builderErr) || !strings.Contains(err.Error(), "initialize UI") {
		t.Fatalf("expected wrapped builder error, got %v", err)
	}

	if err := runProgram(testAppConfig(), ui.NewApp, nil); err == nil {
		t.Fatal("expected error for nil factory")
	}

	runErr := errors.New("tty gone")
	err = runProgram(testAppConfig(), ui.NewApp, func(*ui.App) programRunner {
		return &stubProgram{err: runErr}
	})
	if !errors.Is(err, runErr) {
		t.Fatalf("expected wrapped run error, got %v", err)
	}
}

func TestWriteVersion(t *testing.T) {
	origVersion, origBuild, origTime := Version, Build, BuildTime
	t.Cleanup(func() {
		Version, Build, BuildTime = origVersion, origBuild, origTime
	})

	Version, Build, BuildTime = "1.4.0", "abc1234", "2026-01-02"
	var buf bytes.Buffer
	writeVersion(&buf)
	out := buf.String()
	for _, want := range []string{"inappupdate version 1.4.0", "(build: abc1234)", "[2026-01-02]", "Go version:", "OS/Arch:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("version output missing %q:\n%s", want, out)
		}
	}
}
