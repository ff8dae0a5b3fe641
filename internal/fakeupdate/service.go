// Package fakeupdate provides an in-process update service for local runs and
// tests. It simulates the states of a platform update manager and the user's
// responses to its dialogs; nothing is downloaded or installed.
package fakeupdate

import (
	"context"
	"fmt"
	"sync"

	"inappupdate/internal/appupdate"
	"inappupdate/internal/debug"
	apperrors "inappupdate/internal/errors"
	"inappupdate/internal/update"
)

// DefaultDownloadSize is the simulated size of an update, in bytes.
const DefaultDownloadSize int64 = 8 << 20

// ReleaseSource reports whether a newer release exists.
// *update.Checker satisfies it.
type ReleaseSource interface {
	Check(ctx context.Context, currentVersion string) (*update.UpdateInfo, error)
}

// Service is a scriptable appupdate.Service.
type Service struct {
	mu sync.Mutex

	availability     appupdate.Availability
	availableVersion string
	flexibleAllowed  bool
	immediateAllowed bool
	releaseNotes     string
	stalenessDays    int

	installStatus appupdate.InstallStatus
	bytes         int64
	totalBytes    int64
	errorCode     int
	downloadSize  int64
	accepted      bool
	installed     string

	flow      *flow
	listeners []appupdate.InstallStateListener

	source         ReleaseSource
	currentVersion string

	queryCalls    int
	startCalls    int
	completeCalls int

	log debug.Logger
}

// Compile time check for interface compatibility.
var _ appupdate.Service = (*Service)(nil)

// flow is the interactive flow currently owned by the service.
type flow struct {
	handler     appupdate.FlowResultHandler
	requestCode int
	mode        appupdate.UpdateMode
	version     string
	// accepted is set once the user confirmed; an accepted immediate flow
	// stays in flight until the install finishes.
	accepted bool
}

// Option configures a Service.
type Option func(*Service)

// WithReleaseSource seeds availability from source on every query.
func WithReleaseSource(source ReleaseSource, currentVersion string) Option {
	return func(s *Service) {
		s.source = source
		s.currentVersion = currentVersion
	}
}

// WithDownloadSize sets the simulated download size.
func WithDownloadSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.downloadSize = n
		}
	}
}

// New returns a Service with no update available.
func New(opts ...Option) *Service {
	s := &Service{
		availability:  appupdate.AvailabilityNotAvailable,
		stalenessDays: -1,
		downloadSize:  DefaultDownloadSize,
		log:           debug.For("fakeupdate"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetUpdateAvailable makes version available, allowed for the given modes.
// With no modes, both are allowed.
func (s *Service) SetUpdateAvailable(version string, allowed ...appupdate.UpdateMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setAvailableLocked(version, allowed...)
}

func (s *Service) setAvailableLocked(version string, allowed ...appupdate.UpdateMode) {
	if len(allowed) == 0 {
		allowed = []appupdate.UpdateMode{appupdate.ModeFlexible, appupdate.ModeImmediate}
	}
	s.availability = appupdate.AvailabilityAvailable
	s.availableVersion = version
	s.flexibleAllowed = false
	s.immediateAllowed = false
	for _, mode := range allowed {
		switch mode {
		case appupdate.ModeFlexible:
			s.flexibleAllowed = true
		case appupdate.ModeImmediate:
			s.immediateAllowed = true
		}
	}
	s.resetInstallLocked()
}

// SetUpdateNotAvailable withdraws any available update.
func (s *Service) SetUpdateNotAvailable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.availability = appupdate.AvailabilityNotAvailable
	s.availableVersion = ""
	s.flexibleAllowed = false
	s.immediateAllowed = false
	s.resetInstallLocked()
}

// SetReleaseNotes sets the Markdown notes shown with the update.
func (s *Service) SetReleaseNotes(notes string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseNotes = notes
}

// SetStalenessDays sets the reported age of the update.
func (s *Service) SetStalenessDays(days int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalenessDays = days
}

func (s *Service) resetInstallLocked() {
	s.installStatus = appupdate.StatusUnknown
	s.bytes = 0
	s.totalBytes = 0
	s.errorCode = 0
	s.accepted = false
}

// QueryStatus implements appupdate.Service.
func (s *Service) QueryStatus(ctx context.Context) (appupdate.Snapshot, error) {
	s.mu.Lock()
	s.queryCalls++
	source, current := s.source, s.currentVersion
	s.mu.Unlock()

	if source != nil {
		info, err := source.Check(ctx, current)
		if err != nil {
			return appupdate.Snapshot{}, apperrors.New(apperrors.CodeQueryFailed,
				fmt.Sprintf("query release status: %v", err), err)
		}
		s.applyRelease(info)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// applyRelease folds a release check into the simulated state. An update that
// is already under way is left alone.
func (s *Service) applyRelease(info *update.UpdateInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accepted || s.flow != nil || s.availability == appupdate.AvailabilityDeveloperTriggeredInProgress {
		return
	}
	if info == nil || !info.UpdateAvailable {
		if s.availability == appupdate.AvailabilityAvailable {
			s.log.Logf("release source reports no newer version")
		}
		s.availability = appupdate.AvailabilityNotAvailable
		s.availableVersion = ""
		s.flexibleAllowed = false
		s.immediateAllowed = false
		return
	}

	version := info.LatestVersion.String()
	if s.availability == appupdate.AvailabilityAvailable && s.availableVersion == version {
		return
	}
	s.setAvailableLocked(version)
	if !info.InstallMethod.SelfUpdatable() {
		// Visible but not permitted: the package manager owns upgrades.
		s.flexibleAllowed = false
		s.immediateAllowed = false
	}
	s.releaseNotes = info.ReleaseNotes
	s.stalenessDays = info.StalenessDays()
}

func (s *Service) snapshotLocked() appupdate.Snapshot {
	return appupdate.Snapshot{
		Availability:         s.availability,
		AvailableVersion:     s.availableVersion,
		FlexibleAllowed:      s.flexibleAllowed,
		ImmediateAllowed:     s.immediateAllowed,
		InstallStatus:        s.installStatus,
		BytesDownloaded:      s.bytes,
		TotalBytesToDownload: s.totalBytes,
		StalenessDays:        s.stalenessDays,
		ReleaseNotes:         s.releaseNotes,
	}
}

// StartFlow implements appupdate.Service. Only one flow may be in flight, and
// an update the user already accepted is not offered again until it finishes
// or fails.
func (s *Service) StartFlow(_ context.Context, snapshot appupdate.Snapshot, handler appupdate.FlowResultHandler, opts appupdate.Options, requestCode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCalls++

	if handler == nil {
		return fmt.Errorf("start flow: nil result handler")
	}
	if s.flow != nil {
		return apperrors.New(apperrors.CodeFlowInProgress, "an update flow is already in progress", nil)
	}

	switch s.availability {
	case appupdate.AvailabilityAvailable:
		if s.accepted {
			return apperrors.New(apperrors.CodeFlowInProgress,
				fmt.Sprintf("update %s already accepted (%s)", s.availableVersion, s.installStatus), nil)
		}
		allowed := s.snapshotLocked().Allowed(opts.Mode)
		if !allowed {
			return apperrors.New(apperrors.CodeUpdateNotAllowed,
				fmt.Sprintf("%s update not allowed for %s", opts.Mode, s.availableVersion), nil)
		}
		s.flow = &flow{handler: handler, requestCode: requestCode, mode: opts.Mode, version: s.availableVersion}
	case appupdate.AvailabilityDeveloperTriggeredInProgress:
		if opts.Mode != appupdate.ModeImmediate {
			return apperrors.New(apperrors.CodeUpdateNotAllowed, "only an immediate flow can resume this update", nil)
		}
		s.flow = &flow{handler: handler, requestCode: requestCode, mode: opts.Mode, version: s.availableVersion, accepted: true}
		s.availability = appupdate.AvailabilityAvailable
	default:
		return apperrors.New(apperrors.CodeUpdateNotAvailable, "no update available", nil)
	}

	if snapshot.AvailableVersion != "" && snapshot.AvailableVersion != s.availableVersion {
		s.log.Logf("flow started from stale snapshot %q (now %q)", snapshot.AvailableVersion, s.availableVersion)
	}
	s.log.Logf("%s flow started for %q", opts.Mode, s.availableVersion)
	return nil
}

// RegisterListener implements appupdate.Service.
func (s *Service) RegisterListener(listener appupdate.InstallStateListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// UnregisterListener implements appupdate.Service.
func (s *Service) UnregisterListener(listener appupdate.InstallStateListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l == listener {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// CompleteUpdate implements appupdate.Service. It only succeeds once the
// update has been downloaded.
func (s *Service) CompleteUpdate(_ context.Context) error {
	s.mu.Lock()
	s.completeCalls++
	if s.installStatus != appupdate.StatusDownloaded {
		status := s.installStatus
		s.mu.Unlock()
		return apperrors.New(apperrors.CodeInstallNotReady,
			fmt.Sprintf("cannot complete update while %s", status), nil)
	}
	fx := s.transitionLocked(appupdate.StatusInstalling)
	s.mu.Unlock()

	fx.run()
	return nil
}
