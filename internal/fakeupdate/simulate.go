package fakeupdate

import (
	"fmt"

	"inappupdate/internal/appupdate"
)

var errNoFlow = fmt.Errorf("no update flow in progress")

// effects are callbacks collected under the lock and run after releasing it,
// so handlers may call back into the Service.
type effects struct {
	handler   appupdate.FlowResultHandler
	result    *appupdate.FlowResult
	state     *appupdate.InstallState
	listeners []appupdate.InstallStateListener
}

func (e effects) run() {
	if e.handler != nil && e.result != nil {
		e.handler.OnFlowResult(*e.result)
	}
	if e.state != nil {
		for _, l := range e.listeners {
			l.OnInstallStateChanged(*e.state)
		}
	}
}

func (s *Service) transitionLocked(status appupdate.InstallStatus) effects {
	s.installStatus = status
	state := appupdate.InstallState{
		Status:               status,
		BytesDownloaded:      s.bytes,
		TotalBytesToDownload: s.totalBytes,
		ErrorCode:            s.errorCode,
	}
	return effects{
		state:     &state,
		listeners: append([]appupdate.InstallStateListener(nil), s.listeners...),
	}
}

// finishFlowLocked ends the current flow with the given result. A nil
// payload models a flow torn down before it could report.
func (s *Service) finishFlowLocked(fx *effects, code appupdate.ResultCode, withPayload bool) {
	f := s.flow
	if f == nil {
		return
	}
	s.flow = nil
	result := appupdate.FlowResult{RequestCode: f.requestCode, ResultCode: code}
	if withPayload {
		result.Payload = &appupdate.FlowData{Version: f.version}
	}
	fx.handler = f.handler
	fx.result = &result
}

func (s *Service) immediateFlowLocked() bool {
	return s.flow != nil && s.flow.accepted && s.flow.mode == appupdate.ModeImmediate
}

// UserAcceptsUpdate confirms the update dialog. A flexible flow reports
// success right away and downloads in the background; an immediate flow
// stays on screen until the install finishes.
func (s *Service) UserAcceptsUpdate() error {
	s.mu.Lock()
	if s.flow == nil || s.flow.accepted {
		s.mu.Unlock()
		return errNoFlow
	}
	s.accepted = true
	s.errorCode = 0
	s.bytes = 0
	s.totalBytes = s.downloadSize

	var fx effects
	if s.flow.mode == appupdate.ModeImmediate {
		s.flow.accepted = true
		fx = s.transitionLocked(appupdate.StatusPending)
	} else {
		fx = s.transitionLocked(appupdate.StatusPending)
		s.finishFlowLocked(&fx, appupdate.ResultOK, true)
	}
	s.mu.Unlock()

	fx.run()
	return nil
}

// UserRejectsUpdate dismisses the update dialog.
func (s *Service) UserRejectsUpdate() error {
	s.mu.Lock()
	if s.flow == nil || s.flow.accepted {
		s.mu.Unlock()
		return errNoFlow
	}
	var fx effects
	s.finishFlowLocked(&fx, appupdate.ResultCanceled, true)
	s.mu.Unlock()

	fx.run()
	return nil
}

// InterruptFlow tears the flow down without a result payload, as when the
// host process dies. An accepted immediate update is then reported as
// developer-triggered and in progress until the flow is started again.
func (s *Service) InterruptFlow() error {
	s.mu.Lock()
	if s.flow == nil {
		s.mu.Unlock()
		return errNoFlow
	}
	if s.immediateFlowLocked() {
		s.availability = appupdate.AvailabilityDeveloperTriggeredInProgress
	}
	var fx effects
	s.finishFlowLocked(&fx, appupdate.ResultCanceled, false)
	s.mu.Unlock()

	fx.run()
	return nil
}

// DownloadStarts moves an accepted update to Downloading.
func (s *Service) DownloadStarts() error {
	s.mu.Lock()
	if !s.accepted || s.installStatus != appupdate.StatusPending {
		status := s.installStatus
		s.mu.Unlock()
		return fmt.Errorf("download cannot start while %s", status)
	}
	s.bytes = 0
	fx := s.transitionLocked(appupdate.StatusDownloading)
	s.mu.Unlock()

	fx.run()
	return nil
}

// SetDownloadProgress reports bytes downloaded so far.
func (s *Service) SetDownloadProgress(bytes, total int64) error {
	s.mu.Lock()
	if s.installStatus != appupdate.StatusDownloading {
		status := s.installStatus
		s.mu.Unlock()
		return fmt.Errorf("no download in progress (status %s)", status)
	}
	if total > 0 {
		s.totalBytes = total
	}
	s.bytes = min(max(bytes, 0), s.totalBytes)
	fx := s.transitionLocked(appupdate.StatusDownloading)
	s.mu.Unlock()

	fx.run()
	return nil
}

// DownloadCompletes finishes the download. An immediate flow goes straight
// on to installing.
func (s *Service) DownloadCompletes() error {
	s.mu.Lock()
	if s.installStatus != appupdate.StatusDownloading {
		status := s.installStatus
		s.mu.Unlock()
		return fmt.Errorf("no download in progress (status %s)", status)
	}
	s.bytes = s.totalBytes
	fx := s.transitionLocked(appupdate.StatusDownloaded)
	more := effects{}
	if s.immediateFlowLocked() {
		more = s.transitionLocked(appupdate.StatusInstalling)
	}
	s.mu.Unlock()

	fx.run()
	more.run()
	return nil
}

// AdvanceDownload steps a simulated download: start, progress in quarters,
// then complete.
func (s *Service) AdvanceDownload() error {
	s.mu.Lock()
	status, bytes, total := s.installStatus, s.bytes, s.totalBytes
	s.mu.Unlock()

	switch {
	case status == appupdate.StatusPending:
		return s.DownloadStarts()
	case status == appupdate.StatusDownloading && bytes+total/4 < total:
		return s.SetDownloadProgress(bytes+total/4, total)
	case status == appupdate.StatusDownloading:
		return s.DownloadCompletes()
	default:
		return fmt.Errorf("nothing to download (status %s)", status)
	}
}

// DownloadFails fails the download with the given error code.
func (s *Service) DownloadFails(code int) error {
	return s.abortDownload(appupdate.StatusFailed, code, appupdate.ResultFailed)
}

// UserCancelsDownload cancels the running download.
func (s *Service) UserCancelsDownload() error {
	return s.abortDownload(appupdate.StatusCanceled, 0, appupdate.ResultCanceled)
}

func (s *Service) abortDownload(status appupdate.InstallStatus, code int, result appupdate.ResultCode) error {
	s.mu.Lock()
	if s.installStatus != appupdate.StatusPending && s.installStatus != appupdate.StatusDownloading {
		current := s.installStatus
		s.mu.Unlock()
		return fmt.Errorf("no download to stop (status %s)", current)
	}
	s.errorCode = code
	s.accepted = false
	s.availability = appupdate.AvailabilityAvailable
	fx := s.transitionLocked(status)
	s.finishFlowLocked(&fx, result, true)
	s.mu.Unlock()

	fx.run()
	return nil
}

// InstallCompletes finishes an install started by CompleteUpdate or by an
// immediate flow. The installed version stops being available.
func (s *Service) InstallCompletes() error {
	s.mu.Lock()
	if s.installStatus != appupdate.StatusInstalling {
		status := s.installStatus
		s.mu.Unlock()
		return fmt.Errorf("no install in progress (status %s)", status)
	}
	s.installed = s.availableVersion
	s.currentVersion = s.availableVersion
	s.accepted = false
	s.availability = appupdate.AvailabilityNotAvailable
	s.flexibleAllowed = false
	s.immediateAllowed = false
	fx := s.transitionLocked(appupdate.StatusInstalled)
	s.finishFlowLocked(&fx, appupdate.ResultOK, true)
	s.mu.Unlock()

	fx.run()
	return nil
}

// InstallFails fails the running install.
func (s *Service) InstallFails(code int) error {
	s.mu.Lock()
	if s.installStatus != appupdate.StatusInstalling {
		status := s.installStatus
		s.mu.Unlock()
		return fmt.Errorf("no install in progress (status %s)", status)
	}
	s.errorCode = code
	s.accepted = false
	s.availability = appupdate.AvailabilityAvailable
	fx := s.transitionLocked(appupdate.StatusFailed)
	s.finishFlowLocked(&fx, appupdate.ResultFailed, true)
	s.mu.Unlock()

	fx.run()
	return nil
}

// State is an inspection snapshot of the simulated service.
type State struct {
	Availability     appupdate.Availability
	AvailableVersion string
	InstalledVersion string
	FlexibleAllowed  bool
	ImmediateAllowed bool
	InstallStatus    appupdate.InstallStatus
	BytesDownloaded  int64
	TotalBytes       int64
	ErrorCode        int
	ReleaseNotes     string

	// DialogVisible is true while the service's flow is on screen.
	DialogVisible bool
	FlowMode      appupdate.UpdateMode
	FlowAccepted  bool

	Listeners     int
	QueryCalls    int
	StartCalls    int
	CompleteCalls int
}

// State returns the current simulated state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Availability:     s.availability,
		AvailableVersion: s.availableVersion,
		InstalledVersion: s.installed,
		FlexibleAllowed:  s.flexibleAllowed,
		ImmediateAllowed: s.immediateAllowed,
		InstallStatus:    s.installStatus,
		BytesDownloaded:  s.bytes,
		TotalBytes:       s.totalBytes,
		ErrorCode:        s.errorCode,
		ReleaseNotes:     s.releaseNotes,
		Listeners:        len(s.listeners),
		QueryCalls:       s.queryCalls,
		StartCalls:       s.startCalls,
		CompleteCalls:    s.completeCalls,
	}
	if s.flow != nil {
		st.DialogVisible = true
		st.FlowMode = s.flow.mode
		st.FlowAccepted = s.flow.accepted
	}
	return st
}
