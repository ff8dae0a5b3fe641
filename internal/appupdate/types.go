package appupdate

import (
	"fmt"
	"strings"
)

// RequestCode is the correlation token passed with every flow request.
// Only one flow type is ever requested, so it is a constant.
const RequestCode = 123

// UpdateMode selects how an update is delivered to the user.
type UpdateMode int

const (
	// ModeFlexible downloads in the background and installs on completion.
	ModeFlexible UpdateMode = iota
	// ModeImmediate blocks the app behind the service's flow until the update finishes.
	ModeImmediate
)

// String returns the configuration name of the mode.
func (m UpdateMode) String() string {
	switch m {
	case ModeFlexible:
		return "flexible"
	case ModeImmediate:
		return "immediate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode parses "flexible" or "immediate", ignoring case and surrounding space.
func ParseMode(s string) (UpdateMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "flexible":
		return ModeFlexible, nil
	case "immediate":
		return ModeImmediate, nil
	default:
		return 0, fmt.Errorf("unknown update mode %q (want flexible or immediate)", s)
	}
}

// Availability reports whether the service has an update for this app.
type Availability int

const (
	AvailabilityUnknown                      Availability = 0
	AvailabilityNotAvailable                 Availability = 1
	AvailabilityAvailable                    Availability = 2
	AvailabilityDeveloperTriggeredInProgress Availability = 3
)

func (a Availability) String() string {
	switch a {
	case AvailabilityNotAvailable:
		return "not available"
	case AvailabilityAvailable:
		return "available"
	case AvailabilityDeveloperTriggeredInProgress:
		return "in progress"
	default:
		return "unknown"
	}
}

// InstallStatus is the state of a download/install driven by the service.
// The numeric values follow the platform library, hence the gap before Downloaded.
type InstallStatus int

const (
	StatusUnknown     InstallStatus = 0
	StatusPending     InstallStatus = 1
	StatusDownloading InstallStatus = 2
	StatusInstalling  InstallStatus = 3
	StatusInstalled   InstallStatus = 4
	StatusFailed      InstallStatus = 5
	StatusCanceled    InstallStatus = 6
	StatusDownloaded  InstallStatus = 11
)

func (s InstallStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDownloading:
		return "downloading"
	case StatusInstalling:
		return "installing"
	case StatusInstalled:
		return "installed"
	case StatusFailed:
		return "failed"
	case StatusCanceled:
		return "canceled"
	case StatusDownloaded:
		return "downloaded"
	default:
		return "unknown"
	}
}

// InstallState is one push notification from the service.
type InstallState struct {
	Status               InstallStatus
	BytesDownloaded      int64
	TotalBytesToDownload int64
	ErrorCode            int
}

// Snapshot is the read-only update status returned by a query.
// It is never cached by the Orchestrator.
type Snapshot struct {
	Availability         Availability
	AvailableVersion     string
	FlexibleAllowed      bool
	ImmediateAllowed     bool
	InstallStatus        InstallStatus
	BytesDownloaded      int64
	TotalBytesToDownload int64
	// StalenessDays is the age of the available update in days, or -1 if unknown.
	StalenessDays int
	ReleaseNotes  string
}

// Allowed reports the permission flag for the given mode.
func (s Snapshot) Allowed(mode UpdateMode) bool {
	switch mode {
	case ModeFlexible:
		return s.FlexibleAllowed
	case ModeImmediate:
		return s.ImmediateAllowed
	default:
		return false
	}
}

// Options are passed to the service when starting a flow.
type Options struct {
	Mode UpdateMode
}

// ResultCode is the terminal outcome code of an interactive flow.
type ResultCode int

const (
	ResultOK       ResultCode = -1
	ResultCanceled ResultCode = 0
	ResultFailed   ResultCode = 1
)

func (r ResultCode) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultCanceled:
		return "canceled"
	case ResultFailed:
		return "failed"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// FlowData is the payload attached to a delivered flow result.
type FlowData struct {
	Version string
}

// FlowResult is delivered once per flow invocation. A nil Payload means the
// flow ended with nothing to report (for example the host was torn down).
type FlowResult struct {
	RequestCode int
	ResultCode  ResultCode
	Payload     *FlowData
}
