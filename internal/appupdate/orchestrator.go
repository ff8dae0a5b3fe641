package appupdate

import (
	"context"
	"sync"
	"time"

	"inappupdate/internal/debug"

	"github.com/juju/clock"
)

// DefaultCompleteDelay is the wait between an install-state change and the
// completion request.
const DefaultCompleteDelay = 5 * time.Second

// Orchestrator drives the update service from application lifecycle events.
//
// It implements FlowResultHandler and InstallStateListener so it can hand
// itself to the service.
type Orchestrator struct {
	service    Service
	mode       UpdateMode
	status     *Status
	completion *deferredTask
	log        debug.Logger

	mu       sync.Mutex
	attached bool
}

type settings struct {
	clock         clock.Clock
	completeDelay time.Duration
	status        *Status
}

// Option configures an Orchestrator.
type Option func(*settings)

// WithClock sets the clock used to delay completion requests.
func WithClock(clk clock.Clock) Option {
	return func(s *settings) {
		s.clock = clk
	}
}

// WithCompleteDelay overrides DefaultCompleteDelay.
func WithCompleteDelay(d time.Duration) Option {
	return func(s *settings) {
		s.completeDelay = d
	}
}

// WithStatus shares an existing Status with the Orchestrator.
func WithStatus(status *Status) Option {
	return func(s *settings) {
		s.status = status
	}
}

// New creates an Orchestrator for the given service and mode.
func New(service Service, mode UpdateMode, opts ...Option) *Orchestrator {
	s := settings{
		clock:         clock.WallClock,
		completeDelay: DefaultCompleteDelay,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.status == nil {
		s.status = NewStatus()
	}
	if s.completeDelay <= 0 {
		s.completeDelay = DefaultCompleteDelay
	}
	return &Orchestrator{
		service:    service,
		mode:       mode,
		status:     s.status,
		completion: newDeferredTask(s.clock, s.completeDelay),
		log:        debug.For("orchestrator"),
	}
}

// Mode returns the configured update mode.
func (o *Orchestrator) Mode() UpdateMode {
	return o.mode
}

// Status returns the status holder the Orchestrator writes to.
func (o *Orchestrator) Status() *Status {
	return o.status
}

// Launch attaches the install-state listener and runs the update check.
func (o *Orchestrator) Launch(ctx context.Context) bool {
	o.Attach()
	return o.CheckAndMaybeStartUpdate(ctx)
}

// CheckAndMaybeStartUpdate queries the service and starts the interactive
// flow when an update is available and allowed for the configured mode.
// Query failures are logged and dropped; the next lifecycle event retries.
// It reports whether the service accepted a flow start.
func (o *Orchestrator) CheckAndMaybeStartUpdate(ctx context.Context) bool {
	snapshot, ok := o.query(ctx)
	if !ok {
		return false
	}
	if !o.shouldStart(snapshot) {
		return false
	}
	return o.startFlow(ctx, snapshot)
}

// Resume runs the check for a foreground-resume event. In Immediate mode it
// also restarts a flow the service reports as still in progress, which
// happens when an immediate update was interrupted.
func (o *Orchestrator) Resume(ctx context.Context) bool {
	snapshot, ok := o.query(ctx)
	if !ok {
		return false
	}
	if !o.shouldStart(snapshot) && !o.shouldResumeImmediate(snapshot) {
		return false
	}
	return o.startFlow(ctx, snapshot)
}

func (o *Orchestrator) query(ctx context.Context) (Snapshot, bool) {
	snapshot, err := o.service.QueryStatus(ctx)
	if err != nil {
		o.log.Logf("status query failed: %v", err)
		return Snapshot{}, false
	}
	o.log.Logf("status: availability=%s version=%q flexible=%t immediate=%t",
		snapshot.Availability, snapshot.AvailableVersion, snapshot.FlexibleAllowed, snapshot.ImmediateAllowed)
	return snapshot, true
}

func (o *Orchestrator) shouldStart(snapshot Snapshot) bool {
	isAvailable := snapshot.Availability == AvailabilityAvailable
	isAllowed := snapshot.Allowed(o.mode)
	return isAvailable && isAllowed
}

func (o *Orchestrator) shouldResumeImmediate(snapshot Snapshot) bool {
	return o.mode == ModeImmediate && snapshot.Availability == AvailabilityDeveloperTriggeredInProgress
}

func (o *Orchestrator) startFlow(ctx context.Context, snapshot Snapshot) bool {
	err := o.service.StartFlow(ctx, snapshot, o, Options{Mode: o.mode}, RequestCode)
	if err != nil {
		o.log.Logf("start %s flow: %v", o.mode, err)
		return false
	}
	o.log.Logf("started %s flow for %q", o.mode, snapshot.AvailableVersion)
	return true
}

// OnFlowResult maps a flow outcome to the status message.
// Results without a payload are ignored.
func (o *Orchestrator) OnFlowResult(result FlowResult) {
	if result.Payload == nil {
		return
	}
	switch {
	case result.ResultCode == ResultOK && result.RequestCode == RequestCode:
		o.status.Set(MessageUpdateReceived)
	case result.ResultCode == ResultCanceled:
		o.status.Set(MessageDownloadCanceled)
	default:
		o.status.Set(MessageDownloadFailed)
	}
}

// OnInstallStateChanged handles a push notification from the service.
//
// A completion request is scheduled for every state change, not only after
// Downloaded. A newer change replaces the pending request, so a burst of
// changes inside the delay yields a single request.
// TODO: restrict completion to StatusDownloaded once the service's handling
// of early completion requests is confirmed.
func (o *Orchestrator) OnInstallStateChanged(state InstallState) {
	if state.Status == StatusDownloaded {
		o.status.Set(MessageDownloadSuccessful)
	}
	if o.completion.Schedule(o.completeUpdate) {
		o.log.Logf("install state %s: rescheduled pending completion", state.Status)
	}
}

func (o *Orchestrator) completeUpdate() {
	if err := o.service.CompleteUpdate(context.Background()); err != nil {
		o.log.Logf("complete update: %v", err)
	}
}

// CompletionPending reports whether a completion request is waiting to run.
func (o *Orchestrator) CompletionPending() bool {
	return o.completion.Pending()
}

// Attach registers the install-state listener. It only applies in Flexible
// mode and is a no-op while already attached.
func (o *Orchestrator) Attach() {
	if o.mode != ModeFlexible {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.attached {
		return
	}
	o.service.RegisterListener(o)
	o.attached = true
}

// Detach unregisters the listener registered by Attach.
func (o *Orchestrator) Detach() {
	if o.mode != ModeFlexible {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.attached {
		return
	}
	o.service.UnregisterListener(o)
	o.attached = false
}

// Attached reports whether the listener is currently registered.
func (o *Orchestrator) Attached() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.attached
}

// Close detaches and drops any pending completion request.
func (o *Orchestrator) Close() {
	o.Detach()
	o.completion.Cancel()
}
