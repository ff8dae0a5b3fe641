package appupdate

import "context"

// FlowResultHandler receives the outcome of an interactive flow.
type FlowResultHandler interface {
	OnFlowResult(result FlowResult)
}

// InstallStateListener receives install-state push notifications.
type InstallStateListener interface {
	OnInstallStateChanged(state InstallState)
}

// Service is the external update service consumed by the Orchestrator.
//
// Implementations enforce that at most one interactive flow is in flight.
// Results and install states may be delivered from any goroutine.
type Service interface {
	// QueryStatus returns the current update status.
	QueryStatus(ctx context.Context) (Snapshot, error)
	// StartFlow hands control to the service's interactive flow. The result
	// is delivered to handler once the flow completes or is dismissed.
	StartFlow(ctx context.Context, snapshot Snapshot, handler FlowResultHandler, opts Options, requestCode int) error
	RegisterListener(listener InstallStateListener)
	UnregisterListener(listener InstallStateListener)
	// CompleteUpdate finalizes a downloaded flexible update.
	CompleteUpdate(ctx context.Context) error
}
