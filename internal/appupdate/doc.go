// Package appupdate bridges application lifecycle events to an in-app
// update service.
//
// The Orchestrator asks the Service for the current update status when the
// application launches or resumes, starts the service's interactive update
// flow when an update is available and allowed for the configured mode, and
// turns the asynchronous outcomes into a single status message held by
// Status. In Flexible mode it also listens for install-state changes and
// requests completion of the update after a fixed delay.
//
// The Service is an external collaborator; this package never downloads or
// installs anything itself.
//
// Example usage:
//
//	status := appupdate.NewStatus()
//	orch := appupdate.New(service, appupdate.ModeFlexible, appupdate.WithStatus(status))
//	orch.Launch(ctx)
//	defer orch.Close()
//
//	for msg := range status.Updates() {
//	    // show msg to the user
//	}
package appupdate
