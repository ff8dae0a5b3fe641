package appupdate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
)

var allAvailabilities = []Availability{
	AvailabilityUnknown,
	AvailabilityNotAvailable,
	AvailabilityAvailable,
	AvailabilityDeveloperTriggeredInProgress,
}

func newTestOrchestrator(svc Service, mode UpdateMode) (*Orchestrator, *testclock.Clock) {
	clk := testclock.NewClock(time.Now())
	return New(svc, mode, WithClock(clk)), clk
}

func TestCheckStartsFlowOnlyWhenAvailableAndAllowed(t *testing.T) {
	ctx := context.Background()
	for _, mode := range []UpdateMode{ModeFlexible, ModeImmediate} {
		for _, availability := range allAvailabilities {
			for _, allowed := range []bool{false, true} {
				snapshot := Snapshot{Availability: availability, AvailableVersion: "v1.1.0"}
				if mode == ModeFlexible {
					snapshot.FlexibleAllowed = allowed
					// The other mode's flag must not leak into the decision.
					snapshot.ImmediateAllowed = !allowed
				} else {
					snapshot.ImmediateAllowed = allowed
					snapshot.FlexibleAllowed = !allowed
				}
				svc := newMockService(snapshot)
				orch, _ := newTestOrchestrator(svc, mode)

				started := orch.CheckAndMaybeStartUpdate(ctx)

				want := availability == AvailabilityAvailable && allowed
				calls := svc.startCalls()
				if started != want || (len(calls) == 1) != want || len(calls) > 1 {
					t.Errorf("mode=%s availability=%s allowed=%t: started=%t calls=%d, want start=%t",
						mode, availability, allowed, started, len(calls), want)
				}
			}
		}
	}
}

func TestCheckPassesSnapshotOptionsAndRequestCode(t *testing.T) {
	snapshot := Snapshot{
		Availability:     AvailabilityAvailable,
		AvailableVersion: "v2.0.0",
		ImmediateAllowed: true,
	}
	svc := newMockService(snapshot)
	orch, _ := newTestOrchestrator(svc, ModeImmediate)

	if !orch.CheckAndMaybeStartUpdate(context.Background()) {
		t.Fatal("expected flow to start")
	}

	calls := svc.startCalls()
	if len(calls) != 1 {
		t.Fatalf("StartFlow calls = %d, want 1", len(calls))
	}
	call := calls[0]
	if call.Snapshot != snapshot {
		t.Errorf("snapshot = %+v, want %+v", call.Snapshot, snapshot)
	}
	if call.Options.Mode != ModeImmediate {
		t.Errorf("options mode = %s, want immediate", call.Options.Mode)
	}
	if call.RequestCode != RequestCode {
		t.Errorf("request code = %d, want %d", call.RequestCode, RequestCode)
	}
	if call.Handler != orch {
		t.Error("result handler should be the orchestrator")
	}
}

func TestImmediateScenarioReceivesUpdate(t *testing.T) {
	svc := newMockService(Snapshot{Availability: AvailabilityAvailable, ImmediateAllowed: true})
	orch, _ := newTestOrchestrator(svc, ModeImmediate)

	orch.CheckAndMaybeStartUpdate(context.Background())
	calls := svc.startCalls()
	if len(calls) != 1 {
		t.Fatalf("StartFlow calls = %d, want 1", len(calls))
	}

	calls[0].Handler.OnFlowResult(FlowResult{
		RequestCode: calls[0].RequestCode,
		ResultCode:  ResultOK,
		Payload:     &FlowData{},
	})
	if got := orch.Status().Get(); got != MessageUpdateReceived {
		t.Fatalf("status = %q, want %q", got, MessageUpdateReceived)
	}
}

func TestCheckSwallowsQueryFailure(t *testing.T) {
	svc := newMockService(Snapshot{})
	svc.QueryFn = func(context.Context) (Snapshot, error) {
		return Snapshot{}, errors.New("service unreachable")
	}
	orch, _ := newTestOrchestrator(svc, ModeFlexible)

	if orch.CheckAndMaybeStartUpdate(context.Background()) {
		t.Fatal("check should not start a flow after a query failure")
	}
	if len(svc.startCalls()) != 0 {
		t.Fatal("StartFlow should not be called after a query failure")
	}
	if got := orch.Status().Get(); got != "" {
		t.Fatalf("query failure should not touch status, got %q", got)
	}
}

func TestCheckReportsRejectedStart(t *testing.T) {
	svc := newMockService(Snapshot{Availability: AvailabilityAvailable, FlexibleAllowed: true})
	svc.StartFn = func(context.Context, Snapshot, FlowResultHandler, Options, int) error {
		return errors.New("flow already running")
	}
	orch, _ := newTestOrchestrator(svc, ModeFlexible)

	if orch.CheckAndMaybeStartUpdate(context.Background()) {
		t.Fatal("rejected start should report false")
	}
	if len(svc.startCalls()) != 1 {
		t.Fatal("StartFlow should still have been requested once")
	}
}

func TestResumeRestartsInterruptedImmediateUpdateOnce(t *testing.T) {
	svc := newMockService(Snapshot{Availability: AvailabilityDeveloperTriggeredInProgress})
	orch, _ := newTestOrchestrator(svc, ModeImmediate)

	for i := 1; i <= 3; i++ {
		if !orch.Resume(context.Background()) {
			t.Fatalf("resume %d should restart the flow", i)
		}
		if got := len(svc.startCalls()); got != i {
			t.Fatalf("after resume %d: StartFlow calls = %d, want %d", i, got, i)
		}
	}
}

func TestResumeDoesNotRestartInProgressFlexibleUpdate(t *testing.T) {
	svc := newMockService(Snapshot{
		Availability:    AvailabilityDeveloperTriggeredInProgress,
		FlexibleAllowed: true,
	})
	orch, _ := newTestOrchestrator(svc, ModeFlexible)

	if orch.Resume(context.Background()) {
		t.Fatal("flexible mode should not restart an in-progress update")
	}
	if len(svc.startCalls()) != 0 {
		t.Fatal("unexpected StartFlow call")
	}
}

func TestCheckIgnoresInProgressImmediateUpdate(t *testing.T) {
	svc := newMockService(Snapshot{
		Availability:     AvailabilityDeveloperTriggeredInProgress,
		ImmediateAllowed: true,
	})
	orch, _ := newTestOrchestrator(svc, ModeImmediate)

	if orch.CheckAndMaybeStartUpdate(context.Background()) {
		t.Fatal("only Resume restarts in-progress updates")
	}
}

func TestResumeStartsAvailableUpdate(t *testing.T) {
	svc := newMockService(Snapshot{Availability: AvailabilityAvailable, ImmediateAllowed: true})
	orch, _ := newTestOrchestrator(svc, ModeImmediate)

	if !orch.Resume(context.Background()) {
		t.Fatal("resume should start an available update")
	}
	if got := len(svc.startCalls()); got != 1 {
		t.Fatalf("StartFlow calls = %d, want 1", got)
	}
	svc.mu.Lock()
	queries := svc.QueryCallCount
	svc.mu.Unlock()
	if queries != 1 {
		t.Fatalf("QueryStatus calls = %d, want 1 per resume", queries)
	}
}

func TestOnFlowResultMapping(t *testing.T) {
	tests := []struct {
		name   string
		result FlowResult
		want   string
	}{
		{
			name:   "ok with matching request code",
			result: FlowResult{RequestCode: RequestCode, ResultCode: ResultOK, Payload: &FlowData{}},
			want:   MessageUpdateReceived,
		},
		{
			name:   "canceled",
			result: FlowResult{RequestCode: RequestCode, ResultCode: ResultCanceled, Payload: &FlowData{}},
			want:   MessageDownloadCanceled,
		},
		{
			name:   "failed",
			result: FlowResult{RequestCode: RequestCode, ResultCode: ResultFailed, Payload: &FlowData{}},
			want:   MessageDownloadFailed,
		},
		{
			name:   "ok for another request",
			result: FlowResult{RequestCode: 7, ResultCode: ResultOK, Payload: &FlowData{}},
			want:   MessageDownloadFailed,
		},
		{
			name:   "unrecognized code",
			result: FlowResult{RequestCode: RequestCode, ResultCode: ResultCode(42), Payload: &FlowData{}},
			want:   MessageDownloadFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch, _ := newTestOrchestrator(newMockService(Snapshot{}), ModeImmediate)
			orch.OnFlowResult(tt.result)
			if got := orch.Status().Get(); got != tt.want {
				t.Fatalf("status = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOnFlowResultWithoutPayloadIsNoop(t *testing.T) {
	orch, _ := newTestOrchestrator(newMockService(Snapshot{}), ModeImmediate)
	orch.Status().Set("previous")

	orch.OnFlowResult(FlowResult{RequestCode: RequestCode, ResultCode: ResultFailed})

	if got := orch.Status().Get(); got != "previous" {
		t.Fatalf("status = %q, want unchanged", got)
	}
}

func TestAttachDetachBalancedInFlexibleMode(t *testing.T) {
	svc := newMockService(Snapshot{})
	orch, _ := newTestOrchestrator(svc, ModeFlexible)

	for cycle := 1; cycle <= 2; cycle++ {
		orch.Attach()
		orch.Attach()
		if !orch.Attached() {
			t.Fatal("expected listener to be attached")
		}
		orch.Detach()
		orch.Detach()

		registers, unregisters := svc.registrations()
		if registers != cycle || unregisters != cycle {
			t.Fatalf("cycle %d: register=%d unregister=%d, want %d each", cycle, registers, unregisters, cycle)
		}
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.RegisterCalls[0] != orch || svc.UnregisterCalls[0] != orch {
		t.Fatal("the same listener must be registered and unregistered")
	}
}

func TestDetachWithoutAttachIsNoop(t *testing.T) {
	svc := newMockService(Snapshot{})
	orch, _ := newTestOrchestrator(svc, ModeFlexible)

	orch.Detach()
	if _, unregisters := svc.registrations(); unregisters != 0 {
		t.Fatalf("unregister calls = %d, want 0", unregisters)
	}
}

func TestImmediateModeNeverRegistersListener(t *testing.T) {
	svc := newMockService(Snapshot{})
	orch, _ := newTestOrchestrator(svc, ModeImmediate)

	orch.Launch(context.Background())
	orch.Attach()
	orch.Detach()
	orch.Close()

	registers, unregisters := svc.registrations()
	if registers != 0 || unregisters != 0 {
		t.Fatalf("register=%d unregister=%d, want 0 in immediate mode", registers, unregisters)
	}
}

func TestLaunchAttachesThenChecks(t *testing.T) {
	svc := newMockService(Snapshot{Availability: AvailabilityAvailable, FlexibleAllowed: true})
	orch, _ := newTestOrchestrator(svc, ModeFlexible)

	if !orch.Launch(context.Background()) {
		t.Fatal("launch should start the flow")
	}
	if registers, _ := svc.registrations(); registers != 1 {
		t.Fatalf("register calls = %d, want 1", registers)
	}
}

func TestDownloadedStateSetsStatusAndCompletesAfterDelay(t *testing.T) {
	svc := newMockService(Snapshot{})
	orch, clk := newTestOrchestrator(svc, ModeFlexible)

	orch.OnInstallStateChanged(InstallState{Status: StatusDownloaded})
	if got := orch.Status().Get(); got != MessageDownloadSuccessful {
		t.Fatalf("status = %q, want %q", got, MessageDownloadSuccessful)
	}

	clk.Advance(DefaultCompleteDelay - time.Second)
	assertNoCompletion(t, svc)

	clk.Advance(time.Second)
	waitForCompletion(t, svc)
	if got := svc.completeCount(); got != 1 {
		t.Fatalf("CompleteUpdate calls = %d, want 1", got)
	}
}

func TestEveryInstallStateSchedulesCompletion(t *testing.T) {
	for _, status := range []InstallStatus{
		StatusPending, StatusDownloading, StatusInstalling, StatusFailed, StatusCanceled,
	} {
		t.Run(status.String(), func(t *testing.T) {
			svc := newMockService(Snapshot{})
			orch, clk := newTestOrchestrator(svc, ModeFlexible)

			orch.OnInstallStateChanged(InstallState{Status: status})
			if got := orch.Status().Get(); got != "" {
				t.Fatalf("status = %q, want unchanged for %s", got, status)
			}
			if !orch.CompletionPending() {
				t.Fatal("expected a pending completion request")
			}

			if err := clk.WaitAdvance(DefaultCompleteDelay, testWait, 1); err != nil {
				t.Fatalf("WaitAdvance: %v", err)
			}
			waitForCompletion(t, svc)
			assertNoCompletion(t, svc)
		})
	}
}

func TestNewStateReplacesPendingCompletion(t *testing.T) {
	svc := newMockService(Snapshot{})
	orch, clk := newTestOrchestrator(svc, ModeFlexible)

	orch.OnInstallStateChanged(InstallState{Status: StatusDownloading, BytesDownloaded: 10, TotalBytesToDownload: 100})
	clk.Advance(3 * time.Second)
	orch.OnInstallStateChanged(InstallState{Status: StatusDownloaded})

	clk.Advance(3 * time.Second)
	assertNoCompletion(t, svc)

	clk.Advance(2 * time.Second)
	waitForCompletion(t, svc)
	assertNoCompletion(t, svc)
	if got := svc.completeCount(); got != 1 {
		t.Fatalf("CompleteUpdate calls = %d, want exactly 1", got)
	}
}

func TestCompletionFailureIsIgnored(t *testing.T) {
	svc := newMockService(Snapshot{})
	svc.CompleteFn = func(context.Context) error {
		return errors.New("nothing to install")
	}
	orch, clk := newTestOrchestrator(svc, ModeFlexible)

	orch.OnInstallStateChanged(InstallState{Status: StatusDownloaded})
	clk.Advance(DefaultCompleteDelay)
	waitForCompletion(t, svc)

	if got := orch.Status().Get(); got != MessageDownloadSuccessful {
		t.Fatalf("status = %q, completion failure should not change it", got)
	}
}

func TestCloseCancelsPendingCompletion(t *testing.T) {
	svc := newMockService(Snapshot{})
	orch, clk := newTestOrchestrator(svc, ModeFlexible)
	orch.Attach()

	orch.OnInstallStateChanged(InstallState{Status: StatusDownloaded})
	orch.Close()

	clk.Advance(2 * DefaultCompleteDelay)
	assertNoCompletion(t, svc)
	if orch.CompletionPending() {
		t.Fatal("completion should not be pending after Close")
	}
	if _, unregisters := svc.registrations(); unregisters != 1 {
		t.Fatalf("unregister calls = %d, want 1", unregisters)
	}
}

func TestCustomCompleteDelay(t *testing.T) {
	svc := newMockService(Snapshot{})
	clk := testclock.NewClock(time.Now())
	orch := New(svc, ModeFlexible, WithClock(clk), WithCompleteDelay(time.Second))

	orch.OnInstallStateChanged(InstallState{Status: StatusDownloaded})
	clk.Advance(time.Second)
	waitForCompletion(t, svc)
}

func TestSharedStatus(t *testing.T) {
	status := NewStatus()
	orch := New(newMockService(Snapshot{}), ModeImmediate, WithStatus(status))

	if orch.Status() != status {
		t.Fatal("orchestrator should write to the provided status")
	}
	if orch.Mode() != ModeImmediate {
		t.Fatalf("Mode() = %s, want immediate", orch.Mode())
	}
}
