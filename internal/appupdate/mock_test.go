package appupdate

import (
	"context"
	"sync"
	"testing"
	"time"
)

// mockService is a recording test double for Service.
type mockService struct {
	QueryFn    func(context.Context) (Snapshot, error)
	StartFn    func(context.Context, Snapshot, FlowResultHandler, Options, int) error
	CompleteFn func(context.Context) error

	mu              sync.Mutex
	QueryCallCount  int
	StartCallArgs   []startCallArg
	RegisterCalls   []InstallStateListener
	UnregisterCalls []InstallStateListener
	CompleteCount   int

	completed chan struct{}
}

type startCallArg struct {
	Snapshot    Snapshot
	Handler     FlowResultHandler
	Options     Options
	RequestCode int
}

func newMockService(snapshot Snapshot) *mockService {
	return &mockService{
		QueryFn: func(context.Context) (Snapshot, error) {
			return snapshot, nil
		},
		completed: make(chan struct{}, 64),
	}
}

func (m *mockService) QueryStatus(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	m.QueryCallCount++
	fn := m.QueryFn
	m.mu.Unlock()
	if fn == nil {
		return Snapshot{}, nil
	}
	return fn(ctx)
}

func (m *mockService) StartFlow(ctx context.Context, snapshot Snapshot, handler FlowResultHandler, opts Options, requestCode int) error {
	m.mu.Lock()
	m.StartCallArgs = append(m.StartCallArgs, startCallArg{
		Snapshot:    snapshot,
		Handler:     handler,
		Options:     opts,
		RequestCode: requestCode,
	})
	fn := m.StartFn
	m.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, snapshot, handler, opts, requestCode)
}

func (m *mockService) RegisterListener(listener InstallStateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RegisterCalls = append(m.RegisterCalls, listener)
}

func (m *mockService) UnregisterListener(listener InstallStateListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UnregisterCalls = append(m.UnregisterCalls, listener)
}

func (m *mockService) CompleteUpdate(ctx context.Context) error {
	m.mu.Lock()
	m.CompleteCount++
	fn := m.CompleteFn
	m.mu.Unlock()
	m.completed <- struct{}{}
	if fn == nil {
		return nil
	}
	return fn(ctx)
}

func (m *mockService) startCalls() []startCallArg {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]startCallArg(nil), m.StartCallArgs...)
}

func (m *mockService) registrations() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.RegisterCalls), len(m.UnregisterCalls)
}

func (m *mockService) completeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CompleteCount
}

const testWait = time.Second

func waitForCompletion(t *testing.T, m *mockService) {
	t.Helper()
	select {
	case <-m.completed:
	case <-time.After(testWait):
		t.Fatal("timed out waiting for completion request")
	}
}

func assertNoCompletion(t *testing.T, m *mockService) {
	t.Helper()
	select {
	case <-m.completed:
		t.Fatal("unexpected completion request")
	case <-time.After(50 * time.Millisecond):
	}
}
