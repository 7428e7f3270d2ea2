package generator

import (
	"context"
	"sync"
	"time"

	"github.com/shouni/video-task-kit/pkg/domain"
	"github.com/shouni/video-task-kit/pkg/request"
)

// --- Mocks ---

type statusReply struct {
	status domain.TaskStatus
	err    error
}

// mockClient は順番に用意した応答を返す TaskClient です。
// 用意した応答を使い切ったら最後の応答を繰り返します。
type mockClient struct {
	mu          sync.Mutex
	credential  bool
	handle      domain.TaskHandle
	submitErr   error
	submitCalls int
	replies     []statusReply
	queries     int
}

func (m *mockClient) HasCredential() bool { return m.credential }

func (m *mockClient) Submit(ctx context.Context, payload *request.Payload) (domain.TaskHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submitCalls++
	return m.handle, m.submitErr
}

func (m *mockClient) QueryStatus(ctx context.Context, taskID string) (domain.TaskStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.queries
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	m.queries++
	r := m.replies[idx]
	return r.status, r.err
}

func pending() statusReply {
	return statusReply{status: domain.TaskStatus{State: domain.TaskPending, Raw: "pending"}}
}

type mockRecorder struct {
	mu          sync.Mutex
	submissions []error
	attempts    []string
	outcomes    []domain.PollState
}

func (m *mockRecorder) ObserveSubmission(mode string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, err)
}

func (m *mockRecorder) ObservePollAttempt(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, result)
}

func (m *mockRecorder) ObserveOutcome(state domain.PollState, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, state)
}

// fakeSleeper は実際には待たずに待機時間を記録します。
type fakeSleeper struct {
	slept []time.Duration
	err   error
}

func (f *fakeSleeper) sleep(ctx context.Context, d time.Duration) error {
	f.slept = append(f.slept, d)
	return f.err
}
