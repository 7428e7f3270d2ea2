package generator

import (
	"context"
	"time"

	"github.com/shouni/video-task-kit/pkg/domain"
	"github.com/shouni/video-task-kit/pkg/request"
)

// TaskSubmitter は生成タスクを作成するアダプターです。
type TaskSubmitter interface {
	HasCredential() bool
	Submit(ctx context.Context, payload *request.Payload) (domain.TaskHandle, error)
}

// StatusQuerier はタスクのステータスを 1 回照会するアダプターです。
type StatusQuerier interface {
	QueryStatus(ctx context.Context, taskID string) (domain.TaskStatus, error)
}

// TaskClient は作成と照会の両方を担うアダプターです。
type TaskClient interface {
	TaskSubmitter
	StatusQuerier
}

// RequestBuilder はコマンド入力から送信ペイロードを作ります。
type RequestBuilder interface {
	Build(kind domain.CommandKind, prompt string, image []byte) (domain.GenerationRequest, error)
	Encode(req domain.GenerationRequest) (*request.Payload, error)
}

// Recorder はワークフローの観測値を受け取ります。
type Recorder interface {
	ObserveSubmission(mode string, err error)
	ObservePollAttempt(result string)
	ObserveOutcome(state domain.PollState, elapsed time.Duration)
}

// ポーリング試行の結果ラベル
const (
	AttemptTransient = "transient"
	AttemptPending   = "pending"
	AttemptTerminal  = "terminal"
)

type nopRecorder struct{}

func (nopRecorder) ObserveSubmission(string, error)                 {}
func (nopRecorder) ObservePollAttempt(string)                       {}
func (nopRecorder) ObserveOutcome(domain.PollState, time.Duration) {}
