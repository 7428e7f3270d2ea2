package domain

import "time"

// TaskState はプロバイダ側タスクの観測状態です。
type TaskState int

const (
	TaskPending TaskState = iota
	TaskSucceeded
	TaskFailed
	TaskCancelled
)

func (s TaskState) String() string {
	switch s {
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	case TaskCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// IsTerminal は終端状態かどうかを返します。
func (s TaskState) IsTerminal() bool {
	return s != TaskPending
}

// プロバイダが返すステータス文字列のうち終端として扱うもの。
// これ以外の文字列はすべて Pending とみなします。
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// TaskStatus はステータス照会 1 回分の分類結果です。
// ErrorCode と Message はレスポンスに error フィールドがある場合のみ設定されます。
type TaskStatus struct {
	State       TaskState
	Raw         string // プロバイダが返した status 文字列
	ResultURL   string
	ErrorCode   string
	Message     string
	StartedAt   int64 // epoch ミリ秒
	CompletedAt int64 // epoch ミリ秒
}

// HasError はプロバイダが明示的なエラーを返したかどうかを返します。
func (s TaskStatus) HasError() bool {
	return s.ErrorCode != ""
}

// Duration は成功時のプロバイダ側処理時間です。タイムスタンプが無い場合は 0 です。
func (s TaskStatus) Duration() time.Duration {
	if s.StartedAt == 0 || s.CompletedAt < s.StartedAt {
		return 0
	}
	return time.Duration(s.CompletedAt-s.StartedAt) * time.Millisecond
}

// PollState はポーリングセッションの状態です。
type PollState int

const (
	PollPolling PollState = iota
	PollSucceeded
	PollFailed
	PollTimedOut
)

func (s PollState) String() string {
	switch s {
	case PollSucceeded:
		return "succeeded"
	case PollFailed:
		return "failed"
	case PollTimedOut:
		return "timed_out"
	default:
		return "polling"
	}
}

// PollSession はポーリング開始時に作られ、終端で破棄される一時的な状態です。
type PollSession struct {
	TaskID        string
	StartedAt     time.Time
	Deadline      time.Time
	RetryInterval time.Duration
	MaxAttempts   int
	AttemptsUsed  int
}

// Exhausted は試行回数の上限に達したかどうかを返します。
func (s *PollSession) Exhausted() bool {
	return s.AttemptsUsed >= s.MaxAttempts
}

// PollResult はポーラーの終端結果です。
// State が PollSucceeded のとき URL が設定され、それ以外は Err が設定されます。
type PollResult struct {
	State    PollState
	URL      string
	Err      error
	Attempts int
	Elapsed  time.Duration
}
