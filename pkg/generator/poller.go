package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/video-task-kit/pkg/domain"
)

// Poller はタスクが終端状態になるかタイムアウトするまでステータスを照会します。
//
// 予算は試行回数で数えます。最大試行回数は floor(timeout / interval) で、
// 1 回の照会が遅ければその分だけ実時間は予算を超えます。
// プロバイダが明示的に返したエラーは再試行せず、それ以外（通信失敗、未知のステータス）は
// 上限まで同じ間隔で再試行します。
type Poller struct {
	client   StatusQuerier
	timeout  time.Duration
	interval time.Duration
	recorder Recorder
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// PollerOption は Poller の任意設定です。
type PollerOption func(*Poller)

// WithRecorder は観測値の送り先を設定します。
func WithRecorder(r Recorder) PollerOption {
	return func(p *Poller) {
		if r != nil {
			p.recorder = r
		}
	}
}

// NewPoller は Poller を初期化します。interval と timeout は正で、timeout >= interval が必要です。
func NewPoller(client StatusQuerier, timeout, interval time.Duration, opts ...PollerOption) (*Poller, error) {
	if client == nil {
		return nil, fmt.Errorf("client (StatusQuerier) is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("retry interval must be positive: %s", interval)
	}
	if timeout < interval {
		return nil, fmt.Errorf("timeout (%s) must not be shorter than retry interval (%s)", timeout, interval)
	}
	p := &Poller{
		client:   client,
		timeout:  timeout,
		interval: interval,
		recorder: nopRecorder{},
		now:      time.Now,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// MaxAttempts は 1 セッションあたりの最大照会回数です。
func (p *Poller) MaxAttempts() int {
	return int(p.timeout / p.interval)
}

// Poll はセッションを開始し、必ず Succeeded / Failed / TimedOut のいずれかで終わります。
func (p *Poller) Poll(ctx context.Context, handle domain.TaskHandle) domain.PollResult {
	start := p.now()
	session := &domain.PollSession{
		TaskID:        handle.TaskID,
		StartedAt:     start,
		Deadline:      start.Add(p.timeout),
		RetryInterval: p.interval,
		MaxAttempts:   p.MaxAttempts(),
	}

	result := p.run(ctx, session)
	result.Attempts = session.AttemptsUsed
	result.Elapsed = p.now().Sub(start)
	p.recorder.ObserveOutcome(result.State, result.Elapsed)
	return result
}

func (p *Poller) run(ctx context.Context, s *domain.PollSession) domain.PollResult {
	logger := slog.With("task_id", s.TaskID, "max_attempts", s.MaxAttempts)

	for !s.Exhausted() {
		s.AttemptsUsed++
		logger.DebugContext(ctx, "タスクの状態を確認します", "attempt", s.AttemptsUsed)

		st, err := p.client.QueryStatus(ctx, s.TaskID)
		switch {
		case err != nil:
			kind := domain.KindOf(err)
			if kind != domain.KindUnknown && !kind.Retryable() {
				p.recorder.ObservePollAttempt(AttemptTerminal)
				logger.ErrorContext(ctx, "再試行できないエラーで照会を中断します", "attempt", s.AttemptsUsed, "error", err)
				return failed(err)
			}
			p.recorder.ObservePollAttempt(AttemptTransient)
			logger.WarnContext(ctx, "状態の照会に失敗しました。再試行します", "attempt", s.AttemptsUsed, "error", err)

		case st.HasError():
			p.recorder.ObservePollAttempt(AttemptTerminal)
			reason := st.Message
			if reason == "" {
				reason = "Unknown error"
			}
			logger.ErrorContext(ctx, "プロバイダがエラーを返しました", "code", st.ErrorCode, "message", reason)
			return failed(domain.NewProviderFailure(st.ErrorCode, reason))

		case st.State == domain.TaskSucceeded:
			p.recorder.ObservePollAttempt(AttemptTerminal)
			if st.ResultURL == "" {
				logger.ErrorContext(ctx, "タスクは成功しましたが動画URLがありません", "status", st.Raw)
				return failed(domain.NewMalformedSuccess(""))
			}
			logger.InfoContext(ctx, "動画の生成に成功しました", "url", st.ResultURL, "provider_duration", st.Duration())
			return domain.PollResult{State: domain.PollSucceeded, URL: st.ResultURL}

		case st.State == domain.TaskFailed, st.State == domain.TaskCancelled:
			p.recorder.ObservePollAttempt(AttemptTerminal)
			reason := "task " + st.State.String()
			if st.Message != "" {
				reason += ": " + st.Message
			}
			logger.ErrorContext(ctx, "タスクが終了しました", "status", st.Raw)
			return failed(domain.NewProviderFailure("", reason))

		default:
			p.recorder.ObservePollAttempt(AttemptPending)
			logger.InfoContext(ctx, "タスクは処理中です", "attempt", s.AttemptsUsed, "status", st.Raw)
		}

		// 最後の試行の後は待たない
		if s.Exhausted() {
			break
		}
		if err := p.sleep(ctx, s.RetryInterval); err != nil {
			logger.WarnContext(ctx, "ポーリングが中断されました", "error", err)
			return domain.PollResult{
				State: domain.PollTimedOut,
				Err:   &domain.Error{Kind: domain.KindPollTimeout, Reason: "polling aborted", Err: err},
			}
		}
	}

	logger.ErrorContext(ctx, "最大試行回数に達しました", "attempts", s.AttemptsUsed)
	return domain.PollResult{State: domain.PollTimedOut, Err: domain.NewPollTimeout(s.AttemptsUsed)}
}

func failed(err error) domain.PollResult {
	return domain.PollResult{State: domain.PollFailed, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
