package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/video-task-kit/pkg/domain"
)

// SubmittedFunc はタスク作成直後に呼ばれる進捗通知です。失敗しても処理は続けます。
type SubmittedFunc func(ctx context.Context, handle domain.TaskHandle)

// VideoGenerator はリクエスト組み立て、タスク作成、ポーリングを順に実行します。
type VideoGenerator struct {
	builder   RequestBuilder
	submitter TaskSubmitter
	poller    *Poller
	recorder  Recorder
	mode      string
}

// NewVideoGenerator は依存関係を注入して VideoGenerator を初期化します。
func NewVideoGenerator(builder RequestBuilder, submitter TaskSubmitter, poller *Poller, recorder Recorder, mode domain.WireMode) (*VideoGenerator, error) {
	if builder == nil {
		return nil, fmt.Errorf("builder is required")
	}
	if submitter == nil {
		return nil, fmt.Errorf("submitter is required")
	}
	if poller == nil {
		return nil, fmt.Errorf("poller is required")
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &VideoGenerator{
		builder:   builder,
		submitter: submitter,
		poller:    poller,
		recorder:  recorder,
		mode:      string(mode),
	}, nil
}

// Ready は API キーが設定されているかを確認します。ネットワークには触れません。
func (g *VideoGenerator) Ready() error {
	if !g.submitter.HasCredential() {
		return domain.NewConfigurationError("api_key is not configured")
	}
	return nil
}

// Validate は送信前に入力を検証します。
func (g *VideoGenerator) Validate(kind domain.CommandKind, prompt string, image []byte) error {
	if err := g.Ready(); err != nil {
		return err
	}
	_, err := g.builder.Build(kind, prompt, image)
	return err
}

// Generate は動画を生成して URL を返します。
// 返すエラーは常に *domain.Error で、作成失敗は再試行せずにそのまま返します。
func (g *VideoGenerator) Generate(ctx context.Context, kind domain.CommandKind, prompt string, image []byte, onSubmitted SubmittedFunc) (string, error) {
	if err := g.Ready(); err != nil {
		return "", err
	}

	req, err := g.builder.Build(kind, prompt, image)
	if err != nil {
		return "", err
	}
	payload, err := g.builder.Encode(req)
	if err != nil {
		return "", domain.NewSubmissionError("failed to encode request", 0, "", err)
	}

	slog.InfoContext(ctx, "動画生成タスクを作成します", "kind", kind.String(), "model", req.Model, "mode", g.mode, "has_image", req.HasImage())
	handle, err := g.submitter.Submit(ctx, payload)
	g.recorder.ObserveSubmission(g.mode, err)
	if err != nil {
		return "", err
	}
	if onSubmitted != nil {
		onSubmitted(ctx, handle)
	}

	result := g.poller.Poll(ctx, handle)
	if result.State != domain.PollSucceeded {
		return "", result.Err
	}
	return result.URL, nil
}
