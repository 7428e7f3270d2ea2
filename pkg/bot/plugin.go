// Package bot はチャットコマンドを受け取り、動画生成を実行して結果を会話に返します。
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/video-task-kit/pkg/domain"
	"github.com/shouni/video-task-kit/pkg/generator"
	"github.com/shouni/video-task-kit/pkg/media"
)

// Generator は VideoGenerator が満たす生成ワークフローです。
type Generator interface {
	Ready() error
	Validate(kind domain.CommandKind, prompt string, image []byte) error
	Generate(ctx context.Context, kind domain.CommandKind, prompt string, image []byte, onSubmitted generator.SubmittedFunc) (string, error)
}

// CommandRecorder はコマンド単位の観測値を受け取ります。
type CommandRecorder interface {
	ObserveCommand(command string, err error)
}

// Closer はプラグイン終了時に解放する共有リソースです。
type Closer interface {
	Close()
}

// Plugin は 1 コマンドを 1 つの独立したタスクとして処理します。
// 実行中のタスク同士は共有 HTTP クライアント以外の状態を持ちません。
type Plugin struct {
	parser     *Parser
	generator  Generator
	loader     media.BytesLoader
	avatars    *media.AvatarResolver
	dispatcher *Dispatcher
	recorder   CommandRecorder
	resources  Closer

	mu         sync.Mutex
	wg         sync.WaitGroup
	terminated bool
	closeOnce  sync.Once
}

// Options は Plugin の依存関係です。Loader, Avatars, Recorder, Resources は省略できます。
type Options struct {
	Parser    *Parser
	Generator Generator
	Loader    media.BytesLoader
	Avatars   *media.AvatarResolver
	Messenger Messenger
	Recorder  CommandRecorder
	Resources Closer
}

type nopCommandRecorder struct{}

func (nopCommandRecorder) ObserveCommand(string, error) {}

// NewPlugin は依存関係を検証して Plugin を作ります。
func NewPlugin(opts Options) (*Plugin, error) {
	if opts.Parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if opts.Messenger == nil {
		return nil, fmt.Errorf("messenger is required")
	}
	if opts.Recorder == nil {
		opts.Recorder = nopCommandRecorder{}
	}
	return &Plugin{
		parser:     opts.Parser,
		generator:  opts.Generator,
		loader:     opts.Loader,
		avatars:    opts.Avatars,
		dispatcher: NewDispatcher(opts.Messenger),
		recorder:   opts.Recorder,
		resources:  opts.Resources,
	}, nil
}

// Handle はコマンドを同期的に処理します。コマンドでなければ false を返します。
func (p *Plugin) Handle(ctx context.Context, msg domain.Message) bool {
	cmd, ok := p.parser.Parse(msg.Text)
	if !ok {
		return false
	}
	p.run(ctx, cmd, msg)
	return true
}

// HandleAsync はコマンドを別の goroutine で処理し、すぐに戻ります。
// Terminate の後に呼ばれた場合は何もせず false を返します。
func (p *Plugin) HandleAsync(ctx context.Context, msg domain.Message) bool {
	cmd, ok := p.parser.Parse(msg.Text)
	if !ok {
		return false
	}

	p.mu.Lock()
	if p.terminated {
		p.mu.Unlock()
		slog.WarnContext(ctx, "終了処理中のためコマンドを受け付けません", "command", cmd.Kind.String())
		return false
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		p.run(context.WithoutCancel(ctx), cmd, msg)
	}()
	return true
}

// Terminate は実行中のタスクの終了を待ち、共有リソースを 1 度だけ解放します。
// ctx が先に終わった場合も解放は行い、ctx のエラーを返します。
func (p *Plugin) Terminate(ctx context.Context) error {
	p.mu.Lock()
	p.terminated = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		slog.WarnContext(ctx, "実行中のタスクを待たずに終了します", "error", err)
	}

	p.closeOnce.Do(func() {
		if p.resources != nil {
			p.resources.Close()
		}
	})
	return err
}

// run は必ず 1 通の終端メッセージを送ります。パニックも失敗メッセージに変換します。
func (p *Plugin) run(ctx context.Context, cmd Command, msg domain.Message) {
	invocationID := uuid.NewString()
	logger := slog.With("invocation_id", invocationID, "command", cmd.Kind.String(), "conversation", msg.Conversation)
	start := time.Now()

	var (
		url string
		err error
	)
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "コマンドの処理中にパニックが発生しました", "panic", r, "stack", string(debug.Stack()))
			url = ""
			err = &domain.Error{Kind: domain.KindUnknown, Reason: fmt.Sprint(r)}
		}
		p.recorder.ObserveCommand(cmd.Kind.String(), err)
		if err != nil {
			logger.ErrorContext(ctx, "動画の生成に失敗しました", "kind", domain.KindOf(err).String(), "error", err, "elapsed", time.Since(start))
		} else {
			logger.InfoContext(ctx, "動画を送信します", "url", url, "elapsed", time.Since(start))
		}
		_ = p.dispatcher.Dispatch(ctx, msg.Conversation, cmd.Kind, url, err)
	}()

	logger.InfoContext(ctx, "コマンドを受け付けました", "prompt_len", len(cmd.Prompt))
	url, err = p.execute(ctx, cmd, msg)
}

func (p *Plugin) execute(ctx context.Context, cmd Command, msg domain.Message) (string, error) {
	// 設定の不備はプロンプトや画像より先に報告する
	if err := p.generator.Ready(); err != nil {
		return "", err
	}

	var image []byte
	switch cmd.Kind {
	case domain.ImageToVideo:
		if p.loader != nil {
			image, _ = media.ResolveReferenceImage(ctx, p.loader, msg.Chain, p.avatars)
		}
		if len(image) == 0 {
			return "", domain.NewUserInputError("please attach or reply to an image")
		}
	default:
		if err := p.generator.Validate(cmd.Kind, cmd.Prompt, nil); err != nil {
			return "", err
		}
	}

	p.dispatcher.Notify(ctx, msg.Conversation, fmt.Sprintf("received %s request, generating...", cmd.Kind))

	onSubmitted := func(ctx context.Context, h domain.TaskHandle) {
		p.dispatcher.Notify(ctx, msg.Conversation, fmt.Sprintf("task created (ID: %s), generating video...", h.TaskID))
	}
	return p.generator.Generate(ctx, cmd.Kind, cmd.Prompt, image, onSubmitted)
}
