package bot

import (
	"context"
	"log/slog"

	"github.com/shouni/video-task-kit/pkg/domain"
)

// Dispatcher は 1 回のコマンド実行につき 1 通だけ終端メッセージを送ります。
type Dispatcher struct {
	messenger Messenger
}

func NewDispatcher(m Messenger) *Dispatcher {
	return &Dispatcher{messenger: m}
}

// Dispatch は成功なら動画 URL を、失敗なら要約した理由をテキストで送ります。
// 動画は URL をそのまま渡し、ダウンロードや再エンコードはしません。
func (d *Dispatcher) Dispatch(ctx context.Context, conv domain.ConversationRef, kind domain.CommandKind, url string, err error) error {
	content := domain.VideoURL(url)
	if err != nil || url == "" {
		content = domain.PlainText(FailureText(kind, err))
	}
	if sendErr := d.messenger.SendMessage(ctx, conv, content); sendErr != nil {
		slog.ErrorContext(ctx, "結果の送信に失敗しました", "conversation", conv, "error", sendErr)
		return sendErr
	}
	return nil
}

// Notify は途中経過を送ります。失敗してもログに残すだけです。
func (d *Dispatcher) Notify(ctx context.Context, conv domain.ConversationRef, text string) {
	if err := d.messenger.SendMessage(ctx, conv, domain.PlainText(text)); err != nil {
		slog.WarnContext(ctx, "進捗メッセージの送信に失敗しました", "conversation", conv, "error", err)
	}
}

// FailureText は利用者に見せる失敗メッセージです。ステータスコードや生のボディは含めません。
func FailureText(kind domain.CommandKind, err error) string {
	reason := domain.UserReason(err)
	switch domain.KindOf(err) {
	case domain.KindConfiguration:
		return "error: " + reason
	case domain.KindUserInput:
		return reason + ". usage: " + usage(kind)
	case domain.KindPollTimeout:
		return "video generation timed out: " + reason
	}
	if reason == "" {
		reason = "unknown error"
	}
	return "video generation failed: " + reason
}

func usage(kind domain.CommandKind) string {
	if kind == domain.ImageToVideo {
		return "image-to-video [prompt] + image"
	}
	return "text-to-video <prompt>"
}
