package bot

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/shouni/video-task-kit/pkg/domain"
)

// Messenger はホストのメッセージ送信プリミティブです。
type Messenger interface {
	SendMessage(ctx context.Context, conv domain.ConversationRef, content domain.Content) error
}

// JSONPoster は JSON を POST してレスポンスボディを返すクライアントです。
// httpkit.ClientInterface はこれを満たします。
type JSONPoster interface {
	PostJSONAndFetchBytes(ctx context.Context, url string, data any) ([]byte, error)
}

// WebhookMessage は WebhookMessenger が送るボディです。
type WebhookMessage struct {
	Conversation string `json:"conversation"`
	Type         string `json:"type"`
	Text         string `json:"text,omitempty"`
	URL          string `json:"url,omitempty"`
}

// WebhookMessenger はメッセージをホストのコールバック URL に POST します。
type WebhookMessenger struct {
	client      JSONPoster
	callbackURL string
}

func NewWebhookMessenger(client JSONPoster, callbackURL string) (*WebhookMessenger, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if callbackURL == "" {
		return nil, fmt.Errorf("callback URL is required")
	}
	return &WebhookMessenger{client: client, callbackURL: callbackURL}, nil
}

func (m *WebhookMessenger) SendMessage(ctx context.Context, conv domain.ConversationRef, content domain.Content) error {
	msg := WebhookMessage{
		Conversation: string(conv),
		Type:         string(content.Type),
		Text:         content.Text,
		URL:          content.URL,
	}
	if _, err := m.client.PostJSONAndFetchBytes(ctx, m.callbackURL, msg); err != nil {
		return fmt.Errorf("コールバックへの送信に失敗しました: %w", err)
	}
	return nil
}

// WriterMessenger はメッセージを 1 行ずつ w に書き出します。CLI の run コマンドで使います。
type WriterMessenger struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterMessenger(w io.Writer) *WriterMessenger {
	return &WriterMessenger{w: w}
}

func (m *WriterMessenger) SendMessage(_ context.Context, conv domain.ConversationRef, content domain.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	switch content.Type {
	case domain.ContentVideo:
		_, err = fmt.Fprintf(m.w, "[%s] video: %s\n", conv, content.URL)
	default:
		_, err = fmt.Fprintf(m.w, "[%s] %s\n", conv, content.Text)
	}
	return err
}
