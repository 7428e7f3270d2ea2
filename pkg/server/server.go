// Package server はチャットホストからの Webhook を受け付ける HTTP ハンドラーです。
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shouni/video-task-kit/pkg/domain"
)

// CommandHandler はメッセージを非同期に処理します。bot.Plugin が満たします。
type CommandHandler interface {
	HandleAsync(ctx context.Context, msg domain.Message) bool
}

// NodeDTO はメッセージツリーの要素のワイヤ表現です。
type NodeDTO struct {
	Type    string    `json:"type"`
	Content string    `json:"content,omitempty"`
	URL     string    `json:"url,omitempty"`
	File    string    `json:"file,omitempty"`
	UserID  string    `json:"user_id,omitempty"`
	Chain   []NodeDTO `json:"chain,omitempty"`
}

// MessageDTO は受信メッセージのワイヤ表現です。
type MessageDTO struct {
	Conversation string    `json:"conversation" binding:"required"`
	SenderID     string    `json:"sender_id"`
	Text         string    `json:"text"`
	Chain        []NodeDTO `json:"chain"`
}

// ToDomain は未知の type を持つ要素を読み飛ばして変換します。
func (m MessageDTO) ToDomain() domain.Message {
	return domain.Message{
		Conversation: domain.ConversationRef(m.Conversation),
		SenderID:     m.SenderID,
		Text:         m.Text,
		Chain:        toNodes(m.Chain),
	}
}

func toNodes(in []NodeDTO) []domain.Node {
	out := make([]domain.Node, 0, len(in))
	for _, n := range in {
		switch n.Type {
		case "text":
			out = append(out, domain.Text{Content: n.Content})
		case "image":
			out = append(out, domain.Image{URL: n.URL, File: n.File})
		case "reply":
			out = append(out, domain.Reply{Chain: toNodes(n.Chain)})
		case "mention", "at":
			out = append(out, domain.Mention{UserID: n.UserID})
		}
	}
	return out
}

// NewRouter は /webhook, /healthz, /metrics を持つルーターを返します。
func NewRouter(handler CommandHandler, gatherer prometheus.Gatherer) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	r.POST("/webhook", func(c *gin.Context) {
		var dto MessageDTO
		if err := c.ShouldBindJSON(&dto); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		msg := dto.ToDomain()
		accepted := handler.HandleAsync(c.Request.Context(), msg)
		slog.DebugContext(c.Request.Context(), "Webhook を受信しました", "conversation", msg.Conversation, "accepted", accepted)
		if !accepted {
			c.JSON(http.StatusOK, gin.H{"accepted": false})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"accepted": true})
	})
	return r
}
