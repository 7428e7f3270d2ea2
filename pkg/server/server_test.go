package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/video-task-kit/pkg/domain"
)

type fakeHandler struct {
	mu     sync.Mutex
	accept bool
	got    []domain.Message
}

func (h *fakeHandler) HandleAsync(ctx context.Context, msg domain.Message) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.got = append(h.got, msg)
	return h.accept
}

func init() {
	gin.SetMode(gin.TestMode)
}

func post(r http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook(t *testing.T) {
	t.Run("メッセージツリーを変換して渡す", func(t *testing.T) {
		h := &fakeHandler{accept: true}
		r := NewRouter(h, nil)

		w := post(r, `{
			"conversation": "group:1",
			"sender_id": "42",
			"text": "image-to-video wave",
			"chain": [
				{"type": "reply", "chain": [{"type": "image", "url": "https://img/a.png"}]},
				{"type": "at", "user_id": "10001"},
				{"type": "face"},
				{"type": "image", "file": "/tmp/b.png"}
			]
		}`)

		assert.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, h.got, 1)
		msg := h.got[0]
		assert.Equal(t, domain.ConversationRef("group:1"), msg.Conversation)
		assert.Equal(t, []domain.Node{
			domain.Reply{Chain: []domain.Node{domain.Image{URL: "https://img/a.png"}}},
			domain.Mention{UserID: "10001"},
			domain.Image{File: "/tmp/b.png"},
		}, msg.Chain)
	})

	t.Run("コマンドでなければ 200", func(t *testing.T) {
		r := NewRouter(&fakeHandler{}, nil)
		w := post(r, `{"conversation":"c","text":"hello"}`)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"accepted":false}`, w.Body.String())
	})

	t.Run("不正なボディは 400", func(t *testing.T) {
		h := &fakeHandler{}
		r := NewRouter(h, nil)
		assert.Equal(t, http.StatusBadRequest, post(r, `{"text":"no conversation"}`).Code)
		assert.Equal(t, http.StatusBadRequest, post(r, `not json`).Code)
		assert.Empty(t, h.got)
	})
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "videobot_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()
	r := NewRouter(&fakeHandler{}, reg)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "videobot_test_total 1")
}
