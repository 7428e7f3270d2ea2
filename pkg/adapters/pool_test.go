package adapters

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientPool(t *testing.T) {
	t.Run("初回利用時に生成し、以降は同じクライアントを返す", func(t *testing.T) {
		p := NewClientPool()
		assert.Zero(t, p.created)

		c1 := p.Client()
		c2 := p.Client()
		assert.Same(t, c1, c2)
		assert.Equal(t, 1, p.created)
	})

	t.Run("Close は冪等で、その後の利用で作り直す", func(t *testing.T) {
		p := NewClientPool()
		c1 := p.Client()

		p.Close()
		p.Close()

		c2 := p.Client()
		assert.NotSame(t, c1, c2)
		assert.Equal(t, 2, p.created)
	})

	t.Run("未使用のまま Close しても生成しない", func(t *testing.T) {
		p := &ClientPool{newClient: func() *http.Client { return &http.Client{} }}
		p.Close()
		assert.Zero(t, p.created)
	})
}
