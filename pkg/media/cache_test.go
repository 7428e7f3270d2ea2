package media

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache(t *testing.T) {
	t.Run("保存した値を取得できる", func(t *testing.T) {
		c := NewLRUCache(2, time.Hour)
		c.Set("a", []byte("1"), time.Hour)

		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), v)
	})

	t.Run("容量を超えると古いものから追い出す", func(t *testing.T) {
		c := NewLRUCache(2, time.Hour)
		c.Set("a", 1, 0)
		c.Set("b", 2, 0)
		c.Set("c", 3, 0)

		_, ok := c.Get("a")
		assert.False(t, ok)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("TTLを過ぎると失効する", func(t *testing.T) {
		c := NewLRUCache(2, 20*time.Millisecond)
		c.Set("a", 1, 0)
		assert.Eventually(t, func() bool {
			_, ok := c.Get("a")
			return !ok
		}, time.Second, 10*time.Millisecond)
	})
}
