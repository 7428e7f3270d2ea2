package media

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shouni/video-task-kit/pkg/domain"
)

func TestCandidates_PriorityOrder(t *testing.T) {
	avatars := NewAvatarResolver("https://avatar/{user_id}")
	chain := []domain.Node{
		domain.Mention{UserID: "10001"},
		domain.Image{URL: "https://inline/1.png"},
		domain.Text{Content: "image-to-video"},
		domain.Reply{Chain: []domain.Node{
			domain.Text{Content: "look"},
			domain.Image{URL: "https://reply/1.png", File: "/tmp/reply1.png"},
		}},
		domain.Image{File: "/tmp/inline2.png"},
		domain.Image{},
	}

	got := Candidates(chain, avatars)

	assert.Equal(t, []Candidate{
		{Kind: SourceReply, Refs: []string{"https://reply/1.png", "/tmp/reply1.png"}},
		{Kind: SourceInline, Refs: []string{"https://inline/1.png"}},
		{Kind: SourceInline, Refs: []string{"/tmp/inline2.png"}},
		{Kind: SourceAvatar, Refs: []string{"https://avatar/10001"}},
	}, got)
}

func TestResolveReferenceImage(t *testing.T) {
	ctx := context.Background()

	t.Run("返信の画像が本文の画像より優先される", func(t *testing.T) {
		loader := &mockLoader{data: map[string][]byte{
			"https://inline/1.png": []byte("inline"),
			"https://reply/1.png":  []byte("reply"),
		}}
		chain := []domain.Node{
			domain.Image{URL: "https://inline/1.png"},
			domain.Reply{Chain: []domain.Node{domain.Image{URL: "https://reply/1.png"}}},
		}

		got, ok := ResolveReferenceImage(ctx, loader, chain, nil)
		assert.True(t, ok)
		assert.Equal(t, []byte("reply"), got)
		assert.Equal(t, []string{"https://reply/1.png"}, loader.tried, "最初に取れた時点で打ち切る")
	})

	t.Run("URLが失敗したらFileを試す", func(t *testing.T) {
		loader := &mockLoader{data: map[string][]byte{"/tmp/a.png": []byte("file")}}
		chain := []domain.Node{domain.Image{URL: "https://broken/a.png", File: "/tmp/a.png"}}

		got, ok := ResolveReferenceImage(ctx, loader, chain, nil)
		assert.True(t, ok)
		assert.Equal(t, []byte("file"), got)
	})

	t.Run("画像が無ければメンションのアバター", func(t *testing.T) {
		loader := &mockLoader{data: map[string][]byte{"https://avatar/42": []byte("avatar")}}
		chain := []domain.Node{domain.Text{Content: "hi"}, domain.Mention{UserID: "42"}}

		got, ok := ResolveReferenceImage(ctx, loader, chain, NewAvatarResolver("https://avatar/{user_id}"))
		assert.True(t, ok)
		assert.Equal(t, []byte("avatar"), got)
	})

	t.Run("何も取れなければ false", func(t *testing.T) {
		loader := &mockLoader{}
		chain := []domain.Node{domain.Image{URL: "https://broken/a.png"}}

		got, ok := ResolveReferenceImage(ctx, loader, chain, nil)
		assert.False(t, ok)
		assert.Nil(t, got)
	})
}
