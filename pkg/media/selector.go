package media

import (
	"context"
	"log/slog"

	"github.com/shouni/video-task-kit/pkg/domain"
)

// SourceKind は参照画像の出どころです。優先度の高い順に並んでいます。
type SourceKind int

const (
	SourceReply SourceKind = iota
	SourceInline
	SourceAvatar
)

func (k SourceKind) String() string {
	switch k {
	case SourceReply:
		return "reply"
	case SourceInline:
		return "inline"
	default:
		return "avatar"
	}
}

// Candidate は参照画像の候補です。Refs は先頭から順に試します。
type Candidate struct {
	Kind SourceKind
	Refs []string
}

// Candidates はメッセージツリーから参照画像の候補を優先度順に列挙します。
// 返信に含まれる画像、本文の画像、メンションされたユーザーのアバターの順です。
func Candidates(chain []domain.Node, avatars *AvatarResolver) []Candidate {
	var reply, inline, mention []Candidate
	for _, n := range chain {
		switch v := n.(type) {
		case domain.Reply:
			for _, inner := range v.Chain {
				if img, ok := inner.(domain.Image); ok {
					reply = appendImage(reply, SourceReply, img)
				}
			}
		case domain.Image:
			inline = appendImage(inline, SourceInline, v)
		case domain.Mention:
			if avatars != nil {
				mention = append(mention, Candidate{Kind: SourceAvatar, Refs: []string{avatars.URL(v.UserID)}})
			}
		}
	}

	out := make([]Candidate, 0, len(reply)+len(inline)+len(mention))
	out = append(out, reply...)
	out = append(out, inline...)
	return append(out, mention...)
}

func appendImage(dst []Candidate, kind SourceKind, img domain.Image) []Candidate {
	var refs []string
	if img.URL != "" {
		refs = append(refs, img.URL)
	}
	if img.File != "" {
		refs = append(refs, img.File)
	}
	if len(refs) == 0 {
		return dst
	}
	return append(dst, Candidate{Kind: kind, Refs: refs})
}

// ResolveReferenceImage は候補を優先度順に読み込み、最初に取得できた 1 枚を返します。
// 残りの候補は黙って捨てます。
func ResolveReferenceImage(ctx context.Context, loader BytesLoader, chain []domain.Node, avatars *AvatarResolver) ([]byte, bool) {
	for _, c := range Candidates(chain, avatars) {
		for _, ref := range c.Refs {
			if data := loader.LoadBytes(ctx, ref); len(data) > 0 {
				slog.DebugContext(ctx, "参照画像を取得しました", "source", c.Kind.String(), "bytes", len(data))
				return data, true
			}
		}
	}
	return nil, false
}
