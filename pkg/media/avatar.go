package media

import (
	"math/rand/v2"
	"strings"
)

// DefaultAvatarTemplate は QQ のアバター URL テンプレートです。
const DefaultAvatarTemplate = "https://q4.qlogo.cn/headimg_dl?dst_uin={user_id}&spec=640"

// AvatarResolver はメンションされたユーザー ID をアバター画像の URL に変換します。
type AvatarResolver struct {
	template string
	randID   func() string
}

// NewAvatarResolver はテンプレート中の {user_id} を置換する AvatarResolver を作ります。
func NewAvatarResolver(template string) *AvatarResolver {
	if template == "" {
		template = DefaultAvatarTemplate
	}
	return &AvatarResolver{template: template, randID: randomDigits}
}

// URL は userID のアバター URL を返します。
// 数字以外を含む ID はテンプレートが受け付けないため、ランダムな 9 桁の ID に置き換えます。
func (a *AvatarResolver) URL(userID string) string {
	if !isDigits(userID) {
		userID = a.randID()
	}
	return strings.ReplaceAll(a.template, "{user_id}", userID)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func randomDigits() string {
	var b strings.Builder
	for range 9 {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}
