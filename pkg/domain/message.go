package domain

// Node はチャットメッセージツリーの要素です。
// Text / Image / Reply / Mention の固定された直和型として扱います。
type Node interface {
	node()
}

// Text は平文セグメントです。
type Text struct {
	Content string
}

// Image は画像セグメントです。URL を優先し、取得できなければ File を使います。
type Image struct {
	URL  string
	File string
}

// Reply は返信元メッセージで、そのチェーンを保持します。
type Reply struct {
	Chain []Node
}

// Mention はユーザーへのメンションです。
type Mention struct {
	UserID string
}

func (Text) node()    {}
func (Image) node()   {}
func (Reply) node()   {}
func (Mention) node() {}

// ConversationRef は送信先の会話を識別する不透明な文字列です。
type ConversationRef string

// Message はホストから受け取る受信メッセージです。
type Message struct {
	Conversation ConversationRef
	SenderID     string
	Text         string // ホストが連結した平文
	Chain        []Node
}

// ContentType は送信コンテンツの種別です。
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentVideo ContentType = "video"
)

// Content は送信メッセージです。Video の場合は URL のみを渡し、再ダウンロードはしません。
type Content struct {
	Type ContentType
	Text string
	URL  string
}

func PlainText(s string) Content {
	return Content{Type: ContentText, Text: s}
}

func VideoURL(url string) Content {
	return Content{Type: ContentVideo, URL: url}
}
