package domain

// CommandKind はチャットコマンドの種別です。
type CommandKind int

const (
	// TextToVideo はテキストのみから動画を生成します。
	TextToVideo CommandKind = iota + 1
	// ImageToVideo は参照画像を条件にして動画を生成します。
	ImageToVideo
)

func (k CommandKind) String() string {
	switch k {
	case TextToVideo:
		return "text-to-video"
	case ImageToVideo:
		return "image-to-video"
	default:
		return "unknown"
	}
}

// WireMode は生成リクエストのシリアライズ方式です。
// 設定された生成バリアントの固定属性であり、実行時には切り替えません。
type WireMode string

const (
	// WireModeJSON は JSON ボディに data URI 形式で画像を埋め込みます。
	WireModeJSON WireMode = "json"
	// WireModeMultipart は multipart/form-data で画像をバイナリフィールドとして送ります。
	WireModeMultipart WireMode = "multipart"
)

// GenerationRequest は 1 回のコマンド呼び出しで一度だけ組み立てられる生成要求です。
// 組み立て後に変更してはいけません。
type GenerationRequest struct {
	Kind              CommandKind
	Prompt            string
	Model             string
	NumInferenceSteps int
	NumFrames         int
	NegativePrompt    string // 空なら送信しない
	ReferenceImage    []byte // ImageToVideo のときのみ
	AspectRatio       string // multipart モードのみ
	Orientation       string // multipart モードのみ
}

// HasImage は参照画像を持つかどうかを返します。
func (r GenerationRequest) HasImage() bool {
	return len(r.ReferenceImage) > 0
}

// TaskHandle はプロバイダがタスク作成時に返す識別子です。
type TaskHandle struct {
	TaskID string
}
