package request

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/shouni/video-task-kit/pkg/domain"
	"github.com/shouni/video-task-kit/pkg/imgutil"
	"github.com/shouni/video-task-kit/pkg/utils"
)

// DefaultImagePrompt は画像から動画を作るときにプロンプトが空だった場合の既定値です。
const DefaultImagePrompt = "animate this image"

// Options は生成バリアントごとに固定されるパラメータです。
type Options struct {
	Model              string
	NumInferenceSteps  int
	NumFrames          int
	NegativePrompt     string
	AspectRatio        string
	Orientation        string
	Mode               domain.WireMode
	DefaultImagePrompt string
	CompressReference  bool
	CompressionQuality int
	MaxReferenceEdge   int
}

// Builder はコマンド入力から GenerationRequest を組み立て、送信形式にエンコードします。
type Builder struct {
	opts Options
}

// Payload はエンコード済みのリクエストボディです。
type Payload struct {
	Body        []byte
	ContentType string
}

// NewBuilder は Options を検証して Builder を作ります。
func NewBuilder(opts Options) (*Builder, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if opts.NumInferenceSteps <= 0 {
		return nil, fmt.Errorf("num_inference_steps must be positive: %d", opts.NumInferenceSteps)
	}
	if opts.NumFrames <= 0 {
		return nil, fmt.Errorf("num_frames must be positive: %d", opts.NumFrames)
	}
	switch opts.Mode {
	case domain.WireModeJSON, domain.WireModeMultipart:
	case "":
		opts.Mode = domain.WireModeJSON
	default:
		return nil, fmt.Errorf("unknown wire mode: %q", opts.Mode)
	}
	if strings.TrimSpace(opts.DefaultImagePrompt) == "" {
		opts.DefaultImagePrompt = DefaultImagePrompt
	}
	if opts.CompressionQuality <= 0 || opts.CompressionQuality > 100 {
		opts.CompressionQuality = 85
	}
	return &Builder{opts: opts}, nil
}

// Mode は Builder が使うシリアライズ方式です。
func (b *Builder) Mode() domain.WireMode {
	return b.opts.Mode
}

// Build は GenerationRequest を組み立てます。prompt はトリガー除去済みの文字列です。
// テキストのみのモードで prompt が空、または画像モードで画像が無い場合は UserInputError です。
func (b *Builder) Build(kind domain.CommandKind, prompt string, image []byte) (domain.GenerationRequest, error) {
	prompt = strings.TrimSpace(prompt)

	req := domain.GenerationRequest{
		Kind:              kind,
		Prompt:            prompt,
		Model:             b.opts.Model,
		NumInferenceSteps: b.opts.NumInferenceSteps,
		NumFrames:         b.opts.NumFrames,
	}
	if b.opts.Mode == domain.WireModeJSON {
		req.NegativePrompt = b.opts.NegativePrompt
	} else {
		req.AspectRatio = b.opts.AspectRatio
		req.Orientation = b.opts.Orientation
	}

	switch kind {
	case domain.TextToVideo:
		if prompt == "" {
			return domain.GenerationRequest{}, domain.NewUserInputError("prompt is required")
		}
	case domain.ImageToVideo:
		if len(image) == 0 {
			return domain.GenerationRequest{}, domain.NewUserInputError("reference image is required")
		}
		if prompt == "" {
			req.Prompt = b.opts.DefaultImagePrompt
		}
		req.ReferenceImage = b.prepareImage(image)
	default:
		return domain.GenerationRequest{}, fmt.Errorf("unknown command kind: %d", kind)
	}
	return req, nil
}

func (b *Builder) prepareImage(image []byte) []byte {
	if !b.opts.CompressReference {
		return image
	}
	compressed, err := imgutil.CompressReference(image, imgutil.ReferenceOptions{
		Quality: b.opts.CompressionQuality,
		MaxEdge: b.opts.MaxReferenceEdge,
	})
	if err != nil {
		slog.Warn("参照画像の圧縮に失敗したため元の画像を使います", "error", err)
		return image
	}
	return compressed
}

// Encode は設定されたモードでリクエストをシリアライズします。
func (b *Builder) Encode(req domain.GenerationRequest) (*Payload, error) {
	if b.opts.Mode == domain.WireModeMultipart {
		return encodeMultipart(req)
	}
	return encodeJSON(req)
}

type jsonBody struct {
	Prompt            string `json:"prompt"`
	Model             string `json:"model"`
	NumInferenceSteps int    `json:"num_inference_steps"`
	NumFrames         int    `json:"num_frames"`
	NegativePrompt    string `json:"negative_prompt,omitempty"`
	Image             string `json:"image,omitempty"`
}

func encodeJSON(req domain.GenerationRequest) (*Payload, error) {
	body := jsonBody{
		Prompt:            req.Prompt,
		Model:             req.Model,
		NumInferenceSteps: req.NumInferenceSteps,
		NumFrames:         req.NumFrames,
		NegativePrompt:    req.NegativePrompt,
	}
	if req.HasImage() {
		body.Image = utils.EncodeDataURI(req.ReferenceImage)
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("JSONエンコードに失敗しました: %w", err)
	}
	return &Payload{Body: data, ContentType: "application/json"}, nil
}

func encodeMultipart(req domain.GenerationRequest) (*Payload, error) {
	buf := new(bytes.Buffer)
	w := multipart.NewWriter(buf)

	fields := [][2]string{
		{"prompt", req.Prompt},
		{"model", req.Model},
		{"num_inference_steps", strconv.Itoa(req.NumInferenceSteps)},
		{"num_frames", strconv.Itoa(req.NumFrames)},
		{"aspect_ratio", req.AspectRatio},
		{"orientation", req.Orientation},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("multipartフィールド %s の書き込みに失敗しました: %w", f[0], err)
		}
	}

	if req.HasImage() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="image"; filename="image"`)
		h.Set("Content-Type", http.DetectContentType(req.ReferenceImage))
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("画像パートの作成に失敗しました: %w", err)
		}
		if _, err := part.Write(req.ReferenceImage); err != nil {
			return nil, fmt.Errorf("画像パートの書き込みに失敗しました: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return &Payload{Body: buf.Bytes(), ContentType: w.FormDataContentType()}, nil
}
