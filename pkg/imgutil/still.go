package imgutil

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/webp"
)

// IsGIF は GIF のシグネチャを持つかどうかを返します。
func IsGIF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("GIF87a")) || bytes.HasPrefix(data, []byte("GIF89a"))
}

// ToStill はアニメーション画像を 1 枚の静止画に正規化します。
// GIF は最初のフレームを RGBA に変換して PNG で返し、それ以外の画像はそのまま返します。
// 画像としてデコードできないデータはエラーです。
func ToStill(data []byte) ([]byte, error) {
	if !IsGIF(data) {
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("画像形式を判別できません: %w", err)
		}
		return data, nil
	}

	// gif.Decode は最初のフレームだけを返す
	frame, err := gif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("GIFのデコードに失敗しました: %w", err)
	}
	rgba := image.NewRGBA(frame.Bounds())
	draw.Draw(rgba, rgba.Bounds(), frame, frame.Bounds().Min, draw.Src)

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, rgba); err != nil {
		return nil, fmt.Errorf("PNGへのエンコードに失敗しました: %w", err)
	}
	return buf.Bytes(), nil
}
