package imgutil

import (
	"bytes"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// ReferenceOptions は参照画像をアップロード向けに縮小・再エンコードする設定です。
type ReferenceOptions struct {
	Quality int // JPEG 品質 (1-100)
	MaxEdge int // 長辺の上限ピクセル。0 以下なら縮小しない
}

// CompressReference は静止画データ（PNG, GIF, JPEG, WebP）を JPEG に再エンコードします。
// 長辺が MaxEdge を超える場合はアスペクト比を保って縮小します。
// 縮小しない場合に再エンコード結果が元より大きければ元のデータを返します。
func CompressReference(data []byte, opts ReferenceOptions) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	img, resized := fit(src, opts.MaxEdge)
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, flatten(img), &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, err
	}
	if !resized && buf.Len() >= len(data) {
		return data, nil
	}
	return buf.Bytes(), nil
}

func fit(src image.Image, maxEdge int) (image.Image, bool) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return src, false
	}
	if w >= h {
		h = max(1, h*maxEdge/w)
		w = maxEdge
	} else {
		w = max(1, w*maxEdge/h)
		h = maxEdge
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, true
}

// flatten は白い不透明な背景に画像を合成します。JPEG はアルファを持たないため、
// そのままエンコードすると透明部分が黒くなります。
func flatten(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, src, b.Min, draw.Over)
	return dst
}
