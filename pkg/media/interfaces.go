package media

import (
	"context"
	"time"
)

// HTTPClient は URL から画像データを取得するためのインターフェースです。
// httpkit.ClientInterface はこれを満たします。
type HTTPClient interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// ImageCacher は、画像をキャッシュするためのインターフェースです。
type ImageCacher interface {
	// Get は、指定されたキーに紐づくアイテムを取得します。
	Get(key string) (any, bool)
	// Set は、指定されたキーと値、有効期限でアイテムを保存します。
	Set(key string, value any, d time.Duration)
}

// BytesLoader は参照文字列から静止画バイト列を得るコラボレーターです。
// 失敗時は nil を返し、エラーは投げません。
type BytesLoader interface {
	LoadBytes(ctx context.Context, ref string) []byte
}
